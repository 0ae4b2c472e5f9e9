package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codevault/codevault/pkg/mcp"
)

func newServeMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve search/getChunk/getOverview/index as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeMCP(cmd)
		},
	}
}

func runServeMCP(cmd *cobra.Command) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(root)
	if err != nil {
		return fmt.Errorf("start MCP server: %w", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx)
}
