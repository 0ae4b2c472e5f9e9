package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codevault/codevault/internal/app"
)

func newIndexCmd() *cobra.Command {
	var paths []string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the repository, or reindex the given paths",
		Long:  "Runs an indexing pass over the repository root. With --path, only those project-relative paths are rescanned; otherwise a full repository scan runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, paths)
		},
	}

	cmd.Flags().StringSliceVar(&paths, "path", nil, "Project-relative path to reindex (repeatable); omit for a full scan")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, paths []string) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	project, err := app.Open(root)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}

	projLock, err := project.OpenLock()
	if err != nil {
		return fmt.Errorf("open lock: %w", err)
	}
	if err := projLock.Lock(ctx); err != nil {
		return fmt.Errorf("acquire project lock: %w", err)
	}
	defer projLock.Unlock()

	ix, err := project.OpenIndexer(paths, nil)
	if err != nil {
		return fmt.Errorf("open indexer: %w", err)
	}
	defer ix.Close()

	result, err := ix.Run(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("indexing reported failure")
	}
	return nil
}
