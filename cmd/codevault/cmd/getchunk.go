package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codevault/codevault/internal/app"
	"github.com/codevault/codevault/internal/rank"
)

func newGetChunkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-chunk <sha>",
		Short: "Print a chunk's full source by content-addressed sha",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGetChunk(cmd, args[0])
		},
	}
}

func runGetChunk(cmd *cobra.Command, sha string) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}
	if err := requireIndex(root); err != nil {
		return err
	}

	project, err := app.Open(root)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}

	ranker, err := project.OpenRanker()
	if err != nil {
		return fmt.Errorf("open ranker: %w", err)
	}
	defer ranker.Close()

	result := rank.GetChunk(ranker.Store, sha)
	if !result.Success {
		if result.Err != nil {
			return fmt.Errorf("get-chunk failed: %w", result.Err)
		}
		return fmt.Errorf("get-chunk failed")
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Code)
	return nil
}
