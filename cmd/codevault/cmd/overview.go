package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codevault/codevault/internal/app"
)

func newOverviewCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "List top-level chunks across the project without a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverview(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of chunks to return")
	return cmd
}

func runOverview(cmd *cobra.Command, limit int) error {
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

	result, err := ranker.Overview(limit)
	if err != nil {
		return fmt.Errorf("overview failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
