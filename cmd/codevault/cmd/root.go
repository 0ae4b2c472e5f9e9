// Package cmd provides codevault's CLI commands: a persistent --root flag
// resolving the repository root, with index and search registered as
// explicit subcommands rather than a zero-arg "just works" default.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var repoRoot string

// NewRootCmd builds the codevault root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "codevault",
		Short:         "Local semantic code search",
		Long:          "codevault indexes a repository into content-addressed encrypted chunks and searches them with hybrid BM25 + vector + symbol-boosted ranking.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&repoRoot, "root", "", "Repository root (defaults to the current directory)")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newOverviewCmd())
	cmd.AddCommand(newGetChunkCmd())
	cmd.AddCommand(newServeMCPCmd())
	cmd.AddCommand(newContextPackCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// resolveRoot returns the --root flag value, or the current working
// directory if unset.
func resolveRoot() (string, error) {
	if repoRoot != "" {
		return repoRoot, nil
	}
	return os.Getwd()
}
