package cmd

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codevault/codevault/internal/app"
	"github.com/codevault/codevault/internal/contextpack"
)

func newContextPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context-pack",
		Short: "Manage named, reusable search scope/toggle presets",
	}

	cmd.AddCommand(newContextPackSaveCmd())
	cmd.AddCommand(newContextPackListCmd())
	cmd.AddCommand(newContextPackApplyCmd())
	cmd.AddCommand(newContextPackDeleteCmd())
	cmd.AddCommand(newContextPackActiveCmd())
	return cmd
}

func openPacks() (*contextpack.Manager, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, err
	}
	return contextpack.New(filepath.Join(root, app.DotDir, "contextpacks"))
}

func newContextPackSaveCmd() *cobra.Command {
	var pack contextpack.Pack

	cmd := &cobra.Command{
		Use:   "save <key>",
		Short: "Save a context pack under the given key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packs, err := openPacks()
			if err != nil {
				return err
			}
			pack.Key = args[0]
			pack.CreatedAt = time.Now().UTC().Format(time.RFC3339)
			return packs.Save(pack)
		},
	}

	cmd.Flags().StringVar(&pack.PathGlob, "path-glob", "", "Restrict results to paths matching this glob")
	cmd.Flags().StringSliceVar(&pack.Tags, "tag", nil, "Restrict results to chunks carrying this tag (repeatable)")
	cmd.Flags().StringVar(&pack.Lang, "lang", "", "Restrict results to this language")
	cmd.Flags().IntVar(&pack.Limit, "limit", 0, "Default result limit")
	cmd.Flags().BoolVar(&pack.Hybrid, "hybrid", false, "Default hybrid toggle")
	cmd.Flags().BoolVar(&pack.BM25, "bm25", false, "Default BM25 toggle")
	cmd.Flags().BoolVar(&pack.Symbol, "symbol-boost", false, "Default symbol-boost toggle")
	cmd.Flags().StringVar(&pack.Reranker, "reranker", "", "Default reranker")
	return cmd
}

func newContextPackListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved context pack keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			packs, err := openPacks()
			if err != nil {
				return err
			}
			keys, err := packs.List()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(keys)
		},
	}
}

func newContextPackApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <key>",
		Short: "Mark a saved context pack as the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packs, err := openPacks()
			if err != nil {
				return err
			}
			return packs.Apply(args[0], time.Now().UTC())
		},
	}
}

func newContextPackDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a saved context pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packs, err := openPacks()
			if err != nil {
				return err
			}
			return packs.Delete(args[0])
		},
	}
}

func newContextPackActiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "Show the currently active context pack, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			packs, err := openPacks()
			if err != nil {
				return err
			}
			marker, err := packs.Active()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if marker == nil {
				return enc.Encode(map[string]any{"active": false})
			}
			return enc.Encode(marker)
		},
	}
}
