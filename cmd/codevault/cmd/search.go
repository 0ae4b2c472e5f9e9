package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codevault/codevault/internal/app"
	"github.com/codevault/codevault/internal/contextpack"
	"github.com/codevault/codevault/internal/rank"
)

type searchFlags struct {
	limit       int
	pathGlob    string
	tags        []string
	lang        string
	hybrid      bool
	bm25        bool
	symbolBoost bool
	reranker    string
	contextPack string
}

func newSearchCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed code chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), flags)
		},
	}

	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&flags.pathGlob, "path-glob", "", "Restrict results to paths matching this glob")
	cmd.Flags().StringSliceVar(&flags.tags, "tag", nil, "Restrict results to chunks carrying this tag (repeatable)")
	cmd.Flags().StringVar(&flags.lang, "lang", "", "Restrict results to this language")
	cmd.Flags().BoolVar(&flags.hybrid, "hybrid", true, "Fuse BM25 and vector candidates with reciprocal rank fusion")
	cmd.Flags().BoolVar(&flags.bm25, "bm25", true, "Enable the lexical side of hybrid search")
	cmd.Flags().BoolVar(&flags.symbolBoost, "symbol-boost", true, "Boost results whose symbol signature matches query terms")
	cmd.Flags().StringVar(&flags.reranker, "reranker", "", `Optional reranking stage to apply ("api")`)
	cmd.Flags().StringVar(&flags.contextPack, "context-pack", "", "Name of a saved context pack to apply as the scope/toggles baseline")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, flags searchFlags) error {
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

	opts := rank.Options{
		Scope: rank.Scope{
			PathGlob: flags.pathGlob,
			Tags:     flags.tags,
			Lang:     flags.lang,
		},
		Limit: flags.limit,
		Toggles: rank.Toggles{
			Hybrid:      flags.hybrid,
			BM25:        flags.bm25,
			SymbolBoost: flags.symbolBoost,
			Reranker:    flags.reranker,
		},
	}

	if flags.contextPack != "" {
		packs, err := contextpack.New(filepath.Join(root, app.DotDir, "contextpacks"))
		if err != nil {
			return fmt.Errorf("open context packs: %w", err)
		}
		pack, err := packs.Load(flags.contextPack)
		if err != nil {
			return fmt.Errorf("load context pack %q: %w", flags.contextPack, err)
		}
		opts = applyContextPackFlags(opts, pack)
	}

	result, err := ranker.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func applyContextPackFlags(opts rank.Options, pack contextpack.Pack) rank.Options {
	if opts.Scope.PathGlob == "" {
		opts.Scope.PathGlob = pack.PathGlob
	}
	if len(opts.Scope.Tags) == 0 {
		opts.Scope.Tags = pack.Tags
	}
	if opts.Scope.Lang == "" {
		opts.Scope.Lang = pack.Lang
	}
	if opts.Limit == 0 {
		opts.Limit = pack.Limit
	}
	if !opts.Toggles.Hybrid {
		opts.Toggles.Hybrid = pack.Hybrid
	}
	if !opts.Toggles.BM25 {
		opts.Toggles.BM25 = pack.BM25
	}
	if !opts.Toggles.SymbolBoost {
		opts.Toggles.SymbolBoost = pack.Symbol
	}
	if opts.Toggles.Reranker == "" {
		opts.Toggles.Reranker = pack.Reranker
	}
	return opts
}

// requireIndex makes a search, overview, or getChunk call against a repo
// that was never indexed fail fast instead of silently operating over an
// empty database.
func requireIndex(root string) error {
	metadataPath := filepath.Join(root, app.DotDir, "metadata.db")
	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return fmt.Errorf("no index found at %s; run 'codevault index' first", metadataPath)
	}
	return nil
}
