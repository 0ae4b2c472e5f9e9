// Package indexer orchestrates one indexing pass: scanning a repository,
// skipping unchanged files via the Merkle manifest, chunking and embedding
// changed files, persisting their metadata and content-addressed blobs,
// cleaning up deleted files, and resolving the cross-chunk symbol graph.
//
// Changed files run through a bounded-concurrency worker pool built on
// golang.org/x/sync/errgroup, defaulting to min(2×NumCPU, 16) workers
// (overridable via CODEVAULT_INDEXING_CONCURRENCY), followed by a
// finalize step that persists derived state once per run rather than
// per file.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codevault/codevault/internal/chunker"
	"github.com/codevault/codevault/internal/codemap"
	"github.com/codevault/codevault/internal/config"
	"github.com/codevault/codevault/internal/cverr"
	"github.com/codevault/codevault/internal/embedder"
	"github.com/codevault/codevault/internal/embedprovider"
	"github.com/codevault/codevault/internal/manifest"
	"github.com/codevault/codevault/internal/metadb"
	"github.com/codevault/codevault/internal/ratelimit"
	"github.com/codevault/codevault/internal/rules"
	"github.com/codevault/codevault/internal/store"
	"github.com/codevault/codevault/internal/tokencount"
)

// DotDir is the project-relative directory all CodeVault state lives
// under, rooted in the repository rather than an OS-wide data directory.
const DotDir = ".codevault"

// Config wires an Indexer's collaborators and the scope of one run.
type Config struct {
	// RepoRoot is the project root to index.
	RepoRoot string
	// Provider embeds chunk text; required.
	Provider embedprovider.Provider
	// Registry maps file extensions to chunking rules. Defaults to
	// rules.NewRegistry().
	Registry *rules.Registry
	// Profile bounds chunk sizing. Defaults to tokencount.DefaultProfile().
	Profile tokencount.Profile
	// Limiter paces embedding requests. May be nil to disable pacing
	// (e.g. a local or mock provider).
	Limiter *ratelimit.Limiter
	// Counter sizes text for the per-item/per-batch embedding ceilings.
	// Defaults to tokencount.NewCharCounter().
	Counter tokencount.Counter
	// Keys configures chunk blob encryption. Nil disables encryption.
	Keys *store.KeySet
	// Encrypt marks newly written chunk blobs as encrypted when Keys is set.
	Encrypt bool
	// Concurrency overrides the default worker count. Zero means "use the
	// default", which is itself further overridable by
	// CODEVAULT_INDEXING_CONCURRENCY.
	Concurrency int
	// ChangedFiles restricts the run to these project-relative paths. Nil
	// triggers a full repository scan plus a full garbage-collection pass
	// against the manifest.
	ChangedFiles []string
	// DeletedFiles are project-relative paths to remove regardless of
	// whether they still exist on disk.
	DeletedFiles []string
	// OnProgress is called after each file finishes processing, with the
	// number processed so far and the total file count for this run.
	OnProgress func(processed, total int)
}

// Result summarizes one indexing run.
type Result struct {
	Success         bool
	ProcessedFiles  int
	DeletedFiles    int
	ProcessedChunks int
	TotalChunks     int
	Provider        string
	Dimensions      int
	ChunkingStats   chunker.Stats
	Warnings        []string
	Errors          []string
}

// Indexer runs indexing passes against one project's on-disk state.
type Indexer struct {
	repoRoot    string
	provider    embedprovider.Provider
	registry    *rules.Registry
	chunker     *chunker.Chunker
	profile     tokencount.Profile
	encrypt     bool
	concurrency int

	metaDB   *metadb.DB
	codemap  *codemap.Codemap
	manifest *manifest.Manifest
	store    *store.Store
	embedder *embedder.Batcher

	changedFiles []string
	deletedFiles []string
	onProgress   func(processed, total int)
}

// New opens or creates the on-disk state under RepoRoot/.codevault and
// returns an Indexer ready to Run. Callers must Close it when done.
func New(cfg Config) (*Indexer, error) {
	if cfg.Provider == nil {
		return nil, cverr.New(cverr.KindValidation, "indexer: Provider is required")
	}
	if cfg.RepoRoot == "" {
		return nil, cverr.New(cverr.KindValidation, "indexer: RepoRoot is required")
	}

	registry := cfg.Registry
	if registry == nil {
		registry = rules.NewRegistry()
	}
	profile := cfg.Profile
	if profile.Max == 0 {
		profile = tokencount.DefaultProfile()
	}
	counter := cfg.Counter
	if counter == nil {
		counter = tokencount.NewCharCounter()
	}

	dotDir := filepath.Join(cfg.RepoRoot, DotDir)
	if err := os.MkdirAll(dotDir, 0o755); err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "create "+DotDir, err)
	}

	metaDB, err := metadb.Open(filepath.Join(dotDir, "metadata.db"))
	if err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "open metadata db", err)
	}
	cm, err := codemap.Load(filepath.Join(dotDir, "codemap.json"))
	if err != nil {
		metaDB.Close()
		return nil, err
	}
	mf, err := manifest.Load(filepath.Join(dotDir, "merkle.json"))
	if err != nil {
		metaDB.Close()
		return nil, err
	}
	st, err := store.New(filepath.Join(dotDir, "chunks"), cfg.Keys)
	if err != nil {
		metaDB.Close()
		return nil, err
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = config.Int(defaultConcurrency(), "CODEVAULT_INDEXING_CONCURRENCY")
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Indexer{
		repoRoot:     cfg.RepoRoot,
		provider:     cfg.Provider,
		registry:     registry,
		chunker:      chunker.New(registry),
		profile:      profile,
		encrypt:      cfg.Encrypt,
		concurrency:  concurrency,
		metaDB:       metaDB,
		codemap:      cm,
		manifest:     mf,
		store:        st,
		embedder:     embedder.New(cfg.Provider, cfg.Limiter, counter),
		changedFiles: cfg.ChangedFiles,
		deletedFiles: cfg.DeletedFiles,
		onProgress:   cfg.OnProgress,
	}, nil
}

func defaultConcurrency() int {
	n := runtime.NumCPU() * 2
	if n > 16 {
		n = 16
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Close releases the indexer's held resources (currently, the metadata
// database connection pool).
func (ix *Indexer) Close() error {
	return ix.metaDB.Close()
}

// Run executes one full indexing pass: scan (or accept
// the configured change set), process changed files with bounded
// concurrency, process deletions (explicit and, on a full scan, orphaned
// manifest entries), resolve the symbol graph, and persist all derived
// state.
func (ix *Indexer) Run(ctx context.Context) (*Result, error) {
	targets, deleted, err := ix.resolveScope()
	if err != nil {
		return nil, err
	}

	res := &Result{Provider: ix.provider.Name(), Dimensions: ix.provider.Dimensions()}
	res.Warnings = append(res.Warnings, ix.checkProviderDrift()...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	var mu sync.Mutex
	processed := 0
	total := len(targets)

	for _, relPath := range targets {
		relPath := relPath
		g.Go(func() error {
			fr := ix.processFile(gctx, relPath)

			mu.Lock()
			defer mu.Unlock()
			res.ChunkingStats.TotalChunks += fr.Stats.TotalChunks
			res.ChunkingStats.MergedSmall += fr.Stats.MergedSmall
			res.ChunkingStats.SkippedSmall += fr.Stats.SkippedSmall
			if fr.Stats.Fallback {
				res.ChunkingStats.Fallback = true
			}
			res.ProcessedChunks += fr.Chunks
			if !fr.Skipped {
				res.ProcessedFiles++
			}
			res.Errors = append(res.Errors, fr.Errors...)
			processed++
			if ix.onProgress != nil {
				ix.onProgress(processed, total)
			}
			return nil
		})
	}
	// Per-file errors are collected onto Result rather than propagated, so
	// Wait's error is always nil; it is ignored deliberately.
	_ = g.Wait()

	for _, relPath := range dedupePaths(deleted) {
		if err := ix.processDeletion(relPath); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("delete %s: %v", relPath, err))
			continue
		}
		res.DeletedFiles++
	}

	if _, err := ix.embedder.Flush(ctx); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("flush embedder: %v", err))
	}

	if err := ix.buildSymbolGraph(); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("build symbol graph: %v", err))
	}

	if err := ix.codemap.Save(); err != nil {
		return res, cverr.Wrap(cverr.KindIndexingError, "save codemap", err)
	}
	if err := ix.manifest.Save(); err != nil {
		return res, cverr.Wrap(cverr.KindIndexingError, "save manifest", err)
	}

	res.TotalChunks = ix.codemap.Len()
	res.Success = len(res.Errors) == 0
	return res, nil
}

// resolveScope determines the file set to process and the file set to
// delete, honoring either an explicit ChangedFiles/DeletedFiles
// configuration or falling back to a full scan plus a full garbage
// collection pass against the manifest.
func (ix *Indexer) resolveScope() (targets, deleted []string, err error) {
	deleted = append(deleted, ix.deletedFiles...)

	if ix.changedFiles == nil {
		scanned, err := ix.scanRepo(ix.repoRoot)
		if err != nil {
			return nil, nil, cverr.Wrap(cverr.KindIndexingError, "scan repository", err)
		}
		scannedSet := make(map[string]bool, len(scanned))
		for _, p := range scanned {
			scannedSet[p] = true
		}
		for _, p := range ix.manifest.Paths() {
			if !scannedSet[p] {
				deleted = append(deleted, p)
			}
		}
		return scanned, deleted, nil
	}

	for _, p := range ix.changedFiles {
		if _, statErr := os.Stat(filepath.Join(ix.repoRoot, p)); statErr != nil {
			deleted = append(deleted, p)
			continue
		}
		targets = append(targets, p)
	}
	return targets, deleted, nil
}

// checkProviderDrift warns (without failing the run) when chunks already
// exist under a different embedding provider or dimensionality than the
// one configured for this run.
func (ix *Indexer) checkProviderDrift() []string {
	existing, err := ix.metaDB.GetExistingDimensions()
	if err != nil {
		return nil
	}
	var warnings []string
	for _, pd := range existing {
		if pd.Provider != ix.provider.Name() || pd.Dimensions != ix.provider.Dimensions() {
			warnings = append(warnings, fmt.Sprintf(
				"existing chunks embedded under %s/%d dimensions; current run uses %s/%d and will not update them until they are re-embedded",
				pd.Provider, pd.Dimensions, ix.provider.Name(), ix.provider.Dimensions()))
		}
	}
	return warnings
}

func dedupePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
