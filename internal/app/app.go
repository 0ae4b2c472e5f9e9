// Package app wires CodeVault's collaborators (embedding provider, rate
// limiter, encryption keys, indexer, ranker, cross-process lock) from a
// project root and the environment. cmd/codevault and pkg/mcp both build
// their working set through here so the two surfaces never drift in how
// they open a project.
package app

import (
	"encoding/base64"
	"path/filepath"
	"strings"

	"github.com/codevault/codevault/internal/ann"
	"github.com/codevault/codevault/internal/bm25"
	"github.com/codevault/codevault/internal/config"
	"github.com/codevault/codevault/internal/cverr"
	"github.com/codevault/codevault/internal/embedprovider"
	"github.com/codevault/codevault/internal/indexer"
	"github.com/codevault/codevault/internal/lock"
	"github.com/codevault/codevault/internal/logging"
	"github.com/codevault/codevault/internal/metadb"
	"github.com/codevault/codevault/internal/rank"
	"github.com/codevault/codevault/internal/ratelimit"
	"github.com/codevault/codevault/internal/reranker"
	"github.com/codevault/codevault/internal/store"

	"go.uber.org/zap"
)

// DotDir mirrors indexer.DotDir; duplicated as a const here (rather than
// imported as an alias) so callers that only need the path don't have to
// know it lives on the indexer package.
const DotDir = indexer.DotDir

// bm25Manager is the process-wide BM25 index cache, holding up to 10
// indices before evicting the least recently used.
var bm25Manager = bm25.Default()

// Project bundles one project root's working collaborators.
type Project struct {
	RepoRoot string
	Provider embedprovider.Provider
	Limiter  *ratelimit.Limiter
	Keys     *store.KeySet
	Logger   *zap.SugaredLogger
}

// Open builds a Project from repoRoot and the environment. Callers that
// need only to read (search, getChunk, getOverview) should use OpenRanker;
// callers that need to index should use OpenIndexer. Open itself performs
// no I/O beyond constructing the embedding provider client.
func Open(repoRoot string) (*Project, error) {
	logger, err := logging.New(logging.Options{
		Development: config.Bool(false, config.EnvLogDev),
		Level:       config.String("", config.EnvLogLevel),
	})
	if err != nil {
		return nil, cverr.Wrap(cverr.KindProcessingError, "build logger", err)
	}
	if config.Bool(false, config.EnvQuiet) {
		logger = logging.Noop()
	}

	provider, err := buildProvider()
	if err != nil {
		return nil, err
	}

	rpm := config.Int(0, config.EnvEmbeddingRateLimitRPM)
	tpm := config.Int(0, config.EnvEmbeddingRateLimitTPM)
	var limiter *ratelimit.Limiter
	if rpm > 0 || tpm > 0 {
		limiter = ratelimit.New(rpm, tpm, ratelimit.DefaultQueueSize)
	}

	keys, err := buildKeys()
	if err != nil {
		return nil, err
	}

	return &Project{
		RepoRoot: repoRoot,
		Provider: provider,
		Limiter:  limiter,
		Keys:     keys,
		Logger:   logger,
	}, nil
}

func buildProvider() (embedprovider.Provider, error) {
	apiKey := config.String("", config.EnvEmbeddingAPIKey, config.EnvOpenAIAPIKey)
	if apiKey == "" {
		return embedprovider.NewMockProvider(config.Int(1536, config.EnvEmbeddingDimensions)), nil
	}
	return embedprovider.NewOpenAIProvider(embedprovider.OpenAIConfig{
		APIKey:     apiKey,
		BaseURL:    config.String("", config.EnvEmbeddingBaseURL, config.EnvOpenAIBaseURL),
		Model:      config.String("text-embedding-3-small", config.EnvEmbeddingModel),
		Dimensions: config.Int(1536, config.EnvEmbeddingDimensions),
	})
}

func buildKeys() (*store.KeySet, error) {
	primary := config.String("", config.EnvEncryptionKey)
	if primary == "" {
		return nil, nil
	}
	primaryKey, err := decodeKey(primary)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindValidation, "decode "+config.EnvEncryptionKey, err)
	}
	var deprecated [][]byte
	for _, enc := range config.CommaList(config.EnvEncryptionDeprecated) {
		key, err := decodeKey(enc)
		if err != nil {
			return nil, cverr.Wrap(cverr.KindValidation, "decode "+config.EnvEncryptionDeprecated, err)
		}
		deprecated = append(deprecated, key)
	}
	return &store.KeySet{Primary: primaryKey, Deprecated: deprecated}, nil
}

func decodeKey(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
}

// OpenIndexer builds an Indexer over the project's repo root. A non-nil
// changedFiles restricts the pass to those files and deletedFiles; with
// changedFiles nil the pass scans the whole repository and still processes
// any deletedFiles. Callers must Close it when done.
func (p *Project) OpenIndexer(changedFiles, deletedFiles []string) (*indexer.Indexer, error) {
	return indexer.New(indexer.Config{
		RepoRoot:     p.RepoRoot,
		Provider:     p.Provider,
		Limiter:      p.Limiter,
		Keys:         p.Keys,
		Encrypt:      p.Keys != nil,
		ChangedFiles: changedFiles,
		DeletedFiles: deletedFiles,
	})
}

// Ranker bundles a rank.Ranker with the handles it borrows (metadata DB,
// chunk store) so the caller can close them when done.
type Ranker struct {
	*rank.Ranker
	MetaDB *metadb.DB
	Store  *store.Store
}

// Close releases the metadata DB connection. The chunk store holds no
// closable resource.
func (r *Ranker) Close() error {
	return r.MetaDB.Close()
}

// OpenRanker builds a Ranker over the project's existing on-disk state
// (metadata DB, chunk store, BM25/ANN accelerators, optional reranker).
// It does not require an indexing pass to be in progress; multiple
// Rankers may be opened concurrently with an Indexer per internal/lock's
// exclusivity contract being the caller's responsibility to honor.
func (p *Project) OpenRanker() (*Ranker, error) {
	dotDir := filepath.Join(p.RepoRoot, DotDir)

	metaDB, err := metadb.Open(filepath.Join(dotDir, "metadata.db"))
	if err != nil {
		return nil, err
	}
	st, err := store.New(filepath.Join(dotDir, "chunks"), p.Keys)
	if err != nil {
		metaDB.Close()
		return nil, err
	}

	var annIndex *ann.Index
	if config.Bool(false, config.EnvANNEnabled) {
		annIndex = ann.New(p.Provider.Dimensions())
	}

	rrank, err := buildReranker()
	if err != nil {
		metaDB.Close()
		return nil, err
	}

	r := rank.New(metaDB, p.Provider, bm25Manager, p.RepoRoot, annIndex, rrank, st)
	return &Ranker{Ranker: r, MetaDB: metaDB, Store: st}, nil
}

func buildReranker() (rank.Reranker, error) {
	baseURL := config.String("", config.EnvRerankAPIURL)
	if baseURL == "" {
		return nil, nil
	}
	return reranker.New(reranker.Config{
		BaseURL: baseURL,
		APIKey:  config.String("", config.EnvRerankAPIKey),
		Model:   config.String("", config.EnvRerankModel),
	})
}

// OpenLock builds the cross-process project lock under the project's
// .codevault directory.
func (p *Project) OpenLock() (*lock.ProjectLock, error) {
	return lock.New(filepath.Join(p.RepoRoot, DotDir))
}
