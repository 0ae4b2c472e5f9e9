// Package mcp registers CodeVault's search/getChunk/getOverview/index
// tools on an MCP server and serves them over stdio, the thin external
// surface a CLI-adjacent tool needs alongside direct command invocation.
//
// Tools are registered with jsonschema-tagged input/output structs passed
// straight to sdkmcp.AddTool, call-count accounting via wrapTool, and
// served with mcp.NewServer + mcp.AddTool + Run(ctx, &mcp.StdioTransport{}).
package mcp

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/codevault/codevault/internal/app"
	"github.com/codevault/codevault/internal/contextpack"
	"github.com/codevault/codevault/internal/lock"
	"github.com/codevault/codevault/internal/rank"
)

const (
	serverName    = "codevault"
	serverTitle   = "CodeVault semantic code search"
	serverVersion = "0.1.0"
)

// Server coordinates one project's MCP tool surface.
type Server struct {
	project *app.Project
	ranker  *app.Ranker
	packs   *contextpack.Manager
	lock    *lock.ProjectLock
	logger  *zap.SugaredLogger

	mcp *sdkmcp.Server

	mu            sync.Mutex
	toolCallCount map[string]int64
	lastError     atomic.Value
}

// NewServer opens a project at repoRoot and registers its tools.
func NewServer(repoRoot string) (*Server, error) {
	project, err := app.Open(repoRoot)
	if err != nil {
		return nil, err
	}
	ranker, err := project.OpenRanker()
	if err != nil {
		return nil, err
	}
	projLock, err := project.OpenLock()
	if err != nil {
		ranker.Close()
		return nil, err
	}
	packs, err := contextpack.New(filepath.Join(repoRoot, app.DotDir, "contextpacks"))
	if err != nil {
		ranker.Close()
		return nil, err
	}

	s := &Server{
		project:       project,
		ranker:        ranker,
		packs:         packs,
		lock:          projLock,
		logger:        project.Logger,
		toolCallCount: make(map[string]int64),
	}

	s.mcp = sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    serverName,
		Title:   serverTitle,
		Version: serverVersion,
	}, nil)
	s.registerTools()
	return s, nil
}

// Close releases the server's held resources.
func (s *Server) Close() error {
	return s.ranker.Close()
}

// Serve runs the MCP server over stdio until ctx is done. The project
// lock is held for the entire session, so a concurrent `codevault index`
// or second MCP session against the same project blocks (or times out)
// rather than racing this one's reads.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.lock.Lock(ctx); err != nil {
		return err
	}
	defer s.lock.Unlock()

	s.logger.Info("starting MCP server over stdio")
	err := s.mcp.Run(ctx, &sdkmcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Errorw("MCP server stopped with error", "error", err)
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "search",
		Description: "Hybrid BM25 + vector + symbol-boosted search across indexed code chunks. Start here to locate relevant code before requesting a chunk's full source.",
	}, wrapTool(s, "search", s.handleSearch))

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "getChunk",
		Description: "Return a chunk's full source by content-addressed sha, as returned in a search result's sha field.",
	}, wrapTool(s, "getChunk", s.handleGetChunk))

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "getOverview",
		Description: "Return a scored overview of top-level chunks across the project, preferring containers and functions, useful before any query is known.",
	}, wrapTool(s, "getOverview", s.handleGetOverview))

	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name:        "index",
		Description: "Run an incremental indexing pass over changed files (or a full scan if none are given).",
	}, wrapTool(s, "index", s.handleIndex))
}

// wrapTool records a call count and the last error per tool name for
// every registered handler.
func wrapTool[In, Out any](s *Server, name string, handler sdkmcp.ToolHandlerFor[In, Out]) sdkmcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input In) (*sdkmcp.CallToolResult, Out, error) {
		start := time.Now()
		result, output, err := handler(ctx, req, input)
		s.recordCall(name, time.Since(start), err)
		return result, output, err
	}
}

func (s *Server) recordCall(name string, _ time.Duration, err error) {
	s.mu.Lock()
	s.toolCallCount[name]++
	s.mu.Unlock()
	if err != nil {
		s.lastError.Store(err.Error())
	}
}

// --- Tool input/output shapes -----------------------------------------

type searchInput struct {
	Query       string   `json:"query" jsonschema_description:"Natural language or keyword search query"`
	Limit       int      `json:"limit,omitempty" jsonschema_description:"Max results to return, default 10"`
	PathGlob    string   `json:"pathGlob,omitempty" jsonschema_description:"Restrict results to paths matching this glob"`
	Tags        []string `json:"tags,omitempty" jsonschema_description:"Restrict results to chunks carrying at least one of these tags"`
	Lang        string   `json:"lang,omitempty" jsonschema_description:"Restrict results to this language"`
	Hybrid      bool     `json:"hybrid,omitempty" jsonschema_description:"Enable BM25+vector fusion via reciprocal rank fusion"`
	BM25        bool     `json:"bm25,omitempty" jsonschema_description:"Enable the lexical side of hybrid search"`
	SymbolBoost bool     `json:"symbolBoost,omitempty" jsonschema_description:"Boost results whose symbol signature matches query terms"`
	Reranker    string   `json:"reranker,omitempty" jsonschema_description:"Optional reranking stage to apply; currently only \"api\""`
	ContextPack string   `json:"contextPack,omitempty" jsonschema_description:"Name of a saved context pack to apply as the scope/toggles baseline"`
}

type searchOutput struct {
	Results    []rank.Result `json:"results"`
	SearchType string        `json:"searchType"`
}

func (s *Server) handleSearch(ctx context.Context, _ *sdkmcp.CallToolRequest, input searchInput) (*sdkmcp.CallToolResult, searchOutput, error) {
	opts := rank.Options{
		Scope: rank.Scope{
			PathGlob: input.PathGlob,
			Tags:     input.Tags,
			Lang:     input.Lang,
		},
		Limit: input.Limit,
		Toggles: rank.Toggles{
			Hybrid:      input.Hybrid,
			BM25:        input.BM25,
			SymbolBoost: input.SymbolBoost,
			Reranker:    input.Reranker,
		},
	}
	if input.ContextPack != "" {
		pack, err := s.packs.Load(input.ContextPack)
		if err != nil {
			return nil, searchOutput{}, err
		}
		opts = applyContextPack(opts, pack)
	}

	result, err := s.ranker.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, searchOutput{}, err
	}
	return nil, searchOutput{Results: result.Results, SearchType: result.SearchType}, nil
}

func applyContextPack(opts rank.Options, pack contextpack.Pack) rank.Options {
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

type getChunkInput struct {
	Sha string `json:"sha" jsonschema_description:"Content-addressed sha of the chunk to read, from a search result's sha field"`
}

type getChunkOutput struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleGetChunk(_ context.Context, _ *sdkmcp.CallToolRequest, input getChunkInput) (*sdkmcp.CallToolResult, getChunkOutput, error) {
	result := rank.GetChunk(s.ranker.Store, input.Sha)
	if !result.Success {
		msg := ""
		if result.Err != nil {
			msg = result.Err.Error()
		}
		return nil, getChunkOutput{Success: false, Error: msg}, nil
	}
	return nil, getChunkOutput{Success: true, Code: result.Code}, nil
}

type getOverviewInput struct {
	Limit int `json:"limit,omitempty" jsonschema_description:"Max chunks to return, default 10"`
}

type getOverviewOutput struct {
	Results []rank.Result `json:"results"`
}

func (s *Server) handleGetOverview(_ context.Context, _ *sdkmcp.CallToolRequest, input getOverviewInput) (*sdkmcp.CallToolResult, getOverviewOutput, error) {
	result, err := s.ranker.Overview(input.Limit)
	if err != nil {
		return nil, getOverviewOutput{}, err
	}
	return nil, getOverviewOutput{Results: result.Results}, nil
}

type indexInput struct {
	Paths []string `json:"paths,omitempty" jsonschema_description:"Project-relative paths to reindex; omit for a full repository scan"`
}

type indexOutput struct {
	Success         bool     `json:"success"`
	ProcessedFiles  int      `json:"processedFiles"`
	ProcessedChunks int      `json:"processedChunks"`
	Warnings        []string `json:"warnings,omitempty"`
	Errors          []string `json:"errors,omitempty"`
}

// handleIndex runs inside the session-wide lock Serve already holds, so
// it does not acquire its own.
func (s *Server) handleIndex(ctx context.Context, _ *sdkmcp.CallToolRequest, input indexInput) (*sdkmcp.CallToolResult, indexOutput, error) {
	ix, err := s.project.OpenIndexer(input.Paths, nil)
	if err != nil {
		return nil, indexOutput{}, err
	}
	defer ix.Close()

	result, err := ix.Run(ctx)
	if err != nil {
		return nil, indexOutput{}, err
	}
	return nil, indexOutput{
		Success:         result.Success,
		ProcessedFiles:  result.ProcessedFiles,
		ProcessedChunks: result.ProcessedChunks,
		Warnings:        result.Warnings,
		Errors:          result.Errors,
	}, nil
}
