// Package tokencount provides the token/char sizing abstraction chunking
// and embedding are parameterized by.
//
// Two modes exist: token mode counts against a real tokenizer (tiktoken-go)
// and amortizes per-line counts across a whole file so a statement-window
// split never recounts a line twice; char mode is the fallback when no
// tokenizer is available for the active embedding model.
package tokencount

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/pkoukk/tiktoken-go"
)

// Counter counts "size units" (tokens or characters) for chunk sizing.
type Counter interface {
	// Count returns the size of text in this counter's units.
	Count(text string) int
	// Mode reports "token" or "char".
	Mode() string
}

type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }
func (charCounter) Mode() string          { return "char" }

// NewCharCounter returns the character-counting fallback.
func NewCharCounter() Counter { return charCounter{} }

type tokenCounter struct {
	enc *tiktoken.Tiktoken
	// lineCache amortizes per-line token counts within one file, counting
	// each line once per file rather than recounting it for the
	// statement-window fallback.
	mu        sync.Mutex
	lineCache map[string]int
}

// NewTokenCounter builds a token-mode Counter for the given tiktoken
// encoding name (e.g. "cl100k_base", "o200k_base"). Falls back to the
// char counter if the encoding cannot be loaded, so callers always get a
// usable Counter rather than an error to handle at call sites far from
// configuration.
func NewTokenCounter(encodingName string) Counter {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return NewCharCounter()
	}
	return &tokenCounter{enc: enc, lineCache: make(map[string]int)}
}

func (t *tokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *tokenCounter) Mode() string { return "token" }

// CountLine counts a single line's tokens, memoizing by exact line text so
// repeated identical lines in the same file (blank lines, braces, common
// boilerplate) are only tokenized once. Intended for the chunker's
// statement-window fallback, which may re-slice the same source lines
// into multiple candidate windows before settling on a split.
func (t *tokenCounter) CountLine(line string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.lineCache[line]; ok {
		return n
	}
	n := len(t.enc.Encode(line, nil, nil))
	t.lineCache[line] = n
	return n
}

// ClearLineCache drops the per-line memoization, meant to be called once
// per file between ChunkFile invocations so the cache does not grow
// unboundedly across an entire indexing pass.
func (t *tokenCounter) ClearLineCache() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lineCache = make(map[string]int)
}

// CountLine counts a single line, falling back to plain Count when the
// underlying Counter is not a line-memoizing tokenCounter.
func CountLine(c Counter, line string) int {
	if tc, ok := c.(*tokenCounter); ok {
		return tc.CountLine(line)
	}
	return c.Count(line)
}

// ClearLineCache clears the per-file memoization if c supports it.
func ClearLineCache(c Counter) {
	if tc, ok := c.(*tokenCounter); ok {
		tc.ClearLineCache()
	}
}

// Profile parameterizes the chunker by (min, optimal, max, overlap),
// plus the Counter that measures against them. Max must never exceed the
// embedding model's declared MaxTokens.
type Profile struct {
	Min      int
	Optimal  int
	Max      int
	Overlap  int
	Counter  Counter
	MaxTokens int
}

// NewProfile builds a Profile, clamping Max to the model's MaxTokens limit.
func NewProfile(min, optimal, max, overlap, modelMaxTokens int, counter Counter) Profile {
	if counter == nil {
		counter = NewCharCounter()
	}
	if modelMaxTokens > 0 && max > modelMaxTokens {
		max = modelMaxTokens
	}
	return Profile{Min: min, Optimal: optimal, Max: max, Overlap: overlap, Counter: counter, MaxTokens: modelMaxTokens}
}

// DefaultProfile returns a reasonable char-mode profile, used when no
// provider/model is yet known (e.g. chunking ahead of embedding).
func DefaultProfile() Profile {
	return NewProfile(400, 1600, 3200, 200, 0, NewCharCounter())
}

// processWide is the single LRU cache of Counters keyed by encoding name:
// every Profile for the same model reuses one tiktoken encoder instead of
// reloading its vocabulary per file.
var processWide = newCounterCache(10)

type counterCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, Counter]
}

func newCounterCache(size int) *counterCache {
	c, _ := lru.New[string, Counter](size)
	return &counterCache{lru: c}
}

// Shared returns the process-wide cached Counter for an encoding name,
// constructing it on first use.
func Shared(encodingName string) Counter {
	processWide.mu.Lock()
	defer processWide.mu.Unlock()
	if c, ok := processWide.lru.Get(encodingName); ok {
		return c
	}
	c := NewTokenCounter(encodingName)
	processWide.lru.Add(encodingName, c)
	return c
}

// Clear empties the process-wide counter cache. No CLI command calls it.
func Clear() {
	processWide.mu.Lock()
	defer processWide.mu.Unlock()
	processWide.lru.Purge()
}
