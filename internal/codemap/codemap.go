// Package codemap maintains the project-wide codemap JSON at
// ".codevault/codemap.json": a lightweight index of chunk display metadata
// with the embedding vector and raw code text stripped out, kept in
// lockstep with internal/metadb's chunks table so every chunk_id present
// in one is present in the other.
//
// Persistence follows internal/manifest's atomic
// write-to-temp-then-rename pattern for the on-disk file.
package codemap

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/codevault/codevault/internal/cverr"
)

// Entry is one chunk's display metadata, excluding its embedding vector
// and raw code text.
type Entry struct {
	Sha         string   `json:"sha"`
	FilePath    string   `json:"filePath"`
	Symbol      string   `json:"symbol"`
	ChunkType   string   `json:"chunkType"`
	Language    string   `json:"language"`
	Tags        []string `json:"tags,omitempty"`
	Intent      string   `json:"intent,omitempty"`
	Description string   `json:"description,omitempty"`
	Signature   string   `json:"signature,omitempty"`
	Neighbors   []string `json:"neighbors,omitempty"`
	StartLine   uint32   `json:"startLine"`
	EndLine     uint32   `json:"endLine"`
}

// Codemap is the in-memory {chunk_id: Entry} index, persisted to a single
// JSON file.
type Codemap struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
	dirty   bool
}

// Load reads the codemap JSON at path, or returns an empty codemap if it
// does not yet exist.
func Load(path string) (*Codemap, error) {
	c := &Codemap{path: path, entries: make(map[string]Entry)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, cverr.Wrap(cverr.KindIndexingError, "read codemap", err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "parse codemap", err)
	}
	return c, nil
}

// Set records or replaces a chunk's codemap entry.
func (c *Codemap) Set(chunkID string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[chunkID] = entry
	c.dirty = true
}

// Get returns a chunk's codemap entry, if present.
func (c *Codemap) Get(chunkID string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[chunkID]
	return e, ok
}

// Delete removes a chunk's codemap entry.
func (c *Codemap) Delete(chunkID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[chunkID]; ok {
		delete(c.entries, chunkID)
		c.dirty = true
	}
}

// DeleteByFilePath removes every entry belonging to relPath, mirroring
// metadb.DeleteByFilePath so the two stores stay consistent on file
// deletion.
func (c *Codemap) DeleteByFilePath(relPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if e.FilePath == relPath {
			delete(c.entries, id)
			c.dirty = true
		}
	}
}

// SetNeighbors updates an existing entry's resolved symbol-neighbor list
// in place, a no-op if chunkID is not tracked.
func (c *Codemap) SetNeighbors(chunkID string, neighbors []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[chunkID]
	if !ok {
		return
	}
	e.Neighbors = neighbors
	c.entries[chunkID] = e
	c.dirty = true
}

// ChunkIDs returns every chunk_id currently tracked.
func (c *Codemap) ChunkIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for id := range c.entries {
		out = append(out, id)
	}
	return out
}

// Len returns the number of tracked entries.
func (c *Codemap) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save persists the codemap atomically (write to temp + rename), a no-op
// if nothing has changed since the last Save.
func (c *Codemap) Save() error {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	dirty := c.dirty
	c.mu.Unlock()
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "marshal codemap", err)
	}
	if !dirty {
		return nil
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "create codemap dir", err)
	}
	tmp, err := os.CreateTemp(dir, ".codemap-*.json")
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "create temp codemap file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindIndexingError, "write temp codemap file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindIndexingError, "close temp codemap file", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindIndexingError, "rename temp codemap file", err)
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}
