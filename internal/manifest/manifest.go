// Package manifest implements the Merkle-style file manifest persisted at
// ".codevault/merkle.json", the source of truth for incremental
// re-indexing decisions.
//
// Content hashes use 64-bit xxhash (cespare/xxhash/v2) and the file lives
// project-root-relative rather than in a central multi-project app-data
// store, since CodeVault indexes one project at a time.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/codevault/codevault/internal/cverr"
)

// Entry is one file's manifest record: its whole-file hash and the
// content addresses of the chunks it currently produces.
type Entry struct {
	ShaFile   string   `json:"shaFile"`
	ChunkShas []string `json:"chunkShas"`
}

// Manifest is the flat {relative_path: Entry} mapping.
type Manifest struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
	dirty   bool
}

// Load reads the manifest JSON at path, or returns an empty manifest if
// the file does not yet exist.
func Load(path string) (*Manifest, error) {
	m := &Manifest{path: path, entries: make(map[string]Entry)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, cverr.Wrap(cverr.KindIndexingError, "read manifest", err)
	}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m.entries); err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "parse manifest", err)
	}
	return m, nil
}

// HashFile computes the manifest's file-hash convention: 64-bit xxhash of
// UTF-8 file content, hex-stringified.
func HashFile(content []byte) string {
	h := xxhash.Sum64(content)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(h >> (8 * (7 - i)))
	}
	return hex.EncodeToString(buf[:])
}

// Get returns the entry for a relative path, if present.
func (m *Manifest) Get(relPath string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[relPath]
	return e, ok
}

// Unchanged reports whether relPath's current file hash matches the
// manifest's recorded hash, letting a re-index skip untouched files.
func (m *Manifest) Unchanged(relPath, fileHash string) bool {
	e, ok := m.Get(relPath)
	return ok && e.ShaFile == fileHash
}

// Set replaces (or adds) the entry for relPath.
func (m *Manifest) Set(relPath string, entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[relPath] = entry
	m.dirty = true
}

// Delete removes relPath's entry.
func (m *Manifest) Delete(relPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[relPath]; ok {
		delete(m.entries, relPath)
		m.dirty = true
	}
}

// Paths returns every relative path currently recorded.
func (m *Manifest) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for p := range m.entries {
		out = append(out, p)
	}
	return out
}

// Dirty reports whether any mutation has occurred since the last Save.
func (m *Manifest) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// ValidatePath rejects paths escaping the project root: no "..", no
// absolute paths, and no symlink components that resolve outside root.
func ValidatePath(root, relPath string) error {
	if relPath == "" {
		return cverr.New(cverr.KindPathValidationFailed, "empty path")
	}
	if filepath.IsAbs(relPath) {
		return cverr.New(cverr.KindPathValidationFailed, "absolute path not allowed: "+relPath)
	}
	cleaned := filepath.Clean(relPath)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return cverr.New(cverr.KindPathValidationFailed, "path escapes project root: "+relPath)
	}

	full := filepath.Join(root, cleaned)
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolvedRoot = root
	}
	resolvedFull, err := filepath.EvalSymlinks(full)
	if err != nil {
		// Target may not exist yet (new file); fall back to lexical check.
		resolvedFull = full
	}
	rel, err := filepath.Rel(resolvedRoot, resolvedFull)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return cverr.New(cverr.KindPathValidationFailed, "path resolves outside project root: "+relPath)
	}
	return nil
}

// Save persists the manifest atomically (write to temp + rename).
func (m *Manifest) Save() error {
	m.mu.Lock()
	data, err := json.MarshalIndent(m.entries, "", "  ")
	dirty := m.dirty
	m.mu.Unlock()
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "marshal manifest", err)
	}
	if !dirty {
		return nil
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "create manifest dir", err)
	}
	tmp, err := os.CreateTemp(dir, ".merkle-*.json")
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "create temp manifest file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindIndexingError, "write temp manifest file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindIndexingError, "close temp manifest file", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindIndexingError, "rename temp manifest file", err)
	}

	m.mu.Lock()
	m.dirty = false
	m.mu.Unlock()
	return nil
}
