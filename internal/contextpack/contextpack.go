// Package contextpack persists named search-scope presets ("context
// packs") under ".codevault/contextpacks/", plus a marker recording which
// one is currently active, so a scope and toggle set a caller likes can
// be saved once and reapplied across sessions instead of respecified on
// every call.
//
// Follows internal/codemap and internal/manifest's atomic
// write-to-temp-then-rename JSON persistence pattern.
package contextpack

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/codevault/codevault/internal/cverr"
)

// Pack is one named, reusable search scope/toggle preset.
type Pack struct {
	Key       string   `json:"key"`
	PathGlob  string   `json:"pathGlob,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Lang      string   `json:"lang,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Hybrid    bool     `json:"hybrid,omitempty"`
	BM25      bool     `json:"bm25,omitempty"`
	Symbol    bool     `json:"symbolBoost,omitempty"`
	Reranker  string   `json:"reranker,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
}

// ActiveMarker is the `{key, appliedAt}` record naming the currently
// active pack.
type ActiveMarker struct {
	Key       string `json:"key"`
	AppliedAt string `json:"appliedAt"`
}

// Manager reads and writes context packs rooted at dir
// (".codevault/contextpacks" in the on-disk layout).
type Manager struct {
	dir string
}

// New builds a Manager rooted at dir, creating it if necessary.
func New(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "create contextpacks dir", err)
	}
	return &Manager{dir: dir}, nil
}

func (m *Manager) packPath(key string) string {
	return filepath.Join(m.dir, key+".json")
}

func (m *Manager) activePath() string {
	return filepath.Join(m.dir, ".active.json")
}

// Save persists pack, overwriting any existing pack under the same key.
func (m *Manager) Save(pack Pack) error {
	if pack.Key == "" {
		return cverr.New(cverr.KindValidation, "context pack key must not be empty")
	}
	data, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return cverr.Wrap(cverr.KindProcessingError, "marshal context pack", err)
	}
	return atomicWrite(m.packPath(pack.Key), data)
}

// Load reads one pack by key.
func (m *Manager) Load(key string) (Pack, error) {
	var pack Pack
	data, err := os.ReadFile(m.packPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return pack, cverr.New(cverr.KindFileNotFound, "no context pack named "+key)
		}
		return pack, cverr.Wrap(cverr.KindIndexingError, "read context pack "+key, err)
	}
	if err := json.Unmarshal(data, &pack); err != nil {
		return pack, cverr.Wrap(cverr.KindIndexingError, "parse context pack "+key, err)
	}
	return pack, nil
}

// Delete removes a pack by key, clearing the active marker if it pointed
// at that key.
func (m *Manager) Delete(key string) error {
	if err := os.Remove(m.packPath(key)); err != nil && !os.IsNotExist(err) {
		return cverr.Wrap(cverr.KindIndexingError, "delete context pack "+key, err)
	}
	active, err := m.Active()
	if err == nil && active != nil && active.Key == key {
		if err := os.Remove(m.activePath()); err != nil && !os.IsNotExist(err) {
			return cverr.Wrap(cverr.KindIndexingError, "clear active context pack marker", err)
		}
	}
	return nil
}

// List returns every saved pack's key, sorted.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "list context packs", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" || name == ".active.json" {
			continue
		}
		keys = append(keys, name[:len(name)-len(".json")])
	}
	sort.Strings(keys)
	return keys, nil
}

// Apply marks key as the active pack, recording appliedAt (RFC3339).
// It does not verify the pack exists, so callers can apply a pack that
// is about to be saved in the same transaction.
func (m *Manager) Apply(key string, appliedAt time.Time) error {
	marker := ActiveMarker{Key: key, AppliedAt: appliedAt.UTC().Format(time.RFC3339)}
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return cverr.Wrap(cverr.KindProcessingError, "marshal active context pack marker", err)
	}
	return atomicWrite(m.activePath(), data)
}

// Active returns the currently active pack's marker, or nil if none is set.
func (m *Manager) Active() (*ActiveMarker, error) {
	data, err := os.ReadFile(m.activePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cverr.Wrap(cverr.KindIndexingError, "read active context pack marker", err)
	}
	var marker ActiveMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "parse active context pack marker", err)
	}
	return &marker, nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".contextpack-*.json")
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "create temp context pack file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindIndexingError, "write temp context pack file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindIndexingError, "close temp context pack file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return cverr.Wrap(cverr.KindIndexingError, "rename temp context pack file", err)
	}
	return nil
}
