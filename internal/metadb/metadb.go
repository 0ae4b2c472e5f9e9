// Package metadb persists chunk and file metadata in the project's SQLite
// database at ".codevault/metadata.db", alongside query-pattern and
// intention log tables. The package writes those logs (RecordQueryPattern,
// RecordIntention) and has no call that reads them back.
//
// Migrations run through golang-migrate + mattn/go-sqlite3 against an
// embed.FS migration source, WAL journal mode, a single-connection pool
// (SQLite favors one writer), and an in-memory file-id cache to avoid a
// lookup round trip per chunk (see DESIGN.md for the full schema
// rationale).
package metadb

import (
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codevault/codevault/internal/cverr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Chunk is the database-shaped record a chunk is persisted and retrieved
// as: everything the codemap and ranker need, minus the raw code text
// (which lives in the content-addressed chunk store).
type Chunk struct {
	ChunkID          string
	Sha              string
	FilePath         string
	Symbol           string
	ChunkType        string
	Language         string
	Provider         string
	Dimensions       int
	Embedding        []float32
	SymbolSignature  string
	SymbolParameters []string
	SymbolReturn     string
	SymbolCalls      []string
	SymbolNeighbors  []string
	Tags             []string
	Intent           string
	Description      string
	Docs             string
	Encrypted        bool
	StartLine        uint32
	EndLine          uint32
}

// ProviderDimensions names one (embedding provider, dimensionality) pair
// currently present in the database. The indexer compares these with the
// active provider and logs a warning on a mismatch; it does not re-embed.
type ProviderDimensions struct {
	Provider   string
	Dimensions int
}

// DB wraps the project metadata database.
type DB struct {
	conn   *sql.DB
	path   string
	fileMu sync.RWMutex
	fileID map[string]int64
}

// Open opens (creating if necessary) the metadata database at path and
// applies any pending migrations.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "create metadata db directory", err)
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "open metadata db", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, cverr.Wrap(cverr.KindIndexingError, "run metadata db migrations", err)
	}

	return &DB{conn: conn, path: path, fileID: make(map[string]int64)}, nil
}

func runMigrations(conn *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	dbDriver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) cacheFileID(path string, id int64) {
	d.fileMu.Lock()
	d.fileID[path] = id
	d.fileMu.Unlock()
}

func (d *DB) cachedFileID(path string) (int64, bool) {
	d.fileMu.RLock()
	defer d.fileMu.RUnlock()
	id, ok := d.fileID[path]
	return id, ok
}

func (d *DB) resolveFileID(relPath, shaFile string) (int64, error) {
	if id, ok := d.cachedFileID(relPath); ok {
		return id, nil
	}

	var id int64
	row := d.conn.QueryRow(`SELECT id FROM files WHERE file_path = ?`, relPath)
	err := row.Scan(&id)
	switch {
	case err == nil:
		d.cacheFileID(relPath, id)
		return id, nil
	case err == sql.ErrNoRows:
		res, execErr := d.conn.Exec(
			`INSERT INTO files (file_path, sha_file) VALUES (?, ?)`, relPath, shaFile)
		if execErr != nil {
			return 0, fmt.Errorf("insert file %s: %w", relPath, execErr)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("resolve inserted file id for %s: %w", relPath, err)
		}
		d.cacheFileID(relPath, id)
		return id, nil
	default:
		return 0, fmt.Errorf("lookup file %s: %w", relPath, err)
	}
}

// InsertChunk inserts or replaces a chunk row, keyed on (chunk_id,
// provider, dimensions) so the same chunk re-embedded under a different
// model coexists rather than clobbering the prior embedding.
func (d *DB) InsertChunk(c Chunk) error {
	if _, err := d.resolveFileID(c.FilePath, c.Sha); err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "resolve file id", err)
	}

	embeddingBytes, err := floatsToBytes(c.Embedding)
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "encode embedding", err)
	}

	encrypted := 0
	if c.Encrypted {
		encrypted = 1
	}

	_, err = d.conn.Exec(`
		INSERT INTO chunks (
			chunk_id, sha, file_path, symbol, chunk_type, lang, provider, dimensions,
			embedding, symbol_signature, symbol_parameters, symbol_return, symbol_calls,
			symbol_neighbors, tags, intent, description, docs, encrypted, start_line, end_line
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, provider, dimensions) DO UPDATE SET
			sha = excluded.sha,
			file_path = excluded.file_path,
			symbol = excluded.symbol,
			chunk_type = excluded.chunk_type,
			lang = excluded.lang,
			embedding = excluded.embedding,
			symbol_signature = excluded.symbol_signature,
			symbol_parameters = excluded.symbol_parameters,
			symbol_return = excluded.symbol_return,
			symbol_calls = excluded.symbol_calls,
			symbol_neighbors = excluded.symbol_neighbors,
			tags = excluded.tags,
			intent = excluded.intent,
			description = excluded.description,
			docs = excluded.docs,
			encrypted = excluded.encrypted,
			start_line = excluded.start_line,
			end_line = excluded.end_line
	`,
		c.ChunkID, c.Sha, c.FilePath, c.Symbol, c.ChunkType, c.Language, c.Provider, c.Dimensions,
		embeddingBytes, c.SymbolSignature, joinList(c.SymbolParameters), c.SymbolReturn, joinList(c.SymbolCalls),
		joinList(c.SymbolNeighbors), joinList(c.Tags), c.Intent, c.Description, c.Docs, encrypted, c.StartLine, c.EndLine,
	)
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "insert chunk "+c.ChunkID, err)
	}
	return nil
}

// SetNeighbors updates a chunk's resolved symbol-neighbor list from the
// symbol graph pass, across every provider/dimensions row sharing
// chunk_id since neighbor resolution does not depend on the embedding
// model.
func (d *DB) SetNeighbors(chunkID string, neighbors []string) error {
	_, err := d.conn.Exec(`UPDATE chunks SET symbol_neighbors = ? WHERE chunk_id = ?`, joinList(neighbors), chunkID)
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "set neighbors for "+chunkID, err)
	}
	return nil
}

// DeleteChunks removes chunks by chunk_id, regardless of provider/dimensions.
func (d *DB) DeleteChunks(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := d.conn.Begin()
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "begin delete chunks", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`DELETE FROM chunks WHERE chunk_id = ?`)
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "prepare delete chunks", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			return cverr.Wrap(cverr.KindIndexingError, "delete chunk "+id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "commit delete chunks", err)
	}
	return nil
}

// CountBySha reports how many chunk rows still reference sha, so a
// caller can tell whether the content-addressed blob is safe to delete
// or still shared by another file's chunk with identical content.
func (d *DB) CountBySha(sha string) (int, error) {
	var n int
	if err := d.conn.QueryRow(`SELECT COUNT(*) FROM chunks WHERE sha = ?`, sha).Scan(&n); err != nil {
		return 0, cverr.Wrap(cverr.KindIndexingError, "count chunks by sha "+sha, err)
	}
	return n, nil
}

// DeleteByFilePath removes every chunk and the file record for rel, the
// cleanup path a deleted or no-longer-parseable file takes.
func (d *DB) DeleteByFilePath(rel string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "begin delete by file", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunks WHERE file_path = ?`, rel); err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "delete chunks for "+rel, err)
	}
	if _, err := tx.Exec(`DELETE FROM files WHERE file_path = ?`, rel); err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "delete file row for "+rel, err)
	}
	if err := tx.Commit(); err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "commit delete by file", err)
	}

	d.fileMu.Lock()
	delete(d.fileID, rel)
	d.fileMu.Unlock()
	return nil
}

// GetChunks returns every chunk embedded under the given provider/dimensions.
func (d *DB) GetChunks(provider string, dimensions int) ([]Chunk, error) {
	rows, err := d.conn.Query(`
		SELECT chunk_id, sha, file_path, symbol, chunk_type, lang, provider, dimensions,
			embedding, symbol_signature, symbol_parameters, symbol_return, symbol_calls,
			symbol_neighbors, tags, intent, description, docs, encrypted, start_line, end_line
		FROM chunks WHERE provider = ? AND dimensions = ?
	`, provider, dimensions)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "query chunks", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetOverviewChunks returns up to limit chunks, preferring container and
// file_section chunks, for the MCP getOverview surface.
func (d *DB) GetOverviewChunks(limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.Query(`
		SELECT chunk_id, sha, file_path, symbol, chunk_type, lang, provider, dimensions,
			embedding, symbol_signature, symbol_parameters, symbol_return, symbol_calls,
			symbol_neighbors, tags, intent, description, docs, encrypted, start_line, end_line
		FROM chunks
		ORDER BY
			CASE chunk_type WHEN 'container' THEN 0 WHEN 'file_section' THEN 1 ELSE 2 END,
			file_path ASC, start_line ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "query overview chunks", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetAllFilePaths returns every file path recorded in the files table.
// The indexer finds deletions by comparing its scan with the manifest,
// not with this list.
func (d *DB) GetAllFilePaths() ([]string, error) {
	rows, err := d.conn.Query(`SELECT file_path FROM files`)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "query file paths", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, cverr.Wrap(cverr.KindIndexingError, "scan file path", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// GetExistingDimensions returns every distinct (provider, dimensions) pair
// currently stored, so the indexer can warn when the active provider's
// pair differs from what is stored.
func (d *DB) GetExistingDimensions() ([]ProviderDimensions, error) {
	rows, err := d.conn.Query(`SELECT DISTINCT provider, dimensions FROM chunks`)
	if err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "query existing dimensions", err)
	}
	defer rows.Close()

	var out []ProviderDimensions
	for rows.Next() {
		var pd ProviderDimensions
		if err := rows.Scan(&pd.Provider, &pd.Dimensions); err != nil {
			return nil, cverr.Wrap(cverr.KindIndexingError, "scan provider dimensions", err)
		}
		out = append(out, pd)
	}
	return out, rows.Err()
}

// RecordQueryPattern upserts a query pattern's hit count and last-seen
// time.
func (d *DB) RecordQueryPattern(pattern string) error {
	_, err := d.conn.Exec(`
		INSERT INTO query_patterns (pattern, hit_count, last_seen_at)
		VALUES (?, 1, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(pattern) DO UPDATE SET
			hit_count = hit_count + 1,
			last_seen_at = excluded.last_seen_at
	`, pattern)
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "record query pattern", err)
	}
	return nil
}

// RecordIntention logs a search's normalized/raw query and its top
// result's sha and score. The ranker's intent boost reads chunk intents,
// not this log.
func (d *DB) RecordIntention(normalizedQuery, rawQuery, topSha string, score float64) error {
	_, err := d.conn.Exec(`
		INSERT INTO intentions (normalized_query, raw_query, top_sha, score)
		VALUES (?, ?, ?, ?)
	`, normalizedQuery, rawQuery, topSha, score)
	if err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "record intention", err)
	}
	return nil
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var out []Chunk
	for rows.Next() {
		var c Chunk
		var embeddingBytes []byte
		var symbolParameters, symbolCalls, symbolNeighbors, tags string
		var encrypted int
		if err := rows.Scan(
			&c.ChunkID, &c.Sha, &c.FilePath, &c.Symbol, &c.ChunkType, &c.Language, &c.Provider, &c.Dimensions,
			&embeddingBytes, &c.SymbolSignature, &symbolParameters, &c.SymbolReturn, &symbolCalls,
			&symbolNeighbors, &tags, &c.Intent, &c.Description, &c.Docs, &encrypted, &c.StartLine, &c.EndLine,
		); err != nil {
			return nil, cverr.Wrap(cverr.KindIndexingError, "scan chunk row", err)
		}
		vec, err := bytesToFloats(embeddingBytes)
		if err != nil {
			return nil, cverr.Wrap(cverr.KindIndexingError, "decode embedding", err)
		}
		c.Embedding = vec
		c.SymbolParameters = splitList(symbolParameters)
		c.SymbolCalls = splitList(symbolCalls)
		c.SymbolNeighbors = splitList(symbolNeighbors)
		c.Tags = splitList(tags)
		c.Encrypted = encrypted != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

const listSep = "\x1f"

func joinList(items []string) string {
	return strings.Join(items, listSep)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSep)
}

func floatsToBytes(floats []float32) ([]byte, error) {
	if len(floats) == 0 {
		return nil, nil
	}
	out := make([]byte, 4*len(floats))
	for i, f := range floats {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out, nil
}

func bytesToFloats(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding byte length %d not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
