package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codevault/codevault/internal/chunker"
	"github.com/codevault/codevault/internal/codemap"
	"github.com/codevault/codevault/internal/embedder"
	"github.com/codevault/codevault/internal/manifest"
	"github.com/codevault/codevault/internal/metadb"
)

// fileResult is one file's processing outcome, aggregated by Run into the
// overall Result.
type fileResult struct {
	RelPath string
	Skipped bool
	Chunks  int
	Stats   chunker.Stats
	Errors  []string
}

// processFile skips a file if its whole-file hash is unchanged,
// otherwise chunks, embeds, persists, and fully replaces the file's
// prior chunk/codemap/manifest state with the freshly produced one. A
// chunk that fails to embed or persist is recorded as an error but
// does not abort the rest of the file.
func (ix *Indexer) processFile(ctx context.Context, relPath string) fileResult {
	absPath := filepath.Join(ix.repoRoot, relPath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return fileResult{RelPath: relPath, Errors: []string{fmt.Sprintf("read %s: %v", relPath, err)}}
	}

	fileHash := manifest.HashFile(content)
	if ix.manifest.Unchanged(relPath, fileHash) {
		return fileResult{RelPath: relPath, Skipped: true}
	}

	chunks, stats := ix.chunker.ChunkFile(relPath, content, ix.profile)

	items := make([]embedder.Item, len(chunks))
	for i, c := range chunks {
		items[i] = embedder.Item{ChunkID: c.ChunkID, Text: c.Code}
	}
	results, _ := ix.embedder.ProcessBatch(ctx, items)
	byID := make(map[string]embedder.Result, len(results))
	for _, r := range results {
		byID[r.ChunkID] = r
	}

	// Replace-the-file semantics: the new chunk set fully supersedes the
	// old one, so prior rows are dropped up front rather than tracked for
	// incremental reconciliation. The prior manifest entry records which
	// shas this file produced last run; once its DB rows are gone, any of
	// those shas with no remaining referrer is a now-orphaned blob and is
	// deleted from the store too.
	var prevShas []string
	if prevEntry, ok := ix.manifest.Get(relPath); ok {
		prevShas = prevEntry.ChunkShas
	}

	if err := ix.metaDB.DeleteByFilePath(relPath); err != nil {
		return fileResult{RelPath: relPath, Errors: []string{fmt.Sprintf("clear prior chunks for %s: %v", relPath, err)}}
	}
	ix.codemap.DeleteByFilePath(relPath)
	ix.deleteOrphanedBlobs(prevShas)

	fr := fileResult{RelPath: relPath, Stats: stats}
	newShas := make([]string, 0, len(chunks))

	for _, c := range chunks {
		r, ok := byID[c.ChunkID]
		if !ok || r.Err != nil {
			msg := "no embedding result"
			if ok && r.Err != nil {
				msg = r.Err.Error()
			}
			fr.Errors = append(fr.Errors, fmt.Sprintf("embed %s: %s", c.ChunkID, msg))
			continue
		}

		if err := ix.store.Write(c.Sha, []byte(c.Code), ix.encrypt); err != nil {
			fr.Errors = append(fr.Errors, fmt.Sprintf("write blob %s: %v", c.Sha, err))
			continue
		}

		dbChunk := metadb.Chunk{
			ChunkID:          c.ChunkID,
			Sha:              c.Sha,
			FilePath:         c.FilePath,
			Symbol:           c.Symbol,
			ChunkType:        c.ChunkType,
			Language:         c.Language,
			Provider:         ix.provider.Name(),
			Dimensions:       ix.provider.Dimensions(),
			Embedding:        r.Embedding,
			SymbolSignature:  c.Signature,
			SymbolParameters: c.Parameters,
			SymbolReturn:     c.ReturnType,
			SymbolCalls:      c.Calls,
			Tags:             c.Tags,
			Intent:           c.Intent,
			Description:      c.Description,
			Docs:             c.DocString,
			Encrypted:        ix.encrypt,
			StartLine:        c.StartLine,
			EndLine:          c.EndLine,
		}
		if err := ix.metaDB.InsertChunk(dbChunk); err != nil {
			fr.Errors = append(fr.Errors, fmt.Sprintf("insert chunk %s: %v", c.ChunkID, err))
			continue
		}

		ix.codemap.Set(c.ChunkID, codemap.Entry{
			Sha:         c.Sha,
			FilePath:    c.FilePath,
			Symbol:      c.Symbol,
			ChunkType:   c.ChunkType,
			Language:    c.Language,
			Tags:        c.Tags,
			Intent:      c.Intent,
			Description: c.Description,
			Signature:   c.Signature,
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
		})
		newShas = append(newShas, c.Sha)
		fr.Chunks++
	}

	ix.manifest.Set(relPath, manifest.Entry{ShaFile: fileHash, ChunkShas: newShas})
	return fr
}

// processDeletion removes every trace of relPath from the database,
// codemap, manifest, and (for any sha this file no longer shares with
// another file) the content-addressed blob store.
func (ix *Indexer) processDeletion(relPath string) error {
	var prevShas []string
	if prevEntry, ok := ix.manifest.Get(relPath); ok {
		prevShas = prevEntry.ChunkShas
	}

	if err := ix.metaDB.DeleteByFilePath(relPath); err != nil {
		return err
	}
	ix.codemap.DeleteByFilePath(relPath)
	ix.manifest.Delete(relPath)
	ix.deleteOrphanedBlobs(prevShas)
	return nil
}

// deleteOrphanedBlobs removes each sha's content-addressed blob from the
// store, skipping any sha still referenced by another file's chunk.
// Errors are swallowed: a stray blob left on disk is harmless, while
// failing the whole indexing pass over a missing-file cleanup is not
// worth the disruption.
func (ix *Indexer) deleteOrphanedBlobs(shas []string) {
	for _, sha := range shas {
		n, err := ix.metaDB.CountBySha(sha)
		if err != nil || n > 0 {
			continue
		}
		_ = ix.store.Delete(sha)
	}
}
