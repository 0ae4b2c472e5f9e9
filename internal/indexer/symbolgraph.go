package indexer

import "path/filepath"

// maxSymbolNeighbors caps how many resolved neighbors one chunk records.
const maxSymbolNeighbors = 16

type symbolLocation struct {
	chunkID  string
	filePath string
	pkg      string
}

// buildSymbolGraph resolves each chunk's symbol_calls entries to the
// chunk IDs of matching symbol definitions, preferring the same file,
// then the same package (directory), then the rest of the project, and
// persists the result to both the metadata database and the codemap.
func (ix *Indexer) buildSymbolGraph() error {
	chunks, err := ix.metaDB.GetChunks(ix.provider.Name(), ix.provider.Dimensions())
	if err != nil {
		return err
	}

	bySymbol := make(map[string][]symbolLocation, len(chunks))
	for _, c := range chunks {
		if c.Symbol == "" {
			continue
		}
		bySymbol[c.Symbol] = append(bySymbol[c.Symbol], symbolLocation{
			chunkID:  c.ChunkID,
			filePath: c.FilePath,
			pkg:      filepath.Dir(c.FilePath),
		})
	}

	for _, c := range chunks {
		if len(c.SymbolCalls) == 0 {
			continue
		}
		neighbors := resolveNeighbors(c.ChunkID, c.FilePath, c.SymbolCalls, bySymbol)
		if len(neighbors) == 0 {
			continue
		}
		if err := ix.metaDB.SetNeighbors(c.ChunkID, neighbors); err != nil {
			continue
		}
		ix.codemap.SetNeighbors(c.ChunkID, neighbors)
	}
	return nil
}

// resolveNeighbors resolves callee names to chunk IDs in same-file →
// same-package → project-wide scope order, deduplicated and capped at
// maxSymbolNeighbors.
func resolveNeighbors(selfChunkID, selfFilePath string, calls []string, bySymbol map[string][]symbolLocation) []string {
	pkg := filepath.Dir(selfFilePath)
	seen := map[string]bool{selfChunkID: true}
	var neighbors []string

	tryScope := func(scope func(symbolLocation) bool) {
		for _, callee := range calls {
			for _, loc := range bySymbol[callee] {
				if len(neighbors) >= maxSymbolNeighbors {
					return
				}
				if seen[loc.chunkID] || !scope(loc) {
					continue
				}
				seen[loc.chunkID] = true
				neighbors = append(neighbors, loc.chunkID)
			}
		}
	}

	tryScope(func(l symbolLocation) bool { return l.filePath == selfFilePath })
	if len(neighbors) < maxSymbolNeighbors {
		tryScope(func(l symbolLocation) bool { return l.pkg == pkg })
	}
	if len(neighbors) < maxSymbolNeighbors {
		tryScope(func(symbolLocation) bool { return true })
	}
	return neighbors
}
