package rank

import (
	"github.com/codevault/codevault/internal/cverr"
	"github.com/codevault/codevault/internal/store"
)

// ChunkResult is getChunk's return shape: either success and the code
// text, or a carried chunk-store error kind.
type ChunkResult struct {
	Success bool
	Code    string
	Kind    cverr.Kind
	Err     error
}

// GetChunk reads one chunk's raw code text from the content-addressed
// store by sha.
func GetChunk(s *store.Store, sha string) ChunkResult {
	code, err := s.Read(sha)
	if err != nil {
		kind, _ := cverr.KindOf(err)
		return ChunkResult{Success: false, Kind: kind, Err: err}
	}
	return ChunkResult{Success: true, Code: string(code)}
}
