package indexer

import (
	"os"
	"path/filepath"
	"strings"
)

// defaultIgnoreDirs lists the standard vcs/dependency/build-output
// exclusions, extended with ".codevault/" itself so an index never walks
// its own artifacts.
var defaultIgnoreDirs = []string{
	".git", ".hg", ".svn", ".codevault",
	"node_modules", "vendor", "dist", "build", "out", ".cache",
	"target", "bin", "obj",
}

// lockfileNames are skipped regardless of extension match, since they are
// not meaningfully chunkable source.
var lockfileNames = map[string]bool{
	"go.sum": true, "package-lock.json": true, "yarn.lock": true,
	"pnpm-lock.yaml": true, "Cargo.lock": true, "poetry.lock": true,
}

func shouldSkipDir(name string) bool {
	for _, d := range defaultIgnoreDirs {
		if name == d {
			return true
		}
	}
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// scanRepo walks repoPath, returning every project-relative (POSIX-style)
// path whose extension the registry supports.
func (ix *Indexer) scanRepo(repoPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(repoPath, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != repoPath && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if lockfileNames[d.Name()] {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if !ix.chunker.IsSupported(ext) {
			return nil
		}
		rel, err := filepath.Rel(repoPath, p)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
