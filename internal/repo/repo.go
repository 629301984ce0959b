// Package repo implements the snapshot manager: scanning watched
// directories, chunking and storing file content through the chunk
// codec and store, and the manifest lifecycle (create, list, load,
// restore, verify).
package repo

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"rxguard-go/internal/chunkstore"
	"rxguard-go/internal/guard"
)

// Repo coordinates snapshots over a set of watched data directories.
// The master key is loaded once and held immutably for the lifetime of
// the Repo; a large snapshot runs synchronously on the calling
// goroutine.
type Repo struct {
	dataDirs    []string
	repoDir     string
	manifestDir string
	chunkSize   int
	store       chunkstore.Store
	masterKey   []byte
	logger      guard.Logger
	clock       guard.Clock
}

// New creates a Repo with the provided dependencies. chunkSize is the
// fixed window size files are split into during snapshots.
func New(dataDirs []string, repoDir, manifestDir string, chunkSize int, store chunkstore.Store, masterKey []byte, logger guard.Logger, clock guard.Clock) *Repo {
	return &Repo{
		dataDirs:    dataDirs,
		repoDir:     filepath.Clean(repoDir),
		manifestDir: manifestDir,
		chunkSize:   chunkSize,
		store:       store,
		masterKey:   masterKey,
		logger:      logger,
		clock:       clock,
	}
}

// Scan enumerates every regular file under the configured data
// directories. The repository's own storage location is excluded when it
// is nested inside a watched directory, which would otherwise snapshot
// our own chunks and manifests into themselves.
func (r *Repo) Scan() ([]string, error) {
	var files []string
	for _, dir := range r.dataDirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable subtree: skip it, keep scanning.
				r.logger.Warn("scan error", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if r.underRepoDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if r.underRepoDir(path) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", dir, err)
		}
	}
	return files, nil
}

// underRepoDir reports whether path is the repo dir or inside it.
func (r *Repo) underRepoDir(path string) bool {
	path = filepath.Clean(path)
	return path == r.repoDir || strings.HasPrefix(path, r.repoDir+string(filepath.Separator))
}
