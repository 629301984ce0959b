package chunkstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rxguard-go/internal/guard"
)

// FilesystemStore stores one file per chunk under root:
//
//	<root>/
//	  <hash[0:2]>/
//	    <hash>.bin    (raw AEAD ciphertext plus tag)
//
// The two-hex-character shard directory bounds fan-out in any single
// directory.
type FilesystemStore struct {
	root string
}

var _ Store = (*FilesystemStore)(nil)

// NewFilesystemStore creates a chunk store rooted at the given path.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating chunk root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

// chunkPath maps a hash to its on-disk location.
func (s *FilesystemStore) chunkPath(hash string) string {
	return filepath.Join(s.root, hash[:2], hash+".bin")
}

func (s *FilesystemStore) Has(hash string) bool {
	_, err := os.Stat(s.chunkPath(hash))
	return err == nil
}

func (s *FilesystemStore) Put(hash string, ciphertext []byte) error {
	path := s.chunkPath(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating shard directory: %w", err)
	}
	if err := os.WriteFile(path, ciphertext, 0644); err != nil {
		return fmt.Errorf("writing chunk %s: %w", hash, err)
	}
	return nil
}

func (s *FilesystemStore) Get(hash string) ([]byte, error) {
	data, err := os.ReadFile(s.chunkPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: chunk %s", guard.ErrNotFound, hash)
		}
		return nil, fmt.Errorf("reading chunk %s: %w", hash, err)
	}
	return data, nil
}

func (s *FilesystemStore) Count() (int, error) {
	count := 0
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".bin") {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}
