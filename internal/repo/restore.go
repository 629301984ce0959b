package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rxguard-go/internal/crypto"
)

// FileFailure records one file that could not be restored.
type FileFailure struct {
	Path string
	Err  error
}

// RestoreResult aggregates the outcome of a restore. Individual file
// failures (missing chunk, I/O error) never abort the whole operation.
type RestoreResult struct {
	Restored []string
	Failures []FileFailure
}

// Restore reconstructs the files of a snapshot under destDir. Paths are
// rebuilt relative to the common root of the watched data directories.
// When prefixes is non-empty, only file entries whose recorded path
// starts with one of the prefixes are restored.
func (r *Repo) Restore(id, destDir string, prefixes []string) (*RestoreResult, error) {
	snap, err := r.LoadSnapshot(id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("creating destination: %w", err)
	}

	root := commonRoot(r.dataDirs)
	result := &RestoreResult{}
	for _, fe := range snap.Files {
		if len(prefixes) > 0 && !matchesPrefix(fe.Path, prefixes) {
			continue
		}
		outPath, err := r.restoreFile(&fe, root, destDir)
		if err != nil {
			r.logger.Warn("restore failed", "path", fe.Path, "error", err)
			result.Failures = append(result.Failures, FileFailure{Path: fe.Path, Err: err})
			continue
		}
		result.Restored = append(result.Restored, outPath)
	}

	r.logger.Info("restore finished", "id", id,
		"restored", len(result.Restored), "failed", len(result.Failures))
	return result, nil
}

// restoreFile loads and decrypts each chunk in recorded order and
// streams it to the output file. A file with no chunks is restored as
// an empty file.
func (r *Repo) restoreFile(fe *FileEntry, root, destDir string) (string, error) {
	rel, err := filepath.Rel(root, fe.Path)
	if err != nil {
		return "", fmt.Errorf("relativizing %s: %w", fe.Path, err)
	}
	outPath := filepath.Join(destDir, rel)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return "", fmt.Errorf("creating parent directory: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	for _, hash := range fe.Chunks {
		ciphertext, err := r.store.Get(hash)
		if err != nil {
			os.Remove(outPath)
			return "", err
		}
		plaintext, err := crypto.DecryptChunk(hash, ciphertext, r.masterKey)
		if err != nil {
			os.Remove(outPath)
			return "", err
		}
		if _, err := out.Write(plaintext); err != nil {
			os.Remove(outPath)
			return "", fmt.Errorf("writing output: %w", err)
		}
	}

	return outPath, nil
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// commonRoot returns the longest common ancestor directory of the given
// paths. With a single data directory this is the directory itself.
func commonRoot(paths []string) string {
	if len(paths) == 0 {
		return string(filepath.Separator)
	}
	sep := string(filepath.Separator)
	parts := strings.Split(filepath.Clean(paths[0]), sep)
	for _, p := range paths[1:] {
		other := strings.Split(filepath.Clean(p), sep)
		var i int
		for i = 0; i < len(parts) && i < len(other); i++ {
			if parts[i] != other[i] {
				break
			}
		}
		parts = parts[:i]
	}
	root := strings.Join(parts, sep)
	if root == "" {
		return sep
	}
	return root
}
