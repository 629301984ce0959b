package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"rxguard-go/internal/crypto"
	"rxguard-go/internal/guard"
)

// SnapshotVersion is the manifest format version.
const SnapshotVersion = 1

// snapshotIDFormat yields ids whose lexicographic order equals their
// chronological order.
const snapshotIDFormat = "20060102T150405Z"

// FileEntry records one file in a snapshot. The concatenation of the
// chunks, in order, reconstructs the file exactly.
type FileEntry struct {
	Path    string   `json:"path"`
	Size    int64    `json:"size"`
	MtimeNs int64    `json:"mtime_ns"`
	Chunks  []string `json:"chunks"`
}

// Snapshot is an immutable manifest of file entries. Once persisted it
// is never modified or deleted by the core; retention is an external
// policy.
type Snapshot struct {
	ID        string      `json:"id"`
	CreatedAt string      `json:"created_at"`
	Version   int         `json:"version"`
	Label     string      `json:"label,omitempty"`
	Files     []FileEntry `json:"files"`
}

// CreateSnapshot scans the data directories, chunks and stores every
// discovered file, and persists the resulting manifest. Per-file I/O
// errors (permission denied, file vanished mid-scan) skip that file
// rather than aborting the snapshot; a partial snapshot is a designed
// outcome.
func (r *Repo) CreateSnapshot(label string) (*Snapshot, error) {
	files, err := r.Scan()
	if err != nil {
		return nil, fmt.Errorf("scanning data directories: %w", err)
	}

	entries := make([]FileEntry, 0, len(files))
	skipped := 0
	for _, path := range files {
		entry, err := r.snapshotFile(path)
		if err != nil {
			r.logger.Warn("skipping file", "path", path, "error", err)
			skipped++
			continue
		}
		entries = append(entries, *entry)
	}

	now := r.clock.Now().UTC()
	id, err := r.newSnapshotID(now)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:        id,
		CreatedAt: now.Format(time.RFC3339),
		Version:   SnapshotVersion,
		Label:     label,
		Files:     entries,
	}
	if err := r.persistManifest(snap); err != nil {
		return nil, err
	}

	r.logger.Info("snapshot created", "id", id, "files", len(entries), "skipped", skipped)
	return snap, nil
}

// snapshotFile streams one file in fixed-size windows, encrypting and
// storing each window and recording the ordered chunk hashes.
func (r *Repo) snapshotFile(path string) (*FileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	chunks := []string{}
	buf := make([]byte, r.chunkSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			hash, ciphertext, encErr := crypto.EncryptChunk(buf[:n], r.masterKey)
			if encErr != nil {
				return nil, encErr
			}
			if !r.store.Has(hash) {
				if putErr := r.store.Put(hash, ciphertext); putErr != nil {
					return nil, putErr
				}
			}
			chunks = append(chunks, hash)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return &FileEntry{
		Path:    path,
		Size:    info.Size(),
		MtimeNs: info.ModTime().UnixNano(),
		Chunks:  chunks,
	}, nil
}

// newSnapshotID derives the id from the wall clock at second
// resolution. Two snapshots within the same second get a monotonic
// suffix so ids never collide.
func (r *Repo) newSnapshotID(now time.Time) (string, error) {
	base := now.Format(snapshotIDFormat)
	id := base
	for n := 2; ; n++ {
		_, err := os.Stat(r.manifestPath(id))
		if os.IsNotExist(err) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking manifest %s: %w", id, err)
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

func (r *Repo) manifestPath(id string) string {
	return filepath.Join(r.manifestDir, id+".json")
}

func (r *Repo) persistManifest(snap *Snapshot) error {
	if err := os.MkdirAll(r.manifestDir, 0755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(r.manifestPath(snap.ID), data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ListSnapshots returns all snapshot ids in chronological order.
func (r *Repo) ListSnapshots() ([]string, error) {
	entries, err := os.ReadDir(r.manifestDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading manifest directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadSnapshot reads and decodes the manifest for the given id.
func (r *Repo) LoadSnapshot(id string) (*Snapshot, error) {
	data, err := os.ReadFile(r.manifestPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: snapshot %s", guard.ErrNotFound, id)
		}
		return nil, fmt.Errorf("reading manifest %s: %w", id, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", guard.ErrCorruptManifest, id, err)
	}
	return &snap, nil
}
