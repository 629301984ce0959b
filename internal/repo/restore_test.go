package repo_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRestore(t *testing.T) {
	t.Run("prefix filter restores matching files only", func(t *testing.T) {
		dataDir := t.TempDir()
		writeFile(t, filepath.Join(dataDir, "records", "a.dat"), []byte("alpha"))
		writeFile(t, filepath.Join(dataDir, "imaging", "b.dat"), []byte("bravo"))

		r, _, _ := newTestRepo(t, []string{dataDir}, t.TempDir())
		snap, err := r.CreateSnapshot("")
		if err != nil {
			t.Fatalf("CreateSnapshot() error = %v", err)
		}

		dest := t.TempDir()
		result, err := r.Restore(snap.ID, dest, []string{filepath.Join(dataDir, "records")})
		if err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if len(result.Restored) != 1 {
			t.Fatalf("restored %d files, want 1", len(result.Restored))
		}
		got, err := os.ReadFile(filepath.Join(dest, "records", "a.dat"))
		if err != nil {
			t.Fatalf("reading restored file: %v", err)
		}
		if !bytes.Equal(got, []byte("alpha")) {
			t.Error("restored content differs")
		}
		if _, err := os.Stat(filepath.Join(dest, "imaging", "b.dat")); err == nil {
			t.Error("filtered file was restored")
		}
	})

	t.Run("missing chunk fails one file not the restore", func(t *testing.T) {
		dataDir := t.TempDir()
		writeFile(t, filepath.Join(dataDir, "lost.dat"), []byte("this chunk will vanish"))
		writeFile(t, filepath.Join(dataDir, "kept.dat"), []byte("this one survives"))

		r, store, _ := newTestRepo(t, []string{dataDir}, t.TempDir())
		snap, err := r.CreateSnapshot("")
		if err != nil {
			t.Fatalf("CreateSnapshot() error = %v", err)
		}

		for _, fe := range snap.Files {
			if filepath.Base(fe.Path) == "lost.dat" {
				store.Delete(fe.Chunks[0])
			}
		}

		dest := t.TempDir()
		result, err := r.Restore(snap.ID, dest, nil)
		if err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if len(result.Restored) != 1 {
			t.Errorf("restored %d files, want 1", len(result.Restored))
		}
		if len(result.Failures) != 1 {
			t.Fatalf("got %d failures, want 1", len(result.Failures))
		}
		if filepath.Base(result.Failures[0].Path) != "lost.dat" {
			t.Errorf("failed file = %s, want lost.dat", result.Failures[0].Path)
		}
		if _, err := os.Stat(filepath.Join(dest, "kept.dat")); err != nil {
			t.Errorf("surviving file not restored: %v", err)
		}
		// The partial output of the failed file must not be left behind.
		if _, err := os.Stat(filepath.Join(dest, "lost.dat")); err == nil {
			t.Error("partial output left for failed file")
		}
	})

	t.Run("multiple data dirs share a common root", func(t *testing.T) {
		base := t.TempDir()
		dirA := filepath.Join(base, "share-a")
		dirB := filepath.Join(base, "share-b")
		writeFile(t, filepath.Join(dirA, "a.dat"), []byte("aaa"))
		writeFile(t, filepath.Join(dirB, "b.dat"), []byte("bbb"))

		r, _, _ := newTestRepo(t, []string{dirA, dirB}, t.TempDir())
		snap, err := r.CreateSnapshot("")
		if err != nil {
			t.Fatalf("CreateSnapshot() error = %v", err)
		}

		dest := t.TempDir()
		if _, err := r.Restore(snap.ID, dest, nil); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		// Paths are rebuilt relative to the dirs' common root.
		for _, rel := range []string{
			filepath.Join("share-a", "a.dat"),
			filepath.Join("share-b", "b.dat"),
		} {
			if _, err := os.Stat(filepath.Join(dest, rel)); err != nil {
				t.Errorf("expected restored file at %s: %v", rel, err)
			}
		}
	})
}
