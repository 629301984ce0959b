package chunkstore_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"rxguard-go/internal/chunkstore"
	"rxguard-go/internal/guard"
)

// stores builds one of each Store implementation for shared behavior
// tests.
func stores(t *testing.T) map[string]chunkstore.Store {
	t.Helper()
	fsStore, err := chunkstore.NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore() error = %v", err)
	}
	return map[string]chunkstore.Store{
		"filesystem": fsStore,
		"memory":     chunkstore.NewMemoryStore(),
	}
}

func TestStore(t *testing.T) {
	const hash = "0011223344556677"
	ciphertext := []byte("opaque encrypted bytes")

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("put then get", func(t *testing.T) {
				if store.Has(hash) {
					t.Fatal("Has() true before Put")
				}
				if err := store.Put(hash, ciphertext); err != nil {
					t.Fatalf("Put() error = %v", err)
				}
				if !store.Has(hash) {
					t.Error("Has() false after Put")
				}
				got, err := store.Get(hash)
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if !bytes.Equal(got, ciphertext) {
					t.Error("Get() returned different bytes")
				}
			})

			t.Run("double put is a no-op", func(t *testing.T) {
				if err := store.Put(hash, []byte("different bytes, same hash")); err != nil {
					t.Fatalf("Put() error = %v", err)
				}
				got, err := store.Get(hash)
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if !bytes.Equal(got, ciphertext) {
					t.Error("second Put overwrote existing chunk")
				}
				count, err := store.Count()
				if err != nil {
					t.Fatalf("Count() error = %v", err)
				}
				if count != 1 {
					t.Errorf("Count() = %d, want 1", count)
				}
			})

			t.Run("get missing", func(t *testing.T) {
				if _, err := store.Get("ffffffffffffffff"); !errors.Is(err, guard.ErrNotFound) {
					t.Errorf("got err %v, want ErrNotFound", err)
				}
			})
		})
	}
}

func TestFilesystemStore_Layout(t *testing.T) {
	root := t.TempDir()
	store, err := chunkstore.NewFilesystemStore(root)
	if err != nil {
		t.Fatalf("NewFilesystemStore() error = %v", err)
	}

	const hash = "ab54d286f9e8c123"
	if err := store.Put(hash, []byte("data")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// The first two hex characters shard the chunk into a subdirectory.
	want := filepath.Join(root, "ab", hash+".bin")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("chunk not at %s: %v", want, err)
	}
}
