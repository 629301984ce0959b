package crypto_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"rxguard-go/internal/crypto"
	"rxguard-go/internal/guard"
)

func TestLoadOrCreateMasterKey(t *testing.T) {
	t.Run("creates key on first use", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "keys", "master.key")

		key, err := crypto.LoadOrCreateMasterKey(path)
		if err != nil {
			t.Fatalf("LoadOrCreateMasterKey() error = %v", err)
		}
		if len(key) != crypto.MasterKeySize {
			t.Errorf("key length = %d, want %d", len(key), crypto.MasterKeySize)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat key file: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("key file permissions = %o, want 0600", perm)
		}
	})

	t.Run("loads existing key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "master.key")

		first, err := crypto.LoadOrCreateMasterKey(path)
		if err != nil {
			t.Fatalf("LoadOrCreateMasterKey() error = %v", err)
		}
		second, err := crypto.LoadOrCreateMasterKey(path)
		if err != nil {
			t.Fatalf("LoadOrCreateMasterKey() error = %v", err)
		}
		if !bytes.Equal(first, second) {
			t.Error("second load returned a different key")
		}
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "master.key")
		if err := os.WriteFile(path, []byte("short"), 0600); err != nil {
			t.Fatal(err)
		}

		_, err := crypto.LoadOrCreateMasterKey(path)
		if !errors.Is(err, guard.ErrKeyInvalid) {
			t.Errorf("got err %v, want ErrKeyInvalid", err)
		}
	})
}
