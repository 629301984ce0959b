package crypto_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"rxguard-go/internal/crypto"
	"rxguard-go/internal/testutil"
)

func TestKeyExportImport(t *testing.T) {
	key := testutil.MasterKey()

	t.Run("round trip", func(t *testing.T) {
		var wrapped bytes.Buffer
		if err := crypto.ExportKey(key, "correct horse", &wrapped); err != nil {
			t.Fatalf("ExportKey() error = %v", err)
		}

		keyPath := filepath.Join(t.TempDir(), "keys", "master.key")
		if err := crypto.ImportKey(&wrapped, "correct horse", keyPath); err != nil {
			t.Fatalf("ImportKey() error = %v", err)
		}

		restored, err := os.ReadFile(keyPath)
		if err != nil {
			t.Fatalf("reading restored key: %v", err)
		}
		if !bytes.Equal(restored, key) {
			t.Error("restored key differs from original")
		}
	})

	t.Run("wrong passphrase fails", func(t *testing.T) {
		var wrapped bytes.Buffer
		if err := crypto.ExportKey(key, "right", &wrapped); err != nil {
			t.Fatalf("ExportKey() error = %v", err)
		}

		keyPath := filepath.Join(t.TempDir(), "master.key")
		if err := crypto.ImportKey(&wrapped, "wrong", keyPath); err == nil {
			t.Error("ImportKey() succeeded with wrong passphrase")
		}
		if _, statErr := os.Stat(keyPath); statErr == nil {
			t.Error("key file was written despite failed import")
		}
	})

	t.Run("refuses to overwrite existing key", func(t *testing.T) {
		keyPath := filepath.Join(t.TempDir(), "master.key")
		if err := os.WriteFile(keyPath, key, 0600); err != nil {
			t.Fatal(err)
		}

		var wrapped bytes.Buffer
		if err := crypto.ExportKey(key, "pass", &wrapped); err != nil {
			t.Fatalf("ExportKey() error = %v", err)
		}
		if err := crypto.ImportKey(&wrapped, "pass", keyPath); err == nil {
			t.Error("ImportKey() overwrote an existing key file")
		}
	})
}
