package crypto

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"rxguard-go/internal/guard"
)

// MasterKeySize is the raw master key length in bytes.
const MasterKeySize = 32

// LoadOrCreateMasterKey returns the 32-byte master key stored at path,
// generating and persisting a fresh one with owner-only permissions if
// no key file exists yet. An existing key file with the wrong length is
// unrecoverable and reported as guard.ErrKeyInvalid.
func LoadOrCreateMasterKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != MasterKeySize {
			return nil, fmt.Errorf("%w: key file %s holds %d bytes, want %d",
				guard.ErrKeyInvalid, path, len(key), MasterKeySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: reading key file: %v", guard.ErrKeyInvalid, err)
	}

	key = make([]byte, MasterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating master key: %w", err)
	}
	if err := writeKeyFile(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

// writeKeyFile persists key material with 0600 permissions, creating
// parent directories as needed.
func writeKeyFile(path string, key []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(key); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}
