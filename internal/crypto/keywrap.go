package crypto

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"rxguard-go/internal/guard"
)

// ExportKey writes a passphrase-protected copy of the master key to w,
// using age's scrypt-based recipient. The exported blob is safe to move
// off-host as a recovery copy.
func ExportKey(masterKey []byte, passphrase string, w io.Writer) error {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := encWriter.Write(masterKey); err != nil {
		return fmt.Errorf("writing wrapped key: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing wrapped key: %w", err)
	}
	return nil
}

// ImportKey reads a blob produced by ExportKey, unwraps it with the
// passphrase, and persists the recovered master key at keyPath with
// owner-only permissions. It refuses to overwrite an existing key file.
func ImportKey(r io.Reader, passphrase string, keyPath string) error {
	if _, err := os.Stat(keyPath); err == nil {
		return fmt.Errorf("key file already exists at %s", keyPath)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(r, identity)
	if err != nil {
		return fmt.Errorf("unwrapping key (wrong passphrase?): %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, decReader); err != nil {
		return fmt.Errorf("reading unwrapped key: %w", err)
	}
	if buf.Len() != MasterKeySize {
		return fmt.Errorf("%w: imported key holds %d bytes, want %d",
			guard.ErrKeyInvalid, buf.Len(), MasterKeySize)
	}

	return writeKeyFile(keyPath, buf.Bytes())
}
