// Package crypto implements the deterministic chunk codec: content
// addressing by xxHash64, per-chunk key derivation with HKDF-SHA256,
// and ChaCha20-Poly1305 AEAD encryption.
//
// Encryption is convergent: identical plaintext always yields the same
// hash and the same ciphertext, which is what makes chunk deduplication
// work. The deliberate cost is that equal chunks are observably equal
// in storage. The 64-bit content hash is likewise a deliberate format
// decision carried over from the original deployment; it is fast but
// not collision-resistant (birthday bound near 2^32 chunks), so it
// identifies chunks rather than authenticating them — authentication
// comes from the AEAD tag.
package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"rxguard-go/internal/guard"
)

// chunkInfoPrefix is the HKDF context string; binding the chunk hash
// into the info gives every distinct chunk its own key and nonce while
// keeping derivation fully deterministic.
const chunkInfoPrefix = "rxguard:chunk:"

// ComputeHash returns the hex-encoded xxHash64 digest of plaintext.
// This is the chunk's content address, used for identity and dedup only.
func ComputeHash(plaintext []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(plaintext))
}

// deriveChunkKeyAndNonce expands the master key into a per-chunk
// ChaCha20-Poly1305 key and nonce via HKDF-SHA256.
func deriveChunkKeyAndNonce(masterKey []byte, hash string) (key, nonce []byte, err error) {
	r := hkdf.New(sha256.New, masterKey, nil, []byte(chunkInfoPrefix+hash))
	material := make([]byte, chacha20poly1305.KeySize+chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(r, material); err != nil {
		return nil, nil, fmt.Errorf("deriving chunk key: %w", err)
	}
	return material[:chacha20poly1305.KeySize], material[chacha20poly1305.KeySize:], nil
}

// EncryptChunk encrypts plaintext deterministically under the master
// key and returns the chunk's content hash together with the AEAD
// ciphertext. The hash is bound as associated data so a ciphertext
// cannot be silently rebound to a different chunk identity.
func EncryptChunk(plaintext, masterKey []byte) (hash string, ciphertext []byte, err error) {
	hash = ComputeHash(plaintext)
	key, nonce, err := deriveChunkKeyAndNonce(masterKey, hash)
	if err != nil {
		return "", nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", nil, fmt.Errorf("creating cipher: %w", err)
	}
	return hash, aead.Seal(nil, nonce, plaintext, []byte(hash)), nil
}

// DecryptChunk reverses EncryptChunk. A failed authentication tag is
// reported as guard.ErrIntegrity; altered plaintext is never returned.
func DecryptChunk(hash string, ciphertext, masterKey []byte) ([]byte, error) {
	key, nonce, err := deriveChunkKeyAndNonce(masterKey, hash)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %s", guard.ErrIntegrity, hash)
	}
	return plaintext, nil
}
