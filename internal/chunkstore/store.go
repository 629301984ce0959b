// Package chunkstore persists encrypted chunks addressed by their
// plaintext content hash.
package chunkstore

// Store is a content-addressed, deduplicating chunk store. Keys are hex
// content hashes; values are AEAD ciphertexts. Put is idempotent: a
// chunk that already exists is skipped, which together with convergent
// encryption makes redundant writes harmless. There is no test-and-set
// between Has and Put; concurrent writers racing on the same hash may
// duplicate effort but produce byte-identical data.
type Store interface {
	// Has reports whether a chunk with the given hash is present.
	Has(hash string) bool

	// Put stores ciphertext under hash. Storing an existing hash is a no-op.
	Put(hash string, ciphertext []byte) error

	// Get returns the ciphertext stored under hash, or an error wrapping
	// guard.ErrNotFound if the chunk is absent.
	Get(hash string) ([]byte, error)

	// Count returns the number of stored chunks.
	Count() (int, error)
}
