package guard

import "errors"

// Sentinel errors shared across the core components. Callers classify
// failures with errors.Is; each layer wraps these with context using
// fmt.Errorf("...: %w", err).
var (
	// ErrKeyInvalid indicates a missing or malformed master key. This is
	// the only error treated as fatal at startup.
	ErrKeyInvalid = errors.New("invalid master key")

	// ErrIntegrity indicates an AEAD tag verification failure: the
	// ciphertext was tampered with or the wrong key was used. Decryption
	// never returns altered plaintext.
	ErrIntegrity = errors.New("chunk integrity check failed")

	// ErrNotFound indicates a missing chunk or snapshot id.
	ErrNotFound = errors.New("not found")

	// ErrCorruptManifest indicates a manifest that exists but cannot be
	// decoded.
	ErrCorruptManifest = errors.New("corrupt manifest")
)
