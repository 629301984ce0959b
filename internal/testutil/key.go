package testutil

// MasterKey returns a deterministic 32-byte master key for tests.
func MasterKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}
