// Package store provides durable key-value persistence for the chat sync core.
// The outbound queue serializes its state as a value under a fixed key; the
// store only deals in opaque byte slices.
package store

// Store defines the key-value persistence interface.
// Implementations must make each Set atomic: after an abrupt restart a key
// holds either its previous value or the new one, never a partial write.
type Store interface {
	// Get returns the value for key. The second return is false when the key
	// is absent; absence is not an error.
	Get(key string) ([]byte, bool, error)

	// Set stores the value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes the key. Deleting an absent key is a no-op.
	Delete(key string) error

	// Close releases underlying resources.
	Close() error
}
