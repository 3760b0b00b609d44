package storage

import "context"

// Store is the durable key-value storage behind the session. Values are
// strings; structured values are JSON encoded by the caller.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a single value.
	Set(ctx context.Context, key, value string) error

	// SetMany stores all values in one write. Readers observe either none or
	// all of the values.
	SetMany(ctx context.Context, values map[string]string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Close releases the backend.
	Close() error
}
