package config

const (
	StorageBackendFile  = "file"
	StorageBackendRedis = "redis"
)

type StorageConfig interface {
	GetStorageBackend() string
	GetStorageKey() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetStorageBackend selects where session credentials are persisted: "file" or "redis".
func (Storage) GetStorageBackend() string {
	return GetEnv("STORAGE_BACKEND", StorageBackendFile)
}

// GetStorageKey is an optional hex encoded 32 byte key used to seal the file store.
func (Storage) GetStorageKey() string {
	return GetEnv("STORAGE_KEY", "")
}
