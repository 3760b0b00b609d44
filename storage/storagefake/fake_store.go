package storagefake

import (
	"context"
	"maps"
	"sync"

	"github.com/jrsteele09/go-admin-console/storage"
)

var _ storage.Store = (*FakeStore)(nil)

// FakeStore is an in-memory storage.Store. SetErr, when non-nil, is returned
// from every write.
type FakeStore struct {
	values map[string]string
	writes []map[string]string
	lock   sync.RWMutex
	SetErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		values: make(map[string]string),
	}
}

func (fs *FakeStore) Get(_ context.Context, key string) (string, bool, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	v, ok := fs.values[key]
	return v, ok, nil
}

func (fs *FakeStore) Set(ctx context.Context, key, value string) error {
	return fs.SetMany(ctx, map[string]string{key: value})
}

func (fs *FakeStore) SetMany(_ context.Context, values map[string]string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.SetErr != nil {
		return fs.SetErr
	}
	maps.Copy(fs.values, values)
	fs.writes = append(fs.writes, maps.Clone(values))
	return nil
}

func (fs *FakeStore) Delete(_ context.Context, keys ...string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	for _, k := range keys {
		delete(fs.values, k)
	}
	return nil
}

func (fs *FakeStore) Close() error {
	return nil
}

// Values returns a snapshot of the stored values.
func (fs *FakeStore) Values() map[string]string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return maps.Clone(fs.values)
}

// Writes returns every batch passed to Set or SetMany, in order.
func (fs *FakeStore) Writes() []map[string]string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	out := make([]map[string]string, len(fs.writes))
	copy(out, fs.writes)
	return out
}
