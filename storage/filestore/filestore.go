// Package filestore persists session values as a single JSON document on
// disk, optionally sealed with NaCl secretbox.
package filestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/storage"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	defaultFileName = "session.json"
	nonceSize       = 24
	keySize         = 32
)

var _ storage.Store = (*Store)(nil)

// Config controls where the document lives and whether it is sealed.
type Config struct {
	// Folder is created if missing.
	Folder string
	// FileName defaults to session.json.
	FileName string
	// SealKey is an optional hex encoded 32 byte secretbox key.
	SealKey string
}

type Store struct {
	path   string
	key    *[keySize]byte
	values map[string]string
	lock   sync.Mutex
}

// New opens the document at Folder/FileName, loading any values already written.
func New(cfg Config) (*Store, error) {
	name := cfg.FileName
	if name == "" {
		name = defaultFileName
	}
	if err := os.MkdirAll(cfg.Folder, 0o700); err != nil {
		return nil, fmt.Errorf("[filestore New] create folder: %w", err)
	}

	s := &Store{
		path:   filepath.Join(cfg.Folder, name),
		values: make(map[string]string),
	}

	if cfg.SealKey != "" {
		key, err := parseKey(cfg.SealKey)
		if err != nil {
			return nil, err
		}
		s.key = key
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseKey(hexKey string) (*[keySize]byte, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidStorageKey, "decode hex")
	}
	if len(raw) != keySize {
		return nil, errors.Wrapf(errors.ErrInvalidStorageKey, "want %d bytes, got %d", keySize, len(raw))
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

func (s *Store) SetMany(_ context.Context, values map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	next := maps.Clone(s.values)
	maps.Copy(next, values)
	if err := s.persist(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	next := maps.Clone(s.values)
	for _, k := range keys {
		delete(next, k)
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Path returns the location of the backing document.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("[filestore load] read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}

	if s.key != nil {
		if data, err = s.open(data); err != nil {
			return err
		}
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return errors.Wrapf(errors.ErrCorruptStore, "decode %s: %v", s.path, err)
	}
	s.values = values
	return nil
}

// persist writes to a temp file and renames it over the document so a crash
// never leaves a half written file behind.
func (s *Store) persist(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("[filestore persist] encode: %w", err)
	}
	if s.key != nil {
		if data, err = s.seal(data); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("[filestore persist] write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("[filestore persist] rename: %w", err)
	}
	return nil
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("[filestore seal] nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, s.key), nil
}

func (s *Store) open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, errors.Wrapf(errors.ErrCorruptStore, "sealed document too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, s.key)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidStorageKey, "open %s", s.path)
	}
	return plain, nil
}
