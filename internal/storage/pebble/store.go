package pebble

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"swapledger/internal/storage"
)

// Store is a storage.KV backed by a pebble database.
type Store struct {
	db *pebble.DB
}

// Open opens or creates a pebble database in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, storage.ErrClosed
	}
	val, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer closer.Close()

	valCopy := make([]byte, len(val))
	copy(valCopy, val)
	return valCopy, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if s.db == nil {
		return storage.ErrClosed
	}
	return s.db.Set([]byte(key), value, pebble.Sync)
}

func (s *Store) SetMany(_ context.Context, entries []storage.Entry) error {
	if s.db == nil {
		return storage.ErrClosed
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, e := range entries {
		if err := batch.Set([]byte(e.Key), e.Value, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
