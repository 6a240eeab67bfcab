package bolt

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"swapledger/internal/storage"
)

// DefaultBucket holds the engine state keys.
const DefaultBucket = "swapledger"

// Store is a storage.KV backed by a single bbolt bucket.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

// Open opens or creates the database file at path and its bucket.
func Open(path, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return &Store{db: db, bucket: []byte(bucket)}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, storage.ErrClosed
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s not found", string(s.bucket))
		}
		val := bucket.Get([]byte(key))
		if val == nil {
			return nil
		}
		// bbolt values are only valid inside the transaction.
		value = make([]byte, len(val))
		copy(value, val)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, []storage.Entry{{Key: key, Value: value}})
}

func (s *Store) SetMany(_ context.Context, entries []storage.Entry) error {
	if s.db == nil {
		return storage.ErrClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s not found", string(s.bucket))
		}
		for _, e := range entries {
			if err := bucket.Put([]byte(e.Key), e.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
