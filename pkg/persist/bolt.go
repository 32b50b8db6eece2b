package persist

import (
	"errors"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var bucketState = []byte("state")

// BoltCell is a Cell backed by a BoltDB database. BoltDB commits are atomic
// and durable, giving the same crash guarantees as FileCell while letting
// several cells share one database file under different names. Each cell
// opens the database itself, so only one cell on a given file can be open
// at a time.
type BoltCell[T any] struct {
	db    *bolt.DB
	key   []byte
	codec Codec[T]

	mu    sync.Mutex
	value T
}

// OpenBolt opens or creates the named cell inside the BoltDB database at
// path. A layout version mismatch fails with ErrStateIncompatible.
func OpenBolt[T any](path, name string, initial T, codec Codec[T]) (*BoltCell[T], error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	c := &BoltCell[T]{
		db:    db,
		key:   []byte(name),
		codec: codec,
		value: initial,
	}

	var stored []byte
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketState)
		if err != nil {
			return err
		}
		if data := b.Get(c.key); data != nil {
			stored = make([]byte, len(data))
			copy(stored, data)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize state bucket: %w", err)
	}

	if stored != nil {
		v, err := openEnvelope(codec, stored)
		if err != nil {
			db.Close()
			return nil, err
		}
		c.value = v
	}

	return c, nil
}

// Get returns the current value.
func (c *BoltCell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set durably replaces the stored value. On error the previous value is
// still in place.
func (c *BoltCell[T]) Set(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := sealEnvelope(c.codec, v)
	if err != nil {
		return &PersistError{Op: "encode", Err: err}
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if b == nil {
			return errors.New("state bucket missing")
		}
		return b.Put(c.key, data)
	})
	if err != nil {
		return &PersistError{Op: "commit", Err: err}
	}

	c.value = v
	return nil
}

// Close closes the underlying database.
func (c *BoltCell[T]) Close() error {
	return c.db.Close()
}
