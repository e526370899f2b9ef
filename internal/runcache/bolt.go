package runcache

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var defaultBucket = []byte("graphsource")

// Bolt persists values in a bbolt file, one bucket per owner.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBolt opens or creates the cache file at path. bucket defaults to "graphsource".
func OpenBolt(path, bucket string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open run cache: %w", err)
	}
	name := defaultBucket
	if bucket != "" {
		name = []byte(bucket)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init run cache: %w", err)
	}
	return &Bolt{db: db, bucket: name}, nil
}

func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) Get(_ context.Context, key string, dst any) (bool, error) {
	var raw []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(b.bucket).Get([]byte(key)); v != nil {
			// v is only valid inside the transaction
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return false, err
	}
	return true, decode(key, raw, dst)
}

func (b *Bolt) Set(_ context.Context, key string, value any) error {
	raw, err := encode(key, value)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), raw)
	})
}
