package toaststore

import "errors"

var errBucketNotFound = errors.New("bucket not found")

// storage represents a key-value storage backend (Bolt or in-memory).
type storage interface {
	// BeginTx starts a new transaction.
	BeginTx(writable bool) (storageTx, error)
	// Close closes the storage.
	Close() error
}

// storageTx represents a storage transaction.
type storageTx interface {
	Writable() bool

	// Bucket returns a root bucket, or nil if it doesn't exist.
	Bucket(name string) storageBucket

	// CreateBucket creates a root bucket if it doesn't exist.
	CreateBucket(name string) (storageBucket, error)

	Commit() error

	// Rollback aborts the transaction. It should be safe to call multiple times.
	Rollback() error
}

// storageBucket represents a bucket (sorted key-value collection).
type storageBucket interface {
	// Get retrieves a value by key. Returns nil if not found. The returned
	// slice is only valid until the end of the transaction.
	Get(key []byte) []byte

	Put(key, value []byte) error

	Delete(key []byte) error

	// NextSequence returns a new unique, increasing integer for the bucket.
	NextSequence() (uint64, error)

	Cursor() storageCursor

	Stats() bucketStats
}

type bucketStats struct {
	KeyN      int
	LeafInuse int64
}

// storageCursor iterates over a sorted bucket.
type storageCursor interface {
	First() (key, value []byte)
	Next() (key, value []byte)
}
