// Package toaststore keeps compact values that are too large to store inline,
// addressed by sequential 64-bit ids.
//
// Two backends are provided: a Bolt file (Open) and a transient in-memory
// store (NewMemory). Both are safe for concurrent use.
//
// Keys are big-endian ids, so iteration follows allocation order. Values are
// stored verbatim; integrity checking is the caller's business (exdatum keeps
// a checksum in the pointer).
package toaststore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

// ErrNotFound is returned by Get and Delete for ids that are not stored.
var ErrNotFound = errors.New("toaststore: value not found")

const bucketName = "toast"

type Options struct {
	// IsTesting trades durability for speed.
	IsTesting bool
	MmapSize  int
	Timeout   time.Duration
}

// Store is an id-addressed blob store.
type Store struct {
	st storage
}

// Open opens (creating if needed) a Bolt-backed store at path.
func Open(path string, opt Options) (*Store, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.Timeout != 0 {
		bopt.Timeout = opt.Timeout
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("toaststore: %w", err)
	}
	s := &Store{st: newBoltStorage(bdb)}
	if err := s.init(); err != nil {
		bdb.Close()
		return nil, err
	}
	return s, nil
}

// NewMemory returns a transient in-memory store.
func NewMemory() *Store {
	s := &Store{st: newMemStorage()}
	if err := s.init(); err != nil {
		panic(err)
	}
	return s
}

func (s *Store) init() error {
	return s.write(func(b storageBucket) error { return nil })
}

func (s *Store) Close() error {
	return s.st.Close()
}

// Put stores a copy of data under a new id.
func (s *Store) Put(data []byte) (uint64, error) {
	var id uint64
	err := s.write(func(b storageBucket) error {
		var err error
		id, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(key(id), data)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get returns a copy of the value stored under id.
func (s *Store) Get(id uint64) ([]byte, error) {
	var data []byte
	err := s.read(func(b storageBucket) error {
		v := b.Get(key(id))
		if v == nil {
			return fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		data = slices.Clone(v)
		return nil
	})
	return data, err
}

// Delete removes the value stored under id.
func (s *Store) Delete(id uint64) error {
	return s.write(func(b storageBucket) error {
		k := key(id)
		if b.Get(k) == nil {
			return fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return b.Delete(k)
	})
}

type Stats struct {
	Values int
	Bytes  int64
}

// Stats returns the number of stored values and their approximate size.
func (s *Store) Stats() (Stats, error) {
	var result Stats
	err := s.read(func(b storageBucket) error {
		bs := b.Stats()
		result = Stats{Values: bs.KeyN, Bytes: bs.LeafInuse}
		return nil
	})
	return result, err
}

// IDs returns all stored ids in ascending order.
func (s *Store) IDs() ([]uint64, error) {
	var ids []uint64
	err := s.read(func(b storageBucket) error {
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if len(k) != 8 {
				return fmt.Errorf("toaststore: invalid key %x", k)
			}
			ids = append(ids, binary.BigEndian.Uint64(k))
		}
		return nil
	})
	return ids, err
}

func (s *Store) read(f func(b storageBucket) error) error {
	tx, err := s.st.BeginTx(false)
	if err != nil {
		return fmt.Errorf("toaststore: %w", err)
	}
	defer tx.Rollback()
	b := tx.Bucket(bucketName)
	if b == nil {
		return fmt.Errorf("toaststore: %w: %s", errBucketNotFound, bucketName)
	}
	return f(b)
}

func (s *Store) write(f func(b storageBucket) error) error {
	tx, err := s.st.BeginTx(true)
	if err != nil {
		return fmt.Errorf("toaststore: %w", err)
	}
	defer tx.Rollback()
	b, err := tx.CreateBucket(bucketName)
	if err != nil {
		return fmt.Errorf("toaststore: %w", err)
	}
	if err := f(b); err != nil {
		return err
	}
	return tx.Commit()
}

func key(id uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], id)
	return k[:]
}
