package toaststore

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
)

// memStorage keeps buckets in plain maps. Read transactions hold mu for
// reading and see the live maps directly. The single write transaction
// buffers its changes per key and applies them under mu on commit, so
// committed values are never modified in place.
type memStorage struct {
	mu      sync.RWMutex
	writeMu sync.Mutex
	buckets map[string]*memBucket
	closed  bool
}

// newMemStorage returns a transient in-memory storage.
func newMemStorage() storage {
	return &memStorage{buckets: make(map[string]*memBucket)}
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	if writable {
		s.writeMu.Lock()
		s.mu.RLock()
		closed := s.closed
		s.mu.RUnlock()
		if closed {
			s.writeMu.Unlock()
			return nil, fmt.Errorf("storage closed")
		}
		return &memTx{base: s, writable: true, pending: make(map[string]*memPending)}, nil
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("storage closed")
	}
	return &memTx{base: s}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	return nil
}

// live returns a committed bucket. Only commits modify committed buckets, and
// commits run under writeMu, so the holder of a write tx may read the result
// without keeping mu.
func (s *memStorage) live(name string) *memBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buckets[name]
}

type memTx struct {
	base     *memStorage
	writable bool
	pending  map[string]*memPending
	closed   bool
}

// memPending holds the uncommitted changes of one bucket.
type memPending struct {
	created bool
	seq     uint64
	writes  map[string]memWrite
}

type memWrite struct {
	value   []byte
	deleted bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) close() {
	if tx.closed {
		return
	}
	tx.closed = true
	tx.pending = nil
	if tx.writable {
		tx.base.writeMu.Unlock()
	} else {
		tx.base.mu.RUnlock()
	}
}

func (tx *memTx) liveBucket(name string) *memBucket {
	if tx.writable {
		return tx.base.live(name)
	}
	return tx.base.buckets[name]
}

func (tx *memTx) Bucket(name string) storageBucket {
	if tx.closed {
		panic("tx is closed")
	}
	if tx.liveBucket(name) == nil && tx.pending[name] == nil {
		return nil
	}
	return memBucketHandle{tx: tx, name: name}
}

func (tx *memTx) CreateBucket(name string) (storageBucket, error) {
	if tx.closed {
		panic("tx is closed")
	}
	if !tx.writable {
		return nil, fmt.Errorf("tx not writable")
	}
	if tx.liveBucket(name) == nil {
		tx.pendingFor(name).created = true
	}
	return memBucketHandle{tx: tx, name: name}, nil
}

func (tx *memTx) pendingFor(name string) *memPending {
	p := tx.pending[name]
	if p == nil {
		p = &memPending{writes: make(map[string]memWrite)}
		if b := tx.liveBucket(name); b != nil {
			p.seq = b.seq
		}
		tx.pending[name] = p
	}
	return p
}

func (tx *memTx) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	defer tx.close()

	s := tx.base
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("storage closed")
	}
	for name, p := range tx.pending {
		b := s.buckets[name]
		if b == nil {
			b = &memBucket{items: make(map[string][]byte)}
			s.buckets[name] = b
		}
		b.seq = max(b.seq, p.seq)
		for k, w := range p.writes {
			if w.deleted {
				delete(b.items, k)
			} else {
				b.items[k] = w.value
			}
		}
	}
	return nil
}

func (tx *memTx) Rollback() error {
	tx.close()
	return nil
}

type memBucket struct {
	items map[string][]byte
	seq   uint64
}

type memKV struct {
	key   []byte
	value []byte
}

type memBucketHandle struct {
	tx   *memTx
	name string
}

func (b memBucketHandle) Get(key []byte) []byte {
	if p := b.tx.pending[b.name]; p != nil {
		if w, ok := p.writes[string(key)]; ok {
			if w.deleted {
				return nil
			}
			return w.value
		}
	}
	if lb := b.tx.liveBucket(b.name); lb != nil {
		return lb.items[string(key)]
	}
	return nil
}

func (b memBucketHandle) Put(key, value []byte) error {
	if !b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	b.tx.pendingFor(b.name).writes[string(key)] = memWrite{value: slices.Clone(value)}
	return nil
}

func (b memBucketHandle) Delete(key []byte) error {
	if !b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	b.tx.pendingFor(b.name).writes[string(key)] = memWrite{deleted: true}
	return nil
}

func (b memBucketHandle) NextSequence() (uint64, error) {
	if !b.tx.writable {
		return 0, fmt.Errorf("tx not writable")
	}
	p := b.tx.pendingFor(b.name)
	p.seq++
	return p.seq, nil
}

// items returns the bucket contents as seen by the tx, sorted by key.
func (b memBucketHandle) items() []memKV {
	p := b.tx.pending[b.name]
	var out []memKV
	if lb := b.tx.liveBucket(b.name); lb != nil {
		out = make([]memKV, 0, len(lb.items))
		for k, v := range lb.items {
			if p != nil {
				if _, ok := p.writes[k]; ok {
					continue
				}
			}
			out = append(out, memKV{key: []byte(k), value: v})
		}
	}
	if p != nil {
		for k, w := range p.writes {
			if !w.deleted {
				out = append(out, memKV{key: []byte(k), value: w.value})
			}
		}
	}
	slices.SortFunc(out, func(a, b memKV) int {
		return bytes.Compare(a.key, b.key)
	})
	return out
}

func (b memBucketHandle) Cursor() storageCursor {
	return &memCursor{items: b.items(), pos: -1}
}

func (b memBucketHandle) Stats() bucketStats {
	items := b.items()
	var inuse int64
	for _, kv := range items {
		inuse += int64(len(kv.key) + len(kv.value))
	}
	return bucketStats{
		KeyN:      len(items),
		LeafInuse: inuse,
	}
}

type memCursor struct {
	items []memKV
	pos   int
}

func (c *memCursor) First() ([]byte, []byte) {
	c.pos = 0
	if len(c.items) == 0 {
		return nil, nil
	}
	kv := c.items[c.pos]
	return kv.key, kv.value
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.pos < 0 {
		return c.First()
	}
	c.pos++
	if c.pos >= len(c.items) {
		return nil, nil
	}
	kv := c.items[c.pos]
	return kv.key, kv.value
}
