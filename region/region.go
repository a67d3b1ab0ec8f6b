// Package region implements nested memory regions with bulk release.
//
// A Region hands out memory that stays valid until the region is released.
// There is no way to free a single allocation: releasing a region frees
// everything allocated in it, releases all of its child regions first, and
// runs the callbacks registered with OnRelease.
//
// Regions are not safe for concurrent use. A region tree is expected to be
// owned by exactly one goroutine for its whole lifetime.
//
// # Release order
//
//  1. Children, most recently created first (recursively).
//  2. Callbacks registered with OnRelease, most recently registered first.
//  3. The region's own memory.
//
// Releasing an already released region does nothing.
package region

import (
	"fmt"
	"unsafe"
)

const (
	// DefaultChunkSize is the size of the first chunk and of every chunk
	// added later, unless an allocation needs more.
	DefaultChunkSize = 8 * 1024

	allocAlign = 8
)

// Region is a scoped allocation context. The zero value is not usable; create
// regions with NewRoot or NewChild.
type Region struct {
	name     string
	parent   *Region
	children []*Region
	teardown []func()

	chunks  [][]byte
	current []byte
	offset  int
	objects []any
	used    int

	released bool
	tree     *Stats
}

// Stats describes a whole region tree (a root region and all of its
// descendants).
type Stats struct {
	Created    int
	Released   int
	Callbacks  int
	BytesInUse int64
}

// Live returns the number of regions created but not yet released.
func (s Stats) Live() int {
	return s.Created - s.Released
}

// NewRoot creates a region without a parent.
func NewRoot(name string) *Region {
	r := &Region{name: name, tree: &Stats{}}
	r.tree.Created++
	return r
}

// NewChild creates a region whose lifetime is bounded by r.
func (r *Region) NewChild(name string) *Region {
	r.ensureLive("create child")
	c := &Region{name: name, parent: r, tree: r.tree}
	r.children = append(r.children, c)
	r.tree.Created++
	return c
}

func (r *Region) Name() string       { return r.name }
func (r *Region) Parent() *Region    { return r.parent }
func (r *Region) ChildCount() int    { return len(r.children) }
func (r *Region) Released() bool     { return r.released }
func (r *Region) Used() int          { return r.used }
func (r *Region) Stats() Stats       { return *r.tree }
func (r *Region) CallbackCount() int { return len(r.teardown) }

// Path returns slash-separated region names from the root down to r.
func (r *Region) Path() string {
	if r.parent == nil {
		return r.name
	}
	return r.parent.Path() + "/" + r.name
}

func (r *Region) String() string {
	if r.released {
		return r.Path() + " (released)"
	}
	return fmt.Sprintf("%s (%d bytes, %d children)", r.Path(), r.used, len(r.children))
}

// Alloc returns n zeroed bytes that stay valid until r is released.
func (r *Region) Alloc(n int) []byte {
	r.ensureLive("allocate")
	if n < 0 {
		panic(fmt.Errorf("region %s: negative allocation size %d", r.Path(), n))
	}
	if n == 0 {
		return nil
	}
	size := (n + allocAlign - 1) &^ (allocAlign - 1)
	if r.offset+size > len(r.current) {
		chunkSize := DefaultChunkSize
		if size > chunkSize {
			chunkSize = size
		}
		chunk := make([]byte, chunkSize)
		r.chunks = append(r.chunks, chunk)
		r.current = chunk
		r.offset = 0
	}
	buf := r.current[r.offset : r.offset+n : r.offset+n]
	r.offset += size
	r.account(size)
	return buf
}

// New allocates a zero T owned by r.
func New[T any](r *Region) *T {
	r.ensureLive("allocate")
	p := new(T)
	r.objects = append(r.objects, p)
	r.account(int(unsafe.Sizeof(*p)))
	return p
}

// MakeSlice allocates a zeroed []T of length n owned by r.
func MakeSlice[T any](r *Region, n int) []T {
	r.ensureLive("allocate")
	if n == 0 {
		return nil
	}
	s := make([]T, n)
	r.objects = append(r.objects, s)
	var zero T
	r.account(n * int(unsafe.Sizeof(zero)))
	return s
}

// OnRelease registers fn to be called exactly once when r (or one of its
// ancestors) is released, before r's memory is dropped.
func (r *Region) OnRelease(fn func()) {
	r.ensureLive("register callback")
	if fn == nil {
		panic(fmt.Errorf("region %s: nil release callback", r.Path()))
	}
	r.teardown = append(r.teardown, fn)
}

// Release releases r, its descendants and everything allocated in them.
func (r *Region) Release() {
	if r.released {
		return
	}
	r.released = true

	for i := len(r.children) - 1; i >= 0; i-- {
		r.children[i].Release()
	}
	r.children = nil

	callbacks := r.teardown
	r.teardown = nil
	for i := len(callbacks) - 1; i >= 0; i-- {
		r.tree.Callbacks++
		callbacks[i]()
	}

	r.chunks, r.current, r.offset = nil, nil, 0
	clear(r.objects)
	r.objects = nil
	r.tree.BytesInUse -= int64(r.used)
	r.used = 0
	r.tree.Released++

	// a parent being released drops its whole child list itself
	if p := r.parent; p != nil && !p.released {
		p.removeChild(r)
	}
}

func (r *Region) removeChild(c *Region) {
	for i, x := range r.children {
		if x == c {
			r.children = append(r.children[:i], r.children[i+1:]...)
			return
		}
	}
}

func (r *Region) account(n int) {
	r.used += n
	r.tree.BytesInUse += int64(n)
}

func (r *Region) ensureLive(op string) {
	if r == nil {
		panic(fmt.Errorf("region: cannot %s in a nil region", op))
	}
	if r.released {
		panic(fmt.Errorf("region %s: cannot %s after release", r.Path(), op))
	}
}
