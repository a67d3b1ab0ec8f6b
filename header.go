package exdatum

import (
	"fmt"

	"github.com/andreyvit/exdatum/region"
	"go.uber.org/zap"
)

// TypeTag identifies a value type in both the compact and the expanded form.
type TypeTag uint16

// Methods is implemented once per value type and is the only code a type
// supplies to take part in flattening.
type Methods interface {
	// PayloadSize returns the number of bytes PutPayload writes. It must
	// depend only on the current payload.
	PayloadSize() int

	// PutPayload writes exactly PayloadSize bytes.
	PutPayload(w *Writer)
}

// Object is an expanded value: a type's payload with an embedded Header.
// Embedding Header is the only way to implement it.
type Object interface {
	Methods
	header() *Header
}

// PayloadReleaser is implemented by values that hold memory their region does
// not own. ReleasePayload is called exactly once, when the owning region is
// released.
type PayloadReleaser interface {
	ReleasePayload()
}

// Header is the envelope embedded by every expanded value.
type Header struct {
	typ      *typeInfo
	magic    uint32
	flatSize int
	region   *region.Region
	released bool
}

func (h *Header) header() *Header { return h }

// Tag returns the type tag the value was attached with.
func (h *Header) Tag() TypeTag {
	h.check()
	return h.typ.tag
}

// TypeName returns the registered name of the value's type.
func (h *Header) TypeName() string {
	h.check()
	return h.typ.name
}

// Region returns the region owning the value.
func (h *Header) Region() *region.Region {
	return h.region
}

// CachedFlatSize returns the memoized compact size, or 0 if it has not been
// computed yet.
func (h *Header) CachedFlatSize() int {
	return h.flatSize
}

func (h *Header) check() {
	if h.typ == nil {
		contractf("expanded value header is not initialized")
	}
	if h.magic != h.typ.magic {
		contractf("expanded %s header is corrupted: magic %08x, expected %08x", h.typ.name, h.magic, h.typ.magic)
	}
	if h.released || h.region.Released() {
		contractf("expanded %s used after its region %s was released", h.typ.name, h.region.Path())
	}
}

func (h *Header) attach(typ *typeInfo, r *region.Region) {
	if h.typ != nil {
		contractf("expanded %s is already attached to region %s", h.typ.name, h.region.Path())
	}
	if r == nil || r.Released() {
		contractf("cannot attach expanded %s to a nil or released region", typ.name)
	}
	h.typ = typ
	h.magic = typ.magic
	h.flatSize = 0
	h.region = r
}

// FlatSize returns the exact number of bytes FlattenInto will write for obj.
// The result is cached in the header.
func FlatSize(obj Object) int {
	h := obj.header()
	h.check()
	if h.flatSize != 0 {
		return h.flatSize
	}
	n := obj.PayloadSize()
	if n < 0 || n > MaxCompactSize-HeaderSize {
		contractf("%s payload size %d is out of range", h.typ.name, n)
	}
	h.flatSize = HeaderSize + n
	logger().Debug("flat size", zap.String("type", h.typ.name), zap.Int("size", h.flatSize))
	return h.flatSize
}

// FlattenInto writes the compact form of obj into dst, which must be exactly
// FlatSize(obj) bytes long.
func FlattenInto(obj Object, dst []byte) {
	n := FlatSize(obj)
	h := obj.header()
	if len(dst) != n {
		contractf("cannot flatten %s into %d bytes, need exactly %d", h.typ.name, len(dst), n)
	}
	clear(dst)
	putCompactHeader(dst, n, h.typ.tag)
	w := Writer{Buf: dst[HeaderSize:]}
	obj.PutPayload(&w)
	if rem := w.Remaining(); rem != 0 {
		contractf("%s wrote %d payload bytes, declared %d", h.typ.name, w.Off, len(w.Buf))
	}
	metrics().observeFlatten(h.typ.name, n)
	logger().Debug("flattened", zap.String("type", h.typ.name), zap.Int("size", n))
}

// Flatten returns the compact form of obj in a new buffer.
func Flatten(obj Object) []byte {
	buf := make([]byte, FlatSize(obj))
	FlattenInto(obj, buf)
	return buf
}

// AppendFlat appends the compact form of obj to buf.
func AppendFlat(buf []byte, obj Object) []byte {
	off, buf := grow(buf, FlatSize(obj))
	FlattenInto(obj, buf[off:])
	return buf
}

func (h *Header) String() string {
	if h.typ == nil {
		return "<unattached>"
	}
	return fmt.Sprintf("%s(tag=%d, flat_size=%d, region=%s)", h.typ.name, h.typ.tag, h.flatSize, h.region.Path())
}
