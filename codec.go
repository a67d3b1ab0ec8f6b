package exdatum

import (
	"errors"
	"fmt"
	"io"

	"github.com/andreyvit/exdatum/region"
	"go.uber.org/zap"
)

const (
	DefaultCompressThreshold = 2048
	DefaultExternalThreshold = 8192
)

type Options struct {
	// Types lists the value types Normalize can decode.
	Types []AnyType

	// External receives values that are still ExternalThreshold bytes or
	// larger after compression. Nil keeps everything inline.
	External ExternalStore

	Compression       Compression
	CompressThreshold int
	ExternalThreshold int
}

// Codec converts values between their expanded form and their stored compact
// form, dispatching on type tags. A nil *Codec is usable: it knows no types,
// never compresses and cannot follow external pointers.
type Codec struct {
	opt   Options
	types map[TypeTag]AnyType
	store ExternalStore
	owned io.Closer
}

// NewCodec builds a Codec. Registering two types with the same tag panics.
func NewCodec(opt Options) *Codec {
	if opt.CompressThreshold <= 0 {
		opt.CompressThreshold = DefaultCompressThreshold
	}
	if opt.ExternalThreshold <= 0 {
		opt.ExternalThreshold = DefaultExternalThreshold
	}
	if opt.ExternalThreshold <= externalPointerSize {
		opt.ExternalThreshold = externalPointerSize + 1
	}
	c := &Codec{
		opt:   opt,
		types: make(map[TypeTag]AnyType, len(opt.Types)),
		store: opt.External,
	}
	for _, t := range opt.Types {
		if existing := c.types[t.Tag()]; existing != nil {
			contractf("type tag %d registered twice: %s and %s", t.Tag(), existing.Name(), t.Name())
		}
		c.types[t.Tag()] = t
	}
	return c
}

// Options returns the effective options.
func (c *Codec) Options() Options {
	if c == nil {
		return Options{}
	}
	return c.opt
}

// TypeByTag returns the registered type with the given tag, or nil.
func (c *Codec) TypeByTag(tag TypeTag) AnyType {
	if c == nil {
		return nil
	}
	return c.types[tag]
}

// Normalize returns the expanded form of d, whatever its type. Already
// expanded values are returned as is; compact values are decoded into a new
// child region of parent by their registered type.
func (c *Codec) Normalize(d Datum, parent *region.Region) (Object, error) {
	if obj := d.Object(); obj != nil {
		h := obj.header()
		h.check()
		if t := c.TypeByTag(h.typ.tag); t != nil {
			return t.expandAny(c, d, parent)
		}
		metrics().observePassThrough(h.typ.name)
		return obj, nil
	}
	if d.IsNull() {
		return nil, dataErrf(nil, 0, nil, "cannot expand a null datum")
	}
	raw, err := c.Detoast(d.Bytes())
	if err != nil {
		metrics().observeDecodeError(unknownTypeLabel)
		return nil, err
	}
	tag, err := PeekTag(raw)
	if err != nil {
		metrics().observeDecodeError(unknownTypeLabel)
		return nil, err
	}
	t := c.TypeByTag(tag)
	if t == nil {
		metrics().observeDecodeError(unknownTypeLabel)
		return nil, dataErrf(raw, 4, nil, "compact value has unknown type tag %d", tag)
	}
	return t.expandAny(c, CompactDatum(raw), parent)
}

// Expand is Type.Expand with support for compressed and external values
// stored by c.
func Expand[T Object](c *Codec, t *Type[T], d Datum, parent *region.Region) (T, error) {
	return t.expand(c, d, parent)
}

// Toast produces the stored form of obj: the plain compact form, compressed
// if it is at least CompressThreshold bytes and compression helps, then moved
// to the external store if still at least ExternalThreshold bytes.
func (c *Codec) Toast(obj Object) ([]byte, error) {
	flat := Flatten(obj)
	if c == nil {
		metrics().observeToast(formPlain)
		return flat, nil
	}

	out, f := flat, formPlain
	if c.opt.Compression != CompressionNone && len(flat) >= c.opt.CompressThreshold {
		packed, err := compressDatum(flat, c.opt.Compression)
		switch {
		case err == nil:
			out, f = packed, formCompressed
		case errors.Is(err, errIncompressible):
			// keep plain
		default:
			return nil, fmt.Errorf("exdatum: compressing %s: %w", obj.header().TypeName(), err)
		}
	}
	if c.store != nil && len(out) >= c.opt.ExternalThreshold {
		ptr, err := c.storeExternal(out, len(flat))
		if err != nil {
			return nil, err
		}
		out, f = ptr, formExternal
	}

	metrics().observeToast(f)
	logger().Debug("toast", zap.String("type", obj.header().TypeName()), zap.Stringer("form", f), zap.Int("flat_size", len(flat)), zap.Int("stored_size", len(out)))
	return out, nil
}

// DeleteExternal removes the out-of-line bytes an external pointer refers
// to. Other compact values have nothing stored out of line and are ignored.
func (c *Codec) DeleteExternal(raw []byte) error {
	f, data, err := readLengthWord(raw)
	if err != nil {
		return err
	}
	if f != formExternal {
		return nil
	}
	ptr, err := decodeExternalPointer(data)
	if err != nil {
		return err
	}
	if c == nil || c.store == nil {
		return ErrNoExternalStore
	}
	if err := c.store.Delete(ptr.ID); err != nil {
		return fmt.Errorf("exdatum: deleting external value %d: %w", ptr.ID, err)
	}
	return nil
}

// IsExternal reports whether raw is an external pointer.
func IsExternal(raw []byte) bool {
	f, _, err := readLengthWord(raw)
	return err == nil && f == formExternal
}

// IsCompressed reports whether raw is a compressed inline value.
func IsCompressed(raw []byte) bool {
	f, _, err := readLengthWord(raw)
	return err == nil && f == formCompressed
}

// Close closes the external store if the Codec opened it itself (see
// OpenCodec).
func (c *Codec) Close() error {
	if c == nil || c.owned == nil {
		return nil
	}
	err := c.owned.Close()
	c.owned = nil
	return err
}
