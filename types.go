package exdatum

import (
	"github.com/andreyvit/exdatum/region"
	"go.uber.org/zap"
)

type typeInfo struct {
	tag   TypeTag
	name  string
	magic uint32
}

// DecodeFunc builds an expanded value from a plain compact payload. The
// value and anything it allocates must live in r, a fresh region created for
// it; the payload bytes must be copied, never retained.
type DecodeFunc[T Object] func(r *region.Region, d *Decoder) (T, error)

// Type binds a Go type to its tag, guard value and decoder.
type Type[T Object] struct {
	typeInfo
	decode DecodeFunc[T]
}

// AnyType is a Type with its Go type erased, used for dispatch by tag.
type AnyType interface {
	Tag() TypeTag
	Name() string
	expandAny(c *Codec, d Datum, parent *region.Region) (Object, error)
}

var _ AnyType = (*Type[Object])(nil)

// NewType defines a value type. Tag 0 is reserved.
func NewType[T Object](tag TypeTag, name string, magic uint32, decode DecodeFunc[T]) *Type[T] {
	if tag == 0 {
		panic("exdatum: type tag 0 is reserved")
	}
	if decode == nil {
		panic("exdatum: nil decode function for " + name)
	}
	return &Type[T]{typeInfo{tag, name, magic}, decode}
}

func (t *Type[T]) Tag() TypeTag  { return t.tag }
func (t *Type[T]) Name() string  { return t.name }
func (t *Type[T]) Magic() uint32 { return t.magic }

// Attach initializes obj's header for region r, which becomes its owning
// region, and binds the teardown of obj to the release of r. Constructors
// call Attach after creating r as a child of their parent region.
func (t *Type[T]) Attach(obj T, r *region.Region) T {
	h := obj.header()
	h.attach(&t.typeInfo, r)
	bindTeardown(&t.typeInfo, obj, r)
	return obj
}

// Cast converts an expanded value of unknown type back to T, enforcing the
// header guard. A value of any other type is a contract violation.
func (t *Type[T]) Cast(obj Object) T {
	v, ok := obj.(T)
	if !ok {
		contractf("expanded value of Go type %T is not a %s", obj, t.name)
	}
	h := v.header()
	h.check()
	if h.typ.tag != t.tag {
		contractf("expanded value tagged %d is not a %s (tag %d)", h.typ.tag, t.name, t.tag)
	}
	return v
}

// Expand returns the expanded form of d. An already expanded datum is
// returned as is; compact bytes are decoded into a new child region of
// parent. Compact bytes that are malformed or belong to another type
// produce a *DataError.
//
// Values stored out of line need a Codec; see Expand.
func (t *Type[T]) Expand(d Datum, parent *region.Region) (T, error) {
	return t.expand(nil, d, parent)
}

func (t *Type[T]) expandAny(c *Codec, d Datum, parent *region.Region) (Object, error) {
	return t.expand(c, d, parent)
}

func (t *Type[T]) expand(c *Codec, d Datum, parent *region.Region) (T, error) {
	var zero T
	if obj := d.Object(); obj != nil {
		v := t.Cast(obj)
		metrics().observePassThrough(t.name)
		logger().Debug("expand: pass-through", zap.String("type", t.name))
		return v, nil
	}
	if d.IsNull() {
		return zero, dataErrf(nil, 0, nil, "cannot expand a null datum into %s", t.name)
	}

	raw, err := c.Detoast(d.Bytes())
	if err != nil {
		metrics().observeDecodeError(t.name)
		return zero, err
	}
	return t.decodeCompact(raw, parent)
}

func (t *Type[T]) decodeCompact(raw []byte, parent *region.Region) (T, error) {
	var zero T
	hdr, raw, err := readCompactHeader(raw)
	if err != nil {
		metrics().observeDecodeError(t.name)
		return zero, err
	}
	if hdr.Tag != t.tag {
		metrics().observeDecodeError(t.name)
		return zero, dataErrf(raw, 4, nil, "compact value has type tag %d, expected %d (%s)", hdr.Tag, t.tag, t.name)
	}

	r := parent.NewChild("expanded " + t.name)
	dec := &Decoder{Orig: raw, Buf: raw[HeaderSize:]}
	obj, err := t.decode(r, dec)
	if err == nil {
		if err = dec.Finish(); err != nil {
			// not attached yet, so the region will not tear it down
			if rel, ok := any(obj).(PayloadReleaser); ok {
				rel.ReleasePayload()
			}
		}
	}
	if err != nil {
		r.Release()
		metrics().observeDecodeError(t.name)
		logger().Debug("expand failed", zap.String("type", t.name), zap.Error(err), hexField("data", raw))
		return zero, err
	}
	t.Attach(obj, r)

	metrics().observeExpansion(t.name)
	logger().Debug("expanded", zap.String("type", t.name), zap.Int("size", hdr.Size), zap.String("region", r.Path()))
	return obj, nil
}
