// Package scalar implements a signed 64-bit integer as an expanded value.
//
// Compact form: the common 8-byte header followed by value:i64.
package scalar

import (
	"fmt"
	"strconv"

	"github.com/andreyvit/exdatum"
	"github.com/andreyvit/exdatum/region"
)

const (
	Tag   exdatum.TypeTag = 1
	Magic uint32          = 689276813

	payloadSize = 8
)

var Type = exdatum.NewType[*Scalar](Tag, "scalar", Magic, decode)

// Scalar is an expanded integer. The value itself is allocated in the owning
// region.
type Scalar struct {
	exdatum.Header
	value *int64
}

// New creates a scalar in a new child region of parent, storing v+1.
//
// The increment is long-standing behavior of this type's constructor (and of
// Parse, which calls it); decoding from compact bytes stores the value as is.
func New(v int64, parent *region.Region) *Scalar {
	return newScalar(parent.NewChild("scalar"), v+1)
}

func newScalar(r *region.Region, v int64) *Scalar {
	s := region.New[Scalar](r)
	s.value = region.New[int64](r)
	*s.value = v
	return Type.Attach(s, r)
}

func decode(r *region.Region, d *exdatum.Decoder) (*Scalar, error) {
	v, err := d.Int64()
	if err != nil {
		return nil, err
	}
	s := region.New[Scalar](r)
	s.value = region.New[int64](r)
	*s.value = v
	return s, nil
}

// Get expands d into a scalar, decoding into a child region of parent if
// needed.
func Get(d exdatum.Datum, parent *region.Region) (*Scalar, error) {
	return Type.Expand(d, parent)
}

// Parse reads a base-10 integer and passes it to New.
func Parse(text string, parent *region.Region) (*Scalar, error) {
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("scalar: invalid input %q: %w", text, err)
	}
	return New(v, parent), nil
}

// Value returns the stored integer.
func (s *Scalar) Value() int64 {
	if s.value == nil {
		exdatum.Contractf("scalar used after teardown")
	}
	return *s.value
}

func (s *Scalar) String() string {
	return strconv.FormatInt(s.Value(), 10)
}

// Datum wraps s in an expanded datum.
func (s *Scalar) Datum() exdatum.Datum {
	return exdatum.ExpandedDatum(s)
}

func (s *Scalar) PayloadSize() int {
	return payloadSize
}

func (s *Scalar) PutPayload(w *exdatum.Writer) {
	w.Int64(s.Value())
}

func (s *Scalar) ReleasePayload() {
	s.value = nil
}
