package exdatum

// Datum is a handle to a value in either form: an expanded Object, or compact
// bytes (plain, compressed or an external pointer). The zero Datum is null.
type Datum struct {
	obj Object
	raw []byte
}

// ExpandedDatum wraps an expanded value.
func ExpandedDatum(obj Object) Datum {
	if obj == nil {
		return Datum{}
	}
	return Datum{obj: obj}
}

// CompactDatum wraps compact bytes. The bytes are not copied and must not
// change while the datum is in use.
func CompactDatum(raw []byte) Datum {
	return Datum{raw: raw}
}

// IsExpanded reports whether d holds an expanded value that can be used
// directly, without decoding.
func (d Datum) IsExpanded() bool { return d.obj != nil }

func (d Datum) IsNull() bool { return d.obj == nil && d.raw == nil }

// Object returns the expanded value, or nil for compact and null datums.
func (d Datum) Object() Object { return d.obj }

// Bytes returns the compact bytes, or nil for expanded and null datums.
func (d Datum) Bytes() []byte { return d.raw }

// Flat returns the plain compact form of an expanded datum, or the compact
// bytes of a compact one as they are.
func (d Datum) Flat() []byte {
	if d.obj != nil {
		return Flatten(d.obj)
	}
	return d.raw
}
