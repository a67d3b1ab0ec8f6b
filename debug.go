package exdatum

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Describe returns a one-line human-readable description of d for logs and
// debugging. It never panics on malformed bytes.
func Describe(d Datum) string {
	if d.IsNull() {
		return "null"
	}
	if obj := d.Object(); obj != nil {
		h := obj.header()
		if h.typ == nil {
			return "expanded <unattached>"
		}
		if h.released || h.region.Released() {
			return fmt.Sprintf("expanded %s <released>", h.typ.name)
		}
		return "expanded " + h.String()
	}

	raw := d.Bytes()
	var buf strings.Builder
	f, data, err := readLengthWord(raw)
	if err != nil {
		fmt.Fprintf(&buf, "invalid (%d) %s", len(raw), hexstr(truncate(raw, 32)))
		return buf.String()
	}
	fmt.Fprintf(&buf, "%v (%d)", f, len(data))
	switch f {
	case formPlain:
		if len(data) >= HeaderSize {
			fmt.Fprintf(&buf, " tag=%d", binary.LittleEndian.Uint16(data[4:]))
		}
	case formCompressed:
		if len(data) >= compressedHeaderSize {
			fmt.Fprintf(&buf, " raw_size=%d method=%v", binary.LittleEndian.Uint32(data[4:]), Compression(data[8]))
		}
	case formExternal:
		if ptr, err := decodeExternalPointer(data); err == nil {
			fmt.Fprintf(&buf, " id=%d raw_size=%d stored_size=%d", ptr.ID, ptr.RawSize, ptr.StoredSize)
		}
	}
	buf.WriteByte(' ')
	buf.WriteString(hexstr(truncate(data, 32)))
	if len(data) > 32 {
		buf.WriteString("...")
	}
	return buf.String()
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
