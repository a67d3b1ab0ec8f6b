package exdatum

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the size of the common compact header: a 4-byte length
	// word followed by a 2-byte type tag and 2 reserved bytes.
	HeaderSize = 8

	// MaxCompactSize is the largest compact value the length word can
	// describe (1 GiB - 1).
	MaxCompactSize = 1<<formShift - 1

	formShift = 30
	sizeMask  = 1<<formShift - 1
)

// form is stored in the top two bits of the length word.
type form uint8

const (
	formPlain      form = 0
	formCompressed form = 1
	formExternal   form = 2
	formInvalid    form = 3
)

func (f form) String() string {
	switch f {
	case formPlain:
		return "plain"
	case formCompressed:
		return "compressed"
	case formExternal:
		return "external"
	default:
		return fmt.Sprintf("form(%d)", uint8(f))
	}
}

func packLengthWord(f form, size int) uint32 {
	if size < 0 || size > MaxCompactSize {
		panic(fmt.Errorf("invalid compact size %d", size))
	}
	return uint32(f)<<formShift | uint32(size)
}

func unpackLengthWord(w uint32) (form, int) {
	return form(w >> formShift), int(w & sizeMask)
}

func putCompactHeader(buf []byte, size int, tag TypeTag) {
	binary.LittleEndian.PutUint32(buf[0:], packLengthWord(formPlain, size))
	binary.LittleEndian.PutUint16(buf[4:], uint16(tag))
	binary.LittleEndian.PutUint16(buf[6:], 0)
}

// readLengthWord validates the length word of any compact form and returns the
// value trimmed to its declared length. Bytes past the declared length are
// ignored; fewer bytes than declared is an error.
func readLengthWord(data []byte) (form, []byte, error) {
	if len(data) < 4 {
		return formInvalid, nil, dataErrf(data, 0, nil, "invalid compact value: %d bytes, need at least 4", len(data))
	}
	f, size := unpackLengthWord(binary.LittleEndian.Uint32(data))
	if f == formInvalid {
		return f, nil, dataErrf(data, 0, nil, "invalid compact value: unknown form bits")
	}
	if size > len(data) {
		return f, nil, dataErrf(data, 0, nil, "invalid compact value: declares %d bytes, only %d available", size, len(data))
	}
	if size < 4 {
		return f, nil, dataErrf(data, 0, nil, "invalid compact value: declared length %d is shorter than the length word", size)
	}
	return f, data[:size], nil
}

// compactHeader is the decoded common header of a plain compact value.
type compactHeader struct {
	Size int
	Tag  TypeTag
}

func readCompactHeader(data []byte) (compactHeader, []byte, error) {
	f, data, err := readLengthWord(data)
	if err != nil {
		return compactHeader{}, nil, err
	}
	if f != formPlain {
		return compactHeader{}, nil, dataErrf(data, 0, nil, "invalid compact value: expected plain form, got %v", f)
	}
	if len(data) < HeaderSize {
		return compactHeader{}, nil, dataErrf(data, 0, nil, "invalid compact value: %d bytes, header alone needs %d", len(data), HeaderSize)
	}
	if reserved := binary.LittleEndian.Uint16(data[6:]); reserved != 0 {
		return compactHeader{}, nil, dataErrf(data, 6, nil, "invalid compact value: reserved header bits %x", reserved)
	}
	h := compactHeader{
		Size: len(data),
		Tag:  TypeTag(binary.LittleEndian.Uint16(data[4:])),
	}
	return h, data, nil
}

// PeekTag returns the type tag of a plain compact value.
func PeekTag(data []byte) (TypeTag, error) {
	h, _, err := readCompactHeader(data)
	return h.Tag, err
}
