package exdatum

import (
	"encoding/binary"
	"testing"
)

func TestReadLengthWord(t *testing.T) {
	word := func(f form, size int, extra ...byte) []byte {
		b := binary.LittleEndian.AppendUint32(nil, packLengthWord(f, size))
		return append(b, extra...)
	}
	tests := []struct {
		name    string
		data    []byte
		form    form
		size    int
		wantErr bool
	}{
		{"empty", nil, 0, 0, true},
		{"short", []byte{8, 0, 0}, 0, 0, true},
		{"invalid form", []byte{4, 0, 0, 0xC0}, 0, 0, true},
		{"declares more", word(formPlain, 9, 1, 2, 3, 4), 0, 0, true},
		{"declares less than word", word(formPlain, 3, 1, 2), 0, 0, true},
		{"exact", word(formPlain, 6, 1, 2), formPlain, 6, false},
		{"trailing ignored", word(formCompressed, 5, 1, 2, 3), formCompressed, 5, false},
		{"external", word(formExternal, 4), formExternal, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, data, err := readLengthWord(tt.data)
			if tt.wantErr {
				expectDataError(t, err)
				return
			}
			if err != nil {
				t.Fatalf("readLengthWord(%x) failed: %v", tt.data, err)
			}
			eq(t, f, tt.form)
			eq(t, len(data), tt.size)
		})
	}
}

func TestReadCompactHeader(t *testing.T) {
	hdr := make([]byte, HeaderSize)
	putCompactHeader(hdr, HeaderSize, 12)

	h, data, err := readCompactHeader(hdr)
	if err != nil {
		t.Fatalf("readCompactHeader failed: %v", err)
	}
	eq(t, h, compactHeader{Size: 8, Tag: 12})
	eq(t, len(data), 8)

	reserved := append([]byte(nil), hdr...)
	reserved[7] = 1
	_, _, err = readCompactHeader(reserved)
	eq(t, expectDataError(t, err).Off, 6)

	short := binary.LittleEndian.AppendUint32(nil, packLengthWord(formPlain, 6))
	_, _, err = readCompactHeader(append(short, 0, 0))
	expectDataError(t, err)

	compressed := append([]byte(nil), hdr...)
	binary.LittleEndian.PutUint32(compressed, packLengthWord(formCompressed, HeaderSize))
	_, _, err = readCompactHeader(compressed)
	expectDataError(t, err)
}

func TestPackLengthWord(t *testing.T) {
	f, size := unpackLengthWord(packLengthWord(formExternal, MaxCompactSize))
	eq(t, f, formExternal)
	eq(t, size, MaxCompactSize)

	defer func() {
		if recover() == nil {
			t.Fatalf("packLengthWord(1 GiB) did not panic")
		}
	}()
	packLengthWord(formPlain, MaxCompactSize+1)
}
