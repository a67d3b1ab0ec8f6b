package exdatum

import (
	"bytes"
	"errors"
	"testing"

	"github.com/andreyvit/exdatum/region"
)

// blob is a variable-length test value: len:u32 followed by the bytes.
type blob struct {
	Header
	data []byte

	// sizeSkew makes PayloadSize lie, to exercise writer checks.
	sizeSkew int
	releases *int
}

const (
	blobTag TypeTag = 100
	wordTag TypeTag = 101
)

var blobType = NewType[*blob](blobTag, "blob", 0xb10b0001, decodeBlob)

func newBlob(data []byte, parent *region.Region) *blob {
	r := parent.NewChild("blob")
	b := region.New[blob](r)
	b.data = r.Alloc(len(data))
	copy(b.data, data)
	return blobType.Attach(b, r)
}

func decodeBlob(r *region.Region, d *Decoder) (*blob, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	raw, err := d.Raw(int(n))
	if err != nil {
		return nil, err
	}
	b := region.New[blob](r)
	b.data = r.Alloc(len(raw))
	copy(b.data, raw)
	return b, nil
}

func (b *blob) PayloadSize() int {
	return 4 + len(b.data) + b.sizeSkew
}

func (b *blob) PutPayload(w *Writer) {
	w.Uint32(uint32(len(b.data)))
	w.Raw(b.data)
}

func (b *blob) ReleasePayload() {
	if b.releases != nil {
		*b.releases++
	}
}

// word is a fixed-size test value holding one uint64.
type word struct {
	Header
	v uint64
}

var wordType = NewType[*word](wordTag, "word", 0x30bd0001, func(r *region.Region, d *Decoder) (*word, error) {
	v, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	w := region.New[word](r)
	w.v = v
	return w, nil
})

func newWord(v uint64, parent *region.Region) *word {
	r := parent.NewChild("word")
	w := region.New[word](r)
	w.v = v
	return wordType.Attach(w, r)
}

func (w *word) PayloadSize() int { return 8 }
func (w *word) PutPayload(wr *Writer) { wr.Uint64(w.v) }

func repeated(n int) []byte {
	return bytes.Repeat([]byte("expanded value "), n/15+1)[:n]
}

func expectContract(t testing.TB, f func()) {
	t.Helper()
	defer func() {
		e := recover()
		err, _ := e.(error)
		if !errors.Is(err, ErrContract) {
			t.Fatalf("recover() = %v, wanted an ErrContract panic", e)
		}
	}()
	f()
}

func expectDataError(t testing.TB, err error) *DataError {
	t.Helper()
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, wanted *DataError", err)
	}
	return de
}

func eq[T comparable](t testing.TB, a, e T) {
	t.Helper()
	if a != e {
		t.Fatalf("** got %v, wanted %v", a, e)
	}
}
