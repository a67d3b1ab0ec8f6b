package exdatum

import (
	"encoding/binary"
	"math"
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

func grow(buf []byte, n int) (int, []byte) {
	off := len(buf)
	newLen := off + n
	buf = ensureCapacity(buf, newLen)
	return off, buf[:newLen]
}

// Writer fills a fixed-size, caller-supplied buffer with little-endian
// fixed-width fields. Writing past the end of the buffer is a contract
// violation, because the buffer was sized by PayloadSize.
type Writer struct {
	Buf []byte
	Off int
}

func (w *Writer) reserve(n int) []byte {
	if w.Off+n > len(w.Buf) {
		contractf("payload overflows its declared size: writing %d bytes at %d into %d", n, w.Off, len(w.Buf))
	}
	b := w.Buf[w.Off : w.Off+n]
	w.Off += n
	return b
}

func (w *Writer) Uint32(v uint32) {
	binary.LittleEndian.PutUint32(w.reserve(4), v)
}

func (w *Writer) Uint64(v uint64) {
	binary.LittleEndian.PutUint64(w.reserve(8), v)
}

func (w *Writer) Int64(v int64) {
	w.Uint64(uint64(v))
}

func (w *Writer) Uint64s(vs []uint64) {
	b := w.reserve(8 * len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(b[8*i:], v)
	}
}

func (w *Writer) Raw(v []byte) {
	copy(w.reserve(len(v)), v)
}

// Remaining returns the number of bytes not written yet.
func (w *Writer) Remaining() int {
	return len(w.Buf) - w.Off
}

// Decoder reads little-endian fixed-width fields, reporting truncated input
// as a *DataError.
type Decoder struct {
	Orig []byte
	Buf  []byte
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{Orig: buf, Buf: buf}
}

func (d *Decoder) Off() int {
	return len(d.Orig) - len(d.Buf)
}

func (d *Decoder) Len() int {
	return len(d.Buf)
}

// Errorf returns a *DataError pointing at the current offset.
func (d *Decoder) Errorf(format string, args ...any) error {
	return dataErrf(d.Orig, d.Off(), nil, format, args...)
}

func (d *Decoder) Raw(n int) ([]byte, error) {
	if n < 0 || len(d.Buf) < n {
		return nil, d.Errorf("not enough data: %d bytes remaining, %d wanted", len(d.Buf), n)
	}
	v := d.Buf[:n]
	d.Buf = d.Buf[n:]
	return v, nil
}

func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.Raw(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.Raw(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

// Uint64s fills dst with the next len(dst) words.
func (d *Decoder) Uint64s(dst []uint64) error {
	b, err := d.Raw(8 * len(dst))
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint64(b[8*i:])
	}
	return nil
}

// FitsUint64s reports whether n more words are available, guarding against
// overflow when n comes straight from the input.
func (d *Decoder) FitsUint64s(n uint64) bool {
	return n <= math.MaxInt/8 && n*8 <= uint64(len(d.Buf))
}

// Finish reports an error if any input is left unread.
func (d *Decoder) Finish() error {
	if len(d.Buf) != 0 {
		return d.Errorf("%d trailing bytes", len(d.Buf))
	}
	return nil
}
