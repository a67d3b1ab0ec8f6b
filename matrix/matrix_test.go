package matrix

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/andreyvit/exdatum"
	"github.com/andreyvit/exdatum/region"
)

func TestNew_Empty(t *testing.T) {
	root := region.NewRoot("test")
	defer root.Release()

	m := New(3, 4, root)
	eq(t, exdatum.FlatSize(m), 32)
	eq(t, m.CachedFlatSize(), 32)

	flat := exdatum.Flatten(m)
	eq(t, len(flat), 32)
	eq(t, binary.LittleEndian.Uint64(flat[8:]), uint64(3))
	eq(t, binary.LittleEndian.Uint64(flat[16:]), uint64(4))
	eq(t, binary.LittleEndian.Uint64(flat[24:]), uint64(0))

	d, err := Get(exdatum.CompactDatum(flat), root)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	eq(t, d.Rows(), uint64(3))
	eq(t, d.Cols(), uint64(4))
	eq(t, d.NVals(), uint64(0))
	eq(t, d.At(2, 3), uint64(0))
	if d.RowPtr() != nil {
		t.Fatalf("RowPtr() = %v, wanted nil", d.RowPtr())
	}
}

// 1 0 2
// 0 0 0
// 0 3 0
func sample(t testing.TB, parent *region.Region) *Matrix {
	t.Helper()
	m, err := FromCSR(3, 3, []uint64{0, 2, 2, 3}, []uint64{0, 2, 1}, []uint64{1, 2, 3}, parent)
	if err != nil {
		t.Fatalf("FromCSR failed: %v", err)
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	root := region.NewRoot("test")
	defer root.Release()

	m := sample(t, root)
	eq(t, exdatum.FlatSize(m), 8+24+8*4+16*3)
	eq(t, m.At(0, 0), uint64(1))
	eq(t, m.At(0, 2), uint64(2))
	eq(t, m.At(2, 1), uint64(3))
	eq(t, m.At(1, 1), uint64(0))

	d, err := Get(exdatum.CompactDatum(exdatum.Flatten(m)), root)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	deepEqual(t, d.RowPtr(), m.RowPtr())
	deepEqual(t, d.ColIdx(), m.ColIdx())
	deepEqual(t, d.Values(), m.Values())
	eq(t, d.String(), m.String())

	p, err := Parse(m.String(), root)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	eq(t, p.NVals(), uint64(3))
	eq(t, p.At(2, 1), uint64(3))

	if _, err := Parse("xyz", root); err == nil {
		t.Fatalf("Parse(xyz) err = nil, wanted error")
	}
}

func TestFromCSR_Invalid(t *testing.T) {
	root := region.NewRoot("test")
	defer root.Release()

	tests := []struct {
		name                   string
		rows, cols             uint64
		rowPtr, colIdx, values []uint64
	}{
		{"short row ptrs", 3, 3, []uint64{0, 1}, []uint64{0}, []uint64{1}},
		{"first ptr", 1, 3, []uint64{1, 1}, []uint64{0}, []uint64{1}},
		{"last ptr", 1, 3, []uint64{0, 2}, []uint64{0}, []uint64{1}},
		{"decreasing", 2, 3, []uint64{0, 1, 0}, []uint64{0}, []uint64{1}},
		{"column range", 1, 3, []uint64{0, 1}, []uint64{3}, []uint64{1}},
		{"column order", 1, 3, []uint64{0, 2}, []uint64{1, 1}, []uint64{1, 2}},
		{"col count", 1, 3, []uint64{0, 1}, []uint64{0, 1}, []uint64{1}},
		{"ptrs without values", 1, 3, []uint64{0, 1}, nil, nil},
	}
	base := LiveBuffers()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromCSR(tt.rows, tt.cols, tt.rowPtr, tt.colIdx, tt.values, root); err == nil {
				t.Fatalf("FromCSR err = nil, wanted error")
			}
		})
	}
	eq(t, LiveBuffers(), base)
	eq(t, root.ChildCount(), 0)
}

func TestMultiply(t *testing.T) {
	root := region.NewRoot("test")
	defer root.Release()

	a := New(2, 3, root)
	b := New(3, 5, root)
	c, err := Multiply(a, b, root)
	if err != nil {
		t.Fatalf("Multiply failed: %v", err)
	}
	eq(t, c.Rows(), uint64(2))
	eq(t, c.Cols(), uint64(5))
	eq(t, c.NVals(), uint64(0))
	eq(t, c.Region().Parent(), root)
}

func TestMultiply_DimensionMismatch(t *testing.T) {
	root := region.NewRoot("test")
	defer root.Release()

	a := New(2, 3, root)
	b := New(4, 5, root)
	before := root.Stats()

	c, err := Multiply(a, b, root)
	if c != nil {
		t.Fatalf("Multiply returned a matrix on mismatch")
	}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Multiply err = %v, wanted ErrDimensionMismatch", err)
	}
	var de *DimensionError
	if !errors.As(err, &de) {
		t.Fatalf("Multiply err = %T, wanted *DimensionError", err)
	}
	eq(t, *de, DimensionError{LeftRows: 2, LeftCols: 3, RightRows: 4, RightCols: 5})
	eq(t, err.Error(), "cannot multiply 2x3 matrix by 4x5 matrix")
	eq(t, root.Stats(), before)
}

func TestDecode_Malformed(t *testing.T) {
	root := region.NewRoot("test")
	defer root.Release()

	good := exdatum.Flatten(sample(t, root))
	base := LiveBuffers()

	mutate := func(f func(b []byte) []byte) []byte {
		b := f(append([]byte(nil), good...))
		binary.LittleEndian.PutUint32(b, uint32(len(b)))
		return b
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated dims", mutate(func(b []byte) []byte { return b[:20] })},
		{"huge nvals", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[24:], 1<<62)
			return b
		})},
		{"huge rows", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[8:], 1<<63)
			return b
		})},
		{"max rows", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[8:], ^uint64(0))
			return b
		})},
		{"bad column", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[8+24+8*4:], 7)
			return b
		})},
		{"bad row ptr", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[8+24+8*3:], 2)
			return b
		})},
		{"trailing", mutate(func(b []byte) []byte { return append(b, make([]byte, 8)...) })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Get(exdatum.CompactDatum(tt.data), root)
			var de *exdatum.DataError
			if !errors.As(err, &de) {
				t.Fatalf("Get err = %v, wanted *DataError", err)
			}
			eq(t, LiveBuffers(), base)
		})
	}
	eq(t, root.ChildCount(), 1)
}

func TestTeardown_FreesBuffers(t *testing.T) {
	base := LiveBuffers()

	root := region.NewRoot("test")
	query := root.NewChild("query")
	m := sample(t, query)
	d, err := Get(exdatum.CompactDatum(exdatum.Flatten(m)), query)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	eq(t, LiveBuffers(), base+6)

	query.Release()
	query.Release()
	eq(t, LiveBuffers(), base)
	eq(t, root.Stats().Callbacks, 2)
	eq(t, root.Stats().Live(), 1)

	func() {
		defer func() {
			e := recover()
			err, _ := e.(error)
			if !errors.Is(err, exdatum.ErrContract) {
				t.Fatalf("Rows after release: recover() = %v, wanted ErrContract", e)
			}
		}()
		d.Rows()
	}()

	root.Release()
	eq(t, LiveBuffers(), base)
}

func TestTeardown_ClearsRetainedArrays(t *testing.T) {
	root := region.NewRoot("test")
	defer root.Release()
	query := root.NewChild("query")
	m := sample(t, query)
	rowPtr, colIdx, values := m.RowPtr(), m.ColIdx(), m.Values()

	query.Release()
	for _, a := range [][]uint64{rowPtr, colIdx, values} {
		for i, v := range a {
			if v != 0 {
				t.Fatalf("retained array %v: [%d] = %d after release, wanted 0", a, i, v)
			}
		}
	}
}

func TestAt_OutOfRange(t *testing.T) {
	root := region.NewRoot("test")
	defer root.Release()

	m := New(2, 2, root)
	defer func() {
		e := recover()
		err, _ := e.(error)
		if !errors.Is(err, exdatum.ErrContract) {
			t.Fatalf("recover() = %v, wanted ErrContract", e)
		}
	}()
	m.At(2, 0)
}

func eq[T comparable](t testing.TB, a, e T) {
	t.Helper()
	if a != e {
		t.Fatalf("** got %v, wanted %v", a, e)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	t.Helper()
	if !reflect.DeepEqual(a, e) {
		t.Fatalf("** got %v, wanted %v", a, e)
	}
}
