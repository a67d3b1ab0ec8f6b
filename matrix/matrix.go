// Package matrix implements a sparse matrix in compressed sparse row (CSR)
// form as an expanded value.
//
// Compact form, after the common 8-byte header:
//
//	rows:u64 cols:u64 nvals:u64 row_ptrs:u64*(rows+1) col_idx:u64*nvals values:u64*nvals
//
// row_ptrs is present only when nvals > 0. An empty matrix of any shape is
// 32 bytes.
package matrix

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/andreyvit/exdatum"
	"github.com/andreyvit/exdatum/region"
)

const (
	Tag   exdatum.TypeTag = 2
	Magic uint32          = 1314413357

	fixedPayloadSize = 24
)

var Type = exdatum.NewType[*Matrix](Tag, "matrix", Magic, decode)

// Matrix is an expanded sparse matrix. Its arrays are allocated outside the
// owning region and freed when the region is released.
type Matrix struct {
	exdatum.Header
	rows  uint64
	cols  uint64
	nvals uint64

	rowPtr []uint64
	colIdx []uint64
	values []uint64
}

// New creates an empty rows x cols matrix in a new child region of parent.
func New(rows, cols uint64, parent *region.Region) *Matrix {
	r := parent.NewChild("matrix")
	m := region.New[Matrix](r)
	m.rows, m.cols = rows, cols
	return Type.Attach(m, r)
}

// FromCSR creates a matrix from CSR arrays, which are copied. An empty
// rowPtr is accepted when there are no values.
func FromCSR(rows, cols uint64, rowPtr, colIdx, values []uint64, parent *region.Region) (*Matrix, error) {
	if len(values) == 0 && len(colIdx) == 0 {
		for _, p := range rowPtr {
			if p != 0 {
				return nil, fmt.Errorf("matrix: row pointer %d in a matrix without values", p)
			}
		}
		rowPtr = nil
	}
	if err := validateCSR(rows, cols, rowPtr, colIdx, values); err != nil {
		return nil, fmt.Errorf("matrix: %w", err)
	}

	r := parent.NewChild("matrix")
	m := region.New[Matrix](r)
	m.rows, m.cols, m.nvals = rows, cols, uint64(len(values))
	m.rowPtr = cloneUint64s(rowPtr)
	m.colIdx = cloneUint64s(colIdx)
	m.values = cloneUint64s(values)
	return Type.Attach(m, r), nil
}

// Multiply checks that a and b can be multiplied and returns an empty
// a.Rows() x b.Cols() matrix. No arithmetic is performed.
func Multiply(a, b *Matrix, parent *region.Region) (*Matrix, error) {
	a, b = Type.Cast(a), Type.Cast(b)
	if a.cols != b.rows {
		return nil, &DimensionError{
			LeftRows:  a.rows,
			LeftCols:  a.cols,
			RightRows: b.rows,
			RightCols: b.cols,
		}
	}
	return New(a.rows, b.cols, parent), nil
}

// Get expands d into a matrix, decoding into a child region of parent if
// needed.
func Get(d exdatum.Datum, parent *region.Region) (*Matrix, error) {
	return Type.Expand(d, parent)
}

// Parse decodes the hex text of a compact matrix.
func Parse(text string, parent *region.Region) (*Matrix, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("matrix: invalid hex input: %w", err)
	}
	return Get(exdatum.CompactDatum(raw), parent)
}

// String returns the hex text of m's compact form, as accepted by Parse.
func (m *Matrix) String() string {
	return hex.EncodeToString(exdatum.Flatten(m))
}

// Datum wraps m in an expanded datum.
func (m *Matrix) Datum() exdatum.Datum {
	return exdatum.ExpandedDatum(m)
}

func (m *Matrix) Rows() uint64 {
	m.check()
	return m.rows
}

func (m *Matrix) Cols() uint64 {
	m.check()
	return m.cols
}

// NVals returns the number of stored values.
func (m *Matrix) NVals() uint64 {
	m.check()
	return m.nvals
}

// RowPtr returns the CSR row pointers, or nil when there are no stored
// values. The returned arrays must not be modified and are only valid until
// the owning region is released; after that their memory is zeroed and
// reused by other matrices.
func (m *Matrix) RowPtr() []uint64 {
	m.check()
	return m.rowPtr
}

// ColIdx returns the column of each stored value. Like RowPtr, it is valid
// until the owning region is released.
func (m *Matrix) ColIdx() []uint64 {
	m.check()
	return m.colIdx
}

// Values returns the stored values in row order, valid until the owning
// region is released.
func (m *Matrix) Values() []uint64 {
	m.check()
	return m.values
}

// At returns the value at row i, column j, or 0 if none is stored.
func (m *Matrix) At(i, j uint64) uint64 {
	m.check()
	if i >= m.rows || j >= m.cols {
		exdatum.Contractf("matrix index (%d, %d) out of range for %dx%d", i, j, m.rows, m.cols)
	}
	if m.nvals == 0 {
		return 0
	}
	for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
		if m.colIdx[k] == j {
			return m.values[k]
		}
	}
	return 0
}

func (m *Matrix) check() {
	Type.Cast(m)
}

func (m *Matrix) PayloadSize() int {
	return fixedPayloadSize + 8*len(m.rowPtr) + 16*int(m.nvals)
}

func (m *Matrix) PutPayload(w *exdatum.Writer) {
	w.Uint64(m.rows)
	w.Uint64(m.cols)
	w.Uint64(m.nvals)
	w.Uint64s(m.rowPtr)
	w.Uint64s(m.colIdx)
	w.Uint64s(m.values)
}

func (m *Matrix) ReleasePayload() {
	freeUint64s(m.rowPtr)
	freeUint64s(m.colIdx)
	freeUint64s(m.values)
	m.rowPtr, m.colIdx, m.values = nil, nil, nil
}

func decode(r *region.Region, d *exdatum.Decoder) (*Matrix, error) {
	var dims [3]uint64
	if err := d.Uint64s(dims[:]); err != nil {
		return nil, err
	}
	rows, cols, nvals := dims[0], dims[1], dims[2]

	var nptr uint64
	if nvals > 0 {
		if rows == math.MaxUint64 {
			return nil, d.Errorf("matrix with %d rows cannot have row pointers", rows)
		}
		nptr = rows + 1
	}
	if !d.FitsUint64s(nptr) || !d.FitsUint64s(nvals) || !d.FitsUint64s(nptr+2*nvals) {
		return nil, d.Errorf("matrix arrays of %d+%d+%d entries do not fit in %d bytes", nptr, nvals, nvals, d.Len())
	}

	m := region.New[Matrix](r)
	m.rows, m.cols, m.nvals = rows, cols, nvals
	m.rowPtr = allocUint64s(int(nptr))
	m.colIdx = allocUint64s(int(nvals))
	m.values = allocUint64s(int(nvals))

	off := d.Off()
	err := d.Uint64s(m.rowPtr)
	if err == nil {
		err = d.Uint64s(m.colIdx)
	}
	if err == nil {
		err = d.Uint64s(m.values)
	}
	if err == nil {
		if verr := validateCSR(rows, cols, m.rowPtr, m.colIdx, m.values); verr != nil {
			err = exdatum.NewDataError(d.Orig, off, verr, "invalid matrix")
		}
	}
	if err != nil {
		m.ReleasePayload()
		return nil, err
	}
	return m, nil
}

func validateCSR(rows, cols uint64, rowPtr, colIdx, values []uint64) error {
	nvals := uint64(len(values))
	if uint64(len(colIdx)) != nvals {
		return fmt.Errorf("%d column indices for %d values", len(colIdx), nvals)
	}
	if nvals == 0 {
		if len(rowPtr) != 0 {
			return fmt.Errorf("%d row pointers in a matrix without values", len(rowPtr))
		}
		return nil
	}
	if len(rowPtr) == 0 || uint64(len(rowPtr)-1) != rows {
		return fmt.Errorf("%d row pointers for %d rows", len(rowPtr), rows)
	}
	if rowPtr[0] != 0 {
		return fmt.Errorf("first row pointer is %d, expected 0", rowPtr[0])
	}
	if last := rowPtr[len(rowPtr)-1]; last != nvals {
		return fmt.Errorf("last row pointer is %d, expected %d", last, nvals)
	}
	for i := uint64(0); i < rows; i++ {
		start, end := rowPtr[i], rowPtr[i+1]
		if end < start || end > nvals {
			return fmt.Errorf("row %d spans [%d, %d)", i, start, end)
		}
		for k := start; k < end; k++ {
			c := colIdx[k]
			if c >= cols {
				return fmt.Errorf("row %d has column %d, matrix has %d columns", i, c, cols)
			}
			if k > start && c <= colIdx[k-1] {
				return fmt.Errorf("row %d columns are not strictly increasing at entry %d", i, k)
			}
		}
	}
	return nil
}

func cloneUint64s(src []uint64) []uint64 {
	dst := allocUint64s(len(src))
	copy(dst, src)
	return dst
}
