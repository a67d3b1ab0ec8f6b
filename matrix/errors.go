package matrix

import (
	"errors"
	"fmt"
)

var ErrDimensionMismatch = errors.New("matrix dimension mismatch")

// DimensionError reports operands whose shapes do not fit the operation.
type DimensionError struct {
	LeftRows, LeftCols   uint64
	RightRows, RightCols uint64
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("cannot multiply %dx%d matrix by %dx%d matrix", e.LeftRows, e.LeftCols, e.RightRows, e.RightCols)
}

func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
