package exdatum

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrContract is wrapped by every panic value raised on a caller bug: a flatten
// buffer of the wrong size, a corrupted or mismatched header, use of a value
// whose region has been released. These are never returned as errors.
var ErrContract = errors.New("exdatum: contract violation")

// DataError reports malformed compact bytes.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

// NewDataError is used by value types to report payloads they cannot decode.
func NewDataError(data []byte, off int, err error, format string, args ...any) error {
	return dataErrf(data, off, err, format, args...)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}

type contractError struct {
	msg string
}

func (e *contractError) Error() string { return ErrContract.Error() + ": " + e.msg }
func (e *contractError) Unwrap() error { return ErrContract }

func contractf(format string, args ...any) {
	err := &contractError{fmt.Sprintf(format, args...)}
	logger().Error("contract violation", zap.String("msg", err.msg))
	panic(err)
}

// Contractf panics with an error wrapping ErrContract. Value types use it for
// the same class of caller bugs the generic code detects.
func Contractf(format string, args ...any) {
	contractf(format, args...)
}
