package idf

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedRecordID  = errors.New("idf: unsupported record length identifier")
	ErrNonEquidistant       = errors.New("idf: non-equidistant grids are not supported")
	ErrTruncated            = errors.New("idf: truncated data")
	ErrInvalidDimensions    = errors.New("idf: invalid grid dimensions")
	ErrNotTwoDimensional    = errors.New("idf: array is not two-dimensional")
	ErrUnsupportedPrecision = errors.New("idf: unsupported precision")
	ErrInvalidCellSize      = errors.New("idf: invalid cell size")
	ErrInvalidTransform     = errors.New("idf: unsupported geotransform")
)

// FormatError reports a malformed or unsupported file layout.
type FormatError struct {
	Path  string
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	where := e.Path
	if where == "" {
		where = "<stream>"
	}
	if e.Field == "" {
		return fmt.Sprintf("idf: format error in %s: %v", where, e.Err)
	}
	return fmt.Sprintf("idf: format error in %s field=%s: %v", where, e.Field, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IOError reports a filesystem or stream failure unrelated to content.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	where := e.Path
	if where == "" {
		where = "<stream>"
	}
	return fmt.Sprintf("idf: %s %s: %v", e.Op, where, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ValueError reports structurally invalid caller input.
type ValueError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValueError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("idf: invalid value: %s", e.Reason)
	}
	return fmt.Sprintf("idf: invalid value field=%s: %s", e.Field, e.Reason)
}

func (e *ValueError) Unwrap() error { return e.Err }

// withPath stamps path onto errors produced by the stream codec.
func withPath(err error, path string) error {
	var fe *FormatError
	if errors.As(err, &fe) && fe.Path == "" {
		fe.Path = path
	}
	var ie *IOError
	if errors.As(err, &ie) && ie.Path == "" {
		ie.Path = path
	}
	return err
}
