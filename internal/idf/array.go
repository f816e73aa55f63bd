package idf

import (
	"fmt"
	"math"
)

// Array is a row-major (NRow, NCol) grid of values.
//
// Values are held as float64. Single precision data is widened exactly on
// read and narrowed again on write, so a single precision round trip is
// bit exact.
type Array struct {
	NRow      int
	NCol      int
	Precision Precision
	Values    []float64
}

// NewArray copies rows into a double precision Array. Empty or ragged input
// is rejected.
func NewArray(rows [][]float64) (*Array, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, &ValueError{Field: "array", Reason: "array must have at least one row and one column", Err: ErrNotTwoDimensional}
	}
	ncol := len(rows[0])
	values := make([]float64, 0, len(rows)*ncol)
	for i, row := range rows {
		if len(row) != ncol {
			return nil, &ValueError{
				Field:  "array",
				Reason: fmt.Sprintf("row %d has %d columns, want %d", i, len(row), ncol),
				Err:    ErrNotTwoDimensional,
			}
		}
		values = append(values, row...)
	}
	return &Array{NRow: len(rows), NCol: ncol, Precision: Double, Values: values}, nil
}

// NewArray32 is NewArray for float32 input; the result is single precision.
func NewArray32(rows [][]float32) (*Array, error) {
	wide := make([][]float64, len(rows))
	for i, row := range rows {
		wide[i] = make([]float64, len(row))
		for j, v := range row {
			wide[i][j] = float64(v)
		}
	}
	a, err := NewArray(wide)
	if err != nil {
		return nil, err
	}
	a.Precision = Single
	return a, nil
}

// At returns the value at row r, column c.
func (a *Array) At(r, c int) float64 {
	return a.Values[r*a.NCol+c]
}

// Rows returns a copy of the data as nested rows.
func (a *Array) Rows() [][]float64 {
	out := make([][]float64, a.NRow)
	for r := range out {
		out[r] = append([]float64(nil), a.Values[r*a.NCol:(r+1)*a.NCol]...)
	}
	return out
}

func (a *Array) validate() error {
	if a == nil {
		return &ValueError{Field: "array", Reason: "array is nil", Err: ErrNotTwoDimensional}
	}
	if a.NRow <= 0 || a.NCol <= 0 {
		return &ValueError{
			Field:  "array",
			Reason: fmt.Sprintf("shape (%d, %d) is not a non-empty 2D shape", a.NRow, a.NCol),
			Err:    ErrNotTwoDimensional,
		}
	}
	if len(a.Values) != a.NRow*a.NCol {
		return &ValueError{
			Field:  "array",
			Reason: fmt.Sprintf("%d values do not fill shape (%d, %d)", len(a.Values), a.NRow, a.NCol),
			Err:    ErrNotTwoDimensional,
		}
	}
	return nil
}

// dataRange returns the min and max over values that are neither NaN nor
// nodata. ok is false when no such value exists.
// ReplaceNoData rewrites every cell equal to from as to and returns the
// number of cells changed. A NaN from matches NaN cells.
func (a *Array) ReplaceNoData(from, to float64) int {
	n := 0
	for i, v := range a.Values {
		if v == from || (math.IsNaN(from) && math.IsNaN(v)) {
			a.Values[i] = to
			n++
		}
	}
	return n
}

func dataRange(values []float64, nodata float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || v == nodata {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		ok = true
	}
	return lo, hi, ok
}
