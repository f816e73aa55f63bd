package idf

import (
	"fmt"
	"math"
)

// Precision selects the element width of an IDF file.
type Precision int

const (
	Single Precision = iota
	Double
)

// Record length identifiers at offset 0.
const (
	RecordIDSingle int32 = 1271
	RecordIDDouble int32 = 2295
)

// DefaultNoData is the conventional IDF nodata sentinel.
const DefaultNoData = 1.0e20

func (p Precision) String() string {
	switch p {
	case Single:
		return "single"
	case Double:
		return "double"
	default:
		return fmt.Sprintf("precision(%d)", int(p))
	}
}

func (p Precision) valid() bool {
	return p == Single || p == Double
}

// size is the byte width of ints and floats in this layout.
func (p Precision) size() int {
	if p == Double {
		return 8
	}
	return 4
}

// recordID is the identifier written at offset 0.
func (p Precision) recordID() int32 {
	if p == Double {
		return RecordIDDouble
	}
	return RecordIDSingle
}

// padding is the number of reserved bytes after the ieq/itb flags.
func (p Precision) padding() int {
	if p == Double {
		return 2 + 4
	}
	return 2
}

// ParsePrecision maps "single"/"double" (and "f4"/"f8") to a Precision.
func ParsePrecision(raw string) (Precision, error) {
	switch raw {
	case "single", "float32", "f4":
		return Single, nil
	case "double", "float64", "f8":
		return Double, nil
	default:
		return 0, &ValueError{Field: "precision", Reason: fmt.Sprintf("unknown precision %q", raw), Err: ErrUnsupportedPrecision}
	}
}

// Header is the decoded IDF preamble. It is immutable once read.
type Header struct {
	NCol int
	NRow int

	XMin float64
	XMax float64
	YMin float64
	YMax float64

	// DMin and DMax are the stored data range. They are informational only;
	// Write always recomputes them.
	DMin float64
	DMax float64

	NoData float64

	// DX is positive. DY is negative: rows are stored north to south.
	DX float64
	DY float64

	Equidistant  bool
	HasTopBottom bool
	Top          float64
	Bottom       float64

	Precision Precision
}

// headerSize returns the encoded header length in bytes.
func (h Header) headerSize() int {
	return headerSize(h.Precision, h.HasTopBottom)
}

func headerSize(p Precision, topBottom bool) int {
	n := p.size()
	size := 4 // record id
	if p == Double {
		size += 4
	}
	size += 2 * n // ncol, nrow
	size += 4 * n // xmin, xmax, ymin, ymax
	size += 2 * n // dmin, dmax
	size += n     // nodata
	size += 2     // ieq, itb
	size += p.padding()
	size += 2 * n // dx, dy
	if topBottom {
		size += 2 * n
	}
	return size
}

// dataSize returns the encoded length of the value block.
func (h Header) dataSize() int64 {
	return int64(h.NRow) * int64(h.NCol) * int64(h.Precision.size())
}

// XCoords returns the cell-center x coordinates, west to east.
func (h Header) XCoords() []float64 {
	out := make([]float64, h.NCol)
	for i := range out {
		out[i] = h.XMin + (float64(i)+0.5)*h.DX
	}
	return out
}

// YCoords returns the cell-center y coordinates, north to south.
func (h Header) YCoords() []float64 {
	out := make([]float64, h.NRow)
	for i := range out {
		out[i] = h.YMax + (float64(i)+0.5)*h.DY
	}
	return out
}

// SpatialReference returns the header geometry as a write-side tuple.
func (h Header) SpatialReference() SpatialReference {
	return SpatialReference{
		DX:   h.DX,
		XMin: h.XMin,
		XMax: h.XMax,
		DY:   h.DY,
		YMin: h.YMin,
		YMax: h.YMax,
	}
}

// SpatialReference is the (dx, xmin, xmax, dy, ymin, ymax) tuple used by Write.
// The sign of DX and DY is ignored on write.
type SpatialReference struct {
	DX   float64
	XMin float64
	XMax float64
	DY   float64
	YMin float64
	YMax float64
}

func (s SpatialReference) validate() error {
	if s.DX == 0 || math.IsNaN(s.DX) || math.IsInf(s.DX, 0) {
		return &ValueError{Field: "dx", Reason: fmt.Sprintf("cell size must be finite and nonzero, got %v", s.DX), Err: ErrInvalidCellSize}
	}
	if s.DY == 0 || math.IsNaN(s.DY) || math.IsInf(s.DY, 0) {
		return &ValueError{Field: "dy", Reason: fmt.Sprintf("cell size must be finite and nonzero, got %v", s.DY), Err: ErrInvalidCellSize}
	}
	return nil
}
