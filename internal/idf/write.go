package idf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/rs/zerolog/log"
)

type writeOptions struct {
	noData    float64
	precision Precision
	precSet   bool
}

// WriteOption customizes Write and Encode.
type WriteOption func(*writeOptions)

// WithNoData sets the nodata sentinel. The default is DefaultNoData.
func WithNoData(v float64) WriteOption {
	return func(o *writeOptions) { o.noData = v }
}

// WithPrecision sets the output precision. The default is the array's own.
func WithPrecision(p Precision) WriteOption {
	return func(o *writeOptions) {
		o.precision = p
		o.precSet = true
	}
}

func resolveWriteOptions(a *Array, ref SpatialReference, opts []WriteOption) (writeOptions, error) {
	o := writeOptions{noData: DefaultNoData}
	for _, opt := range opts {
		opt(&o)
	}
	if err := a.validate(); err != nil {
		return o, err
	}
	if !o.precSet {
		o.precision = a.Precision
	}
	if !o.precision.valid() {
		return o, &ValueError{Field: "precision", Reason: fmt.Sprintf("unsupported precision %v", o.precision), Err: ErrUnsupportedPrecision}
	}
	if err := ref.validate(); err != nil {
		return o, err
	}
	return o, nil
}

// Write encodes a to a new IDF file at path, replacing any existing file.
// Input is validated before the file is created. A failure after that point
// may leave a truncated file behind.
func Write(path string, a *Array, ref SpatialReference, opts ...WriteOption) (err error) {
	if _, err := resolveWriteOptions(a, ref, opts); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return &IOError{Path: path, Op: "create", Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &IOError{Path: path, Op: "close", Err: cerr}
		}
	}()

	w := bufio.NewWriter(f)
	if err := Encode(w, a, ref, opts...); err != nil {
		return withPath(err, path)
	}
	if err := w.Flush(); err != nil {
		return &IOError{Path: path, Op: "write", Err: err}
	}
	log.Debug().
		Str("path", path).
		Int("ncol", a.NCol).
		Int("nrow", a.NRow).
		Msg("idf.Write")
	return nil
}

// Encode writes a and its header to w.
func Encode(w io.Writer, a *Array, ref SpatialReference, opts ...WriteOption) error {
	o, err := resolveWriteOptions(a, ref, opts)
	if err != nil {
		return err
	}
	p := o.precision

	// Range over values as they will be stored.
	stored := a.Values
	if p == Single && a.Precision != Single {
		stored = make([]float64, len(a.Values))
		for i, v := range a.Values {
			stored[i] = float64(float32(v))
		}
	}
	storedNoData := o.noData
	if p == Single {
		storedNoData = float64(float32(o.noData))
	}
	dmin, dmax, ok := dataRange(stored, storedNoData)
	if !ok {
		dmin, dmax = o.noData, o.noData
	}

	e := encoder{prec: p}
	e.putInt32(p.recordID())
	if p == Double {
		e.putInt32(p.recordID())
	}
	e.putInt(int64(a.NCol))
	e.putInt(int64(a.NRow))
	e.putFloat(ref.XMin)
	e.putFloat(ref.XMax)
	e.putFloat(ref.YMin)
	e.putFloat(ref.YMax)
	e.putFloat(dmin)
	e.putFloat(dmax)
	e.putFloat(o.noData)
	// ieq is stored inverted: 0 means equidistant. itb is never written.
	e.buf = append(e.buf, 0, 0)
	e.buf = append(e.buf, make([]byte, p.padding())...)
	e.putFloat(math.Abs(ref.DX))
	e.putFloat(math.Abs(ref.DY))
	if _, err := w.Write(e.buf); err != nil {
		return &IOError{Op: "write", Err: err}
	}

	for r := 0; r < a.NRow; r++ {
		e.buf = e.buf[:0]
		for _, v := range stored[r*a.NCol : (r+1)*a.NCol] {
			e.putFloat(v)
		}
		if _, err := w.Write(e.buf); err != nil {
			return &IOError{Op: "write", Err: err}
		}
	}
	return nil
}

type encoder struct {
	prec Precision
	buf  []byte
}

func (e *encoder) putInt32(v int32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v))
}

func (e *encoder) putInt(v int64) {
	if e.prec == Double {
		e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(v))
		return
	}
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(int32(v)))
}

func (e *encoder) putFloat(v float64) {
	if e.prec == Double {
		e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
		return
	}
	e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(float32(v)))
}
