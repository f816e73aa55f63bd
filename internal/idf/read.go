package idf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/rs/zerolog/log"
)

// Read decodes the IDF file at path.
func Read(path string) (Header, *Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, &IOError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h, err := DecodeHeader(r)
	if err != nil {
		return Header{}, nil, withPath(err, path)
	}

	// Reject short files before allocating the value block.
	if st, err := f.Stat(); err == nil {
		want := int64(h.headerSize()) + h.dataSize()
		if st.Size() < want {
			return Header{}, nil, &FormatError{
				Path:  path,
				Field: "data",
				Err:   fmt.Errorf("%w: file has %d bytes, want %d", ErrTruncated, st.Size(), want),
			}
		}
	}

	a, err := decodeData(r, h)
	if err != nil {
		return Header{}, nil, withPath(err, path)
	}
	log.Debug().
		Str("path", path).
		Int("ncol", h.NCol).
		Int("nrow", h.NRow).
		Stringer("precision", h.Precision).
		Msg("idf.Read")
	return h, a, nil
}

// ReadHeader decodes only the preamble of the IDF file at path.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, &IOError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	h, err := DecodeHeader(bufio.NewReader(f))
	if err != nil {
		return Header{}, withPath(err, path)
	}
	return h, nil
}

// Decode reads a header and its value block from r.
func Decode(r io.Reader) (Header, *Array, error) {
	h, err := DecodeHeader(r)
	if err != nil {
		return Header{}, nil, err
	}
	a, err := decodeData(r, h)
	if err != nil {
		return Header{}, nil, err
	}
	return h, a, nil
}

// DecodeHeader reads the IDF preamble from r. It consumes exactly the header
// bytes, leaving r positioned at the value block.
func DecodeHeader(r io.Reader) (Header, error) {
	d := decoder{r: r}

	id, err := d.readInt32("record_id")
	if err != nil {
		return Header{}, err
	}
	var h Header
	switch id {
	case RecordIDSingle:
		h.Precision = Single
	case RecordIDDouble:
		h.Precision = Double
	default:
		return Header{}, &FormatError{Field: "record_id", Err: fmt.Errorf("%w: %d", ErrUnsupportedRecordID, id)}
	}
	d.prec = h.Precision
	if h.Precision == Double {
		if err := d.skip("record_id", 4); err != nil {
			return Header{}, err
		}
	}

	ncol, err := d.readInt("ncol")
	if err != nil {
		return Header{}, err
	}
	nrow, err := d.readInt("nrow")
	if err != nil {
		return Header{}, err
	}
	if ncol <= 0 || nrow <= 0 || ncol > math.MaxInt32 || nrow > math.MaxInt32 {
		return Header{}, &FormatError{Field: "ncol/nrow", Err: fmt.Errorf("%w: ncol=%d nrow=%d", ErrInvalidDimensions, ncol, nrow)}
	}
	h.NCol, h.NRow = int(ncol), int(nrow)

	floats := []struct {
		name string
		dst  *float64
	}{
		{"xmin", &h.XMin},
		{"xmax", &h.XMax},
		{"ymin", &h.YMin},
		{"ymax", &h.YMax},
		{"dmin", &h.DMin},
		{"dmax", &h.DMax},
		{"nodata", &h.NoData},
	}
	for _, f := range floats {
		v, err := d.readFloat(f.name)
		if err != nil {
			return Header{}, err
		}
		*f.dst = v
	}

	flags, err := d.readBytes("ieq/itb", 2)
	if err != nil {
		return Header{}, err
	}
	// The stored ieq byte means "non-equidistant".
	h.Equidistant = flags[0] == 0
	h.HasTopBottom = flags[1] != 0
	if !h.Equidistant {
		return Header{}, &FormatError{Field: "ieq", Err: ErrNonEquidistant}
	}
	if err := d.skip("padding", h.Precision.padding()); err != nil {
		return Header{}, err
	}

	dx, err := d.readFloat("dx")
	if err != nil {
		return Header{}, err
	}
	dy, err := d.readFloat("dy")
	if err != nil {
		return Header{}, err
	}
	h.DX = dx
	h.DY = -math.Abs(dy)

	if h.HasTopBottom {
		if h.Top, err = d.readFloat("top"); err != nil {
			return Header{}, err
		}
		if h.Bottom, err = d.readFloat("bottom"); err != nil {
			return Header{}, err
		}
	}
	return h, nil
}

// decodeChunk bounds the read buffer so a header claiming a huge grid cannot
// force an allocation larger than the data actually present.
const decodeChunk = 64 << 10

// decodeData reads the row-major value block in bounded chunks.
func decodeData(r io.Reader, h Header) (*Array, error) {
	size := h.Precision.size()
	total := h.NRow * h.NCol
	a := &Array{NRow: h.NRow, NCol: h.NCol, Precision: h.Precision}
	a.Values = make([]float64, 0, min(total, decodeChunk/size))
	buf := make([]byte, min(total, decodeChunk/size)*size)
	for done := 0; done < total; {
		n := min(total-done, len(buf)/size)
		chunk := buf[:n*size]
		if err := readFull(r, chunk, fmt.Sprintf("data[row=%d]", done/h.NCol)); err != nil {
			return nil, err
		}
		for j := 0; j < n; j++ {
			b := chunk[j*size : (j+1)*size]
			if size == 8 {
				a.Values = append(a.Values, math.Float64frombits(binary.LittleEndian.Uint64(b)))
			} else {
				a.Values = append(a.Values, float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
			}
		}
		done += n
	}
	return a, nil
}

type decoder struct {
	r    io.Reader
	prec Precision
	buf  [8]byte
}

func (d *decoder) readBytes(field string, n int) ([]byte, error) {
	b := d.buf[:n]
	if err := readFull(d.r, b, field); err != nil {
		return nil, err
	}
	return b, nil
}

func (d *decoder) skip(field string, n int) error {
	_, err := d.readBytes(field, n)
	return err
}

func (d *decoder) readInt32(field string) (int32, error) {
	b, err := d.readBytes(field, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (d *decoder) readInt(field string) (int64, error) {
	b, err := d.readBytes(field, d.prec.size())
	if err != nil {
		return 0, err
	}
	if d.prec == Double {
		return int64(binary.LittleEndian.Uint64(b)), nil
	}
	return int64(int32(binary.LittleEndian.Uint32(b))), nil
}

func (d *decoder) readFloat(field string) (float64, error) {
	b, err := d.readBytes(field, d.prec.size())
	if err != nil {
		return 0, err
	}
	if d.prec == Double {
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
}

func readFull(r io.Reader, b []byte, field string) error {
	if _, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &FormatError{Field: field, Err: ErrTruncated}
		}
		return &IOError{Op: "read", Err: err}
	}
	return nil
}
