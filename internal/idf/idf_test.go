package idf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/imodctl/internal/testutil/testlog"
)

// Byte offsets in the single precision layout.
const (
	offIEQSingle = 4 + 2*4 + 4*4 + 2*4 + 4
	offDXSingle  = offIEQSingle + 2 + 2
	offIEQDouble = 8 + 2*8 + 4*8 + 2*8 + 8
)

func sampleArray(t *testing.T) *Array {
	t.Helper()
	a, err := NewArray32([][]float32{{1, 2, 3}, {4, 5, 6}})
	if err != nil {
		t.Fatalf("new array: %v", err)
	}
	return a
}

func sampleRef() SpatialReference {
	return SpatialReference{DX: 1.0, XMin: 0.0, XMax: 3.0, DY: 1.0, YMin: 0.0, YMax: 2.0}
}

func writeTemp(t *testing.T, a *Array, ref SpatialReference, opts ...WriteOption) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.idf")
	if err := Write(path, a, ref, opts...); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestWriteReadSmallGrid(t *testing.T) {
	testlog.Start(t)
	path := writeTemp(t, sampleArray(t), sampleRef(), WithNoData(1e20))

	h, a, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if h.NCol != 3 || h.NRow != 2 {
		t.Fatalf("unexpected shape: ncol=%d nrow=%d", h.NCol, h.NRow)
	}
	if h.XMin != 0 || h.XMax != 3 || h.YMin != 0 || h.YMax != 2 {
		t.Fatalf("unexpected extent: %+v", h)
	}
	if h.DX != 1 || h.DY != -1 {
		t.Fatalf("unexpected cell size: dx=%v dy=%v", h.DX, h.DY)
	}
	if !h.Equidistant || h.HasTopBottom {
		t.Fatalf("unexpected flags: equidistant=%v itb=%v", h.Equidistant, h.HasTopBottom)
	}
	if h.Precision != Single {
		t.Fatalf("unexpected precision: %v", h.Precision)
	}
	if h.NoData != float64(float32(1e20)) {
		t.Fatalf("unexpected nodata: %v", h.NoData)
	}
	want := []float64{1, 2, 3, 4, 5, 6}
	for i, v := range want {
		if a.Values[i] != v {
			t.Fatalf("value[%d]=%v want %v", i, a.Values[i], v)
		}
	}
	if a.At(1, 2) != 6 {
		t.Fatalf("unexpected At(1,2)=%v", a.At(1, 2))
	}
}

func TestRoundTripDouble(t *testing.T) {
	testlog.Start(t)
	rows := [][]float64{
		{0.1, -2.5, math.Pi},
		{1e-12, 42, DefaultNoData},
		{7, 8, 9.000000000001},
		{-1, -2, -3},
	}
	a, err := NewArray(rows)
	if err != nil {
		t.Fatalf("new array: %v", err)
	}
	ref := SpatialReference{DX: 25, XMin: 1000, XMax: 1075, DY: -25, YMin: 500, YMax: 600}
	path := writeTemp(t, a, ref, WithPrecision(Double))

	h, got, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if h.Precision != Double {
		t.Fatalf("unexpected precision: %v", h.Precision)
	}
	if h.DX != 25 || h.DY != -25 {
		t.Fatalf("unexpected cell size: dx=%v dy=%v", h.DX, h.DY)
	}
	if h.XMin != 1000 || h.XMax != 1075 || h.YMin != 500 || h.YMax != 600 {
		t.Fatalf("unexpected extent: %+v", h)
	}
	if h.DMin != -3 || h.DMax != 42 {
		t.Fatalf("dmin/dmax must skip nodata: dmin=%v dmax=%v", h.DMin, h.DMax)
	}
	for i := range a.Values {
		if got.Values[i] != a.Values[i] {
			t.Fatalf("value[%d]=%v want %v", i, got.Values[i], a.Values[i])
		}
	}
	if got := got.Rows(); len(got) != 4 || len(got[0]) != 3 {
		t.Fatalf("unexpected rows shape: %d", len(got))
	}
}

func TestWriteNarrowsToSingle(t *testing.T) {
	testlog.Start(t)
	a, err := NewArray([][]float64{{0.1, 0.2}, {0.3, 0.4}})
	if err != nil {
		t.Fatalf("new array: %v", err)
	}
	path := writeTemp(t, a, SpatialReference{DX: 1, XMax: 2, DY: 1, YMax: 2}, WithPrecision(Single))
	h, got, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if h.Precision != Single {
		t.Fatalf("unexpected precision: %v", h.Precision)
	}
	for i, v := range a.Values {
		if got.Values[i] != float64(float32(v)) {
			t.Fatalf("value[%d]=%v want %v", i, got.Values[i], float32(v))
		}
	}
}

func TestDoubleLayout(t *testing.T) {
	testlog.Start(t)
	a := sampleArray(t)
	var buf bytes.Buffer
	if err := Encode(&buf, a, sampleRef(), WithPrecision(Double)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	b := buf.Bytes()
	if got := headerSize(Double, false) + 6*8; len(b) != got {
		t.Fatalf("unexpected size: %d want %d", len(b), got)
	}
	if binary.LittleEndian.Uint32(b[0:4]) != 2295 || binary.LittleEndian.Uint32(b[4:8]) != 2295 {
		t.Fatalf("record id not doubled: % x", b[0:8])
	}
	if binary.LittleEndian.Uint64(b[8:16]) != 3 || binary.LittleEndian.Uint64(b[16:24]) != 2 {
		t.Fatalf("unexpected ncol/nrow: % x", b[8:24])
	}
	if b[offIEQDouble] != 0 || b[offIEQDouble+1] != 0 {
		t.Fatalf("unexpected flags: % x", b[offIEQDouble:offIEQDouble+2])
	}
	for _, p := range b[offIEQDouble+2 : offIEQDouble+8] {
		if p != 0 {
			t.Fatalf("padding not zeroed: % x", b[offIEQDouble+2:offIEQDouble+8])
		}
	}
	dx := math.Float64frombits(binary.LittleEndian.Uint64(b[offIEQDouble+8:]))
	if dx != 1 {
		t.Fatalf("unexpected dx=%v", dx)
	}
}

func TestWriteStoresCellSizeMagnitudes(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	ref := SpatialReference{DX: -2, XMin: 0, XMax: 6, DY: -4, YMin: 0, YMax: 8}
	if err := Encode(&buf, sampleArray(t), ref); err != nil {
		t.Fatalf("encode: %v", err)
	}
	b := buf.Bytes()
	dx := math.Float32frombits(binary.LittleEndian.Uint32(b[offDXSingle:]))
	dy := math.Float32frombits(binary.LittleEndian.Uint32(b[offDXSingle+4:]))
	if dx != 2 || dy != 4 {
		t.Fatalf("expected positive magnitudes on disk, got dx=%v dy=%v", dx, dy)
	}

	h, _, err := Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.DX != 2 || h.DY != -4 {
		t.Fatalf("unexpected decoded cell size: dx=%v dy=%v", h.DX, h.DY)
	}
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestDecodeRejectsUnknownRecordID(t *testing.T) {
	testlog.Start(t)
	for _, id := range []int32{0, 1270, 1272, 2294, 2296, -1} {
		b := binary.LittleEndian.AppendUint32(nil, uint32(id))
		b = append(b, bytes.Repeat([]byte{0xff}, 64)...)
		cr := &countingReader{r: bytes.NewReader(b)}
		_, err := DecodeHeader(cr)
		var fe *FormatError
		if !errors.As(err, &fe) || !errors.Is(err, ErrUnsupportedRecordID) {
			t.Fatalf("id=%d: expected FormatError/ErrUnsupportedRecordID, got %v", id, err)
		}
		if fe.Field != "record_id" {
			t.Fatalf("id=%d: unexpected field %q", id, fe.Field)
		}
		if cr.n != 4 {
			t.Fatalf("id=%d: read %d bytes, want 4", id, cr.n)
		}
	}
}

func TestReadRejectsNonEquidistant(t *testing.T) {
	testlog.Start(t)
	for _, tc := range []struct {
		prec Precision
		off  int
	}{
		{Single, offIEQSingle},
		{Double, offIEQDouble},
	} {
		var buf bytes.Buffer
		if err := Encode(&buf, sampleArray(t), sampleRef(), WithPrecision(tc.prec)); err != nil {
			t.Fatalf("encode: %v", err)
		}
		b := buf.Bytes()
		b[tc.off] = 1
		// Header only, no data block: rejection must happen first.
		path := filepath.Join(t.TempDir(), "noneq.idf")
		if err := os.WriteFile(path, b[:tc.off+2], 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		_, _, err := Read(path)
		var fe *FormatError
		if !errors.As(err, &fe) || !errors.Is(err, ErrNonEquidistant) {
			t.Fatalf("%v: expected ErrNonEquidistant, got %v", tc.prec, err)
		}
		if fe.Path != path || fe.Field != "ieq" {
			t.Fatalf("%v: unexpected error context: %+v", tc.prec, fe)
		}
	}
}

func TestReadTruncated(t *testing.T) {
	testlog.Start(t)
	path := writeTemp(t, sampleArray(t), sampleRef())
	full, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	for _, n := range []int{2, 20, offDXSingle + 2, len(full) - 3} {
		if err := os.WriteFile(path, full[:n], 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		_, _, err := Read(path)
		var fe *FormatError
		if !errors.As(err, &fe) || !errors.Is(err, ErrTruncated) {
			t.Fatalf("len=%d: expected truncated FormatError, got %v", n, err)
		}
	}

	// Streams fail on the short row rather than a size check.
	_, _, err = Decode(bytes.NewReader(full[:len(full)-1]))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected truncated stream error, got %v", err)
	}
}

func TestReadTopBottom(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := Encode(&buf, sampleArray(t), sampleRef()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	b := buf.Bytes()
	hs := headerSize(Single, false)
	head := append([]byte(nil), b[:hs]...)
	head[offIEQSingle+1] = 1
	head = binary.LittleEndian.AppendUint32(head, math.Float32bits(10))
	head = binary.LittleEndian.AppendUint32(head, math.Float32bits(-5))
	withTB := append(head, b[hs:]...)

	h, a, err := Decode(bytes.NewReader(withTB))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !h.HasTopBottom || h.Top != 10 || h.Bottom != -5 {
		t.Fatalf("unexpected top/bottom: %+v", h)
	}
	if a.At(0, 0) != 1 || a.At(1, 2) != 6 {
		t.Fatalf("data misaligned after top/bottom: %v", a.Values)
	}
}

func TestReadMissingFileIsIOError(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "missing.idf")
	_, _, err := Read(path)
	var ie *IOError
	if !errors.As(err, &ie) || ie.Op != "open" || ie.Path != path {
		t.Fatalf("expected open IOError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestWriteRejectsInvalidInput(t *testing.T) {
	testlog.Start(t)
	if _, err := NewArray([][]float64{{1, 2}, {3}}); !errors.Is(err, ErrNotTwoDimensional) {
		t.Fatalf("expected ragged rejection, got %v", err)
	}
	if _, err := NewArray(nil); !errors.Is(err, ErrNotTwoDimensional) {
		t.Fatalf("expected empty rejection, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "bad.idf")
	bad := &Array{NRow: 2, NCol: 2, Values: []float64{1, 2, 3}}
	err := Write(path, bad, sampleRef())
	var ve *ValueError
	if !errors.As(err, &ve) || !errors.Is(err, ErrNotTwoDimensional) {
		t.Fatalf("expected shape ValueError, got %v", err)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("invalid input must not create the file")
	}

	if err := Write(path, sampleArray(t), sampleRef(), WithPrecision(Precision(7))); !errors.Is(err, ErrUnsupportedPrecision) {
		t.Fatalf("expected precision rejection, got %v", err)
	}
	if err := Write(path, sampleArray(t), SpatialReference{DX: 0, DY: 1}); !errors.Is(err, ErrInvalidCellSize) {
		t.Fatalf("expected cell size rejection, got %v", err)
	}
}

func TestDataRangeAllNoData(t *testing.T) {
	testlog.Start(t)
	a, err := NewArray([][]float64{{DefaultNoData, math.NaN()}})
	if err != nil {
		t.Fatalf("new array: %v", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, a, sampleRef(), WithPrecision(Double)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	h, err := DecodeHeader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if h.DMin != DefaultNoData || h.DMax != DefaultNoData {
		t.Fatalf("expected nodata range, got dmin=%v dmax=%v", h.DMin, h.DMax)
	}
}

func TestHeaderCoords(t *testing.T) {
	testlog.Start(t)
	path := writeTemp(t, sampleArray(t), sampleRef())
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	xs, ys := h.XCoords(), h.YCoords()
	if len(xs) != 3 || xs[0] != 0.5 || xs[2] != 2.5 {
		t.Fatalf("unexpected x coords: %v", xs)
	}
	if len(ys) != 2 || ys[0] != 1.5 || ys[1] != 0.5 {
		t.Fatalf("unexpected y coords: %v", ys)
	}
	if ref := h.SpatialReference(); ref.DY != -1 || ref.YMax != 2 {
		t.Fatalf("unexpected spatial reference: %+v", ref)
	}
}

func TestParsePrecision(t *testing.T) {
	testlog.Start(t)
	if p, err := ParsePrecision("double"); err != nil || p != Double {
		t.Fatalf("unexpected: %v %v", p, err)
	}
	if p, err := ParsePrecision("f4"); err != nil || p != Single {
		t.Fatalf("unexpected: %v %v", p, err)
	}
	if _, err := ParsePrecision("half"); !errors.Is(err, ErrUnsupportedPrecision) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestDecodeHugeDimensionsFailsOnMissingData(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := Encode(&buf, sampleArray(t), sampleRef()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	b := buf.Bytes()
	binary.LittleEndian.PutUint32(b[4:], math.MaxInt32)
	binary.LittleEndian.PutUint32(b[8:], math.MaxInt32)

	_, _, err := Decode(bytes.NewReader(b))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected truncated error, got %v", err)
	}
}

func TestDecodeAcrossChunks(t *testing.T) {
	testlog.Start(t)
	rows := make([][]float64, 100)
	for i := range rows {
		rows[i] = make([]float64, 200)
		for j := range rows[i] {
			rows[i][j] = float64(i*200 + j)
		}
	}
	a, err := NewArray(rows)
	if err != nil {
		t.Fatalf("new array: %v", err)
	}
	ref := SpatialReference{DX: 1, XMin: 0, XMax: 200, DY: -1, YMin: 0, YMax: 100}
	var buf bytes.Buffer
	if err := Encode(&buf, a, ref); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Values) != 20000 || got.At(99, 199) != 19999 || got.At(50, 3) != 10003 {
		t.Fatalf("unexpected values len=%d last=%v", len(got.Values), got.At(99, 199))
	}
}

func TestReplaceNoData(t *testing.T) {
	testlog.Start(t)
	a, err := NewArray([][]float64{{1, -9999}, {-9999, 4}})
	if err != nil {
		t.Fatalf("new array: %v", err)
	}
	if n := a.ReplaceNoData(-9999, 1e20); n != 2 {
		t.Fatalf("replaced %d cells, want 2", n)
	}
	if a.At(0, 1) != 1e20 || a.At(1, 0) != 1e20 || a.At(1, 1) != 4 {
		t.Fatalf("unexpected values %v", a.Values)
	}

	b, err := NewArray([][]float64{{math.NaN(), 2}})
	if err != nil {
		t.Fatalf("new array: %v", err)
	}
	if n := b.ReplaceNoData(math.NaN(), DefaultNoData); n != 1 || b.At(0, 0) != DefaultNoData {
		t.Fatalf("NaN cells not replaced: n=%d values=%v", n, b.Values)
	}
}
