package idf

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const asciiDefaultNoData = -9999

// maxASCIICells caps the grid size a text header may declare.
const maxASCIICells = 1 << 28

// ReadASCII parses an ESRI ASCII grid into a Raster.
func ReadASCII(r io.Reader) (Raster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	next := func(field string) (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", &IOError{Op: "read", Err: err}
			}
			return "", &FormatError{Field: field, Err: ErrTruncated}
		}
		return sc.Text(), nil
	}

	header := map[string]float64{}
	var pending string
	for {
		key, err := next("header")
		if err != nil {
			return Raster{}, err
		}
		k := strings.ToLower(key)
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			pending = key
			break
		}
		raw, err := next(k)
		if err != nil {
			return Raster{}, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Raster{}, &FormatError{Field: k, Err: err}
		}
		header[k] = v
	}

	fcols, frows := header["ncols"], header["nrows"]
	if !(fcols >= 1 && frows >= 1 && fcols*frows <= maxASCIICells) || fcols != math.Trunc(fcols) || frows != math.Trunc(frows) {
		return Raster{}, &FormatError{Field: "ncols/nrows", Err: fmt.Errorf("%w: ncols=%v nrows=%v", ErrInvalidDimensions, fcols, frows)}
	}
	ncols, nrows := int(fcols), int(frows)
	cell, ok := header["cellsize"]
	if !ok || cell <= 0 {
		return Raster{}, &FormatError{Field: "cellsize", Err: ErrInvalidCellSize}
	}

	xll, yll := header["xllcorner"], header["yllcorner"]
	if v, ok := header["xllcenter"]; ok {
		xll = v - cell/2
	}
	if v, ok := header["yllcenter"]; ok {
		yll = v - cell/2
	}
	nodata := float64(asciiDefaultNoData)
	if v, ok := header["nodata_value"]; ok {
		nodata = v
	}

	values := make([]float64, 0, min(ncols*nrows, 1<<16))
	for i := 0; i < ncols*nrows; i++ {
		raw := pending
		pending = ""
		if raw == "" {
			var err error
			if raw, err = next(fmt.Sprintf("data[%d]", i)); err != nil {
				return Raster{}, err
			}
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Raster{}, &FormatError{Field: fmt.Sprintf("data[%d]", i), Err: err}
		}
		values = append(values, v)
	}

	return Raster{
		Rows:         nrows,
		Cols:         ncols,
		Values:       values,
		GeoTransform: [6]float64{xll, cell, 0, yll + float64(nrows)*cell, 0, -cell},
		NoData:       nodata,
	}, nil
}

// WriteASCII writes r as an ESRI ASCII grid. Cells must be square.
func WriteASCII(w io.Writer, r Raster) error {
	gt := r.GeoTransform
	if gt[2] != 0 || gt[4] != 0 || gt[1] <= 0 || gt[5] >= 0 {
		return &ValueError{Field: "geotransform", Reason: "expected a north-up raster without rotation", Err: ErrInvalidTransform}
	}
	if math.Abs(gt[1]+gt[5]) > 1e-9*gt[1] {
		return &ValueError{
			Field:  "cellsize",
			Reason: fmt.Sprintf("ASCII grids need square cells, got dx=%v dy=%v", gt[1], -gt[5]),
			Err:    ErrInvalidCellSize,
		}
	}
	if len(r.Values) != r.Rows*r.Cols || r.Rows <= 0 || r.Cols <= 0 {
		return &ValueError{Field: "values", Reason: "values do not fill the raster shape", Err: ErrNotTwoDimensional}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", r.Cols)
	fmt.Fprintf(bw, "nrows %d\n", r.Rows)
	fmt.Fprintf(bw, "xllcorner %s\n", formatFloat(gt[0]))
	fmt.Fprintf(bw, "yllcorner %s\n", formatFloat(gt[3]+float64(r.Rows)*gt[5]))
	fmt.Fprintf(bw, "cellsize %s\n", formatFloat(gt[1]))
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(r.NoData))
	for row := 0; row < r.Rows; row++ {
		for col := 0; col < r.Cols; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(formatFloat(r.Values[row*r.Cols+col]))
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
