package idf

import (
	"fmt"
	"math"
)

// Raster is a single-band grid with a GDAL-style affine transform:
//
//	x = gt[0] + col*gt[1] + row*gt[2]
//	y = gt[3] + col*gt[4] + row*gt[5]
type Raster struct {
	Rows         int
	Cols         int
	Values       []float64
	GeoTransform [6]float64
	NoData       float64
}

// ToRaster converts a decoded IDF grid into a Raster.
func ToRaster(h Header, a *Array) Raster {
	values := make([]float64, len(a.Values))
	copy(values, a.Values)
	return Raster{
		Rows:         a.NRow,
		Cols:         a.NCol,
		Values:       values,
		GeoTransform: [6]float64{h.XMin, h.DX, 0, h.YMax, 0, -math.Abs(h.DY)},
		NoData:       h.NoData,
	}
}

// FromRaster converts r into an Array and the SpatialReference Write needs.
// Only north-up rasters without rotation are accepted.
func FromRaster(r Raster) (*Array, SpatialReference, error) {
	gt := r.GeoTransform
	if gt[2] != 0 || gt[4] != 0 {
		return nil, SpatialReference{}, &ValueError{
			Field:  "geotransform",
			Reason: fmt.Sprintf("rotated rasters are not supported (gt[2]=%v gt[4]=%v)", gt[2], gt[4]),
			Err:    ErrInvalidTransform,
		}
	}
	if gt[1] <= 0 || gt[5] >= 0 {
		return nil, SpatialReference{}, &ValueError{
			Field:  "geotransform",
			Reason: fmt.Sprintf("expected dx > 0 and dy < 0, got dx=%v dy=%v", gt[1], gt[5]),
			Err:    ErrInvalidTransform,
		}
	}
	a := &Array{NRow: r.Rows, NCol: r.Cols, Precision: Double, Values: append([]float64(nil), r.Values...)}
	if err := a.validate(); err != nil {
		return nil, SpatialReference{}, err
	}
	ref := SpatialReference{
		DX:   gt[1],
		XMin: gt[0],
		XMax: gt[0] + float64(r.Cols)*gt[1],
		DY:   gt[5],
		YMin: gt[3] + float64(r.Rows)*gt[5],
		YMax: gt[3],
	}
	return a, ref, nil
}
