// Package idf reads and writes the IDF binary raster format.
//
// An IDF file is a little-endian header followed by nrow*ncol floats in
// row-major order, top row first. Two layouts exist: single precision
// (record id 1271, 4-byte fields) and double precision (record id 2295,
// written twice, 8-byte fields and 8-byte aligned flags).
//
// Only equidistant grids are supported. The on-disk ieq flag means
// "non-equidistant" and is complemented into Header.Equidistant. Cell sizes
// are stored as positive magnitudes; Read reports DY as negative because
// rows run north to south.
//
// Ownership boundary:
// - header/data codec (Read, Write, Decode, Encode)
// - bridging to a generic affine raster (Raster)
// - ESRI ASCII grid interop
package idf
