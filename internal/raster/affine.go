// internal/raster/affine.go - Affine geotransform
package raster

import (
	"errors"
	"math"
)

// Affine maps pixel coordinates to georeferenced coordinates:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// A north-up raster has B = D = 0, A = pixel width, E = negative pixel
// height, and (C, F) at the upper-left corner.
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// NorthUp builds the transform for a north-up raster anchored at
// (west, north) with the given pixel sizes in degrees.
func NorthUp(west, north, pixelWidth, pixelHeight float64) Affine {
	return Affine{A: pixelWidth, C: west, E: -pixelHeight, F: north}
}

// Apply maps pixel (col, row) to georeferenced (x, y).
func (t Affine) Apply(col, row float64) (x, y float64) {
	x = t.A*col + t.B*row + t.C
	y = t.D*col + t.E*row + t.F
	return x, y
}

// Invert returns the inverse transform, mapping georeferenced coordinates
// back to fractional pixel coordinates.
func (t Affine) Invert() (Affine, error) {
	det := t.A*t.E - t.B*t.D
	if det == 0 || math.IsNaN(det) {
		return Affine{}, errors.New("raster: affine transform is singular")
	}
	inv := Affine{
		A: t.E / det,
		B: -t.B / det,
		D: -t.D / det,
		E: t.A / det,
	}
	inv.C = -(inv.A*t.C + inv.B*t.F)
	inv.F = -(inv.D*t.C + inv.E*t.F)
	return inv, nil
}
