// internal/raster/raster.go - Raster capability interfaces and grid type
package raster

import (
	"context"
	"fmt"
	"math"

	"github.com/valpere/dem_to_vrt/internal"
	"github.com/valpere/dem_to_vrt/internal/geo"
)

// Source is a read-only handle to a georeferenced raster. Implementations
// must be safe for concurrent reads.
type Source interface {
	// Bounds returns the geographic extent of the raster.
	Bounds() geo.BBox

	// Transform returns the raster's affine geotransform.
	Transform() Affine

	// Nodata returns the sentinel value meaning "no data here".
	Nodata() float64

	// Read reads the pixel window into a new grid.
	Read(ctx context.Context, w Window) (*Grid, error)

	// Close releases the underlying handle.
	Close() error
}

// Opener opens a georeferenced raster source by URL.
type Opener func(ctx context.Context, url string) (Source, error)

// TileMeta describes a single output tile.
type TileMeta struct {
	Transform Affine
	Width     int
	Height    int
	Nodata    float64
}

// Writer writes a single-band raster file with metadata.
type Writer interface {
	Write(path string, g *Grid, meta TileMeta) error
}

// Grid is a single-band raster buffer in row-major order.
type Grid struct {
	Width  int
	Height int
	Data   []float64
}

// NewGrid allocates a zeroed grid of the given dimensions.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Data:   make([]float64, width*height),
	}
}

// At returns the sample at (col, row).
func (g *Grid) At(col, row int) float64 {
	return g.Data[row*g.Width+col]
}

// Set stores a sample at (col, row).
func (g *Grid) Set(col, row int, v float64) {
	g.Data[row*g.Width+col] = v
}

// MaskNodata replaces samples equal to the nodata sentinel with NaN.
func (g *Grid) MaskNodata(nodata float64) {
	if math.IsNaN(nodata) {
		return
	}
	for i, v := range g.Data {
		if v == nodata {
			g.Data[i] = math.NaN()
		}
	}
}

// Window is a pixel region of a raster.
type Window struct {
	Col    int
	Row    int
	Width  int
	Height int
}

// WindowFromBounds computes the pixel window covering the bounding box
// under the given geotransform.
func WindowFromBounds(bbox geo.BBox, t Affine) (Window, error) {
	inv, err := t.Invert()
	if err != nil {
		return Window{}, internal.NewError(internal.ErrorCodeValidation,
			"geotransform is not invertible", err)
	}

	// Upper-left and lower-right corners in fractional pixel coordinates.
	col0, row0 := inv.Apply(bbox.West, bbox.North)
	col1, row1 := inv.Apply(bbox.East, bbox.South)

	w := Window{
		Col:    int(math.Round(col0)),
		Row:    int(math.Round(row0)),
		Width:  int(math.Round(col1 - col0)),
		Height: int(math.Round(row1 - row0)),
	}
	if w.Width <= 0 || w.Height <= 0 {
		return Window{}, internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("bbox %s maps to an empty pixel window", bbox), nil)
	}
	return w, nil
}

// Transform returns the geotransform of the window itself, with its origin
// shifted to the window's upper-left pixel.
func (w Window) Transform(t Affine) Affine {
	x, y := t.Apply(float64(w.Col), float64(w.Row))
	return Affine{A: t.A, B: t.B, C: x, D: t.D, E: t.E, F: y}
}

// Bounds returns the geographic extent of the window under the transform.
func (w Window) Bounds(t Affine) geo.BBox {
	x0, y0 := t.Apply(float64(w.Col), float64(w.Row))
	x1, y1 := t.Apply(float64(w.Col+w.Width), float64(w.Row+w.Height))
	return geo.BBox{
		West:  math.Min(x0, x1),
		South: math.Min(y0, y1),
		East:  math.Max(x0, x1),
		North: math.Max(y0, y1),
	}
}
