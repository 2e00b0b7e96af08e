// internal/raster/memory.go - In-memory raster source
package raster

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/valpere/dem_to_vrt/internal/geo"
)

// MemSource is an in-memory raster source used by tests and offline runs.
// Drivers for remote formats (GeoTIFF/VRT over HTTPS) are registered by
// the embedding application.
type MemSource struct {
	bounds    geo.BBox
	transform Affine
	nodata    float64
	grid      *Grid
	reads     atomic.Int64
	closed    atomic.Bool
}

// NewMemSource builds a source from a grid and its geotransform. The
// geographic bounds are derived from the transform and grid dimensions.
func NewMemSource(transform Affine, nodata float64, grid *Grid) *MemSource {
	full := Window{Width: grid.Width, Height: grid.Height}
	return &MemSource{
		bounds:    full.Bounds(transform),
		transform: transform,
		nodata:    nodata,
		grid:      grid,
	}
}

// Bounds implements Source.
func (s *MemSource) Bounds() geo.BBox {
	return s.bounds
}

// Transform implements Source.
func (s *MemSource) Transform() Affine {
	return s.transform
}

// Nodata implements Source.
func (s *MemSource) Nodata() float64 {
	return s.nodata
}

// Size returns the raster dimensions in pixels.
func (s *MemSource) Size() (width, height int) {
	return s.grid.Width, s.grid.Height
}

// Read implements Source. Pixels outside the backing grid are filled with
// the nodata sentinel.
func (s *MemSource) Read(ctx context.Context, w Window) (*Grid, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("raster: read from closed source")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.reads.Add(1)

	out := NewGrid(w.Width, w.Height)
	for row := 0; row < w.Height; row++ {
		for col := 0; col < w.Width; col++ {
			srcCol, srcRow := w.Col+col, w.Row+row
			if srcCol < 0 || srcCol >= s.grid.Width || srcRow < 0 || srcRow >= s.grid.Height {
				out.Set(col, row, s.nodata)
				continue
			}
			out.Set(col, row, s.grid.At(srcCol, srcRow))
		}
	}
	return out, nil
}

// Close implements Source.
func (s *MemSource) Close() error {
	s.closed.Store(true)
	return nil
}

// Reads returns the number of Read calls served, for idempotence tests.
func (s *MemSource) Reads() int64 {
	return s.reads.Load()
}
