// internal/dem/worker.go - Fetch/clip worker
package dem

import (
	"context"
	"fmt"
	"math"

	"github.com/valpere/dem_to_vrt/internal"
	"github.com/valpere/dem_to_vrt/internal/cache"
	"github.com/valpere/dem_to_vrt/internal/raster"
)

// fetchAndClip reads the pixel window for one tile from the source,
// normalizes nodata to NaN, and writes the tile to destPath. A usable
// file already at destPath makes this a no-op, so the call is idempotent.
// Failures are surfaced, not retried; network-level retries live in the
// pooled HTTP layer.
func (s *Service) fetchAndClip(ctx context.Context, src raster.Source, tile TileSpec, destPath string) error {
	if cache.Exists(destPath) {
		return nil
	}

	window, err := raster.WindowFromBounds(tile.BBox, src.Transform())
	if err != nil {
		return err
	}

	grid, err := src.Read(ctx, window)
	if err != nil {
		return internal.NewError(internal.ErrorCodeFetch,
			fmt.Sprintf("read window %+v for tile %s", window, tile.BBox), err)
	}
	grid.MaskNodata(src.Nodata())

	meta := raster.TileMeta{
		Transform: window.Transform(src.Transform()),
		Width:     window.Width,
		Height:    window.Height,
		Nodata:    math.NaN(),
	}
	if err := s.writer.Write(destPath, grid, meta); err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("write tile %s", destPath), err)
	}
	return nil
}
