// internal/dem/service.go - Elevation tile acquisition orchestration
package dem

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/valpere/dem_to_vrt/internal"
	"github.com/valpere/dem_to_vrt/internal/cache"
	"github.com/valpere/dem_to_vrt/internal/geo"
	"github.com/valpere/dem_to_vrt/internal/raster"
	"github.com/valpere/dem_to_vrt/internal/sourcepool"
)

// maxWorkers caps the fetch/clip worker pool for a single acquisition.
const maxWorkers = 4

// TileSpec is one unit of acquisition work: a sub-bbox at a resolution.
// Overlap buffering is applied at decomposition time, so the sub-box
// extent already includes any buffer.
type TileSpec struct {
	BBox       geo.BBox
	Resolution sourcepool.Resolution
}

// Service acquires elevation tiles for bounding boxes. Sources come from
// the shared registry; tiles are written through the injected writer.
type Service struct {
	registry *sourcepool.Registry
	writer   raster.Writer
}

// NewService creates an acquisition service.
func NewService(registry *sourcepool.Registry, writer raster.Writer) *Service {
	return &Service{
		registry: registry,
		writer:   writer,
	}
}

// Acquire fetches the elevation raster covering bbox at the given
// resolution, splitting the request into sub-tiles when it exceeds
// pixelMax pixels, and returns the tile file paths in decomposition
// order. pixelMax <= 0 disables decomposition. bufferPixels enlarges
// each sub-tile so neighbors overlap; it has no effect on an undivided
// box. Tiles already cached on disk are not re-fetched; if every tile
// is cached, no source is opened at all.
func (s *Service) Acquire(ctx context.Context, bbox geo.BBox, res sourcepool.Resolution, destDir string, pixelMax int, bufferPixels float64) ([]string, error) {
	if !res.Valid() {
		return nil, internal.NewError(internal.ErrorCodeInvalidResolution,
			fmt.Sprintf("resolution must be one of 10, 30, or 60 meters, got %d", int(res)), nil)
	}
	if err := bbox.Validate(); err != nil {
		return nil, err
	}

	boxes := []geo.BBox{bbox}
	if pixelMax > 0 {
		var err error
		boxes, err = geo.Decompose(bbox, res.Meters(), pixelMax, bufferPixels)
		if err != nil {
			return nil, err
		}
	}

	paths := make([]string, len(boxes))
	for i, box := range boxes {
		paths[i] = cache.TilePath(destDir, box)
	}
	if cache.AllExist(paths) {
		return paths, nil
	}

	info, err := s.registry.Info(ctx, res)
	if err != nil {
		return nil, err
	}
	if err := bbox.WithinBounds(info.Bounds); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("create destination directory %s", destDir), err)
	}

	src, err := s.registry.Source(ctx, res)
	if err != nil {
		return nil, err
	}

	tiles := make([]TileSpec, len(boxes))
	for i, box := range boxes {
		tiles[i] = TileSpec{BBox: box, Resolution: res}
	}
	if err := s.runPool(ctx, src, tiles, paths); err != nil {
		return nil, err
	}
	return paths, nil
}

// runPool dispatches fetch/clip jobs over a bounded worker pool and
// propagates the first failure. Once a failure is recorded, remaining
// queued jobs are drained without being executed; partial output stays on
// disk so a re-invocation can reuse it.
func (s *Service) runPool(ctx context.Context, src raster.Source, tiles []TileSpec, paths []string) error {
	jobs := make(chan int, len(tiles))
	for i := range tiles {
		jobs <- i
	}
	close(jobs)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	workers := min(maxWorkers, len(tiles))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				mu.Lock()
				failed := firstErr != nil
				mu.Unlock()
				if failed {
					continue
				}

				if err := s.fetchAndClip(ctx, src, tiles[idx], paths[idx]); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	return firstErr
}
