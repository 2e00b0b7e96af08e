// internal/dem/service_test.go - Unit tests for tile acquisition
package dem

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/valpere/dem_to_vrt/internal"
	"github.com/valpere/dem_to_vrt/internal/cache"
	"github.com/valpere/dem_to_vrt/internal/geo"
	"github.com/valpere/dem_to_vrt/internal/raster"
	"github.com/valpere/dem_to_vrt/internal/sourcepool"
)

// testBBox fits well inside the test source's coverage.
var testBBox = geo.BBox{West: -122.5, South: 37.5, East: -122.0, North: 38.0}

// newTestSource covers (-123, 36) to (-120, 39) at 0.01 degrees/pixel.
func newTestSource() *raster.MemSource {
	grid := raster.NewGrid(300, 300)
	for i := range grid.Data {
		grid.Data[i] = float64(i % 500)
	}
	// Scatter some nodata pixels.
	for i := 0; i < len(grid.Data); i += 97 {
		grid.Data[i] = -9999
	}
	return raster.NewMemSource(raster.NorthUp(-123.0, 39.0, 0.01, 0.01), -9999, grid)
}

func newTestService(src raster.Source) (*Service, *atomic.Int32) {
	var opens atomic.Int32
	registry := sourcepool.NewRegistry(func(ctx context.Context, url string) (raster.Source, error) {
		opens.Add(1)
		return src, nil
	})
	return NewService(registry, raster.RawWriter{}), &opens
}

func TestAcquireInvalidResolution(t *testing.T) {
	src := newTestSource()
	svc, opens := newTestService(src)

	_, err := svc.Acquire(context.Background(), testBBox, sourcepool.Resolution(15), t.TempDir(), 0, 0)
	if !internal.IsCode(err, internal.ErrorCodeInvalidResolution) {
		t.Errorf("Acquire() code = %s, want %s", internal.CodeOf(err), internal.ErrorCodeInvalidResolution)
	}
	if opens.Load() != 0 {
		t.Error("Acquire() opened a source despite invalid resolution")
	}
	if src.Reads() != 0 {
		t.Error("Acquire() read from source despite invalid resolution")
	}
}

func TestAcquireInvalidBbox(t *testing.T) {
	svc, opens := newTestService(newTestSource())

	bad := geo.BBox{West: -121.0, South: 37.0, East: -122.0, North: 38.0}
	_, err := svc.Acquire(context.Background(), bad, sourcepool.Resolution30, t.TempDir(), 0, 0)
	if !internal.IsCode(err, internal.ErrorCodeInvalidBbox) {
		t.Errorf("Acquire() code = %s, want %s", internal.CodeOf(err), internal.ErrorCodeInvalidBbox)
	}
	if opens.Load() != 0 {
		t.Error("Acquire() opened a source despite invalid bbox")
	}
}

func TestAcquireOutOfBounds(t *testing.T) {
	svc, _ := newTestService(newTestSource())

	outside := geo.BBox{West: -130.0, South: 37.0, East: -129.0, North: 38.0}
	_, err := svc.Acquire(context.Background(), outside, sourcepool.Resolution30, t.TempDir(), 0, 0)
	if !internal.IsCode(err, internal.ErrorCodeOutOfBounds) {
		t.Errorf("Acquire() code = %s, want %s", internal.CodeOf(err), internal.ErrorCodeOutOfBounds)
	}
}

func TestAcquireSingleTile(t *testing.T) {
	src := newTestSource()
	svc, _ := newTestService(src)
	dir := t.TempDir()

	paths, err := svc.Acquire(context.Background(), testBBox, sourcepool.Resolution30, dir, 0, 0)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("Acquire() returned %d paths, want 1", len(paths))
	}
	if paths[0] != cache.TilePath(dir, testBBox) {
		t.Errorf("Acquire() path = %s, want %s", paths[0], cache.TilePath(dir, testBBox))
	}
	if !cache.Exists(paths[0]) {
		t.Error("Acquire() did not write the tile file")
	}

	// The written tile round-trips with the expected window geometry.
	tile, err := raster.OpenRaw(paths[0])
	if err != nil {
		t.Fatalf("OpenRaw() error = %v", err)
	}
	defer tile.Close()
	bounds := tile.Bounds()
	if bounds.West != testBBox.West || bounds.North != testBBox.North {
		t.Errorf("tile bounds = %v, want anchored at (%v, %v)", bounds, testBBox.West, testBBox.North)
	}
}

func TestAcquireDecomposes(t *testing.T) {
	src := newTestSource()
	svc, _ := newTestService(src)
	dir := t.TempDir()

	paths, err := svc.Acquire(context.Background(), testBBox, sourcepool.Resolution30, dir, 1_000_000, 0)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if len(paths) <= 1 {
		t.Fatalf("Acquire() returned %d paths, want decomposition", len(paths))
	}

	// Paths come back in decomposition order.
	boxes, err := geo.Decompose(testBBox, 30, 1_000_000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(boxes) != len(paths) {
		t.Fatalf("got %d paths for %d boxes", len(paths), len(boxes))
	}
	for i, box := range boxes {
		if paths[i] != cache.TilePath(dir, box) {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], cache.TilePath(dir, box))
		}
		if !cache.Exists(paths[i]) {
			t.Errorf("tile %d missing on disk", i)
		}
	}
}

func TestAcquireWithBuffer(t *testing.T) {
	src := newTestSource()
	svc, _ := newTestService(src)
	dir := t.TempDir()

	paths, err := svc.Acquire(context.Background(), testBBox, sourcepool.Resolution30, dir, 1_000_000, 2)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Tiles are keyed by the buffered sub-boxes, so the paths differ from
	// an unbuffered acquisition of the same request.
	buffered, err := geo.Decompose(testBBox, 30, 1_000_000, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != len(buffered) {
		t.Fatalf("got %d paths for %d buffered boxes", len(paths), len(buffered))
	}
	for i, box := range buffered {
		if paths[i] != cache.TilePath(dir, box) {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], cache.TilePath(dir, box))
		}
		if !cache.Exists(paths[i]) {
			t.Errorf("tile %d missing on disk", i)
		}
	}

	unbuffered, err := geo.Decompose(testBBox, 30, 1_000_000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if paths[0] == cache.TilePath(dir, unbuffered[0]) {
		t.Error("buffered acquisition reused an unbuffered tile path")
	}
}

func TestAcquireIdempotent(t *testing.T) {
	src := newTestSource()
	svc, _ := newTestService(src)
	dir := t.TempDir()

	first, err := svc.Acquire(context.Background(), testBBox, sourcepool.Resolution30, dir, 1_000_000, 0)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	readsAfterFirst := src.Reads()

	// Re-acquiring with a warm cache must not open a source or read from
	// the raster at all.
	svc2, opens := newTestService(src)
	second, err := svc2.Acquire(context.Background(), testBBox, sourcepool.Resolution30, dir, 1_000_000, 0)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("path lists differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("path %d differs: %s vs %s", i, first[i], second[i])
		}
	}
	if opens.Load() != 0 {
		t.Error("re-acquire opened a source despite warm cache")
	}
	if src.Reads() != readsAfterFirst {
		t.Error("re-acquire read from the raster despite warm cache")
	}
}

type failWriter struct {
	err error
}

func (w failWriter) Write(path string, g *raster.Grid, meta raster.TileMeta) error {
	return w.err
}

func TestAcquirePropagatesWorkerFailure(t *testing.T) {
	src := newTestSource()
	registry := sourcepool.NewRegistry(func(ctx context.Context, url string) (raster.Source, error) {
		return src, nil
	})
	writeErr := errors.New("disk full")
	svc := NewService(registry, failWriter{err: writeErr})

	_, err := svc.Acquire(context.Background(), testBBox, sourcepool.Resolution30, t.TempDir(), 1_000_000, 0)
	if err == nil {
		t.Fatal("Acquire() expected worker failure")
	}
	if !internal.IsCode(err, internal.ErrorCodeFileSystem) {
		t.Errorf("Acquire() code = %s, want %s", internal.CodeOf(err), internal.ErrorCodeFileSystem)
	}
	if !errors.Is(err, writeErr) {
		t.Error("Acquire() error does not wrap the worker failure")
	}
}

func TestFetchAndClipSkipsExisting(t *testing.T) {
	src := newTestSource()
	svc, _ := newTestService(src)
	dir := t.TempDir()

	paths, err := svc.Acquire(context.Background(), testBBox, sourcepool.Resolution30, dir, 0, 0)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	reads := src.Reads()

	tile := TileSpec{BBox: testBBox, Resolution: sourcepool.Resolution30}
	if err := svc.fetchAndClip(context.Background(), src, tile, paths[0]); err != nil {
		t.Fatalf("fetchAndClip() error = %v", err)
	}
	if src.Reads() != reads {
		t.Error("fetchAndClip() re-read an already cached tile")
	}
}
