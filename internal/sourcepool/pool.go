// internal/sourcepool/pool.go - Shared raster source and HTTP pool registry
package sourcepool

import (
	"context"
	"fmt"
	"sync"

	"github.com/valpere/dem_to_vrt/internal"
	"github.com/valpere/dem_to_vrt/internal/fetch"
	"github.com/valpere/dem_to_vrt/internal/geo"
	"github.com/valpere/dem_to_vrt/internal/raster"
)

// Resolution is a supported elevation resolution tier in meters per pixel.
type Resolution int

// Supported resolution tiers.
const (
	Resolution10 Resolution = 10
	Resolution30 Resolution = 30
	Resolution60 Resolution = 60
)

const baseURL = "https://prd-tnm.s3.amazonaws.com/StagedProducts/Elevation"

var sourceURLs = map[Resolution]string{
	Resolution10: baseURL + "/13/TIFF/USGS_Seamless_DEM_13.vrt",
	Resolution30: baseURL + "/1/TIFF/USGS_Seamless_DEM_1.vrt",
	Resolution60: baseURL + "/2/TIFF/USGS_Seamless_DEM_2.vrt",
}

// Valid reports whether the resolution is a supported tier.
func (r Resolution) Valid() bool {
	_, ok := sourceURLs[r]
	return ok
}

// URL returns the remote virtual raster URL for the resolution.
func (r Resolution) URL() string {
	return sourceURLs[r]
}

// Meters returns the resolution in meters per pixel.
func (r Resolution) Meters() float64 {
	return float64(r)
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dm", int(r))
}

// ParseResolution validates an integer resolution value.
func ParseResolution(v int) (Resolution, error) {
	r := Resolution(v)
	if !r.Valid() {
		return 0, internal.NewError(internal.ErrorCodeInvalidResolution,
			fmt.Sprintf("resolution must be one of 10, 30, or 60 meters, got %d", v), nil)
	}
	return r, nil
}

// Info caches a source's georeferencing metadata so repeated lookups do
// not touch the handle.
type Info struct {
	Bounds    geo.BBox
	Transform raster.Affine
	Nodata    float64
}

// Registry owns the process-wide pooled resources: one lazily-opened
// raster source per resolution tier and a shared retrying HTTP client.
// It is created once at program start and passed by reference; all
// methods are safe for concurrent use.
type Registry struct {
	opener   raster.Opener
	urls     map[Resolution]string
	httpOpts fetch.Options

	mu      sync.RWMutex
	sources map[Resolution]raster.Source
	info    map[Resolution]Info
	client  *fetch.Client
}

// NewRegistry creates a registry that opens sources with the given opener.
func NewRegistry(opener raster.Opener) *Registry {
	return &Registry{
		opener:   opener,
		urls:     sourceURLs,
		httpOpts: fetch.DefaultOptions(),
		sources:  make(map[Resolution]raster.Source),
		info:     make(map[Resolution]Info),
	}
}

// WithURLs overrides the per-resolution source URLs, for tests and
// alternate deployments.
func (r *Registry) WithURLs(urls map[Resolution]string) *Registry {
	r.urls = urls
	return r
}

// Source returns the shared handle for the resolution, opening it on
// first use. Double-checked locking guarantees at most one open per
// resolution under concurrent first access.
func (r *Registry) Source(ctx context.Context, res Resolution) (raster.Source, error) {
	r.mu.RLock()
	src, ok := r.sources[res]
	r.mu.RUnlock()
	if ok {
		return src, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if src, ok := r.sources[res]; ok {
		return src, nil
	}

	url, ok := r.urls[res]
	if !ok {
		return nil, internal.NewError(internal.ErrorCodeInvalidResolution,
			fmt.Sprintf("no source configured for resolution %s", res), nil)
	}

	src, err := r.opener(ctx, url)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeSourceUnavailable,
			fmt.Sprintf("open source for resolution %s", res), err)
	}

	r.sources[res] = src
	r.info[res] = Info{
		Bounds:    src.Bounds(),
		Transform: src.Transform(),
		Nodata:    src.Nodata(),
	}
	return src, nil
}

// Info returns the cached georeferencing metadata for the resolution,
// opening the source if needed.
func (r *Registry) Info(ctx context.Context, res Resolution) (Info, error) {
	if _, err := r.Source(ctx, res); err != nil {
		return Info{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info[res], nil
}

// HTTPClient returns the shared HTTP client, creating it on first use.
func (r *Registry) HTTPClient() *fetch.Client {
	r.mu.RLock()
	client := r.client
	r.mu.RUnlock()
	if client != nil {
		return client
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		r.client = fetch.NewClient(r.httpOpts)
	}
	return r.client
}

// Close releases all open handles and the HTTP pool. The registry stays
// usable: later accesses re-initialize transparently.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for res, src := range r.sources {
		if err := src.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close source %s: %w", res, err)
		}
	}
	r.sources = make(map[Resolution]raster.Source)
	r.info = make(map[Resolution]Info)

	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
	return firstErr
}
