// internal/raster/driver.go - Scheme-based source driver registry
package raster

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Opener)
)

// Register makes a source driver available under the given URL scheme.
// Drivers for remote formats (GeoTIFF/VRT over HTTPS) are provided by the
// embedding application; this package only ships the built-in schemes.
func Register(scheme string, open Opener) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[scheme] = open
}

// Open opens a raster source by URL, dispatching on the URL scheme.
func Open(ctx context.Context, url string) (Source, error) {
	scheme := url
	if idx := strings.Index(url, "://"); idx >= 0 {
		scheme = url[:idx]
	}

	driversMu.RLock()
	open, ok := drivers[scheme]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("raster: no driver registered for scheme %q", scheme)
	}
	return open(ctx, url)
}
