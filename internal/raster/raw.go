// internal/raster/raw.go - Flat binary tile format
package raster

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

// rawMagic identifies the flat single-band tile format written by
// RawWriter: magic, width, height, 6 transform coefficients, nodata,
// then width*height float64 samples, all little-endian.
const rawMagic uint32 = 0x44454d31 // "DEM1"

// RawWriter writes tiles in the flat binary format. Production deployments
// register a GeoTIFF writer instead; the on-disk cache contract (path,
// existence, size) is identical for both.
type RawWriter struct{}

// Write implements Writer.
func (RawWriter) Write(path string, g *Grid, meta TileMeta) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create tile file: %w", err)
	}
	defer f.Close()

	header := []any{
		rawMagic,
		int32(meta.Width), int32(meta.Height),
		meta.Transform.A, meta.Transform.B, meta.Transform.C,
		meta.Transform.D, meta.Transform.E, meta.Transform.F,
		meta.Nodata,
	}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write tile header: %w", err)
		}
	}
	if err := binary.Write(f, binary.LittleEndian, g.Data); err != nil {
		return fmt.Errorf("write tile samples: %w", err)
	}
	return f.Close()
}

// RawSource reads tiles written by RawWriter back as a Source.
type RawSource struct {
	*MemSource
}

// OpenRaw opens a flat binary tile file.
func OpenRaw(path string) (*RawSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tile file: %w", err)
	}
	defer f.Close()

	var magic uint32
	var width, height int32
	if err := binary.Read(f, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read tile header: %w", err)
	}
	if magic != rawMagic {
		return nil, fmt.Errorf("not a raw tile file: %s", path)
	}
	if err := binary.Read(f, binary.LittleEndian, &width); err != nil {
		return nil, err
	}
	if err := binary.Read(f, binary.LittleEndian, &height); err != nil {
		return nil, err
	}

	var t Affine
	var nodata float64
	for _, v := range []*float64{&t.A, &t.B, &t.C, &t.D, &t.E, &t.F, &nodata} {
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("read tile header: %w", err)
		}
	}

	grid := NewGrid(int(width), int(height))
	if err := binary.Read(f, binary.LittleEndian, grid.Data); err != nil {
		return nil, fmt.Errorf("read tile samples: %w", err)
	}
	return &RawSource{MemSource: NewMemSource(t, nodata, grid)}, nil
}

func init() {
	Register("raw", func(ctx context.Context, url string) (Source, error) {
		return OpenRaw(strings.TrimPrefix(url, "raw://"))
	})
}
