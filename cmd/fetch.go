// cmd/fetch.go - Bounding box acquisition command
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/dem_to_vrt/internal/config"
	"github.com/valpere/dem_to_vrt/internal/dem"
	"github.com/valpere/dem_to_vrt/internal/geo"
	"github.com/valpere/dem_to_vrt/internal/raster"
	"github.com/valpere/dem_to_vrt/internal/sourcepool"
	"github.com/valpere/dem_to_vrt/internal/vrt"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch elevation tiles covering a bounding box",
	Long: `Fetch elevation raster data covering a geographic bounding box.

Requests exceeding the pixel budget are decomposed into a grid of sub-tiles
that approximately preserves the original aspect ratio. Tiles are fetched
and clipped concurrently, cached on disk by content fingerprint, and
returned as an ordered list of file paths. Re-running the same request with
a warm cache performs no network or raster reads.

A raster driver for the source URL scheme must be registered; HTTPS
GeoTIFF/VRT access is provided by the deployment's raster backend.

Examples:
  # Fetch at 30 m resolution with the default pixel budget
  dem-to-vrt fetch --bbox "-122.0,37.0,-121.0,38.0" --resolution 30 --dest ./dem

  # Disable decomposition and fetch the box as a single tile
  dem-to-vrt fetch --bbox "-122.0,37.0,-121.0,38.0" --pixel-max 0 --dest ./dem

  # Build the mosaic index alongside the tiles
  dem-to-vrt fetch --bbox "-122.0,37.0,-121.0,38.0" --dest ./dem --vrt ./dem/dem.vrt`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().String("bbox", "", "bounding box: 'west,south,east,north' in decimal degrees")
	fetchCmd.Flags().String("dest", "", "destination directory (defaults to cache directory)")
	fetchCmd.Flags().String("vrt", "", "build a VRT index at this path after fetching")
	fetchCmd.Flags().Bool("relative", false, "reference tiles by relative path in the VRT index")

	fetchCmd.MarkFlagRequired("bbox")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bboxFlag, _ := cmd.Flags().GetString("bbox")
	bbox, err := geo.Parse(bboxFlag)
	if err != nil {
		return err
	}

	res, err := sourcepool.ParseResolution(cfg.Source.Resolution)
	if err != nil {
		return err
	}

	destDir, _ := cmd.Flags().GetString("dest")
	if destDir == "" {
		destDir = cfg.Cache.Directory
	}

	registry := sourcepool.NewRegistry(raster.Open)
	defer registry.Close()

	service := dem.NewService(registry, raster.RawWriter{})
	paths, err := service.Acquire(cmd.Context(), bbox, res, destDir, cfg.Source.PixelMax, cfg.Source.BufferPixels)
	if err != nil {
		return err
	}

	if cfg.Logging.Verbose {
		fmt.Fprintf(os.Stderr, "Acquired %d tile(s) for %s at %s\n", len(paths), bbox, res)
	}
	for _, path := range paths {
		fmt.Println(path)
	}

	if vrtPath, _ := cmd.Flags().GetString("vrt"); vrtPath != "" {
		relative, _ := cmd.Flags().GetBool("relative")
		tiles, err := tileInfos(paths)
		if err != nil {
			return err
		}
		if err := vrt.BuildIndex(vrtPath, tiles, relative); err != nil {
			return err
		}
		if cfg.Logging.Verbose {
			fmt.Fprintf(os.Stderr, "Wrote VRT index %s\n", vrtPath)
		}
	}
	return nil
}

// tileInfos reads back the georeferencing metadata of freshly acquired
// tiles so the VRT index can carry the mosaic geotransform.
func tileInfos(paths []string) ([]vrt.TileInfo, error) {
	tiles := make([]vrt.TileInfo, len(paths))
	for i, path := range paths {
		src, err := raster.OpenRaw(path)
		if err != nil {
			return nil, fmt.Errorf("read tile metadata from %s: %w", path, err)
		}
		width, height := src.Size()
		tiles[i] = vrt.TileInfo{
			Path: path,
			Meta: raster.TileMeta{
				Transform: src.Transform(),
				Width:     width,
				Height:    height,
				Nodata:    src.Nodata(),
			},
		}
		src.Close()
	}
	return tiles, nil
}
