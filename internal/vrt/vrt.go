// internal/vrt/vrt.go - Virtual raster index builder
package vrt

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/valpere/dem_to_vrt/internal"
	"github.com/valpere/dem_to_vrt/internal/cache"
	"github.com/valpere/dem_to_vrt/internal/raster"
)

// vrtDataset mirrors the GDAL VRT XML layout for a single-band mosaic.
type vrtDataset struct {
	XMLName      xml.Name `xml:"VRTDataset"`
	RasterXSize  int      `xml:"rasterXSize,attr,omitempty"`
	RasterYSize  int      `xml:"rasterYSize,attr,omitempty"`
	GeoTransform string   `xml:"GeoTransform,omitempty"`
	Band         vrtBand  `xml:"VRTRasterBand"`
}

type vrtBand struct {
	DataType string      `xml:"dataType,attr"`
	Band     int         `xml:"band,attr"`
	NoData   string      `xml:"NoDataValue"`
	Sources  []vrtSource `xml:"SimpleSource"`
}

type vrtSource struct {
	Filename vrtFilename `xml:"SourceFilename"`
	Band     int         `xml:"SourceBand"`
	SrcRect  *vrtRect    `xml:"SrcRect,omitempty"`
	DstRect  *vrtRect    `xml:"DstRect,omitempty"`
}

type vrtFilename struct {
	Relative int    `xml:"relativeToVRT,attr"`
	Value    string `xml:",chardata"`
}

type vrtRect struct {
	XOff  int `xml:"xOff,attr"`
	YOff  int `xml:"yOff,attr"`
	XSize int `xml:"xSize,attr"`
	YSize int `xml:"ySize,attr"`
}

// TileInfo pairs a tile file with its georeferencing metadata.
type TileInfo struct {
	Path string
	Meta raster.TileMeta
}

// Build writes a virtual raster index at vrtPath referencing the given
// tile files as a bare source list, without mosaic georeferencing. With
// relative set, tile paths are stored relative to the VRT's own
// directory; otherwise they are stored absolute. Zero inputs or a
// missing input file is an error.
func Build(vrtPath string, files []string, relative bool) error {
	if len(files) == 0 {
		return internal.NewError(internal.ErrorCodeValidation,
			"no input rasters to index", nil)
	}

	vrtAbs, err := filepath.Abs(vrtPath)
	if err != nil {
		return internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("resolve VRT path %s", vrtPath), err)
	}

	sources := make([]vrtSource, 0, len(files))
	for _, file := range files {
		name, err := sourceFilename(vrtAbs, file, relative)
		if err != nil {
			return err
		}
		sources = append(sources, vrtSource{Filename: name, Band: 1})
	}

	return writeDataset(vrtAbs, vrtPath, vrtDataset{
		Band: vrtBand{
			DataType: "Float32",
			Band:     1,
			NoData:   "nan",
			Sources:  sources,
		},
	})
}

// BuildIndex writes a fully georeferenced virtual raster index: the
// mosaic carries the union extent and geotransform of the tiles, and
// every source gets explicit placement rectangles. All tiles must share
// the same pixel size.
func BuildIndex(vrtPath string, tiles []TileInfo, relative bool) error {
	if len(tiles) == 0 {
		return internal.NewError(internal.ErrorCodeValidation,
			"no input rasters to index", nil)
	}

	vrtAbs, err := filepath.Abs(vrtPath)
	if err != nil {
		return internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("resolve VRT path %s", vrtPath), err)
	}

	// Union extent in georeferenced coordinates. Pixel sizes must agree
	// or the placement rectangles would not land on the mosaic grid.
	ref := tiles[0].Meta.Transform
	west, north := ref.C, ref.F
	east := ref.C + ref.A*float64(tiles[0].Meta.Width)
	south := ref.F + ref.E*float64(tiles[0].Meta.Height)
	for _, tile := range tiles[1:] {
		t := tile.Meta.Transform
		if t.A != ref.A || t.E != ref.E {
			return internal.NewError(internal.ErrorCodeValidation,
				fmt.Sprintf("tile %s pixel size (%v, %v) differs from (%v, %v)",
					tile.Path, t.A, t.E, ref.A, ref.E), nil)
		}
		west = math.Min(west, t.C)
		north = math.Max(north, t.F)
		east = math.Max(east, t.C+t.A*float64(tile.Meta.Width))
		south = math.Min(south, t.F+t.E*float64(tile.Meta.Height))
	}

	xSize := int(math.Round((east - west) / ref.A))
	ySize := int(math.Round((south - north) / ref.E))

	sources := make([]vrtSource, 0, len(tiles))
	for _, tile := range tiles {
		name, err := sourceFilename(vrtAbs, tile.Path, relative)
		if err != nil {
			return err
		}
		t := tile.Meta.Transform
		sources = append(sources, vrtSource{
			Filename: name,
			Band:     1,
			SrcRect:  &vrtRect{XSize: tile.Meta.Width, YSize: tile.Meta.Height},
			DstRect: &vrtRect{
				XOff:  int(math.Round((t.C - west) / ref.A)),
				YOff:  int(math.Round((t.F - north) / ref.E)),
				XSize: tile.Meta.Width,
				YSize: tile.Meta.Height,
			},
		})
	}

	return writeDataset(vrtAbs, vrtPath, vrtDataset{
		RasterXSize: xSize,
		RasterYSize: ySize,
		GeoTransform: fmt.Sprintf("%v, %v, %v, %v, %v, %v",
			west, ref.A, ref.B, north, ref.D, ref.E),
		Band: vrtBand{
			DataType: "Float32",
			Band:     1,
			NoData:   "nan",
			Sources:  sources,
		},
	})
}

// sourceFilename resolves one input tile path for embedding in the VRT.
func sourceFilename(vrtAbs, file string, relative bool) (vrtFilename, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return vrtFilename{}, internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("resolve input path %s", file), err)
	}
	if !cache.Exists(abs) {
		return vrtFilename{}, internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("input raster %s does not exist", file), nil)
	}

	if !relative {
		return vrtFilename{Relative: 0, Value: abs}, nil
	}
	rel, err := filepath.Rel(filepath.Dir(vrtAbs), abs)
	if err != nil {
		return vrtFilename{}, internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("relativize input path %s", file), err)
	}
	return vrtFilename{Relative: 1, Value: rel}, nil
}

func writeDataset(vrtAbs, vrtPath string, dataset vrtDataset) error {
	data, err := xml.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem, "marshal VRT index", err)
	}
	if err := os.WriteFile(vrtAbs, append(data, '\n'), 0o644); err != nil {
		return internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("write VRT index %s", vrtPath), err)
	}
	return nil
}
