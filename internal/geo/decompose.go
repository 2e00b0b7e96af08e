// internal/geo/decompose.go - Pixel-budget bounding box decomposition
package geo

import (
	"fmt"
	"math"

	"github.com/valpere/dem_to_vrt/internal"
)

// Decompose divides a bounding box into a grid of equal-area sub-boxes so
// that no sub-box exceeds pixelMax pixels at the given resolution. The grid
// approximately preserves the aspect ratio of the original box.
//
// bufferPixels enlarges every sub-box symmetrically by that many pixels of
// the original resolution, so adjacent sub-boxes overlap. Buffering is only
// applied when the box is actually divided; a box that fits the pixel
// budget is returned unchanged.
func Decompose(bbox BBox, resolutionMeters float64, pixelMax int, bufferPixels float64) ([]BBox, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}

	// Width and height in meters along the southern and western edges.
	xDist := HaversineDistance(bbox.South, bbox.West, bbox.South, bbox.East)
	yDist := HaversineDistance(bbox.South, bbox.West, bbox.North, bbox.West)

	if resolutionMeters > math.Min(xDist, yDist) {
		return nil, internal.NewError(internal.ErrorCodeResolutionTooCoarse,
			fmt.Sprintf("resolution %vm exceeds the smallest bbox dimension (%.1fm)",
				resolutionMeters, math.Min(xDist, yDist)), nil)
	}

	width := math.Ceil(xDist / resolutionMeters)
	height := math.Ceil(yDist / resolutionMeters)

	// A non-positive budget disables decomposition entirely.
	if pixelMax <= 0 || width*height <= float64(pixelMax) {
		return []BBox{bbox}, nil
	}

	// Divisions in each direction maintaining the aspect ratio.
	aspectRatio := width / height
	nBoxes := math.Ceil(width * height / float64(pixelMax))
	nx := math.Ceil(math.Sqrt(nBoxes * aspectRatio))
	ny := math.Ceil(nBoxes / nx)
	dx := bbox.Width() / nx
	dy := bbox.Height() / ny

	// Buffer sizes in degrees, proportional to each cell's pixel footprint.
	buffX := dx * (bufferPixels / (width / nx))
	buffY := dy * (bufferPixels / (height / ny))

	boxes := make([]BBox, 0, int(nx)*int(ny))
	for i := 0; i < int(nx); i++ {
		west := bbox.West + float64(i)*dx - buffX
		east := math.Min(bbox.West+float64(i+1)*dx, bbox.East) + buffX
		for j := 0; j < int(ny); j++ {
			south := bbox.South + float64(j)*dy - buffY
			north := math.Min(bbox.South+float64(j+1)*dy, bbox.North) + buffY
			boxes = append(boxes, BBox{West: west, South: south, East: east, North: north})
		}
	}
	return boxes, nil
}
