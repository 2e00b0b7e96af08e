// internal/geo/geo.go - Geographic primitives and validation
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/valpere/dem_to_vrt/internal"
)

// earthRadiusMeters is the mean Earth radius used for great-circle distances.
const earthRadiusMeters = 6371008.8

// HaversineDistance returns the great-circle distance in meters between two
// points given in decimal degrees.
func HaversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	lat1, lng1 = lat1*rad, lng1*rad
	lat2, lng2 = lat2*rad, lng2*rad

	dlat := lat2 - lat1
	dlng := lng2 - lng1
	sinLat := math.Sin(dlat / 2)
	sinLng := math.Sin(dlng / 2)
	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BBox is an axis-aligned bounding box in decimal degrees.
// Valid boxes satisfy West < East and South < North.
type BBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// Parse parses a bounding box from a "west,south,east,north" string.
func Parse(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, internal.NewError(internal.ErrorCodeInvalidBbox,
			fmt.Sprintf("bbox must have 4 comma-separated values, got %d", len(parts)), nil)
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return BBox{}, internal.NewError(internal.ErrorCodeInvalidBbox,
				fmt.Sprintf("invalid bbox coordinate %q", part), err)
		}
		vals[i] = v
	}

	bbox := BBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	if err := bbox.Validate(); err != nil {
		return BBox{}, err
	}
	return bbox, nil
}

// Validate checks that the box has finite, ordered coordinates.
func (b BBox) Validate() error {
	for _, v := range [4]float64{b.West, b.South, b.East, b.North} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return internal.NewError(internal.ErrorCodeInvalidBbox,
				"bbox coordinates must be finite numbers", nil)
		}
	}
	if b.West >= b.East {
		return internal.NewError(internal.ErrorCodeInvalidBbox,
			fmt.Sprintf("bbox west (%v) must be less than east (%v)", b.West, b.East), nil)
	}
	if b.South >= b.North {
		return internal.NewError(internal.ErrorCodeInvalidBbox,
			fmt.Sprintf("bbox south (%v) must be less than north (%v)", b.South, b.North), nil)
	}
	return nil
}

// WithinBounds checks that the box is fully contained in bounds.
// Containment is inclusive: a box equal to bounds is within them.
func (b BBox) WithinBounds(bounds BBox) error {
	if err := b.Validate(); err != nil {
		return err
	}
	outer := bounds.Bound()
	inner := b.Bound()
	if !outer.Contains(inner.Min) || !outer.Contains(inner.Max) {
		return internal.NewError(internal.ErrorCodeOutOfBounds,
			fmt.Sprintf("bbox %s is not within source bounds %s", b, bounds), nil)
	}
	return nil
}

// Contains reports whether the point lies inside the box.
func (b BBox) Contains(lng, lat float64) bool {
	return b.Bound().Contains(orb.Point{lng, lat})
}

// Bound converts the box to an orb.Bound.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// FromBound converts an orb.Bound to a BBox.
func FromBound(bound orb.Bound) BBox {
	return BBox{
		West:  bound.Min[0],
		South: bound.Min[1],
		East:  bound.Max[0],
		North: bound.Max[1],
	}
}

// Width returns the box width in degrees.
func (b BBox) Width() float64 {
	return b.East - b.West
}

// Height returns the box height in degrees.
func (b BBox) Height() float64 {
	return b.North - b.South
}

func (b BBox) String() string {
	return fmt.Sprintf("(%v, %v, %v, %v)", b.West, b.South, b.East, b.North)
}

// CanonicalString renders the four coordinates joined by commas in
// (west,south,east,north) order. This string is the input to the tile
// cache's content hash, so its format must stay stable.
func (b BBox) CanonicalString() string {
	coords := [4]float64{b.West, b.South, b.East, b.North}
	parts := make([]string, 4)
	for i, v := range coords {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
