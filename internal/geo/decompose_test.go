// internal/geo/decompose_test.go - Unit tests for bbox decomposition
package geo

import (
	"math"
	"testing"

	"github.com/valpere/dem_to_vrt/internal"
)

var testBBox = BBox{West: -122.0, South: 37.0, East: -121.0, North: 38.0}

func TestDecomposeNoDivision(t *testing.T) {
	boxes, err := Decompose(testBBox, 30, 100_000_000, 0)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(boxes) != 1 {
		t.Fatalf("Decompose() returned %d boxes, want 1", len(boxes))
	}
	if boxes[0] != testBBox {
		t.Errorf("Decompose() = %v, want input bbox %v unchanged", boxes[0], testBBox)
	}
}

func TestDecomposeNoDivisionIgnoresBuffer(t *testing.T) {
	// Buffering only applies to sub-tiles cut from a larger box.
	boxes, err := Decompose(testBBox, 30, 100_000_000, 5)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(boxes) != 1 || boxes[0] != testBBox {
		t.Errorf("Decompose() with buffer = %v, want [%v]", boxes, testBBox)
	}
}

func TestDecomposeWithDivision(t *testing.T) {
	boxes, err := Decompose(testBBox, 30, 1000, 0)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(boxes) <= 1 {
		t.Fatalf("Decompose() returned %d boxes, want more than 1", len(boxes))
	}

	const eps = 1e-9
	for i, box := range boxes {
		if err := box.Validate(); err != nil {
			t.Errorf("box %d is invalid: %v", i, err)
		}
		if box.West < testBBox.West-eps || box.East > testBBox.East+eps ||
			box.South < testBBox.South-eps || box.North > testBBox.North+eps {
			t.Errorf("box %d %v extends outside original %v", i, box, testBBox)
		}
	}
}

func TestDecomposeCoverage(t *testing.T) {
	boxes, err := Decompose(testBBox, 30, 1000, 0)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	// The unbuffered decomposition must reconstruct all four corners of
	// the original bbox.
	const eps = 1e-9
	corners := [][2]float64{
		{testBBox.West, testBBox.South},
		{testBBox.West, testBBox.North},
		{testBBox.East, testBBox.South},
		{testBBox.East, testBBox.North},
	}
	for _, corner := range corners {
		found := false
		for _, box := range boxes {
			for _, x := range []float64{box.West, box.East} {
				for _, y := range []float64{box.South, box.North} {
					if math.Abs(x-corner[0]) < eps && math.Abs(y-corner[1]) < eps {
						found = true
					}
				}
			}
		}
		if !found {
			t.Errorf("corner (%v, %v) not reconstructed by any sub-box", corner[0], corner[1])
		}
	}
}

func TestDecomposeRowMajorOrder(t *testing.T) {
	boxes, err := Decompose(testBBox, 30, 1000, 0)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}

	// Outer loop over x, inner loop over y: consecutive boxes in the same
	// column share a west edge and step northward.
	if len(boxes) < 2 {
		t.Skip("decomposition produced a single column")
	}
	if boxes[0].West != boxes[1].West {
		t.Errorf("boxes[0].West = %v, boxes[1].West = %v, want same column first",
			boxes[0].West, boxes[1].West)
	}
	if boxes[1].South <= boxes[0].South {
		t.Errorf("boxes[1].South = %v not north of boxes[0].South = %v",
			boxes[1].South, boxes[0].South)
	}
}

func TestDecomposeWithBuffer(t *testing.T) {
	unbuffered, err := Decompose(testBBox, 30, 1000, 0)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	buffered, err := Decompose(testBBox, 30, 1000, 2)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	if len(buffered) != len(unbuffered) {
		t.Fatalf("buffered decomposition has %d boxes, unbuffered has %d",
			len(buffered), len(unbuffered))
	}

	// Every box must be strictly enlarged on all four sides by the same
	// degree amount.
	buffX := unbuffered[0].West - buffered[0].West
	buffY := unbuffered[0].South - buffered[0].South
	if buffX <= 0 || buffY <= 0 {
		t.Fatalf("buffer did not enlarge first box: buffX=%v buffY=%v", buffX, buffY)
	}
	const eps = 1e-9
	for i := range buffered {
		if math.Abs((unbuffered[i].West-buffered[i].West)-buffX) > eps ||
			math.Abs((buffered[i].East-unbuffered[i].East)-buffX) > eps ||
			math.Abs((unbuffered[i].South-buffered[i].South)-buffY) > eps ||
			math.Abs((buffered[i].North-unbuffered[i].North)-buffY) > eps {
			t.Errorf("box %d not buffered symmetrically: %v vs %v", i, buffered[i], unbuffered[i])
		}
	}
}

func TestDecomposeBufferOverlap(t *testing.T) {
	boxes, err := Decompose(testBBox, 30, 1000, 2)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	for i := 0; i < len(boxes)-1; i++ {
		cur, next := boxes[i], boxes[i+1]
		if cur.East <= next.West && cur.North <= next.South {
			t.Errorf("boxes %d and %d do not overlap: %v, %v", i, i+1, cur, next)
		}
	}
}

func TestDecomposeResolutionTooCoarse(t *testing.T) {
	small := BBox{West: -122.001, South: 37.001, East: -122.0, North: 37.002}
	_, err := Decompose(small, 10000, 1000, 0)
	if err == nil {
		t.Fatal("Decompose() expected error for too-coarse resolution")
	}
	if !internal.IsCode(err, internal.ErrorCodeResolutionTooCoarse) {
		t.Errorf("Decompose() code = %s, want %s", internal.CodeOf(err), internal.ErrorCodeResolutionTooCoarse)
	}
}

func TestDecomposeInvalidBbox(t *testing.T) {
	bad := BBox{West: -121.0, South: 37.0, East: -122.0, North: 38.0}
	_, err := Decompose(bad, 30, 1000, 0)
	if !internal.IsCode(err, internal.ErrorCodeInvalidBbox) {
		t.Errorf("Decompose() code = %s, want %s", internal.CodeOf(err), internal.ErrorCodeInvalidBbox)
	}
}

func TestDecomposeAspectRatio(t *testing.T) {
	boxes, err := Decompose(testBBox, 30, 1000, 0)
	if err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	origAspect := testBBox.Width() / testBBox.Height()
	subAspect := boxes[0].Width() / boxes[0].Height()
	if math.Abs(origAspect-subAspect) > 0.5 {
		t.Errorf("sub-box aspect ratio %v deviates too far from original %v", subAspect, origAspect)
	}
}
