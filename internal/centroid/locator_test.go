package centroid

import (
	"errors"
	"testing"
)

// testImage is an in-memory frame for locator tests. Pixels default to
// dark; lit pixels are set explicitly.
type testImage struct {
	w, h int
	on   map[[2]int]bool
}

func newTestImage(w, h int) *testImage {
	return &testImage{w: w, h: h, on: make(map[[2]int]bool)}
}

func (t *testImage) set(x, y int) { t.on[[2]int{x, y}] = true }
func (t *testImage) Width() int   { return t.w }
func (t *testImage) Height() int  { return t.h }

func (t *testImage) Value(x, y int) uint8 {
	if t.on[[2]int{x, y}] {
		return 255
	}
	return 0
}

func (t *testImage) setRect(x0, y0, x1, y1 int) {
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			t.set(x, y)
		}
	}
}

var defaultStrides = []int{64, 32, 16, 8, 4, 2, 1}

func TestLocateSingleRegion(t *testing.T) {
	img := newTestImage(400, 300)
	img.setRect(100, 120, 139, 149) // 40x30 block

	c, err := Locate(img, defaultStrides, 150)
	if err != nil {
		t.Fatalf("expected centroid, got %v", err)
	}
	if c.Size.Width != 39 || c.Size.Height != 29 {
		t.Fatalf("expected size 39x29, got %dx%d", c.Size.Width, c.Size.Height)
	}
	if c.Center.X < 100 || c.Center.X > 139 || c.Center.Y < 120 || c.Center.Y > 149 {
		t.Fatalf("center (%d, %d) outside lit region", c.Center.X, c.Center.Y)
	}
}

func TestLocateCenterIsMeanOfMass(t *testing.T) {
	img := newTestImage(200, 200)
	// Uniform square: center of mass is the geometric center.
	img.setRect(50, 60, 60, 70)

	c, err := Locate(img, defaultStrides, 150)
	if err != nil {
		t.Fatalf("expected centroid, got %v", err)
	}
	if c.Center.X != 55 || c.Center.Y != 65 {
		t.Fatalf("expected center (55, 65), got (%d, %d)", c.Center.X, c.Center.Y)
	}
}

func TestLocateAllDark(t *testing.T) {
	img := newTestImage(256, 256)
	for _, strides := range [][]int{defaultStrides, {1}, {128}} {
		if _, err := Locate(img, strides, 150); !errors.Is(err, ErrNotFound) {
			t.Fatalf("strides %v: expected ErrNotFound, got %v", strides, err)
		}
	}
}

// cutoffImage reports every pixel at exactly the lit threshold.
type cutoffImage struct{ *testImage }

func (c *cutoffImage) Value(x, y int) uint8 { return litThreshold }

func TestLocateDimPixelsIgnored(t *testing.T) {
	// Value exactly at the cutoff must not count as lit.
	dim := &cutoffImage{testImage: newTestImage(64, 64)}
	if _, err := Locate(dim, defaultStrides, 32); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for value-10 image, got %v", err)
	}
}

func TestLocateWindowClipsAtEdges(t *testing.T) {
	img := newTestImage(100, 100)
	// Object in the top-left corner; a 150px radius extends far past
	// every edge and must clip without error.
	img.setRect(0, 0, 9, 9)

	c, err := Locate(img, defaultStrides, 150)
	if err != nil {
		t.Fatalf("expected centroid, got %v", err)
	}
	if c.Size.Width != 9 || c.Size.Height != 9 {
		t.Fatalf("expected size 9x9, got %dx%d", c.Size.Width, c.Size.Height)
	}
}

func TestLocateCoarseStrideFindsLargeObject(t *testing.T) {
	img := newTestImage(1024, 1024)
	img.setRect(400, 400, 500, 500)

	// A 64px lattice alone is enough to land inside a 100px object.
	c, err := Locate(img, []int{64}, 150)
	if err != nil {
		t.Fatalf("expected centroid with coarse stride, got %v", err)
	}
	if c.Size.Width != 100 || c.Size.Height != 100 {
		t.Fatalf("expected size 100x100, got %dx%d", c.Size.Width, c.Size.Height)
	}
}

func TestLocateTinyObjectNeedsFineStride(t *testing.T) {
	img := newTestImage(256, 256)
	img.set(33, 33) // single pixel off every coarse lattice

	if _, err := Locate(img, []int{64}, 150); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected coarse-only search to miss, got %v", err)
	}

	c, err := Locate(img, defaultStrides, 150)
	if err != nil {
		t.Fatalf("expected fine stride to find pixel, got %v", err)
	}
	if c.Center.X != 33 || c.Center.Y != 33 {
		t.Fatalf("expected center (33, 33), got (%d, %d)", c.Center.X, c.Center.Y)
	}
	if c.Size.Width != 0 || c.Size.Height != 0 {
		t.Fatalf("expected zero size for single pixel, got %dx%d", c.Size.Width, c.Size.Height)
	}
}
