package centroid

import (
	"errors"
	"math"

	"planetalign/internal/geom"
)

// litThreshold is the first-channel value above which a pixel of a
// thresholded image counts as part of the object (0-255 scale).
const litThreshold = 10

// ErrNotFound is returned when neither the lattice search nor the
// refinement window contains a lit pixel. An all-dark frame is a
// reportable per-frame condition, not a processing fault.
var ErrNotFound = errors.New("no centroid found")

// Centroid describes the bright object in one frame: its estimated
// center point and the bounding-box size of its lit pixels.
type Centroid struct {
	Center geom.Point `json:"center"`
	Size   geom.Size  `json:"size"`
}

// Image provides read-only access to the first color channel of a
// decoded monochrome image.
type Image interface {
	Width() int
	Height() int
	// Value returns the first-channel value at (x, y) on a 0-255 scale.
	Value(x, y int) uint8
}

func lit(img Image, x, y int) bool {
	return img.Value(x, y) > litThreshold
}

// Locate finds the bright-object centroid in a thresholded image.
//
// The search runs coarse to fine: each stride in strides defines a
// sampling lattice, and the first lit sample becomes the seed. Every
// pixel within radius of the seed (clipped to image bounds) is then
// collected, and the centroid is the rounded mean of the lit pixel
// coordinates with the size given by their extent.
func Locate(img Image, strides []int, radius int) (Centroid, error) {
	seed, ok := findSeed(img, strides)
	if !ok {
		return Centroid{}, ErrNotFound
	}

	xs, ys := collectLit(img, seed, radius)
	if len(xs) == 0 {
		return Centroid{}, ErrNotFound
	}

	center := geom.Point{
		X: int(math.Round(mean(xs))),
		Y: int(math.Round(mean(ys))),
	}
	minX, maxX, _ := geom.Extent(xs)
	minY, maxY, _ := geom.Extent(ys)

	return Centroid{
		Center: center,
		Size:   geom.Size{Width: maxX - minX, Height: maxY - minY},
	}, nil
}

// findSeed samples the image on progressively finer lattices until a
// lit pixel turns up.
func findSeed(img Image, strides []int) (geom.Point, bool) {
	for _, stride := range strides {
		if stride < 1 {
			stride = 1
		}
		for x := 0; x < img.Width(); x += stride {
			for y := 0; y < img.Height(); y += stride {
				if lit(img, x, y) {
					return geom.Point{X: x, Y: y}, true
				}
			}
		}
	}
	return geom.Point{}, false
}

// collectLit gathers the coordinates of every lit pixel in a square
// window of half-width radius around center, clipped to image bounds.
func collectLit(img Image, center geom.Point, radius int) (xs, ys []int) {
	minX := max(0, center.X-radius)
	minY := max(0, center.Y-radius)
	maxX := min(img.Width(), center.X+radius)
	maxY := min(img.Height(), center.Y+radius)

	for x := minX; x < maxX; x++ {
		for y := minY; y < maxY; y++ {
			if lit(img, x, y) {
				xs = append(xs, x)
				ys = append(ys, y)
			}
		}
	}
	return xs, ys
}

func mean(vals []int) float64 {
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}
