package geom

import "time"

// Point is a pixel coordinate in source-image space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Extent returns the lowest and highest value in vals.
// ok is false when vals is empty.
func Extent(vals []int) (min, max int, ok bool) {
	if len(vals) == 0 {
		return 0, 0, false
	}
	min, max = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, true
}

// Millis returns the elapsed wall-clock time since start in milliseconds.
func Millis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
