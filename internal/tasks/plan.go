package tasks

import (
	"planetalign/internal/centroid"
	"planetalign/internal/geom"
)

// PlanCropSize computes the single output frame size for a batch: the
// per-axis maximum of the detected object sizes, scaled by ratio. The
// result is never smaller than the largest detected object, so the
// planet fits in every output frame.
func PlanCropSize(centroids []centroid.Centroid, ratio float64) (geom.Size, error) {
	if len(centroids) == 0 {
		return geom.Size{}, ErrNoCentroids
	}

	var maxW, maxH int
	for _, c := range centroids {
		if c.Size.Width > maxW {
			maxW = c.Size.Width
		}
		if c.Size.Height > maxH {
			maxH = c.Size.Height
		}
	}

	return geom.Size{
		Width:  int(float64(maxW) * ratio),
		Height: int(float64(maxH) * ratio),
	}, nil
}
