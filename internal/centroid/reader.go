package centroid

import (
	"fmt"

	"github.com/disintegration/imaging"
)

// memImage holds the first channel of a decoded image in memory.
type memImage struct {
	width  int
	height int
	pix    []uint8 // row-major, one byte per pixel
}

func (m *memImage) Width() int  { return m.width }
func (m *memImage) Height() int { return m.height }

func (m *memImage) Value(x, y int) uint8 {
	return m.pix[y*m.width+x]
}

// Opener decodes an image file into pixel-readable form.
type Opener func(path string) (Image, error)

// OpenImaging decodes an image with the pure-Go imaging library and
// keeps its red channel.
func OpenImaging(path string) (Image, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	nrgba := imaging.Clone(src)
	bounds := nrgba.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < w; x++ {
			pix[y*w+x] = row[x*4] // R channel
		}
	}
	return &memImage{width: w, height: h, pix: pix}, nil
}
