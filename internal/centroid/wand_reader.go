package centroid

import (
	"fmt"
	"sync"

	"gopkg.in/gographics/imagick.v3/imagick"
)

var wandInit sync.Once

// OpenWand decodes an image with ImageMagick's MagickWand and exports
// its red channel as bytes. Initialization happens once per process;
// the library is torn down at exit.
func OpenWand(path string) (Image, error) {
	wandInit.Do(imagick.Initialize)

	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.ReadImage(path); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	w := mw.GetImageWidth()
	h := mw.GetImageHeight()

	raw, err := mw.ExportImagePixels(0, 0, w, h, "R", imagick.PIXEL_CHAR)
	if err != nil {
		return nil, fmt.Errorf("export pixels of %s: %w", path, err)
	}
	pix, ok := raw.([]uint8)
	if !ok {
		return nil, fmt.Errorf("unexpected pixel export type %T for %s", raw, path)
	}

	return &memImage{width: int(w), height: int(h), pix: pix}, nil
}
