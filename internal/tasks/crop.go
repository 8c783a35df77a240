package tasks

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"planetalign/internal/geom"
)

// Cropper extracts a fixed-size region centered on the detected object
// and writes the aligned frame into the output directory.
type Cropper interface {
	Name() string
	IsAvailable() bool
	Crop(ctx context.Context, req CropRequest) (string, error)
}

// CropRequest describes one center-preserving crop.
type CropRequest struct {
	FramePath string
	Center    geom.Point
	Size      geom.Size
	OutputDir string
}

// OutputPath derives the aligned filename: the source stem with an
// "_aligned" suffix, extension preserved.
func (r CropRequest) OutputPath() string {
	base := filepath.Base(r.FramePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(r.OutputDir, stem+"_aligned"+ext)
}

// offset returns the top-left corner of the crop rectangle. It may be
// negative or extend past the image bounds; boundary handling is the
// crop implementation's business.
func (r CropRequest) offset() (x, y int) {
	x = r.Center.X - int(math.Round(float64(r.Size.Width)/2))
	y = r.Center.Y - int(math.Round(float64(r.Size.Height)/2))
	return x, y
}

// MagickCropper shells out to ImageMagick convert.
type MagickCropper struct{}

func (c *MagickCropper) Name() string { return "imagemagick" }

func (c *MagickCropper) IsAvailable() bool { return commandExists("convert") }

func (c *MagickCropper) Crop(ctx context.Context, req CropRequest) (string, error) {
	outPath := req.OutputPath()
	x, y := req.offset()

	cmd := exec.CommandContext(ctx, "convert", req.FramePath,
		"-crop", fmt.Sprintf("%dx%d+%d+%d", req.Size.Width, req.Size.Height, x, y),
		outPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", &ToolError{Tool: "convert", Output: string(out), Err: err}
	}
	return outPath, nil
}

// NativeCropper crops with the imaging library. Regions extending past
// the source bounds are padded with black so the object stays centered.
type NativeCropper struct{}

func (c *NativeCropper) Name() string { return "native" }

func (c *NativeCropper) IsAvailable() bool { return true }

func (c *NativeCropper) Crop(ctx context.Context, req CropRequest) (string, error) {
	src, err := imaging.Open(req.FramePath)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", req.FramePath, err)
	}

	x, y := req.offset()
	rect := image.Rect(x, y, x+req.Size.Width, y+req.Size.Height)
	visible := rect.Intersect(src.Bounds())

	canvas := imaging.New(req.Size.Width, req.Size.Height, color.NRGBA{A: 255})
	if !visible.Empty() {
		part := imaging.Crop(src, visible)
		canvas = imaging.Paste(canvas, part, image.Pt(visible.Min.X-x, visible.Min.Y-y))
	}

	outPath := req.OutputPath()
	if err := imaging.Save(canvas, outPath); err != nil {
		return "", fmt.Errorf("write %s: %w", outPath, err)
	}
	return outPath, nil
}
