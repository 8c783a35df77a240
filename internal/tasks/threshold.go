package tasks

import (
	"context"
	"fmt"
	"image/color"
	"os/exec"

	"github.com/disintegration/imaging"
)

// Thresholder binarizes a frame: object pixels come out with a first
// channel above the detection cutoff, background pixels below it.
type Thresholder interface {
	Name() string
	IsAvailable() bool
	Threshold(ctx context.Context, inputPath string, pct int, outputPath string) error
}

// MagickThresholder shells out to ImageMagick convert.
type MagickThresholder struct{}

func (t *MagickThresholder) Name() string { return "imagemagick" }

func (t *MagickThresholder) IsAvailable() bool { return commandExists("convert") }

func (t *MagickThresholder) Threshold(ctx context.Context, inputPath string, pct int, outputPath string) error {
	cmd := exec.CommandContext(ctx, "convert", inputPath,
		"-threshold", fmt.Sprintf("%d%%", pct), outputPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return &ToolError{Tool: "convert", Output: string(out), Err: err}
	}
	return nil
}

// NativeThresholder is the bundled binarization routine, used when
// convert is not on PATH. It forces every pixel to pure black or pure
// white based on luminance against the percentage cutoff.
type NativeThresholder struct{}

func (t *NativeThresholder) Name() string { return "native" }

func (t *NativeThresholder) IsAvailable() bool { return true }

func (t *NativeThresholder) Threshold(ctx context.Context, inputPath string, pct int, outputPath string) error {
	src, err := imaging.Open(inputPath)
	if err != nil {
		return fmt.Errorf("decode %s: %w", inputPath, err)
	}

	cutoff := uint8(255 * pct / 100)
	gray := imaging.Grayscale(src)
	mono := imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		if c.R > cutoff {
			return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
		}
		return color.NRGBA{A: 255}
	})

	if err := imaging.Save(mono, outputPath); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	return nil
}
