package tasks

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"planetalign/internal/geom"
)

func TestCropRequestOutputPath(t *testing.T) {
	req := CropRequest{FramePath: "/frames/jupiter_004.jpg", OutputDir: "/out"}
	want := filepath.Join("/out", "jupiter_004_aligned.jpg")
	if got := req.OutputPath(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCropRequestOutputPathKeepsExtension(t *testing.T) {
	req := CropRequest{FramePath: "frame.tif", OutputDir: "out"}
	if got := req.OutputPath(); got != filepath.Join("out", "frame_aligned.tif") {
		t.Fatalf("unexpected output path %s", got)
	}
}

func TestCropRequestOffset(t *testing.T) {
	req := CropRequest{
		Center: geom.Point{X: 100, Y: 80},
		Size:   geom.Size{Width: 50, Height: 31},
	}
	x, y := req.offset()
	if x != 75 {
		t.Fatalf("expected x offset 75, got %d", x)
	}
	// 31/2 rounds to 16.
	if y != 64 {
		t.Fatalf("expected y offset 64, got %d", y)
	}
}

// writeTestFrame saves a dark frame with a white square whose top-left
// corner is at (x, y).
func writeTestFrame(t *testing.T, path string, w, h, x, y, side int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{A: 255})
	white := imaging.New(side, side, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	img = imaging.Paste(img, white, image.Pt(x, y))
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
}

func TestNativeCropperCentersObject(t *testing.T) {
	dir := t.TempDir()
	framePath := filepath.Join(dir, "frame.png")
	// 20px object centered at (110, 100).
	writeTestFrame(t, framePath, 400, 300, 100, 90, 20)

	cropper := &NativeCropper{}
	out, err := cropper.Crop(context.Background(), CropRequest{
		FramePath: framePath,
		Center:    geom.Point{X: 110, Y: 100},
		Size:      geom.Size{Width: 70, Height: 70},
		OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("crop failed: %v", err)
	}

	got, err := imaging.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	b := got.Bounds()
	if b.Dx() != 70 || b.Dy() != 70 {
		t.Fatalf("expected 70x70 output, got %dx%d", b.Dx(), b.Dy())
	}
	// The object center should land on the output center.
	r, _, _, _ := got.At(35, 35).RGBA()
	if r>>8 < 200 {
		t.Fatalf("expected bright pixel at output center, got %d", r>>8)
	}
	r, _, _, _ = got.At(2, 2).RGBA()
	if r>>8 > 10 {
		t.Fatalf("expected dark corner, got %d", r>>8)
	}
}

func TestNativeCropperPadsPastBounds(t *testing.T) {
	dir := t.TempDir()
	framePath := filepath.Join(dir, "edge.png")
	// Object flush against the top-left corner.
	writeTestFrame(t, framePath, 200, 200, 0, 0, 10)

	cropper := &NativeCropper{}
	out, err := cropper.Crop(context.Background(), CropRequest{
		FramePath: framePath,
		Center:    geom.Point{X: 5, Y: 5},
		Size:      geom.Size{Width: 100, Height: 100},
		OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("crop extending past bounds failed: %v", err)
	}

	got, err := imaging.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if got.Bounds().Dx() != 100 || got.Bounds().Dy() != 100 {
		t.Fatalf("expected padded 100x100 output, got %v", got.Bounds())
	}
	// Center of output still holds the object.
	r, _, _, _ := got.At(50, 50).RGBA()
	if r>>8 < 200 {
		t.Fatalf("expected object at output center after padding, got %d", r>>8)
	}
}

func TestNativeCropperIdempotent(t *testing.T) {
	dir := t.TempDir()
	framePath := filepath.Join(dir, "frame.png")
	writeTestFrame(t, framePath, 300, 300, 140, 140, 20)

	req := CropRequest{
		FramePath: framePath,
		Center:    geom.Point{X: 150, Y: 150},
		Size:      geom.Size{Width: 80, Height: 80},
		OutputDir: dir,
	}

	cropper := &NativeCropper{}
	out, err := cropper.Crop(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := cropper.Crop(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first, second) {
		t.Fatal("expected byte-identical output from repeated crops")
	}
}
