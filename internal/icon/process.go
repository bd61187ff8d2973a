package icon

import (
	"fmt"
	"image"
	_ "image/gif" // decoder registration
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

// ImageProcessor scales and crops raster images with Catmull-Rom
// resampling. SVG sources and nil transforms are copied byte for byte.
type ImageProcessor struct{}

// Process implements Processor.
func (ImageProcessor) Process(src, dst string, t *Transform) error {
	if t == nil || strings.EqualFold(filepath.Ext(dst), ".svg") {
		return copyFile(src, dst)
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	out := scaleAndCrop(img, t.Width, t.Height)

	w, err := os.Create(dst)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(dst)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(w, out, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(w, out)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// scaleAndCrop scales img to cover width x height, then crops the center.
// A zero dimension is derived from the other one keeping the aspect ratio.
func scaleAndCrop(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()
	switch {
	case width <= 0 && height <= 0:
		width, height = sw, sh
	case width <= 0:
		width = max(1, sw*height/sh)
	case height <= 0:
		height = max(1, sh*width/sw)
	}
	width, height = min(width, MaxDimension), min(height, MaxDimension)

	// Largest source rectangle with the target aspect ratio, centered.
	cw, ch := sw, sw*height/width
	if ch > sh {
		cw, ch = sh*width/height, sh
	}
	x0 := b.Min.X + (sw-cw)/2
	y0 := b.Min.Y + (sh-ch)/2
	crop := image.Rect(x0, y0, x0+cw, y0+ch)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Over, nil)
	return dst
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
