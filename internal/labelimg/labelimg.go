// Package labelimg converts cropped label rasters into the fixed-geometry
// grayscale images the printer expects, and persists them under
// collision-free names.
package labelimg

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"labelpress/internal/services"
)

// Geometry is the exact output size in pixels.
type Geometry struct {
	Width  int
	Height int
}

// Convert renders img as grayscale, scaled to fit inside geom while keeping
// its aspect ratio, centered on a white canvas of exactly geom dimensions.
func Convert(img image.Image, geom Geometry) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, geom.Width, geom.Height))
	for i := range out.Pix {
		out.Pix[i] = 0xff
	}

	srcBounds := img.Bounds()
	srcW, srcH := srcBounds.Dx(), srcBounds.Dy()
	if srcW <= 0 || srcH <= 0 {
		return out
	}

	scaleW := float64(geom.Width) / float64(srcW)
	scaleH := float64(geom.Height) / float64(srcH)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}

	dstW := int(float64(srcW) * scale)
	dstH := int(float64(srcH) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	offsetX := (geom.Width - dstW) / 2
	offsetY := (geom.Height - dstH) / 2
	dstRect := image.Rect(offsetX, offsetY, offsetX+dstW, offsetY+dstH)

	xdraw.CatmullRom.Scale(out, dstRect, img, srcBounds, xdraw.Over, nil)
	return out
}

// OutputName derives a collision-free image filename from the source document
// and page index. Concurrent workers never produce the same name.
func OutputName(sourceFile string, page int) string {
	stem := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))
	stem = sanitizeStem(stem)
	return fmt.Sprintf("%s-p%d-%s.png", stem, page, uuid.NewString())
}

// SavePNG writes img to dir/name atomically: the image lands under a
// temporary name and is renamed into place only after a complete write, so a
// crash never leaves a partial file under the final name.
func SavePNG(dir, name string, img image.Image) (string, error) {
	finalPath := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".labelpress-*.png.tmp")
	if err != nil {
		return "", services.Wrap(services.ErrStage, "save", "create temp file", dir, err)
	}
	tmpPath := tmp.Name()

	if err := png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", services.Wrap(services.ErrStage, "save", "encode png", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", services.Wrap(services.ErrStage, "save", "close temp file", name, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", services.Wrap(services.ErrStage, "save", "rename into place", name, err)
	}
	return finalPath, nil
}

func sanitizeStem(stem string) string {
	var b strings.Builder
	b.Grow(len(stem))
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "label"
	}
	return b.String()
}

// White reports whether the given pixel is fully white; exposed for tests
// that assert padding behavior.
func White(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r == 0xffff && g == 0xffff && b == 0xffff
}
