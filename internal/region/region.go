// Package region locates the label rectangle within a rendered page. The
// pipeline depends only on the Locator interface; the built-in detector finds
// the bounding box of high-contrast content, which matches how carrier labels
// sit on an otherwise white sheet.
package region

import (
	"image"
	"image/draw"
)

// Locator finds the label region within a raster. ok is false when no
// plausible region exists, in which case callers should use the full page.
type Locator interface {
	Locate(img image.Image) (image.Rectangle, bool)
}

// ContentLocator detects the bounding box of edge pixels: positions where
// neighboring luminance differs by more than Threshold. A small margin is
// added around the detected box and clamped to the image bounds.
type ContentLocator struct {
	// Threshold is the minimum luminance delta (0-255) between horizontal or
	// vertical neighbors for a pixel to count as content edge.
	Threshold int
	// Margin is the padding in pixels added around the detected region.
	Margin int
}

// NewContentLocator returns a locator with defaults tuned for shipping
// labels rendered at 300 DPI.
func NewContentLocator() *ContentLocator {
	return &ContentLocator{Threshold: 48, Margin: 8}
}

// Locate implements Locator.
func (l *ContentLocator) Locate(img image.Image) (image.Rectangle, bool) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return image.Rectangle{}, false
	}

	gray := toGray(img)
	threshold := l.Threshold
	if threshold <= 0 {
		threshold = 48
	}

	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1

	w := bounds.Dx()
	h := bounds.Dy()
	for y := 1; y < h; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		prevRow := gray.Pix[(y-1)*gray.Stride : (y-1)*gray.Stride+w]
		for x := 1; x < w; x++ {
			v := int(row[x])
			if abs(v-int(row[x-1])) < threshold && abs(v-int(prevRow[x])) < threshold {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < minX || maxY < minY {
		return image.Rectangle{}, false
	}

	rect := image.Rect(minX-l.Margin, minY-l.Margin, maxX+l.Margin+1, maxY+l.Margin+1)
	rect = rect.Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return image.Rectangle{}, false
	}
	return rect, true
}

// Crop returns the sub-image of img covered by rect. The result shares no
// pixel memory with the input.
func Crop(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
