package region_test

import (
	"image"
	"image/color"
	"testing"

	"labelpress/internal/region"
)

func whitePage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func fillRect(img *image.Gray, rect image.Rectangle, v uint8) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

func TestLocateFindsDarkRectangle(t *testing.T) {
	img := whitePage(400, 300)
	label := image.Rect(120, 80, 280, 220)
	fillRect(img, label, 10)

	locator := region.NewContentLocator()
	rect, ok := locator.Locate(img)
	if !ok {
		t.Fatal("expected a region")
	}
	if !label.In(rect) {
		t.Fatalf("detected rect %v does not cover label %v", rect, label)
	}
	// The margin keeps the detection close to the label, not the whole page.
	if rect.Dx() > label.Dx()+2*locator.Margin+2 || rect.Dy() > label.Dy()+2*locator.Margin+2 {
		t.Fatalf("detected rect %v too loose around label %v", rect, label)
	}
}

func TestLocateBlankPageReportsNoRegion(t *testing.T) {
	locator := region.NewContentLocator()
	if _, ok := locator.Locate(whitePage(200, 200)); ok {
		t.Fatal("expected no region on a blank page")
	}
}

func TestLocateIgnoresFaintNoise(t *testing.T) {
	img := whitePage(200, 200)
	// Luminance ripple below the threshold.
	fillRect(img, image.Rect(50, 50, 150, 150), 0xff-20)

	locator := region.NewContentLocator()
	if _, ok := locator.Locate(img); ok {
		t.Fatal("expected faint content to be ignored")
	}
}

func TestLocateClampsMarginAtEdges(t *testing.T) {
	img := whitePage(100, 100)
	fillRect(img, image.Rect(0, 0, 30, 30), 0)

	locator := region.NewContentLocator()
	rect, ok := locator.Locate(img)
	if !ok {
		t.Fatal("expected a region")
	}
	if !rect.In(img.Bounds()) {
		t.Fatalf("rect %v escapes image bounds %v", rect, img.Bounds())
	}
}

func TestCropCopiesPixels(t *testing.T) {
	img := whitePage(100, 100)
	fillRect(img, image.Rect(10, 10, 20, 20), 0)

	cropped := region.Crop(img, image.Rect(10, 10, 20, 20))
	if cropped.Bounds().Dx() != 10 || cropped.Bounds().Dy() != 10 {
		t.Fatalf("unexpected crop bounds: %v", cropped.Bounds())
	}

	// Mutating the source must not affect the crop.
	fillRect(img, image.Rect(10, 10, 20, 20), 0xff)
	r, g, b, _ := cropped.At(5, 5).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Fatal("crop shares memory with the source image")
	}
}
