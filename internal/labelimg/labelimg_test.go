package labelimg_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"labelpress/internal/labelimg"
)

var geom = labelimg.Geometry{Width: 1800, Height: 1200}

func blackSquare(size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	return img
}

func TestConvertProducesExactGeometry(t *testing.T) {
	for _, size := range []int{10, 600, 3000} {
		out := labelimg.Convert(blackSquare(size), geom)
		bounds := out.Bounds()
		if bounds.Dx() != geom.Width || bounds.Dy() != geom.Height {
			t.Fatalf("source %d: got %dx%d, want %dx%d", size, bounds.Dx(), bounds.Dy(), geom.Width, geom.Height)
		}
	}
}

func TestConvertPreservesAspectWithWhitePadding(t *testing.T) {
	// A square source into a 3:2 canvas scales to 1200x1200, leaving 300px
	// white bands on each side.
	out := labelimg.Convert(blackSquare(600), geom)

	if !labelimg.White(out.At(10, 600)) {
		t.Fatal("expected white padding on the left band")
	}
	if !labelimg.White(out.At(1790, 600)) {
		t.Fatal("expected white padding on the right band")
	}
	if labelimg.White(out.At(900, 600)) {
		t.Fatal("expected dark content at the center")
	}
}

func TestConvertEmptySourceYieldsWhiteCanvas(t *testing.T) {
	out := labelimg.Convert(image.NewGray(image.Rect(0, 0, 0, 0)), geom)
	if !labelimg.White(out.At(0, 0)) || !labelimg.White(out.At(geom.Width-1, geom.Height-1)) {
		t.Fatal("expected an all-white canvas for an empty source")
	}
}

func TestOutputNameShape(t *testing.T) {
	name := labelimg.OutputName("/inbox/Invoice March!.pdf", 2)
	pattern := regexp.MustCompile(`^Invoice_March_-p2-[0-9a-f-]{36}\.png$`)
	if !pattern.MatchString(name) {
		t.Fatalf("unexpected output name: %q", name)
	}
}

func TestOutputNameUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		name := labelimg.OutputName("doc.pdf", 0)
		if _, dup := seen[name]; dup {
			t.Fatalf("duplicate output name: %q", name)
		}
		seen[name] = struct{}{}
	}
}

func TestSavePNGWritesDecodableFile(t *testing.T) {
	dir := t.TempDir()
	img := labelimg.Convert(blackSquare(100), geom)

	path, err := labelimg.SavePNG(dir, "label.png", img)
	if err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("unexpected path: %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != geom.Width || decoded.Bounds().Dy() != geom.Height {
		t.Fatalf("decoded geometry %v", decoded.Bounds())
	}

	// No temp residue after a successful save.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file, found %d", len(entries))
	}
}

func TestWhite(t *testing.T) {
	if !labelimg.White(color.Gray{Y: 255}) {
		t.Fatal("full white not detected")
	}
	if labelimg.White(color.Gray{Y: 254}) {
		t.Fatal("near-white misdetected")
	}
}
