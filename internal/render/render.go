// Package render abstracts the document rasterizer. The core pipeline
// depends only on the Renderer interface; the default implementation shells
// out to the poppler tools so the engine stays swappable.
package render

import (
	"context"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"labelpress/internal/services"
)

// Renderer turns raw document bytes into raster pages.
type Renderer interface {
	// PageCount reports the number of pages in the document.
	PageCount(ctx context.Context, doc []byte) (int, error)
	// Render rasterizes the given zero-based page.
	Render(ctx context.Context, doc []byte, page int) (image.Image, error)
}

type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execCommandRunner struct{}

func (execCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.Output()
}

// PopplerRenderer rasterizes PDF documents via pdftoppm and reads page counts
// via pdfinfo.
type PopplerRenderer struct {
	rasterizer string
	infoTool   string
	dpi        int
	runner     commandRunner
}

// NewPoppler constructs a renderer using the given binaries and render DPI.
func NewPoppler(rasterizer, infoTool string, dpi int) *PopplerRenderer {
	if rasterizer == "" {
		rasterizer = "pdftoppm"
	}
	if infoTool == "" {
		infoTool = "pdfinfo"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &PopplerRenderer{rasterizer: rasterizer, infoTool: infoTool, dpi: dpi, runner: execCommandRunner{}}
}

var pagesPattern = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)

// PageCount implements Renderer.
func (r *PopplerRenderer) PageCount(ctx context.Context, doc []byte) (int, error) {
	path, cleanup, err := writeTemp(doc)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	out, err := r.runner.Output(ctx, r.infoTool, path)
	if err != nil {
		return 0, services.Wrap(services.ErrDecode, "render", "page count", r.infoTool, err)
	}
	match := pagesPattern.FindSubmatch(out)
	if match == nil {
		return 0, services.Wrap(services.ErrDecode, "render", "page count", "no page count in tool output", nil)
	}
	count, err := strconv.Atoi(string(match[1]))
	if err != nil || count < 1 {
		return 0, services.Wrap(services.ErrDecode, "render", "page count", "invalid page count", err)
	}
	return count, nil
}

// Render implements Renderer.
func (r *PopplerRenderer) Render(ctx context.Context, doc []byte, page int) (image.Image, error) {
	if page < 0 {
		return nil, services.Wrap(services.ErrDecode, "render", "render", "negative page index", nil)
	}
	path, cleanup, err := writeTemp(doc)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outDir, err := os.MkdirTemp("", "labelpress-raster-")
	if err != nil {
		return nil, services.Wrap(services.ErrStage, "render", "render", "create raster dir", err)
	}
	defer os.RemoveAll(outDir)

	prefix := filepath.Join(outDir, "page")
	pageArg := strconv.Itoa(page + 1)
	if _, err := r.runner.Output(ctx, r.rasterizer,
		"-png",
		"-r", strconv.Itoa(r.dpi),
		"-f", pageArg,
		"-l", pageArg,
		path, prefix,
	); err != nil {
		return nil, services.Wrap(services.ErrStage, "render", "render", r.rasterizer, err)
	}

	// pdftoppm zero-pads the page suffix depending on the total page count;
	// pick whatever single file it produced.
	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(matches) == 0 {
		return nil, services.Wrap(services.ErrStage, "render", "render", "rasterizer produced no output", err)
	}
	sort.Strings(matches)

	file, err := os.Open(matches[0])
	if err != nil {
		return nil, services.Wrap(services.ErrStage, "render", "render", "open raster output", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "render", "render", "decode raster output", err)
	}
	return img, nil
}

func writeTemp(doc []byte) (string, func(), error) {
	file, err := os.CreateTemp("", "labelpress-doc-*.pdf")
	if err != nil {
		return "", nil, services.Wrap(services.ErrStage, "render", "spool document", "create temp file", err)
	}
	path := file.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := file.Write(doc); err != nil {
		_ = file.Close()
		cleanup()
		return "", nil, services.Wrap(services.ErrStage, "render", "spool document", "write temp file", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, services.Wrap(services.ErrStage, "render", "spool document", "close temp file", err)
	}
	return path, cleanup, nil
}
