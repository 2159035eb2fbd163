package testsupport

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
)

// FakeRenderer produces synthetic page images without invoking external
// tools. Documents whose payload contains FailMarker make Render fail, which
// lets tests exercise failure isolation in the pool.
type FakeRenderer struct {
	Pages      int
	Delay      time.Duration
	FailMarker []byte

	mu       sync.Mutex
	rendered []int
}

// PageCount reports the configured page count.
func (r *FakeRenderer) PageCount(_ context.Context, _ []byte) (int, error) {
	if r.Pages <= 0 {
		return 1, nil
	}
	return r.Pages, nil
}

// Render returns a white page with a centered dark block so content location
// has something to find.
func (r *FakeRenderer) Render(ctx context.Context, doc []byte, page int) (image.Image, error) {
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if len(r.FailMarker) > 0 && bytes.Contains(doc, r.FailMarker) {
		return nil, fmt.Errorf("render page %d: synthetic failure", page)
	}

	r.mu.Lock()
	r.rendered = append(r.rendered, page)
	r.mu.Unlock()

	img := image.NewGray(image.Rect(0, 0, 900, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 900; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	for y := 150; y < 450; y++ {
		for x := 200; x < 700; x++ {
			img.SetGray(x, y, color.Gray{Y: 20})
		}
	}
	return img, nil
}

// Rendered returns the pages rendered so far, in completion order.
func (r *FakeRenderer) Rendered() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.rendered))
	copy(out, r.rendered)
	return out
}

// FakePrinter records submitted jobs and tracks whether two submissions ever
// overlapped.
type FakePrinter struct {
	StatusErr error
	PrintErr  error

	mu         sync.Mutex
	active     int
	overlapped bool
	jobs       []string
}

// Print records the path and flags overlapping submissions.
func (p *FakePrinter) Print(_ context.Context, path, _ string) error {
	p.mu.Lock()
	p.active++
	if p.active > 1 {
		p.overlapped = true
	}
	p.mu.Unlock()

	time.Sleep(time.Millisecond)

	p.mu.Lock()
	p.active--
	p.jobs = append(p.jobs, path)
	p.mu.Unlock()
	return p.PrintErr
}

// Status reports the configured status error.
func (p *FakePrinter) Status(_ context.Context, _ string) error {
	return p.StatusErr
}

// Jobs returns the submitted paths in completion order.
func (p *FakePrinter) Jobs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.jobs))
	copy(out, p.jobs)
	return out
}

// Overlapped reports whether Print was ever active concurrently.
func (p *FakePrinter) Overlapped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overlapped
}
