package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"labelpress/internal/logging"
	"labelpress/internal/watch"
)

const pollInterval = 20 * time.Millisecond

func startPoller(t *testing.T, dir string) *watch.Poller {
	t.Helper()
	p := watch.NewPoller(dir, []string{".pdf"}, pollInterval, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(p.Stop)
	return p
}

func waitEvent(t *testing.T, p *watch.Poller) watch.Event {
	t.Helper()
	select {
	case ev := <-p.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return watch.Event{}
	}
}

func TestPollerReportsSettledCreate(t *testing.T) {
	dir := t.TempDir()
	p := startPoller(t, dir)

	path := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(path, []byte("doc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev := waitEvent(t, p)
	if ev.Path != path || ev.Kind != watch.KindCreated {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPollerIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	p := startPoller(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	pdf := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(pdf, []byte("doc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev := waitEvent(t, p)
	if ev.Path != pdf {
		t.Fatalf("expected only the pdf to be reported, got %+v", ev)
	}
}

func TestPollerHoldsGrowingFile(t *testing.T) {
	dir := t.TempDir()
	p := startPoller(t, dir)

	path := filepath.Join(dir, "big.pdf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Keep appending faster than the scan interval; no event should fire
	// while the size keeps moving.
	for i := 0; i < 10; i++ {
		if _, err := f.Write([]byte("chunk")); err != nil {
			t.Fatalf("write: %v", err)
		}
		select {
		case ev := <-p.Events():
			t.Fatalf("event for still-growing file: %+v", ev)
		case <-time.After(pollInterval / 2):
		}
	}
	f.Close()

	ev := waitEvent(t, p)
	if ev.Path != path || ev.Kind != watch.KindCreated {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPollerReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	p := startPoller(t, dir)

	path := filepath.Join(dir, "gone.pdf")
	if err := os.WriteFile(path, []byte("doc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := waitEvent(t, p)
	if ev.Kind != watch.KindCreated {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ev = waitEvent(t, p)
	if ev.Path != path || ev.Kind != watch.KindRemoved {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPollerRestart(t *testing.T) {
	dir := t.TempDir()
	p := watch.NewPoller(dir, []string{".pdf"}, pollInterval, logging.NewNop())

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Fatal("expected error starting a running poller")
	}
	p.Stop()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	p.Stop()
}

func TestPollerStartMissingDir(t *testing.T) {
	p := watch.NewPoller(filepath.Join(t.TempDir(), "absent"), nil, pollInterval, logging.NewNop())
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
