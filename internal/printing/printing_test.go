package printing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"labelpress/internal/logging"
	"labelpress/internal/services"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	out   []byte
	err   error
}

func (r *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.out, r.err
}

func TestCUPSPrintInvokesLP(t *testing.T) {
	runner := &fakeRunner{}
	p := &CUPSPrinter{runner: runner}

	if err := p.Print(context.Background(), "/out/label.png", "DYMO LabelWriter 4XL"); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 command, got %d", len(runner.calls))
	}
	want := []string{"lp", "-d", "DYMO LabelWriter 4XL", "/out/label.png"}
	got := runner.calls[0]
	if len(got) != len(want) {
		t.Fatalf("unexpected command: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected command: %v", got)
		}
	}
}

func TestCUPSPrintFailureTagsStage(t *testing.T) {
	p := &CUPSPrinter{runner: &fakeRunner{err: errors.New("lp: no such printer")}}
	err := p.Print(context.Background(), "/out/label.png", "missing")
	if !errors.Is(err, services.ErrStage) {
		t.Fatalf("expected stage error, got %v", err)
	}
}

func TestCUPSStatusDetectsDisabledPrinter(t *testing.T) {
	p := &CUPSPrinter{runner: &fakeRunner{out: []byte("printer dymo disabled since Mon")}}
	if err := p.Status(context.Background(), "dymo"); err == nil {
		t.Fatal("expected error for disabled printer")
	}

	p = &CUPSPrinter{runner: &fakeRunner{out: []byte("printer dymo is idle.")}}
	if err := p.Status(context.Background(), "dymo"); err != nil {
		t.Fatalf("Status: %v", err)
	}
}

type countingPrinter struct {
	mu         sync.Mutex
	active     int
	overlapped bool
	jobs       []string
}

func (p *countingPrinter) Print(_ context.Context, path, _ string) error {
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
	return nil
}

func (p *countingPrinter) Status(context.Context, string) error { return nil }

func TestSpoolerSerializesSubmissions(t *testing.T) {
	printer := &countingPrinter{}
	spooler := NewSpooler(printer, "dymo", logging.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := spooler.Submit(context.Background(), "/out/label.png"); err != nil {
				t.Errorf("Submit: %v", err)
			}
		}()
	}
	wg.Wait()

	if printer.overlapped {
		t.Fatal("driver calls overlapped")
	}
	if spooler.Submitted() != 8 {
		t.Fatalf("expected 8 submissions, got %d", spooler.Submitted())
	}
	if len(printer.jobs) != 8 {
		t.Fatalf("expected 8 driver calls, got %d", len(printer.jobs))
	}
}

func TestSpoolerPropagatesDriverError(t *testing.T) {
	spooler := NewSpooler(failingPrinter{}, "dymo", logging.NewNop())
	if err := spooler.Submit(context.Background(), "/out/label.png"); err == nil {
		t.Fatal("expected driver error")
	}
	if spooler.Submitted() != 0 {
		t.Fatal("failed job must not count as submitted")
	}
}

type failingPrinter struct{}

func (failingPrinter) Print(context.Context, string, string) error {
	return errors.New("driver offline")
}
func (failingPrinter) Status(context.Context, string) error { return nil }
