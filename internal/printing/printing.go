// Package printing submits finished label images to the platform print
// subsystem. The driver call is not safe under concurrency, so the Spooler
// serializes submissions from all workers.
package printing

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"labelpress/internal/logging"
	"labelpress/internal/services"
)

// Printer is the narrow driver interface the pipeline depends on.
type Printer interface {
	// Print submits the image at path to the named printer.
	Print(ctx context.Context, path, target string) error
	// Status reports an error when the named printer is not accepting jobs.
	Status(ctx context.Context, target string) error
}

type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execCommandRunner struct{}

func (execCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.Output()
}

// CUPSPrinter drives a printer through the lp/lpstat tools.
type CUPSPrinter struct {
	runner commandRunner
}

// NewCUPS returns a Printer backed by the CUPS command line tools.
func NewCUPS() *CUPSPrinter {
	return &CUPSPrinter{runner: execCommandRunner{}}
}

// Print implements Printer.
func (p *CUPSPrinter) Print(ctx context.Context, path, target string) error {
	if _, err := p.runner.Output(ctx, "lp", "-d", target, path); err != nil {
		return services.Wrap(services.ErrStage, "print", "submit", target, err)
	}
	return nil
}

// Status implements Printer.
func (p *CUPSPrinter) Status(ctx context.Context, target string) error {
	out, err := p.runner.Output(ctx, "lpstat", "-p", target)
	if err != nil {
		return services.Wrap(services.ErrStage, "print", "status", target, err)
	}
	if strings.Contains(strings.ToLower(string(out)), "disabled") {
		return services.Wrap(services.ErrStage, "print", "status", fmt.Sprintf("printer %s is disabled", target), nil)
	}
	return nil
}

// Spooler serializes print submissions. Workers call Submit concurrently;
// only one job reaches the driver at a time.
type Spooler struct {
	printer Printer
	target  string
	logger  *slog.Logger

	mu        sync.Mutex
	submitted int
}

// NewSpooler wraps printer with single-writer submission to the given target.
func NewSpooler(printer Printer, target string, logger *slog.Logger) *Spooler {
	return &Spooler{
		printer: printer,
		target:  target,
		logger:  logging.WithComponent(logger, "spooler"),
	}
}

// Submit prints the image at path, blocking while another worker's job is in
// the driver.
func (s *Spooler) Submit(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.printer.Print(ctx, path, s.target); err != nil {
		return err
	}
	s.submitted++
	s.logger.Info("label submitted to printer",
		logging.String("image", path),
		logging.String("printer", s.target),
	)
	return nil
}

// Submitted returns the number of jobs accepted by the driver.
func (s *Spooler) Submitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}
