// Package daemon assembles the processing side of labelpress: the transport
// receiver, the dispatcher, the worker pool, the print spooler, and the
// shutdown coordinator, with single-instance enforcement via a lock file.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"labelpress/internal/config"
	"labelpress/internal/journal"
	"labelpress/internal/logging"
	"labelpress/internal/pipeline"
	"labelpress/internal/printing"
	"labelpress/internal/region"
	"labelpress/internal/render"
	"labelpress/internal/transport"
)

// State is the daemon lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Daemon coordinates the processing services. Stop drains in-flight work up
// to the configured timeout; StateStopped is terminal.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	jrnl     *journal.Store
	renderer render.Renderer
	locator  region.Locator
	printer  printing.Printer

	lockPath string
	lock     *flock.Flock

	state atomic.Int32

	receiver     *transport.Receiver
	pool         *pipeline.Pool
	spooler      *printing.Spooler
	intakeCancel context.CancelFunc
	workCancel   context.CancelFunc
	dispatchDone chan struct{}

	stopOnce sync.Once
}

// Status represents daemon runtime information.
type Status struct {
	State         State
	TransportAddr string
	QueueDepth    int
	InFlight      int
	Succeeded     int
	Failed        int
	Journal       journal.Summary
	JournalPath   string
	LockFilePath  string
	PrintEnabled  bool
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, jrnl *journal.Store, renderer render.Renderer, locator region.Locator, printer printing.Printer, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || jrnl == nil || renderer == nil || locator == nil {
		return nil, errors.New("daemon requires config, journal, renderer, and locator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "labelpressd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		jrnl:     jrnl,
		renderer: renderer,
		locator:  locator,
		printer:  printer,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start binds the transport, launches the pool and dispatcher, and acquires
// the daemon lock. Any failure here is a startup failure and fatal to the
// process.
func (d *Daemon) Start(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("daemon cannot start from state %s", State(d.state.Load()))
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		d.state.Store(int32(StateStopped))
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		d.state.Store(int32(StateStopped))
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		d.state.Store(int32(StateStopped))
		return errors.New("another labelpressd instance is already running")
	}

	receiver, err := transport.Listen(context.Background(), d.cfg.Transport.Bind, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		d.state.Store(int32(StateStopped))
		return err
	}
	d.receiver = receiver

	if d.cfg.Printing.Enabled && d.printer != nil {
		d.spooler = printing.NewSpooler(d.printer, d.cfg.Printing.Printer, d.logger)
		statusCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := d.printer.Status(statusCtx, d.cfg.Printing.Printer); err != nil {
			d.logger.Warn("printer not ready, jobs may fail",
				logging.String("printer", d.cfg.Printing.Printer),
				logging.Error(err),
			)
		}
		cancel()
	}

	// Intake stops at the first shutdown signal; work gets its own context so
	// in-flight tasks can finish during the drain window.
	intakeCtx, intakeCancel := context.WithCancel(ctx)
	workCtx, workCancel := context.WithCancel(context.Background())
	d.intakeCancel = intakeCancel
	d.workCancel = workCancel

	proc := pipeline.NewProcessor(d.cfg, d.renderer, d.locator, d.spooler, d.logger)
	d.pool = pipeline.NewPool(d.cfg.Workers.Count, d.cfg.Workers.QueueDepth, proc, d.jrnl, d.logger)
	d.pool.Start(workCtx)

	dispatcher := pipeline.NewDispatcher(receiver, d.pool, d.logger)
	d.dispatchDone = make(chan struct{})
	go func() {
		defer close(d.dispatchDone)
		if err := dispatcher.Run(intakeCtx); err != nil {
			d.logger.Error("dispatcher stopped", logging.Error(err))
		}
	}()

	d.logger.Info("labelpressd started",
		logging.String("transport", receiver.Addr()),
		logging.Int("workers", d.cfg.Workers.Count),
		logging.Bool("printing", d.cfg.Printing.Enabled),
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop transitions Running -> Draining -> Stopped: intake halts, in-flight
// work drains up to the configured timeout, remaining tasks are reported and
// abandoned, and resources are released.
func (d *Daemon) Stop() {
	d.stopOnce.Do(d.stop)
}

func (d *Daemon) stop() {
	if !d.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		d.state.Store(int32(StateStopped))
		return
	}
	d.logger.Info("draining in-flight work",
		logging.Int("in_flight", d.pool.InFlight()),
		logging.Int("queued", d.pool.QueueDepth()),
		logging.String(logging.FieldEventType, "daemon_draining"),
	)

	d.intakeCancel()
	d.receiver.Close()
	<-d.dispatchDone
	d.pool.CloseIntake()

	drainTimeout := time.Duration(d.cfg.Workers.DrainTimeout) * time.Second
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	remaining := d.pool.Drain(drainCtx, drainTimeout)
	cancel()
	if len(remaining) > 0 {
		d.logger.Warn("drain timeout elapsed, abandoning tasks",
			logging.Int("abandoned", len(remaining)),
			logging.Duration("timeout", drainTimeout),
			logging.String(logging.FieldEventType, "drain_timeout"),
		)
	}
	d.workCancel()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.state.Store(int32(StateStopped))
	d.logger.Info("labelpressd stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the journal.
func (d *Daemon) Close() error {
	d.Stop()
	if d.jrnl != nil {
		return d.jrnl.Close()
	}
	return nil
}

// TransportAddr returns the bound transport address, or "" before Start.
func (d *Daemon) TransportAddr() string {
	if d.receiver == nil {
		return ""
	}
	return d.receiver.Addr()
}

// State returns the current lifecycle phase.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

// Status returns a snapshot of daemon runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		State:        d.State(),
		LockFilePath: d.lockPath,
		PrintEnabled: d.cfg.Printing.Enabled,
	}
	if d.receiver != nil {
		status.TransportAddr = d.receiver.Addr()
	}
	if d.pool != nil {
		status.QueueDepth = d.pool.QueueDepth()
		status.InFlight = d.pool.InFlight()
		status.Succeeded, status.Failed = d.pool.Counts()
	}
	if d.jrnl != nil {
		status.JournalPath = d.jrnl.Path()
		if summary, err := d.jrnl.Summary(ctx); err == nil {
			status.Journal = summary
		}
	}
	return status
}

// Jobs lists journal entries for IPC callers.
func (d *Daemon) Jobs(ctx context.Context, limit int, statuses ...journal.Status) ([]journal.Entry, error) {
	if d.jrnl == nil {
		return nil, errors.New("journal unavailable")
	}
	return d.jrnl.List(ctx, limit, statuses...)
}
