package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"labelpress/internal/journal"
	"labelpress/internal/logging"
)

// Pool executes tasks on a fixed number of workers fed by a bounded queue.
// A failure on one task never stops the pool or other tasks.
type Pool struct {
	tasks  chan Task
	proc   *Processor
	jrnl   *journal.Store
	logger *slog.Logger

	workers int
	wg      sync.WaitGroup

	mu        sync.Mutex
	inflight  map[string]Task
	succeeded int
	failed    int

	closeOnce sync.Once
}

// NewPool creates a pool with the given worker count and queue depth. jrnl
// may be nil; outcomes are then only logged.
func NewPool(workers, queueDepth int, proc *Processor, jrnl *journal.Store, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	return &Pool{
		tasks:    make(chan Task, queueDepth),
		proc:     proc,
		jrnl:     jrnl,
		logger:   logging.WithComponent(logger, "pool"),
		workers:  workers,
		inflight: make(map[string]Task),
	}
}

// Start launches the workers. workCtx is the cancellation token workers check
// between stages; it should outlive intake and only be canceled when the
// drain timeout elapses.
func (p *Pool) Start(workCtx context.Context) {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker(workCtx)
	}
}

// Submit queues a task, blocking while the queue is full. This is the
// system's backpressure point; tasks are never dropped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- task:
		return nil
	}
}

// TrySubmit queues a task without blocking and reports whether it was
// accepted. Callers must not race it with CloseIntake.
func (p *Pool) TrySubmit(task Task) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// CloseIntake stops accepting new tasks. Queued tasks are still processed.
func (p *Pool) CloseIntake() {
	p.closeOnce.Do(func() { close(p.tasks) })
}

// Drain waits up to timeout for queued and in-flight tasks to finish.
// CloseIntake must have been called. Tasks still running when the timeout
// elapses are returned so the caller can report them; they are also recorded
// as abandoned in the journal.
func (p *Pool) Drain(ctx context.Context, timeout time.Duration) []Task {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	}

	remaining := p.snapshotInflight()
	for _, task := range remaining {
		p.logger.Warn("task abandoned at drain timeout",
			logging.String(logging.FieldJobID, task.ID),
			logging.String(logging.FieldSourceFile, task.Msg.Filename),
			logging.Int(logging.FieldPage, task.Msg.Page),
			logging.String(logging.FieldEventType, "task_abandoned"),
		)
		p.record(ctx, journal.Entry{
			JobID:      task.ID,
			SourceFile: task.Msg.Filename,
			Page:       task.Msg.Page,
			Status:     journal.StatusAbandoned,
			ArrivedAt:  task.Arrived,
		})
	}
	return remaining
}

// InFlight returns the number of tasks currently owned by workers.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

// QueueDepth returns the number of queued, unclaimed tasks.
func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}

// Counts returns the number of succeeded and failed tasks so far.
func (p *Pool) Counts() (succeeded, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.succeeded, p.failed
}

func (p *Pool) worker(workCtx context.Context) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(workCtx, task)
	}
}

func (p *Pool) run(workCtx context.Context, task Task) {
	p.mu.Lock()
	p.inflight[task.ID] = task
	p.mu.Unlock()

	started := time.Now()
	outputPath, failedStage, err := p.proc.Process(workCtx, task)
	duration := time.Since(started)

	p.mu.Lock()
	delete(p.inflight, task.ID)
	if err != nil {
		p.failed++
	} else {
		p.succeeded++
	}
	p.mu.Unlock()

	entry := journal.Entry{
		JobID:      task.ID,
		SourceFile: task.Msg.Filename,
		Page:       task.Msg.Page,
		ArrivedAt:  task.Arrived,
		FinishedAt: started.Add(duration),
		Duration:   duration,
		OutputPath: outputPath,
	}

	if err != nil {
		entry.Status = journal.StatusFailed
		entry.Stage = failedStage
		entry.ErrorMessage = err.Error()
		p.logger.Error("task failed",
			logging.String(logging.FieldJobID, task.ID),
			logging.String(logging.FieldSourceFile, task.Msg.Filename),
			logging.Int(logging.FieldPage, task.Msg.Page),
			logging.String(logging.FieldStage, failedStage),
			logging.Error(err),
			logging.String(logging.FieldEventType, "task_failed"),
		)
	} else {
		entry.Status = journal.StatusSucceeded
		p.logger.Info("task completed",
			logging.String(logging.FieldJobID, task.ID),
			logging.String(logging.FieldSourceFile, task.Msg.Filename),
			logging.Int(logging.FieldPage, task.Msg.Page),
			logging.Duration("duration", duration),
			logging.String(logging.FieldEventType, "task_completed"),
		)
	}

	// Journal writes are best-effort bookkeeping; never fail a task over one.
	p.record(context.Background(), entry)
}

func (p *Pool) record(ctx context.Context, entry journal.Entry) {
	if p.jrnl == nil {
		return
	}
	if _, err := p.jrnl.Record(ctx, entry); err != nil {
		p.logger.Warn("journal write failed", logging.Error(err))
	}
}

func (p *Pool) snapshotInflight() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	remaining := make([]Task, 0, len(p.inflight))
	for _, task := range p.inflight {
		remaining = append(remaining, task)
	}
	return remaining
}
