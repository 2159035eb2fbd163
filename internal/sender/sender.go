// Package sender implements the retrying file sender: it reads documents
// reported by the watch source, retries around lock contention, pushes
// payloads over the transport, and deletes the source file only after every
// derived payload was acknowledged as queued.
package sender

import (
	"context"
	"crypto/sha256"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"labelpress/internal/config"
	"labelpress/internal/logging"
	"labelpress/internal/services"
	"labelpress/internal/transport"
	"labelpress/internal/watch"
)

// Outcome is the result of one Submit call.
type Outcome int

const (
	// OutcomeDelivered means every payload was queued and the source file
	// was removed.
	OutcomeDelivered Outcome = iota
	// OutcomeLockedGiveUp means the retry bound was exhausted; the file
	// stays on disk for a later pass.
	OutcomeLockedGiveUp
	// OutcomeNoReceiver means the transport had no connected consumer; the
	// file stays on disk for a later pass.
	OutcomeNoReceiver
	// OutcomeSkipped means the file disappeared before it could be read.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeLockedGiveUp:
		return "locked_give_up"
	case OutcomeNoReceiver:
		return "no_receiver"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// BackoffFunc maps a 1-based attempt number to the delay before the next try.
type BackoffFunc func(attempt int) time.Duration

// FixedBackoff returns the same delay for every attempt.
func FixedBackoff(delay time.Duration) BackoffFunc {
	return func(int) time.Duration { return delay }
}

// Pusher is the transport contract the sender needs.
type Pusher interface {
	Send(ctx context.Context, msg transport.Message) error
}

// PageCounter reports how many pages a document holds; used in page-split
// mode. The renderer satisfies this.
type PageCounter interface {
	PageCount(ctx context.Context, doc []byte) (int, error)
}

// Sender reads, retries, and delivers watched files.
type Sender struct {
	cfg    *config.Config
	pusher Pusher
	pages  PageCounter
	logger *slog.Logger

	backoff BackoffFunc
	sleep   func(ctx context.Context, d time.Duration)

	mu       sync.Mutex
	progress map[string]sendProgress
}

// sendProgress records how far a partially failed fan-out got, so a retry
// resumes at the first unsent page instead of pushing duplicates. The digest
// guards against the file being replaced between attempts.
type sendProgress struct {
	digest [sha256.Size]byte
	sent   int
}

// Option configures optional Sender behavior.
type Option func(*Sender)

// WithBackoff overrides the retry delay policy.
func WithBackoff(backoff BackoffFunc) Option {
	return func(s *Sender) { s.backoff = backoff }
}

// WithSleep overrides the sleep used between retries; tests inject a no-op.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(s *Sender) { s.sleep = sleep }
}

// New constructs a sender. pages may be nil when page splitting is disabled.
func New(cfg *config.Config, pusher Pusher, pages PageCounter, logger *slog.Logger, opts ...Option) *Sender {
	s := &Sender{
		cfg:      cfg,
		pusher:   pusher,
		pages:    pages,
		logger:   logging.WithComponent(logger, "sender"),
		backoff:  FixedBackoff(time.Duration(cfg.Sender.RetryDelayMS) * time.Millisecond),
		sleep:    sleepWithContext,
		progress: make(map[string]sendProgress),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit reads the file at path and pushes its payload(s) over the transport,
// deleting the file only after every payload was queued.
func (s *Sender) Submit(ctx context.Context, path string) (Outcome, error) {
	name := filepath.Base(path)
	logger := s.logger.With(logging.String(logging.FieldSourceFile, name))

	data, outcome, err := s.readWithRetry(ctx, path, logger)
	if outcome != OutcomeDelivered || err != nil {
		if outcome == OutcomeSkipped {
			s.clearProgress(path)
		}
		return outcome, err
	}

	pageCount := 1
	if s.cfg.Sender.SplitPages && s.pages != nil {
		count, err := s.pages.PageCount(ctx, data)
		switch {
		case err != nil:
			logger.Warn("page count failed, sending whole document", logging.Error(err))
		case count > 0:
			pageCount = count
		}
	}

	digest := sha256.Sum256(data)
	start := s.resumePage(path, digest)
	if start > 0 {
		logger.Info("resuming delivery at first unsent page",
			logging.Int(logging.FieldPage, start),
		)
	}

	for page := start; page < pageCount; page++ {
		msg := transport.Message{Filename: name, Page: page, Payload: data}
		if err := s.pusher.Send(ctx, msg); err != nil {
			// Pages before this one are queued; remember that so the retry
			// does not push them again.
			s.markProgress(path, digest, page)
			if errors.Is(err, services.ErrNoReceiver) {
				logger.Warn("no receiver connected, keeping file for retry",
					logging.Int(logging.FieldPage, page),
					logging.Error(err),
					logging.String(logging.FieldEventType, "send_no_receiver"),
				)
				return OutcomeNoReceiver, nil
			}
			return OutcomeNoReceiver, err
		}
		logger.Info("payload queued",
			logging.Int(logging.FieldPage, page),
			logging.Int("bytes", len(data)),
			logging.String(logging.FieldEventType, "send_ok"),
		)
	}
	s.clearProgress(path)

	// Deletion happens strictly after every send succeeded, never before.
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("source file delivered but could not be removed", logging.Error(err))
	}
	logger.Info("document delivered",
		logging.Int("pages", pageCount),
		logging.String(logging.FieldEventType, "delivered"),
	)
	return OutcomeDelivered, nil
}

// Run consumes events from src until the context is canceled. Removed events
// are ignored: the sender's own post-delivery deletion must not re-trigger
// work.
func (s *Sender) Run(ctx context.Context, src watch.Source) error {
	if err := src.Start(ctx); err != nil {
		return services.Wrap(services.ErrConfiguration, "sender", "start watch source", s.cfg.Paths.WatchDir, err)
	}
	defer src.Stop()

	s.logger.Info("watching for documents",
		logging.String("dir", s.cfg.Paths.WatchDir),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-src.Events():
			switch ev.Kind {
			case watch.KindCreated, watch.KindModified:
				s.logger.Info("file accepted",
					logging.String(logging.FieldSourceFile, filepath.Base(ev.Path)),
					logging.String("event", ev.Kind.String()),
					logging.String(logging.FieldEventType, "file_accepted"),
				)
				if _, err := s.Submit(ctx, ev.Path); err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					s.logger.Error("submit failed",
						logging.String(logging.FieldSourceFile, filepath.Base(ev.Path)),
						logging.Error(err),
					)
				}
			case watch.KindRemoved:
				s.logger.Debug("file removed",
					logging.String(logging.FieldSourceFile, filepath.Base(ev.Path)),
				)
			}
		}
	}
}

func (s *Sender) readWithRetry(ctx context.Context, path string, logger *slog.Logger) ([]byte, Outcome, error) {
	maxAttempts := s.cfg.Sender.MaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, err := readUnlessLocked(path)
		if err == nil {
			return data, OutcomeDelivered, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("file vanished before read")
			return nil, OutcomeSkipped, nil
		}
		if !errors.Is(err, services.ErrFileLocked) {
			return nil, OutcomeSkipped, err
		}

		if attempt < maxAttempts {
			delay := s.backoff(attempt)
			logger.Info("file locked, retrying",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", maxAttempts),
				logging.Duration("delay", delay),
				logging.String(logging.FieldEventType, "lock_retry"),
			)
			s.sleep(ctx, delay)
			if ctx.Err() != nil {
				return nil, OutcomeSkipped, ctx.Err()
			}
		}
	}

	logger.Warn("file locked, giving up until next event",
		logging.Int("attempts", maxAttempts),
		logging.String(logging.FieldEventType, "lock_give_up"),
	)
	return nil, OutcomeLockedGiveUp, nil
}

// readUnlessLocked probes the file with a non-blocking advisory lock before
// reading, so a file another process holds exclusively is reported as
// contended instead of being read half-written.
func readUnlessLocked(path string) ([]byte, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// Lock probing is best-effort; fall through to the read.
	} else if !locked {
		return nil, services.Wrap(services.ErrFileLocked, "sender", "open", path, nil)
	}
	if locked {
		defer fl.Unlock() //nolint:errcheck
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			// Sharing violations surface as permission errors on some
			// platforms; treat them as contention and retry.
			return nil, services.Wrap(services.ErrFileLocked, "sender", "read", path, err)
		}
		return nil, err
	}
	return data, nil
}

// resumePage returns the first unsent page for path, or 0 when there is no
// usable progress. Progress made against different file contents is stale
// and discarded.
func (s *Sender) resumePage(path string, digest [sha256.Size]byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog, ok := s.progress[path]
	if !ok {
		return 0
	}
	if prog.digest != digest {
		delete(s.progress, path)
		return 0
	}
	return prog.sent
}

func (s *Sender) markProgress(path string, digest [sha256.Size]byte, sent int) {
	s.mu.Lock()
	s.progress[path] = sendProgress{digest: digest, sent: sent}
	s.mu.Unlock()
}

func (s *Sender) clearProgress(path string) {
	s.mu.Lock()
	delete(s.progress, path)
	s.mu.Unlock()
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
