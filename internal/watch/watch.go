// Package watch provides the file event source consumed by the sender: a
// restartable sequence of (path, kind) items for documents appearing in,
// changing in, or leaving the watched directory.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"labelpress/internal/logging"
)

// Kind classifies a filesystem event.
type Kind int

const (
	KindCreated Kind = iota
	KindModified
	KindRemoved
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindModified:
		return "modified"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event describes one observed change.
type Event struct {
	Path string
	Kind Kind
}

// Source yields filesystem events for a watched directory.
type Source interface {
	Events() <-chan Event
	Start(ctx context.Context) error
	Stop()
}

type fileState struct {
	modTime time.Time
	size    int64
}

// Poller is a polling Source. It tracks modification time and size per file
// and emits an event only after a file has held still for one full scan
// interval, so documents still being copied in are not picked up half-written.
type Poller struct {
	dir        string
	extensions map[string]struct{}
	interval   time.Duration
	logger     *slog.Logger

	events  chan Event
	known   map[string]fileState
	pending map[string]pendingChange

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type pendingChange struct {
	state fileState
	kind  Kind
}

// NewPoller watches dir for files with the given extensions (lowercase, with
// leading dot) at the given interval.
func NewPoller(dir string, extensions []string, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			extSet[ext] = struct{}{}
		}
	}
	return &Poller{
		dir:        dir,
		extensions: extSet,
		interval:   interval,
		logger:     logging.WithComponent(logger, "watch"),
		events:     make(chan Event, 16),
		known:      make(map[string]fileState),
		pending:    make(map[string]pendingChange),
	}
}

// Events returns the event channel. It is never closed; consumers stop via
// their own context.
func (p *Poller) Events() <-chan Event {
	return p.events
}

// Start begins scanning until Stop or context cancellation.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("watch: poller already running")
	}
	if _, err := os.Stat(p.dir); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go p.loop(runCtx)
	return nil
}

// Stop halts scanning. The poller can be started again afterwards.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Files already present at startup flow through the same settle path and
	// are reported as created.
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scan(ctx)
		}
	}
}

func (p *Poller) scan(ctx context.Context) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		p.logger.Warn("scan failed", logging.Error(err))
		return
	}

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !p.matches(entry.Name()) {
			continue
		}
		path := filepath.Join(p.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		seen[path] = struct{}{}
		state := fileState{modTime: info.ModTime(), size: info.Size()}

		if prev, ok := p.known[path]; ok && prev == state {
			delete(p.pending, path)
			continue
		}

		if pend, ok := p.pending[path]; ok && pend.state == state {
			// Held still for one interval; report it.
			p.known[path] = state
			delete(p.pending, path)
			p.emit(ctx, Event{Path: path, Kind: pend.kind})
			continue
		}

		kind := KindModified
		if _, ok := p.known[path]; !ok {
			kind = KindCreated
		}
		p.pending[path] = pendingChange{state: state, kind: kind}
	}

	for path := range p.known {
		if _, ok := seen[path]; !ok {
			delete(p.known, path)
			delete(p.pending, path)
			p.emit(ctx, Event{Path: path, Kind: KindRemoved})
		}
	}
	for path := range p.pending {
		if _, ok := seen[path]; !ok {
			delete(p.pending, path)
		}
	}
}

func (p *Poller) matches(name string) bool {
	if len(p.extensions) == 0 {
		return true
	}
	_, ok := p.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (p *Poller) emit(ctx context.Context, ev Event) {
	select {
	case <-ctx.Done():
	case p.events <- ev:
	}
}
