package testsupport

import (
	"path/filepath"
	"testing"

	"labelpress/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The transport binds to an ephemeral port so parallel tests never collide.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WatchDir = filepath.Join(base, "watch")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Transport.Bind = "127.0.0.1:0"
	cfgVal.Sender.RetryDelayMS = 1
	cfgVal.Workers.DrainTimeout = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithWorkers overrides the worker count and queue depth on the test config.
func WithWorkers(count, queueDepth int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.Count = count
		b.cfg.Workers.QueueDepth = queueDepth
	}
}

// WithSplitPages enables per-page message emission on the test config.
func WithSplitPages() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sender.SplitPages = true
	}
}

// WithPrinting enables printing against the named target.
func WithPrinting(printer string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Printing.Enabled = true
		b.cfg.Printing.Printer = printer
	}
}
