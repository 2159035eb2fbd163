package daemon_test

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"labelpress/internal/config"
	"labelpress/internal/daemon"
	"labelpress/internal/journal"
	"labelpress/internal/logging"
	"labelpress/internal/printing"
	"labelpress/internal/region"
	"labelpress/internal/sender"
	"labelpress/internal/testsupport"
	"labelpress/internal/transport"
	"labelpress/internal/watch"
)

func startDaemon(t *testing.T, cfg *config.Config, renderer *testsupport.FakeRenderer, printer printing.Printer) *daemon.Daemon {
	t.Helper()

	jrnl := testsupport.MustOpenJournal(t, cfg)
	d, err := daemon.New(cfg, jrnl, renderer, region.NewContentLocator(), printer, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func listOutputs(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var outputs []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".png") {
			outputs = append(outputs, filepath.Join(dir, entry.Name()))
		}
	}
	return outputs
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDaemonEndToEndTwoPageDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSplitPages())
	renderer := &testsupport.FakeRenderer{Pages: 2}
	d := startDaemon(t, cfg, renderer, nil)

	// Point the watching sender at the port the daemon actually bound.
	cfg.Transport.Connect = d.TransportAddr()

	push := transport.NewSender(cfg.Transport.Connect, time.Second)
	defer push.Close()
	s := sender.New(cfg, push, renderer, logging.NewNop())

	src := watch.NewPoller(cfg.Paths.WatchDir, cfg.Sender.Extensions, 10*time.Millisecond, logging.NewNop())
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(runCtx, src) //nolint:errcheck

	sourcePath := filepath.Join(cfg.Paths.WatchDir, "ship1.pdf")
	testsupport.WriteFile(t, sourcePath, []byte("%PDF two page document"))

	waitFor(t, "two label images", func() bool {
		return len(listOutputs(t, cfg.Paths.OutputDir)) == 2
	})
	waitFor(t, "source file deletion", func() bool {
		_, err := os.Stat(sourcePath)
		return os.IsNotExist(err)
	})

	for _, path := range listOutputs(t, cfg.Paths.OutputDir) {
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		if img.Bounds().Dx() != cfg.Label.Width || img.Bounds().Dy() != cfg.Label.Height {
			t.Fatalf("output %s geometry %v", path, img.Bounds())
		}
		base := filepath.Base(path)
		if !strings.HasPrefix(base, "ship1-p") {
			t.Fatalf("unexpected output name: %s", base)
		}
	}

	waitFor(t, "journal rows", func() bool {
		return d.Status(context.Background()).Journal.Succeeded == 2
	})
}

func TestDaemonPrintsWhenEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrinting("dymo-test"))
	renderer := &testsupport.FakeRenderer{}
	printer := &testsupport.FakePrinter{}
	d := startDaemon(t, cfg, renderer, printer)

	push := transport.NewSender(d.TransportAddr(), time.Second)
	defer push.Close()
	msg := transport.Message{Filename: "label.pdf", Page: 0, Payload: []byte("doc")}
	if err := push.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	waitFor(t, "print submission", func() bool {
		return len(printer.Jobs()) == 1
	})
	if printer.Overlapped() {
		t.Fatal("print driver saw concurrent submissions")
	}
}

func TestDaemonStopDrainsBeforeExit(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2, 4))
	renderer := &testsupport.FakeRenderer{Delay: 100 * time.Millisecond}
	d := startDaemon(t, cfg, renderer, nil)

	push := transport.NewSender(d.TransportAddr(), time.Second)
	defer push.Close()
	for page := 0; page < 4; page++ {
		msg := transport.Message{Filename: "drainme.pdf", Page: page, Payload: []byte("doc")}
		if err := push.Send(context.Background(), msg); err != nil {
			t.Fatalf("Send %d: %v", page, err)
		}
	}
	waitFor(t, "tasks picked up", func() bool {
		status := d.Status(context.Background())
		return status.InFlight > 0 || status.Succeeded > 0
	})

	d.Stop()
	if got := d.State(); got != daemon.StateStopped {
		t.Fatalf("state after Stop: %v", got)
	}

	// Slow tasks were given the drain window, so every payload became an
	// image and none were abandoned.
	if got := len(listOutputs(t, cfg.Paths.OutputDir)); got != 4 {
		t.Fatalf("expected 4 outputs after drain, found %d", got)
	}
	status := d.Status(context.Background())
	if status.Journal.Abandoned != 0 {
		t.Fatalf("unexpected abandoned tasks: %+v", status.Journal)
	}
}

func TestDaemonStopReturnsWhileSenderStaysConnected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := startDaemon(t, cfg, &testsupport.FakeRenderer{}, nil)

	push := transport.NewSender(d.TransportAddr(), time.Second)
	defer push.Close()
	msg := transport.Message{Filename: "label.pdf", Page: 0, Payload: []byte("doc")}
	if err := push.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitFor(t, "task completion", func() bool {
		return d.Status(context.Background()).Journal.Succeeded == 1
	})

	// The connection stays open, the way a long-running watch process keeps
	// it between documents. Stop must not wait on it.
	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while a sender connection was idle")
	}
	if got := d.State(); got != daemon.StateStopped {
		t.Fatalf("state after Stop: %v", got)
	}
}

func TestDaemonSecondInstanceRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	renderer := &testsupport.FakeRenderer{}
	startDaemon(t, cfg, renderer, nil)

	second := *cfg
	second.Transport.Bind = "127.0.0.1:0"
	jrnl, err := journal.Open(t.TempDir())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	defer jrnl.Close()

	d2, err := daemon.New(&second, jrnl, renderer, region.NewContentLocator(), nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d2.Start(context.Background()); err == nil {
		d2.Stop()
		t.Fatal("expected second instance to fail the lock")
	}
}

func TestDaemonStartFromStoppedFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := startDaemon(t, cfg, &testsupport.FakeRenderer{}, nil)
	d.Stop()

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected restart of a stopped daemon to fail")
	}
}
