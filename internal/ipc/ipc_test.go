package ipc_test

import (
	"context"
	"path/filepath"
	"testing"

	"labelpress/internal/daemon"
	"labelpress/internal/ipc"
	"labelpress/internal/journal"
	"labelpress/internal/logging"
	"labelpress/internal/region"
	"labelpress/internal/testsupport"
)

func TestStatusAndJobsOverSocket(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	jrnl := testsupport.MustOpenJournal(t, cfg)

	d, err := daemon.New(cfg, jrnl, &testsupport.FakeRenderer{}, region.NewContentLocator(), nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	if _, err := jrnl.Record(context.Background(), journal.Entry{
		JobID:      "job-1",
		SourceFile: "doc.pdf",
		Status:     journal.StatusFailed,
		Stage:      "render",
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.LogDir, "labelpress.sock")
	server, err := ipc.NewServer(context.Background(), socketPath, d, logging.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != "running" {
		t.Fatalf("unexpected state: %q", status.State)
	}
	if status.TransportAddr == "" {
		t.Fatal("expected a bound transport address")
	}
	if status.JournalTotal != 1 {
		t.Fatalf("unexpected journal total: %d", status.JournalTotal)
	}

	jobs, err := client.Jobs(ipc.JobsRequest{Statuses: []string{"failed"}, Limit: 10})
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(jobs.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs.Jobs))
	}
	if jobs.Jobs[0].Stage != "render" || jobs.Jobs[0].Status != "failed" {
		t.Fatalf("unexpected job: %+v", jobs.Jobs[0])
	}
}

func TestDialMissingSocketFails(t *testing.T) {
	if _, err := ipc.Dial(filepath.Join(t.TempDir(), "absent.sock")); err == nil {
		t.Fatal("expected dial failure for missing socket")
	}
}
