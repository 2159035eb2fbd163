package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"labelpress/internal/services"
)

func withTestJob(ctx context.Context) context.Context {
	ctx = services.WithJobID(ctx, "job-7")
	return services.WithPage(ctx, 1)
}

func newConsoleLogger(buf *bytes.Buffer, level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(parseLevel(level))
	return slog.New(newConsoleHandler(buf, lvl))
}

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(newConsoleLogger(&buf, "info"), "sender")

	logger.Info("payload queued", slog.Int("page", 2), slog.String("file", "a b.pdf"))

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, " INFO sender: payload queued") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "page=2") {
		t.Fatalf("missing attr: %q", line)
	}
	if !strings.Contains(line, `file="a b.pdf"`) {
		t.Fatalf("value with spaces not quoted: %q", line)
	}
}

func TestConsoleHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := newConsoleLogger(&buf, "warn")

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line leaked through warn filter: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl))

	logger.Info("daemon started", slog.String("transport", "127.0.0.1:5555"))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["msg"] != "daemon started" {
		t.Fatalf("msg field: %v", decoded)
	}
	if decoded["level"] != "info" {
		t.Fatalf("level field: %v", decoded)
	}
	if _, ok := decoded["ts"]; !ok {
		t.Fatalf("ts field missing: %v", decoded)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		" DEBUG ": slog.LevelDebug,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newConsoleLogger(&buf, "info")

	ctx := context.Background()
	ctx = withTestJob(ctx)
	WithContext(ctx, logger).Info("task completed")

	line := buf.String()
	if !strings.Contains(line, "job_id=job-7") {
		t.Fatalf("missing job id: %q", line)
	}
	if !strings.Contains(line, "page=1") {
		t.Fatalf("missing page: %q", line)
	}
}
