package services_test

import (
	"errors"
	"strings"
	"testing"

	"labelpress/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	inner := errors.New("connection refused")
	err := services.Wrap(services.ErrNoReceiver, "transport", "dial", "127.0.0.1:5555", inner)

	if !errors.Is(err, services.ErrNoReceiver) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("cause lost: %v", err)
	}
	msg := err.Error()
	for _, part := range []string{"transport", "dial", "127.0.0.1:5555", "connection refused"} {
		if !strings.Contains(msg, part) {
			t.Fatalf("message missing %q: %s", part, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToStage(t *testing.T) {
	err := services.Wrap(nil, "save", "", "", nil)
	if !errors.Is(err, services.ErrStage) {
		t.Fatalf("expected stage marker, got %v", err)
	}
}

func TestWrapEmptyDetail(t *testing.T) {
	err := services.Wrap(services.ErrTimeout, "", "", "", nil)
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	if !services.IsFatal(services.Wrap(services.ErrConfiguration, "config", "load", "bad value", nil)) {
		t.Fatal("configuration errors are fatal")
	}
	if services.IsFatal(services.Wrap(services.ErrStage, "render", "render", "boom", nil)) {
		t.Fatal("stage errors are not fatal")
	}
}
