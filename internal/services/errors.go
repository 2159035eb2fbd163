package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFileLocked marks transient lock contention on a watched file.
	ErrFileLocked = errors.New("file locked")
	// ErrNoReceiver marks a send attempted while no consumer is connected.
	ErrNoReceiver = errors.New("no receiver")
	// ErrDecode marks a malformed message or document.
	ErrDecode = errors.New("decode failure")
	// ErrStage marks a failure inside one pipeline stage, contained to one task.
	ErrStage = errors.New("stage failure")
	// ErrConfiguration marks invalid configuration; fatal at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrTimeout marks a bounded wait that elapsed.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether an error should abort startup rather than being
// contained at the item boundary.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
