package pipeline

import (
	"time"

	"labelpress/internal/transport"
)

// Task is one payload owned exclusively by one worker from dispatch until
// completion or failure.
type Task struct {
	ID      string
	Msg     transport.Message
	Arrived time.Time
}
