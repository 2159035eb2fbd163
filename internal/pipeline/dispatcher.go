package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"labelpress/internal/logging"
	"labelpress/internal/transport"
)

// Receiver is the transport contract the dispatcher needs.
type Receiver interface {
	Receive(ctx context.Context) (transport.Message, error)
}

// Dispatcher is the single receive loop: it pulls messages off the transport
// and submits them to the pool, suspending only while waiting for a message
// or for a free queue slot.
type Dispatcher struct {
	recv   Receiver
	pool   *Pool
	logger *slog.Logger
}

// NewDispatcher wires the receive loop to the pool.
func NewDispatcher(recv Receiver, pool *Pool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		recv:   recv,
		pool:   pool,
		logger: logging.WithComponent(logger, "dispatcher"),
	}
}

// Run loops until the context is canceled or the receiver closes. Malformed
// messages are logged and discarded; the loop continues.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		msg, err := d.recv.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return err
		}

		if reason := validate(msg); reason != "" {
			d.logger.Warn("discarding malformed message",
				logging.String(logging.FieldSourceFile, msg.Filename),
				logging.Int(logging.FieldPage, msg.Page),
				logging.String("reason", reason),
				logging.String(logging.FieldEventType, "message_discarded"),
			)
			continue
		}

		task := Task{
			ID:      uuid.NewString(),
			Msg:     msg,
			Arrived: time.Now().UTC(),
		}
		if err := d.pool.Submit(ctx, task); err != nil {
			// Shutdown canceled a backpressure-blocked submit. The message is
			// already off the transport and its source file may be gone, so
			// try a last non-blocking hand-off and otherwise say what was
			// dropped.
			if d.pool.TrySubmit(task) {
				d.logger.Info("task queued during shutdown",
					logging.String(logging.FieldJobID, task.ID),
					logging.String(logging.FieldSourceFile, msg.Filename),
					logging.Int(logging.FieldPage, msg.Page),
				)
			} else {
				d.logger.Warn("dropping message, queue full at shutdown",
					logging.String(logging.FieldSourceFile, msg.Filename),
					logging.Int(logging.FieldPage, msg.Page),
					logging.String(logging.FieldEventType, "message_dropped"),
				)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		d.logger.Debug("task dispatched",
			logging.String(logging.FieldJobID, task.ID),
			logging.String(logging.FieldSourceFile, msg.Filename),
			logging.Int(logging.FieldPage, msg.Page),
		)
	}
}

func validate(msg transport.Message) string {
	if strings.TrimSpace(msg.Filename) == "" {
		return "empty filename"
	}
	if len(msg.Payload) == 0 {
		return "empty payload"
	}
	if msg.Page < 0 {
		return "negative page index"
	}
	return ""
}
