package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"labelpress/internal/services"
)

// Sender is the connect side of the queue socket. It dials lazily, reuses the
// connection across sends, and reports ErrNoReceiver when the daemon is not
// reachable so callers can preserve the source data.
type Sender struct {
	addr        string
	dialTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewSender configures a sender targeting addr. No connection is made until
// the first Send.
func NewSender(addr string, dialTimeout time.Duration) *Sender {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	return &Sender{addr: addr, dialTimeout: dialTimeout}
}

// Send pushes one message. A nil return means the message is queued for the
// receiver. Any connection failure is reported as ErrNoReceiver and the
// message must be treated as not sent.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		dialer := net.Dialer{Timeout: s.dialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", s.addr)
		if err != nil {
			return services.Wrap(services.ErrNoReceiver, "transport", "dial", s.addr, err)
		}
		s.conn = conn
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	} else {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.dialTimeout))
	}

	if err := WriteMessage(s.conn, msg); err != nil {
		// A failed write leaves the stream in an unknown state; drop the
		// connection so the next Send redials.
		_ = s.conn.Close()
		s.conn = nil
		return services.Wrap(services.ErrNoReceiver, "transport", "send", msg.Filename, err)
	}
	_ = s.conn.SetWriteDeadline(time.Time{})
	return nil
}

// Close releases the connection if one is open.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
