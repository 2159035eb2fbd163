package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"labelpress/internal/logging"
	"labelpress/internal/services"
)

// ErrClosed is returned from Receive after the receiver shuts down.
var ErrClosed = errors.New("transport: receiver closed")

// Receiver is the bind side of the queue socket. It accepts sender
// connections and surfaces decoded messages through Receive in arrival order
// per connection.
type Receiver struct {
	listener net.Listener
	logger   *slog.Logger
	msgs     chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}

	closeOnce sync.Once
}

// Listen binds addr and starts accepting connections. A bind failure is a
// startup failure; callers should treat it as fatal.
func Listen(ctx context.Context, addr string, logger *slog.Logger) (*Receiver, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind transport endpoint %s: %w", addr, err)
	}

	recvCtx, cancel := context.WithCancel(ctx)
	r := &Receiver{
		listener: listener,
		logger:   logging.WithComponent(logger, "transport"),
		msgs:     make(chan Message),
		ctx:      recvCtx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}

	r.wg.Add(1)
	go r.acceptLoop()
	return r, nil
}

// Addr returns the bound address, useful when binding to port 0.
func (r *Receiver) Addr() string {
	return r.listener.Addr().String()
}

// Receive blocks until a message arrives, the context is canceled, or the
// receiver is closed.
func (r *Receiver) Receive(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-r.ctx.Done():
		return Message{}, ErrClosed
	case msg := <-r.msgs:
		return msg, nil
	}
}

// Close stops accepting connections, drops every accepted connection so
// reader goroutines blocked on idle senders unwind, and unblocks pending
// Receive calls. It returns once all reader goroutines have exited.
func (r *Receiver) Close() {
	r.closeOnce.Do(func() {
		r.cancel()
		_ = r.listener.Close()
		r.mu.Lock()
		for conn := range r.conns {
			_ = conn.Close()
		}
		r.mu.Unlock()
	})
	r.wg.Wait()
}

func (r *Receiver) acceptLoop() {
	defer r.wg.Done()
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			select {
			case <-r.ctx.Done():
				return
			default:
			}
			r.logger.Warn("accept failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "transport_accept_failed"),
			)
			continue
		}
		if !r.trackConn(conn) {
			_ = conn.Close()
			return
		}
		r.wg.Add(1)
		go r.readConn(conn)
	}
}

// trackConn registers an accepted connection so Close can drop it. It
// reports false when the receiver is already closing.
func (r *Receiver) trackConn(conn net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.ctx.Done():
		return false
	default:
	}
	r.conns[conn] = struct{}{}
	return true
}

func (r *Receiver) untrackConn(conn net.Conn) {
	r.mu.Lock()
	delete(r.conns, conn)
	r.mu.Unlock()
}

func (r *Receiver) readConn(conn net.Conn) {
	defer r.wg.Done()
	defer r.untrackConn(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	r.logger.Debug("sender connected", logging.String("remote", remote))

	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			switch {
			case err == io.EOF:
				r.logger.Debug("sender disconnected", logging.String("remote", remote))
			case errors.Is(err, services.ErrDecode):
				// A malformed frame poisons the rest of the stream; drop the
				// connection and let the sender redial.
				r.logger.Warn("malformed message, dropping connection",
					logging.String("remote", remote),
					logging.Error(err),
					logging.String(logging.FieldEventType, "transport_decode_failed"),
				)
			default:
				select {
				case <-r.ctx.Done():
				default:
					r.logger.Warn("connection read failed",
						logging.String("remote", remote),
						logging.Error(err),
					)
				}
			}
			return
		}

		select {
		case <-r.ctx.Done():
			return
		case r.msgs <- msg:
		}
	}
}
