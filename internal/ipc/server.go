// Package ipc exposes daemon control via JSON-RPC over a Unix domain socket,
// consumed by the labelpress CLI.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"labelpress/internal/daemon"
	"labelpress/internal/journal"
	"labelpress/internal/logging"
)

// Server accepts RPC connections on the socket path.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, ctx: ctx}
	if err := rpcServer.RegisterName("Labelpress", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logging.WithComponent(logger, "ipc"),
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until Close.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	ctx    context.Context
}

// Status returns daemon runtime information.
func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	*resp = StatusResponse{
		State:         status.State.String(),
		TransportAddr: status.TransportAddr,
		QueueDepth:    status.QueueDepth,
		InFlight:      status.InFlight,
		Succeeded:     status.Succeeded,
		Failed:        status.Failed,
		JournalTotal:  status.Journal.Total,
		Abandoned:     status.Journal.Abandoned,
		JournalPath:   status.JournalPath,
		LockPath:      status.LockFilePath,
		PrintEnabled:  status.PrintEnabled,
		PID:           os.Getpid(),
	}
	return nil
}

// Jobs lists journal entries, optionally filtered by status.
func (s *service) Jobs(req JobsRequest, resp *JobsResponse) error {
	statuses := make([]journal.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		statuses = append(statuses, journal.Status(status))
	}
	entries, err := s.daemon.Jobs(s.ctx, req.Limit, statuses...)
	if err != nil {
		return err
	}
	jobs := make([]Job, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, Job{
			ID:         entry.ID,
			JobID:      entry.JobID,
			SourceFile: entry.SourceFile,
			Page:       entry.Page,
			Status:     string(entry.Status),
			Stage:      entry.Stage,
			OutputPath: entry.OutputPath,
			Error:      entry.ErrorMessage,
			FinishedAt: entry.FinishedAt.UTC().Format(time.RFC3339),
			DurationMS: entry.Duration.Milliseconds(),
		})
	}
	resp.Jobs = jobs
	return nil
}
