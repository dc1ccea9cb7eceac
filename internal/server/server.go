package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"calib-bridge/internal/models"
	"calib-bridge/internal/queue"
)

const (
	unknownClient    = "unknown client"
	acceptRetryDelay = 50 * time.Millisecond
)

var ErrAlreadyStarted = errors.New("server already started")

// Server accepts line-oriented TCP clients and feeds their lines into a shared queue.
type Server struct {
	cfg      *models.Config
	queue    *queue.MessageQueue
	registry *ConnectionRegistry
	log      zerolog.Logger

	mu         sync.Mutex
	listener   net.Listener
	cancel     context.CancelFunc
	acceptDone chan struct{}
	handlers   sync.WaitGroup
	stopOnce   sync.Once
}

// NewServer creates a server that pushes received lines onto q.
func NewServer(cfg *models.Config, q *queue.MessageQueue, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		queue:    q,
		registry: NewConnectionRegistry(),
		log:      logger.With().Str("component", "server").Logger(),
	}
}

// Start binds the listening socket and begins accepting clients in the background.
// A bind failure is returned as is; callers treat it as fatal.
// Cancelling ctx stops the server in the same way as the first step of Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return ErrAlreadyStarted
	}

	address := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", address, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.listener = listener
	s.cancel = cancel
	s.acceptDone = make(chan struct{})

	// Closing the listener is what unblocks Accept.
	context.AfterFunc(ctx, func() { _ = listener.Close() })

	go s.acceptLoop(ctx, listener)

	s.log.Info().Str("addr", listener.Addr().String()).Msg("listening for TCP connections")
	return nil
}

// Addr is the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Connections returns the registry of live connections.
func (s *Server) Connections() *ConnectionRegistry { return s.registry }

// Shutdown cancels all handlers, stops the listener and waits up to the
// configured shutdown timeout (or ctx, whichever ends first) for handlers
// to exit. Handlers still running after that are abandoned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	listener, cancel, acceptDone := s.listener, s.cancel, s.acceptDone
	s.mu.Unlock()
	if listener == nil {
		return nil
	}

	var err error
	s.stopOnce.Do(func() {
		s.log.Info().Int("connections", s.registry.Count()).Msg("stopping server")

		cancel()
		if cerr := listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			s.log.Warn().Err(cerr).Msg("error closing listener")
		}
		// No handler is added after the accept loop returns, so Wait below is safe.
		<-acceptDone

		done := make(chan struct{})
		go func() {
			s.handlers.Wait()
			close(done)
		}()

		timer := time.NewTimer(s.cfg.ShutdownTimeout)
		defer timer.Stop()

		select {
		case <-done:
			s.log.Info().Msg("server stopped")
		case <-timer.C:
			abandoned := s.registry.Snapshot()
			s.log.Warn().
				Int("abandoned", len(abandoned)).
				Interface("connections", abandoned).
				Dur("waited", s.cfg.ShutdownTimeout).
				Msg("handlers still running after shutdown timeout")
		case <-ctx.Done():
			err = ctx.Err()
			s.log.Warn().Err(err).Msg("shutdown interrupted")
		}
	})
	return err
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	defer close(s.acceptDone)

	for {
		s.log.Debug().Msg("waiting for a client to connect")
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Debug().Msg("accept loop stopped")
				return
			}
			s.log.Warn().Err(err).Msg("error accepting client")
			select {
			case <-ctx.Done():
				return
			case <-time.After(acceptRetryDelay):
			}
			continue
		}

		remote := remoteLabel(conn)
		s.log.Info().Str("remote", remote).Msg("client connected")

		s.handlers.Add(1)
		go s.handleConnection(ctx, conn, remote)
	}
}

func remoteLabel(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil || addr.String() == "" {
		return unknownClient
	}
	return addr.String()
}
