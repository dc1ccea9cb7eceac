package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"calib-bridge/internal/network"
)

// handleConnection reads lines from one client until EOF, an I/O error or
// shutdown. Every non-empty line is queued and acknowledged before the next
// read. The connection is closed exactly once on every exit path.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn, remote string) {
	info := s.registry.Register(remote)
	log := s.log.With().Str("conn_id", info.ID).Str("remote", remote).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("unexpected error handling client")
		}
		s.registry.Remove(info.ID)
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Debug().Err(err).Msg("error closing connection")
		}
		log.Info().Int64("lines", info.Lines()).Msg("finished handling client")
		s.handlers.Done()
	}()

	// A blocked read returns as soon as the server is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
	}

	log.Debug().Msg("now handling client")
	reader := bufio.NewReader(conn)
	for {
		if s.cfg.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
				log.Warn().Err(err).Msg("setting read deadline")
				return
			}
		}
		// Checked after setting the deadline so a concurrent cancel always wins.
		if ctx.Err() != nil {
			return
		}

		line, err := network.ReadLine(reader)
		if err != nil {
			s.logReadError(ctx, log, err)
			return
		}
		if line == "" {
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		s.queue.Push(line)
		info.lines.Add(1)
		log.Debug().Str("line", line).Msg("received line")

		if s.cfg.ReadTimeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
				log.Warn().Err(err).Msg("setting write deadline")
				return
			}
		}
		if _, err := io.WriteString(conn, network.FormatAck(line)); err != nil {
			log.Warn().Err(err).Msg("error sending acknowledgment")
			return
		}
	}
}

func (s *Server) logReadError(ctx context.Context, log zerolog.Logger, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		log.Info().Msg("client disconnected")
	case ctx.Err() != nil:
		log.Debug().Msg("read interrupted by shutdown")
	case errors.As(err, &netErr) && netErr.Timeout():
		log.Warn().Dur("timeout", s.cfg.ReadTimeout).Msg("read timed out")
	default:
		log.Warn().Err(err).Msg("I/O error with client")
	}
}
