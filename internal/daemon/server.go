package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jfmyers9/muse/internal/history"
	"github.com/jfmyers9/muse/internal/protocol"
	"github.com/rs/zerolog"
)

// ServerConfig bounds what a single connection may send
type ServerConfig struct {
	MaxCommandBytes int           // Longer requests are rejected
	ReadTimeout     time.Duration // Per-connection deadline, 0 disables it
}

// Server runs the connection loop: one connection, one command, one response.
// Connections are handled strictly in accept order.
type Server struct {
	config  ServerConfig
	player  Player
	journal *history.Journal
	logger  zerolog.Logger
	closing atomic.Bool
}

// NewServer creates a server. journal may be nil, which disables history.
func NewServer(cfg ServerConfig, player Player, journal *history.Journal, logger zerolog.Logger) *Server {
	if cfg.MaxCommandBytes <= 0 {
		cfg.MaxCommandBytes = 4096
	}
	return &Server{
		config:  cfg,
		player:  player,
		journal: journal,
		logger:  logger.With().Str("component", "server").Logger(),
	}
}

// Serve accepts connections on ln until a stop command is handled or ctx is
// cancelled. An accept error ends the loop unless shutdown is already underway.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.closing.Store(true)
			_ = ln.Close()
		case <-done:
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Accepting commands")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		if stop := s.handleConn(ctx, conn); stop {
			s.closing.Store(true)
			_ = ln.Close()
			s.logger.Info().Msg("Stop requested")
			return nil
		}
	}
}

// handleConn serves one connection and reports whether the daemon should stop
func (s *Server) handleConn(ctx context.Context, conn net.Conn) bool {
	defer conn.Close()

	id := uuid.NewString()
	logger := s.logger.With().Str("conn", id).Logger()

	if s.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	line, err := s.readCommand(conn)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read command")
		status := protocol.StatusInternal
		if errors.Is(err, errCommandTooLong) {
			status = protocol.StatusBadRequest
		}
		s.respond(logger, conn, fail(status, err.Error()))
		return false
	}

	var cmd protocol.Command
	var out outcome
	if parsed, err := protocol.Parse(line); err != nil {
		out = fail(protocol.StatusBadRequest, err.Error())
	} else {
		cmd = parsed
		out = s.dispatch(ctx, cmd)
	}

	s.logOutcome(logger, cmd, out)
	s.record(ctx, cmd, out)
	s.respond(logger, conn, out)

	return out.stop
}

var errCommandTooLong = errors.New("command too long")

// readCommand reads until the client closes its write side
func (s *Server) readCommand(conn net.Conn) (string, error) {
	limit := int64(s.config.MaxCommandBytes)
	data, err := io.ReadAll(io.LimitReader(conn, limit+1))
	if err != nil {
		return "", fmt.Errorf("read command: %w", err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w (limit %d bytes)", errCommandTooLong, limit)
	}
	return string(data), nil
}

func (s *Server) logOutcome(logger zerolog.Logger, cmd protocol.Command, out outcome) {
	event := logger.Info()
	switch {
	case cmd.Action == protocol.ActionPing:
		event = logger.Debug()
	case out.status != protocol.StatusOK:
		event = logger.Warn()
	}

	event = event.Str("action", cmd.Action).Int("status", int(out.status))
	if cmd.Action == protocol.ActionEnqueue && out.status == protocol.StatusOK {
		event = event.Int("queued", out.queued)
	}
	event.Msg(out.text)
}

// record journals the outcome. Pings are not recorded.
func (s *Server) record(ctx context.Context, cmd protocol.Command, out outcome) {
	if s.journal == nil || cmd.Action == protocol.ActionPing {
		return
	}

	entry := history.Entry{
		Action:  cmd.Action,
		Raw:     cmd.Raw,
		Status:  int(out.status),
		Message: out.text,
	}
	if _, err := s.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record history")
	}
}

func (s *Server) respond(logger zerolog.Logger, conn net.Conn, out outcome) {
	if s.config.ReadTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.config.ReadTimeout))
	}
	if err := protocol.WriteResponse(conn, out.response()); err != nil {
		logger.Debug().Err(err).Msg("Failed to write response")
	}
}
