package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/time/rate"

	"github.com/example/workspace-chat/events"
)

// SessionOptions tune the per-connection protocol handler. A MessageRate of
// zero disables the chat rate limit.
type SessionOptions struct {
	HeartbeatTimeout time.Duration
	MessageRate      float64
	MessageBurst     int
}

// Session interprets the inbound frames of one connection. Each frame is one
// synchronous state transition; replies and broadcasts are queued before
// Handle returns.
type Session struct {
	conn     *Connection
	registry *Registry
	limiter  *rate.Limiter // nil when unlimited

	heartbeat time.Duration
	timerMu   sync.Mutex
	timer     *time.Timer

	logger types.Logger
}

// NewSession binds a handler to conn. The connection starts in CONNECTING.
func NewSession(registry *Registry, conn *Connection, opts SessionOptions, logger types.Logger) *Session {
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = 90 * time.Second
	}
	var limiter *rate.Limiter
	if opts.MessageRate > 0 {
		if opts.MessageBurst <= 0 {
			opts.MessageBurst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.MessageRate), opts.MessageBurst)
	}
	return &Session{
		conn:      conn,
		registry:  registry,
		limiter:   limiter,
		heartbeat: opts.HeartbeatTimeout,
		logger:    logger.With("conn_id", conn.ID, "room_id", conn.RoomID, "user_id", conn.UserID),
	}
}

// Connection returns the connection driven by this session.
func (s *Session) Connection() *Connection {
	return s.conn
}

// Open checks that the room exists and the user is on its roster. On failure
// the client gets an error frame and the connection is closed.
func (s *Session) Open() error {
	room, err := s.registry.GetRoom(s.conn.RoomID)
	if err == nil {
		_, err = room.lookupUser(s.conn.UserID)
	}
	if err != nil {
		s.sendError(err)
		s.conn.Close(events.LeftJoinFailed)
		return err
	}

	s.timerMu.Lock()
	s.timer = time.AfterFunc(s.heartbeat, s.expire)
	s.timerMu.Unlock()
	return nil
}

// Run opens the session and processes frames until the transport fails,
// the connection is closed or ctx is cancelled. It returns once the
// connection has left its room and the transport is released.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Open(); err != nil {
		s.conn.Wait()
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		s.conn.Close(events.LeftShutdown)
	})
	defer stop()

	for {
		_, data, err := s.conn.transport.ReadMessage()
		if err != nil {
			s.logger.Debug("Read loop ended", "error", err)
			break
		}
		s.Handle(data)
		if s.conn.State() == StateDisconnected {
			break
		}
	}

	s.finish(events.LeftTransportClosed)
	s.conn.Wait()
	return nil
}

// Handle processes one inbound frame.
func (s *Session) Handle(data []byte) {
	s.conn.Touch()
	s.resetHeartbeat()

	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.send(ErrorFrame{Type: FrameError, Code: CodeInvalidFrame, Message: "invalid message format"})
		return
	}

	switch frame.Type {
	case FrameJoinRoom:
		s.handleJoin(frame)
	case FrameMessage:
		s.handleMessage(frame)
	case FrameTyping:
		s.handleTyping(frame)
	case FramePing:
		s.send(PongFrame{Type: FramePong, Timestamp: time.Now()})
	case FrameLeaveRoom:
		s.finish(events.LeftExplicit)
	default:
		s.logger.Warn("Ignoring unknown frame", "type", frame.Type)
	}
}

func (s *Session) handleJoin(frame InboundFrame) {
	if s.conn.State() != StateConnecting {
		s.sendError(ErrAlreadyJoined)
		return
	}

	room, err := s.registry.GetRoom(s.conn.RoomID)
	if err == nil && frame.Username != "" {
		var username string
		if username, err = room.limits.ValidateUsername(frame.Username); err == nil {
			s.conn.username = username
		}
	}
	if err == nil {
		_, err = room.Attach(s.conn)
	}
	if err != nil {
		s.logger.Info("Join rejected", "error", err)
		s.sendError(err)
		s.conn.Close(events.LeftJoinFailed)
		return
	}
	s.logger.Info("User joined room", "username", s.conn.Username())
}

func (s *Session) handleMessage(frame InboundFrame) {
	if s.conn.State() != StateJoined {
		s.sendError(ErrNotMember)
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.send(ErrorFrame{Type: FrameError, Code: CodeRateLimited, Message: "rate limit exceeded, please slow down"})
		return
	}

	room, err := s.registry.GetRoom(s.conn.RoomID)
	if err == nil {
		_, err = room.PostMessage(s.conn.UserID, frame.Content)
	}
	if err != nil {
		s.sendError(err)
	}
}

func (s *Session) handleTyping(frame InboundFrame) {
	if s.conn.State() != StateJoined {
		s.sendError(ErrNotMember)
		return
	}
	room, err := s.registry.GetRoom(s.conn.RoomID)
	if err == nil {
		err = room.Typing(s.conn, frame.IsTyping)
	}
	if err != nil {
		s.sendError(err)
	}
}

// finish detaches the connection from its room and closes it. Safe to call
// from every exit path.
func (s *Session) finish(reason string) {
	s.timerMu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timerMu.Unlock()

	s.conn.Close(reason)
	if room, err := s.registry.GetRoom(s.conn.RoomID); err == nil {
		room.Detach(s.conn.ID, s.conn.CloseReason())
	}
}

func (s *Session) expire() {
	s.logger.Info("Heartbeat timeout", "last_seen", s.conn.LastSeen())
	s.conn.Close(events.LeftHeartbeatTimeout)
}

func (s *Session) resetHeartbeat() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer != nil && s.conn.State() != StateDisconnected {
		s.timer.Reset(s.heartbeat)
	}
}

func (s *Session) sendError(err error) {
	var e *Error
	if !errors.As(err, &e) {
		s.logger.Error("Unexpected error", "error", err)
	}
	s.send(errorFrame(err))
}

// send queues a reply to this connection only. A full queue means the client
// stopped reading, so the connection is dropped.
func (s *Session) send(frame any) {
	if !s.conn.Enqueue(encodeFrame(frame)) && s.conn.State() != StateDisconnected {
		s.logger.Warn("Dropping slow connection")
		s.conn.Close(events.LeftSendOverflow)
	}
}
