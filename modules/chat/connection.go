package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/workspace-chat/events"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Transport is the duplex frame stream under a Connection.
// *websocket.Conn satisfies it.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ConnectionOptions tune the outbound side of a Connection.
type ConnectionOptions struct {
	SendBufferSize int
	WriteTimeout   time.Duration
}

// Connection is one live transport session of a user in a room. It holds the
// room id only; the Room owns the membership.
//
// Outbound frames go through a bounded queue drained by a single writer
// goroutine, so Enqueue never blocks.
type Connection struct {
	ID     string
	RoomID string
	UserID string

	username string

	state    atomic.Int32
	lastSeen atomic.Int64

	transport    Transport
	writeTimeout time.Duration
	send         chan []byte

	done        chan struct{}
	closeOnce   sync.Once
	closeReason string
	writerDone  chan struct{}

	logger types.Logger
}

// NewConnection wraps t and starts its writer goroutine.
func NewConnection(roomID, userID string, t Transport, opts ConnectionOptions, logger types.Logger) *Connection {
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	c := &Connection{
		ID:           uuid.New().String(),
		RoomID:       roomID,
		UserID:       userID,
		transport:    t,
		writeTimeout: opts.WriteTimeout,
		send:         make(chan []byte, opts.SendBufferSize),
		done:         make(chan struct{}),
		writerDone:   make(chan struct{}),
	}
	c.logger = logger.With("conn_id", c.ID, "room_id", roomID, "user_id", userID)
	c.Touch()

	go c.writeLoop()
	return c
}

// Username returns the display name bound to this connection.
func (c *Connection) Username() string {
	return c.username
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// Touch records inbound activity.
func (c *Connection) Touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns the time of the last processed inbound frame.
func (c *Connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// Enqueue queues frame for the writer. It returns false when the connection
// is closed or its queue is full.
func (c *Connection) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close marks the connection disconnected and stops the writer after it
// flushes what is already queued. Only the first reason is kept.
func (c *Connection) Close(reason string) {
	c.closeOnce.Do(func() {
		c.closeReason = reason
		c.state.Store(int32(StateDisconnected))
		close(c.done)
		c.logger.Debug("Connection closing", "reason", reason)
	})
}

// Done is closed once Close has been called.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// CloseReason returns the reason given to the first Close call.
func (c *Connection) CloseReason() string {
	<-c.done
	return c.closeReason
}

// Wait blocks until the writer has released the transport.
func (c *Connection) Wait() {
	<-c.writerDone
}

func (c *Connection) writeLoop() {
	defer close(c.writerDone)
	defer c.transport.Close()

	for {
		select {
		case <-c.done:
			c.flush()
			return
		case frame := <-c.send:
			if err := c.write(frame, time.Now().Add(c.writeTimeout)); err != nil {
				c.logger.Warn("Write failed", "error", err)
				c.Close(events.LeftWriteFailed)
				return
			}
		}
	}
}

// flush writes queued frames within a single write timeout.
func (c *Connection) flush() {
	deadline := time.Now().Add(c.writeTimeout)
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame, deadline); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(frame []byte, deadline time.Time) error {
	if err := c.transport.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.transport.WriteMessage(websocket.TextMessage, frame)
}
