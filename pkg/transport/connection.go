package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// writeWait bounds a single socket write and the teardown flush. Writes
// run against their own deadline so closing the connection never aborts
// a frame already being written.
const writeWait = 5 * time.Second

// MessageHandler is invoked for every complete inbound frame.
type MessageHandler func(ctx context.Context, connID uuid.UUID, msg []byte)

// OnCloseHandler is invoked exactly once when the connection terminates.
type OnCloseHandler func(connID uuid.UUID, err error)

type ConnectionConfig struct {
	ReadTimeout  time.Duration
	PingInterval time.Duration
	PingTimeout  time.Duration
}

// Connection wraps a single WebSocket connection. Outbound delivery is
// fire-and-forget through a buffered channel: a peer that stops draining
// its socket loses frames instead of stalling the rest of the server.
type Connection struct {
	id     uuid.UUID
	conn   *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	onMessage MessageHandler
	onClose   OnCloseHandler

	closing   chan struct{}
	done      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	logger *slog.Logger
}

func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, conn *websocket.Conn, config ConnectionConfig, onMessage MessageHandler, onClose OnCloseHandler, logger *slog.Logger) *Connection {
	id := uuid.New()
	connCtx, cancel := context.WithCancel(parentCtx)

	// Balanced by wg.Done in Close; every accepted connection is
	// eventually closed, whether or not its pumps ever start.
	wg.Add(1)
	return &Connection{
		id:        id,
		conn:      conn,
		config:    config,
		send:      make(chan []byte, 256),
		onMessage: onMessage,
		onClose:   onClose,
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		wg:        wg,
		ctx:       connCtx,
		cancel:    cancel,
		logger:    logger.With(slog.String("connID", id.String())),
	}
}

func (c *Connection) Run() {
	go c.readPump()
	go c.writePump()
	if c.config.PingInterval > 0 {
		go c.pingLoop()
	}
	c.logger.Info("connection established")
}

// readPump pumps frames from the socket into the message handler.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	// When the ping loop is active it alone polices liveness; an idle
	// peer that still answers pings must not be dropped for silence.
	deadline := c.config.ReadTimeout
	if c.config.PingInterval > 0 {
		deadline = 0
	}

	for {
		readCtx := c.ctx
		var cancelRead context.CancelFunc
		if deadline > 0 {
			readCtx, cancelRead = context.WithTimeout(c.ctx, deadline)
		}
		typ, r, err := c.conn.Reader(readCtx)
		if err != nil {
			readErr = err
			if cancelRead != nil {
				cancelRead()
			}
			return
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			if cancelRead != nil {
				cancelRead()
			}
			continue
		}
		message, err := io.ReadAll(r)
		if cancelRead != nil {
			cancelRead()
		}
		if err != nil {
			readErr = err
			return
		}
		if c.onMessage != nil {
			c.onMessage(c.ctx, c.id, message)
		}
	}
}

// writePump drains the send channel onto the socket.
func (c *Connection) writePump() {
	var writeErr error
	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			writeCtx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		}
	}
}

// pingLoop probes liveness. A peer that fails to acknowledge a ping within
// PingTimeout is forcibly closed, which triggers the normal disconnect path.
func (c *Connection) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, c.config.PingTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Warn("liveness probe failed, closing connection", slog.Any("error", err))
				c.Close(err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues a message for delivery. It never blocks: if the peer's buffer
// is full the frame is dropped.
func (c *Connection) Send(message []byte) {
	select {
	case <-c.closing:
		return
	case <-c.ctx.Done():
		return
	default:
	}
	select {
	case c.send <- message:
	default:
		c.logger.Warn("send buffer full, dropping frame")
	}
}

// Close tears the connection down and fires the onClose callback once.
// Frames already queued are flushed to the peer before the socket goes
// away, so a final notification sent just before Close still arrives.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		c.logger.Info("connection closing", slog.Any("reason", err))
		close(c.closing)
		c.flush()
		c.cancel()
		if c.conn != nil {
			c.conn.Close(websocket.StatusNormalClosure, "")
		}
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		c.wg.Done()
		close(c.done)
	})
}

// flush drains whatever is still queued onto the socket, bounded by a
// single writeWait deadline for the whole drain.
func (c *Connection) flush() {
	if c.conn == nil {
		return
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	for {
		select {
		case message := <-c.send:
			if err := c.conn.Write(flushCtx, websocket.MessageText, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Done returns a channel closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ID returns the transport-level identifier of the connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

func (c *Connection) SetOnMessageHandler(handler MessageHandler) {
	c.onMessage = handler
}

func (c *Connection) SetOnCloseHandler(handler OnCloseHandler) {
	c.onClose = handler
}
