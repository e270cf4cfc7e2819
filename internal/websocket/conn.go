package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/mockmaster-client/domain"
	"github.com/satriahrh/mockmaster-client/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024 * 1024 // 4MB, audio chunks are base64 inside JSON
)

// ErrSendBufferFull is returned when an outbound frame is dropped because the
// send buffer is full. There is no backpressure towards producers.
var ErrSendBufferFull = errors.New("send buffer full")

// Options configures Dial
type Options struct {
	HandshakeTimeout time.Duration
	SendBuffer       int
	Header           http.Header
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	return o
}

// Event is delivered on Conn.Events
type Event interface {
	isEvent()
}

// EventMessage carries one validated inbound message
type EventMessage struct {
	Message *domain.InboundMessage
}

// EventParseError reports a text frame that could not be parsed. The connection stays open.
type EventParseError struct {
	Err error
}

// EventClosed is the last event. Err is nil for a normal closure.
type EventClosed struct {
	Err error
}

func (EventMessage) isEvent()    {}
func (EventParseError) isEvent() {}
func (EventClosed) isEvent()     {}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Conn is the single socket of a live interview session
type Conn struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	// Buffered channel of outbound messages.
	send   chan WriteData
	events chan Event

	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	quit      chan struct{}
	writeDone chan struct{}
	readDone  chan struct{}
}

// Dial opens the interview socket and starts the read and write pumps
func Dial(ctx context.Context, url string, logger *zap.Logger, opts Options) (*Conn, error) {
	opts = opts.withDefaults()

	dialer := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}

	ws, resp, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	c := &Conn{
		id:        uuid.NewString(),
		conn:      ws,
		send:      make(chan WriteData, opts.SendBuffer),
		events:    make(chan Event, 64),
		quit:      make(chan struct{}),
		writeDone: make(chan struct{}),
		readDone:  make(chan struct{}),
	}
	c.logger = logger.With(zap.String("connID", c.id))
	c.logger.Info("WebSocket connected", zap.String("url", url))

	go c.writePump()
	go c.readPump()

	return c, nil
}

// ID identifies this connection in logs
func (c *Conn) ID() string { return c.id }

// Events delivers inbound events in arrival order. It is closed after EventClosed.
func (c *Conn) Events() <-chan Event { return c.events }

// SendBinary enqueues a binary frame
func (c *Conn) SendBinary(payload []byte) error {
	return c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: payload}, "binary")
}

// SendJSON marshals v and enqueues it as a text frame
func (c *Conn) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload}, "text")
}

func (c *Conn) enqueue(d WriteData, kind string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return domain.ErrConnectionClosed
	}

	select {
	case c.send <- d:
		metrics.OutboundFramesTotal.WithLabelValues(kind).Inc()
		return nil
	default:
		metrics.SendDropsTotal.Inc()
		return ErrSendBufferFull
	}
}

// Close sends a close frame and stops both pumps. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.markClosed()
		close(c.quit)
		<-c.writeDone
		c.conn.Close()
		<-c.readDone
		c.logger.Info("WebSocket closed")
	})
	return nil
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) isQuitting() bool {
	select {
	case <-c.quit:
		return true
	default:
		return false
	}
}

// readPump pumps messages from the websocket connection to Events.
func (c *Conn) readPump() {
	var closeErr error
	defer func() {
		c.markClosed()
		c.deliverTerminal(EventClosed{Err: closeErr})
		close(c.readDone)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case c.isQuitting():
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				c.logger.Info("WebSocket closed by peer", zap.Error(err))
			default:
				c.logger.Error("WebSocket error", zap.Error(err))
				closeErr = err
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			if !c.processMessage(message) {
				return
			}
		case websocket.BinaryMessage:
			c.logger.Warn("Ignoring binary frame from server", zap.Int("size", len(message)))
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// processMessage returns false when the connection is shutting down
func (c *Conn) processMessage(message []byte) bool {
	msg, err := ParseInbound(message)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownMessageType) {
			c.logger.Debug("Ignoring unknown message type", zap.String("type", string(msg.Type)))
			metrics.InboundMessagesTotal.WithLabelValues("unknown").Inc()
			return true
		}
		c.logger.Warn("Failed to parse message", zap.Error(err))
		metrics.ParseErrorsTotal.Inc()
		return c.deliver(EventParseError{Err: err})
	}

	metrics.InboundMessagesTotal.WithLabelValues(string(msg.Type)).Inc()
	return c.deliver(EventMessage{Message: msg})
}

func (c *Conn) deliver(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.quit:
		return false
	}
}

// deliverTerminal emits EventClosed and closes Events. After a local Close the
// event is only delivered if there is buffer room.
func (c *Conn) deliverTerminal(ev EventClosed) {
	select {
	case c.events <- ev:
	case <-c.quit:
		select {
		case c.events <- ev:
		default:
		}
	}
	close(c.events)
}

func (c *Conn) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Debug("Failed to flush message", zap.Error(err))
				return
			}
		default:
			return
		}
	}
}

// writePump pumps messages from the send buffer to the websocket connection.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.writeDone)
	}()

	for {
		select {
		case <-c.quit:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			// Frames queued before Close, such as "end", still go out.
			c.flush()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
				c.logger.Debug("Failed to write close frame", zap.Error(err))
			}
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				c.markClosed()
				// unblocks the read pump so EventClosed is delivered
				c.conn.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.markClosed()
				c.conn.Close()
				return
			}
		}
	}
}
