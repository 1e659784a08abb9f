package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 64
	pingInterval   = 30 * time.Second
	readLimit      = 64 << 10
)

// Handler reacts to a client's lifecycle and intents.
type Handler interface {
	// Connected runs once the client is registered. resumed reports whether
	// the client picked up a parked session.
	Connected(ctx context.Context, c *Client, resumed bool)
	// Dispatch handles one frame sent by the client.
	Dispatch(ctx context.Context, c *Client, f Frame)
}

// Client represents a single WebSocket connection.
type Client struct {
	hub       *Hub
	conn      *ws.Conn
	send      chan []byte
	done      <-chan struct{}
	cancel    context.CancelFunc
	sessionID string
	start     int64
	inflight  sync.WaitGroup
	logger    *slog.Logger
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, logger *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}
}

// SessionID returns the id the client can present to resume after a drop.
func (c *Client) SessionID() string {
	return c.sessionID
}

// kick ends the connection. Safe to call more than once, and before Run.
func (c *Client) kick() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Emit sends an event to this client only. It waits for buffer space and gives
// up once the connection is gone.
func (c *Client) Emit(event string, args ...any) {
	data, err := EncodeFrame(event, args...)
	if err != nil {
		c.logger.Error("marshal event", "event", event, "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

// Run attaches the client, replays what a resumed session missed, starts the
// write pump and runs the read pump. It blocks until the connection is closed,
// waits for the client's intents to finish, then unregisters. after is the
// offset of the last broadcast the client applied, or -1 for none.
func (c *Client) Run(ctx context.Context, h Handler, resumeID string, after int64) {
	if !c.hub.join() {
		return
	}
	defer c.hub.leave()
	defer c.hub.Unregister(c)
	defer c.inflight.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.done = ctx.Done()
	c.cancel = cancel

	missed, resumed := c.hub.Attach(ctx, c, resumeID, after)
	c.logger = c.logger.With("session", c.sessionID)

	hello, err := EncodeFrame(EventSession, c.sessionID, c.start)
	if err != nil {
		return
	}
	for _, frame := range append([][]byte{hello}, missed...) {
		if err := c.conn.Write(ctx, ws.MessageText, frame); err != nil {
			return
		}
	}
	c.logger.Info("client connected", "resumed", resumed, "replayed", len(missed))

	go c.writePump(ctx)

	h.Connected(context.WithoutCancel(ctx), c, resumed)
	c.readPump(ctx, h)
	c.logger.Info("client disconnected")
}

// readPump decodes incoming frames and dispatches each on its own goroutine.
// It returns on error (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context, h Handler) {
	c.conn.SetReadLimit(readLimit)
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			c.logger.Warn("malformed frame", "error", err)
			continue
		}

		c.inflight.Add(1)
		go c.dispatch(context.WithoutCancel(ctx), h, f)
	}
}

// dispatch runs one intent to completion. A disconnect does not cancel it.
func (c *Client) dispatch(ctx context.Context, h Handler, f Frame) {
	defer c.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("intent panic", "event", f.Event, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	h.Dispatch(ctx, c, f)
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel, connection is done
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
