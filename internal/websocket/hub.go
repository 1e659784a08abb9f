package websocket

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/shoplist/internal/session"
)

const storeTimeout = 3 * time.Second

// Hub maintains the set of active WebSocket clients and broadcasts events to
// them. Every broadcast gets the next offset. With a session store attached,
// broadcasts are logged so a client that drops can replay what it missed.
type Hub struct {
	mu       sync.Mutex
	clients  map[*Client]struct{}
	offset   int64
	sessions session.Store
	logger   *slog.Logger

	// Broadcasts not yet written to sessions, oldest first.
	pending  []session.Record
	flushing bool

	// Running clients plus the flusher. Drain waits for them.
	active   int
	draining bool
	drained  chan struct{}
}

// NewHub creates a new Hub. sessions may be nil to disable recovery.
func NewHub(sessions session.Store, logger *slog.Logger) *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		sessions: sessions,
		logger:   logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Attach registers the client and decides where its view starts.
//
// A client that names a session and the offset of the last broadcast it
// applied resumes when the session is still connected elsewhere or parked
// within its window, and every broadcast after that offset can be replayed.
// It gets those frames back, in order. Any other client gets a fresh session
// and starts at the current offset. Broadcasts after the returned start are
// queued on the client's send channel.
func (h *Hub) Attach(ctx context.Context, c *Client, resumeID string, after int64) (replay [][]byte, resumed bool) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	head := h.offset
	pending := slices.Clone(h.pending)
	live := h.heldLocked(resumeID, c)
	h.mu.Unlock()

	id, start := uuid.NewString(), head
	if h.sessions != nil && validSessionID(resumeID) && after >= 0 && after <= head {
		if frames, ok := h.resume(ctx, resumeID, after, head, pending, live); ok {
			id, start, replay, resumed = resumeID, after, frames, true
		}
	}

	h.mu.Lock()
	c.sessionID = id
	c.start = start
	h.mu.Unlock()
	return replay, resumed
}

func (h *Hub) resume(ctx context.Context, id string, after, head int64, pending []session.Record, live bool) ([][]byte, bool) {
	if !live {
		ok, err := h.sessions.Claim(ctx, id)
		if err != nil {
			h.logger.Error("claim session", "session", id, "error", err)
			return nil, false
		}
		if !ok {
			return nil, false
		}
	}
	if after == head {
		return nil, true
	}

	logged, err := h.sessions.Since(ctx, after)
	if err != nil {
		h.logger.Error("read broadcast log", "session", id, "error", err)
		return nil, false
	}
	frames, ok := stitch(after, head, logged, pending)
	if !ok {
		h.logger.Info("broadcast log no longer covers session", "session", id, "after", after, "head", head)
	}
	return frames, ok
}

// stitch collects the frames at offsets after+1 through head from the given
// records. It reports false if any offset in that range is missing.
func stitch(after, head int64, sources ...[]session.Record) ([][]byte, bool) {
	byOffset := make(map[int64][]byte)
	for _, records := range sources {
		for _, r := range records {
			if r.Offset > after && r.Offset <= head {
				byOffset[r.Offset] = r.Frame
			}
		}
	}
	if int64(len(byOffset)) != head-after {
		return nil, false
	}

	frames := make([][]byte, 0, len(byOffset))
	for o := after + 1; o <= head; o++ {
		frames = append(frames, byOffset[o])
	}
	return frames, true
}

// heldLocked reports whether a client other than c is attached under id.
func (h *Hub) heldLocked(id string, c *Client) bool {
	if id == "" {
		return false
	}
	for other := range h.clients {
		if other != c && other.sessionID == id {
			return true
		}
	}
	return false
}

func validSessionID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// Unregister parks the client's session, unless another connection holds it,
// then removes the client and closes its send channel. The session is parked
// while the client is still listed, so a reconnect in between resumes either
// as a live session or from the store.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	park := h.sessions != nil && c.sessionID != "" && !h.heldLocked(c.sessionID, c)
	h.mu.Unlock()

	if park {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := h.sessions.Park(ctx, c.sessionID); err != nil {
			h.logger.Error("park session", "session", c.sessionID, "error", err)
		}
		cancel()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Broadcast sends an event to all connected clients under the next offset and
// queues it for the broadcast log. A client whose buffer is full is
// disconnected; it reconnects and replays from the log.
func (h *Hub) Broadcast(event string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	offset := h.offset + 1
	data, err := encodeFrame(event, offset, args)
	if err != nil {
		h.logger.Error("marshal broadcast", "event", event, "error", err)
		return
	}
	h.offset = offset

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client lagging, disconnecting", "event", event, "session", c.sessionID)
			c.kick()
		}
	}

	if h.sessions != nil {
		h.recordLocked(session.Record{Offset: offset, Frame: data})
	}
}

func (h *Hub) recordLocked(rec session.Record) {
	h.pending = append(h.pending, rec)
	if extra := len(h.pending) - session.MaxFrames; extra > 0 {
		h.logger.Error("broadcast log backlog full, dropping oldest", "dropped", extra)
		h.pending = h.pending[extra:]
	}
	if !h.flushing {
		h.flushing = true
		h.active++
		go h.flush()
	}
}

// flush writes pending records to the store oldest first, outside the hub
// lock, until none are left. A record stays pending until it is written so
// Attach can still replay it.
func (h *Hub) flush() {
	for {
		h.mu.Lock()
		if len(h.pending) == 0 {
			h.flushing = false
			h.leaveLocked()
			h.mu.Unlock()
			return
		}
		rec := h.pending[0]
		h.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := h.sessions.Append(ctx, rec); err != nil {
			h.logger.Error("record broadcast", "offset", rec.Offset, "error", err)
		}
		cancel()

		h.mu.Lock()
		for len(h.pending) > 0 && h.pending[0].Offset <= rec.Offset {
			h.pending = h.pending[1:]
		}
		h.mu.Unlock()
	}
}

// join counts a client as running. It fails once the hub is draining.
func (h *Hub) join() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.active++
	return true
}

func (h *Hub) leave() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked()
}

func (h *Hub) leaveLocked() {
	h.active--
	if h.active == 0 && h.drained != nil {
		close(h.drained)
		h.drained = nil
	}
}

// Drain stops new clients from starting and waits until every running client
// has finished its intents and the broadcast log is written.
func (h *Hub) Drain(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	if h.active == 0 {
		h.mu.Unlock()
		return nil
	}
	if h.drained == nil {
		h.drained = make(chan struct{})
	}
	done := h.drained
	h.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
