package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/shoplist/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		send:   make(chan []byte, sendBufferSize),
		logger: testLogger(),
	}
}

func newRecoveryHub(t *testing.T, opts session.Options) (*Hub, *session.MemoryStore) {
	t.Helper()
	if opts.Window == 0 {
		opts.Window = time.Minute
	}
	store := session.NewMemoryStore(opts)
	t.Cleanup(func() { store.Close() })
	return NewHub(store, testLogger()), store
}

// waitFlushed blocks until every broadcast has been written to the store.
func waitFlushed(t *testing.T, h *Hub) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		h.mu.Lock()
		busy := h.flushing
		h.mu.Unlock()
		if !busy {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("broadcast log not flushed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func decode(t *testing.T, data []byte) Frame {
	t.Helper()
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return f
}

// parked attaches a client, then drops it, leaving its session parked.
func parked(t *testing.T, hub *Hub) string {
	t.Helper()
	c := mockClient(hub)
	hub.Attach(context.Background(), c, "", -1)
	hub.Unregister(c)
	return c.SessionID()
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(nil, testLogger())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub, _ := newRecoveryHub(t, session.Options{})
	c := mockClient(hub)
	hub.Attach(context.Background(), c, "", -1)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(nil, testLogger())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast("delete item", 42, map[string]string{"totalPrice": "0.00"})

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			got := decode(t, data)
			if got.Event != "delete item" {
				t.Errorf("expected event delete item, got %s", got.Event)
			}
			if got.Offset != 1 {
				t.Errorf("expected offset 1, got %d", got.Offset)
			}
			if len(got.Args) != 2 {
				t.Fatalf("expected 2 args, got %d", len(got.Args))
			}
			if string(got.Args[0]) != "42" {
				t.Errorf("expected first arg 42, got %s", got.Args[0])
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	hub.Broadcast("clear bought list")
	if got := decode(t, <-c1.send).Offset; got != 2 {
		t.Errorf("expected offset 2, got %d", got)
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(nil, testLogger())
	// Should not panic
	hub.Broadcast("clear bought list")
}

func TestBroadcastFullBufferDisconnects(t *testing.T) {
	hub := NewHub(nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := mockClient(hub)
	c.cancel = cancel
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast("buy item", i)
	}
	if ctx.Err() != nil {
		t.Fatal("client disconnected before its buffer was full")
	}

	// This one does not fit; the client must be cut off rather than skip it
	hub.Broadcast("buy item", 999)

	if ctx.Err() == nil {
		t.Error("lagging client was not disconnected")
	}
	if got := len(c.send); got != sendBufferSize {
		t.Errorf("expected %d queued messages, got %d", sendBufferSize, got)
	}

	hub.Unregister(c)
}

func TestEncodeFrameWithoutArgs(t *testing.T) {
	data, err := EncodeFrame("clear bought list")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := string(data); got != `{"event":"clear bought list","args":[]}` {
		t.Errorf("unexpected frame %s", got)
	}
}

func TestEmit(t *testing.T) {
	hub := NewHub(nil, testLogger())
	c := mockClient(hub)
	other := mockClient(hub)
	hub.Register(c)
	hub.Register(other)

	c.Emit("Unpermitted action", "NOT PERMITTED!")

	got := decode(t, <-c.send)
	if got.Event != "Unpermitted action" {
		t.Errorf("expected Unpermitted action, got %s", got.Event)
	}
	if got.Offset != 0 {
		t.Errorf("unicast frames carry no offset, got %d", got.Offset)
	}
	select {
	case <-other.send:
		t.Error("emit reached another client")
	default:
	}
}

func TestAttachAssignsSession(t *testing.T) {
	hub, _ := newRecoveryHub(t, session.Options{})
	hub.Broadcast("delete item", 1)
	c := mockClient(hub)

	frames, resumed := hub.Attach(context.Background(), c, "", -1)
	if resumed || frames != nil {
		t.Fatalf("fresh client should not resume")
	}
	if _, err := uuid.Parse(c.SessionID()); err != nil {
		t.Errorf("expected uuid session id, got %q", c.SessionID())
	}
	if c.start != 1 {
		t.Errorf("expected view to start at offset 1, got %d", c.start)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("expected client to be registered")
	}
}

func TestResumeReplaysMissedBroadcasts(t *testing.T) {
	hub, _ := newRecoveryHub(t, session.Options{})
	ctx := context.Background()

	first := mockClient(hub)
	hub.Attach(ctx, first, "", -1)
	id := first.SessionID()

	// Queued for first but never written before its connection died
	hub.Broadcast("buy item", "<li></li>", 3)
	hub.Unregister(first)
	hub.Broadcast("delete item", 4)

	second := mockClient(hub)
	frames, resumed := hub.Attach(ctx, second, id, 0)
	if !resumed {
		t.Fatal("expected session to resume")
	}
	if second.SessionID() != id {
		t.Errorf("expected session %s, got %s", id, second.SessionID())
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 missed frames, got %d", len(frames))
	}
	for i, want := range []string{"buy item", "delete item"} {
		got := decode(t, frames[i])
		if got.Event != want || got.Offset != int64(i+1) {
			t.Errorf("frame %d: got %s@%d, want %s@%d", i, got.Event, got.Offset, want, i+1)
		}
	}

	hub.Unregister(second)
	third := mockClient(hub)
	frames, resumed = hub.Attach(ctx, third, id, 2)
	if !resumed || len(frames) != 0 {
		t.Errorf("up-to-date client should resume with nothing to replay, got resumed=%v frames=%d", resumed, len(frames))
	}
}

func TestResumeWhileOldConnectionLingers(t *testing.T) {
	hub, store := newRecoveryHub(t, session.Options{})
	ctx := context.Background()

	old := mockClient(hub)
	hub.Attach(ctx, old, "", -1)
	id := old.SessionID()
	hub.Broadcast("delete item", 9)

	// The old connection has not been unregistered yet
	fresh := mockClient(hub)
	frames, resumed := hub.Attach(ctx, fresh, id, 0)
	if !resumed || len(frames) != 1 {
		t.Fatalf("expected live resume with 1 frame, got resumed=%v frames=%d", resumed, len(frames))
	}

	hub.Unregister(old)
	if store.Len() != 0 {
		t.Error("session parked while another connection holds it")
	}
	hub.Unregister(fresh)
	if store.Len() != 1 {
		t.Error("session not parked after its last connection left")
	}
}

func TestResumeAfterLogEvicted(t *testing.T) {
	hub, _ := newRecoveryHub(t, session.Options{MaxFrames: 2})
	id := parked(t, hub)

	for i := 0; i < 3; i++ {
		hub.Broadcast("delete item", i)
	}
	waitFlushed(t, hub)

	c := mockClient(hub)
	frames, resumed := hub.Attach(context.Background(), c, id, 0)
	if resumed || frames != nil {
		t.Fatal("resumed although the log lost a missed broadcast")
	}
	if c.SessionID() == id {
		t.Error("client kept a session it could not resume")
	}
	if c.start != 3 {
		t.Errorf("expected fresh view at offset 3, got %d", c.start)
	}
}

func TestResumeRejectsBadOffsets(t *testing.T) {
	hub, _ := newRecoveryHub(t, session.Options{})
	hub.Broadcast("delete item", 1)

	for _, after := range []int64{-1, 5} {
		id := parked(t, hub)
		c := mockClient(hub)
		if _, resumed := hub.Attach(context.Background(), c, id, after); resumed {
			t.Errorf("resumed with offset %d", after)
		}
	}
}

func TestResumeUnknownSession(t *testing.T) {
	hub, _ := newRecoveryHub(t, session.Options{})
	c := mockClient(hub)

	_, resumed := hub.Attach(context.Background(), c, "not-a-session", 0)
	if resumed {
		t.Fatal("unknown session resumed")
	}
	if c.SessionID() == "not-a-session" {
		t.Error("client kept an invalid session id")
	}

	_, resumed = hub.Attach(context.Background(), mockClient(hub), uuid.NewString(), 0)
	if resumed {
		t.Error("session that was never parked resumed")
	}
}

// slowStore blocks every Append until released.
type slowStore struct {
	*session.MemoryStore
	release chan struct{}
}

func (s *slowStore) Append(ctx context.Context, rec session.Record) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.MemoryStore.Append(ctx, rec)
}

func TestBroadcastDoesNotWaitForStore(t *testing.T) {
	mem := session.NewMemoryStore(session.Options{Window: time.Minute})
	t.Cleanup(func() { mem.Close() })
	store := &slowStore{MemoryStore: mem, release: make(chan struct{})}
	hub := NewHub(store, testLogger())
	id := parked(t, hub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			hub.Broadcast("delete item", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on the session store")
	}

	// Not written yet, but still replayable
	frames, resumed := hub.Attach(context.Background(), mockClient(hub), id, 0)
	if !resumed || len(frames) != 3 {
		t.Fatalf("expected 3 pending frames to replay, got resumed=%v frames=%d", resumed, len(frames))
	}

	close(store.release)
	waitFlushed(t, hub)
	logged, err := mem.Since(context.Background(), 0)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(logged) != 3 {
		t.Errorf("expected 3 logged records, got %d", len(logged))
	}
}

func TestStitch(t *testing.T) {
	rec := func(o int64) session.Record { return session.Record{Offset: o, Frame: []byte{byte('0' + o)}} }

	frames, ok := stitch(1, 4, []session.Record{rec(2), rec(3)}, []session.Record{rec(3), rec(4)})
	if !ok || len(frames) != 3 || string(frames[2]) != "4" {
		t.Errorf("stitch over two sources: ok=%v frames=%q", ok, frames)
	}
	if _, ok := stitch(1, 4, []session.Record{rec(2), rec(4)}); ok {
		t.Error("stitch accepted a gap")
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub, _ := newRecoveryHub(t, session.Options{})
	var wg sync.WaitGroup

	// Spawn goroutines that register, broadcast, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Attach(context.Background(), c, "", -1)
			hub.Broadcast("add item", []string{}, nil)
			// Drain any messages
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
