package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/shoplist/internal/session"
)

// heldHandler parks every intent until release is closed.
type heldHandler struct {
	started   chan string
	release   chan struct{}
	connected chan bool
}

func newHeldHandler() *heldHandler {
	return &heldHandler{
		started:   make(chan string, 8),
		release:   make(chan struct{}),
		connected: make(chan bool, 8),
	}
}

func (h *heldHandler) Connected(ctx context.Context, c *Client, resumed bool) {
	h.connected <- resumed
}

func (h *heldHandler) Dispatch(ctx context.Context, c *Client, f Frame) {
	h.started <- f.Event
	<-h.release
}

// awaitConnected returns the resumed flag of the next connection to start.
func (h *heldHandler) awaitConnected(t *testing.T) bool {
	t.Helper()
	select {
	case resumed := <-h.connected:
		return resumed
	case <-time.After(2 * time.Second):
		t.Fatal("connection never reached the handler")
		return false
	}
}

func startServer(t *testing.T, hub *Hub, h Handler) string {
	t.Helper()
	ts := httptest.NewServer(HandleWebSocket(hub, h, testLogger()))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, ctx context.Context, url string) *ws.Conn {
	t.Helper()
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func readFrame(t *testing.T, ctx context.Context, conn *ws.Conn) Frame {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return decode(t, data)
}

func readHello(t *testing.T, ctx context.Context, conn *ws.Conn) (string, int64) {
	t.Helper()
	hello := readFrame(t, ctx, conn)
	if hello.Event != EventSession || len(hello.Args) != 2 {
		t.Fatalf("expected session frame with 2 args, got %s %s", hello.Event, hello.Args)
	}
	var id string
	var offset int64
	if err := json.Unmarshal(hello.Args[0], &id); err != nil {
		t.Fatalf("session id: %v", err)
	}
	if err := json.Unmarshal(hello.Args[1], &offset); err != nil {
		t.Fatalf("session offset: %v", err)
	}
	return id, offset
}

// sendHeldIntent sends one intent and waits until the handler is holding it.
func sendHeldIntent(t *testing.T, ctx context.Context, conn *ws.Conn, h *heldHandler) {
	t.Helper()
	if err := conn.Write(ctx, ws.MessageText, []byte(`{"event":"deleting item","args":[7]}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-h.started:
	case <-ctx.Done():
		t.Fatal("intent never dispatched")
	}
}

func TestResumeAfterDropDuringIntent(t *testing.T) {
	hub, _ := newRecoveryHub(t, session.Options{})
	h := newHeldHandler()
	url := startServer(t, hub, h)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, url)
	id, start := readHello(t, ctx, conn)
	if h.awaitConnected(t) {
		t.Fatal("first connection reported as resumed")
	}
	sendHeldIntent(t, ctx, conn, h)

	// Connection dies while its intent is still running
	conn.CloseNow()
	hub.Broadcast("delete item", 7, map[string]string{"totalPrice": "0.00"})
	close(h.release)

	again := dial(t, ctx, fmt.Sprintf("%s?session=%s&offset=%d", url, id, start))
	defer again.CloseNow()

	gotID, gotStart := readHello(t, ctx, again)
	if gotID != id || gotStart != start {
		t.Fatalf("expected to resume %s@%d, got %s@%d", id, start, gotID, gotStart)
	}
	missed := readFrame(t, ctx, again)
	if missed.Event != "delete item" || missed.Offset != start+1 {
		t.Fatalf("expected replay of delete item@%d, got %s@%d", start+1, missed.Event, missed.Offset)
	}
	if string(missed.Args[0]) != "7" {
		t.Errorf("expected item 7, got %s", missed.Args[0])
	}
	if !h.awaitConnected(t) {
		t.Error("handler was told the client is fresh")
	}
}

func TestResumeWithoutOffsetStartsFresh(t *testing.T) {
	hub, _ := newRecoveryHub(t, session.Options{})
	h := newHeldHandler()
	close(h.release)
	url := startServer(t, hub, h)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, url)
	id, _ := readHello(t, ctx, conn)
	h.awaitConnected(t)
	conn.CloseNow()

	again := dial(t, ctx, url+"?session="+id)
	defer again.CloseNow()

	if gotID, _ := readHello(t, ctx, again); gotID == id {
		t.Error("resumed without knowing which broadcasts the client applied")
	}
	if h.awaitConnected(t) {
		t.Error("handler was told the client resumed")
	}
}

func TestDrainWaitsForRunningIntents(t *testing.T) {
	hub := NewHub(nil, testLogger())
	h := newHeldHandler()
	url := startServer(t, hub, h)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, url)
	readHello(t, ctx, conn)
	sendHeldIntent(t, ctx, conn, h)
	conn.CloseNow()

	short, cancelShort := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancelShort()
	if err := hub.Drain(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected drain to wait for the running intent, got %v", err)
	}

	close(h.release)
	if err := hub.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	// A draining hub turns new connections away
	late := dial(t, ctx, url)
	defer late.CloseNow()
	if _, _, err := late.Read(ctx); err == nil {
		t.Error("connection served after drain")
	}
}
