package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/shoplist/internal/config"
	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/session"
	ws "github.com/dukerupert/shoplist/internal/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessions := session.NewMemoryStore(session.Options{Window: time.Minute})
	t.Cleanup(func() { sessions.Close() })

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("// app"), 0o644))

	srv, err := New(db, sessions, config.ServerConfig{
		StaticDir:      static,
		AllowedOrigins: []string{"*"},
		ConnectLimit:   10,
		ConnectWindow:  time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["clients"])
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Shopping list</title>")
}

func TestStatic(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/static/app.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) ws.Frame {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var f ws.Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestWebSocketAddFlow(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	hello := readFrame(t, ctx, conn)
	assert.Equal(t, ws.EventSession, hello.Event)
	require.Len(t, hello.Args, 2)
	assert.JSONEq(t, `0`, string(hello.Args[1]))
	assert.Equal(t, "reconnect", readFrame(t, ctx, conn).Event)

	sync := readFrame(t, ctx, conn)
	assert.Equal(t, "add item", sync.Event)
	require.Len(t, sync.Args, 2)
	assert.JSONEq(t, `[]`, string(sync.Args[0]))

	intent := `{"event":"adding item","args":[{"market":"Lidl","category":"","name":"Milk","quantity":"1","unit":"l","price":"150"}]}`
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(intent)))

	added := readFrame(t, ctx, conn)
	assert.Equal(t, "add item", added.Event)
	assert.Equal(t, int64(1), added.Offset)
	require.Len(t, added.Args, 2)
	assert.Contains(t, string(added.Args[0]), "Cheese and Milk")
	assert.JSONEq(t, `{"boughtPrice":"0.00","unboughtPrice":"150.00","totalPrice":"150.00"}`, string(added.Args[1]))

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(intent)))
	rejected := readFrame(t, ctx, conn)
	assert.Equal(t, "Unpermitted action", rejected.Event)
}
