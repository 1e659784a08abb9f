package server

import (
	"context"
	"log/slog"

	"github.com/dukerupert/shoplist/internal/shopping"
	ws "github.com/dukerupert/shoplist/internal/websocket"
)

// intentRouter feeds websocket traffic into the shopping service.
type intentRouter struct {
	service *shopping.Service
	logger  *slog.Logger
}

// Connected sends a fresh client the whole list. A resumed client already got
// what it missed from the hub.
func (ir intentRouter) Connected(ctx context.Context, c *ws.Client, resumed bool) {
	if resumed {
		return
	}
	if err := ir.service.Sync(ctx, c); err != nil {
		ir.logger.Error("initial sync", "session", c.SessionID(), "error", err)
	}
}

func (ir intentRouter) Dispatch(ctx context.Context, c *ws.Client, f ws.Frame) {
	_ = ir.service.Dispatch(ctx, c, shopping.Intent{Event: f.Event, Args: f.Args})
}
