package shopping

import (
	"context"

	"github.com/dukerupert/shoplist/internal/model"
)

// Intents sent by clients.
const (
	IntentAdd             = "adding item"
	IntentBuy             = "buying item"
	IntentReturn          = "returning item"
	IntentDelete          = "deleting item"
	IntentUpdate          = "updating item"
	IntentEdit            = "editing item"
	IntentInterruptEdit   = "editing interrupted item"
	IntentClearBoughtList = "clearing bought list"
)

// Events sent to clients.
const (
	EventAdd         = "add item"
	EventBuy         = "buy item"
	EventReturn      = "return item"
	EventDelete      = "delete item"
	EventUpdate      = "update item"
	EventClearBought = "clear bought list"
	EventEdit        = "edit item"
	EventUnpermitted = "Unpermitted action"
	EventReconnect   = "reconnect"
)

// marketRepository is the subset of store.MarketStore the engine requires.
type marketRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Market, error)
	GetByName(ctx context.Context, name string) (*model.Market, error)
	Insert(ctx context.Context, name string) (*model.Market, error)
	Delete(ctx context.Context, id int64) (bool, error)
	HasCategories(ctx context.Context, id int64) (bool, error)
	IsUsed(ctx context.Context, id, excludeItemID int64) (bool, error)
}

// categoryRepository is the subset of store.CategoryStore the engine requires.
type categoryRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Category, error)
	GetByName(ctx context.Context, name model.CategoryName, marketID int64) (*model.Category, error)
	Insert(ctx context.Context, name model.CategoryName, marketID int64) (*model.Category, error)
	Delete(ctx context.Context, id int64) (bool, error)
	HasItems(ctx context.Context, id int64) (bool, error)
	IsUsed(ctx context.Context, id, excludeItemID int64) (bool, error)
}

// itemRepository is the subset of store.ItemStore the engine requires.
type itemRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Item, error)
	Insert(ctx context.Context, item model.Item, categoryID int64) (*model.Item, error)
	Update(ctx context.Context, item model.Item) (bool, error)
	MarkBought(ctx context.Context, id int64) (bool, error)
	MarkUnbought(ctx context.Context, id int64) (bool, error)
	SwapEditing(ctx context.Context, id int64, from, to bool) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Exists(ctx context.Context, item model.Item, categoryID, marketID, excludeID int64) (bool, error)
	List(ctx context.Context) ([]model.Item, error)
	ListBought(ctx context.Context) ([]model.Item, error)
	ListDetailed(ctx context.Context) ([]model.ItemDetail, error)
}

// Renderer turns view data into a markup fragment. The engine decides what to
// render and when; the Renderer decides how.
type Renderer interface {
	Render(view string, data any) (string, error)
}

// Broadcaster delivers an event to every connected client.
type Broadcaster interface {
	Broadcast(event string, args ...any)
}

// Peer is the client that sent the intent being handled.
type Peer interface {
	Emit(event string, args ...any)
}
