package shopping

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukerupert/shoplist/internal/grocery"
	"github.com/dukerupert/shoplist/internal/model"
)

const (
	msgAddDuplicate     = "Trying to add an item with props that are the same as other item!"
	msgUpdateDuplicate  = "Trying to update an item with props that are the same as other item!"
	msgBuyMissing       = "Trying to buy an item that does not exist!"
	msgBuyWhileLocked   = "Trying to buy an item while another user is updating it!"
	msgReturnMissing    = "Trying to return an item that does not exist!"
	msgDeleteMissing    = "Trying to delete an item that does not exist!"
	msgDeleteWhileEdit  = "Trying to delete an item that is being edited by another user!"
	msgBrokenGrouping   = "Trying to change an item whose market or category no longer exists!"
	msgMalformedRequest = "Trying to send a request the server does not understand!"
)

// ItemInput is an item as submitted by a client on add or update. An empty
// Category is derived from the name.
type ItemInput struct {
	ID       int64
	Market   string
	Category string
	Name     string
	Quantity int64
	Unit     string
	Price    int64
}

// normalize validates the input and splits it into the item fields and the
// grouping it asks for.
func (in ItemInput) normalize() (model.Item, string, model.CategoryName, error) {
	item := model.Item{
		Name:     strings.TrimSpace(in.Name),
		Quantity: in.Quantity,
		Unit:     strings.TrimSpace(in.Unit),
		Price:    in.Price,
	}
	market := strings.TrimSpace(in.Market)

	switch {
	case item.Name == "":
		return item, "", 0, Invalid("Trying to save an item without a name!")
	case market == "":
		return item, "", 0, Invalid("Trying to save an item without a market!")
	case item.Quantity < 0:
		return item, "", 0, Invalid("Trying to save an item with a negative quantity!")
	case item.Price < 0:
		return item, "", 0, Invalid("Trying to save an item with a negative price!")
	}

	if strings.TrimSpace(in.Category) == "" {
		return item, market, grocery.Categorize(item.Name), nil
	}
	category, err := model.ParseCategoryName(in.Category)
	if err != nil {
		return item, "", 0, Invalid("Trying to save an item in a category that does not exist!")
	}
	return item, market, category, nil
}

// Service runs client intents against the shared list and announces every
// committed change to all clients.
//
// Intents are not serialized. Each one is a sequence of independent store
// calls, so two intents can interleave between any two of them. The edit lock
// is the only mutual exclusion.
type Service struct {
	markets    marketRepository
	categories categoryRepository
	items      itemRepository

	resolver *Resolver
	guard    *DuplicateGuard
	reaper   *Reaper
	locks    *EditLocks

	renderer Renderer
	events   Broadcaster
	logger   *slog.Logger
}

func NewService(markets marketRepository, categories categoryRepository, items itemRepository, renderer Renderer, events Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		markets:    markets,
		categories: categories,
		items:      items,
		resolver:   NewResolver(markets, categories),
		guard:      NewDuplicateGuard(items),
		reaper:     NewReaper(markets, categories, logger),
		locks:      NewEditLocks(items),
		renderer:   renderer,
		events:     events,
		logger:     logger,
	}
}

// load fetches an item, turning a missing row into NotFound with the given message.
func (s *Service) load(ctx context.Context, id int64, missing string) (*model.Item, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, storageFailure("get item", err)
	}
	if item == nil {
		return nil, NotFound(missing)
	}
	return item, nil
}

func (s *Service) grouping(ctx context.Context, item *model.Item) (*Grouping, error) {
	g, err := s.resolver.ResolveByID(ctx, item.CategoryID)
	if err != nil {
		return nil, storageFailure("resolve grouping", err)
	}
	if g == nil {
		return nil, NotFound(msgBrokenGrouping)
	}
	return g, nil
}

// inUse reports whether the client already shows the market and category,
// that is whether they hold an unbought item other than excludeID.
func (s *Service) inUse(ctx context.Context, g Grouping, excludeID int64) (market, category bool, err error) {
	if market, err = s.markets.IsUsed(ctx, g.Market.ID, excludeID); err != nil {
		return false, false, storageFailure("check market in use", err)
	}
	if category, err = s.categories.IsUsed(ctx, g.Category.ID, excludeID); err != nil {
		return false, false, storageFailure("check category in use", err)
	}
	return market, category, nil
}

// Add stores a new item, creating its market and category when needed.
func (s *Service) Add(ctx context.Context, in ItemInput) (*model.Item, error) {
	item, marketName, category, err := in.normalize()
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.ResolveByName(ctx, marketName, category, true)
	if err != nil {
		return nil, storageFailure("resolve grouping", err)
	}

	dup, err := s.guard.Exists(ctx, item, res.Grouping, 0)
	if err != nil {
		return nil, storageFailure("check duplicate item", err)
	}
	if dup {
		return nil, Conflict(msgAddDuplicate)
	}

	created, err := s.items.Insert(ctx, item, res.Category.ID)
	if err != nil {
		if res.MarketIsNew || res.CategoryIsNew {
			s.reaper.reap(ctx, res.Grouping)
		}
		return nil, storageFailure("insert item", err)
	}

	el, err := s.renderElements(res.Grouping, *created, res.MarketIsNew, res.CategoryIsNew)
	if err != nil {
		return nil, err
	}
	prices, err := s.prices(ctx)
	if err != nil {
		return nil, err
	}

	s.events.Broadcast(EventAdd, []RenderedItem{placed(res.Grouping, *created, el)}, prices)
	s.logger.Info("item added", "item_id", created.ID, "market_id", res.Market.ID, "category_id", res.Category.ID)
	return created, nil
}

// Buy moves an item to the bought list. A locked item cannot be bought.
func (s *Service) Buy(ctx context.Context, id int64) error {
	item, err := s.load(ctx, id, msgBuyMissing)
	if err != nil {
		return err
	}
	if item.IsBeingEdited {
		return Locked(msgBuyWhileLocked)
	}

	g, err := s.grouping(ctx, item)
	if err != nil {
		return err
	}

	ok, err := s.items.MarkBought(ctx, id)
	if err != nil {
		return storageFailure("mark item bought", err)
	}
	if !ok {
		return s.locks.explain(ctx, id, msgBuyMissing, msgBuyWhileLocked)
	}
	item.IsBought = true

	html, err := s.renderItem(*g, *item)
	if err != nil {
		return err
	}
	prices, err := s.prices(ctx)
	if err != nil {
		return err
	}

	s.events.Broadcast(EventBuy, html, id, prices)
	s.logger.Info("item bought", "item_id", id)
	return nil
}

// Return moves a bought item back to the shopping list, redrawing its market
// and category if nothing else keeps them on screen.
func (s *Service) Return(ctx context.Context, id int64) error {
	item, err := s.load(ctx, id, msgReturnMissing)
	if err != nil {
		return err
	}

	g, err := s.grouping(ctx, item)
	if err != nil {
		return err
	}

	// Checked before the write and not atomically with it: a sibling removed in
	// between leaves the client without a node it needs.
	marketShown, categoryShown, err := s.inUse(ctx, *g, 0)
	if err != nil {
		return err
	}

	ok, err := s.items.MarkUnbought(ctx, id)
	if err != nil {
		return storageFailure("mark item unbought", err)
	}
	if !ok {
		return NotFound(msgUpdateMissing)
	}
	item.IsBought = false

	el, err := s.renderElements(*g, *item, !marketShown, !categoryShown)
	if err != nil {
		return err
	}
	prices, err := s.prices(ctx)
	if err != nil {
		return err
	}

	s.events.Broadcast(EventReturn, placed(*g, *item, el), id, prices)
	s.logger.Info("item returned", "item_id", id)
	return nil
}

// Delete removes an item and reaps its grouping if it was the last one there.
func (s *Service) Delete(ctx context.Context, id int64) error {
	item, err := s.load(ctx, id, msgDeleteMissing)
	if err != nil {
		return err
	}
	if item.IsBeingEdited {
		return Locked(msgDeleteWhileEdit)
	}

	g, err := s.grouping(ctx, item)
	if err != nil {
		return err
	}

	ok, err := s.items.Delete(ctx, id)
	if err != nil {
		return storageFailure("delete item", err)
	}
	if !ok {
		return s.locks.explain(ctx, id, msgDeleteMissing, msgDeleteWhileEdit)
	}

	s.reaper.reap(ctx, *g)

	prices, err := s.prices(ctx)
	if err != nil {
		return err
	}

	s.events.Broadcast(EventDelete, id, prices)
	s.logger.Info("item deleted", "item_id", id)
	return nil
}

// Update saves an edited item, possibly moving it to another grouping, and
// releases its edit lock whether or not the update is accepted.
func (s *Service) Update(ctx context.Context, in ItemInput) (*model.Item, error) {
	existing, err := s.load(ctx, in.ID, msgUpdateMissing)
	if err != nil {
		return nil, err
	}

	item, marketName, category, err := in.normalize()
	if err != nil {
		return nil, s.abandonEdit(ctx, existing.ID, err)
	}

	res, err := s.resolver.ResolveByName(ctx, marketName, category, true)
	if err != nil {
		return nil, storageFailure("resolve grouping", err)
	}

	dup, err := s.guard.Exists(ctx, item, res.Grouping, existing.ID)
	if err != nil {
		return nil, storageFailure("check duplicate item", err)
	}
	if dup {
		return nil, s.abandonEdit(ctx, existing.ID, Conflict(msgUpdateDuplicate))
	}

	item.ID = existing.ID
	item.IsBought = existing.IsBought
	item.IsBeingEdited = false
	item.CategoryID = res.Category.ID

	ok, err := s.items.Update(ctx, item)
	if err != nil {
		return nil, storageFailure("update item", err)
	}
	if !ok {
		if res.MarketIsNew || res.CategoryIsNew {
			s.reaper.reap(ctx, res.Grouping)
		}
		return nil, NotFound(msgUpdateMissing)
	}

	old, err := s.resolver.ResolveByID(ctx, existing.CategoryID)
	if err != nil {
		s.logger.Error("resolve previous grouping", "item_id", item.ID, "error", err)
	} else if old != nil {
		s.reaper.reap(ctx, *old)
	}

	// Same window as in Return: the check is not atomic with the write above.
	marketShown, categoryShown, err := s.inUse(ctx, res.Grouping, item.ID)
	if err != nil {
		return nil, err
	}

	el, err := s.renderElements(res.Grouping, item, !marketShown, !categoryShown)
	if err != nil {
		return nil, err
	}
	prices, err := s.prices(ctx)
	if err != nil {
		return nil, err
	}

	s.events.Broadcast(EventUpdate, placed(res.Grouping, item, el), item.ID, prices)
	s.logger.Info("item updated", "item_id", item.ID, "category_id", item.CategoryID)
	return &item, nil
}

// abandonEdit releases the lock of a rejected update and returns the rejection.
func (s *Service) abandonEdit(ctx context.Context, id int64, rejection error) error {
	if err := s.locks.Release(ctx, id); err != nil {
		return err
	}
	return rejection
}

// BeginEdit takes the edit lock and returns the item with its market and
// category names for the edit form.
func (s *Service) BeginEdit(ctx context.Context, id int64) (*model.ItemDetail, error) {
	item, err := s.locks.Begin(ctx, id)
	if err != nil {
		return nil, err
	}

	g, err := s.grouping(ctx, item)
	if err != nil {
		return nil, s.abandonEdit(ctx, id, err)
	}

	s.logger.Info("item edit started", "item_id", id)
	return &model.ItemDetail{
		Item:     *item,
		MarketID: g.Market.ID,
		Market:   g.Market.Name,
		Category: g.Category.Name,
	}, nil
}

// InterruptEdit releases the edit lock without saving.
func (s *Service) InterruptEdit(ctx context.Context, id int64) error {
	if err := s.locks.Interrupt(ctx, id); err != nil {
		return err
	}
	s.logger.Info("item edit interrupted", "item_id", id)
	return nil
}

// ClearBought deletes every bought item one by one, reaping as it goes, and
// announces the result once. It stops at the first failure; items already
// deleted stay deleted. Unlike every other flow, a rejection here still
// broadcasts: each item removed before the failure goes out as its own
// "delete item", because a single "clear bought list" would also wipe the
// rows that are still stored.
func (s *Service) ClearBought(ctx context.Context) error {
	bought, err := s.items.ListBought(ctx)
	if err != nil {
		return storageFailure("list bought items", err)
	}

	var deleted []int64
	for i := range bought {
		item := &bought[i]

		if err := s.clearOne(ctx, item); err != nil {
			s.announceDeleted(ctx, deleted)
			return err
		}
		deleted = append(deleted, item.ID)
	}

	s.events.Broadcast(EventClearBought)
	s.logger.Info("bought list cleared", "count", len(bought))
	return nil
}

func (s *Service) clearOne(ctx context.Context, item *model.Item) error {
	g, err := s.grouping(ctx, item)
	if err != nil {
		return err
	}

	ok, err := s.items.Delete(ctx, item.ID)
	if err != nil {
		return storageFailure("delete item", err)
	}
	if !ok {
		return s.locks.explain(ctx, item.ID, msgDeleteMissing, msgDeleteWhileEdit)
	}

	s.reaper.reap(ctx, *g)
	return nil
}

// announceDeleted broadcasts one delete per item removed by a clear that
// stopped part way, so clients drop exactly those rows.
func (s *Service) announceDeleted(ctx context.Context, ids []int64) {
	if len(ids) == 0 {
		return
	}
	prices, err := s.prices(ctx)
	if err != nil {
		s.logger.Error("prices after partial clear", "error", err)
		return
	}
	for _, id := range ids {
		s.events.Broadcast(EventDelete, id, prices)
	}
	s.logger.Info("bought list partially cleared", "count", len(ids))
}
