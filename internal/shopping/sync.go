package shopping

import (
	"context"
	"fmt"

	"github.com/dukerupert/shoplist/internal/model"
)

// shown tracks which grouping nodes one sync pass has already drawn. It lives
// for a single Sync call.
type shown struct {
	markets    map[int64]bool
	categories map[string]bool
}

func newShown() *shown {
	return &shown{markets: make(map[int64]bool), categories: make(map[string]bool)}
}

// mark records the grouping and reports which of its nodes are new to the pass.
func (s *shown) mark(marketID, categoryID int64) (market, category bool) {
	key := fmt.Sprintf("%d/%d", marketID, categoryID)
	market, category = !s.markets[marketID], !s.categories[key]
	s.markets[marketID] = true
	s.categories[key] = true
	return market, category
}

// Sync sends a freshly connected client the whole list: bought items flat,
// unbought items under their markets and categories, each node drawn once.
func (s *Service) Sync(ctx context.Context, peer Peer) error {
	peer.Emit(EventReconnect)

	details, err := s.items.ListDetailed(ctx)
	if err != nil {
		return storageFailure("list items", err)
	}

	seen := newShown()
	elements := make([]RenderedItem, 0, len(details))
	items := make([]model.Item, 0, len(details))

	for _, d := range details {
		items = append(items, d.Item)
		g := Grouping{
			Market:   model.Market{ID: d.MarketID, Name: d.Market},
			Category: model.Category{ID: d.CategoryID, Name: d.Category, MarketID: d.MarketID},
		}

		if d.IsBought {
			html, err := s.renderItem(g, d.Item)
			if err != nil {
				return err
			}
			elements = append(elements, RenderedItem{RenderedElements: Elements{Item: html}, IsBought: true})
			continue
		}

		withMarket, withCategory := seen.mark(d.MarketID, d.CategoryID)
		el, err := s.renderElements(g, d.Item, withMarket, withCategory)
		if err != nil {
			return err
		}
		elements = append(elements, placed(g, d.Item, el))
	}

	peer.Emit(EventAdd, elements, Aggregate(items))
	s.logger.Debug("client synced", "items", len(elements))
	return nil
}
