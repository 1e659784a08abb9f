package shopping

import (
	"context"

	"github.com/dukerupert/shoplist/internal/model"
)

// Views the Renderer must know how to draw.
const (
	ViewMarket   = "market"
	ViewCategory = "category"
	ViewItem     = "item"
)

// MarketView is the data handed to the market view.
type MarketView struct {
	ID      int64
	Name    string
	Initial string
}

// CategoryView is the data handed to the category view.
type CategoryView struct {
	ID       int64
	Name     string
	MarketID int64
}

// ItemView is the data handed to the item view. Market holds the market
// badge, not the full name.
type ItemView struct {
	model.Item
	Market   string
	Category string
}

// Elements holds the fragments a client inserts for one item. Market and
// Category are empty when the client already shows those nodes.
type Elements struct {
	Market   string `json:"market,omitempty"`
	Category string `json:"category,omitempty"`
	Item     string `json:"item"`
}

// RenderedItem tells a client what to insert and where. Bought items carry no
// grouping ids because the bought list is flat.
type RenderedItem struct {
	RenderedElements  Elements `json:"renderedElements"`
	IsBought          bool     `json:"isBought"`
	MarketElementID   int64    `json:"marketElementId,omitempty"`
	CategoryElementID int64    `json:"categoryElementId,omitempty"`
}

func (s *Service) renderItem(g Grouping, item model.Item) (string, error) {
	view := ItemView{
		Item:     item,
		Market:   g.Market.Initial(),
		Category: g.Category.Name.String(),
	}
	html, err := s.renderer.Render(ViewItem, view)
	if err != nil {
		return "", renderFailure(ViewItem, err)
	}
	return html, nil
}

// renderElements draws the item plus whichever grouping nodes the client does
// not have yet.
func (s *Service) renderElements(g Grouping, item model.Item, withMarket, withCategory bool) (Elements, error) {
	var el Elements
	var err error

	if withMarket {
		view := MarketView{ID: g.Market.ID, Name: g.Market.Name, Initial: g.Market.Initial()}
		if el.Market, err = s.renderer.Render(ViewMarket, view); err != nil {
			return el, renderFailure(ViewMarket, err)
		}
	}
	if withCategory {
		view := CategoryView{ID: g.Category.ID, Name: g.Category.Name.String(), MarketID: g.Market.ID}
		if el.Category, err = s.renderer.Render(ViewCategory, view); err != nil {
			return el, renderFailure(ViewCategory, err)
		}
	}
	el.Item, err = s.renderItem(g, item)
	return el, err
}

func placed(g Grouping, item model.Item, el Elements) RenderedItem {
	return RenderedItem{
		RenderedElements:  el,
		IsBought:          item.IsBought,
		MarketElementID:   g.Market.ID,
		CategoryElementID: g.Category.ID,
	}
}

// prices recomputes the totals over every stored item.
func (s *Service) prices(ctx context.Context) (Prices, error) {
	items, err := s.items.List(ctx)
	if err != nil {
		return Prices{}, storageFailure("list items", err)
	}
	return Aggregate(items), nil
}
