package shopping

import (
	"context"

	"github.com/dukerupert/shoplist/internal/model"
)

// Grouping is the market and category an item hangs under.
type Grouping struct {
	Market   model.Market
	Category model.Category
}

// GroupingResolution is a Grouping plus whether each node was created while
// resolving it. A new node has never been shown to any client.
type GroupingResolution struct {
	Grouping
	MarketIsNew   bool
	CategoryIsNew bool
}

// Resolver finds the grouping nodes for an item, creating them on demand.
//
// Find-or-create is two statements with no unique constraint behind it: two
// intents resolving the same missing market at once can both insert it.
type Resolver struct {
	markets    marketRepository
	categories categoryRepository
}

func NewResolver(markets marketRepository, categories categoryRepository) *Resolver {
	return &Resolver{markets: markets, categories: categories}
}

// ResolveByName looks the grouping up by market name and category name. When
// create is false and either node is missing it returns nil, nil.
func (r *Resolver) ResolveByName(ctx context.Context, marketName string, category model.CategoryName, create bool) (*GroupingResolution, error) {
	var res GroupingResolution

	market, err := r.markets.GetByName(ctx, marketName)
	if err != nil {
		return nil, err
	}
	if market == nil {
		if !create {
			return nil, nil
		}
		if market, err = r.markets.Insert(ctx, marketName); err != nil {
			return nil, err
		}
		res.MarketIsNew = true
	}

	cat, err := r.categories.GetByName(ctx, category, market.ID)
	if err != nil {
		return nil, err
	}
	if cat == nil {
		if !create {
			return nil, nil
		}
		if cat, err = r.categories.Insert(ctx, category, market.ID); err != nil {
			return nil, err
		}
		res.CategoryIsNew = true
	}

	res.Market = *market
	res.Category = *cat
	return &res, nil
}

// ResolveByID walks up from a category id to its category and market. A broken
// reference on either level returns nil, nil.
func (r *Resolver) ResolveByID(ctx context.Context, categoryID int64) (*Grouping, error) {
	cat, err := r.categories.GetByID(ctx, categoryID)
	if err != nil || cat == nil {
		return nil, err
	}

	market, err := r.markets.GetByID(ctx, cat.MarketID)
	if err != nil || market == nil {
		return nil, err
	}

	return &Grouping{Market: *market, Category: *cat}, nil
}
