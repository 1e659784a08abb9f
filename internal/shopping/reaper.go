package shopping

import (
	"context"
	"log/slog"
)

// Reaped records which grouping nodes a reap removed.
type Reaped struct {
	Category bool
	Market   bool
}

// Reaper deletes grouping nodes that no longer hold anything.
type Reaper struct {
	markets    marketRepository
	categories categoryRepository
	logger     *slog.Logger
}

func NewReaper(markets marketRepository, categories categoryRepository, logger *slog.Logger) *Reaper {
	return &Reaper{markets: markets, categories: categories, logger: logger}
}

// ReapIfEmpty deletes the category when no item references it, then the market
// when no category references it. The cascade stops at the first level that is
// still occupied or whose row is already gone.
func (r *Reaper) ReapIfEmpty(ctx context.Context, marketID, categoryID int64) (Reaped, error) {
	var reaped Reaped

	occupied, err := r.categories.HasItems(ctx, categoryID)
	if err != nil || occupied {
		return reaped, err
	}
	if reaped.Category, err = r.categories.Delete(ctx, categoryID); err != nil || !reaped.Category {
		return reaped, err
	}

	occupied, err = r.markets.HasCategories(ctx, marketID)
	if err != nil || occupied {
		return reaped, err
	}
	reaped.Market, err = r.markets.Delete(ctx, marketID)
	return reaped, err
}

// reap runs ReapIfEmpty and only logs a failure. The item mutation that
// triggered it is already committed.
func (r *Reaper) reap(ctx context.Context, g Grouping) {
	reaped, err := r.ReapIfEmpty(ctx, g.Market.ID, g.Category.ID)
	if err != nil {
		r.logger.Error("reap grouping", "market_id", g.Market.ID, "category_id", g.Category.ID, "error", err)
		return
	}
	if reaped.Category {
		r.logger.Debug("category reaped", "category_id", g.Category.ID, "market_reaped", reaped.Market)
	}
}
