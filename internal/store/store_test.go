package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/model"
)

type testStores struct {
	markets    *MarketStore
	categories *CategoryStore
	items      *ItemStore
}

func setupTestDB(t *testing.T) testStores {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return testStores{
		markets:    NewMarketStore(db),
		categories: NewCategoryStore(db),
		items:      NewItemStore(db),
	}
}

// seedGrouping creates a market with one category in it.
func seedGrouping(t *testing.T, s testStores, market string, category model.CategoryName) (*model.Market, *model.Category) {
	t.Helper()
	ctx := context.Background()
	m, err := s.markets.Insert(ctx, market)
	require.NoError(t, err)
	c, err := s.categories.Insert(ctx, category, m.ID)
	require.NoError(t, err)
	return m, c
}
