package shopping

import (
	"context"

	"github.com/dukerupert/shoplist/internal/model"
)

// DuplicateGuard enforces the item identity rule: no two items in the same
// category of the same market may share name, quantity, unit and price.
type DuplicateGuard struct {
	items itemRepository
}

func NewDuplicateGuard(items itemRepository) *DuplicateGuard {
	return &DuplicateGuard{items: items}
}

// Exists reports whether candidate collides with a stored item. excludeID is
// the candidate's own id on update and 0 on add.
func (g *DuplicateGuard) Exists(ctx context.Context, candidate model.Item, in Grouping, excludeID int64) (bool, error) {
	return g.items.Exists(ctx, candidate, in.Category.ID, in.Market.ID, excludeID)
}
