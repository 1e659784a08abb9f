package shopping

import (
	"context"

	"github.com/dukerupert/shoplist/internal/model"
)

// Rejection messages shared by the lock-aware intents.
const (
	msgUpdateMissing     = "Trying to update an item that does not exist!"
	msgUpdateWhileLocked = "Trying to update an item while another user is updating it!"
	msgInterruptIdle     = "Trying to interrupt the updating without starting to update in first place!"
)

// EditLocks arbitrates the per-item edit lock. Every transition is a single
// conditional write, so two clients racing for the same item cannot both win.
// There is no timeout: a lock held by a client that went away stays held until
// another client updates or interrupts the item.
type EditLocks struct {
	items itemRepository
}

func NewEditLocks(items itemRepository) *EditLocks {
	return &EditLocks{items: items}
}

// Begin moves the item from Idle to Editing and returns it in its locked state.
func (l *EditLocks) Begin(ctx context.Context, id int64) (*model.Item, error) {
	ok, err := l.items.SwapEditing(ctx, id, false, true)
	if err != nil {
		return nil, storageFailure("acquire edit lock", err)
	}
	if !ok {
		return nil, l.explain(ctx, id, msgUpdateMissing, msgUpdateWhileLocked)
	}

	item, err := l.items.GetByID(ctx, id)
	if err != nil {
		return nil, storageFailure("get item", err)
	}
	if item == nil {
		return nil, NotFound(msgUpdateMissing)
	}
	return item, nil
}

// Interrupt moves the item from Editing back to Idle. Interrupting an idle item
// is rejected so a doubled cancel is visible to the client.
func (l *EditLocks) Interrupt(ctx context.Context, id int64) error {
	ok, err := l.items.SwapEditing(ctx, id, true, false)
	if err != nil {
		return storageFailure("release edit lock", err)
	}
	if !ok {
		return l.explain(ctx, id, msgUpdateMissing, msgInterruptIdle)
	}
	return nil
}

// Release clears the lock if it is held. Releasing an idle or missing item is
// not an error.
func (l *EditLocks) Release(ctx context.Context, id int64) error {
	if _, err := l.items.SwapEditing(ctx, id, true, false); err != nil {
		return storageFailure("release edit lock", err)
	}
	return nil
}

// explain turns a failed conditional write into NotFound or Locked by looking
// at the row as it is now.
func (l *EditLocks) explain(ctx context.Context, id int64, missing, locked string) error {
	item, err := l.items.GetByID(ctx, id)
	if err != nil {
		return storageFailure("get item", err)
	}
	if item == nil {
		return NotFound(missing)
	}
	return Locked(locked)
}
