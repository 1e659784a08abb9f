package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shoplist/internal/model"
)

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var item model.Item
	var bought, editing int
	err := scanner.Scan(
		&item.ID, &bought, &item.Name, &item.Quantity, &item.Unit,
		&item.Price, &editing, &item.CategoryID,
	)
	if err != nil {
		return nil, err
	}
	item.IsBought = bought != 0
	item.IsBeingEdited = editing != 0
	return &item, nil
}

const itemCols = `id, isBought, name, quantity, unit, price, isBeingEdited, categoryId`

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *ItemStore) GetByID(ctx context.Context, id int64) (*model.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemCols+` FROM item WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Insert stores a new item under categoryID. The edit lock always starts released.
func (s *ItemStore) Insert(ctx context.Context, item model.Item, categoryID int64) (*model.Item, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO item (isBought, name, quantity, unit, price, categoryId) VALUES (?, ?, ?, ?, ?, ?)`,
		boolInt(item.IsBought), item.Name, item.Quantity, item.Unit, item.Price, categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	item.ID = id
	item.CategoryID = categoryID
	item.IsBeingEdited = false
	return &item, nil
}

// Update overwrites every column of the item. It reports false if the row is gone.
func (s *ItemStore) Update(ctx context.Context, item model.Item) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE item SET isBought = ?, name = ?, quantity = ?, unit = ?, price = ?, isBeingEdited = ?, categoryId = ? WHERE id = ?`,
		boolInt(item.IsBought), item.Name, item.Quantity, item.Unit, item.Price,
		boolInt(item.IsBeingEdited), item.CategoryID, item.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update item: %w", err)
	}
	return affected(result)
}

// MarkBought moves the item to the bought list, but only while nobody holds
// the edit lock. It reports false when the item is missing or locked.
func (s *ItemStore) MarkBought(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE item SET isBought = 1 WHERE id = ? AND isBeingEdited = 0`, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark item bought: %w", err)
	}
	return affected(result)
}

// MarkUnbought moves the item back to the shopping list. It reports false when
// the item is missing.
func (s *ItemStore) MarkUnbought(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE item SET isBought = 0 WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("mark item unbought: %w", err)
	}
	return affected(result)
}

// SwapEditing moves the edit lock from one state to the other in a single
// statement. It reports false when the item is missing or was not in state from.
func (s *ItemStore) SwapEditing(ctx context.Context, id int64, from, to bool) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE item SET isBeingEdited = ? WHERE id = ? AND isBeingEdited = ?`,
		boolInt(to), id, boolInt(from),
	)
	if err != nil {
		return false, fmt.Errorf("swap item edit lock: %w", err)
	}
	return affected(result)
}

// Delete removes the item unless somebody is editing it.
// It reports false when the item is missing or locked.
func (s *ItemStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM item WHERE id = ? AND isBeingEdited = 0`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	return affected(result)
}

// Exists reports whether an item with the same name, quantity, unit and price
// already sits in the given category of the given market. excludeID, when
// non-zero, is skipped so an item can be saved unchanged.
func (s *ItemStore) Exists(ctx context.Context, item model.Item, categoryID, marketID, excludeID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM item AS i
			INNER JOIN category AS c ON i.categoryId = c.id
			WHERE i.name = ? AND i.quantity = ? AND i.unit = ? AND i.price = ?
			  AND i.categoryId = ? AND c.marketId = ? AND i.id != ?
		)`,
		item.Name, item.Quantity, item.Unit, item.Price, categoryID, marketID, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate item: %w", err)
	}
	return exists != 0, nil
}

// List returns every item. Price totals are computed from this.
func (s *ItemStore) List(ctx context.Context) ([]model.Item, error) {
	return s.query(ctx, `SELECT `+itemCols+` FROM item ORDER BY id ASC`)
}

// ListBought returns every item currently in the bought list.
func (s *ItemStore) ListBought(ctx context.Context) ([]model.Item, error) {
	return s.query(ctx, `SELECT `+itemCols+` FROM item WHERE isBought = 1 ORDER BY id ASC`)
}

func (s *ItemStore) query(ctx context.Context, q string, args ...any) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ListDetailed returns every item joined with its category and market, in
// insertion order. Items with a broken grouping reference are left out.
func (s *ItemStore) ListDetailed(ctx context.Context) ([]model.ItemDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.isBought, i.name, i.quantity, i.unit, i.price, i.isBeingEdited, i.categoryId,
		       c.name, m.id, m.name
		FROM item AS i
		INNER JOIN category AS c ON i.categoryId = c.id
		INNER JOIN market AS m ON c.marketId = m.id
		ORDER BY i.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list item details: %w", err)
	}
	defer rows.Close()

	var details []model.ItemDetail
	for rows.Next() {
		var d model.ItemDetail
		var bought, editing int
		var categoryName string
		err := rows.Scan(
			&d.ID, &bought, &d.Name, &d.Quantity, &d.Unit, &d.Price, &editing, &d.CategoryID,
			&categoryName, &d.MarketID, &d.Market,
		)
		if err != nil {
			return nil, fmt.Errorf("scan item detail: %w", err)
		}
		d.IsBought = bought != 0
		d.IsBeingEdited = editing != 0
		if d.Category, err = model.ParseCategoryName(categoryName); err != nil {
			return nil, fmt.Errorf("scan item detail: %w", err)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
