package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shoplist/internal/model"
)

type CategoryStore struct {
	db *sql.DB
}

func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func scanCategory(scanner interface{ Scan(...any) error }) (*model.Category, error) {
	var c model.Category
	var name string
	if err := scanner.Scan(&c.ID, &name, &c.MarketID); err != nil {
		return nil, err
	}
	parsed, err := model.ParseCategoryName(name)
	if err != nil {
		return nil, err
	}
	c.Name = parsed
	return &c, nil
}

const categoryCols = `id, name, marketId`

func (s *CategoryStore) GetByID(ctx context.Context, id int64) (*model.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryCols+` FROM category WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// GetByName finds the category with the given name inside one market.
func (s *CategoryStore) GetByName(ctx context.Context, name model.CategoryName, marketID int64) (*model.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryCols+` FROM category WHERE name = ? AND marketId = ? ORDER BY id ASC LIMIT 1`,
		name.String(), marketID,
	)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category by name: %w", err)
	}
	return c, nil
}

func (s *CategoryStore) Insert(ctx context.Context, name model.CategoryName, marketID int64) (*model.Category, error) {
	if !name.Valid() {
		return nil, fmt.Errorf("insert category: invalid name %v", name)
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO category (name, marketId) VALUES (?, ?)`, name.String(), marketID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.Category{ID: id, Name: name, MarketID: marketID}, nil
}

// Delete removes the category and reports whether a row was actually deleted.
func (s *CategoryStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM category WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// HasItems reports whether any item, bought or not, still belongs to the category.
func (s *CategoryStore) HasItems(ctx context.Context, id int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM item WHERE categoryId = ?)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check category items: %w", err)
	}
	return exists != 0, nil
}

// IsUsed reports whether the category holds any unbought item other than excludeItemID.
func (s *CategoryStore) IsUsed(ctx context.Context, id, excludeItemID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM item WHERE categoryId = ? AND isBought = 0 AND id != ?)`,
		id, excludeItemID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check category in use: %w", err)
	}
	return exists != 0, nil
}
