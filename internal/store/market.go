package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/shoplist/internal/model"
)

type MarketStore struct {
	db *sql.DB
}

func NewMarketStore(db *sql.DB) *MarketStore {
	return &MarketStore{db: db}
}

func scanMarket(scanner interface{ Scan(...any) error }) (*model.Market, error) {
	var m model.Market
	if err := scanner.Scan(&m.ID, &m.Name); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MarketStore) GetByID(ctx context.Context, id int64) (*model.Market, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name FROM market WHERE id = ?`, id)
	m, err := scanMarket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get market: %w", err)
	}
	return m, nil
}

// GetByName returns the oldest market with the given name. Names are not unique
// at the schema level, so concurrent creation can leave duplicates behind.
func (s *MarketStore) GetByName(ctx context.Context, name string) (*model.Market, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name FROM market WHERE name = ? ORDER BY id ASC LIMIT 1`, name)
	m, err := scanMarket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get market by name: %w", err)
	}
	return m, nil
}

func (s *MarketStore) Insert(ctx context.Context, name string) (*model.Market, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO market (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert market: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.Market{ID: id, Name: name}, nil
}

// Delete removes the market and reports whether a row was actually deleted.
func (s *MarketStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM market WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete market: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// HasCategories reports whether any category still belongs to the market.
func (s *MarketStore) HasCategories(ctx context.Context, id int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM category WHERE marketId = ?)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check market categories: %w", err)
	}
	return exists != 0, nil
}

// IsUsed reports whether the market holds any unbought item other than excludeItemID.
// An unbought item means the market node is already on screen.
func (s *MarketStore) IsUsed(ctx context.Context, id, excludeItemID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM item AS i
			INNER JOIN category AS c ON i.categoryId = c.id
			WHERE c.marketId = ? AND i.isBought = 0 AND i.id != ?
		)`, id, excludeItemID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check market in use: %w", err)
	}
	return exists != 0, nil
}
