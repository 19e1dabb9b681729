// Package catalog is the read-only menu accessor. The menu itself is owned
// by the back office; orders only ever read it and snapshot what they need.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/casa-taqueria/ordering-api/internal/database"
	"github.com/casa-taqueria/ordering-api/internal/money"
)

var ErrItemNotFound = errors.New("menu item not found")

// Item is a priced menu entry at a single read instant. The price is in
// minor units; orders snapshot it and never re-read it later.
type Item struct {
	ID             uuid.UUID
	Name           string
	UnitPriceCents int64
	Available      bool
}

// Accessor is the lookup the pricing engine depends on.
type Accessor interface {
	GetItem(ctx context.Context, id uuid.UUID) (Item, error)
}

// MenuStore defines the database methods the catalog needs.
// Satisfied by *database.Queries.
type MenuStore interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ListAvailableMenuItems(ctx context.Context) ([]database.MenuItem, error)
}

// PG reads menu items from Postgres.
type PG struct {
	store MenuStore
}

func NewPG(store MenuStore) *PG {
	return &PG{store: store}
}

func (c *PG) GetItem(ctx context.Context, id uuid.UUID) (Item, error) {
	mi, err := c.store.GetMenuItem(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("get menu item: %w", err)
	}
	return toItem(mi)
}

// ListAvailable backs the public menu endpoint.
func (c *PG) ListAvailable(ctx context.Context) ([]Item, error) {
	rows, err := c.store.ListAvailableMenuItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	items := make([]Item, 0, len(rows))
	for _, mi := range rows {
		item, err := toItem(mi)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func toItem(mi database.MenuItem) (Item, error) {
	cents, err := money.CentsFromDecimal(numericToDecimal(mi.Price))
	if err != nil {
		return Item{}, fmt.Errorf("menu item %s price: %w", mi.ID, err)
	}
	return Item{
		ID:             mi.ID,
		Name:           mi.Name,
		UnitPriceCents: cents,
		Available:      mi.IsAvailable,
	}, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil {
		return decimal.Zero
	}
	s, ok := val.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
