package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getMenuItem = `
SELECT id, name, price, is_available, created_at
FROM menu_items
WHERE id = $1
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, id)
	var i MenuItem
	err := row.Scan(&i.ID, &i.Name, &i.Price, &i.IsAvailable, &i.CreatedAt)
	return i, err
}

const listAvailableMenuItems = `
SELECT id, name, price, is_available, created_at
FROM menu_items
WHERE is_available = TRUE
ORDER BY name
`

func (q *Queries) ListAvailableMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listAvailableMenuItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		var i MenuItem
		if err := rows.Scan(&i.ID, &i.Name, &i.Price, &i.IsAvailable, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createMenuItem = `
INSERT INTO menu_items (id, name, price, is_available)
VALUES ($1, $2, $3, $4)
RETURNING id, name, price, is_available, created_at
`

type CreateMenuItemParams struct {
	ID          uuid.UUID
	Name        string
	Price       pgtype.Numeric
	IsAvailable bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem, arg.ID, arg.Name, arg.Price, arg.IsAvailable)
	var i MenuItem
	err := row.Scan(&i.ID, &i.Name, &i.Price, &i.IsAvailable, &i.CreatedAt)
	return i, err
}
