package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemWithCategoryColumns = `m.id, m.name, m.price, m.active, c.id, c.name, c.active`

func scanMenuItemWithCategory(row rowScanner) (MenuItemWithCategory, error) {
	var i MenuItemWithCategory
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.Active,
		&i.CategoryID,
		&i.CategoryName,
		&i.CategoryActive,
	)
	return i, err
}

const listMenuItemsByIDs = `-- name: ListMenuItemsByIDs :many
SELECT ` + menuItemWithCategoryColumns + `
FROM menu_items m
JOIN categories c ON c.id = m.category_id
WHERE m.id = ANY($1::uuid[])
`

func (q *Queries) ListMenuItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]MenuItemWithCategory, error) {
	rows, err := q.db.Query(ctx, listMenuItemsByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItemWithCategory
	for rows.Next() {
		i, err := scanMenuItemWithCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name, sort_order) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET sort_order = EXCLUDED.sort_order
RETURNING id, name, sort_order, active
`

func (q *Queries) CreateCategory(ctx context.Context, name string, sortOrder int32) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory, name, sortOrder)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.SortOrder, &i.Active)
	return i, err
}

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (name, price, category_id) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET price = EXCLUDED.price, category_id = EXCLUDED.category_id
RETURNING id, name, price, category_id, active
`

type CreateMenuItemParams struct {
	Name       string
	Price      pgtype.Numeric
	CategoryID uuid.UUID
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem, arg.Name, arg.Price, arg.CategoryID)
	var i MenuItem
	err := row.Scan(&i.ID, &i.Name, &i.Price, &i.CategoryID, &i.Active)
	return i, err
}

const listMenu = `-- name: ListMenu :many
SELECT ` + menuItemWithCategoryColumns + `
FROM menu_items m
JOIN categories c ON c.id = m.category_id
WHERE m.active AND c.active
ORDER BY c.sort_order, c.name, m.name
`

func (q *Queries) ListMenu(ctx context.Context) ([]MenuItemWithCategory, error) {
	rows, err := q.db.Query(ctx, listMenu)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItemWithCategory
	for rows.Next() {
		i, err := scanMenuItemWithCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
