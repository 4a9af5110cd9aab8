package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderLineColumns = `id, order_id, menu_item_id, item_name, category_id, category_name, quantity,
	charged_quantity, guest, note, base_price, unit_price, line_total, auto_added_by, created_at`

func scanOrderLine(row rowScanner) (OrderLine, error) {
	var i OrderLine
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.ItemName,
		&i.CategoryID,
		&i.CategoryName,
		&i.Quantity,
		&i.ChargedQuantity,
		&i.Guest,
		&i.Note,
		&i.BasePrice,
		&i.UnitPrice,
		&i.LineTotal,
		&i.AutoAddedBy,
		&i.CreatedAt,
	)
	return i, err
}

const createOrderLine = `-- name: CreateOrderLine :one
INSERT INTO order_lines (
	order_id, menu_item_id, item_name, category_id, category_name, quantity, charged_quantity,
	guest, note, base_price, unit_price, line_total, auto_added_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + orderLineColumns

type CreateOrderLineParams struct {
	OrderID         uuid.UUID
	MenuItemID      uuid.UUID
	ItemName        string
	CategoryID      uuid.UUID
	CategoryName    string
	Quantity        int32
	ChargedQuantity int32
	Guest           int32
	Note            pgtype.Text
	BasePrice       pgtype.Numeric
	UnitPrice       pgtype.Numeric
	LineTotal       pgtype.Numeric
	AutoAddedBy     pgtype.Text
}

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, createOrderLine,
		arg.OrderID,
		arg.MenuItemID,
		arg.ItemName,
		arg.CategoryID,
		arg.CategoryName,
		arg.Quantity,
		arg.ChargedQuantity,
		arg.Guest,
		arg.Note,
		arg.BasePrice,
		arg.UnitPrice,
		arg.LineTotal,
		arg.AutoAddedBy,
	)
	return scanOrderLine(row)
}

const updateOrderLine = `-- name: UpdateOrderLine :one
UPDATE order_lines SET
	quantity = $2,
	charged_quantity = $3,
	guest = $4,
	note = $5,
	unit_price = $6,
	line_total = $7
WHERE id = $1
RETURNING ` + orderLineColumns

// UpdateOrderLineParams leaves the copied base price untouched.
type UpdateOrderLineParams struct {
	ID              uuid.UUID
	Quantity        int32
	ChargedQuantity int32
	Guest           int32
	Note            pgtype.Text
	UnitPrice       pgtype.Numeric
	LineTotal       pgtype.Numeric
}

func (q *Queries) UpdateOrderLine(ctx context.Context, arg UpdateOrderLineParams) (OrderLine, error) {
	return scanOrderLine(q.db.QueryRow(ctx, updateOrderLine,
		arg.ID,
		arg.Quantity,
		arg.ChargedQuantity,
		arg.Guest,
		arg.Note,
		arg.UnitPrice,
		arg.LineTotal,
	))
}

const listOrderLines = `-- name: ListOrderLines :many
SELECT ` + orderLineColumns + ` FROM order_lines
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]OrderLine, error) {
	rows, err := q.db.Query(ctx, listOrderLines, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderLine
	for rows.Next() {
		i, err := scanOrderLine(rows)
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

const deleteOrderLine = `-- name: DeleteOrderLine :exec
DELETE FROM order_lines WHERE id = $1
`

func (q *Queries) DeleteOrderLine(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderLine, id)
	return err
}

const deleteOrderLines = `-- name: DeleteOrderLines :exec
DELETE FROM order_lines WHERE order_id = $1
`

func (q *Queries) DeleteOrderLines(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderLines, orderID)
	return err
}
