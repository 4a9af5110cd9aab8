package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, order_type, table_id, status, subtotal, manual_discount,
	promotion_discount, rule_discount, discount_amount, service_charge, tax_amount, total_amount,
	notes, is_deleted, opened_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.OrderType,
		&i.TableID,
		&i.Status,
		&i.Subtotal,
		&i.ManualDiscount,
		&i.PromotionDiscount,
		&i.RuleDiscount,
		&i.DiscountAmount,
		&i.ServiceCharge,
		&i.TaxAmount,
		&i.TotalAmount,
		&i.Notes,
		&i.IsDeleted,
		&i.OpenedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT (COALESCE(MAX(substring(order_number FROM 5)::int), 0) + 1)::int4
FROM orders
`

func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	row := q.db.QueryRow(ctx, getNextOrderNumber)
	var next int32
	err := row.Scan(&next)
	return next, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
	order_number, order_type, table_id, status, subtotal, manual_discount, promotion_discount,
	rule_discount, discount_amount, service_charge, tax_amount, total_amount, notes, opened_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber       string
	OrderType         string
	TableID           pgtype.UUID
	Status            string
	Subtotal          pgtype.Numeric
	ManualDiscount    pgtype.Numeric
	PromotionDiscount pgtype.Numeric
	RuleDiscount      pgtype.Numeric
	DiscountAmount    pgtype.Numeric
	ServiceCharge     pgtype.Numeric
	TaxAmount         pgtype.Numeric
	TotalAmount       pgtype.Numeric
	Notes             pgtype.Text
	OpenedBy          uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.OrderType,
		arg.TableID,
		arg.Status,
		arg.Subtotal,
		arg.ManualDiscount,
		arg.PromotionDiscount,
		arg.RuleDiscount,
		arg.DiscountAmount,
		arg.ServiceCharge,
		arg.TaxAmount,
		arg.TotalAmount,
		arg.Notes,
		arg.OpenedBy,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR NO KEY UPDATE
`

// GetOrderForUpdate locks the order row until the surrounding transaction ends.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
  AND ($4::text IS NULL OR order_number ILIKE $4 || '%' OR id::text LIKE lower($4) || '%')
  AND (NOT is_deleted OR $5::bool)
ORDER BY created_at DESC
LIMIT $6 OFFSET $7
`

type ListOrdersParams struct {
	Status         pgtype.Text
	StartDate      pgtype.Timestamptz
	EndDate        pgtype.Timestamptz
	Prefix         pgtype.Text
	IncludeDeleted bool
	Limit          int32
	Offset         int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.Status,
		arg.StartDate,
		arg.EndDate,
		arg.Prefix,
		arg.IncludeDeleted,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
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

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

// UpdateOrderStatusParams moves ID from From to Status. No row is returned
// when the stored status no longer equals From.
type UpdateOrderStatusParams struct {
	ID     uuid.UUID
	Status string
	From   string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.From))
}

const updateOrderTotals = `-- name: UpdateOrderTotals :one
UPDATE orders SET
	subtotal = $2,
	promotion_discount = $3,
	rule_discount = $4,
	discount_amount = $5,
	service_charge = $6,
	tax_amount = $7,
	total_amount = $8,
	updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderTotalsParams struct {
	ID                uuid.UUID
	Subtotal          pgtype.Numeric
	PromotionDiscount pgtype.Numeric
	RuleDiscount      pgtype.Numeric
	DiscountAmount    pgtype.Numeric
	ServiceCharge     pgtype.Numeric
	TaxAmount         pgtype.Numeric
	TotalAmount       pgtype.Numeric
}

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderTotals,
		arg.ID,
		arg.Subtotal,
		arg.PromotionDiscount,
		arg.RuleDiscount,
		arg.DiscountAmount,
		arg.ServiceCharge,
		arg.TaxAmount,
		arg.TotalAmount,
	))
}

const cancelOrder = `-- name: CancelOrder :one
UPDATE orders SET status = 'cancelled', updated_at = now()
WHERE id = $1 AND status NOT IN ('paid', 'cancelled')
RETURNING ` + orderColumns

func (q *Queries) CancelOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrder, id))
}

const softDeleteOrder = `-- name: SoftDeleteOrder :one
UPDATE orders SET is_deleted = true, updated_at = now()
WHERE id = $1 AND status IN ('paid', 'cancelled')
RETURNING ` + orderColumns

func (q *Queries) SoftDeleteOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, softDeleteOrder, id))
}

const deleteOrder = `-- name: DeleteOrder :execrows
DELETE FROM orders WHERE id = $1
`

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrder, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
