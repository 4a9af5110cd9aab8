package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, amount, method, kind, note, created_by, created_at`

func scanPayment(row rowScanner) (Payment, error) {
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Amount,
		&i.Method,
		&i.Kind,
		&i.Note,
		&i.CreatedBy,
		&i.CreatedAt,
	)
	return i, err
}

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments (order_id, amount, method, kind, note, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	OrderID   uuid.UUID
	Amount    pgtype.Numeric
	Method    string
	Kind      string
	Note      pgtype.Text
	CreatedBy uuid.UUID
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, createPayment,
		arg.OrderID,
		arg.Amount,
		arg.Method,
		arg.Kind,
		arg.Note,
		arg.CreatedBy,
	))
}

const listPaymentsByOrder = `-- name: ListPaymentsByOrder :many
SELECT ` + paymentColumns + ` FROM payments
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		i, err := scanPayment(rows)
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

const sumPaymentsByOrder = `-- name: SumPaymentsByOrder :one
SELECT
	COALESCE(SUM(amount) FILTER (WHERE kind = 'payment'), 0)::numeric AS paid,
	COALESCE(SUM(amount) FILTER (WHERE kind = 'refund'), 0)::numeric AS refunded
FROM payments
WHERE order_id = $1
`

type SumPaymentsByOrderRow struct {
	Paid     pgtype.Numeric
	Refunded pgtype.Numeric
}

func (q *Queries) SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (SumPaymentsByOrderRow, error) {
	row := q.db.QueryRow(ctx, sumPaymentsByOrder, orderID)
	var i SumPaymentsByOrderRow
	err := row.Scan(&i.Paid, &i.Refunded)
	return i, err
}

const deletePaymentsByOrder = `-- name: DeletePaymentsByOrder :exec
DELETE FROM payments WHERE order_id = $1
`

// DeletePaymentsByOrder is only used by the admin hard delete cascade.
func (q *Queries) DeletePaymentsByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deletePaymentsByOrder, orderID)
	return err
}
