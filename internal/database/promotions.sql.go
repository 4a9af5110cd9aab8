package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listActivePromotions = `-- name: ListActivePromotions :many
SELECT id, name, type, amount, active, starts_at, ends_at, category_ids, item_ids
FROM promotions
WHERE active
  AND (starts_at IS NULL OR starts_at <= $1)
  AND (ends_at IS NULL OR ends_at >= $1)
ORDER BY created_at, id
`

func (q *Queries) ListActivePromotions(ctx context.Context, now time.Time) ([]Promotion, error) {
	rows, err := q.db.Query(ctx, listActivePromotions, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Promotion
	for rows.Next() {
		var i Promotion
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Type,
			&i.Amount,
			&i.Active,
			&i.StartsAt,
			&i.EndsAt,
			&i.CategoryIDs,
			&i.ItemIDs,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrderPromotion = `-- name: CreateOrderPromotion :exec
INSERT INTO order_promotions (order_id, promotion_id, amount) VALUES ($1, $2, $3)
`

type CreateOrderPromotionParams struct {
	OrderID     uuid.UUID
	PromotionID uuid.UUID
	Amount      pgtype.Numeric
}

func (q *Queries) CreateOrderPromotion(ctx context.Context, arg CreateOrderPromotionParams) error {
	_, err := q.db.Exec(ctx, createOrderPromotion, arg.OrderID, arg.PromotionID, arg.Amount)
	return err
}

const deleteOrderPromotions = `-- name: DeleteOrderPromotions :exec
DELETE FROM order_promotions WHERE order_id = $1
`

func (q *Queries) DeleteOrderPromotions(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderPromotions, orderID)
	return err
}
