package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
	Active    bool      `json:"active"`
}

type MenuItem struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
	CategoryID uuid.UUID      `json:"category_id"`
	Active     bool           `json:"active"`
}

// MenuItemWithCategory is a menu item joined with its category.
type MenuItemWithCategory struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	Price          pgtype.Numeric `json:"price"`
	Active         bool           `json:"active"`
	CategoryID     uuid.UUID      `json:"category_id"`
	CategoryName   string         `json:"category_name"`
	CategoryActive bool           `json:"category_active"`
}

type Order struct {
	ID                uuid.UUID      `json:"id"`
	OrderNumber       string         `json:"order_number"`
	OrderType         string         `json:"order_type"`
	TableID           pgtype.UUID    `json:"table_id"`
	Status            string         `json:"status"`
	Subtotal          pgtype.Numeric `json:"subtotal"`
	ManualDiscount    pgtype.Numeric `json:"manual_discount"`
	PromotionDiscount pgtype.Numeric `json:"promotion_discount"`
	RuleDiscount      pgtype.Numeric `json:"rule_discount"`
	DiscountAmount    pgtype.Numeric `json:"discount_amount"`
	ServiceCharge     pgtype.Numeric `json:"service_charge"`
	TaxAmount         pgtype.Numeric `json:"tax_amount"`
	TotalAmount       pgtype.Numeric `json:"total_amount"`
	Notes             pgtype.Text    `json:"notes"`
	IsDeleted         bool           `json:"is_deleted"`
	OpenedBy          uuid.UUID      `json:"opened_by"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// OrderLine stores the item name, category and base price as they were when
// the line was placed.
type OrderLine struct {
	ID              uuid.UUID      `json:"id"`
	OrderID         uuid.UUID      `json:"order_id"`
	MenuItemID      uuid.UUID      `json:"menu_item_id"`
	ItemName        string         `json:"item_name"`
	CategoryID      uuid.UUID      `json:"category_id"`
	CategoryName    string         `json:"category_name"`
	Quantity        int32          `json:"quantity"`
	ChargedQuantity int32          `json:"charged_quantity"`
	Guest           int32          `json:"guest"`
	Note            pgtype.Text    `json:"note"`
	BasePrice       pgtype.Numeric `json:"base_price"`
	UnitPrice       pgtype.Numeric `json:"unit_price"`
	LineTotal       pgtype.Numeric `json:"line_total"`
	AutoAddedBy     pgtype.Text    `json:"auto_added_by"`
	CreatedAt       time.Time      `json:"created_at"`
}

type Payment struct {
	ID        uuid.UUID      `json:"id"`
	OrderID   uuid.UUID      `json:"order_id"`
	Amount    pgtype.Numeric `json:"amount"`
	Method    string         `json:"method"`
	Kind      string         `json:"kind"`
	Note      pgtype.Text    `json:"note"`
	CreatedBy uuid.UUID      `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
}

type Promotion struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	Amount      pgtype.Numeric     `json:"amount"`
	Active      bool               `json:"active"`
	StartsAt    pgtype.Timestamptz `json:"starts_at"`
	EndsAt      pgtype.Timestamptz `json:"ends_at"`
	CategoryIDs []uuid.UUID        `json:"category_ids"`
	ItemIDs     []uuid.UUID        `json:"item_ids"`
}

type OrderPromotion struct {
	OrderID     uuid.UUID      `json:"order_id"`
	PromotionID uuid.UUID      `json:"promotion_id"`
	Amount      pgtype.Numeric `json:"amount"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type User struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	PinHash      pgtype.Text `json:"-"`
	Role         string      `json:"role"`
	Active       bool        `json:"active"`
}
