package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tablepos/engine/internal/enum"
)

// Line is the working pricing unit: one menu item at one guest position.
// After resolution LineTotal == UnitPrice * ChargedQty and ChargedQty <= Quantity.
type Line struct {
	// ID is uuid.Nil for lines that are not persisted yet.
	ID           uuid.UUID
	MenuItemID   uuid.UUID
	Name         string
	CategoryID   uuid.UUID
	CategoryName string
	Quantity     int32
	Guest        int32
	Note         string

	// BasePrice is the menu price copied when the line was first placed.
	BasePrice  decimal.Decimal
	UnitPrice  decimal.Decimal
	ChargedQty int32
	LineTotal  decimal.Decimal

	// AutoAddedBy names the rule that synthesised the line.
	AutoAddedBy string
}

// FreeQty is the number of units made free by rules.
func (l Line) FreeQty() int32 {
	return l.Quantity - l.ChargedQty
}

// MenuItem is the catalog view the resolver needs for auto-added lines.
type MenuItem struct {
	ID           uuid.UUID
	Name         string
	CategoryID   uuid.UUID
	CategoryName string
	Price        decimal.Decimal
	Active       bool
}

// Catalog indexes menu items by id.
type Catalog map[uuid.UUID]MenuItem

// Context is the order-level state rules are evaluated against.
type Context struct {
	OrderType string
	Role      string
	TableID   string
	// Now must already be in the restaurant's local time zone.
	Now time.Time
}

// reset prices the line at its base price with every unit charged.
func reset(l Line) Line {
	l.UnitPrice = l.BasePrice
	l.ChargedQty = l.Quantity
	l.LineTotal = l.UnitPrice.Mul(decimal.NewFromInt32(l.ChargedQty))
	return l
}

func (l *Line) reprice() {
	if l.ChargedQty <= 0 {
		l.ChargedQty = 0
		l.UnitPrice = decimal.Zero
	}
	l.LineTotal = l.UnitPrice.Mul(decimal.NewFromInt32(l.ChargedQty))
}

func (l Line) targets(kind string, id uuid.UUID) bool {
	if kind == enum.TargetCategory {
		return l.CategoryID == id
	}
	return l.MenuItemID == id
}

// Subtotal sums line totals.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal)
	}
	return sum
}
