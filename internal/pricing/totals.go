package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tablepos/engine/internal/enum"
)

// TotalsInput combines priced lines with every discount source and the
// percentage settings.
type TotalsInput struct {
	Lines             []Line
	ManualDiscount    decimal.Decimal
	PromotionDiscount decimal.Decimal
	RuleDiscount      decimal.Decimal
	ServicePercent    decimal.Decimal
	TaxPercent        decimal.Decimal
}

// Totals are unrounded; round only when presenting.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	ServiceCharge  decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

// CalculateTotals applies the discount clamp, then service charge, then tax on
// the discounted amount plus service charge.
func CalculateTotals(in TotalsInput) Totals {
	subtotal := Subtotal(in.Lines)

	discount := in.ManualDiscount.Add(in.PromotionDiscount).Add(in.RuleDiscount)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	base := subtotal.Sub(discount)
	service := base.Mul(in.ServicePercent).Div(hundred)
	tax := base.Add(service).Mul(in.TaxPercent).Div(hundred)

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		ServiceCharge:  service,
		TaxAmount:      tax,
		Total:          base.Add(service).Add(tax),
	}
}

// Promotion is a scheduled discount campaign. Empty CategoryIDs and ItemIDs
// scope it to the whole order. Zero StartsAt/EndsAt leave that side open.
type Promotion struct {
	ID          uuid.UUID
	Name        string
	Type        string
	Amount      decimal.Decimal
	Active      bool
	StartsAt    time.Time
	EndsAt      time.Time
	CategoryIDs []uuid.UUID
	ItemIDs     []uuid.UUID
}

// Running reports whether p is active at t.
func (p Promotion) Running(t time.Time) bool {
	if !p.Active {
		return false
	}
	if !p.StartsAt.IsZero() && t.Before(p.StartsAt) {
		return false
	}
	if !p.EndsAt.IsZero() && t.After(p.EndsAt) {
		return false
	}
	return true
}

func (p Promotion) covers(l Line) bool {
	if len(p.CategoryIDs) == 0 && len(p.ItemIDs) == 0 {
		return true
	}
	for _, id := range p.ItemIDs {
		if l.MenuItemID == id {
			return true
		}
	}
	for _, id := range p.CategoryIDs {
		if l.CategoryID == id {
			return true
		}
	}
	return false
}

// AppliedPromotion is one promotion's contribution to an order.
type AppliedPromotion struct {
	PromotionID uuid.UUID
	Name        string
	Amount      decimal.Decimal
}

// ApplyPromotions computes each running promotion's discount, clamped to its
// own eligible subtotal, and the sum across promotions. The sum is clamped
// against the order subtotal later, together with the other discounts.
func ApplyPromotions(promos []Promotion, lines []Line, now time.Time) ([]AppliedPromotion, decimal.Decimal) {
	var applied []AppliedPromotion
	total := decimal.Zero
	for _, p := range promos {
		if !p.Running(now) || !p.Amount.IsPositive() {
			continue
		}
		eligible := decimal.Zero
		for _, l := range lines {
			if p.covers(l) {
				eligible = eligible.Add(l.LineTotal)
			}
		}
		if !eligible.IsPositive() {
			continue
		}
		amount := p.Amount
		if p.Type == enum.DiscountTypePercent {
			amount = eligible.Mul(p.Amount).Div(hundred)
		}
		if amount.GreaterThan(eligible) {
			amount = eligible
		}
		applied = append(applied, AppliedPromotion{PromotionID: p.ID, Name: p.Name, Amount: amount})
		total = total.Add(amount)
	}
	return applied, total
}
