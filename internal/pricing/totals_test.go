package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tablepos/engine/internal/enum"
)

func priced(total string) Line {
	d := dec(total)
	return Line{Quantity: 1, ChargedQty: 1, UnitPrice: d, LineTotal: d}
}

func assertTotalsIdentity(t *testing.T, tot Totals) {
	t.Helper()
	if tot.DiscountAmount.IsNegative() || tot.DiscountAmount.GreaterThan(tot.Subtotal) {
		t.Errorf("discount %s outside [0, %s]", tot.DiscountAmount, tot.Subtotal)
	}
	want := tot.Subtotal.Sub(tot.DiscountAmount).Add(tot.ServiceCharge).Add(tot.TaxAmount)
	if !tot.Total.Equal(want) {
		t.Errorf("total %s != %s", tot.Total, want)
	}
}

func TestCalculateTotals_TaxOnServiceCharge(t *testing.T) {
	tot := CalculateTotals(TotalsInput{
		Lines:          []Line{priced("60"), priced("40")},
		ManualDiscount: dec("10"),
		RuleDiscount:   dec("10"),
		ServicePercent: dec("10"),
		TaxPercent:     dec("5"),
	})

	// base 80, service 8, tax (80+8)*5% = 4.4
	checks := map[string][2]decimal.Decimal{
		"subtotal": {tot.Subtotal, dec("100")},
		"discount": {tot.DiscountAmount, dec("20")},
		"service":  {tot.ServiceCharge, dec("8")},
		"tax":      {tot.TaxAmount, dec("4.4")},
		"total":    {tot.Total, dec("92.4")},
	}
	for name, c := range checks {
		if !c[0].Equal(c[1]) {
			t.Errorf("%s: got %s, want %s", name, c[0], c[1])
		}
	}
	assertTotalsIdentity(t, tot)
}

func TestCalculateTotals_DiscountClamped(t *testing.T) {
	tot := CalculateTotals(TotalsInput{
		Lines:             []Line{priced("15")},
		ManualDiscount:    dec("10"),
		PromotionDiscount: dec("10"),
		RuleDiscount:      dec("10"),
		ServicePercent:    dec("10"),
		TaxPercent:        dec("10"),
	})
	if !tot.DiscountAmount.Equal(dec("15")) || !tot.Total.IsZero() {
		t.Fatalf("discount should clamp to subtotal, got discount %s total %s", tot.DiscountAmount, tot.Total)
	}

	neg := CalculateTotals(TotalsInput{Lines: []Line{priced("15")}, ManualDiscount: dec("-5")})
	if !neg.DiscountAmount.IsZero() {
		t.Fatalf("negative discount should clamp to zero, got %s", neg.DiscountAmount)
	}
	assertTotalsIdentity(t, tot)
	assertTotalsIdentity(t, neg)
}

func TestCalculateTotals_NoRoundingDrift(t *testing.T) {
	var lines []Line
	for i := 0; i < 25; i++ {
		lines = append(lines, priced("3.333"))
		tot := CalculateTotals(TotalsInput{
			Lines:          lines,
			ManualDiscount: dec("0.01"),
			ServicePercent: dec("12.5"),
			TaxPercent:     dec("7.75"),
		})
		assertTotalsIdentity(t, tot)
	}
}

func TestApplyPromotions_Scoping(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	drinks := uuid.New()
	burger := uuid.New()
	lines := []Line{
		{MenuItemID: uuid.New(), CategoryID: drinks, LineTotal: dec("6")},
		{MenuItemID: burger, CategoryID: uuid.New(), LineTotal: dec("12")},
		{MenuItemID: uuid.New(), CategoryID: uuid.New(), LineTotal: dec("2")},
	}
	promos := []Promotion{
		{ID: uuid.New(), Name: "whole order", Type: enum.DiscountTypePercent, Amount: dec("10"), Active: true},
		{ID: uuid.New(), Name: "drinks", Type: enum.DiscountTypeFixed, Amount: dec("50"), Active: true, CategoryIDs: []uuid.UUID{drinks}},
		{ID: uuid.New(), Name: "burger", Type: enum.DiscountTypePercent, Amount: dec("25"), Active: true, ItemIDs: []uuid.UUID{burger}},
		{ID: uuid.New(), Name: "inactive", Type: enum.DiscountTypeFixed, Amount: dec("1"), Active: false},
		{ID: uuid.New(), Name: "expired", Type: enum.DiscountTypeFixed, Amount: dec("1"), Active: true, EndsAt: now.Add(-time.Hour)},
		{ID: uuid.New(), Name: "upcoming", Type: enum.DiscountTypeFixed, Amount: dec("1"), Active: true, StartsAt: now.Add(time.Hour)},
	}

	applied, total := ApplyPromotions(promos, lines, now)

	// 10% of 20 = 2, min(50, 6) = 6, 25% of 12 = 3
	if len(applied) != 3 {
		t.Fatalf("expected 3 applied promotions, got %+v", applied)
	}
	if !total.Equal(dec("11")) {
		t.Fatalf("total: got %s, want 11", total)
	}
	if !applied[1].Amount.Equal(dec("6")) {
		t.Errorf("fixed promotion should clamp to its eligible subtotal, got %s", applied[1].Amount)
	}
}
