package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tablepos/engine/internal/enum"
)

var hundred = decimal.NewFromInt(100)

// Result is the output of one pricing pass.
type Result struct {
	Lines        []Line
	RuleDiscount decimal.Decimal
	// Applied lists the names of rules that fired, in evaluation order.
	Applied []string
	// Print merges print overrides of the fired rules; later rules win.
	Print map[string]any
}

// Resolve prices lines against rules. The input slice is not modified and
// every line is repriced from its BasePrice, so running Resolve twice on the
// same input yields the same Result.
//
// Rules are visited once each in ascending priority. A matching rule applies
// its free-item grants, then discounts, then auto-added lines; lines it adds
// are visible to the rules after it. A matching "first" rule ends the pass.
// When rules is empty the house default applies instead.
func Resolve(lines []Line, rules []Rule, catalog Catalog, ctx Context) Result {
	work := make([]Line, len(lines))
	for i, l := range lines {
		work[i] = reset(l)
	}

	res := Result{RuleDiscount: decimal.Zero}
	if len(rules) == 0 {
		if applyHouseDefault(work) {
			res.Applied = append(res.Applied, HouseRuleName)
		}
		res.Lines = work
		return res
	}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		ok, matched := evaluate(rule.Conditions, work, ctx)
		if !ok {
			continue
		}

		for _, g := range rule.Actions.FreeItems {
			allowance := g.FreeQty
			if g.PerMatchedItem {
				allowance = matched
			}
			grantFree(work, g.Kind, g.ID, allowance)
		}
		for _, g := range rule.Actions.Discounts {
			res.RuleDiscount = res.RuleDiscount.Add(discountFor(work, g))
		}
		work = addItems(work, rule, catalog)

		if len(rule.Actions.Print) > 0 {
			if res.Print == nil {
				res.Print = make(map[string]any, len(rule.Actions.Print))
			}
			for k, v := range rule.Actions.Print {
				res.Print[k] = v
			}
		}
		res.Applied = append(res.Applied, rule.Name)

		if rule.ApplyMode == enum.RuleApplyFirst {
			break
		}
	}

	res.Lines = work
	return res
}

// grantFree consumes allowance across target lines in line order. It never
// frees more than a line's charged quantity and skips lines already free.
func grantFree(lines []Line, kind string, id uuid.UUID, allowance int64) {
	for i := range lines {
		if allowance <= 0 {
			return
		}
		l := &lines[i]
		if !l.targets(kind, id) || l.ChargedQty <= 0 || !l.UnitPrice.IsPositive() {
			continue
		}
		take := int64(l.ChargedQty)
		if allowance < take {
			take = allowance
		}
		l.ChargedQty -= int32(take)
		allowance -= take
		l.reprice()
	}
}

// discountFor computes a grant's discount clamped to its eligible subtotal.
func discountFor(lines []Line, g DiscountGrant) decimal.Decimal {
	eligible := decimal.Zero
	for _, l := range lines {
		switch g.Scope {
		case enum.DiscountScopeCategory:
			if l.CategoryID != g.TargetID {
				continue
			}
		case enum.DiscountScopeItem:
			if l.MenuItemID != g.TargetID {
				continue
			}
		}
		eligible = eligible.Add(l.LineTotal)
	}
	if !eligible.IsPositive() {
		return decimal.Zero
	}

	amount := g.Amount
	if g.Type == enum.DiscountTypePercent {
		amount = eligible.Mul(g.Amount).Div(hundred)
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(eligible) {
		return eligible
	}
	return amount
}

func addItems(lines []Line, rule Rule, catalog Catalog) []Line {
	for _, g := range rule.Actions.AddItems {
		item, ok := catalog[g.ItemID]
		if !ok || !item.Active {
			continue
		}
		price := item.Price
		if g.Free {
			price = decimal.Zero
		}
		lines = append(lines, reset(Line{
			MenuItemID:   item.ID,
			Name:         item.Name,
			CategoryID:   item.CategoryID,
			CategoryName: item.CategoryName,
			Quantity:     g.Qty,
			Guest:        g.Guest,
			Note:         g.Note,
			BasePrice:    price,
			AutoAddedBy:  rule.Name,
		}))
	}
	return lines
}

// AutoAddItemIDs lists the menu items rules may add, so callers can load
// exactly the catalog entries Resolve needs.
func AutoAddItemIDs(rules []Rule) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, r := range rules {
		for _, g := range r.Actions.AddItems {
			if !seen[g.ItemID] {
				seen[g.ItemID] = true
				ids = append(ids, g.ItemID)
			}
		}
	}
	return ids
}
