package pricing

import (
	"sort"
	"strings"
)

// HouseRuleName labels the built-in soup policy in Result.Applied.
const HouseRuleName = "house:free-soup"

// Main dishes that earn a free soup under the house policy.
var qualifyingMainKeywords = []string{"qozi", "quzi", "mandi", "kabsa"}

// Category name fragments that identify soups.
var soupKeywords = []string{"soup", "shorba", "شوربة"}

// IsSoupCategory reports whether a category name looks like a soup category.
func IsSoupCategory(name string) bool {
	return containsAny(name, soupKeywords)
}

// IsQualifyingMain reports whether a menu item name is on the house main-dish list.
func IsQualifyingMain(name string) bool {
	return containsAny(name, qualifyingMainKeywords)
}

func containsAny(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// applyHouseDefault frees one soup unit per qualifying main unit, cheapest
// soup lines first. It reports whether any unit was freed.
func applyHouseDefault(lines []Line) bool {
	var mains int64
	var soups []int
	for i, l := range lines {
		if IsQualifyingMain(l.Name) {
			mains += int64(l.Quantity)
		}
		if IsSoupCategory(l.CategoryName) {
			soups = append(soups, i)
		}
	}
	if mains == 0 || len(soups) == 0 {
		return false
	}

	sort.SliceStable(soups, func(a, b int) bool {
		return lines[soups[a]].UnitPrice.LessThan(lines[soups[b]].UnitPrice)
	})

	freed := false
	for _, idx := range soups {
		if mains <= 0 {
			break
		}
		l := &lines[idx]
		if l.ChargedQty <= 0 || !l.UnitPrice.IsPositive() {
			continue
		}
		take := int64(l.ChargedQty)
		if mains < take {
			take = mains
		}
		l.ChargedQty -= int32(take)
		mains -= take
		l.reprice()
		freed = true
	}
	return freed
}
