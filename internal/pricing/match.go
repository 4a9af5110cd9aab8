package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tablepos/engine/internal/enum"
)

// Matches reports whether rule's conditions hold for lines in ctx.
// A rule without any conditions always matches.
func Matches(rule Rule, lines []Line, ctx Context) bool {
	ok, _ := evaluate(rule.Conditions, lines, ctx)
	return ok
}

// evaluate also returns the quantity summed over the item conditions that
// held, which drives per-matched-item free grants.
func evaluate(c Conditions, lines []Line, ctx Context) (bool, int64) {
	var (
		checks  []bool
		matched int64
	)

	for _, ic := range c.Items {
		qty := sumQuantity(lines, ic.Kind, ic.ID)
		held := qty >= ic.MinQty
		if held {
			matched += qty
		}
		checks = append(checks, held)
	}
	if len(c.OrderTypes) > 0 {
		checks = append(checks, containsFold(c.OrderTypes, ctx.OrderType))
	}
	if len(c.Roles) > 0 {
		checks = append(checks, containsFold(c.Roles, ctx.Role))
	}
	if len(c.Tables) > 0 {
		checks = append(checks, containsFold(c.Tables, ctx.TableID))
	}
	if len(c.Days) > 0 {
		checks = append(checks, containsDay(c.Days, ctx.Now.Weekday()))
	}
	// A window that does not parse is no constraint at all, not a passing one.
	if c.Time != nil && c.Time.valid() {
		checks = append(checks, InWindow(*c.Time, ctx.Now))
	}

	if len(checks) == 0 {
		return true, 0
	}
	if c.Match == enum.RuleMatchAny {
		for _, ok := range checks {
			if ok {
				return true, matched
			}
		}
		return false, matched
	}
	for _, ok := range checks {
		if !ok {
			return false, matched
		}
	}
	return true, matched
}

func sumQuantity(lines []Line, kind string, id uuid.UUID) int64 {
	var sum int64
	for _, l := range lines {
		if l.targets(kind, id) {
			sum += int64(l.Quantity)
		}
	}
	return sum
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func containsDay(days []int, wd time.Weekday) bool {
	for _, d := range days {
		if d == int(wd) {
			return true
		}
	}
	return false
}

// InWindow reports whether t's clock time falls inside w. Both ends are
// inclusive and a window whose start is after its end wraps past midnight.
// Malformed bounds fail open.
func InWindow(w TimeWindow, t time.Time) bool {
	start, ok1 := clockMinutes(w.Start)
	end, ok2 := clockMinutes(w.End)
	if !ok1 || !ok2 {
		return true
	}
	now := t.Hour()*60 + t.Minute()
	if start <= end {
		return now >= start && now <= end
	}
	return now >= start || now <= end
}

func (w TimeWindow) valid() bool {
	_, ok1 := clockMinutes(w.Start)
	_, ok2 := clockMinutes(w.End)
	return ok1 && ok2
}

func clockMinutes(s string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
