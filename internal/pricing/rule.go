package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/tablepos/engine/internal/enum"
)

const (
	defaultPriority = 100
	maxAutoAddQty   = 99
	maxGuest        = 20
)

// Rule is the canonical, fully typed form of an operator-configured pricing rule.
type Rule struct {
	Name       string
	Enabled    bool
	Priority   int
	ApplyMode  string
	Conditions Conditions
	Actions    Actions
}

// Conditions are evaluated against the candidate lines and the order context.
// Empty lists mean "no constraint".
type Conditions struct {
	Match      string
	Items      []ItemCondition
	OrderTypes []string
	Roles      []string
	Tables     []string
	Days       []int
	Time       *TimeWindow
}

// ItemCondition holds when the summed quantity of matching lines reaches MinQty.
type ItemCondition struct {
	Kind   string
	ID     uuid.UUID
	MinQty int64
}

// TimeWindow is an inclusive HH:MM window; Start > End wraps past midnight.
type TimeWindow struct {
	Start string
	End   string
}

type Actions struct {
	FreeItems []FreeItemGrant
	Discounts []DiscountGrant
	AddItems  []AddItemGrant
	Print     map[string]any
}

// FreeItemGrant makes FreeQty units of the target free. With PerMatchedItem the
// allowance equals the quantity that satisfied the rule's item conditions.
type FreeItemGrant struct {
	Kind           string
	ID             uuid.UUID
	FreeQty        int64
	PerMatchedItem bool
}

type DiscountGrant struct {
	Type     string
	Amount   decimal.Decimal
	Scope    string
	TargetID uuid.UUID
}

type AddItemGrant struct {
	ItemID uuid.UUID
	Qty    int32
	Free   bool
	Note   string
	Guest  int32
}

// ParseRules decodes a JSON rule document and normalizes it. Invalid JSON
// yields no rules.
func ParseRules(data []byte) []Rule {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil
	}
	return NormalizeRules(raw)
}

// NormalizeRules converts loosely typed rule input into canonical rules sorted
// ascending by priority (stable). Entries that are not objects are dropped and
// malformed fields fall back to their defaults; it never fails.
func NormalizeRules(raw any) []Rule {
	var entries []any
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		entries = v
	case []map[string]any:
		for _, m := range v {
			entries = append(entries, m)
		}
	case map[string]any:
		// A single rule object or a {"rules": [...]} envelope.
		if inner, ok := v["rules"]; ok {
			return NormalizeRules(inner)
		}
		entries = []any{v}
	case string:
		return ParseRules([]byte(v))
	default:
		return nil
	}

	rules := make([]Rule, 0, len(entries))
	for i, entry := range entries {
		if entry == nil {
			continue
		}
		m, err := cast.ToStringMapE(entry)
		if err != nil {
			continue
		}
		rules = append(rules, normalizeRule(m, i))
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})
	return rules
}

func normalizeRule(m map[string]any, idx int) Rule {
	r := Rule{
		Name:      str(m, "name"),
		Enabled:   boolean(m, true, "enabled"),
		Priority:  integer(m, defaultPriority, "priority"),
		ApplyMode: enum.RuleApplyStack,
	}
	if r.Name == "" {
		r.Name = fmt.Sprintf("rule-%d", idx+1)
	}
	if strings.EqualFold(str(m, "applyMode", "apply_mode"), enum.RuleApplyFirst) {
		r.ApplyMode = enum.RuleApplyFirst
	}
	r.Conditions = normalizeConditions(object(m, "conditions"))
	r.Actions = normalizeActions(object(m, "actions"))
	return r
}

func normalizeConditions(m map[string]any) Conditions {
	c := Conditions{Match: enum.RuleMatchAll}
	if strings.EqualFold(str(m, "match"), enum.RuleMatchAny) {
		c.Match = enum.RuleMatchAny
	}

	for _, entry := range objects(m, "items") {
		id, ok := uuidField(entry, "id")
		if !ok {
			continue
		}
		minQty := int64(integer(entry, 1, "minQty", "min_qty"))
		if minQty < 1 {
			minQty = 1
		}
		c.Items = append(c.Items, ItemCondition{
			Kind:   targetKind(str(entry, "kind")),
			ID:     id,
			MinQty: minQty,
		})
	}

	c.OrderTypes = lowerStrings(m, "orderTypes", "order_types")
	c.Roles = lowerStrings(m, "roles")
	c.Tables = lowerStrings(m, "tables")

	for _, v := range list(m, "days") {
		d, err := cast.ToIntE(scalar(v))
		if err != nil || d < 0 || d > 6 {
			continue
		}
		c.Days = append(c.Days, d)
	}

	if tw := object(m, "time"); tw != nil {
		c.Time = &TimeWindow{Start: str(tw, "start"), End: str(tw, "end")}
	}
	return c
}

func normalizeActions(m map[string]any) Actions {
	var a Actions

	for _, entry := range objects(m, "freeItems", "free_items") {
		id, ok := uuidField(entry, "id")
		if !ok {
			continue
		}
		qty := int64(integer(entry, 1, "freeQty", "free_qty"))
		if qty < 0 {
			qty = 0
		}
		a.FreeItems = append(a.FreeItems, FreeItemGrant{
			Kind:           targetKind(str(entry, "kind")),
			ID:             id,
			FreeQty:        qty,
			PerMatchedItem: boolean(entry, false, "perMatchedItem", "per_matched_item"),
		})
	}

	for _, entry := range objects(m, "discounts") {
		g := DiscountGrant{
			Type:  strings.ToLower(str(entry, "type")),
			Scope: strings.ToLower(str(entry, "scope")),
		}
		if g.Type != enum.DiscountTypePercent && g.Type != enum.DiscountTypeFixed {
			continue
		}
		amount, ok := decimalField(entry, "amount")
		if !ok || !amount.IsPositive() {
			continue
		}
		g.Amount = amount
		switch g.Scope {
		case enum.DiscountScopeCategory, enum.DiscountScopeItem:
			id, ok := uuidField(entry, "targetId", "target_id")
			if !ok {
				continue
			}
			g.TargetID = id
		default:
			g.Scope = enum.DiscountScopeOrder
		}
		a.Discounts = append(a.Discounts, g)
	}

	for _, entry := range objects(m, "addItems", "add_items") {
		id, ok := uuidField(entry, "itemId", "item_id")
		if !ok {
			continue
		}
		a.AddItems = append(a.AddItems, AddItemGrant{
			ItemID: id,
			Qty:    int32(clamp(integer(entry, 1, "qty", "quantity"), 1, maxAutoAddQty)),
			Free:   boolean(entry, false, "free"),
			Note:   str(entry, "note"),
			Guest:  int32(clamp(integer(entry, 1, "guest"), 1, maxGuest)),
		})
	}

	if p := object(m, "print"); len(p) > 0 {
		a.Print = p
	}
	return a
}

// --- loose field accessors ---

func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// scalar unwraps json.Number so cast sees a plain string.
func scalar(v any) any {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return v
}

func str(m map[string]any, keys ...string) string {
	v, ok := lookup(m, keys...)
	if !ok {
		return ""
	}
	s, err := cast.ToStringE(scalar(v))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// integer reads a whole number. Values outside the int32 range fall back to
// def, as do values that are not numbers.
func integer(m map[string]any, def int, keys ...string) int {
	v, ok := lookup(m, keys...)
	if !ok {
		return def
	}
	var d decimal.Decimal
	switch v := scalar(v).(type) {
	case string:
		// cast rejects "2.0"; go through decimal so numeric strings are accepted.
		parsed, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		d = parsed
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return def
		}
		d = decimal.NewFromFloat(f)
	}
	d = d.Truncate(0)
	if d.LessThan(minInteger) || d.GreaterThan(maxInteger) {
		return def
	}
	return int(d.IntPart())
}

var (
	minInteger = decimal.NewFromInt(math.MinInt32)
	maxInteger = decimal.NewFromInt(math.MaxInt32)
)

func boolean(m map[string]any, def bool, keys ...string) bool {
	v, ok := lookup(m, keys...)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(scalar(v))
	if err != nil {
		return def
	}
	return b
}

func decimalField(m map[string]any, keys ...string) (decimal.Decimal, bool) {
	v, ok := lookup(m, keys...)
	if !ok {
		return decimal.Zero, false
	}
	switch t := scalar(v).(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	default:
		f, err := cast.ToFloat64E(t)
		if err != nil {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(f), true
	}
}

func uuidField(m map[string]any, keys ...string) (uuid.UUID, bool) {
	s := str(m, keys...)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func object(m map[string]any, keys ...string) map[string]any {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil
	}
	obj, err := cast.ToStringMapE(v)
	if err != nil {
		return nil
	}
	return obj
}

func list(m map[string]any, keys ...string) []any {
	v, ok := lookup(m, keys...)
	if !ok {
		return nil
	}
	l, err := cast.ToSliceE(v)
	if err != nil {
		return nil
	}
	return l
}

func objects(m map[string]any, keys ...string) []map[string]any {
	var out []map[string]any
	for _, v := range list(m, keys...) {
		obj, err := cast.ToStringMapE(v)
		if err != nil || obj == nil {
			continue
		}
		out = append(out, obj)
	}
	return out
}

func lowerStrings(m map[string]any, keys ...string) []string {
	var out []string
	for _, v := range list(m, keys...) {
		s, err := cast.ToStringE(scalar(v))
		if err != nil {
			continue
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func targetKind(s string) string {
	if strings.EqualFold(s, enum.TargetCategory) {
		return enum.TargetCategory
	}
	return enum.TargetItem
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
