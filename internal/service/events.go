package service

import "github.com/tablepos/engine/internal/database"

// Event kinds emitted after a successful commit.
const (
	EventOrderChanged  = "order.changed"
	EventKitchenTicket = "kitchen.ticket"
)

// Event is a post-commit side effect. Mutations return their events instead of
// performing them; callers dispatch them and swallow failures.
type Event struct {
	Kind  string
	Order database.Order
	// Lines is set on kitchen tickets and holds only lines the kitchen has
	// not seen yet.
	Lines []database.OrderLine
	// Print carries print overrides merged from the rules that fired.
	Print map[string]any
}

func orderChanged(o database.Order) Event {
	return Event{Kind: EventOrderChanged, Order: o}
}

func kitchenTicket(o database.Order, lines []database.OrderLine, overrides map[string]any) Event {
	return Event{Kind: EventKitchenTicket, Order: o, Lines: lines, Print: overrides}
}
