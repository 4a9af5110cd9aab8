// Package ticket renders kitchen tickets from order lines.
package ticket

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/enum"
)

const (
	defaultTitle = "KITCHEN"
	maxCopies    = 5
	width        = 32
)

// Ticket is a kitchen ticket for one batch of lines.
type Ticket struct {
	OrderID     uuid.UUID
	OrderNumber string
	OrderType   string
	TableID     string
	Title       string
	Copies      int
	HidePrices  bool
	Guests      []Guest
	CreatedAt   time.Time
}

// Guest groups the lines of one guest position.
type Guest struct {
	Number int32
	Lines  []Line
}

// Line is one printed item.
type Line struct {
	Name      string
	Quantity  int32
	Free      int32
	Note      string
	LineTotal decimal.Decimal
}

// New builds a ticket. overrides may set "title", "copies" and "hide_prices".
func New(order database.Order, lines []database.OrderLine, overrides map[string]any, now time.Time) Ticket {
	t := Ticket{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OrderType:   order.OrderType,
		Title:       defaultTitle,
		Copies:      1,
		CreatedAt:   now,
	}
	if order.TableID.Valid {
		t.TableID = uuid.UUID(order.TableID.Bytes).String()
	}

	if v, ok := overrides["title"]; ok {
		if s := strings.TrimSpace(cast.ToString(v)); s != "" {
			t.Title = s
		}
	}
	if v, ok := overrides["copies"]; ok {
		if n := cast.ToInt(v); n > 0 {
			t.Copies = min(n, maxCopies)
		}
	}
	if v, ok := overrides["hide_prices"]; ok {
		t.HidePrices = cast.ToBool(v)
	} else if v, ok := overrides["hidePrices"]; ok {
		t.HidePrices = cast.ToBool(v)
	}

	byGuest := make(map[int32][]Line)
	for _, l := range lines {
		guest := l.Guest
		if guest < 1 {
			guest = 1
		}
		byGuest[guest] = append(byGuest[guest], Line{
			Name:      l.ItemName,
			Quantity:  l.Quantity,
			Free:      l.Quantity - l.ChargedQuantity,
			Note:      l.Note.String,
			LineTotal: database.ToDecimal(l.LineTotal),
		})
	}
	for g, ls := range byGuest {
		t.Guests = append(t.Guests, Guest{Number: g, Lines: ls})
	}
	sort.Slice(t.Guests, func(i, j int) bool { return t.Guests[i].Number < t.Guests[j].Number })
	return t
}

// Render formats the ticket as plain text for a narrow receipt printer.
func (t Ticket) Render() string {
	var b strings.Builder
	rule := strings.Repeat("-", width)

	fmt.Fprintf(&b, "%s\n", center(t.Title))
	fmt.Fprintf(&b, "%s  %s\n", t.OrderNumber, orderTypeLabel(t.OrderType))
	if t.TableID != "" {
		fmt.Fprintf(&b, "Table %s\n", shortID(t.TableID))
	}
	fmt.Fprintf(&b, "%s\n", t.CreatedAt.Format("2006-01-02 15:04"))

	for _, g := range t.Guests {
		fmt.Fprintf(&b, "%s\nGuest %d\n", rule, g.Number)
		for _, l := range g.Lines {
			line := fmt.Sprintf("%dx %s", l.Quantity, l.Name)
			if !t.HidePrices {
				line = fmt.Sprintf("%-24s%8s", line, l.LineTotal.StringFixed(2))
			}
			b.WriteString(strings.TrimRight(line, " "))
			b.WriteByte('\n')
			if l.Free > 0 {
				fmt.Fprintf(&b, "   (%d free)\n", l.Free)
			}
			if l.Note != "" {
				fmt.Fprintf(&b, "   * %s\n", l.Note)
			}
		}
	}
	b.WriteString(rule)
	b.WriteByte('\n')
	return b.String()
}

// Printer sends a ticket to a physical or virtual printer.
type Printer interface {
	Print(ctx context.Context, t Ticket) error
}

// LogPrinter writes tickets to the log. It stands in for a receipt printer
// in development and on terminals without one attached.
type LogPrinter struct {
	Logger zerolog.Logger
}

func (p LogPrinter) Print(ctx context.Context, t Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := t.Render()
	for i := 1; i <= t.Copies; i++ {
		p.Logger.Info().
			Str("order_id", t.OrderID.String()).
			Str("order_number", t.OrderNumber).
			Int("copy", i).
			Msg("kitchen ticket\n" + text)
	}
	return nil
}

func orderTypeLabel(s string) string {
	switch s {
	case enum.OrderTypeDineIn:
		return "DINE IN"
	case enum.OrderTypeTakeaway:
		return "TAKEAWAY"
	}
	return strings.ToUpper(s)
}

func center(s string) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", (width-len(s))/2) + s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
