package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tablepos/engine/internal/auth"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/enum"
)

// UserReader looks up the acting user for PIN checks.
type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (database.User, error)
}

// PaymentStore defines the DB methods the payment ledger needs.
// Satisfied by *database.Queries (and its WithTx variant).
type PaymentStore interface {
	SettingsReader
	UserReader
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (database.SumPaymentsByOrderRow, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentRequest records money received.
type PaymentRequest struct {
	Actor  Actor
	Amount string
	Method string
	Note   string
}

// RefundRequest records money returned. PIN is checked when the
// refunds.require_pin setting is on.
type RefundRequest struct {
	Actor  Actor
	Amount string
	Method string
	Note   string
	PIN    string
}

// Balance summarises an order's ledger.
type Balance struct {
	// Total is the order total rounded to cents.
	Total    decimal.Decimal
	Paid     decimal.Decimal
	Refunded decimal.Decimal
	// NetPaid is Paid minus Refunded.
	NetPaid decimal.Decimal
	// Remaining is what is still owed, never negative.
	Remaining decimal.Decimal
	// Refundable is what can still be refunded, never negative.
	Refundable decimal.Decimal
}

// currencyPlaces is the precision money is settled at. Stored totals keep
// full precision; the ledger settles against the displayed cent amount.
const currencyPlaces = 2

func newBalance(total, paid, refunded decimal.Decimal) Balance {
	total = total.Round(currencyPlaces)
	net := paid.Sub(refunded)
	return Balance{
		Total:      total,
		Paid:       paid,
		Refunded:   refunded,
		NetPaid:    net,
		Remaining:  maxZero(total.Sub(net)),
		Refundable: maxZero(net),
	}
}

// LedgerResult is the outcome of a payment or refund.
type LedgerResult struct {
	Payment database.Payment
	Order   database.Order
	Balance Balance
	Events  []Event
}

// Ledger is an order's payment entries with their balance.
type Ledger struct {
	Order    database.Order
	Payments []database.Payment
	Balance  Balance
}

// PaymentService is the append-only payment ledger. Entries are never changed
// or deleted; a refund is a new entry offsetting earlier payments.
type PaymentService struct {
	pool     TxBeginner
	newStore NewPaymentStore
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(pool TxBeginner, newStore NewPaymentStore) *PaymentService {
	return &PaymentService{pool: pool, newStore: newStore}
}

// AddPayment records a payment and marks the order paid once the net paid
// amount covers the total.
func (s *PaymentService) AddPayment(ctx context.Context, orderID uuid.UUID, req PaymentRequest) (*LedgerResult, error) {
	if err := validateMethod(req.Method); err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockOrder(ctx, store, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enum.OrderStatusCancelled {
		return nil, &ClosedOrderError{"cannot record payment on a cancelled order"}
	}

	settings, err := loadSettings(ctx, store)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() && !settings.AllowZeroPayment {
		return nil, ErrZeroAmount
	}

	before, err := balanceOf(ctx, store, order)
	if err != nil {
		return nil, err
	}
	if !settings.AllowOverpay && amount.GreaterThan(before.Remaining.Add(epsilon)) {
		return nil, &LimitExceededError{fmt.Sprintf("Payment exceeds remaining balance: %s", before.Remaining.StringFixed(2))}
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:   order.ID,
		Amount:    database.FromDecimal(amount),
		Method:    req.Method,
		Kind:      enum.PaymentKindPayment,
		Note:      optionalText(req.Note),
		CreatedBy: req.Actor.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	after := newBalance(before.Total, before.Paid.Add(amount), before.Refunded)
	changed := false
	if order.Status != enum.OrderStatusPaid && after.NetPaid.GreaterThanOrEqual(after.Total.Sub(epsilon)) {
		order, err = transition(ctx, store, order, enum.OrderStatusPaid)
		if err != nil {
			return nil, err
		}
		changed = true
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result := &LedgerResult{Payment: payment, Order: order, Balance: after}
	if changed {
		result.Events = []Event{orderChanged(order)}
	}
	return result, nil
}

// AddRefund records a refund. Only managers and admins may refund. A paid
// order whose net paid amount drops below its total goes back to served.
func (s *PaymentService) AddRefund(ctx context.Context, orderID uuid.UUID, req RefundRequest) (*LedgerResult, error) {
	if !enum.ElevatedRole(req.Actor.Role) {
		return nil, ErrElevatedRole
	}
	if err := validateMethod(req.Method); err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, &ValidationError{"refund amount must be greater than zero"}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockOrder(ctx, store, orderID)
	if err != nil {
		return nil, err
	}

	settings, err := loadSettings(ctx, store)
	if err != nil {
		return nil, err
	}
	if settings.RefundMax.IsPositive() && amount.GreaterThan(settings.RefundMax.Add(epsilon)) {
		return nil, &LimitExceededError{fmt.Sprintf("Refund exceeds maximum refund amount: %s", settings.RefundMax.StringFixed(2))}
	}
	if settings.RefundRequirePIN {
		if err := verifyManagerPIN(ctx, store, req.Actor, req.PIN); err != nil {
			return nil, err
		}
	}

	before, err := balanceOf(ctx, store, order)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(before.Refundable.Add(epsilon)) {
		return nil, &LimitExceededError{fmt.Sprintf("Refund exceeds refundable amount: %s", before.Refundable.StringFixed(2))}
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:   order.ID,
		Amount:    database.FromDecimal(amount),
		Method:    req.Method,
		Kind:      enum.PaymentKindRefund,
		Note:      optionalText(req.Note),
		CreatedBy: req.Actor.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	after := newBalance(before.Total, before.Paid, before.Refunded.Add(amount))
	changed := false
	if order.Status == enum.OrderStatusPaid && after.NetPaid.LessThan(after.Total.Sub(epsilon)) {
		order, err = transition(ctx, store, order, enum.OrderStatusServed)
		if err != nil {
			return nil, err
		}
		changed = true
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result := &LedgerResult{Payment: payment, Order: order, Balance: after}
	if changed {
		result.Events = []Event{orderChanged(order)}
	}
	return result, nil
}

// Ledger returns an order's entries in creation order with its balance.
func (s *PaymentService) Ledger(ctx context.Context, orderID uuid.UUID) (*Ledger, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := getOrder(ctx, store, orderID)
	if err != nil {
		return nil, err
	}
	payments, err := store.ListPaymentsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if payments == nil {
		payments = []database.Payment{}
	}
	balance, err := balanceOf(ctx, store, order)
	if err != nil {
		return nil, err
	}
	return &Ledger{Order: order, Payments: payments, Balance: balance}, nil
}

func balanceOf(ctx context.Context, store PaymentStore, order database.Order) (Balance, error) {
	sums, err := store.SumPaymentsByOrder(ctx, order.ID)
	if err != nil {
		return Balance{}, fmt.Errorf("sum payments: %w", err)
	}
	return newBalance(database.ToDecimal(order.TotalAmount), database.ToDecimal(sums.Paid), database.ToDecimal(sums.Refunded)), nil
}

func transition(ctx context.Context, store PaymentStore, order database.Order, status string) (database.Order, error) {
	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:     order.ID,
		Status: status,
		From:   order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}
	return updated, nil
}

// verifyManagerPIN requires a manager or admin whose stored PIN hash matches pin.
func verifyManagerPIN(ctx context.Context, users UserReader, actor Actor, pin string) error {
	if !enum.ElevatedRole(actor.Role) {
		return ErrElevatedRole
	}
	user, err := users.GetUser(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidPIN
		}
		return fmt.Errorf("get user: %w", err)
	}
	if !user.Active || !user.PinHash.Valid || !auth.CheckSecret(user.PinHash.String, pin) {
		return ErrInvalidPIN
	}
	return nil
}

func validateMethod(m string) error {
	switch m {
	case enum.PaymentMethodCash, enum.PaymentMethodCard:
		return nil
	}
	return ErrInvalidMethod
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
