package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/enum"
	"github.com/tablepos/engine/internal/pricing"
)

const (
	maxOrderNumberRetries = 3
	maxGuest              = 20
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order lifecycle needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	SettingsReader
	UserReader
	GetNextOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	SoftDeleteOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error)
	CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error)
	UpdateOrderLine(ctx context.Context, arg database.UpdateOrderLineParams) (database.OrderLine, error)
	DeleteOrderLine(ctx context.Context, id uuid.UUID) error
	DeleteOrderLines(ctx context.Context, orderID uuid.UUID) error
	ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error)
	ListMenuItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]database.MenuItemWithCategory, error)
	ListActivePromotions(ctx context.Context, now time.Time) ([]database.Promotion, error)
	CreateOrderPromotion(ctx context.Context, arg database.CreateOrderPromotionParams) error
	DeleteOrderPromotions(ctx context.Context, orderID uuid.UUID) error
	DeletePaymentsByOrder(ctx context.Context, orderID uuid.UUID) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// LineInput is one requested cart line.
type LineInput struct {
	MenuItemID string
	Quantity   int32
	// Guest defaults to 1.
	Guest int32
	Note  string
}

// CreateOrderRequest is the input for creating an order.
type CreateOrderRequest struct {
	Actor          Actor
	OrderType      string
	TableID        string
	Notes          string
	ManualDiscount string
	// Hold keeps the order open instead of sending it to the kitchen.
	Hold  bool
	Items []LineInput
}

// LineUpdate changes an existing line. Nil fields are left alone and a zero
// Quantity removes the line.
type LineUpdate struct {
	LineID   string
	Quantity *int32
	Guest    *int32
	Note     *string
}

// UpdateItemsRequest adds new lines and updates existing ones in one pricing pass.
type UpdateItemsRequest struct {
	Actor  Actor
	Add    []LineInput
	Update []LineUpdate
}

// CancelRequest carries the manager PIN when cancellation requires one.
type CancelRequest struct {
	Actor Actor
	PIN   string
}

// ListOrdersRequest filters the order list. Zero values mean no filter.
type ListOrdersRequest struct {
	Status         string
	From           time.Time
	To             time.Time
	Prefix         string
	IncludeDeleted bool
	Limit          int32
	Offset         int32
}

// PreviewRequest prices a cart without persisting anything.
type PreviewRequest struct {
	Actor          Actor
	OrderType      string
	TableID        string
	ManualDiscount string
	Items          []LineInput
}

// OrderResult is an order with its lines and the events the change produced.
type OrderResult struct {
	Order        database.Order
	Lines        []database.OrderLine
	Promotions   []pricing.AppliedPromotion
	AppliedRules []string
	Events       []Event
}

// Preview is a priced cart.
type Preview struct {
	Lines        []pricing.Line
	Totals       pricing.Totals
	Promotions   []pricing.AppliedPromotion
	AppliedRules []string
	Print        map[string]any
}

// OrderService owns the order lifecycle: creation, line changes, status
// transitions, cancellation and deletion.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	loc      *time.Location
	now      func() time.Time
}

// NewOrderService creates a new OrderService. Rules evaluate weekdays and
// time windows in loc.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, loc *time.Location) *OrderService {
	if loc == nil {
		loc = time.Local
	}
	return &OrderService{pool: pool, newStore: newStore, loc: loc, now: time.Now}
}

var allowedTransitions = map[string][]string{
	enum.OrderStatusOpen:          {enum.OrderStatusSentToKitchen},
	enum.OrderStatusSentToKitchen: {enum.OrderStatusInProgress, enum.OrderStatusReady, enum.OrderStatusServed},
	enum.OrderStatusInProgress:    {enum.OrderStatusReady, enum.OrderStatusServed},
	enum.OrderStatusReady:         {enum.OrderStatusServed},
}

func validateStatusTransition(from, to string) error {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return nil
		}
	}
	return invalidTransition(from, to)
}

func isClosed(status string) bool {
	return status == enum.OrderStatusPaid || status == enum.OrderStatusCancelled
}

// CreateOrder validates, prices and creates an order with its lines and
// promotion links atomically. Retries up to maxOrderNumberRetries times on
// order_number unique constraint violations.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	orderType, err := validateOrderType(req.OrderType)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	items, err := parseLineInputs(req.Items)
	if err != nil {
		return nil, err
	}
	table, err := parseTableID(req.TableID)
	if err != nil {
		return nil, err
	}
	manual, err := parseManualDiscount(req.ManualDiscount)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req, orderType, table, manual, items)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks for a unique violation on orders.order_number.
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, orderType string, table pgtype.UUID, manual decimal.Decimal, items []lineInput) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	settings, err := loadSettings(ctx, store)
	if err != nil {
		return nil, err
	}
	if settings.RequireTableForDineIn && orderType == enum.OrderTypeDineIn && !table.Valid {
		return nil, ErrTableRequired
	}

	catalog, err := loadCatalog(ctx, store, menuItemIDs(items, settings.Rules))
	if err != nil {
		return nil, err
	}
	lines, err := newLines(items, catalog)
	if err != nil {
		return nil, err
	}

	pctx := s.pricingContext(orderType, req.Actor.Role, table)
	p, err := s.price(ctx, store, settings, lines, catalog, pctx, manual)
	if err != nil {
		return nil, err
	}

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}

	status := enum.OrderStatusSentToKitchen
	if req.Hold {
		status = enum.OrderStatusOpen
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:       fmt.Sprintf("ORD-%04d", nextNum),
		OrderType:         orderType,
		TableID:           table,
		Status:            status,
		Subtotal:          database.FromDecimal(p.totals.Subtotal),
		ManualDiscount:    database.FromDecimal(manual),
		PromotionDiscount: database.FromDecimal(p.promotionTotal),
		RuleDiscount:      database.FromDecimal(p.result.RuleDiscount),
		DiscountAmount:    database.FromDecimal(p.totals.DiscountAmount),
		ServiceCharge:     database.FromDecimal(p.totals.ServiceCharge),
		TaxAmount:         database.FromDecimal(p.totals.TaxAmount),
		TotalAmount:       database.FromDecimal(p.totals.Total),
		Notes:             optionalText(req.Notes),
		OpenedBy:          req.Actor.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	created := make([]database.OrderLine, 0, len(p.result.Lines))
	for _, l := range p.result.Lines {
		row, err := store.CreateOrderLine(ctx, createLineParams(order.ID, l))
		if err != nil {
			return nil, fmt.Errorf("create order line: %w", err)
		}
		created = append(created, row)
	}

	if err := replacePromotions(ctx, store, order.ID, p.promotions); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result := &OrderResult{
		Order:        order,
		Lines:        created,
		Promotions:   p.promotions,
		AppliedRules: p.result.Applied,
		Events:       []Event{orderChanged(order)},
	}
	if status == enum.OrderStatusSentToKitchen {
		result.Events = append(result.Events, kitchenTicket(order, created, p.result.Print))
	}
	return result, nil
}

// UpdateItems adds and updates lines of an order, reprices the whole order
// against the current rules and writes lines and totals in one transaction.
// Only lines inserted by this call are forwarded to the kitchen.
func (s *OrderService) UpdateItems(ctx context.Context, orderID uuid.UUID, req UpdateItemsRequest) (*OrderResult, error) {
	if len(req.Add) == 0 && len(req.Update) == 0 {
		return nil, ErrEmptyItems
	}
	adds, err := parseLineInputs(req.Add)
	if err != nil {
		return nil, err
	}
	updates, err := parseLineUpdates(req.Update)
	if err != nil {
		return nil, err
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
	if isClosed(order.Status) {
		return nil, ErrOrderClosed
	}

	settings, err := loadSettings(ctx, store)
	if err != nil {
		return nil, err
	}

	existing, err := store.ListOrderLines(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}

	var (
		kept     []pricing.Line
		prevAuto []database.OrderLine
		removed  []uuid.UUID
	)
	for _, row := range existing {
		u, touched := updates[row.ID]
		if row.AutoAddedBy.Valid {
			if touched {
				return nil, ErrAutoLineImmutable
			}
			prevAuto = append(prevAuto, row)
			continue
		}
		l := lineFromRow(row)
		if touched {
			delete(updates, row.ID)
			if u.Quantity != nil {
				if *u.Quantity == 0 {
					removed = append(removed, row.ID)
					continue
				}
				l.Quantity = *u.Quantity
			}
			if u.Guest != nil {
				l.Guest = *u.Guest
			}
			if u.Note != nil {
				l.Note = *u.Note
			}
		}
		kept = append(kept, l)
	}
	if len(updates) > 0 {
		return nil, ErrLineNotFound
	}

	catalog, err := loadCatalog(ctx, store, menuItemIDs(adds, settings.Rules))
	if err != nil {
		return nil, err
	}
	added, err := newLines(adds, catalog)
	if err != nil {
		return nil, err
	}

	pctx := s.pricingContext(order.OrderType, req.Actor.Role, order.TableID)
	p, err := s.price(ctx, store, settings, append(kept, added...), catalog, pctx, database.ToDecimal(order.ManualDiscount))
	if err != nil {
		return nil, err
	}

	for _, id := range removed {
		if err := store.DeleteOrderLine(ctx, id); err != nil {
			return nil, fmt.Errorf("delete order line: %w", err)
		}
	}

	// Rule-added lines are matched to their previous incarnation by rule and
	// menu item so they keep their identity across passes.
	previous := make(map[autoKey][]database.OrderLine)
	for _, row := range prevAuto {
		k := autoKey{rule: row.AutoAddedBy.String, item: row.MenuItemID}
		previous[k] = append(previous[k], row)
	}

	var lines, fresh []database.OrderLine
	for _, l := range p.result.Lines {
		if l.ID == uuid.Nil && l.AutoAddedBy != "" {
			k := autoKey{rule: l.AutoAddedBy, item: l.MenuItemID}
			if prev := previous[k]; len(prev) > 0 {
				l.ID = prev[0].ID
				previous[k] = prev[1:]
			}
		}
		if l.ID != uuid.Nil {
			row, err := store.UpdateOrderLine(ctx, updateLineParams(l))
			if err != nil {
				return nil, fmt.Errorf("update order line: %w", err)
			}
			lines = append(lines, row)
			continue
		}
		row, err := store.CreateOrderLine(ctx, createLineParams(order.ID, l))
		if err != nil {
			return nil, fmt.Errorf("create order line: %w", err)
		}
		lines = append(lines, row)
		fresh = append(fresh, row)
	}
	for _, stale := range previous {
		for _, row := range stale {
			if err := store.DeleteOrderLine(ctx, row.ID); err != nil {
				return nil, fmt.Errorf("delete order line: %w", err)
			}
		}
	}

	if err := replacePromotions(ctx, store, order.ID, p.promotions); err != nil {
		return nil, err
	}

	order, err = store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:                order.ID,
		Subtotal:          database.FromDecimal(p.totals.Subtotal),
		PromotionDiscount: database.FromDecimal(p.promotionTotal),
		RuleDiscount:      database.FromDecimal(p.result.RuleDiscount),
		DiscountAmount:    database.FromDecimal(p.totals.DiscountAmount),
		ServiceCharge:     database.FromDecimal(p.totals.ServiceCharge),
		TaxAmount:         database.FromDecimal(p.totals.TaxAmount),
		TotalAmount:       database.FromDecimal(p.totals.Total),
	})
	if err != nil {
		return nil, fmt.Errorf("update order totals: %w", err)
	}

	if order.Status == enum.OrderStatusOpen && len(added) > 0 {
		order, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:     order.ID,
			Status: enum.OrderStatusSentToKitchen,
			From:   enum.OrderStatusOpen,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrStatusConflict
			}
			return nil, fmt.Errorf("update order status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result := &OrderResult{
		Order:        order,
		Lines:        lines,
		Promotions:   p.promotions,
		AppliedRules: p.result.Applied,
		Events:       []Event{orderChanged(order)},
	}
	if len(fresh) > 0 && order.Status != enum.OrderStatusOpen {
		result.Events = append(result.Events, kitchenTicket(order, fresh, p.result.Print))
	}
	return result, nil
}

// UpdateStatus moves an order along the kitchen workflow. Payment drives the
// paid status and Cancel drives cancelled, so neither is accepted here.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string, actor Actor) (*OrderResult, error) {
	switch status {
	case enum.OrderStatusOpen, enum.OrderStatusSentToKitchen, enum.OrderStatusInProgress,
		enum.OrderStatusReady, enum.OrderStatusServed:
	case enum.OrderStatusPaid:
		return nil, &ValidationError{"paid is set by recording payments"}
	case enum.OrderStatusCancelled:
		return nil, &ValidationError{"use cancel to cancel an order"}
	default:
		return nil, ErrInvalidStatus
	}

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
	if isClosed(order.Status) {
		return nil, ErrOrderClosed
	}
	if err := validateStatusTransition(order.Status, status); err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:     order.ID,
		Status: status,
		From:   order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	lines, err := store.ListOrderLines(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}

	var overrides map[string]any
	if status == enum.OrderStatusSentToKitchen {
		settings, err := loadSettings(ctx, store)
		if err != nil {
			return nil, err
		}
		overrides = s.ticketPrint(settings, updated, lines, actor)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result := &OrderResult{
		Order:  updated,
		Lines:  lines,
		Events: []Event{orderChanged(updated)},
	}
	if status == enum.OrderStatusSentToKitchen {
		result.Events = append(result.Events, kitchenTicket(updated, lines, overrides))
	}
	return result, nil
}

// ticketPrint re-evaluates the rules against persisted lines to recover the
// print overrides for a ticket.
func (s *OrderService) ticketPrint(settings Settings, order database.Order, rows []database.OrderLine, actor Actor) map[string]any {
	lines := make([]pricing.Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, lineFromRow(row))
	}
	pctx := s.pricingContext(order.OrderType, actor.Role, order.TableID)
	return pricing.Resolve(lines, settings.Rules, nil, pctx).Print
}

// Cancel cancels an order that is not paid yet. When the cancel.require_pin
// setting is on, the actor must be a manager or admin and confirm with their PIN.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, req CancelRequest) (*OrderResult, error) {
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
	switch order.Status {
	case enum.OrderStatusPaid:
		return nil, &ClosedOrderError{"paid orders cannot be cancelled"}
	case enum.OrderStatusCancelled:
		return nil, &ClosedOrderError{"order is already cancelled"}
	}

	settings, err := loadSettings(ctx, store)
	if err != nil {
		return nil, err
	}
	if settings.CancelRequirePIN {
		if err := verifyManagerPIN(ctx, store, req.Actor, req.PIN); err != nil {
			return nil, err
		}
	}

	cancelled, err := store.CancelOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: cancelled, Events: []Event{orderChanged(cancelled)}}, nil
}

// SoftDelete hides a paid or cancelled order from listings.
func (s *OrderService) SoftDelete(ctx context.Context, orderID uuid.UUID, actor Actor) error {
	if !enum.ElevatedRole(actor.Role) {
		return ErrElevatedRole
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := lockOrder(ctx, store, orderID)
	if err != nil {
		return err
	}
	if !isClosed(order.Status) {
		return ErrNotDeletable
	}
	if _, err := store.SoftDeleteOrder(ctx, order.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotDeletable
		}
		return fmt.Errorf("soft delete order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Delete removes an order with its promotion links, payments and lines.
// Admin only.
func (s *OrderService) Delete(ctx context.Context, orderID uuid.UUID, actor Actor) error {
	if actor.Role != enum.UserRoleAdmin {
		return ErrAdminRole
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetOrderForUpdate(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}
	if err := store.DeleteOrderPromotions(ctx, orderID); err != nil {
		return fmt.Errorf("delete order promotions: %w", err)
	}
	if err := store.DeletePaymentsByOrder(ctx, orderID); err != nil {
		return fmt.Errorf("delete payments: %w", err)
	}
	if err := store.DeleteOrderLines(ctx, orderID); err != nil {
		return fmt.Errorf("delete order lines: %w", err)
	}
	n, err := store.DeleteOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetOrder returns an order with its lines. Soft-deleted orders are not found.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderResult, error) {
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
	lines, err := store.ListOrderLines(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	return &OrderResult{Order: order, Lines: lines}, nil
}

// ListOrders lists orders newest first.
func (s *OrderService) ListOrders(ctx context.Context, req ListOrdersRequest) ([]database.Order, error) {
	params := database.ListOrdersParams{
		IncludeDeleted: req.IncludeDeleted,
		Limit:          req.Limit,
		Offset:         req.Offset,
	}
	if req.Status != "" {
		if !enum.ValidOrderStatus(req.Status) {
			return nil, ErrInvalidStatus
		}
		params.Status = pgtype.Text{String: req.Status, Valid: true}
	}
	if !req.From.IsZero() {
		params.StartDate = pgtype.Timestamptz{Time: req.From, Valid: true}
	}
	if !req.To.IsZero() {
		params.EndDate = pgtype.Timestamptz{Time: req.To, Valid: true}
	}
	if req.Prefix != "" {
		params.Prefix = pgtype.Text{String: req.Prefix, Valid: true}
	}
	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	orders, err := s.newStore(tx).ListOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []database.Order{}
	}
	return orders, nil
}

// Preview prices a cart against the current settings without writing.
func (s *OrderService) Preview(ctx context.Context, req PreviewRequest) (*Preview, error) {
	orderType, err := validateOrderType(req.OrderType)
	if err != nil {
		return nil, err
	}
	items, err := parseLineInputs(req.Items)
	if err != nil {
		return nil, err
	}
	table, err := parseTableID(req.TableID)
	if err != nil {
		return nil, err
	}
	manual, err := parseManualDiscount(req.ManualDiscount)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	settings, err := loadSettings(ctx, store)
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(ctx, store, menuItemIDs(items, settings.Rules))
	if err != nil {
		return nil, err
	}
	lines, err := newLines(items, catalog)
	if err != nil {
		return nil, err
	}
	p, err := s.price(ctx, store, settings, lines, catalog, s.pricingContext(orderType, req.Actor.Role, table), manual)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Lines:        p.result.Lines,
		Totals:       p.totals,
		Promotions:   p.promotions,
		AppliedRules: p.result.Applied,
		Print:        p.result.Print,
	}, nil
}

// --- Pricing ---

type priced struct {
	result         pricing.Result
	promotions     []pricing.AppliedPromotion
	promotionTotal decimal.Decimal
	totals         pricing.Totals
}

func (s *OrderService) price(ctx context.Context, store OrderStore, settings Settings, lines []pricing.Line, catalog pricing.Catalog, pctx pricing.Context, manual decimal.Decimal) (priced, error) {
	res := pricing.Resolve(lines, settings.Rules, catalog, pctx)

	rows, err := store.ListActivePromotions(ctx, pctx.Now)
	if err != nil {
		return priced{}, fmt.Errorf("list promotions: %w", err)
	}
	promos := make([]pricing.Promotion, 0, len(rows))
	for _, row := range rows {
		promos = append(promos, toPromotion(row))
	}
	applied, promoTotal := pricing.ApplyPromotions(promos, res.Lines, pctx.Now)

	totals := pricing.CalculateTotals(pricing.TotalsInput{
		Lines:             res.Lines,
		ManualDiscount:    manual,
		PromotionDiscount: promoTotal,
		RuleDiscount:      res.RuleDiscount,
		ServicePercent:    settings.ServicePercent,
		TaxPercent:        settings.TaxPercent,
	})
	return priced{result: res, promotions: applied, promotionTotal: promoTotal, totals: totals}, nil
}

func (s *OrderService) pricingContext(orderType, role string, table pgtype.UUID) pricing.Context {
	c := pricing.Context{OrderType: orderType, Role: role, Now: s.now().In(s.loc)}
	if table.Valid {
		c.TableID = uuid.UUID(table.Bytes).String()
	}
	return c
}

func replacePromotions(ctx context.Context, store OrderStore, orderID uuid.UUID, applied []pricing.AppliedPromotion) error {
	if err := store.DeleteOrderPromotions(ctx, orderID); err != nil {
		return fmt.Errorf("delete order promotions: %w", err)
	}
	for _, a := range applied {
		if err := store.CreateOrderPromotion(ctx, database.CreateOrderPromotionParams{
			OrderID:     orderID,
			PromotionID: a.PromotionID,
			Amount:      database.FromDecimal(a.Amount),
		}); err != nil {
			return fmt.Errorf("create order promotion: %w", err)
		}
	}
	return nil
}

// --- Helpers ---

type lineInput struct {
	menuItemID uuid.UUID
	quantity   int32
	guest      int32
	note       string
}

type autoKey struct {
	rule string
	item uuid.UUID
}

func validateOrderType(s string) (string, error) {
	switch s {
	case enum.OrderTypeDineIn, enum.OrderTypeTakeaway:
		return s, nil
	}
	return "", ErrInvalidOrderType
}

func parseLineInputs(items []LineInput) ([]lineInput, error) {
	out := make([]lineInput, 0, len(items))
	for i, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		id, err := uuid.Parse(it.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}
		guest := it.Guest
		if guest == 0 {
			guest = 1
		}
		if guest < 1 || guest > maxGuest {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidGuest)
		}
		out = append(out, lineInput{menuItemID: id, quantity: it.Quantity, guest: guest, note: it.Note})
	}
	return out, nil
}

func parseLineUpdates(updates []LineUpdate) (map[uuid.UUID]LineUpdate, error) {
	out := make(map[uuid.UUID]LineUpdate, len(updates))
	for i, u := range updates {
		id, err := uuid.Parse(u.LineID)
		if err != nil {
			return nil, fmt.Errorf("update[%d]: %w", i, ErrInvalidLineID)
		}
		if u.Quantity != nil && *u.Quantity < 0 {
			return nil, fmt.Errorf("update[%d]: %w", i, ErrInvalidQuantity)
		}
		if u.Guest != nil && (*u.Guest < 1 || *u.Guest > maxGuest) {
			return nil, fmt.Errorf("update[%d]: %w", i, ErrInvalidGuest)
		}
		out[id] = u
	}
	return out, nil
}

func parseTableID(s string) (pgtype.UUID, error) {
	if s == "" {
		return pgtype.UUID{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, ErrInvalidTableID
	}
	return pgtype.UUID{Bytes: id, Valid: true}, nil
}

func parseManualDiscount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidDiscount
	}
	return d, nil
}

// menuItemIDs lists the requested items plus every item a rule may add.
func menuItemIDs(items []lineInput, rules []pricing.Rule) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, it := range items {
		if !seen[it.menuItemID] {
			seen[it.menuItemID] = true
			ids = append(ids, it.menuItemID)
		}
	}
	for _, id := range pricing.AutoAddItemIDs(rules) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func loadCatalog(ctx context.Context, store OrderStore, ids []uuid.UUID) (pricing.Catalog, error) {
	catalog := make(pricing.Catalog, len(ids))
	if len(ids) == 0 {
		return catalog, nil
	}
	rows, err := store.ListMenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	for _, row := range rows {
		catalog[row.ID] = pricing.MenuItem{
			ID:           row.ID,
			Name:         row.Name,
			CategoryID:   row.CategoryID,
			CategoryName: row.CategoryName,
			Price:        database.ToDecimal(row.Price),
			Active:       row.Active && row.CategoryActive,
		}
	}
	return catalog, nil
}

func newLines(items []lineInput, catalog pricing.Catalog) ([]pricing.Line, error) {
	lines := make([]pricing.Line, 0, len(items))
	for i, it := range items {
		m, ok := catalog[it.menuItemID]
		if !ok || !m.Active {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
		}
		lines = append(lines, pricing.Line{
			MenuItemID:   m.ID,
			Name:         m.Name,
			CategoryID:   m.CategoryID,
			CategoryName: m.CategoryName,
			Quantity:     it.quantity,
			Guest:        it.guest,
			Note:         it.note,
			BasePrice:    m.Price,
		})
	}
	return lines, nil
}

func lineFromRow(row database.OrderLine) pricing.Line {
	return pricing.Line{
		ID:           row.ID,
		MenuItemID:   row.MenuItemID,
		Name:         row.ItemName,
		CategoryID:   row.CategoryID,
		CategoryName: row.CategoryName,
		Quantity:     row.Quantity,
		Guest:        row.Guest,
		Note:         row.Note.String,
		BasePrice:    database.ToDecimal(row.BasePrice),
		UnitPrice:    database.ToDecimal(row.UnitPrice),
		ChargedQty:   row.ChargedQuantity,
		LineTotal:    database.ToDecimal(row.LineTotal),
		AutoAddedBy:  row.AutoAddedBy.String,
	}
}

func createLineParams(orderID uuid.UUID, l pricing.Line) database.CreateOrderLineParams {
	return database.CreateOrderLineParams{
		OrderID:         orderID,
		MenuItemID:      l.MenuItemID,
		ItemName:        l.Name,
		CategoryID:      l.CategoryID,
		CategoryName:    l.CategoryName,
		Quantity:        l.Quantity,
		ChargedQuantity: l.ChargedQty,
		Guest:           l.Guest,
		Note:            optionalText(l.Note),
		BasePrice:       database.FromDecimal(l.BasePrice),
		UnitPrice:       database.FromDecimal(l.UnitPrice),
		LineTotal:       database.FromDecimal(l.LineTotal),
		AutoAddedBy:     optionalText(l.AutoAddedBy),
	}
}

func updateLineParams(l pricing.Line) database.UpdateOrderLineParams {
	return database.UpdateOrderLineParams{
		ID:              l.ID,
		Quantity:        l.Quantity,
		ChargedQuantity: l.ChargedQty,
		Guest:           l.Guest,
		Note:            optionalText(l.Note),
		UnitPrice:       database.FromDecimal(l.UnitPrice),
		LineTotal:       database.FromDecimal(l.LineTotal),
	}
}

func toPromotion(row database.Promotion) pricing.Promotion {
	p := pricing.Promotion{
		ID:          row.ID,
		Name:        row.Name,
		Type:        row.Type,
		Amount:      database.ToDecimal(row.Amount),
		Active:      row.Active,
		CategoryIDs: row.CategoryIDs,
		ItemIDs:     row.ItemIDs,
	}
	if row.StartsAt.Valid {
		p.StartsAt = row.StartsAt.Time
	}
	if row.EndsAt.Valid {
		p.EndsAt = row.EndsAt.Time
	}
	return p
}

type orderGetter interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
}

type orderLocker interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
}

func getOrder(ctx context.Context, store orderGetter, id uuid.UUID) (database.Order, error) {
	order, err := store.GetOrder(ctx, id)
	return checkOrder(order, err)
}

// lockOrder reads the order row FOR UPDATE.
func lockOrder(ctx context.Context, store orderLocker, id uuid.UUID) (database.Order, error) {
	order, err := store.GetOrderForUpdate(ctx, id)
	return checkOrder(order, err)
}

func checkOrder(order database.Order, err error) (database.Order, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.IsDeleted {
		return database.Order{}, ErrOrderNotFound
	}
	return order, nil
}
