package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/enum"
)

// --- Mock transaction ---

// memTx implements pgx.Tx on top of memStore. Rollback without Commit
// restores the state captured by Begin. The unused methods panic so we catch
// accidental calls.
type memTx struct {
	store     *memStore
	snapshot  memState
	done      bool
	commitErr error
}

func (m *memTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *memTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.done = true
	m.store.commits++
	return nil
}
func (m *memTx) Rollback(ctx context.Context) error {
	if !m.done {
		m.store.state = m.snapshot
		m.done = true
	}
	return nil
}
func (m *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *memTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *memTx) Conn() *pgx.Conn { panic("not implemented") }

// memTxBeginner implements TxBeginner.
type memTxBeginner struct {
	store *memStore
	err   error
}

func (m *memTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &memTx{store: m.store, snapshot: m.store.state.clone()}, nil
}

// --- In-memory store ---

// memState is the transactional part of memStore.
type memState struct {
	orders      map[uuid.UUID]database.Order
	lines       []database.OrderLine
	payments    []database.Payment
	orderPromos []database.OrderPromotion
	nextNumber  int32
}

func (s memState) clone() memState {
	c := memState{
		orders:      make(map[uuid.UUID]database.Order, len(s.orders)),
		lines:       append([]database.OrderLine(nil), s.lines...),
		payments:    append([]database.Payment(nil), s.payments...),
		orderPromos: append([]database.OrderPromotion(nil), s.orderPromos...),
		nextNumber:  s.nextNumber,
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

// memStore implements OrderStore and PaymentStore with maps and slices.
type memStore struct {
	state memState

	settings   map[string]string
	menu       map[uuid.UUID]database.MenuItemWithCategory
	users      map[uuid.UUID]database.User
	promotions []database.Promotion

	clock   time.Time
	commits int
	calls   map[string]int

	// numberConflicts makes CreateOrder fail with a unique violation this
	// many times.
	numberConflicts int
	// beforeStatusUpdate runs inside UpdateOrderStatus before the compare.
	beforeStatusUpdate func(id uuid.UUID)
}

func newMemStore() *memStore {
	return &memStore{
		state:    memState{orders: make(map[uuid.UUID]database.Order)},
		settings: make(map[string]string),
		menu:     make(map[uuid.UUID]database.MenuItemWithCategory),
		users:    make(map[uuid.UUID]database.User),
		clock:    time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
		calls:    make(map[string]int),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) ListSettings(ctx context.Context) ([]database.Setting, error) {
	keys := make([]string, 0, len(m.settings))
	for k := range m.settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]database.Setting, 0, len(keys))
	for _, k := range keys {
		out = append(out, database.Setting{Key: k, Value: m.settings[k]})
	}
	return out, nil
}

func (m *memStore) GetUser(ctx context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *memStore) GetNextOrderNumber(ctx context.Context) (int32, error) {
	return m.state.nextNumber + 1, nil
}

func (m *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	m.calls["CreateOrder"]++
	if m.numberConflicts > 0 {
		m.numberConflicts--
		return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	}
	m.state.nextNumber++
	now := m.tick()
	o := database.Order{
		ID:                uuid.New(),
		OrderNumber:       arg.OrderNumber,
		OrderType:         arg.OrderType,
		TableID:           arg.TableID,
		Status:            arg.Status,
		Subtotal:          arg.Subtotal,
		ManualDiscount:    arg.ManualDiscount,
		PromotionDiscount: arg.PromotionDiscount,
		RuleDiscount:      arg.RuleDiscount,
		DiscountAmount:    arg.DiscountAmount,
		ServiceCharge:     arg.ServiceCharge,
		TaxAmount:         arg.TaxAmount,
		TotalAmount:       arg.TotalAmount,
		Notes:             arg.Notes,
		OpenedBy:          arg.OpenedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.state.orders[o.ID] = o
	return o, nil
}

func (m *memStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := m.state.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *memStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	var out []database.Order
	for _, o := range m.state.orders {
		if arg.Status.Valid && o.Status != arg.Status.String {
			continue
		}
		if o.IsDeleted && !arg.IncludeDeleted {
			continue
		}
		if arg.Prefix.Valid && !strings.HasPrefix(strings.ToLower(o.OrderNumber), strings.ToLower(arg.Prefix.String)) &&
			!strings.HasPrefix(o.ID.String(), strings.ToLower(arg.Prefix.String)) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(arg.Offset) >= len(out) {
		return nil, nil
	}
	out = out[arg.Offset:]
	if len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	m.calls["UpdateOrderStatus"]++
	if m.beforeStatusUpdate != nil {
		m.beforeStatusUpdate(arg.ID)
	}
	o, ok := m.state.orders[arg.ID]
	if !ok || o.Status != arg.From {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	o.UpdatedAt = m.tick()
	m.state.orders[o.ID] = o
	return o, nil
}

func (m *memStore) UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error) {
	o, ok := m.state.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Subtotal = arg.Subtotal
	o.PromotionDiscount = arg.PromotionDiscount
	o.RuleDiscount = arg.RuleDiscount
	o.DiscountAmount = arg.DiscountAmount
	o.ServiceCharge = arg.ServiceCharge
	o.TaxAmount = arg.TaxAmount
	o.TotalAmount = arg.TotalAmount
	o.UpdatedAt = m.tick()
	m.state.orders[o.ID] = o
	return o, nil
}

func (m *memStore) CancelOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := m.state.orders[id]
	if !ok || isClosed(o.Status) {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = enum.OrderStatusCancelled
	m.state.orders[id] = o
	return o, nil
}

func (m *memStore) SoftDeleteOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := m.state.orders[id]
	if !ok || !isClosed(o.Status) {
		return database.Order{}, pgx.ErrNoRows
	}
	o.IsDeleted = true
	m.state.orders[id] = o
	return o, nil
}

func (m *memStore) DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error) {
	for _, l := range m.state.lines {
		if l.OrderID == id {
			panic("delete order with lines still present")
		}
	}
	for _, p := range m.state.payments {
		if p.OrderID == id {
			panic("delete order with payments still present")
		}
	}
	if _, ok := m.state.orders[id]; !ok {
		return 0, nil
	}
	delete(m.state.orders, id)
	return 1, nil
}

func (m *memStore) CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error) {
	m.calls["CreateOrderLine"]++
	l := database.OrderLine{
		ID:              uuid.New(),
		OrderID:         arg.OrderID,
		MenuItemID:      arg.MenuItemID,
		ItemName:        arg.ItemName,
		CategoryID:      arg.CategoryID,
		CategoryName:    arg.CategoryName,
		Quantity:        arg.Quantity,
		ChargedQuantity: arg.ChargedQuantity,
		Guest:           arg.Guest,
		Note:            arg.Note,
		BasePrice:       arg.BasePrice,
		UnitPrice:       arg.UnitPrice,
		LineTotal:       arg.LineTotal,
		AutoAddedBy:     arg.AutoAddedBy,
		CreatedAt:       m.tick(),
	}
	m.state.lines = append(m.state.lines, l)
	return l, nil
}

func (m *memStore) UpdateOrderLine(ctx context.Context, arg database.UpdateOrderLineParams) (database.OrderLine, error) {
	for i, l := range m.state.lines {
		if l.ID != arg.ID {
			continue
		}
		l.Quantity = arg.Quantity
		l.ChargedQuantity = arg.ChargedQuantity
		l.Guest = arg.Guest
		l.Note = arg.Note
		l.UnitPrice = arg.UnitPrice
		l.LineTotal = arg.LineTotal
		m.state.lines[i] = l
		return l, nil
	}
	return database.OrderLine{}, pgx.ErrNoRows
}

func (m *memStore) DeleteOrderLine(ctx context.Context, id uuid.UUID) error {
	m.calls["DeleteOrderLine"]++
	kept := m.state.lines[:0:0]
	for _, l := range m.state.lines {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	m.state.lines = kept
	return nil
}

func (m *memStore) DeleteOrderLines(ctx context.Context, orderID uuid.UUID) error {
	kept := m.state.lines[:0:0]
	for _, l := range m.state.lines {
		if l.OrderID != orderID {
			kept = append(kept, l)
		}
	}
	m.state.lines = kept
	return nil
}

func (m *memStore) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error) {
	var out []database.OrderLine
	for _, l := range m.state.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) ListMenuItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]database.MenuItemWithCategory, error) {
	var out []database.MenuItemWithCategory
	for _, id := range ids {
		if item, ok := m.menu[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memStore) ListActivePromotions(ctx context.Context, now time.Time) ([]database.Promotion, error) {
	var out []database.Promotion
	for _, p := range m.promotions {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) CreateOrderPromotion(ctx context.Context, arg database.CreateOrderPromotionParams) error {
	m.state.orderPromos = append(m.state.orderPromos, database.OrderPromotion{
		OrderID:     arg.OrderID,
		PromotionID: arg.PromotionID,
		Amount:      arg.Amount,
	})
	return nil
}

func (m *memStore) DeleteOrderPromotions(ctx context.Context, orderID uuid.UUID) error {
	kept := m.state.orderPromos[:0:0]
	for _, p := range m.state.orderPromos {
		if p.OrderID != orderID {
			kept = append(kept, p)
		}
	}
	m.state.orderPromos = kept
	return nil
}

func (m *memStore) DeletePaymentsByOrder(ctx context.Context, orderID uuid.UUID) error {
	kept := m.state.payments[:0:0]
	for _, p := range m.state.payments {
		if p.OrderID != orderID {
			kept = append(kept, p)
		}
	}
	m.state.payments = kept
	return nil
}

func (m *memStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	p := database.Payment{
		ID:        uuid.New(),
		OrderID:   arg.OrderID,
		Amount:    arg.Amount,
		Method:    arg.Method,
		Kind:      arg.Kind,
		Note:      arg.Note,
		CreatedBy: arg.CreatedBy,
		CreatedAt: m.tick(),
	}
	m.state.payments = append(m.state.payments, p)
	return p, nil
}

func (m *memStore) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	var out []database.Payment
	for _, p := range m.state.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (database.SumPaymentsByOrderRow, error) {
	paid, refunded := decimal.Zero, decimal.Zero
	for _, p := range m.state.payments {
		if p.OrderID != orderID {
			continue
		}
		if p.Kind == enum.PaymentKindRefund {
			refunded = refunded.Add(database.ToDecimal(p.Amount))
		} else {
			paid = paid.Add(database.ToDecimal(p.Amount))
		}
	}
	return database.SumPaymentsByOrderRow{
		Paid:     database.FromDecimal(paid),
		Refunded: database.FromDecimal(refunded),
	}, nil
}

// --- Fixture ---

type fixture struct {
	store    *memStore
	orders   *OrderService
	payments *PaymentService

	soups   uuid.UUID
	mains   uuid.UUID
	drinks  uuid.UUID
	qozi    uuid.UUID
	lentil  uuid.UUID
	harira  uuid.UUID
	cola    uuid.UUID
	bread   uuid.UUID
	retired uuid.UUID

	admin   Actor
	manager Actor
	cashier Actor
}

const managerPIN = "4821"

func newFixture() *fixture {
	store := newMemStore()
	pool := &memTxBeginner{store: store}
	f := &fixture{
		store:    store,
		orders:   NewOrderService(pool, func(db database.DBTX) OrderStore { return store }, time.UTC),
		payments: NewPaymentService(pool, func(db database.DBTX) PaymentStore { return store }),
		soups:    uuid.New(),
		mains:    uuid.New(),
		drinks:   uuid.New(),
	}
	f.orders.now = func() time.Time { return store.clock }

	addItem := func(name, price string, cat uuid.UUID, catName string, active bool) uuid.UUID {
		id := uuid.New()
		store.menu[id] = database.MenuItemWithCategory{
			ID:             id,
			Name:           name,
			Price:          makeNumeric(price),
			Active:         active,
			CategoryID:     cat,
			CategoryName:   catName,
			CategoryActive: true,
		}
		return id
	}
	f.qozi = addItem("Lamb Qozi", "10", f.mains, "Mains", true)
	f.lentil = addItem("Lentil Soup", "4", f.soups, "Soups", true)
	f.harira = addItem("Harira", "6", f.soups, "Soups", true)
	f.cola = addItem("Cola", "2.5", f.drinks, "Drinks", true)
	f.bread = addItem("Bread Basket", "1.5", f.mains, "Mains", true)
	f.retired = addItem("Old Special", "9", f.mains, "Mains", false)

	pin := hashPIN(managerPIN)
	addUser := func(role string) Actor {
		id := uuid.New()
		store.users[id] = database.User{ID: id, Name: role, Role: role, Active: true, PinHash: pgtype.Text{String: pin, Valid: true}}
		return Actor{UserID: id, Role: role}
	}
	f.admin = addUser(enum.UserRoleAdmin)
	f.manager = addUser(enum.UserRoleManager)
	f.cashier = addUser(enum.UserRoleCashier)
	return f
}

func (f *fixture) order(id uuid.UUID) database.Order {
	return f.store.state.orders[id]
}

func (f *fixture) lines(id uuid.UUID) []database.OrderLine {
	lines, _ := f.store.ListOrderLines(context.Background(), id)
	return lines
}

// setStatus forces an order into a status for test setup.
func (f *fixture) setStatus(id uuid.UUID, status string) {
	o := f.store.state.orders[id]
	o.Status = status
	f.store.state.orders[id] = o
}
