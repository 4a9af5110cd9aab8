package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/enum"
	"github.com/tablepos/engine/internal/service"
)

// --- Mock PaymentServicer ---

type mockPaymentService struct {
	addPaymentFn func(ctx context.Context, id uuid.UUID, req service.PaymentRequest) (*service.LedgerResult, error)
	addRefundFn  func(ctx context.Context, id uuid.UUID, req service.RefundRequest) (*service.LedgerResult, error)
	ledgerFn     func(ctx context.Context, id uuid.UUID) (*service.Ledger, error)
}

func (m *mockPaymentService) AddPayment(ctx context.Context, id uuid.UUID, req service.PaymentRequest) (*service.LedgerResult, error) {
	return m.addPaymentFn(ctx, id, req)
}

func (m *mockPaymentService) AddRefund(ctx context.Context, id uuid.UUID, req service.RefundRequest) (*service.LedgerResult, error) {
	return m.addRefundFn(ctx, id, req)
}

func (m *mockPaymentService) Ledger(ctx context.Context, id uuid.UUID) (*service.Ledger, error) {
	return m.ledgerFn(ctx, id)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPayment(orderID uuid.UUID, kind, amount string) database.Payment {
	return database.Payment{
		ID:        uuid.New(),
		OrderID:   orderID,
		Amount:    num(amount),
		Method:    enum.PaymentMethodCash,
		Kind:      kind,
		Note:      pgtype.Text{},
		CreatedBy: uuid.New(),
		CreatedAt: time.Now(),
	}
}

// --- Payments ---

func TestAddPayment_MarksPaid(t *testing.T) {
	order := testOrder(enum.OrderStatusPaid)
	order.TotalAmount = num("50")
	userID := uuid.New()

	var got service.PaymentRequest
	svc := &mockPaymentService{
		addPaymentFn: func(_ context.Context, id uuid.UUID, req service.PaymentRequest) (*service.LedgerResult, error) {
			got = req
			return &service.LedgerResult{
				Payment: testPayment(id, enum.PaymentKindPayment, "50"),
				Order:   order,
				Balance: service.Balance{
					Total: dec("50"), Paid: dec("50"), Refunded: decimal.Zero,
					NetPaid: dec("50"), Remaining: decimal.Zero, Refundable: dec("50"),
				},
				Events: []service.Event{{Kind: service.EventOrderChanged, Order: order}},
			}, nil
		},
	}
	disp := &mockDispatcher{}
	router := setupOrderRouter(&mockOrderService{}, svc, disp)

	rr := doAuthRequest(t, router, "POST", "/orders/"+order.ID.String()+"/payments",
		map[string]string{"amount": "50", "method": "cash", "note": "exact"}, userID, enum.UserRoleCashier)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if got.Amount != "50" || got.Method != "cash" || got.Note != "exact" || got.Actor.UserID != userID {
		t.Errorf("request: %+v", got)
	}

	resp := decodeResponse(t, rr)
	if resp["order"].(map[string]any)["status"] != enum.OrderStatusPaid {
		t.Errorf("order: %v", resp["order"])
	}
	payment := resp["payment"].(map[string]any)
	if payment["amount"] != "50.00" || payment["kind"] != enum.PaymentKindPayment {
		t.Errorf("payment: %v", payment)
	}
	balance := resp["balance"].(map[string]any)
	if balance["remaining"] != "0.00" || balance["net_paid"] != "50.00" {
		t.Errorf("balance: %v", balance)
	}
	if kinds := disp.kinds(); len(kinds) != 1 {
		t.Errorf("dispatched: %v", kinds)
	}
}

func TestAddPayment_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    int
		message string
	}{
		{"overpay", &service.LimitExceededError{Reason: "Payment exceeds remaining balance: 5.00"}, http.StatusConflict, "Payment exceeds remaining balance: 5.00"},
		{"zero", service.ErrZeroAmount, http.StatusBadRequest, "amount must be greater than zero"},
		{"cancelled order", service.ErrOrderClosed, http.StatusConflict, "order is paid or cancelled"},
		{"missing order", service.ErrOrderNotFound, http.StatusNotFound, "order not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPaymentService{
				addPaymentFn: func(context.Context, uuid.UUID, service.PaymentRequest) (*service.LedgerResult, error) {
					return nil, tt.err
				},
			}
			router := setupOrderRouter(&mockOrderService{}, svc, &mockDispatcher{})
			rr := doAuthRequest(t, router, "POST", "/orders/"+uuid.New().String()+"/payments",
				map[string]string{"amount": "1", "method": "cash"}, uuid.New(), enum.UserRoleCashier)
			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
			if resp := decodeResponse(t, rr); resp["error"] != tt.message {
				t.Errorf("error: got %v, want %q", resp["error"], tt.message)
			}
		})
	}
}

// --- Refunds ---

func TestAddRefund(t *testing.T) {
	order := testOrder(enum.OrderStatusServed)
	order.TotalAmount = num("50")

	var got service.RefundRequest
	svc := &mockPaymentService{
		addRefundFn: func(_ context.Context, id uuid.UUID, req service.RefundRequest) (*service.LedgerResult, error) {
			got = req
			if !enum.ElevatedRole(req.Actor.Role) {
				return nil, service.ErrElevatedRole
			}
			if req.Amount == "40" {
				return nil, &service.LimitExceededError{Reason: "Refund exceeds refundable amount: 30.00"}
			}
			return &service.LedgerResult{
				Payment: testPayment(id, enum.PaymentKindRefund, req.Amount),
				Order:   order,
				Balance: service.Balance{
					Total: dec("50"), Paid: dec("50"), Refunded: dec("20"),
					NetPaid: dec("30"), Remaining: dec("20"), Refundable: dec("30"),
				},
				Events: []service.Event{{Kind: service.EventOrderChanged, Order: order}},
			}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, svc, &mockDispatcher{})
	path := "/orders/" + order.ID.String() + "/refunds"

	rr := doAuthRequest(t, router, "POST", path, map[string]string{"amount": "20", "method": "cash", "pin": "1234"}, uuid.New(), enum.UserRoleManager)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if got.PIN != "1234" || got.Amount != "20" {
		t.Errorf("request: %+v", got)
	}
	resp := decodeResponse(t, rr)
	if resp["order"].(map[string]any)["status"] != enum.OrderStatusServed {
		t.Errorf("order should fall back to served: %v", resp["order"])
	}
	balance := resp["balance"].(map[string]any)
	if balance["remaining"] != "20.00" || balance["refundable"] != "30.00" || balance["refunded"] != "20.00" {
		t.Errorf("balance: %v", balance)
	}

	rr = doAuthRequest(t, router, "POST", path, map[string]string{"amount": "40", "method": "cash"}, uuid.New(), enum.UserRoleManager)
	if rr.Code != http.StatusConflict {
		t.Errorf("over-refund: got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp["error"] != "Refund exceeds refundable amount: 30.00" {
		t.Errorf("error: %v", resp["error"])
	}

	rr = doAuthRequest(t, router, "POST", path, map[string]string{"amount": "5", "method": "cash"}, uuid.New(), enum.UserRoleCashier)
	if rr.Code != http.StatusForbidden {
		t.Errorf("cashier refund: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

// --- Ledger ---

func TestLedger(t *testing.T) {
	order := testOrder(enum.OrderStatusServed)
	svc := &mockPaymentService{
		ledgerFn: func(_ context.Context, id uuid.UUID) (*service.Ledger, error) {
			if id != order.ID {
				return nil, service.ErrOrderNotFound
			}
			return &service.Ledger{
				Order: order,
				Payments: []database.Payment{
					testPayment(id, enum.PaymentKindPayment, "50"),
					testPayment(id, enum.PaymentKindRefund, "20"),
				},
				Balance: service.Balance{
					Total: dec("50"), Paid: dec("50"), Refunded: dec("20"),
					NetPaid: dec("30"), Remaining: dec("20"), Refundable: dec("30"),
				},
			}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, svc, nil)

	rr := doAuthRequest(t, router, "GET", "/orders/"+order.ID.String()+"/payments", nil, uuid.New(), enum.UserRoleCashier)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	payments := resp["payments"].([]any)
	if len(payments) != 2 || payments[1].(map[string]any)["kind"] != enum.PaymentKindRefund {
		t.Errorf("payments: %v", payments)
	}
	balance := resp["balance"].(map[string]any)
	for key, want := range map[string]string{
		"total": "50.00", "paid": "50.00", "refunded": "20.00",
		"net_paid": "30.00", "remaining": "20.00", "refundable": "30.00",
	} {
		if balance[key] != want {
			t.Errorf("%s: got %v, want %s", key, balance[key], want)
		}
	}

	rr = doAuthRequest(t, router, "GET", "/orders/"+uuid.New().String()+"/payments", nil, uuid.New(), enum.UserRoleCashier)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing order: got %d", rr.Code)
	}
}
