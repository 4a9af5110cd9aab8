package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService; narrow interface for testability.
type PaymentServicer interface {
	AddPayment(ctx context.Context, orderID uuid.UUID, req service.PaymentRequest) (*service.LedgerResult, error)
	AddRefund(ctx context.Context, orderID uuid.UUID, req service.RefundRequest) (*service.LedgerResult, error)
	Ledger(ctx context.Context, orderID uuid.UUID) (*service.Ledger, error)
}

// PaymentHandler handles payment and refund endpoints.
type PaymentHandler struct {
	svc        PaymentServicer
	dispatcher Dispatcher
}

// NewPaymentHandler creates a new PaymentHandler. dispatcher may be nil.
func NewPaymentHandler(svc PaymentServicer, dispatcher Dispatcher) *PaymentHandler {
	return &PaymentHandler{svc: svc, dispatcher: dispatcher}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to share the /orders subrouter with OrderHandler.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}/payments", h.Ledger)
	r.Post("/{id}/payments", h.AddPayment)
	r.Post("/{id}/refunds", h.AddRefund)
}

// --- Request / Response types ---

type paymentRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
	Note   string `json:"note"`
}

type refundRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
	Note   string `json:"note"`
	PIN    string `json:"pin"`
}

type paymentResponse struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	Kind      string    `json:"kind"`
	Method    string    `json:"method"`
	Amount    string    `json:"amount"`
	Note      *string   `json:"note"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type balanceResponse struct {
	Total      string `json:"total"`
	Paid       string `json:"paid"`
	Refunded   string `json:"refunded"`
	NetPaid    string `json:"net_paid"`
	Remaining  string `json:"remaining"`
	Refundable string `json:"refundable"`
}

type ledgerEntryResponse struct {
	Payment paymentResponse `json:"payment"`
	Order   orderResponse   `json:"order"`
	Balance balanceResponse `json:"balance"`
}

type ledgerResponse struct {
	Order    orderResponse     `json:"order"`
	Payments []paymentResponse `json:"payments"`
	Balance  balanceResponse   `json:"balance"`
}

// --- Handlers ---

// AddPayment handles POST /orders/{id}/payments.
func (h *PaymentHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.AddPayment(r.Context(), orderID, service.PaymentRequest{
		Actor:  actor,
		Amount: req.Amount,
		Method: req.Method,
		Note:   req.Note,
	})
	if err != nil {
		writeServiceError(w, "add payment", err)
		return
	}

	h.dispatch(result.Events)
	writeJSON(w, http.StatusCreated, toLedgerEntryResponse(result))
}

// AddRefund handles POST /orders/{id}/refunds.
func (h *PaymentHandler) AddRefund(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.AddRefund(r.Context(), orderID, service.RefundRequest{
		Actor:  actor,
		Amount: req.Amount,
		Method: req.Method,
		Note:   req.Note,
		PIN:    req.PIN,
	})
	if err != nil {
		writeServiceError(w, "add refund", err)
		return
	}

	h.dispatch(result.Events)
	writeJSON(w, http.StatusCreated, toLedgerEntryResponse(result))
}

// Ledger handles GET /orders/{id}/payments.
func (h *PaymentHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	ledger, err := h.svc.Ledger(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "get ledger", err)
		return
	}

	resp := ledgerResponse{
		Order:    dbOrderToResponse(ledger.Order),
		Payments: make([]paymentResponse, len(ledger.Payments)),
		Balance:  toBalanceResponse(ledger.Balance),
	}
	for i, p := range ledger.Payments {
		resp.Payments[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *PaymentHandler) dispatch(events []service.Event) {
	if h.dispatcher != nil && len(events) > 0 {
		h.dispatcher.Dispatch(events)
	}
}

func toLedgerEntryResponse(result *service.LedgerResult) ledgerEntryResponse {
	return ledgerEntryResponse{
		Payment: toPaymentResponse(result.Payment),
		Order:   dbOrderToResponse(result.Order),
		Balance: toBalanceResponse(result.Balance),
	}
}

func toPaymentResponse(p database.Payment) paymentResponse {
	return paymentResponse{
		ID:        p.ID,
		OrderID:   p.OrderID,
		Kind:      p.Kind,
		Method:    p.Method,
		Amount:    money(p.Amount),
		Note:      optionalString(p.Note),
		CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt,
	}
}

func toBalanceResponse(b service.Balance) balanceResponse {
	return balanceResponse{
		Total:      b.Total.StringFixed(2),
		Paid:       b.Paid.StringFixed(2),
		Refunded:   b.Refunded.StringFixed(2),
		NetPaid:    b.NetPaid.StringFixed(2),
		Remaining:  b.Remaining.StringFixed(2),
		Refundable: b.Refundable.StringFixed(2),
	}
}
