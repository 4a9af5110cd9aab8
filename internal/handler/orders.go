package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/pricing"
	"github.com/tablepos/engine/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	UpdateItems(ctx context.Context, orderID uuid.UUID, req service.UpdateItemsRequest) (*service.OrderResult, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string, actor service.Actor) (*service.OrderResult, error)
	Cancel(ctx context.Context, orderID uuid.UUID, req service.CancelRequest) (*service.OrderResult, error)
	SoftDelete(ctx context.Context, orderID uuid.UUID, actor service.Actor) error
	Delete(ctx context.Context, orderID uuid.UUID, actor service.Actor) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*service.OrderResult, error)
	ListOrders(ctx context.Context, req service.ListOrdersRequest) ([]database.Order, error)
	Preview(ctx context.Context, req service.PreviewRequest) (*service.Preview, error)
}

// Dispatcher runs the side effects of a committed change.
// Satisfied by *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(events []service.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc        OrderServicer
	dispatcher Dispatcher
}

// NewOrderHandler creates a new OrderHandler. dispatcher may be nil.
func NewOrderHandler(svc OrderServicer, dispatcher Dispatcher) *OrderHandler {
	return &OrderHandler{svc: svc, dispatcher: dispatcher}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/preview", h.Preview)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/items", h.UpdateItems)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/soft-delete", h.SoftDelete)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type lineRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Guest      int32  `json:"guest"`
	Note       string `json:"note"`
}

type createOrderRequest struct {
	OrderType      string        `json:"order_type"`
	TableID        string        `json:"table_id"`
	Notes          string        `json:"notes"`
	ManualDiscount string        `json:"manual_discount"`
	Hold           bool          `json:"hold"`
	Items          []lineRequest `json:"items"`
}

type lineUpdateRequest struct {
	LineID   string  `json:"line_id"`
	Quantity *int32  `json:"quantity"`
	Guest    *int32  `json:"guest"`
	Note     *string `json:"note"`
}

type updateItemsRequest struct {
	Add    []lineRequest       `json:"add"`
	Update []lineUpdateRequest `json:"update"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type cancelRequest struct {
	PIN string `json:"pin"`
}

type previewRequest struct {
	OrderType      string        `json:"order_type"`
	TableID        string        `json:"table_id"`
	ManualDiscount string        `json:"manual_discount"`
	Items          []lineRequest `json:"items"`
}

type orderResponse struct {
	ID                uuid.UUID           `json:"id"`
	OrderNumber       string              `json:"order_number"`
	OrderType         string              `json:"order_type"`
	TableID           *uuid.UUID          `json:"table_id"`
	Status            string              `json:"status"`
	Notes             *string             `json:"notes"`
	Subtotal          string              `json:"subtotal"`
	ManualDiscount    string              `json:"manual_discount"`
	PromotionDiscount string              `json:"promotion_discount"`
	RuleDiscount      string              `json:"rule_discount"`
	DiscountAmount    string              `json:"discount_amount"`
	ServiceCharge     string              `json:"service_charge"`
	TaxAmount         string              `json:"tax_amount"`
	TotalAmount       string              `json:"total_amount"`
	IsDeleted         bool                `json:"is_deleted"`
	OpenedBy          uuid.UUID           `json:"opened_by"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	Lines             []lineResponse      `json:"lines,omitempty"`
	Promotions        []promotionResponse `json:"promotions,omitempty"`
	AppliedRules      []string            `json:"applied_rules,omitempty"`
}

type lineResponse struct {
	ID           *uuid.UUID `json:"id,omitempty"`
	MenuItemID   uuid.UUID  `json:"menu_item_id"`
	ItemName     string     `json:"item_name"`
	CategoryName string     `json:"category_name"`
	Quantity     int32      `json:"quantity"`
	ChargedQty   int32      `json:"charged_quantity"`
	Guest        int32      `json:"guest"`
	Note         *string    `json:"note"`
	BasePrice    string     `json:"base_price"`
	UnitPrice    string     `json:"unit_price"`
	LineTotal    string     `json:"line_total"`
	AutoAddedBy  *string    `json:"auto_added_by"`
}

type promotionResponse struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Amount string    `json:"amount"`
}

type previewResponse struct {
	Subtotal       string              `json:"subtotal"`
	DiscountAmount string              `json:"discount_amount"`
	ServiceCharge  string              `json:"service_charge"`
	TaxAmount      string              `json:"tax_amount"`
	TotalAmount    string              `json:"total_amount"`
	Lines          []lineResponse      `json:"lines"`
	Promotions     []promotionResponse `json:"promotions"`
	AppliedRules   []string            `json:"applied_rules"`
	Print          map[string]any      `json:"print,omitempty"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		Actor:          actor,
		OrderType:      req.OrderType,
		TableID:        req.TableID,
		Notes:          req.Notes,
		ManualDiscount: req.ManualDiscount,
		Hold:           req.Hold,
		Items:          toLineInputs(req.Items),
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}

	h.dispatch(result.Events)
	writeJSON(w, http.StatusCreated, toOrderResponse(result))
}

// List handles GET /orders.
// Query: status, from, to (RFC 3339 or YYYY-MM-DD), prefix, include_deleted, limit, offset.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := service.ListOrdersRequest{
		Status: q.Get("status"),
		Prefix: q.Get("prefix"),
		Limit:  20,
	}

	var err error
	if req.From, err = parseTimeParam(q.Get("from")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from"})
		return
	}
	if req.To, err = parseTimeParam(q.Get("to")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to"})
		return
	}
	if s := q.Get("include_deleted"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid include_deleted"})
			return
		}
		req.IncludeDeleted = v
	}

	if s := q.Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			req.Limit = int32(v)
		}
	}
	if req.Limit > 100 {
		req.Limit = 100
	}
	if s := q.Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			req.Offset = int32(v)
		}
	}

	orders, err := h.svc.ListOrders(r.Context(), req)
	if err != nil {
		writeServiceError(w, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": resp,
		"limit":  req.Limit,
		"offset": req.Offset,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// UpdateItems handles POST /orders/{id}/items.
func (h *OrderHandler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updates := make([]service.LineUpdate, len(req.Update))
	for i, u := range req.Update {
		updates[i] = service.LineUpdate{LineID: u.LineID, Quantity: u.Quantity, Guest: u.Guest, Note: u.Note}
	}

	result, err := h.svc.UpdateItems(r.Context(), orderID, service.UpdateItemsRequest{
		Actor:  actor,
		Add:    toLineInputs(req.Add),
		Update: updates,
	})
	if err != nil {
		writeServiceError(w, "update order items", err)
		return
	}

	h.dispatch(result.Events)
	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	result, err := h.svc.UpdateStatus(r.Context(), orderID, req.Status, actor)
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}

	h.dispatch(result.Events)
	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// Cancel handles POST /orders/{id}/cancel. The body is optional and only
// carries a manager PIN.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	result, err := h.svc.Cancel(r.Context(), orderID, service.CancelRequest{Actor: actor, PIN: req.PIN})
	if err != nil {
		writeServiceError(w, "cancel order", err)
		return
	}

	h.dispatch(result.Events)
	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// SoftDelete handles POST /orders/{id}/soft-delete.
func (h *OrderHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.SoftDelete(r.Context(), orderID, actor); err != nil {
		writeServiceError(w, "soft delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /orders/{id}. The order and everything hanging off it
// is removed.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), orderID, actor); err != nil {
		writeServiceError(w, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Preview handles POST /orders/preview. Nothing is persisted.
func (h *OrderHandler) Preview(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	p, err := h.svc.Preview(r.Context(), service.PreviewRequest{
		Actor:          actor,
		OrderType:      req.OrderType,
		TableID:        req.TableID,
		ManualDiscount: req.ManualDiscount,
		Items:          toLineInputs(req.Items),
	})
	if err != nil {
		writeServiceError(w, "preview order", err)
		return
	}

	resp := previewResponse{
		Subtotal:       p.Totals.Subtotal.StringFixed(2),
		DiscountAmount: p.Totals.DiscountAmount.StringFixed(2),
		ServiceCharge:  p.Totals.ServiceCharge.StringFixed(2),
		TaxAmount:      p.Totals.TaxAmount.StringFixed(2),
		TotalAmount:    p.Totals.Total.StringFixed(2),
		Lines:          make([]lineResponse, len(p.Lines)),
		Promotions:     toPromotionResponses(p.Promotions),
		AppliedRules:   p.AppliedRules,
		Print:          p.Print,
	}
	for i, l := range p.Lines {
		resp.Lines[i] = pricedLineToResponse(l)
	}
	if resp.AppliedRules == nil {
		resp.AppliedRules = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *OrderHandler) dispatch(events []service.Event) {
	if h.dispatcher != nil && len(events) > 0 {
		h.dispatcher.Dispatch(events)
	}
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func toLineInputs(items []lineRequest) []service.LineInput {
	out := make([]service.LineInput, len(items))
	for i, it := range items {
		out[i] = service.LineInput{
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			Guest:      it.Guest,
			Note:       it.Note,
		}
	}
	return out
}

func toOrderResponse(result *service.OrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Lines = make([]lineResponse, len(result.Lines))
	for i, l := range result.Lines {
		resp.Lines[i] = dbLineToResponse(l)
	}
	resp.Promotions = toPromotionResponses(result.Promotions)
	resp.AppliedRules = result.AppliedRules
	return resp
}

// dbOrderToResponse converts a database.Order without its lines, for list
// endpoints.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		OrderType:         o.OrderType,
		Status:            o.Status,
		Notes:             optionalString(o.Notes),
		Subtotal:          money(o.Subtotal),
		ManualDiscount:    money(o.ManualDiscount),
		PromotionDiscount: money(o.PromotionDiscount),
		RuleDiscount:      money(o.RuleDiscount),
		DiscountAmount:    money(o.DiscountAmount),
		ServiceCharge:     money(o.ServiceCharge),
		TaxAmount:         money(o.TaxAmount),
		TotalAmount:       money(o.TotalAmount),
		IsDeleted:         o.IsDeleted,
		OpenedBy:          o.OpenedBy,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if o.TableID.Valid {
		id := uuid.UUID(o.TableID.Bytes)
		resp.TableID = &id
	}
	return resp
}

func dbLineToResponse(l database.OrderLine) lineResponse {
	id := l.ID
	return lineResponse{
		ID:           &id,
		MenuItemID:   l.MenuItemID,
		ItemName:     l.ItemName,
		CategoryName: l.CategoryName,
		Quantity:     l.Quantity,
		ChargedQty:   l.ChargedQuantity,
		Guest:        l.Guest,
		Note:         optionalString(l.Note),
		BasePrice:    money(l.BasePrice),
		UnitPrice:    money(l.UnitPrice),
		LineTotal:    money(l.LineTotal),
		AutoAddedBy:  optionalString(l.AutoAddedBy),
	}
}

func pricedLineToResponse(l pricing.Line) lineResponse {
	resp := lineResponse{
		MenuItemID:   l.MenuItemID,
		ItemName:     l.Name,
		CategoryName: l.CategoryName,
		Quantity:     l.Quantity,
		ChargedQty:   l.ChargedQty,
		Guest:        l.Guest,
		BasePrice:    l.BasePrice.StringFixed(2),
		UnitPrice:    l.UnitPrice.StringFixed(2),
		LineTotal:    l.LineTotal.StringFixed(2),
	}
	if l.Note != "" {
		note := l.Note
		resp.Note = &note
	}
	if l.AutoAddedBy != "" {
		by := l.AutoAddedBy
		resp.AutoAddedBy = &by
	}
	return resp
}

func toPromotionResponses(applied []pricing.AppliedPromotion) []promotionResponse {
	out := make([]promotionResponse, len(applied))
	for i, p := range applied {
		out[i] = promotionResponse{ID: p.PromotionID, Name: p.Name, Amount: p.Amount.StringFixed(2)}
	}
	return out
}
