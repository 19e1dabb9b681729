package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/casa-taqueria/ordering-api/internal/database"
	"github.com/casa-taqueria/ordering-api/internal/enum"
	"github.com/casa-taqueria/ordering-api/internal/ledger"
	"github.com/casa-taqueria/ordering-api/internal/middleware"
	"github.com/casa-taqueria/ordering-api/internal/money"
	"github.com/casa-taqueria/ordering-api/internal/pricing"
)

// Pricer prices a cart against the catalog. Satisfied by *pricing.Engine.
type Pricer interface {
	Price(ctx context.Context, lines []pricing.LineRequest, orderType string) (*pricing.PricedOrder, error)
}

// Ledger defines the order-ledger operations the handlers need.
// Satisfied by *ledger.Service; narrow interface for testability.
type Ledger interface {
	CreateOrder(ctx context.Context, customer ledger.CustomerInfo, orderType string, priced *pricing.PricedOrder) (*ledger.OrderWithLines, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, target string) (database.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*ledger.OrderWithLines, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*ledger.OrderWithLines, error)
	ListActiveOrders(ctx context.Context) ([]ledger.OrderWithLines, error)
	ListOrders(ctx context.Context, status string, limit, offset int32) ([]database.Order, error)
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
}

// Notifier fans order events out to the kitchen display and status pages.
// Satisfied by *ws.Hub.
type Notifier interface {
	PublishOrderCreated(order database.Order)
	PublishOrderStatusChanged(order database.Order)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	pricer   Pricer
	ledger   Ledger
	notifier Notifier
}

func NewOrderHandler(pricer Pricer, ldg Ledger, notifier Notifier) *OrderHandler {
	return &OrderHandler{pricer: pricer, ledger: ldg, notifier: notifier}
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerName    string                   `json:"customer_name"`
	CustomerPhone   string                   `json:"customer_phone"`
	CustomerEmail   string                   `json:"customer_email"`
	OrderType       string                   `json:"order_type"`
	DeliveryAddress string                   `json:"delivery_address"`
	Notes           string                   `json:"notes"`
	Items           []createOrderLineRequest `json:"items"`
}

// createOrderLineRequest deliberately has no price field; whatever amounts a
// client sends are discarded by the decoder.
type createOrderLineRequest struct {
	ItemID        string `json:"item_id"`
	Quantity      int32  `json:"quantity"`
	Customization string `json:"customization"`
}

type orderResponse struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      string              `json:"order_number"`
	CustomerName     string              `json:"customer_name"`
	CustomerPhone    string              `json:"customer_phone"`
	CustomerEmail    *string             `json:"customer_email"`
	OrderType        string              `json:"order_type"`
	DeliveryAddress  *string             `json:"delivery_address"`
	Notes            *string             `json:"notes"`
	Status           string              `json:"status"`
	SubtotalCents    int64               `json:"subtotal_cents"`
	TaxCents         int64               `json:"tax_cents"`
	DeliveryFeeCents int64               `json:"delivery_fee_cents"`
	TotalCents       int64               `json:"total_cents"`
	Subtotal         string              `json:"subtotal"`
	Tax              string              `json:"tax"`
	DeliveryFee      string              `json:"delivery_fee"`
	Total            string              `json:"total"`
	PaymentRef       *string             `json:"payment_ref"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Items            []orderLineResponse `json:"items,omitempty"`
}

type orderLineResponse struct {
	ID             uuid.UUID `json:"id"`
	ItemID         uuid.UUID `json:"item_id"`
	ItemName       string    `json:"item_name"`
	Quantity       int32     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	UnitPrice      string    `json:"unit_price"`
	Customization  *string   `json:"customization"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /orders: price the cart fresh off the catalog, then
// persist the snapshot atomically.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.OrderType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_type is required"})
		return
	}

	// Required-field checks run before any pricing or payment work.
	customer := ledger.CustomerInfo{
		Name:            req.CustomerName,
		Phone:           req.CustomerPhone,
		Email:           req.CustomerEmail,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	}
	if err := validateCustomer(customer, req.OrderType); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	lines, err := toLineRequests(req.Items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	priced, err := h.pricer.Price(r.Context(), lines, req.OrderType)
	if err != nil {
		if pricing.IsValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeServerError(w, "price order", err)
		return
	}

	result, err := h.ledger.CreateOrder(r.Context(), customer, req.OrderType, priced)
	if err != nil {
		if isLedgerValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeServerError(w, "create order", err)
		return
	}

	h.notifier.PublishOrderCreated(result.Order)
	writeJSON(w, http.StatusCreated, toOrderResponse(result))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	result, err := h.ledger.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeLedgerError(w, err, "get order")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// List handles GET /orders. With ?order_number= it is a public single-order
// lookup; without it it is the staff listing and requires a token.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	if number := r.URL.Query().Get("order_number"); number != "" {
		result, err := h.ledger.GetOrderByNumber(r.Context(), number)
		if err != nil {
			h.writeLedgerError(w, err, "get order by number")
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(result))
		return
	}

	if middleware.ClaimsFromContext(r.Context()) == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	orders, err := h.ledger.ListOrders(r.Context(), r.URL.Query().Get("status"), int32(limit), int32(offset))
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidStatus) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		writeServerError(w, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderOnlyResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// ListActive handles GET /orders/active — the kitchen queue, oldest first.
func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	orders, err := h.ledger.ListActiveOrders(r.Context())
	if err != nil {
		writeServerError(w, "list active orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}

// UpdateStatus handles PATCH /orders/{id}/status. Invalid edges and lost
// CAS races both surface as 409; the terminal must re-fetch and retry its
// intent, never blind-write.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
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

	updated, err := h.ledger.TransitionStatus(r.Context(), orderID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, ledger.ErrInvalidStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		case errors.Is(err, ledger.ErrInvalidTransition), errors.Is(err, ledger.ErrTransitionConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			writeServerError(w, "update order status", err)
		}
		return
	}

	h.notifier.PublishOrderStatusChanged(updated)
	writeJSON(w, http.StatusOK, toOrderOnlyResponse(updated))
}

// Delete handles DELETE /orders/{id} — the admin-only hard delete override.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	if err := h.ledger.DeleteOrder(r.Context(), orderID); err != nil {
		h.writeLedgerError(w, err, "delete order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *OrderHandler) writeLedgerError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, ledger.ErrOrderNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeServerError(w, op, err)
}

func validateCustomer(c ledger.CustomerInfo, orderType string) error {
	if c.Name == "" {
		return ledger.ErrNameRequired
	}
	if c.Phone == "" {
		return ledger.ErrPhoneRequired
	}
	if orderType == enum.OrderTypeDelivery && c.DeliveryAddress == "" {
		return ledger.ErrAddressRequired
	}
	return nil
}

func isLedgerValidationError(err error) bool {
	return errors.Is(err, ledger.ErrNameRequired) ||
		errors.Is(err, ledger.ErrPhoneRequired) ||
		errors.Is(err, ledger.ErrAddressRequired)
}

func toLineRequests(items []createOrderLineRequest) ([]pricing.LineRequest, error) {
	lines := make([]pricing.LineRequest, len(items))
	for i, item := range items {
		itemID, err := uuid.Parse(item.ItemID)
		if err != nil {
			return nil, errors.New("items[" + strconv.Itoa(i) + "]: invalid item_id")
		}
		lines[i] = pricing.LineRequest{
			ItemID:        itemID,
			Quantity:      item.Quantity,
			Customization: item.Customization,
		}
	}
	return lines, nil
}

func toOrderResponse(result *ledger.OrderWithLines) orderResponse {
	resp := toOrderOnlyResponse(result.Order)
	resp.Items = make([]orderLineResponse, len(result.Lines))
	for i, l := range result.Lines {
		resp.Items[i] = orderLineResponse{
			ID:             l.ID,
			ItemID:         l.ItemID,
			ItemName:       l.ItemName,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			UnitPrice:      money.FormatCents(l.UnitPriceCents),
		}
		if l.Customization.Valid {
			resp.Items[i].Customization = &l.Customization.String
		}
	}
	return resp
}

func toOrderOnlyResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		CustomerName:     o.CustomerName,
		CustomerPhone:    o.CustomerPhone,
		OrderType:        o.OrderType,
		Status:           o.Status,
		SubtotalCents:    o.SubtotalCents,
		TaxCents:         o.TaxCents,
		DeliveryFeeCents: o.DeliveryFeeCents,
		TotalCents:       o.TotalCents,
		Subtotal:         money.FormatCents(o.SubtotalCents),
		Tax:              money.FormatCents(o.TaxCents),
		DeliveryFee:      money.FormatCents(o.DeliveryFeeCents),
		Total:            money.FormatCents(o.TotalCents),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if o.CustomerEmail.Valid {
		resp.CustomerEmail = &o.CustomerEmail.String
	}
	if o.DeliveryAddress.Valid {
		resp.DeliveryAddress = &o.DeliveryAddress.String
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if o.PaymentRef.Valid {
		resp.PaymentRef = &o.PaymentRef.String
	}
	return resp
}
