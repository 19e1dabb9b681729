package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/casa-taqueria/ordering-api/internal/payment"
	"github.com/casa-taqueria/ordering-api/internal/pricing"
)

// webhook bodies are small; cap reads to keep the endpoint abuse-resistant
const maxWebhookBodyBytes = 65536

// PaymentReconciler defines the reconciler methods the handlers need.
// Satisfied by *payment.Reconciler; narrow interface for testability.
type PaymentReconciler interface {
	CreateIntent(ctx context.Context, lines []pricing.LineRequest, orderType string, customer payment.CustomerInfo, orderNumber string) (*payment.IntentResponse, error)
	ConfirmPayment(ctx context.Context, intentID string) (string, error)
	Reconcile(ctx context.Context, intent payment.Intent) error
}

// PaymentHandler handles payment-intent creation and provider webhooks.
type PaymentHandler struct {
	reconciler    PaymentReconciler
	webhookSecret string
}

func NewPaymentHandler(reconciler PaymentReconciler, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{reconciler: reconciler, webhookSecret: webhookSecret}
}

// --- Request types ---

type createIntentRequest struct {
	OrderNumber string                   `json:"order_number"`
	OrderType   string                   `json:"order_type"`
	Items       []createOrderLineRequest `json:"items"`
	Customer    intentCustomerInfo       `json:"customer_info"`
}

type intentCustomerInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// --- Handlers ---

// CreateIntent handles POST /payment-intents. The amount is recomputed from
// the catalog inside the reconciler; any client-side figure is ignored.
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OrderNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_number is required"})
		return
	}

	lines, err := toLineRequests(req.Items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp, err := h.reconciler.CreateIntent(r.Context(), lines, req.OrderType, payment.CustomerInfo{
		Name:            req.Customer.Name,
		Phone:           req.Customer.Phone,
		Email:           req.Customer.Email,
		DeliveryAddress: req.Customer.Address,
	}, req.OrderNumber)
	if err != nil {
		switch {
		case pricing.IsValidationError(err), errors.Is(err, payment.ErrZeroAmount):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, payment.ErrProviderFailure):
			slog.Error("create payment intent", "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment provider unavailable"})
		default:
			slog.Error("create payment intent", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetStatus handles GET /payment-intents/{id}/status, mapping the
// provider's state to the internal payment status enum.
func (h *PaymentHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	intentID := chi.URLParam(r, "id")
	if intentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "intent id is required"})
		return
	}

	status, err := h.reconciler.ConfirmPayment(r.Context(), intentID)
	if err != nil {
		if errors.Is(err, payment.ErrIntentNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "payment intent not found"})
			return
		}
		slog.Error("confirm payment", "error", err, "intent_id", intentID)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment provider unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// Webhook handles POST /webhooks/stripe. Signature verification happens
// before anything else; an unverifiable payload is dropped with a 400 so
// the provider retries. Reconciliation itself is idempotent, so duplicate
// deliveries are harmless.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		slog.Warn("stripe webhook signature rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			slog.Error("stripe webhook payload", "error", err, "event_type", event.Type)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed event payload"})
			return
		}
		if err := h.reconciler.Reconcile(r.Context(), payment.FromStripeIntent(&pi)); err != nil {
			// Transient store failure: non-2xx makes the provider redeliver.
			slog.Error("reconcile payment", "error", err, "intent_id", pi.ID)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reconciliation failed"})
			return
		}
	default:
		slog.Debug("ignoring stripe event", "event_type", event.Type)
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}
