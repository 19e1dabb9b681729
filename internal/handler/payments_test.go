package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"

	"github.com/casa-taqueria/ordering-api/internal/enum"
	"github.com/casa-taqueria/ordering-api/internal/payment"
	"github.com/casa-taqueria/ordering-api/internal/pricing"
)

const testWebhookSecret = "whsec_test_secret"

type mockReconciler struct {
	createIntentFn   func(ctx context.Context, lines []pricing.LineRequest, orderType string, customer payment.CustomerInfo, orderNumber string) (*payment.IntentResponse, error)
	confirmPaymentFn func(ctx context.Context, intentID string) (string, error)
	reconcileFn      func(ctx context.Context, intent payment.Intent) error
}

func (m *mockReconciler) CreateIntent(ctx context.Context, lines []pricing.LineRequest, orderType string, customer payment.CustomerInfo, orderNumber string) (*payment.IntentResponse, error) {
	return m.createIntentFn(ctx, lines, orderType, customer, orderNumber)
}

func (m *mockReconciler) ConfirmPayment(ctx context.Context, intentID string) (string, error) {
	return m.confirmPaymentFn(ctx, intentID)
}

func (m *mockReconciler) Reconcile(ctx context.Context, intent payment.Intent) error {
	return m.reconcileFn(ctx, intent)
}

func newPaymentStatusRouter(h *PaymentHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/payment-intents/{id}/status", h.GetStatus)
	return r
}

// signPayload builds a Stripe-Signature header the way Stripe does:
// v1 = HMAC-SHA256(secret, "<timestamp>.<payload>").
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func succeededEventPayload(intentID, orderNumber string, amountCents int64) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"api_version": %q,
		"data": {
			"object": {
				"id": %q,
				"object": "payment_intent",
				"amount": %d,
				"currency": "usd",
				"status": "succeeded",
				"metadata": {"order_number": %q}
			}
		}
	}`, stripe.APIVersion, intentID, amountCents, orderNumber))
}

func TestCreateIntentEndpoint(t *testing.T) {
	itemID := uuid.New()
	rec := &mockReconciler{
		createIntentFn: func(ctx context.Context, lines []pricing.LineRequest, orderType string, customer payment.CustomerInfo, orderNumber string) (*payment.IntentResponse, error) {
			if orderNumber != "ORD-20260830-001" || orderType != enum.OrderTypePickup {
				t.Errorf("orderNumber=%q orderType=%q", orderNumber, orderType)
			}
			if len(lines) != 1 || lines[0].ItemID != itemID {
				t.Errorf("lines = %+v", lines)
			}
			return &payment.IntentResponse{ClientSecret: "pi_1_secret", PublishableKey: "pk_test", AmountCents: 653}, nil
		},
	}
	h := NewPaymentHandler(rec, testWebhookSecret)

	body := `{
		"order_number": "ORD-20260830-001",
		"order_type": "PICKUP",
		"items": [{"item_id": "` + itemID.String() + `", "quantity": 2}],
		"customer_info": {"name": "Ana", "phone": "555-0100"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/payment-intents", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.CreateIntent(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("pi_1_secret")) {
		t.Errorf("response missing client secret: %s", w.Body.String())
	}
}

func TestCreateIntentMissingOrderNumber(t *testing.T) {
	h := NewPaymentHandler(&mockReconciler{}, testWebhookSecret)

	req := httptest.NewRequest(http.MethodPost, "/payment-intents",
		bytes.NewBufferString(`{"order_type":"PICKUP","items":[]}`))
	w := httptest.NewRecorder()
	h.CreateIntent(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateIntentErrorMapping(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"cart rejected", pricing.ErrItemUnavailable, http.StatusBadRequest},
		{"zero amount", payment.ErrZeroAmount, http.StatusBadRequest},
		{"provider down", payment.ErrProviderFailure, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &mockReconciler{
				createIntentFn: func(ctx context.Context, lines []pricing.LineRequest, orderType string, customer payment.CustomerInfo, orderNumber string) (*payment.IntentResponse, error) {
					return nil, tc.err
				},
			}
			h := NewPaymentHandler(rec, testWebhookSecret)

			req := httptest.NewRequest(http.MethodPost, "/payment-intents",
				bytes.NewBufferString(`{"order_number":"ORD-1","order_type":"PICKUP","items":[]}`))
			w := httptest.NewRecorder()
			h.CreateIntent(w, req)

			if w.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tc.wantCode)
			}
		})
	}
}

func TestGetPaymentStatus(t *testing.T) {
	rec := &mockReconciler{
		confirmPaymentFn: func(ctx context.Context, intentID string) (string, error) {
			if intentID != "pi_123" {
				t.Errorf("intent id = %q", intentID)
			}
			return enum.PaymentStatusSucceeded, nil
		},
	}
	h := NewPaymentHandler(rec, testWebhookSecret)

	r := newPaymentStatusRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/payment-intents/pi_123/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("SUCCEEDED")) {
		t.Errorf("response = %s", w.Body.String())
	}
}

func TestGetPaymentStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"unknown intent id", fmt.Errorf("%w: pi_bogus", payment.ErrIntentNotFound), http.StatusNotFound},
		{"provider outage", fmt.Errorf("%w: connection refused", payment.ErrProviderFailure), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockReconciler{
				confirmPaymentFn: func(ctx context.Context, intentID string) (string, error) {
					return "", tt.err
				},
			}
			h := NewPaymentHandler(rec, testWebhookSecret)

			r := newPaymentStatusRouter(h)
			req := httptest.NewRequest(http.MethodGet, "/payment-intents/pi_bogus/status", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestWebhookVerifiedSuccessReconciles(t *testing.T) {
	var got payment.Intent
	rec := &mockReconciler{
		reconcileFn: func(ctx context.Context, intent payment.Intent) error {
			got = intent
			return nil
		},
	}
	h := NewPaymentHandler(rec, testWebhookSecret)

	payload := succeededEventPayload("pi_123", "ORD-20260830-001", 653)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Stripe-Signature", signPayload(payload, testWebhookSecret, time.Now()))
	w := httptest.NewRecorder()
	h.Webhook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got.ID != "pi_123" || got.Status != enum.PaymentStatusSucceeded ||
		got.AmountCents != 653 || got.OrderNumber != "ORD-20260830-001" {
		t.Errorf("reconciled intent = %+v", got)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	rec := &mockReconciler{
		reconcileFn: func(ctx context.Context, intent payment.Intent) error {
			t.Error("unverified payloads must never reach the reconciler")
			return nil
		},
	}
	h := NewPaymentHandler(rec, testWebhookSecret)

	payload := succeededEventPayload("pi_123", "ORD-20260830-001", 653)

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBuffer(payload))
		req.Header.Set("Stripe-Signature", signPayload(payload, "whsec_wrong", time.Now()))
		w := httptest.NewRecorder()
		h.Webhook(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBuffer(payload))
		w := httptest.NewRecorder()
		h.Webhook(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("stale timestamp", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBuffer(payload))
		req.Header.Set("Stripe-Signature", signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour)))
		w := httptest.NewRecorder()
		h.Webhook(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestWebhookIgnoresUnhandledEvents(t *testing.T) {
	rec := &mockReconciler{
		reconcileFn: func(ctx context.Context, intent payment.Intent) error {
			t.Error("unhandled event types must not reconcile")
			return nil
		},
	}
	h := NewPaymentHandler(rec, testWebhookSecret)

	payload := []byte(fmt.Sprintf(`{"id":"evt_2","type":"charge.refunded","api_version":%q,"data":{"object":{}}}`, stripe.APIVersion))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Stripe-Signature", signPayload(payload, testWebhookSecret, time.Now()))
	w := httptest.NewRecorder()
	h.Webhook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestWebhookReconcileFailureReturns500(t *testing.T) {
	rec := &mockReconciler{
		reconcileFn: func(ctx context.Context, intent payment.Intent) error {
			return errors.New("db unavailable")
		},
	}
	h := NewPaymentHandler(rec, testWebhookSecret)

	payload := succeededEventPayload("pi_123", "ORD-20260830-001", 653)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Stripe-Signature", signPayload(payload, testWebhookSecret, time.Now()))
	w := httptest.NewRecorder()
	h.Webhook(w, req)

	// 500 tells the provider to redeliver.
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500: %s", w.Code, w.Body.String())
	}
}
