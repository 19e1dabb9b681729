// Package payment bridges the external payment provider to the order
// ledger: it sizes intents off the pricing engine and reconciles provider
// confirmations into status transitions.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/casa-taqueria/ordering-api/internal/database"
	"github.com/casa-taqueria/ordering-api/internal/enum"
	"github.com/casa-taqueria/ordering-api/internal/pricing"
)

// Errors returned by the reconciler.
var (
	ErrZeroAmount      = errors.New("computed amount must be greater than zero")
	ErrProviderFailure = errors.New("payment provider request failed")
	ErrIntentNotFound  = errors.New("payment intent not found")
)

// Pricer recomputes the intent amount from the catalog. Satisfied by
// *pricing.Engine.
type Pricer interface {
	Price(ctx context.Context, lines []pricing.LineRequest, orderType string) (*pricing.PricedOrder, error)
}

// OrderStore defines the ledger reads/writes reconciliation needs.
// Satisfied by *database.Queries.
type OrderStore interface {
	GetOrderByNumber(ctx context.Context, orderNumber string) (database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
}

// Notifier fans the payment-triggered status change out to subscribers.
type Notifier interface {
	PublishOrderStatusChanged(order database.Order)
}

// IntentResponse is returned to the checkout client.
type IntentResponse struct {
	ClientSecret   string `json:"clientSecret"`
	PublishableKey string `json:"publishableKey"`
	AmountCents    int64  `json:"amount_cents"`
}

// CustomerInfo is the metadata echoed onto the intent.
type CustomerInfo struct {
	Name            string
	Phone           string
	Email           string
	DeliveryAddress string
}

// Reconciler creates correctly-sized payment intents and applies provider
// outcomes to orders.
type Reconciler struct {
	provider       Provider
	pricer         Pricer
	store          OrderStore
	notifier       Notifier
	logger         *slog.Logger
	currency       string
	publishableKey string
}

func NewReconciler(provider Provider, pricer Pricer, store OrderStore, notifier Notifier, logger *slog.Logger, currency, publishableKey string) *Reconciler {
	return &Reconciler{
		provider:       provider,
		pricer:         pricer,
		store:          store,
		notifier:       notifier,
		logger:         logger,
		currency:       currency,
		publishableKey: publishableKey,
	}
}

// CreateIntent re-validates every line against the catalog and sizes the
// intent from that recomputation. Any amount the client may have hinted at
// is ignored; the bounds checks in the pricing engine apply because this
// endpoint is reachable without authentication.
func (r *Reconciler) CreateIntent(ctx context.Context, lines []pricing.LineRequest, orderType string, customer CustomerInfo, orderNumber string) (*IntentResponse, error) {
	priced, err := r.pricer.Price(ctx, lines, orderType)
	if err != nil {
		return nil, err
	}
	if priced.TotalCents <= 0 {
		return nil, ErrZeroAmount
	}

	intent, err := r.provider.CreateIntent(ctx, CreateIntentParams{
		AmountCents:     priced.TotalCents,
		Currency:        r.currency,
		OrderNumber:     orderNumber,
		CustomerName:    customer.Name,
		CustomerPhone:   customer.Phone,
		CustomerEmail:   customer.Email,
		OrderType:       orderType,
		DeliveryAddress: customer.DeliveryAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}

	r.logger.Info("payment intent created",
		"intent_id", intent.ID,
		"order_number", orderNumber,
		"amount_cents", priced.TotalCents)

	return &IntentResponse{
		ClientSecret:   intent.ClientSecret,
		PublishableKey: r.publishableKey,
		AmountCents:    priced.TotalCents,
	}, nil
}

// ConfirmPayment queries the provider for the intent's current status.
func (r *Reconciler) ConfirmPayment(ctx context.Context, intentID string) (string, error) {
	intent, err := r.provider.GetIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, ErrIntentNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}
	return intent.Status, nil
}

// Reconcile applies a provider confirmation to the stored order. On a
// confirmed success it stamps the payment reference and CAS-transitions
// PENDING -> PREPARING. A confirmation for an order that has already moved
// on is a logged no-op; a succeeded payment with no matching order is an
// operational alert that needs manual resolution, never an automatic retry
// or a silently dropped payment.
func (r *Reconciler) Reconcile(ctx context.Context, intent Intent) error {
	log := r.logger.With("intent_id", intent.ID, "order_number", intent.OrderNumber)

	if intent.Status != enum.PaymentStatusSucceeded {
		log.Info("ignoring non-success payment state", "status", intent.Status)
		return nil
	}

	order, err := r.store.GetOrderByNumber(ctx, intent.OrderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Error("payment succeeded but no matching order",
				"alert", "reconciliation_gap",
				"amount_cents", intent.AmountCents)
			return nil
		}
		return fmt.Errorf("get order for reconciliation: %w", err)
	}

	if intent.AmountCents != order.TotalCents {
		log.Error("payment amount disagrees with stored order total",
			"alert", "amount_mismatch",
			"intent_cents", intent.AmountCents,
			"order_cents", order.TotalCents)
		// The payment stands; the discrepancy needs a human, not a retry.
	}

	updated, err := r.store.MarkOrderPaid(ctx, database.MarkOrderPaidParams{
		ID:         order.ID,
		Status:     enum.OrderStatusPreparing,
		PaymentRef: pgtype.Text{String: intent.ID, Valid: true},
		PrevStatus: enum.OrderStatusPending,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The order already left PENDING: a duplicate webhook, a manual
			// kitchen transition, or a cancellation. Never resurrect it.
			log.Info("order already past PENDING, reconciliation is a no-op",
				"status", order.Status)
			return nil
		}
		return fmt.Errorf("mark order paid: %w", err)
	}

	log.Info("order confirmed paid", "order_id", updated.ID, "status", updated.Status)
	r.notifier.PublishOrderStatusChanged(updated)
	return nil
}
