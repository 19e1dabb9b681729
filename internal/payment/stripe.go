package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/casa-taqueria/ordering-api/internal/enum"
)

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	api *client.API
}

func NewStripeProvider(secretKey string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api}
}

func (p *StripeProvider) CreateIntent(ctx context.Context, params CreateIntentParams) (Intent, error) {
	piParams := &stripe.PaymentIntentParams{
		Params:             stripe.Params{Context: ctx},
		Amount:             stripe.Int64(params.AmountCents),
		Currency:           stripe.String(params.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Description:        stripe.String("Order " + params.OrderNumber),
	}
	if params.CustomerEmail != "" {
		piParams.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	piParams.AddMetadata("order_number", params.OrderNumber)
	piParams.AddMetadata("customer_name", params.CustomerName)
	piParams.AddMetadata("customer_phone", params.CustomerPhone)
	piParams.AddMetadata("order_type", params.OrderType)
	piParams.AddMetadata("delivery_address", params.DeliveryAddress)

	pi, err := p.api.PaymentIntents.New(piParams)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe create intent: %w", err)
	}
	return fromStripe(pi), nil
}

func (p *StripeProvider) GetIntent(ctx context.Context, id string) (Intent, error) {
	pi, err := p.api.PaymentIntents.Get(id, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		// An unknown or malformed intent id is the caller's mistake, not a
		// provider outage.
		var sErr *stripe.Error
		if errors.As(err, &sErr) && sErr.Code == stripe.ErrorCodeResourceMissing {
			return Intent{}, fmt.Errorf("%w: %s", ErrIntentNotFound, id)
		}
		return Intent{}, fmt.Errorf("stripe get intent: %w", err)
	}
	return fromStripe(pi), nil
}

// FromStripeIntent converts a webhook-delivered payment intent to the
// provider-agnostic form.
func FromStripeIntent(pi *stripe.PaymentIntent) Intent {
	return fromStripe(pi)
}

func fromStripe(pi *stripe.PaymentIntent) Intent {
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       mapStripeStatus(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		OrderNumber:  pi.Metadata["order_number"],
	}
}

func mapStripeStatus(s stripe.PaymentIntentStatus) string {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return enum.PaymentStatusSucceeded
	case stripe.PaymentIntentStatusProcessing:
		return enum.PaymentStatusProcessing
	case stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresPaymentMethod:
		return enum.PaymentStatusRequiresAction
	default:
		return enum.PaymentStatusFailed
	}
}
