package payment

import "context"

// Intent is the provider-agnostic view of an external payment intent. The
// provider owns the intent lifecycle; orders only hold its id.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string // enum.PaymentStatus*
	AmountCents  int64
	Currency     string
	OrderNumber  string // metadata echo
}

// CreateIntentParams carries the server-computed amount and the metadata
// echoed back on webhooks. The amount is never client-supplied.
type CreateIntentParams struct {
	AmountCents     int64
	Currency        string
	OrderNumber     string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	OrderType       string
	DeliveryAddress string
}

// Provider is the external payment service. Satisfied by StripeProvider;
// narrow interface for testability.
type Provider interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (Intent, error)
	GetIntent(ctx context.Context, id string) (Intent, error)
}
