// Package ledger owns the durable order record and its status state
// machine. Every status write goes through a compare-and-swap so concurrent
// kitchen terminals and payment confirmations cannot clobber each other.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/casa-taqueria/ordering-api/internal/database"
	"github.com/casa-taqueria/ordering-api/internal/enum"
	"github.com/casa-taqueria/ordering-api/internal/pricing"
)

const maxOrderNumberRetries = 3

// Errors returned by the ledger.
var (
	ErrNameRequired       = errors.New("customer_name is required")
	ErrPhoneRequired      = errors.New("customer_phone is required")
	ErrAddressRequired    = errors.New("delivery_address is required for delivery orders")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrTransitionConflict = errors.New("order status changed concurrently, re-fetch and retry")
)

// allowedTransitions defines the valid status edges. Key is current status,
// value is the set of statuses it can move to. COMPLETED and CANCELLED are
// terminal.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:   {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:     {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
}

// ValidateTransition checks the state-machine edge from current to next.
func ValidateTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("%w: cannot leave %s", ErrInvalidTransition, current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusPreparing, enum.OrderStatusReady,
		enum.OrderStatusCompleted, enum.OrderStatusCancelled:
		return true
	}
	return false
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the DB methods the ledger needs.
// Satisfied by *database.Queries (and its WithTx variant).
type Store interface {
	MaxOrderNumberSuffix(ctx context.Context, prefix string) (int64, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (database.Order, error)
	ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error)
	ListActiveOrders(ctx context.Context) ([]database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error)
}

// NewStore creates a Store from a DBTX (pool or tx), letting the ledger run
// its writes inside transactions it opens itself.
type NewStore func(db database.DBTX) Store

// CustomerInfo is the validated customer portion of a checkout.
type CustomerInfo struct {
	Name            string
	Phone           string
	Email           string
	DeliveryAddress string
	Notes           string
}

// OrderWithLines pairs an order row with its immutable line snapshots.
type OrderWithLines struct {
	Order database.Order
	Lines []database.OrderLine
}

// Service is the order ledger. store runs reads and single-statement writes
// against the pool; newStore builds tx-scoped stores for the atomic create.
type Service struct {
	pool     TxBeginner
	store    Store
	newStore NewStore
	now      func() time.Time
}

func NewService(pool TxBeginner, store Store, newStore NewStore) *Service {
	return &Service{pool: pool, store: store, newStore: newStore, now: time.Now}
}

// CreateOrder persists the order row and all line snapshots atomically with
// a freshly generated order number, initial status PENDING. Retries on
// order_number unique violations (concurrent creators can draw the same
// sequence number).
func (s *Service) CreateOrder(ctx context.Context, customer CustomerInfo, orderType string, priced *pricing.PricedOrder) (*OrderWithLines, error) {
	if customer.Name == "" {
		return nil, ErrNameRequired
	}
	if customer.Phone == "" {
		return nil, ErrPhoneRequired
	}
	if orderType == enum.OrderTypeDelivery && customer.DeliveryAddress == "" {
		return nil, ErrAddressRequired
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, customer, orderType, priced)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks for a unique constraint violation on the
// order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

func (s *Service) createOrderTx(ctx context.Context, customer CustomerInfo, orderType string, priced *pricing.PricedOrder) (*OrderWithLines, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	orderNumber, err := s.nextOrderNumber(ctx, store)
	if err != nil {
		return nil, err
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		ID:               uuid.New(),
		OrderNumber:      orderNumber,
		CustomerName:     customer.Name,
		CustomerPhone:    customer.Phone,
		CustomerEmail:    textOrNull(customer.Email),
		OrderType:        orderType,
		DeliveryAddress:  textOrNull(customer.DeliveryAddress),
		Notes:            textOrNull(customer.Notes),
		Status:           enum.OrderStatusPending,
		SubtotalCents:    priced.SubtotalCents,
		TaxCents:         priced.TaxCents,
		DeliveryFeeCents: priced.DeliveryFeeCents,
		TotalCents:       priced.TotalCents,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	lines := make([]database.OrderLine, 0, len(priced.Lines))
	for _, pl := range priced.Lines {
		line, err := store.CreateOrderLine(ctx, database.CreateOrderLineParams{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ItemID:         pl.ItemID,
			ItemName:       pl.ItemName,
			Quantity:       pl.Quantity,
			UnitPriceCents: pl.UnitPriceCents,
			Customization:  textOrNull(pl.Customization),
		})
		if err != nil {
			return nil, fmt.Errorf("create order line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderWithLines{Order: order, Lines: lines}, nil
}

// nextOrderNumber generates a date-prefixed human-readable number, e.g.
// ORD-20260830-004, one past the highest suffix issued today. Deleted
// orders leave gaps rather than shifting later numbers onto ones already
// handed out. Races on the max are caught by the unique constraint and
// retried by CreateOrder.
func (s *Service) nextOrderNumber(ctx context.Context, store Store) (string, error) {
	prefix := "ORD-" + s.now().UTC().Format("20060102") + "-"
	n, err := store.MaxOrderNumberSuffix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("max order number for prefix: %w", err)
	}
	return fmt.Sprintf("%s%03d", prefix, n+1), nil
}

// TransitionStatus validates the state-machine edge and applies it with a
// compare-and-swap. If a concurrent writer moved the order first, the CAS
// finds zero rows and the caller gets ErrTransitionConflict.
func (s *Service) TransitionStatus(ctx context.Context, orderID uuid.UUID, target string) (database.Order, error) {
	if !IsValidStatus(target) {
		return database.Order{}, ErrInvalidStatus
	}

	current, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if err := ValidateTransition(current.Status, target); err != nil {
		return database.Order{}, err
	}

	updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         orderID,
		Status:     target,
		PrevStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrTransitionConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}
	return updated, nil
}

// GetOrder returns the order and its lines by id.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderWithLines, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return s.withLines(ctx, s.store, order)
}

// GetOrderByNumber returns the order and its lines by human-readable number.
func (s *Service) GetOrderByNumber(ctx context.Context, orderNumber string) (*OrderWithLines, error) {
	order, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	return s.withLines(ctx, s.store, order)
}

// ListActiveOrders returns all PENDING and PREPARING orders with their
// lines, oldest first.
func (s *Service) ListActiveOrders(ctx context.Context) ([]OrderWithLines, error) {
	orders, err := s.store.ListActiveOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	result := make([]OrderWithLines, 0, len(orders))
	for _, o := range orders {
		owl, err := s.withLines(ctx, s.store, o)
		if err != nil {
			return nil, err
		}
		result = append(result, *owl)
	}
	return result, nil
}

// ListOrders is the admin listing with optional status filter.
func (s *Service) ListOrders(ctx context.Context, status string, limit, offset int32) ([]database.Order, error) {
	if status != "" && !IsValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	orders, err := s.store.ListOrders(ctx, database.ListOrdersParams{
		Status: textOrNull(status),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// DeleteOrder is the administrative hard delete. Cancellation is a status,
// not a deletion; this exists only as an out-of-band override.
func (s *Service) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	n, err := s.store.DeleteOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *Service) withLines(ctx context.Context, store Store, order database.Order) (*OrderWithLines, error) {
	lines, err := store.ListOrderLinesByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	return &OrderWithLines{Order: order, Lines: lines}, nil
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
