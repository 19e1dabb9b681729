package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, customer_name, customer_phone, customer_email,
	order_type, delivery_address, notes, status,
	subtotal_cents, tax_cents, delivery_fee_cents, total_cents,
	payment_ref, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.OrderType, &o.DeliveryAddress, &o.Notes, &o.Status,
		&o.SubtotalCents, &o.TaxCents, &o.DeliveryFeeCents, &o.TotalCents,
		&o.PaymentRef, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const maxOrderNumberSuffix = `
SELECT COALESCE(MAX(SUBSTRING(order_number FROM LENGTH($1) + 1)::BIGINT), 0)
FROM orders
WHERE order_number LIKE $1 || '%'
`

// MaxOrderNumberSuffix returns the highest numeric suffix already issued
// under a date prefix (0 when none exist). A count would shrink when an
// order is deleted and regenerate an already-issued number forever;
// the max keeps advancing past every number ever handed out. Concurrent
// creators can still observe the same max; the unique constraint on
// order_number plus the caller's retry loop resolves that race.
func (q *Queries) MaxOrderNumberSuffix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, maxOrderNumberSuffix, prefix).Scan(&n)
	return n, err
}

const createOrder = `
INSERT INTO orders (
	id, order_number, customer_name, customer_phone, customer_email,
	order_type, delivery_address, notes, status,
	subtotal_cents, tax_cents, delivery_fee_cents, total_cents
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	ID               uuid.UUID
	OrderNumber      string
	CustomerName     string
	CustomerPhone    string
	CustomerEmail    pgtype.Text
	OrderType        string
	DeliveryAddress  pgtype.Text
	Notes            pgtype.Text
	Status           string
	SubtotalCents    int64
	TaxCents         int64
	DeliveryFeeCents int64
	TotalCents       int64
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.ID, arg.OrderNumber, arg.CustomerName, arg.CustomerPhone, arg.CustomerEmail,
		arg.OrderType, arg.DeliveryAddress, arg.Notes, arg.Status,
		arg.SubtotalCents, arg.TaxCents, arg.DeliveryFeeCents, arg.TotalCents,
	)
	return scanOrder(row)
}

const createOrderLine = `
INSERT INTO order_lines (id, order_id, item_id, item_name, quantity, unit_price_cents, customization)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, item_id, item_name, quantity, unit_price_cents, customization
`

type CreateOrderLineParams struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	ItemID         uuid.UUID
	ItemName       string
	Quantity       int32
	UnitPriceCents int64
	Customization  pgtype.Text
}

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, createOrderLine,
		arg.ID, arg.OrderID, arg.ItemID, arg.ItemName, arg.Quantity, arg.UnitPriceCents, arg.Customization,
	)
	var l OrderLine
	err := row.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.ItemName, &l.Quantity, &l.UnitPriceCents, &l.Customization)
	return l, err
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderByNumber = `
SELECT ` + orderColumns + `
FROM orders
WHERE order_number = $1
`

func (q *Queries) GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByNumber, orderNumber))
}

const listOrderLinesByOrder = `
SELECT id, order_id, item_id, item_name, quantity, unit_price_cents, customization
FROM order_lines
WHERE order_id = $1
ORDER BY item_name
`

func (q *Queries) ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderLine, error) {
	rows, err := q.db.Query(ctx, listOrderLinesByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.ItemName, &l.Quantity, &l.UnitPriceCents, &l.Customization); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

const listActiveOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE status IN ('PENDING', 'PREPARING')
ORDER BY created_at ASC
`

// ListActiveOrders returns the kitchen queue, oldest order first. The
// ordering is a fairness requirement, not presentation.
func (q *Queries) ListActiveOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.Query(ctx, listActiveOrders)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListOrdersParams struct {
	Status pgtype.Text
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     string
	PrevStatus string
}

// UpdateOrderStatus is the compare-and-swap write: the row is only updated
// if the status still matches what the caller read. Zero rows (pgx.ErrNoRows)
// means a concurrent writer won.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.PrevStatus))
}

const markOrderPaid = `
UPDATE orders
SET status = $2, payment_ref = $3, updated_at = now()
WHERE id = $1 AND status = $4
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID         uuid.UUID
	Status     string
	PaymentRef pgtype.Text
	PrevStatus string
}

// MarkOrderPaid stamps the payment reference and advances the status in one
// CAS statement so a late confirmation can never resurrect a cancelled order.
func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderPaid, arg.ID, arg.Status, arg.PaymentRef, arg.PrevStatus))
}

const deleteOrder = `
DELETE FROM orders WHERE id = $1
`

// DeleteOrder is the administrative override; order_lines cascade.
func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteOrder, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
