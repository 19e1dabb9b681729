package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type MenuItem struct {
	ID          uuid.UUID
	Name        string
	Price       pgtype.Numeric
	IsAvailable bool
	CreatedAt   time.Time
}

type Order struct {
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
	PaymentRef       pgtype.Text
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OrderLine struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	ItemID         uuid.UUID
	ItemName       string
	Quantity       int32
	UnitPriceCents int64
	Customization  pgtype.Text
}

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
