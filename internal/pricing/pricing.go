// Package pricing turns a client cart into priced, snapshotted lines and
// totals. Prices always come from the catalog at call time; nothing the
// client sends about money is ever trusted.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/casa-taqueria/ordering-api/internal/catalog"
	"github.com/casa-taqueria/ordering-api/internal/enum"
	"github.com/casa-taqueria/ordering-api/internal/money"
)

// Bounds guarding against abuse and catalog corruption. The pricing
// endpoints are reachable without authentication (guest checkout), so the
// computation itself has to reject absurd input.
const (
	MaxQuantityPerLine  = 100
	MaxLinesPerOrder    = 50
	MaxUnitPriceCents   = 100_000 // $1000; above this the catalog row is suspect
	MaxCustomizationLen = 500
)

// Errors returned by the pricing engine.
var (
	ErrEmptyLines           = errors.New("at least one line item is required")
	ErrTooManyLines         = errors.New("too many line items")
	ErrItemNotFound         = errors.New("menu item not found")
	ErrItemUnavailable      = errors.New("menu item is unavailable")
	ErrInvalidQuantity      = errors.New("quantity must be between 1 and 100")
	ErrCustomizationTooLong = errors.New("customization text too long")
	ErrPriceOutOfBounds     = errors.New("menu item price out of bounds")
	ErrInvalidOrderType     = errors.New("invalid order type")
)

// LineRequest is a client-supplied cart line. It carries no price.
type LineRequest struct {
	ItemID        uuid.UUID
	Quantity      int32
	Customization string
}

// PricedLine is a line with its name and unit price snapshotted from the
// catalog at pricing time.
type PricedLine struct {
	ItemID         uuid.UUID
	ItemName       string
	Quantity       int32
	UnitPriceCents int64
	Customization  string
}

// PricedOrder is what the ledger persists: resolved lines plus the four
// monetary figures, all in minor units.
type PricedOrder struct {
	Lines            []PricedLine
	SubtotalCents    int64
	TaxCents         int64
	DeliveryFeeCents int64
	TotalCents       int64
}

// Engine computes order totals from the catalog. Pure over its catalog-read
// dependency; holds no mutable state.
type Engine struct {
	catalog          catalog.Accessor
	taxRate          decimal.Decimal
	deliveryFeeCents int64
}

func NewEngine(cat catalog.Accessor, taxRate decimal.Decimal, deliveryFeeCents int64) *Engine {
	return &Engine{catalog: cat, taxRate: taxRate, deliveryFeeCents: deliveryFeeCents}
}

// Price resolves every line against the catalog and computes
// subtotal, tax (half-up), delivery fee and total in integer cents.
func (e *Engine) Price(ctx context.Context, lines []LineRequest, orderType string) (*PricedOrder, error) {
	if orderType != enum.OrderTypePickup && orderType != enum.OrderTypeDelivery {
		return nil, ErrInvalidOrderType
	}
	if len(lines) == 0 {
		return nil, ErrEmptyLines
	}
	if len(lines) > MaxLinesPerOrder {
		return nil, ErrTooManyLines
	}

	var subtotal int64
	priced := make([]PricedLine, 0, len(lines))
	for i, line := range lines {
		if line.Quantity < 1 || line.Quantity > MaxQuantityPerLine {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if len(line.Customization) > MaxCustomizationLen {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrCustomizationTooLong)
		}

		item, err := e.catalog.GetItem(ctx, line.ItemID)
		if err != nil {
			if errors.Is(err, catalog.ErrItemNotFound) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrItemNotFound)
			}
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		if !item.Available {
			return nil, fmt.Errorf("items[%d] (%s): %w", i, item.Name, ErrItemUnavailable)
		}
		if item.UnitPriceCents < 0 || item.UnitPriceCents > MaxUnitPriceCents {
			return nil, fmt.Errorf("items[%d] (%s): %w", i, item.Name, ErrPriceOutOfBounds)
		}

		subtotal += item.UnitPriceCents * int64(line.Quantity)
		priced = append(priced, PricedLine{
			ItemID:         item.ID,
			ItemName:       item.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			Customization:  line.Customization,
		})
	}

	tax := money.RoundHalfUp(subtotal, e.taxRate)
	var deliveryFee int64
	if orderType == enum.OrderTypeDelivery {
		deliveryFee = e.deliveryFeeCents
	}

	return &PricedOrder{
		Lines:            priced,
		SubtotalCents:    subtotal,
		TaxCents:         tax,
		DeliveryFeeCents: deliveryFee,
		TotalCents:       subtotal + tax + deliveryFee,
	}, nil
}

// IsValidationError reports whether err is a pricing rejection the client
// can fix, as opposed to an infrastructure failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyLines) ||
		errors.Is(err, ErrTooManyLines) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrItemUnavailable) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrCustomizationTooLong) ||
		errors.Is(err, ErrPriceOutOfBounds) ||
		errors.Is(err, ErrInvalidOrderType)
}
