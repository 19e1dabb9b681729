package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/casa-taqueria/ordering-api/internal/catalog"
	"github.com/casa-taqueria/ordering-api/internal/money"
)

// MenuLister backs the public menu endpoint. Satisfied by *catalog.PG.
type MenuLister interface {
	ListAvailable(ctx context.Context) ([]catalog.Item, error)
}

type MenuHandler struct {
	menu MenuLister
}

func NewMenuHandler(menu MenuLister) *MenuHandler {
	return &MenuHandler{menu: menu}
}

type menuItemResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Price      string    `json:"price"`
}

// List handles GET /menu — available items only.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.menu.ListAvailable(r.Context())
	if err != nil {
		writeServerError(w, "list menu", err)
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, item := range items {
		resp[i] = menuItemResponse{
			ID:         item.ID,
			Name:       item.Name,
			PriceCents: item.UnitPriceCents,
			Price:      money.FormatCents(item.UnitPriceCents),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": resp})
}
