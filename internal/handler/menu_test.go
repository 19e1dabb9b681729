package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/casa-taqueria/ordering-api/internal/catalog"
)

type mockMenuLister struct {
	listAvailableFn func(ctx context.Context) ([]catalog.Item, error)
}

func (m *mockMenuLister) ListAvailable(ctx context.Context) ([]catalog.Item, error) {
	return m.listAvailableFn(ctx)
}

func TestListMenu(t *testing.T) {
	menu := &mockMenuLister{
		listAvailableFn: func(ctx context.Context) ([]catalog.Item, error) {
			return []catalog.Item{
				{ID: uuid.New(), Name: "Taco", UnitPriceCents: 300, Available: true},
				{ID: uuid.New(), Name: "Burrito", UnitPriceCents: 1050, Available: true},
			}, nil
		},
	}
	h := NewMenuHandler(menu)

	req := httptest.NewRequest(http.MethodGet, "/menu", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Items []menuItemResponse `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
	if resp.Items[0].PriceCents != 300 || resp.Items[0].Price != "3.00" {
		t.Errorf("item = %+v", resp.Items[0])
	}
}

func TestListMenuStoreError(t *testing.T) {
	menu := &mockMenuLister{
		listAvailableFn: func(ctx context.Context) ([]catalog.Item, error) {
			return nil, errors.New("db down")
		},
	}
	h := NewMenuHandler(menu)

	req := httptest.NewRequest(http.MethodGet, "/menu", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
