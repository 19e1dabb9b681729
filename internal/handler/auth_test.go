package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/casa-taqueria/ordering-api/internal/auth"
	"github.com/casa-taqueria/ordering-api/internal/database"
	"github.com/casa-taqueria/ordering-api/internal/enum"
)

type mockAuthStore struct {
	getUserByEmailFn func(ctx context.Context, email string) (database.User, error)
}

func (m *mockAuthStore) GetUserByEmail(ctx context.Context, email string) (database.User, error) {
	return m.getUserByEmailFn(ctx, email)
}

const testJWTSecret = "test-secret"

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	userID := uuid.New()
	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			if email != "kitchen@casataqueria.com" {
				return database.User{}, pgx.ErrNoRows
			}
			return database.User{ID: userID, Email: email, PasswordHash: string(hash), Role: enum.UserRoleKitchen}, nil
		},
	}
	h := NewAuthHandler(store, testJWTSecret)

	body := `{"email":"kitchen@casataqueria.com","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.ID != userID || resp.User.Role != enum.UserRoleKitchen {
		t.Errorf("user = %+v", resp.User)
	}

	claims, err := auth.ValidateToken(testJWTSecret, resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.UserID != userID || claims.Role != enum.UserRoleKitchen {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLoginFailures(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	store := &mockAuthStore{
		getUserByEmailFn: func(ctx context.Context, email string) (database.User, error) {
			if email != "kitchen@casataqueria.com" {
				return database.User{}, pgx.ErrNoRows
			}
			return database.User{ID: uuid.New(), Email: email, PasswordHash: string(hash), Role: enum.UserRoleKitchen}, nil
		},
	}
	h := NewAuthHandler(store, testJWTSecret)

	testCases := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"missing password", `{"email":"kitchen@casataqueria.com"}`, http.StatusBadRequest},
		{"unknown user", `{"email":"nobody@example.com","password":"x"}`, http.StatusUnauthorized},
		{"wrong password", `{"email":"kitchen@casataqueria.com","password":"wrong"}`, http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(tc.body))
			w := httptest.NewRecorder()
			h.Login(w, req)
			if w.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tc.wantCode)
			}
		})
	}
}
