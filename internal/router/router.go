package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casa-taqueria/ordering-api/internal/catalog"
	"github.com/casa-taqueria/ordering-api/internal/config"
	"github.com/casa-taqueria/ordering-api/internal/database"
	"github.com/casa-taqueria/ordering-api/internal/enum"
	"github.com/casa-taqueria/ordering-api/internal/handler"
	"github.com/casa-taqueria/ordering-api/internal/ledger"
	mw "github.com/casa-taqueria/ordering-api/internal/middleware"
	"github.com/casa-taqueria/ordering-api/internal/payment"
	"github.com/casa-taqueria/ordering-api/internal/pricing"
	"github.com/casa-taqueria/ordering-api/internal/ws"
)

// New wires the full application router: public checkout surface,
// JWT-guarded kitchen/admin surface, payment webhooks, and websocket feeds.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	// Bounds every downstream call (catalog reads, ledger writes, provider
	// requests) through the request context; a hung database connection
	// surfaces as a 504 instead of holding the socket forever.
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Component wiring
	cat := catalog.NewPG(queries)
	pricer := pricing.NewEngine(cat, cfg.TaxRate, cfg.DeliveryFeeCents)
	ledgerSvc := ledger.NewService(pool, queries, func(db database.DBTX) ledger.Store {
		return database.New(db)
	})
	reconciler := payment.NewReconciler(
		payment.NewStripeProvider(cfg.StripeSecretKey),
		pricer, queries, hub, logger,
		cfg.Currency, cfg.StripePublishableKey,
	)

	orderHandler := handler.NewOrderHandler(pricer, ledgerSvc, hub)
	paymentHandler := handler.NewPaymentHandler(reconciler, cfg.StripeWebhookSecret)
	menuHandler := handler.NewMenuHandler(cat)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Post("/auth/login", authHandler.Login)
	r.Get("/menu", menuHandler.List)
	r.Post("/orders", orderHandler.Create)
	r.Post("/payment-intents", paymentHandler.CreateIntent)
	r.Get("/payment-intents/{id}/status", paymentHandler.GetStatus)
	r.Post("/webhooks/stripe", paymentHandler.Webhook)

	// Websocket feeds (kitchen feed authenticates via query-param token)
	r.Get("/ws/kitchen", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeKitchen(hub, cfg.JWTSecret, w, r)
	})
	r.Get("/ws/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeOrder(hub, w, r)
	})

	// GET /orders doubles as public order-number lookup and staff listing;
	// the handler requires claims only for the listing side.
	r.With(mw.MaybeAuthenticate(cfg.JWTSecret)).Get("/orders", orderHandler.List)
	r.Get("/orders/{id}", orderHandler.Get)

	// Staff routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Get("/orders/active", orderHandler.ListActive)
		r.Patch("/orders/{id}/status", orderHandler.UpdateStatus)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			r.Delete("/orders/{id}", orderHandler.Delete)
		})
	})

	return r
}
