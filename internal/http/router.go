package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Cart     *CartHandler
	Products *ProductHandler
	Checkout *CheckoutHandler
	Account  *AccountHandler
	// Admin is optional.
	Admin   *AdminHandler
	Metrics *metrics.Registry
	Log     *zap.Logger
	// Timeout applies to every route except checkout, which has its own.
	Timeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(AccessLog(cfg.Log))
	r.Use(middleware.Recoverer)

	r.With(SessionMiddleware).Post("/api/v1/checkout", cfg.Checkout.Checkout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Timeout))
		mountRoutes(r, cfg)
	})

	return otelhttp.NewHandler(r, "storefront")
}

func mountRoutes(r chi.Router, cfg RouterConfig) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", cfg.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", cfg.Products.List)
			r.Get("/{id}", cfg.Products.Get)
		})
		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware)
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cfg.Cart.GetCart)
				r.Delete("/", cfg.Cart.ClearCart)
				r.Delete("/session", cfg.Cart.EndSession)
				r.Post("/items", cfg.Cart.AddItem)
				r.Put("/items/{product_id}", cfg.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", cfg.Cart.RemoveItem)
			})
		})
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", cfg.Account.Login)
			r.Post("/signup", cfg.Account.Signup)
			r.Get("/me", cfg.Account.Me)
		})
		if cfg.Admin != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Get("/orders", cfg.Admin.ListOrders)
				r.Put("/orders/{id}/approve", cfg.Admin.ApproveOrder)
				r.Put("/orders/{id}/decline", cfg.Admin.DeclineOrder)
				r.Get("/users", cfg.Admin.ListUsers)
				r.Put("/users/{id}/role", cfg.Admin.SetUserRole)
				r.Delete("/users/{id}", cfg.Admin.DeleteUser)
				r.Post("/products", cfg.Admin.CreateProduct)
				r.Put("/products/{id}", cfg.Admin.UpdateProduct)
				r.Delete("/products/{id}", cfg.Admin.DeleteProduct)
			})
		}
	})
}
