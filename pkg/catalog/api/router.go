// Package api exposes the catalog service over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/jwtauth"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// Config wires the router
type Config struct {
	Service        catalog.Service
	JWTSecret      string
	AllowedOrigins []string
	// RequestLogger enables per-request logging when set
	RequestLogger *httplog.Logger
	Logger        *slog.Logger
}

// NewTokenAuth returns the HS256 verifier used for protected routes.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// NewRouter builds the catalog HTTP router.
func NewRouter(cfg Config) (chi.Router, error) {
	if cfg.Service == nil {
		return nil, errors.New("api: catalog service is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("api: JWT secret is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.RequestLogger != nil {
		r.Use(httplog.RequestLogger(cfg.RequestLogger))
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	tokenAuth := NewTokenAuth(cfg.JWTSecret)
	authenticated := func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator)
	}

	products := NewProductHandler(cfg.Service, cfg.Logger)
	orders := NewOrderHandler(cfg.Service, cfg.Logger)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", products.ListProducts)
		r.Post("/", products.QueryProducts)
		r.Get("/categories", products.ListCategories)
		r.Get("/{id}", products.GetProduct)

		r.Group(func(r chi.Router) {
			authenticated(r)
			r.Post("/create", products.CreateProduct)
			r.Post("/create/bulk", products.CreateProducts)
			r.Put("/", products.UpdateProduct)
			r.Delete("/{id}", products.DeleteProduct)
			r.Post("/upload/images", products.UploadImages)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		authenticated(r)
		r.Get("/", orders.ListOrders)
		r.Post("/", orders.CreateOrder)
		r.Get("/{id}", orders.GetOrder)
	})

	return r, nil
}

// userID returns the sub claim of the verified token.
func userID(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
