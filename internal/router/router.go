package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"library-lending/internal/config"
	"library-lending/internal/handler"
	"library-lending/internal/middleware"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	Book         *handler.BookHandler
	User         *handler.UserHandler
	Transaction  *handler.TransactionHandler
	Docs         *handler.DocsHandler
	HealthChecks []func(context.Context) error
}

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	idempotency *middleware.Idempotency,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)
	policy := middleware.LibraryPolicy()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(rateLimitMiddleware.Handler)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(authMiddleware.Authenticate)
	r.Use(policy.Authorize)

	r.Get("/health", health(h.HealthChecks))
	r.Get("/openapi.yaml", h.Docs.OpenAPI)
	r.Get("/swagger", h.Docs.SwaggerUI)

	r.Route("/auth", func(auth chi.Router) {
		auth.Post("/login", h.Auth.Login)
		auth.Post("/refresh", h.Auth.Refresh)
		auth.Post("/register", h.Auth.Register)
		auth.Get("/whoami", h.Auth.WhoAmI)
	})

	r.Route("/books", func(books chi.Router) {
		books.Get("/", h.Book.List)
		books.Post("/", h.Book.Create)
		books.Get("/available", h.Book.Available)
		books.Get("/search/title", h.Book.SearchByTitle)
		books.Get("/search/author", h.Book.SearchByAuthor)
		books.Get("/{id}", h.Book.Get)
		books.Delete("/{id}", h.Book.Delete)
	})

	r.Route("/users", func(users chi.Router) {
		users.Get("/", h.User.List)
		users.Post("/", h.User.Create)
		users.Get("/{id}", h.User.Get)
		users.Delete("/{id}", h.User.Delete)
	})

	r.Route("/transactions", func(tx chi.Router) {
		tx.Get("/", h.Transaction.List)
		tx.With(idempotency.Handler).Post("/borrow", h.Transaction.Borrow)
		tx.Post("/return/{transactionId}", h.Transaction.Return)
		tx.Get("/user/{userId}", h.Transaction.ByUser)
		tx.Get("/book/{bookId}", h.Transaction.ByBook)
	})

	return r
}

func health(checks []func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, check := range checks {
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
