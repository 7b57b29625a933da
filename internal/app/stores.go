package app

import (
	"context"
	"fmt"
	"log/slog"

	"library-lending/internal/config"
	"library-lending/internal/database"
	"library-lending/internal/model"
	"library-lending/internal/repository"
	"library-lending/internal/service"
)

type userRepo interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, page model.Page) ([]model.User, int, error)
}

type bookRepo interface {
	FindByID(ctx context.Context, id int64) (model.Book, error)
	Create(ctx context.Context, b model.Book) (model.Book, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q model.BookQuery) ([]model.Book, int, error)
}

type transactionRepo interface {
	FindByID(ctx context.Context, id int64) (model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, int, error)
}

// Stores is the persistence layer selected by STORE_DRIVER.
type Stores struct {
	Users        userRepo
	Books        bookRepo
	Transactions transactionRepo
	Lending      repository.LendingStore
	Health       func(context.Context) error

	closeFn func()
}

func (s *Stores) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// OpenStores connects the configured backend. For postgres the schema is ensured first.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StoreDriver {
	case "memory":
		slog.Warn("using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &Stores{
			Users:        mem.Users(),
			Books:        mem.Books(),
			Transactions: mem.Transactions(),
			Lending:      mem,
			Health:       func(context.Context) error { return nil },
		}, nil

	case "postgres":
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, cfg.DatabaseURL, database.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}

		pool := db.Pool
		slog.Info("database ready")
		return &Stores{
			Users:        repository.NewUserRepository(pool),
			Books:        repository.NewBookRepository(pool),
			Transactions: repository.NewTransactionRepository(pool),
			Lending:      repository.NewLendingRepository(pool),
			Health:       db.Health,
			closeFn:      db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

const demoPassword = "password123"

// SeedDemoUsers creates the demo librarian and member accounts when they are missing.
func SeedDemoUsers(ctx context.Context, users *service.UserService) error {
	demo := []struct {
		name  string
		email string
		role  model.Role
	}{
		{"Demo Librarian", "librarian@library.local", model.RoleLibrarian},
		{"Demo Member", "member@library.local", model.RoleMember},
	}

	for _, d := range demo {
		user, created, err := users.EnsureUser(ctx, d.name, d.email, demoPassword, d.role)
		if err != nil {
			return fmt.Errorf("seed %s: %w", d.email, err)
		}
		if created {
			slog.Info("demo user created", "user_id", user.ID, "email", user.Email, "role", user.Role)
		}
	}
	return nil
}
