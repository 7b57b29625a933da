//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"library-lending/internal/database"
	"library-lending/internal/model"
	"library-lending/internal/repository"
	"library-lending/internal/service"
)

type pgFixture struct {
	db           *database.DB
	users        *repository.UserRepository
	books        *repository.BookRepository
	transactions *repository.TransactionRepository
	lending      *service.LendingService
}

// newPostgres connects to TEST_DATABASE_URL and ensures the schema. Tests use unique
// emails and ISBNs so they can share one database.
func newPostgres(t *testing.T) *pgFixture {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, url, database.PoolOptions{MaxConns: 20, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))

	transactions := repository.NewTransactionRepository(db.Pool)
	return &pgFixture{
		db:           db,
		users:        repository.NewUserRepository(db.Pool),
		books:        repository.NewBookRepository(db.Pool),
		transactions: transactions,
		lending:      service.NewLendingService(repository.NewLendingRepository(db.Pool), transactions),
	}
}

func unique(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:12])
}

func (f *pgFixture) createUser(t *testing.T, role model.Role) model.User {
	t.Helper()

	name := unique("user")
	u, err := f.users.Create(context.Background(), model.User{
		Name:         name,
		Email:        name + "@library.test",
		MembershipID: unique("M"),
		PasswordHash: "x",
		Role:         role,
	})
	require.NoError(t, err)
	return u
}

func (f *pgFixture) createBook(t *testing.T, title string, author string) model.Book {
	t.Helper()

	b, err := f.books.Create(context.Background(), model.Book{
		Title:           title,
		Author:          author,
		ISBN:            unique("isbn"),
		PublicationYear: 2000,
	})
	require.NoError(t, err)
	return b
}
