package repository

import (
	"errors"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"library-lending/internal/model"
)

const (
	dialectPostgres = "postgres"

	bookColumns        = `id, title, author, isbn, publication_year, status, created_at, updated_at`
	transactionColumns = `id, book_id, user_id, checkout_at, due_at, returned_at`
	userColumns        = `id, name, email, membership_id, password_hash, role, created_at, updated_at`

	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var builder = goqu.Dialect(dialectPostgres)

func scanBook(row pgx.Row) (model.Book, error) {
	var b model.Book
	var status string
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.PublicationYear, &status, &b.CreatedAt, &b.UpdatedAt)
	b.Status = model.BookStatus(status)
	return b, err
}

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(&t.ID, &t.BookID, &t.UserID, &t.CheckoutAt, &t.DueAt, &t.ReturnedAt)
	return t, err
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.MembershipID, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	u.Role = model.Role(role)
	return u, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// likePattern escapes LIKE wildcards in a user supplied search term.
func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(term)) + "%"
}

func columns(list string) []any {
	parts := strings.Split(list, ",")
	out := make([]any, 0, len(parts))
	for _, part := range parts {
		out = append(out, goqu.C(strings.TrimSpace(part)))
	}
	return out
}
