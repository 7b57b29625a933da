package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"library-lending/internal/model"
)

var bookSortColumns = map[string]string{
	"":                 "id",
	"id":               "id",
	"title":            "title",
	"author":           "author",
	"publication_year": "publication_year",
	"publicationyear":  "publication_year",
}

type BookRepository struct {
	pool *pgxpool.Pool
}

func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

func (r *BookRepository) FindByID(ctx context.Context, id int64) (model.Book, error) {
	b, err := scanBook(r.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Book{}, model.NotFound(model.ResourceBook, id)
	}
	if err != nil {
		return model.Book{}, fmt.Errorf("find book by id: %w", err)
	}
	return b, nil
}

func (r *BookRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check book exists: %w", err)
	}
	return exists, nil
}

func (r *BookRepository) Create(ctx context.Context, b model.Book) (model.Book, error) {
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	if b.Status == "" {
		b.Status = model.BookAvailable
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO books (title, author, isbn, publication_year, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		b.Title, b.Author, b.ISBN, b.PublicationYear, string(b.Status), b.CreatedAt, b.UpdatedAt).Scan(&b.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Book{}, fmt.Errorf("isbn %s: %w", b.ISBN, model.ErrDuplicate)
		}
		return model.Book{}, fmt.Errorf("create book: %w", err)
	}
	return b, nil
}

// Delete removes an available book. A borrowed book is left in place and reported as a conflict.
func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id = $1 AND status = $2`, id, string(model.BookAvailable))
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	exists, err := r.ExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return model.NotFound(model.ResourceBook, id)
	}
	return &model.ConflictError{Reason: model.ConflictBookBorrowed, Message: fmt.Sprintf("book %d is currently borrowed", id)}
}

func (r *BookRepository) List(ctx context.Context, q model.BookQuery) ([]model.Book, int, error) {
	page := q.Page.Normalize()

	filters := make([]exp.Expression, 0, 2)
	if term := strings.TrimSpace(q.Term); term != "" {
		column := "title"
		if q.Field == model.BookFieldAuthor {
			column = "author"
		}
		filters = append(filters, goqu.C(column).ILike(likePattern(term)))
	}
	if q.Status != "" {
		filters = append(filters, goqu.C("status").Eq(string(q.Status)))
	}

	countSQL, countArgs, err := builder.From("books").Prepared(true).
		Select(goqu.COUNT(goqu.Star())).Where(filters...).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build book count: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	sortColumn, ok := bookSortColumns[strings.ToLower(page.Sort)]
	if !ok {
		sortColumn = "id"
	}
	order := goqu.I(sortColumn).Asc()
	if page.Desc {
		order = goqu.I(sortColumn).Desc()
	}

	selectSQL, args, err := builder.From("books").Prepared(true).
		Select(columns(bookColumns)...).
		Where(filters...).
		Order(order, goqu.I("id").Asc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset())).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build book list: %w", err)
	}

	rows, err := r.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, total, rows.Err()
}
