package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"library-lending/internal/model"
)

type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) FindByID(ctx context.Context, id int64) (model.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Transaction{}, model.NotFound(model.ResourceTransaction, id)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("find transaction by id: %w", err)
	}
	return t, nil
}

// List returns transactions newest first, optionally narrowed to one book or one user.
func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, int, error) {
	page := f.Page.Normalize()

	filters := make([]exp.Expression, 0, 2)
	if f.BookID > 0 {
		filters = append(filters, goqu.C("book_id").Eq(f.BookID))
	}
	if f.UserID > 0 {
		filters = append(filters, goqu.C("user_id").Eq(f.UserID))
	}

	countSQL, countArgs, err := builder.From("transactions").Prepared(true).
		Select(goqu.COUNT(goqu.Star())).Where(filters...).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build transaction count: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	selectSQL, args, err := builder.From("transactions").Prepared(true).
		Select(columns(transactionColumns)...).
		Where(filters...).
		Order(goqu.I("checkout_at").Desc(), goqu.I("id").Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset())).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build transaction list: %w", err)
	}

	rows, err := r.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := make([]model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}
