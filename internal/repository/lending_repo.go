package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"library-lending/internal/model"
)

// LendingTx is the set of row operations available inside one lending unit of work.
// Lock* methods hold the row until the unit of work ends.
type LendingTx interface {
	LockBook(ctx context.Context, bookID int64) (model.Book, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	SetBookStatus(ctx context.Context, bookID int64, status model.BookStatus) error
	InsertTransaction(ctx context.Context, t model.Transaction) (model.Transaction, error)
	LockTransaction(ctx context.Context, transactionID int64) (model.Transaction, error)
	MarkReturned(ctx context.Context, transactionID int64, at time.Time) error
}

// LendingStore runs fn atomically: every write made through tx is committed together or not at all.
type LendingStore interface {
	WithinTx(ctx context.Context, fn func(tx LendingTx) error) error
}

type LendingRepository struct {
	pool *pgxpool.Pool
}

func NewLendingRepository(pool *pgxpool.Pool) *LendingRepository {
	return &LendingRepository{pool: pool}
}

// WithinTx uses READ COMMITTED plus explicit row locks: a waiter on SELECT ... FOR UPDATE
// re-reads the committed row once the lock is released.
func (r *LendingRepository) WithinTx(ctx context.Context, fn func(tx LendingTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin lending tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&pgLendingTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit lending tx: %w", err)
	}
	return nil
}

type pgLendingTx struct {
	tx pgx.Tx
}

func (t *pgLendingTx) LockBook(ctx context.Context, bookID int64) (model.Book, error) {
	b, err := scanBook(t.tx.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, bookID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Book{}, model.NotFound(model.ResourceBook, bookID)
	}
	if err != nil {
		return model.Book{}, fmt.Errorf("lock book: %w", err)
	}
	return b, nil
}

func (t *pgLendingTx) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (t *pgLendingTx) SetBookStatus(ctx context.Context, bookID int64, status model.BookStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE books SET status = $2, updated_at = $3 WHERE id = $1`,
		bookID, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update book status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFound(model.ResourceBook, bookID)
	}
	return nil
}

func (t *pgLendingTx) InsertTransaction(ctx context.Context, tr model.Transaction) (model.Transaction, error) {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO transactions (book_id, user_id, checkout_at, due_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		tr.BookID, tr.UserID, tr.CheckoutAt, tr.DueAt).Scan(&tr.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Transaction{}, model.ErrBookUnavailable
		}
		if isForeignKeyViolation(err) {
			return model.Transaction{}, model.NotFound(model.ResourceUser, tr.UserID)
		}
		return model.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tr, nil
}

func (t *pgLendingTx) LockTransaction(ctx context.Context, transactionID int64) (model.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, transactionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Transaction{}, model.NotFound(model.ResourceTransaction, transactionID)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("lock transaction: %w", err)
	}
	return tr, nil
}

func (t *pgLendingTx) MarkReturned(ctx context.Context, transactionID int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE transactions SET returned_at = $2 WHERE id = $1 AND returned_at IS NULL`,
		transactionID, at)
	if err != nil {
		return fmt.Errorf("mark transaction returned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAlreadyReturned
	}
	return nil
}
