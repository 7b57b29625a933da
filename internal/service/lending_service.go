package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"library-lending/internal/model"
	"library-lending/internal/repository"
)

type transactionReader interface {
	FindByID(ctx context.Context, id int64) (model.Transaction, error)
	List(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, int, error)
}

// LendingService owns the Available <-> Borrowed transition of a book. Both transitions run as
// one unit of work holding the book's row lock, so concurrent borrows of the same book serialize
// and the loser reads the committed Borrowed status.
type LendingService struct {
	store   repository.LendingStore
	history transactionReader
	now     func() time.Time
}

func NewLendingService(store repository.LendingStore, history transactionReader) *LendingService {
	return &LendingService{store: store, history: history, now: time.Now}
}

func (s *LendingService) WithClock(now func() time.Time) *LendingService {
	clone := *s
	clone.now = now
	return &clone
}

func (s *LendingService) Borrow(ctx context.Context, bookID int64, userID int64) (model.Transaction, error) {
	var created model.Transaction

	err := s.store.WithinTx(ctx, func(tx repository.LendingTx) error {
		book, err := tx.LockBook(ctx, bookID)
		if err != nil {
			return err
		}

		exists, err := tx.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return model.NotFound(model.ResourceUser, userID)
		}

		if book.Status != model.BookAvailable {
			return &model.ConflictError{
				Reason:  model.ConflictBookUnavailable,
				Message: fmt.Sprintf("book with id: %d is not available for borrowing", bookID),
			}
		}

		if err := tx.SetBookStatus(ctx, bookID, model.BookBorrowed); err != nil {
			return err
		}

		checkout := s.timestamp()
		created, err = tx.InsertTransaction(ctx, model.Transaction{
			BookID:     bookID,
			UserID:     userID,
			CheckoutAt: checkout,
			DueAt:      checkout.Add(model.LoanPeriod),
		})
		return err
	})
	if err != nil {
		return model.Transaction{}, err
	}

	slog.Info("book borrowed",
		"transaction_id", created.ID,
		"book_id", bookID,
		"user_id", userID,
		"due_at", created.DueAt,
	)
	return created, nil
}

// ReturnBook closes an open transaction and makes its book available again. A transaction that
// is already closed is rejected with ErrAlreadyReturned and left untouched.
func (s *LendingService) ReturnBook(ctx context.Context, transactionID int64) (model.Transaction, error) {
	var returned model.Transaction

	err := s.store.WithinTx(ctx, func(tx repository.LendingTx) error {
		tr, err := tx.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if !tr.Open() {
			return &model.ConflictError{
				Reason:  model.ConflictAlreadyReturned,
				Message: fmt.Sprintf("transaction %d was already returned", transactionID),
			}
		}

		if _, err := tx.LockBook(ctx, tr.BookID); err != nil {
			return err
		}

		at := s.timestamp()
		if at.Before(tr.CheckoutAt) {
			at = tr.CheckoutAt
		}
		if err := tx.MarkReturned(ctx, transactionID, at); err != nil {
			return err
		}
		if err := tx.SetBookStatus(ctx, tr.BookID, model.BookAvailable); err != nil {
			return err
		}

		tr.ReturnedAt = &at
		returned = tr
		return nil
	})
	if err != nil {
		return model.Transaction{}, err
	}

	slog.Info("book returned",
		"transaction_id", transactionID,
		"book_id", returned.BookID,
		"user_id", returned.UserID,
	)
	return returned, nil
}

func (s *LendingService) Get(ctx context.Context, transactionID int64) (model.Transaction, error) {
	return s.history.FindByID(ctx, transactionID)
}

func (s *LendingService) History(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, *model.Meta, error) {
	items, total, err := s.history.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	return items, filter.Page.Meta(total), nil
}

// timestamp matches the microsecond precision of the backing store.
func (s *LendingService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
