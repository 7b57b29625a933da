//go:build integration

package integration

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"library-lending/internal/model"
)

func TestPostgresBorrowAndReturn(t *testing.T) {
	f := newPostgres(t)
	ctx := context.Background()
	user := f.createUser(t, model.RoleMember)
	book := f.createBook(t, "Dune", "Frank Herbert")

	tr, err := f.lending.Borrow(ctx, book.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, tr.DueAt.Equal(tr.CheckoutAt.Add(model.LoanPeriod)))

	stored, err := f.books.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookBorrowed, stored.Status)

	_, err = f.lending.Borrow(ctx, book.ID, user.ID)
	assert.ErrorIs(t, err, model.ErrBookUnavailable)

	err = f.books.Delete(ctx, book.ID)
	assert.ErrorIs(t, err, model.ErrBookBorrowed)

	returned, err := f.lending.ReturnBook(ctx, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnedAt)

	_, err = f.lending.ReturnBook(ctx, tr.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyReturned)

	stored, err = f.books.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookAvailable, stored.Status)

	items, meta, err := f.lending.History(ctx, model.TransactionFilter{UserID: user.ID, Page: model.Page{Number: 1, Limit: 10}})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, meta.Total)
}

func TestPostgresBorrowUnknownRecords(t *testing.T) {
	f := newPostgres(t)
	ctx := context.Background()
	user := f.createUser(t, model.RoleMember)
	book := f.createBook(t, "Emma", "Jane Austen")

	_, err := f.lending.Borrow(ctx, -1, user.ID)
	assert.ErrorIs(t, err, model.ErrBookNotFound)

	_, err = f.lending.Borrow(ctx, book.ID, -1)
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	_, err = f.lending.ReturnBook(ctx, -1)
	assert.ErrorIs(t, err, model.ErrTransactionNotFound)
}

func TestPostgresConcurrentBorrowHasOneWinner(t *testing.T) {
	f := newPostgres(t)
	book := f.createBook(t, "Neuromancer", "William Gibson")

	const borrowers = 16
	users := make([]model.User, borrowers)
	for i := range borrowers {
		users[i] = f.createUser(t, model.RoleMember)
	}

	var wins, conflicts atomic.Int32
	var g errgroup.Group
	for _, u := range users {
		g.Go(func() error {
			_, err := f.lending.Borrow(context.Background(), book.ID, u.ID)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, model.ErrBookUnavailable):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, borrowers-1, conflicts.Load())

	_, total, err := f.transactions.List(context.Background(), model.TransactionFilter{BookID: book.ID, Page: model.Page{Number: 1, Limit: 100}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestPostgresConcurrentReturnHasOneWinner(t *testing.T) {
	f := newPostgres(t)
	user := f.createUser(t, model.RoleMember)
	book := f.createBook(t, "Solaris", "Stanislaw Lem")

	tr, err := f.lending.Borrow(context.Background(), book.ID, user.ID)
	require.NoError(t, err)

	var wins, rejected atomic.Int32
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			_, err := f.lending.ReturnBook(context.Background(), tr.ID)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, model.ErrAlreadyReturned):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, 7, rejected.Load())
}

func TestPostgresBorrowRacingUserDeleteKeepsBookConsistent(t *testing.T) {
	f := newPostgres(t)
	ctx := context.Background()

	for range 25 {
		user := f.createUser(t, model.RoleMember)
		book := f.createBook(t, "Kindred", "Octavia Butler")

		var borrowErr, deleteErr error
		var g errgroup.Group
		g.Go(func() error {
			_, borrowErr = f.lending.Borrow(ctx, book.ID, user.ID)
			return nil
		})
		g.Go(func() error {
			deleteErr = f.users.Delete(ctx, user.ID)
			return nil
		})
		require.NoError(t, g.Wait())

		stored, err := f.books.FindByID(ctx, book.ID)
		require.NoError(t, err)
		open, total, err := f.transactions.List(ctx, model.TransactionFilter{BookID: book.ID, Page: model.Page{Number: 1, Limit: 10}})
		require.NoError(t, err)

		if borrowErr == nil {
			require.ErrorIs(t, deleteErr, model.ErrOpenLoans)
			require.Equal(t, 1, total)
			assert.True(t, open[0].Open())
			assert.Equal(t, model.BookBorrowed, stored.Status)
		} else {
			require.ErrorIs(t, borrowErr, model.ErrUserNotFound)
			require.NoError(t, deleteErr)
			assert.Equal(t, 0, total)
			assert.Equal(t, model.BookAvailable, stored.Status)
		}
	}
}
