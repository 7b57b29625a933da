package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/internal/model"
	"library-lending/internal/repository"
)

func seedBooks(t *testing.T, svc *BookService) []model.Book {
	t.Helper()

	reqs := []model.CreateBookRequest{
		{Title: "The Hobbit", Author: "J.R.R. Tolkien", ISBN: "9780547928227", PublicationYear: 1937},
		{Title: "The Silmarillion", Author: "J.R.R. Tolkien", ISBN: "9780618391110", PublicationYear: 1977},
		{Title: "Neuromancer", Author: "William Gibson", ISBN: "9780441569595", PublicationYear: 1984},
	}

	books := make([]model.Book, 0, len(reqs))
	for _, req := range reqs {
		b, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
		books = append(books, b)
	}
	return books
}

func TestBookService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := NewBookService(repository.NewMemoryStore().Books())

	book, err := svc.Create(ctx, model.CreateBookRequest{Title: " Dune ", Author: "Frank Herbert", ISBN: "9780441013593", PublicationYear: 1965})
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, model.BookAvailable, book.Status)

	got, err := svc.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book, got)

	_, err = svc.Create(ctx, model.CreateBookRequest{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", PublicationYear: 1965})
	assert.ErrorIs(t, err, model.ErrDuplicate)

	_, err = svc.Get(ctx, 42)
	assert.ErrorIs(t, err, model.ErrBookNotFound)
}

func TestBookService_Search(t *testing.T) {
	ctx := context.Background()
	svc := NewBookService(repository.NewMemoryStore().Books())
	seedBooks(t, svc)

	books, meta, err := svc.List(ctx, model.BookQuery{Field: model.BookFieldAuthor, Term: "tolkien"})
	require.NoError(t, err)
	assert.Len(t, books, 2)
	assert.Equal(t, 2, meta.Total)

	books, _, err = svc.List(ctx, model.BookQuery{Field: model.BookFieldTitle, Term: "NEURO"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Neuromancer", books[0].Title)

	books, _, err = svc.List(ctx, model.BookQuery{Page: model.Page{Sort: "publication_year", Desc: true}})
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, 1984, books[0].PublicationYear)
}

func TestBookService_AvailableAndDelete(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := NewBookService(store.Books())
	books := seedBooks(t, svc)

	user, err := store.Users().Create(ctx, model.User{Email: "a@b.com", Role: model.RoleMember})
	require.NoError(t, err)
	lending := NewLendingService(store, store.Transactions())
	_, err = lending.Borrow(ctx, books[0].ID, user.ID)
	require.NoError(t, err)

	available, _, err := svc.List(ctx, model.BookQuery{Status: model.BookAvailable})
	require.NoError(t, err)
	assert.Len(t, available, 2)

	err = svc.Delete(ctx, books[0].ID)
	assert.ErrorIs(t, err, model.ErrBookBorrowed)

	require.NoError(t, svc.Delete(ctx, books[1].ID))
	_, err = svc.Get(ctx, books[1].ID)
	assert.ErrorIs(t, err, model.ErrBookNotFound)

	err = svc.Delete(ctx, books[1].ID)
	assert.ErrorIs(t, err, model.ErrBookNotFound)
}
