//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/internal/model"
)

func TestPostgresUsers(t *testing.T) {
	f := newPostgres(t)
	ctx := context.Background()
	u := f.createUser(t, model.RoleLibrarian)

	byEmail, err := f.users.FindByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, model.RoleLibrarian, byEmail.Role)

	dup := u
	dup.MembershipID = unique("M")
	_, err = f.users.Create(ctx, dup)
	assert.ErrorIs(t, err, model.ErrDuplicate)

	require.NoError(t, f.users.Delete(ctx, u.ID))
	_, err = f.users.FindByID(ctx, u.ID)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestPostgresUserWithOpenLoanCannotBeDeleted(t *testing.T) {
	f := newPostgres(t)
	ctx := context.Background()
	u := f.createUser(t, model.RoleMember)
	b := f.createBook(t, "Kindred", "Octavia Butler")

	tr, err := f.lending.Borrow(ctx, b.ID, u.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.users.Delete(ctx, u.ID), model.ErrOpenLoans)

	_, err = f.lending.ReturnBook(ctx, tr.ID)
	require.NoError(t, err)
	assert.NoError(t, f.users.Delete(ctx, u.ID))
}

func TestPostgresBookSearch(t *testing.T) {
	f := newPostgres(t)
	ctx := context.Background()
	author := unique("Author")
	f.createBook(t, "Zeta Tale", author)
	f.createBook(t, "Alpha Tale", author)

	_, err := f.books.Create(ctx, model.Book{Title: "Copy", Author: author, ISBN: unique("isbn"), PublicationYear: 2000})
	require.NoError(t, err)

	books, total, err := f.books.List(ctx, model.BookQuery{
		Field: model.BookFieldAuthor,
		Term:  author,
		Page:  model.Page{Number: 1, Limit: 10, Sort: "title"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, books, 3)
	assert.Equal(t, "Alpha Tale", books[0].Title)
	assert.Equal(t, "Zeta Tale", books[2].Title)

	first, err := f.books.FindByID(ctx, books[0].ID)
	require.NoError(t, err)
	_, err = f.books.Create(ctx, model.Book{Title: "Dup", Author: "x", ISBN: first.ISBN, PublicationYear: 2000})
	assert.ErrorIs(t, err, model.ErrDuplicate)
}
