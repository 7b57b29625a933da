package service

import (
	"context"
	"log/slog"
	"strings"

	"library-lending/internal/model"
)

type bookStore interface {
	FindByID(ctx context.Context, id int64) (model.Book, error)
	Create(ctx context.Context, b model.Book) (model.Book, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q model.BookQuery) ([]model.Book, int, error)
}

// BookService is the catalog. Status changes after creation belong to LendingService.
type BookService struct {
	books bookStore
}

func NewBookService(books bookStore) *BookService {
	return &BookService{books: books}
}

func (s *BookService) Create(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	book, err := s.books.Create(ctx, model.Book{
		Title:           strings.TrimSpace(req.Title),
		Author:          strings.TrimSpace(req.Author),
		ISBN:            strings.TrimSpace(req.ISBN),
		PublicationYear: req.PublicationYear,
		Status:          model.BookAvailable,
	})
	if err != nil {
		return model.Book{}, err
	}

	slog.Info("book added", "book_id", book.ID, "title", book.Title)
	return book, nil
}

func (s *BookService) Get(ctx context.Context, id int64) (model.Book, error) {
	return s.books.FindByID(ctx, id)
}

func (s *BookService) List(ctx context.Context, q model.BookQuery) ([]model.Book, *model.Meta, error) {
	books, total, err := s.books.List(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	return books, q.Page.Meta(total), nil
}

func (s *BookService) Delete(ctx context.Context, id int64) error {
	if err := s.books.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("book deleted", "book_id", id)
	return nil
}
