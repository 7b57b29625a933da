package handler

import (
	"net/http"
	"strings"

	"library-lending/internal/model"
	"library-lending/internal/service"
	"library-lending/pkg/apierror"
)

type BookHandler struct {
	books *service.BookService
}

func NewBookHandler(books *service.BookService) *BookHandler {
	return &BookHandler{books: books}
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateBookRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	book, err := h.books.Create(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, book, nil)
}

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.BookQuery{Page: pageFromQuery(r)})
}

func (h *BookHandler) Available(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, model.BookQuery{Status: model.BookAvailable, Page: pageFromQuery(r)})
}

func (h *BookHandler) SearchByTitle(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, model.BookFieldTitle)
}

func (h *BookHandler) SearchByAuthor(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, model.BookFieldAuthor)
}

func (h *BookHandler) search(w http.ResponseWriter, r *http.Request, field model.BookField) {
	term := strings.TrimSpace(r.URL.Query().Get("query"))
	if term == "" {
		writeError(w, r, apierror.BadRequest("query is required", "query"))
		return
	}

	h.list(w, r, model.BookQuery{Field: field, Term: term, Page: pageFromQuery(r)})
}

func (h *BookHandler) list(w http.ResponseWriter, r *http.Request, q model.BookQuery) {
	books, meta, err := h.books.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.BookList{Items: books}, meta)
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	book, err := h.books.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, book, nil)
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.books.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}
