package handler

import (
	"net/http"

	"library-lending/internal/middleware"
	"library-lending/internal/model"
	"library-lending/internal/service"
)

type TransactionHandler struct {
	lending *service.LendingService
}

func NewTransactionHandler(lending *service.LendingService) *TransactionHandler {
	return &TransactionHandler{lending: lending}
}

// Borrow lends bookId to userId. Members may only borrow for themselves.
func (h *TransactionHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	bookID, err := queryID(r, "bookId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := queryID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := requireSelfOrLibrarian(r, userID); err != nil {
		writeError(w, r, err)
		return
	}

	tr, err := h.lending.Borrow(r.Context(), bookID, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, tr, nil)
}

func (h *TransactionHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "transactionId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	tr, err := h.lending.ReturnBook(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, tr, nil)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, model.TransactionFilter{Page: pageFromQuery(r)})
}

func (h *TransactionHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireSelfOrLibrarian(r, userID); err != nil {
		writeError(w, r, err)
		return
	}

	h.history(w, r, model.TransactionFilter{UserID: userID, Page: pageFromQuery(r)})
}

func (h *TransactionHandler) ByBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := pathID(r, "bookId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.history(w, r, model.TransactionFilter{BookID: bookID, Page: pageFromQuery(r)})
}

func (h *TransactionHandler) history(w http.ResponseWriter, r *http.Request, filter model.TransactionFilter) {
	items, meta, err := h.lending.History(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.TransactionList{Items: items}, meta)
}

func requireSelfOrLibrarian(r *http.Request, userID int64) error {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return model.ErrUnauthenticated
	}
	if principal.HasRole(model.RoleLibrarian) || principal.UserID == userID {
		return nil
	}
	return model.ErrInsufficientRole
}
