package handler

import (
	"net/http"
	"strings"

	"library-lending/internal/middleware"
	"library-lending/internal/model"
	"library-lending/internal/service"
)

type AuthHandler struct {
	auth  *service.AuthService
	users *service.UserService
}

func NewAuthHandler(auth *service.AuthService, users *service.UserService) *AuthHandler {
	return &AuthHandler{auth: auth, users: users}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	tokens, err := h.auth.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	var actor *model.Principal
	if principal, ok := middleware.PrincipalFromContext(r.Context()); ok {
		actor = &principal
	}

	user, err := h.users.Register(r.Context(), payload, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), strings.TrimSpace(payload.RefreshToken))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthenticated)
		return
	}

	writeSuccess(w, http.StatusOK, model.WhoAmI{
		Username: principal.Identifier,
		Roles:    principal.RoleNames(),
	}, nil)
}
