package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/internal/model"
)

func TestMatchPath(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/health", "/health", true},
		{"/health", "/health/", true},
		{"/health", "/healthz", false},
		{"/books/**", "/books", true},
		{"/books/**", "/books/12", true},
		{"/books/**", "/books/search/title", true},
		{"/books/**", "/bookshelf", false},
		{"/transactions/return/*", "/transactions/return/7", true},
		{"/transactions/return/*", "/transactions/return", false},
		{"/transactions/return/*", "/transactions/return/7/extra", false},
		{"/**", "/", true},
		{"/**", "/anything/at/all", true},
		{"/auth/login", "/auth/../auth/login", true},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, matchPath(tc.pattern, tc.path), "%s ~ %s", tc.pattern, tc.path)
	}
}

func TestLibraryPolicy_Decide(t *testing.T) {
	policy := LibraryPolicy()
	member := &model.Principal{UserID: 2, Identifier: "m@b.com", Roles: []model.Role{model.RoleMember}}
	librarian := &model.Principal{UserID: 1, Identifier: "l@b.com", Roles: []model.Role{model.RoleLibrarian}}

	cases := []struct {
		name      string
		method    string
		path      string
		principal *model.Principal
		want      error
	}{
		{"health is public", http.MethodGet, "/health", nil, nil},
		{"api document is public", http.MethodGet, "/openapi.yaml", nil, nil},
		{"swagger ui is public", http.MethodGet, "/swagger", nil, nil},
		{"api document write needs a principal", http.MethodPost, "/openapi.yaml", nil, model.ErrUnauthenticated},
		{"login is public", http.MethodPost, "/auth/login", nil, nil},
		{"register is public", http.MethodPost, "/auth/register", nil, nil},
		{"whoami needs a principal", http.MethodGet, "/auth/whoami", nil, model.ErrUnauthenticated},
		{"whoami for member", http.MethodGet, "/auth/whoami", member, nil},
		{"catalog read is public", http.MethodGet, "/books/search/title", nil, nil},
		{"catalog write anonymous", http.MethodPost, "/books", nil, model.ErrUnauthenticated},
		{"catalog write member", http.MethodDelete, "/books/3", member, model.ErrInsufficientRole},
		{"catalog write librarian", http.MethodPost, "/books", librarian, nil},
		{"users for member", http.MethodGet, "/users", member, model.ErrInsufficientRole},
		{"users for librarian", http.MethodGet, "/users/4", librarian, nil},
		{"borrow anonymous", http.MethodPost, "/transactions/borrow", nil, model.ErrUnauthenticated},
		{"borrow member", http.MethodPost, "/transactions/borrow", member, nil},
		{"return librarian", http.MethodPost, "/transactions/return/9", librarian, nil},
		{"own history member", http.MethodGet, "/transactions/user/2", member, nil},
		{"all history member", http.MethodGet, "/transactions", member, model.ErrInsufficientRole},
		{"book history librarian", http.MethodGet, "/transactions/book/1", librarian, nil},
		{"unlisted route anonymous", http.MethodGet, "/reports", nil, model.ErrUnauthenticated},
		{"unlisted route member", http.MethodGet, "/reports", member, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Decide(tc.method, tc.path, tc.principal)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPolicy_FirstMatchWins(t *testing.T) {
	policy := NewPolicy(
		Public("/things/open"),
		Roles("/things/**", []model.Role{model.RoleLibrarian}),
	)

	assert.NoError(t, policy.Decide(http.MethodPost, "/things/open", nil))
	assert.ErrorIs(t, policy.Decide(http.MethodPost, "/things/closed", nil), model.ErrUnauthenticated)
}

func TestPolicy_Authorize(t *testing.T) {
	handler := LibraryPolicy().Authorize(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("anonymous gets 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/whoami", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

		var body model.APIResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.False(t, body.Success)
		assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
	})

	t.Run("wrong role gets 403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/books", nil)
		req = req.WithContext(WithPrincipal(req.Context(), model.Principal{Identifier: "m@b.com", Roles: []model.Role{model.RoleMember}}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "FORBIDDEN")
	})

	t.Run("public passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
