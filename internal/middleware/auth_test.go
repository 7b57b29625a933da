package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"library-lending/internal/model"
	"library-lending/internal/service"
)

type stubVerifier struct {
	tokens map[string]service.Token
}

func (s stubVerifier) VerifyAccess(raw string) (service.Token, error) {
	token, ok := s.tokens[raw]
	if !ok {
		return service.Token{}, model.ErrTokenSignatureInvalid
	}
	return token, nil
}

type stubResolver struct {
	principals map[string]model.Principal
	err        error
}

func (s stubResolver) Resolve(ctx context.Context, subject string) (model.Principal, error) {
	if s.err != nil {
		return model.Principal{}, s.err
	}
	p, ok := s.principals[subject]
	if !ok {
		return model.Principal{}, model.NotFound(model.ResourceUser, subject)
	}
	return p, nil
}

func runGate(t *testing.T, gate *AuthMiddleware, header string) (model.Principal, bool) {
	t.Helper()

	var (
		got   model.Principal
		found bool
	)
	handler := gate.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "the gate never rejects")
	return got, found
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	member := model.Principal{UserID: 2, Identifier: "a@b.com", Roles: []model.Role{model.RoleMember}}
	verifier := stubVerifier{tokens: map[string]service.Token{
		"good":  {Subject: "a@b.com", Kind: service.TokenAccess},
		"ghost": {Subject: "gone@b.com", Kind: service.TokenAccess},
	}}
	gate := NewAuthMiddleware(verifier, stubResolver{principals: map[string]model.Principal{"a@b.com": member}})

	t.Run("valid token attaches principal", func(t *testing.T) {
		p, ok := runGate(t, gate, "Bearer good")
		assert.True(t, ok)
		assert.Equal(t, member, p)
	})

	t.Run("scheme is case-insensitive", func(t *testing.T) {
		_, ok := runGate(t, gate, "bearer good")
		assert.True(t, ok)
	})

	t.Run("missing header stays anonymous", func(t *testing.T) {
		_, ok := runGate(t, gate, "")
		assert.False(t, ok)
	})

	t.Run("other scheme stays anonymous", func(t *testing.T) {
		_, ok := runGate(t, gate, "Basic Zm9vOmJhcg==")
		assert.False(t, ok)
	})

	t.Run("bad token stays anonymous", func(t *testing.T) {
		_, ok := runGate(t, gate, "Bearer forged")
		assert.False(t, ok)
	})

	t.Run("deleted subject stays anonymous", func(t *testing.T) {
		_, ok := runGate(t, gate, "Bearer ghost")
		assert.False(t, ok)
	})

	t.Run("store failure stays anonymous", func(t *testing.T) {
		failing := NewAuthMiddleware(verifier, stubResolver{err: errors.New("timeout")})
		_, ok := runGate(t, failing, "Bearer good")
		assert.False(t, ok)
	})
}
