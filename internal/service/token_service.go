package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"library-lending/internal/model"
)

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

const (
	claimSubject  = "sub"
	claimIssuedAt = "iat"
	claimExpires  = "exp"
	claimType     = "type"
	claimRoles    = "roles"

	// MinSecretLength is the shortest HMAC key accepted at start-up.
	MinSecretLength = 32
)

var reservedClaims = map[string]struct{}{
	claimSubject:  {},
	claimIssuedAt: {},
	claimExpires:  {},
	claimType:     {},
}

// Token is an issued or verified bearer credential.
type Token struct {
	Value     string
	Subject   string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    map[string]any
}

// Roles returns the "roles" claim, if any.
func (t Token) Roles() []string {
	switch raw := t.Claims[claimRoles].(type) {
	case []string:
		return raw
	case []any:
		roles := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	default:
		return nil
	}
}

// TokenService mints and verifies HS256 tokens. It holds no mutable state and is safe for concurrent use.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL time.Duration, refreshTTL time.Duration) (*TokenService, error) {
	if len(strings.TrimSpace(secret)) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if accessTTL < time.Second {
		return nil, errors.New("access token ttl must be at least one second")
	}
	if refreshTTL <= accessTTL {
		return nil, errors.New("refresh token ttl must be longer than access token ttl")
	}

	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock returns a copy of the service reading time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	clone := *s
	clone.now = now
	return &clone
}

func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccess signs an access token for principal. Reserved claims in claims are ignored.
func (s *TokenService) IssueAccess(principal model.Principal, claims map[string]any, ttl time.Duration) (Token, error) {
	return s.issue(principal.Identifier, TokenAccess, claims, ttl)
}

// IssueAccessFor signs an access token with the default ttl carrying the principal's roles.
func (s *TokenService) IssueAccessFor(principal model.Principal) (Token, error) {
	return s.IssueAccess(principal, map[string]any{claimRoles: principal.RoleNames()}, s.accessTTL)
}

func (s *TokenService) IssueRefresh(principal model.Principal) (Token, error) {
	return s.issue(principal.Identifier, TokenRefresh, nil, s.refreshTTL)
}

// Verify checks structure, signature and expiry, in that order.
func (s *TokenService) Verify(tokenString string) (Token, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
		jwt.WithStrictDecoding(),
	)

	tokenString = strings.TrimSpace(tokenString)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) && onlySignatureUndecodable(tokenString) {
			return Token{}, &model.TokenError{Reason: model.TokenSignatureInvalid, Err: err}
		}
		return Token{}, classifyJWTError(err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Token{}, &model.TokenError{Reason: model.TokenMalformed, Err: errors.New("missing subject")}
	}
	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return Token{}, &model.TokenError{Reason: model.TokenMalformed, Err: errors.New("missing issued-at")}
	}
	expiresAt, err := claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return Token{}, &model.TokenError{Reason: model.TokenMalformed, Err: errors.New("missing expiry")}
	}

	kind := TokenAccess
	if raw, present := claims[claimType]; present {
		typ, _ := raw.(string)
		switch TokenKind(typ) {
		case TokenRefresh:
			kind = TokenRefresh
		case TokenAccess:
		default:
			return Token{}, &model.TokenError{Reason: model.TokenMalformed, Err: fmt.Errorf("unknown token type %q", typ)}
		}
	}

	extra := make(map[string]any, len(claims))
	for key, value := range claims {
		if _, reserved := reservedClaims[key]; reserved {
			continue
		}
		extra[key] = value
	}

	return Token{
		Value:     tokenString,
		Subject:   subject,
		Kind:      kind,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
		Claims:    extra,
	}, nil
}

// VerifyAccess is Verify restricted to access tokens.
func (s *TokenService) VerifyAccess(tokenString string) (Token, error) {
	token, err := s.Verify(tokenString)
	if err != nil {
		return Token{}, err
	}
	if token.Kind != TokenAccess {
		return Token{}, model.ErrTokenWrongKind
	}
	return token, nil
}

// Rotate mints a new access token from a refresh token. The caller resolves principal from the
// refresh token's subject beforehand.
func (s *TokenService) Rotate(refreshToken string, principal model.Principal) (Token, error) {
	token, err := s.Verify(refreshToken)
	if err != nil {
		return Token{}, err
	}
	if token.Kind != TokenRefresh {
		return Token{}, model.ErrTokenWrongKind
	}

	return s.IssueAccessFor(principal)
}

func (s *TokenService) issue(subject string, kind TokenKind, claims map[string]any, ttl time.Duration) (Token, error) {
	if strings.TrimSpace(subject) == "" {
		return Token{}, errors.New("token subject is required")
	}
	if ttl < time.Second {
		return Token{}, errors.New("token ttl must be at least one second")
	}

	// NumericDate has second precision; truncate so the returned Token matches the wire payload.
	now := s.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	payload := jwt.MapClaims{}
	extra := map[string]any{}
	for key, value := range claims {
		if _, reserved := reservedClaims[key]; reserved {
			continue
		}
		payload[key] = value
		extra[key] = value
	}
	payload[claimSubject] = subject
	payload[claimIssuedAt] = now.Unix()
	payload[claimExpires] = expiresAt.Unix()
	if kind == TokenRefresh {
		payload[claimType] = string(TokenRefresh)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{
		Value:     signed,
		Subject:   subject,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		Claims:    extra,
	}, nil
}

// onlySignatureUndecodable reports a well-formed header and payload followed by a signature
// segment that is not canonical base64url. Any altered signature character lands here or fails
// the HMAC comparison.
func onlySignatureUndecodable(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}
	strict := base64.RawURLEncoding.Strict()
	for _, part := range parts[:2] {
		if _, err := strict.DecodeString(part); err != nil {
			return false
		}
	}
	_, err := strict.DecodeString(parts[2])
	return err != nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &model.TokenError{Reason: model.TokenSignatureInvalid, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &model.TokenError{Reason: model.TokenExpired, Err: err}
	default:
		return &model.TokenError{Reason: model.TokenMalformed, Err: err}
	}
}
