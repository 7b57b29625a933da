package service

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/internal/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestTokenService(t *testing.T) (*TokenService, *testClock) {
	t.Helper()

	svc, err := NewTokenService(testSecret, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
	return svc.WithClock(clock.Now), clock
}

func testPrincipal() model.Principal {
	return model.Principal{UserID: 1, Identifier: "a@b.com", Roles: []model.Role{model.RoleMember}}
}

func TestNewTokenService_RejectsWeakConfig(t *testing.T) {
	_, err := NewTokenService("short", 15*time.Minute, time.Hour)
	require.Error(t, err)

	_, err = NewTokenService(testSecret, 0, time.Hour)
	require.Error(t, err)

	_, err = NewTokenService(testSecret, time.Hour, time.Hour)
	require.Error(t, err)
}

func TestTokenService_IssueAndVerifyAccess(t *testing.T) {
	svc, clock := newTestTokenService(t)

	issued, err := svc.IssueAccess(testPrincipal(), map[string]any{"roles": []string{"ROLE_MEMBER"}, "sub": "mallory"}, 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, TokenAccess, issued.Kind)
	require.True(t, issued.ExpiresAt.After(issued.IssuedAt))
	require.Len(t, strings.Split(issued.Value, "."), 3)

	clock.now = clock.now.Add(14*time.Minute + 59*time.Second)
	verified, err := svc.Verify(issued.Value)
	require.NoError(t, err)

	assert.Equal(t, "a@b.com", verified.Subject)
	assert.Equal(t, TokenAccess, verified.Kind)
	assert.Equal(t, []string{"ROLE_MEMBER"}, verified.Roles())
	assert.Equal(t, issued.IssuedAt, verified.IssuedAt)
	assert.Equal(t, issued.ExpiresAt, verified.ExpiresAt)
	assert.NotContains(t, verified.Claims, "sub")
}

func TestTokenService_VerifyExpired(t *testing.T) {
	svc, clock := newTestTokenService(t)

	issued, err := svc.IssueAccess(testPrincipal(), nil, time.Minute)
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Minute + time.Second)
	_, err = svc.Verify(issued.Value)
	require.ErrorIs(t, err, model.ErrTokenExpired)
	require.ErrorIs(t, err, model.ErrToken)
}

func TestTokenService_VerifyTamperedSignature(t *testing.T) {
	svc, _ := newTestTokenService(t)

	issued, err := svc.IssueAccessFor(testPrincipal())
	require.NoError(t, err)

	parts := strings.Split(issued.Value, ".")
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)

	for _, bit := range []int{0, 7, len(sig)*8 - 1} {
		flipped := append([]byte(nil), sig...)
		flipped[bit/8] ^= 1 << (bit % 8)
		tampered := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(flipped)

		_, err = svc.Verify(tampered)
		require.ErrorIs(t, err, model.ErrTokenSignatureInvalid, "bit %d", bit)
	}
}

func TestTokenService_VerifyTamperedSignatureEncoding(t *testing.T) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	svc, _ := newTestTokenService(t)

	issued, err := svc.IssueAccessFor(testPrincipal())
	require.NoError(t, err)

	parts := strings.Split(issued.Value, ".")
	sig := []byte(parts[2])

	// Flip each of the six bits carried by every character of the encoded segment, including
	// the low bits of the last character that carry no signature data.
	for pos := range sig {
		value := strings.IndexByte(alphabet, sig[pos])
		require.GreaterOrEqual(t, value, 0)

		for bit := range 6 {
			flipped := append([]byte(nil), sig...)
			flipped[pos] = alphabet[value^(1<<bit)]
			tampered := parts[0] + "." + parts[1] + "." + string(flipped)

			_, err := svc.Verify(tampered)
			require.ErrorIs(t, err, model.ErrTokenSignatureInvalid, "char %d bit %d", pos, bit)
		}
	}
}

func TestTokenService_VerifyTamperedPayload(t *testing.T) {
	svc, _ := newTestTokenService(t)

	issued, err := svc.IssueAccessFor(testPrincipal())
	require.NoError(t, err)

	parts := strings.Split(issued.Value, ".")
	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"admin@b.com","iat":1,"exp":9999999999,"roles":["ROLE_LIBRARIAN"]}`))

	_, err = svc.Verify(parts[0] + "." + forged + "." + parts[2])
	require.ErrorIs(t, err, model.ErrTokenSignatureInvalid)
}

func TestTokenService_VerifyRejectsOtherKeysAndAlgorithms(t *testing.T) {
	svc, clock := newTestTokenService(t)

	other, err := NewTokenService("ffffffffffffffffffffffffffffffff", 15*time.Minute, time.Hour)
	require.NoError(t, err)
	foreign, err := other.WithClock(clock.Now).IssueAccessFor(testPrincipal())
	require.NoError(t, err)

	_, err = svc.Verify(foreign.Value)
	require.ErrorIs(t, err, model.ErrTokenSignatureInvalid)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "a@b.com",
		"iat": clock.now.Unix(),
		"exp": clock.now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(unsigned)
	require.ErrorIs(t, err, model.ErrTokenSignatureInvalid)
}

func TestTokenService_VerifyMalformed(t *testing.T) {
	svc, _ := newTestTokenService(t)

	for _, raw := range []string{"", "abc", "a.b", "a.b.c", "!!!.???.***"} {
		_, err := svc.Verify(raw)
		require.ErrorIs(t, err, model.ErrTokenMalformed, "input %q", raw)
	}
}

func TestTokenService_RefreshKind(t *testing.T) {
	svc, _ := newTestTokenService(t)

	refresh, err := svc.IssueRefresh(testPrincipal())
	require.NoError(t, err)
	require.Equal(t, TokenRefresh, refresh.Kind)
	require.Equal(t, 7*24*time.Hour, refresh.ExpiresAt.Sub(refresh.IssuedAt))

	verified, err := svc.Verify(refresh.Value)
	require.NoError(t, err)
	assert.Equal(t, TokenRefresh, verified.Kind)

	_, err = svc.VerifyAccess(refresh.Value)
	require.ErrorIs(t, err, model.ErrTokenWrongKind)
}

func TestTokenService_Rotate(t *testing.T) {
	svc, clock := newTestTokenService(t)
	principal := testPrincipal()

	refresh, err := svc.IssueRefresh(principal)
	require.NoError(t, err)

	clock.now = clock.now.Add(24 * time.Hour)
	access, err := svc.Rotate(refresh.Value, principal)
	require.NoError(t, err)
	assert.Equal(t, TokenAccess, access.Kind)
	assert.Equal(t, clock.now, access.IssuedAt)
	assert.Equal(t, []string{"ROLE_MEMBER"}, access.Roles())

	_, err = svc.Rotate(access.Value, principal)
	require.ErrorIs(t, err, model.ErrTokenWrongKind)

	clock.now = clock.now.Add(7 * 24 * time.Hour)
	_, err = svc.Rotate(refresh.Value, principal)
	require.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestTokenService_IssueRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestTokenService(t)

	_, err := svc.IssueAccess(testPrincipal(), nil, 0)
	require.Error(t, err)

	_, err = svc.IssueAccess(model.Principal{}, nil, time.Minute)
	require.Error(t, err)
}
