package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evride/internal/domain"
)

func TestProvider_IssueAndCurrentUser(t *testing.T) {
	p, err := NewProvider("secret", "evride", time.Hour)
	require.NoError(t, err)

	token, err := p.Issue("user-1", domain.UserRoleAdmin)
	require.NoError(t, err)

	id, err := p.CurrentUser(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestProvider_DefaultsToUserRole(t *testing.T) {
	p, err := NewProvider("secret", "", time.Hour)
	require.NoError(t, err)

	token, err := p.Issue("user-1", "")
	require.NoError(t, err)

	id, err := p.CurrentUser(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserRoleUser, id.Role)
	assert.False(t, id.IsAdmin())
}

func TestProvider_RejectsBadTokens(t *testing.T) {
	p, err := NewProvider("secret", "evride", time.Hour)
	require.NoError(t, err)

	other, err := NewProvider("other-secret", "evride", time.Hour)
	require.NoError(t, err)
	wrongKey, err := other.Issue("user-1", domain.UserRoleUser)
	require.NoError(t, err)

	foreign, err := NewProvider("secret", "someone-else", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := foreign.Issue("user-1", domain.UserRoleUser)
	require.NoError(t, err)

	expiredProvider, err := NewProvider("secret", "evride", time.Minute)
	require.NoError(t, err)
	expiredProvider.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredProvider.Issue("user-1", domain.UserRoleUser)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "evride",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "evride",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"no subject":   noSubject,
		"none alg":     noneAlg,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := p.CurrentUser(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewProvider_RequiresSecret(t *testing.T) {
	_, err := NewProvider("", "evride", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}
