package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerifier(t *testing.T) {
	_, err := NewVerifier("", "")
	assert.ErrorIs(t, err, ErrMissingSecret)

	v, err := NewVerifier("secret", "auth.logitrack")
	require.NoError(t, err)
	assert.Equal(t, "auth.logitrack", v.issuer)
}

func TestVerifier_RoundTrip(t *testing.T) {
	v, err := NewVerifier("secret", "auth.logitrack")
	require.NoError(t, err)

	token, err := v.Sign("u1", "ops@example.com", "dispatcher", time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.User())
	assert.Equal(t, "dispatcher", claims.Role)
}

func TestVerifier_Rejects(t *testing.T) {
	v, _ := NewVerifier("secret", "auth.logitrack")

	t.Run("expired", func(t *testing.T) {
		token, err := v.Sign("u1", "", "", -time.Minute)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := NewVerifier("other", "auth.logitrack")
		token, _ := other.Sign("u1", "", "", time.Hour)
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, _ := NewVerifier("secret", "someone-else")
		token, _ := other.Sign("u1", "", "", time.Hour)
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("no user", func(t *testing.T) {
		token, _ := v.Sign("", "", "", time.Hour)
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrMissingUser)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not-a-token")
		assert.Error(t, err)
	})
}

func TestClaims_UserFallsBackToSubject(t *testing.T) {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"}}
	assert.Equal(t, "sub-1", c.User())
}
