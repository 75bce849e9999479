package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) *Keys {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	k, err := NewKeys(privateKey, &privateKey.PublicKey)
	require.NoError(t, err)
	return k
}

func TestGenerateAndValidateToken(t *testing.T) {
	k := testKeys(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "c7b5a281-6c36-4b52-a0f1-98f07f5a5e6b",
			Issuer:    "ecommerce-backend",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: RoleAdmin,
	}

	token, err := k.GenerateToken(claims)
	require.NoError(t, err)

	parsed, err := k.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, claims.Subject, parsed.Subject)
	require.Equal(t, RoleAdmin, parsed.Role)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	k := testKeys(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-id",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: RoleUser,
	}
	token, err := k.GenerateToken(claims)
	require.NoError(t, err)

	_, err = k.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	k1 := testKeys(t)
	k2 := testKeys(t)

	token, err := k1.GenerateToken(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-id",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleUser,
	})
	require.NoError(t, err)

	_, err = k2.ValidateToken(token)
	require.Error(t, err)
}
