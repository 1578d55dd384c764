package crypto_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhive/api/crypto"
	"github.com/quizhive/api/domain"
)

func TestJWTRoundTrip(t *testing.T) {
	manager := crypto.NewJWTManager("test-secret", time.Hour)

	token, err := manager.Generate("user-42", time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := manager.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, "user-42", id)
}

func TestJWTExpired(t *testing.T) {
	manager := crypto.NewJWTManager("test-secret", time.Hour)

	token, err := manager.Generate("user-42", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = manager.Verify(token)
	assert.ErrorIs(t, err, domain.ErrExpiredToken)
}

func TestJWTWrongKey(t *testing.T) {
	manager := crypto.NewJWTManager("test-secret", time.Hour)
	other := crypto.NewJWTManager("other-secret", time.Hour)

	token, err := other.Generate("user-42", time.Now())
	require.NoError(t, err)

	_, err = manager.Verify(token)
	assert.ErrorIs(t, err, domain.ErrInvalidTokenSignature)
}

func TestJWTClaimsShape(t *testing.T) {
	manager := crypto.NewJWTManager("test-secret", time.Hour)
	issued := time.Now().Truncate(time.Second)

	token, err := manager.Generate("user-42", issued)
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)

	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "quizhive", claims.Issuer)
	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, issued.Unix(), claims.IssuedAt.Unix())
}

func TestJWTRejectsForeignIssuer(t *testing.T) {
	manager := crypto.NewJWTManager("test-secret", time.Hour)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-42",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token, err := foreign.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = manager.Verify(token)
	assert.ErrorIs(t, err, domain.ErrCorruptedToken)
}

func TestJWTMissingSubject(t *testing.T) {
	manager := crypto.NewJWTManager("test-secret", time.Hour)

	anonymous := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "quizhive",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token, err := anonymous.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = manager.Verify(token)
	assert.ErrorIs(t, err, domain.ErrCorruptedToken)
}

func TestJWTRejectsForeignSigningAlg(t *testing.T) {
	manager := crypto.NewJWTManager("test-secret", time.Hour)

	// alg=none token, the classic downgrade attempt
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "user-42"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = manager.Verify(token)
	assert.Error(t, err)
}

func TestJWTCorrupted(t *testing.T) {
	manager := crypto.NewJWTManager("test-secret", time.Hour)

	_, err := manager.Verify("not.a.jwt")
	assert.ErrorIs(t, err, domain.ErrCorruptedToken)

	_, err = manager.Verify("")
	assert.ErrorIs(t, err, domain.ErrCorruptedToken)
}
