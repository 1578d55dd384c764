package crypto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quizhive/api/crypto"
	"github.com/quizhive/api/domain"
)

func TestHash(t *testing.T) {
	hasher := crypto.NewArgon2idHasher(1, 15*1024, 32, 16, 1)

	hash, err := hasher.Hash("supersecretpassword")

	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.True(t, strings.HasPrefix(hash, "$argon2id"), "Hash should start with argon2id prefix")
}

func TestCompare(t *testing.T) {
	hasher := crypto.NewArgon2idHasher(1, 15*1024, 32, 16, 1)
	password := "my_password_123"

	hash, _ := hasher.Hash(password)

	match, err := hasher.Compare(hash, password)
	assert.NoError(t, err)
	assert.True(t, match, "Password should match")

	match, err = hasher.Compare(hash, "wrong_password")
	assert.NoError(t, err)
	assert.False(t, match, "Password should not match")

	match, err = hasher.Compare("invalid-hash-string", password)
	assert.ErrorIs(t, err, domain.UnexpectedPasswordHashComparisonError)
	assert.False(t, match)
}

func TestHashesAreSalted(t *testing.T) {
	hasher := crypto.NewArgon2idHasher(1, 15*1024, 32, 16, 1)

	first, err := hasher.Hash("same_password")
	assert.NoError(t, err)
	second, err := hasher.Hash("same_password")
	assert.NoError(t, err)

	assert.NotEqual(t, first, second, "Two hashes of the same password must differ")
}
