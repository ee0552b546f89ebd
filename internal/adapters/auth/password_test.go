package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"roombooking/internal/domain"
)

func TestBcryptHasher_GenerateSalt(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hexRe := regexp.MustCompile(`^[0-9a-f]{64}$`)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		salt, err := h.GenerateSalt()
		require.NoError(t, err)
		assert.Regexp(t, hexRe, salt, "salt should be 64 hex characters")
		assert.False(t, seen[salt], "salts must not repeat")
		seen[salt] = true
	}
}

func TestBcryptHasher_Compare(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	salt, err := h.GenerateSalt()
	require.NoError(t, err)
	otherSalt, err := h.GenerateSalt()
	require.NoError(t, err)

	hash, err := h.Hash(salt, "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	tests := []struct {
		name     string
		hash     string
		salt     string
		password string
		wantErr  error
		wantAny  bool
	}{
		{name: "match", hash: hash, salt: salt, password: "correct horse"},
		{name: "wrong password", hash: hash, salt: salt, password: "battery staple", wantErr: domain.ErrInvalidCredentials},
		{name: "wrong salt", hash: hash, salt: otherSalt, password: "correct horse", wantErr: domain.ErrInvalidCredentials},
		{name: "corrupt hash", hash: "not-a-bcrypt-hash", salt: salt, password: "correct horse", wantAny: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Compare(tt.hash, tt.salt, tt.password)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAny:
				require.Error(t, err)
				assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	h := NewBcryptHasher(99).(*bcryptHasher)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)

	h = NewBcryptHasher(bcrypt.MinCost).(*bcryptHasher)
	assert.Equal(t, bcrypt.MinCost, h.cost)
}
