package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hashFor(t *testing.T, key string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAPIKeyAuthenticator(t *testing.T) {
	a := NewAPIKeyAuthenticator([]APIKey{
		{Name: "ops", Key: "plain-key"},
		{Name: "ci", KeyHash: hashFor(t, "hashed-key")},
	})

	t.Run("plain key", func(t *testing.T) {
		user, err := a.Authenticate(WithToken(context.Background(), "plain-key"))
		require.NoError(t, err)
		assert.Equal(t, "apikey:ops", user.UserID)
		assert.Equal(t, "apikey", user.AuthType)
	})

	t.Run("hashed key", func(t *testing.T) {
		user, err := a.Authenticate(WithToken(context.Background(), "hashed-key"))
		require.NoError(t, err)
		assert.Equal(t, "apikey:ci", user.UserID)
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := a.Authenticate(WithToken(context.Background(), "nope"))
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("no key", func(t *testing.T) {
		_, err := a.Authenticate(context.Background())
		assert.ErrorIs(t, err, ErrMissingKey)
	})

	t.Run("add and remove", func(t *testing.T) {
		a.AddKey(APIKey{Name: "new", Key: "new-key"})
		_, err := a.Authenticate(WithToken(context.Background(), "new-key"))
		require.NoError(t, err)

		a.RemoveKey("new")
		_, err = a.Authenticate(WithToken(context.Background(), "new-key"))
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestAPIKeyAuthenticator_Concurrent(t *testing.T) {
	a := NewAPIKeyAuthenticator([]APIKey{{Name: "ops", Key: "k"}})
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = a.Authenticate(WithToken(context.Background(), "k"))
		}()
		go func() {
			defer wg.Done()
			a.AddKey(APIKey{Name: "x", Key: "x"})
		}()
	}
	wg.Wait()
}

func TestAPIKey_Validate(t *testing.T) {
	tests := []struct {
		name    string
		key     APIKey
		wantErr string
	}{
		{"plain", APIKey{Name: "a", Key: "k"}, ""},
		{"hash", APIKey{Name: "a", KeyHash: hashFor(t, "k")}, ""},
		{"no name", APIKey{Key: "k"}, "name is required"},
		{"no secret", APIKey{Name: "a"}, "key or key_hash is required"},
		{"both", APIKey{Name: "a", Key: "k", KeyHash: "h"}, "mutually exclusive"},
		{"bad hash", APIKey{Name: "a", KeyHash: "not-bcrypt"}, "invalid key_hash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHashKey(t *testing.T) {
	hash, err := HashKey("secret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")))

	_, err = HashKey("")
	assert.ErrorIs(t, err, ErrMissingKey)
}
