package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Authentication failures.
var (
	ErrMissingKey = errors.New("no API key provided")
	ErrInvalidKey = errors.New("invalid API key")
)

// Authenticator resolves the credential carried by ctx to a caller.
type Authenticator interface {
	Authenticate(ctx context.Context) (*UserInfo, error)
}

// APIKey is one accepted key. Exactly one of Key or KeyHash is set; KeyHash
// holds a bcrypt hash of the key.
type APIKey struct {
	Name    string `yaml:"name"`
	Key     string `yaml:"key"`
	KeyHash string `yaml:"key_hash"`
}

// Validate checks that the entry is usable.
func (k APIKey) Validate() error {
	switch {
	case k.Name == "":
		return errors.New("api key name is required")
	case k.Key == "" && k.KeyHash == "":
		return fmt.Errorf("api key %q: key or key_hash is required", k.Name)
	case k.Key != "" && k.KeyHash != "":
		return fmt.Errorf("api key %q: key and key_hash are mutually exclusive", k.Name)
	case k.KeyHash != "":
		if _, err := bcrypt.Cost([]byte(k.KeyHash)); err != nil {
			return fmt.Errorf("api key %q: invalid key_hash: %w", k.Name, err)
		}
	}
	return nil
}

// APIKeyAuthenticator authenticates using API keys.
type APIKeyAuthenticator struct {
	mu   sync.RWMutex
	keys []APIKey
}

// NewAPIKeyAuthenticator creates a new API key authenticator.
func NewAPIKeyAuthenticator(keys []APIKey) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: append([]APIKey(nil), keys...)}
}

// Authenticate validates the API key in ctx.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context) (*UserInfo, error) {
	token := GetToken(ctx)
	if token == "" {
		return nil, ErrMissingKey
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	// Every plain key is compared so timing does not reveal which matched.
	var matched *APIKey
	for i := range a.keys {
		k := &a.keys[i]
		if k.Key == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(token)) == 1 && matched == nil {
			matched = k
		}
	}
	if matched == nil {
		for i := range a.keys {
			k := &a.keys[i]
			if k.KeyHash == "" {
				continue
			}
			if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(token)) == nil {
				matched = k
				break
			}
		}
	}
	if matched == nil {
		return nil, ErrInvalidKey
	}

	return &UserInfo{
		UserID:   "apikey:" + matched.Name,
		Name:     matched.Name,
		AuthType: "apikey",
	}, nil
}

// AddKey adds an API key at runtime.
func (a *APIKeyAuthenticator) AddKey(key APIKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
}

// RemoveKey removes the named key.
func (a *APIKeyAuthenticator) RemoveKey(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.keys[:0]
	for _, k := range a.keys {
		if k.Name != name {
			kept = append(kept, k)
		}
	}
	a.keys = kept
}

// HashKey returns the bcrypt hash to store as key_hash for key.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", ErrMissingKey
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing api key: %w", err)
	}
	return string(hash), nil
}

// Verify interface compliance.
var _ Authenticator = (*APIKeyAuthenticator)(nil)
