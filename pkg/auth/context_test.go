package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetToken(ctx))
	assert.Equal(t, "abc", GetToken(WithToken(ctx, "abc")))
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetUser(ctx))
	assert.Empty(t, UserID(ctx))

	ctx = WithUser(ctx, &UserInfo{UserID: "apikey:ops", AuthType: "apikey"})
	assert.Equal(t, "apikey:ops", GetUser(ctx).UserID)
	assert.Equal(t, "apikey:ops", UserID(ctx))
}
