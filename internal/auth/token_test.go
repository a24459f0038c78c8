package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_IssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("secret", "envsync", FixedTTL(time.Hour))
	id := uuid.New()

	tok, err := issuer.Issue(context.Background(), id, true)
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := issuer.Parse(tok.AccessToken)
	require.NoError(t, err)
	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.True(t, claims.Superuser)
	assert.Equal(t, "envsync", claims.Issuer)
}

func TestTokenIssuer_TTLIsEvaluatedPerIssue(t *testing.T) {
	ttl := time.Minute
	issuer := NewTokenIssuer("secret", "", func(context.Context) time.Duration { return ttl })

	first, err := issuer.Issue(context.Background(), uuid.New(), false)
	require.NoError(t, err)

	ttl = 2 * time.Hour
	second, err := issuer.Issue(context.Background(), uuid.New(), false)
	require.NoError(t, err)

	assert.Greater(t, second.ExpiresAt.Sub(first.ExpiresAt), time.Hour)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer("secret", "envsync", FixedTTL(time.Minute))
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	tok, err := issuer.Issue(context.Background(), uuid.New(), false)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsForeignTokens(t *testing.T) {
	issuer := NewTokenIssuer("secret", "envsync", FixedTTL(time.Hour))
	ctx := context.Background()

	other := NewTokenIssuer("other-secret", "envsync", FixedTTL(time.Hour))
	tok, err := other.Issue(ctx, uuid.New(), false)
	require.NoError(t, err)
	_, err = issuer.Parse(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong signature")

	wrongIssuer := NewTokenIssuer("secret", "someone-else", FixedTTL(time.Hour))
	tok, err = wrongIssuer.Issue(ctx, uuid.New(), false)
	require.NoError(t, err)
	_, err = issuer.Parse(tok.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg none")

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(),
		"iss": "envsync",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = issuer.Parse(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken, "missing exp")

	badSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "not-a-uuid",
		"iss": "envsync",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = issuer.Parse(badSub)
	assert.ErrorIs(t, err, ErrInvalidToken, "bad subject")
}
