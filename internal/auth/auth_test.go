package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	i := NewIssuer("secret", time.Hour)

	token, err := i.Issue("ops")
	require.NoError(t, err)

	claims, err := i.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Name)
	assert.Equal(t, "ops", claims.Subject)
}

func TestParse_RejectsWrongSecret(t *testing.T) {
	token, err := NewIssuer("secret", time.Hour).Issue("ops")
	require.NoError(t, err)

	_, err = NewIssuer("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestParse_RejectsExpired(t *testing.T) {
	i := NewIssuer("secret", time.Minute)
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	i.now = func() time.Time { return issued }
	token, err := i.Issue("ops")
	require.NoError(t, err)

	i.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = i.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestIssue_EmptySecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour).Issue("ops")
	assert.Error(t, err)
}
