package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-32bytes-padded!!"

func TestGenerateToken_Valid(t *testing.T) {
	tok, claims, err := GenerateToken("alice", testSecret, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, "alice", claims.PlayerID)
	assert.NotEmpty(t, claims.ID)
}

func TestGenerateToken_EmptyPlayer(t *testing.T) {
	_, _, err := GenerateToken("", testSecret, time.Hour)
	assert.Error(t, err)
}

func TestParseToken_Valid(t *testing.T) {
	tok, issued, err := GenerateToken("bob", testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.PlayerID)
	assert.Equal(t, "bob", claims.Subject)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestParseToken_WrongSecret(t *testing.T) {
	tok, _, err := GenerateToken("alice", testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(tok, "wrong-secret")
	assert.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	tok, _, err := GenerateToken("alice", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(tok, testSecret)
	assert.Error(t, err)
}

func TestParseToken_Malformed(t *testing.T) {
	_, err := ParseToken("not.a.jwt", testSecret)
	assert.Error(t, err)
}

func TestParseToken_Empty(t *testing.T) {
	_, err := ParseToken("", testSecret)
	assert.Error(t, err)
}

func TestGenerateToken_DistinctSessions(t *testing.T) {
	t1, c1, _ := GenerateToken("alice", testSecret, time.Hour)
	t2, c2, _ := GenerateToken("alice", testSecret, time.Hour)
	assert.NotEqual(t, t1, t2)
	assert.NotEqual(t, c1.ID, c2.ID)
}
