package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyToken(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := issuer.IssueToken("secret1alice")
	require.NoError(t, err)

	wallet, err := issuer.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "secret1alice", wallet)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	issuer, err := NewTokenIssuer("secret-a", time.Hour)
	require.NoError(t, err)
	other, err := NewTokenIssuer("secret-b", time.Hour)
	require.NoError(t, err)

	token, err := issuer.IssueToken("secret1alice")
	require.NoError(t, err)

	_, err = other.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyTokenExpired(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Nanosecond)
	require.NoError(t, err)

	token, err := issuer.IssueToken("secret1alice")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = issuer.VerifyToken(token)
	assert.Error(t, err)
}

func TestChallengeFreshness(t *testing.T) {
	now := time.Now()

	assert.NoError(t, CheckChallengeFresh(now.UnixMilli(), now))
	assert.NoError(t, CheckChallengeFresh(now.Add(-4*time.Minute).UnixMilli(), now))
	assert.Error(t, CheckChallengeFresh(now.Add(-6*time.Minute).UnixMilli(), now))
	// Clock skew into the future is bounded too.
	assert.Error(t, CheckChallengeFresh(now.Add(6*time.Minute).UnixMilli(), now))
}

func TestChallengeMessageShape(t *testing.T) {
	msg := ChallengeMessage("secret1alice", 1700000000000)
	assert.Equal(t, "Login to Secret Trading App\nTimestamp: 1700000000000\nWallet: secret1alice", msg)
}
