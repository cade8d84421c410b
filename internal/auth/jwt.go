// Package auth issues and verifies the bearer tokens minted at wallet login.
// The login proof itself (a wallet signature over a timestamped challenge)
// happens client-side; this package checks challenge freshness and binds the
// wallet address into a signed token.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// loginWindow bounds how stale a signed login challenge may be.
const loginWindow = 5 * time.Minute

// ChallengeMessage reconstructs the exact string the wallet signed. Both
// sides must agree on it byte for byte.
func ChallengeMessage(walletAddress string, timestampMillis int64) string {
	return fmt.Sprintf("Login to Secret Trading App\nTimestamp: %d\nWallet: %s", timestampMillis, walletAddress)
}

// CheckChallengeFresh rejects login challenges outside the freshness window.
func CheckChallengeFresh(timestampMillis int64, now time.Time) error {
	age := now.UnixMilli() - timestampMillis
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Millisecond > loginWindow {
		return fmt.Errorf("login challenge timestamp is out of date")
	}
	return nil
}

// TokenIssuer mints and verifies HS256 tokens with the wallet address as
// subject.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret must be set")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// IssueToken mints a token for the wallet address.
func (t *TokenIssuer) IssueToken(walletAddress string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   walletAddress,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// VerifyToken validates signature and expiry and returns the wallet address.
func (t *TokenIssuer) VerifyToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}
