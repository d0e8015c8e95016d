// Package auth guards the cron endpoints. Schedulers authenticate with
// either the shared cron secret or a short-lived JWT minted from it.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

const cronSubject = "cron"

// TokenManager issues and validates cron access tokens.
type TokenManager struct {
	secret   []byte
	duration time.Duration
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	if duration <= 0 {
		duration = time.Hour
	}
	return &TokenManager{secret: []byte(secret), duration: duration}
}

// GenerateToken mints a signed token for external schedulers.
func (m *TokenManager) GenerateToken() (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   cronSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    "crypto-ai-trader",
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken accepts the raw cron secret or a JWT minted by
// GenerateToken. The raw-secret comparison is constant time.
func (m *TokenManager) ValidateToken(tokenString string) error {
	if tokenString == "" {
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(tokenString), m.secret) == 1 {
		return nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject != cronSubject {
		return ErrInvalidToken
	}
	return nil
}
