package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NewClientID mints a fresh client identifier.
func NewClientID() string {
	return uuid.NewString()
}

// SessionToken signs and verifies session scoped JWT tokens.
type SessionToken struct {
	secretKey []byte
	ttl       time.Duration
}

// NewSessionToken builds a token helper using the provided secret.
func NewSessionToken(secretKey string) *SessionToken {
	return &SessionToken{
		secretKey: []byte(secretKey),
		ttl:       time.Hour,
	}
}

// WithTTL allows customising the expiration duration.
func (st *SessionToken) WithTTL(ttl time.Duration) *SessionToken {
	if ttl > 0 {
		st.ttl = ttl
	}
	return st
}

// Generate issues a JWT bound to the provided session identifier.
func (st *SessionToken) Generate(sessionID string) (string, error) {
	if st == nil {
		return "", errors.New("session token is nil")
	}
	if len(st.secretKey) == 0 {
		return "", errors.New("session token secret is empty")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        now.Add(st.ttl).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(st.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify validates the JWT and extracts the session identifier.
func (st *SessionToken) Verify(tokenString string) (bool, string, error) {
	if st == nil {
		return false, "", errors.New("session token is nil")
	}
	if len(st.secretKey) == 0 {
		return false, "", errors.New("session token secret is empty")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return st.secretKey, nil
	})
	if err != nil {
		return false, "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return false, "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false, "", errors.New("invalid claims")
	}
	sessionID, ok := claims["session_id"].(string)
	if !ok {
		return false, "", errors.New("invalid session_id claim")
	}
	return true, sessionID, nil
}
