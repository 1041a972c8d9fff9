// Package auth issues and validates the bearer tokens that scope a client
// to one user's notes.
package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rohanthewiz/serr"
)

const (
	// DefaultTokenTTL is how long an issued token stays valid (90 days)
	DefaultTokenTTL = 90 * 24 * time.Hour

	// TokenIssuer identifies the server that issued the token
	TokenIssuer = "notesync"

	// MinSecretLength is the minimum acceptable length for the signing key
	MinSecretLength = 32
)

var (
	secretMu  sync.RWMutex
	jwtSecret []byte
)

// TokenClaims carries the user id as the JWT subject.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// Init sets the signing key. Must be called before any token operation.
func Init(secret string) error {
	if len(secret) < MinSecretLength {
		return serr.New("JWT secret must be at least 32 characters")
	}
	secretMu.Lock()
	jwtSecret = []byte(secret)
	secretMu.Unlock()
	return nil
}

func secret() []byte {
	secretMu.RLock()
	defer secretMu.RUnlock()
	return jwtSecret
}

// GenerateToken signs a token for userID valid for ttl.
func GenerateToken(userID string, ttl time.Duration) (string, error) {
	key := secret()
	if len(key) == 0 {
		return "", serr.New("JWT not initialized - call auth.Init first")
	}
	if userID == "" {
		return "", serr.New("user id is required")
	}

	now := time.Now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", serr.Wrap(err, "failed to sign token")
	}
	return tokenString, nil
}

// ValidateToken parses a token and returns its claims if the signature,
// issuer and validity window check out.
func ValidateToken(tokenString string) (*TokenClaims, error) {
	key := secret()
	if len(key) == 0 {
		return nil, serr.New("JWT not initialized - call auth.Init first")
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, serr.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithIssuer(TokenIssuer))
	if err != nil {
		return nil, serr.Wrap(err, "failed to parse token")
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, serr.New("invalid token claims")
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
