package auth

import (
	"time"

	"chatline/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims defines the data stored inside a session JWT.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Gate validates inbound tokens for both HTTP requests and push-channel
// upgrades. A validated identity is never cached beyond the lifetime of
// one request or one connection.
type Gate struct {
	secret        []byte
	tokenDuration time.Duration
}

func NewGate(secret string, tokenDuration time.Duration) *Gate {
	return &Gate{secret: []byte(secret), tokenDuration: tokenDuration}
}

// GenerateToken creates a signed JWT for a specific user using HS256.
func (g *Gate) GenerateToken(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(g.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "chatline",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return signed, nil
}

// Authenticate parses and validates the signature and expiration of a
// token string and returns the embedded user ID. Every failure collapses
// to ErrUnauthenticated; callers never learn why a token was rejected.
func (g *Gate) Authenticate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	})
	if err != nil {
		return "", errors.ErrUnauthenticated
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", errors.ErrUnauthenticated
	}
	return claims.UserID, nil
}
