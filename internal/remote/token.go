package remote

import (
	"context"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const tokenTTL = time.Hour

// SignToken mints an HS256 bearer token for the given user.
func SignToken(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// TokenSource returns a token callback for Client that mints and caches a
// token, re-minting shortly before expiry.
func TokenSource(secret []byte, userID string) func(context.Context) (string, error) {
	var mu sync.Mutex
	var token string
	var expiresAt time.Time

	return func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if token != "" && time.Until(expiresAt) > time.Minute {
			return token, nil
		}
		signed, err := SignToken(secret, userID, tokenTTL)
		if err != nil {
			return "", err
		}
		token = signed
		expiresAt = time.Now().Add(tokenTTL)
		return token, nil
	}
}
