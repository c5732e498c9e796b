package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenRevoked is returned for tokens minted before the configured cutoff.
var ErrTokenRevoked = errors.New("token issued before revocation cutoff")

type jwtCustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenClaims is what a verified token asserts.
type TokenClaims struct {
	UserID   uuid.UUID
	IssuedAt time.Time
}

// GenerateToken creates a signed JWT for the provided user ID.
func GenerateToken(secret string, userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &jwtCustomClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates signature, expiry and issue time and returns the claims.
// A zero issuedBefore disables the cutoff check.
func ParseToken(secret, tokenString string, issuedBefore time.Time) (TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return TokenClaims{}, err
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid {
		return TokenClaims{}, jwt.ErrTokenInvalidClaims
	}

	if claims.IssuedAt == nil {
		return TokenClaims{}, jwt.ErrTokenRequiredClaimMissing
	}
	issuedAt := claims.IssuedAt.Time
	if !issuedBefore.IsZero() && issuedAt.Before(issuedBefore) {
		return TokenClaims{}, ErrTokenRevoked
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return TokenClaims{}, jwt.ErrTokenInvalidClaims
	}

	return TokenClaims{UserID: userID, IssuedAt: issuedAt}, nil
}
