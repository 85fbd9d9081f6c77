package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token validation errors.
var (
	// ErrAccessTokenMissing indicates a request without an access token.
	ErrAccessTokenMissing = errors.New("access token missing")
	// ErrAccessTokenInvalid indicates a malformed or tampered access token.
	ErrAccessTokenInvalid = errors.New("access token invalid")
	// ErrAccessTokenExpired indicates an expired access token.
	ErrAccessTokenExpired = errors.New("access token expired")
	// ErrRefreshTokenMissing indicates a request without a refresh token.
	ErrRefreshTokenMissing = errors.New("refresh token missing")
	// ErrRefreshTokenInvalid indicates a malformed or tampered refresh token.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	// ErrRefreshTokenExpired indicates an expired refresh token.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrRefreshTokenDenied indicates a valid token that is not on the
	// user's allow-list, e.g. after rotation or logout.
	ErrRefreshTokenDenied = errors.New("refresh token denied")
	// ErrUserNotFound indicates a token referencing a deleted account.
	ErrUserNotFound = errors.New("user not found")
)

// AccessClaims defines the JWT claims of a short-lived access token.
type AccessClaims struct {
	UserID       string `json:"id"`
	LnurlAuthKey string `json:"lnurlAuthKey"`
	jwt.RegisteredClaims
}

// RefreshClaims defines the JWT claims of a long-lived refresh token. The
// token string itself is what the allow-list stores; TokenID only aids
// debugging.
type RefreshClaims struct {
	UserID  string `json:"id"`
	TokenID string `json:"tokenId"`
	jwt.RegisteredClaims
}

// generateAccessToken signs an access token for the user.
func generateAccessToken(secret string, userID, lnurlAuthKey string, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		UserID:       userID,
		LnurlAuthKey: lnurlAuthKey,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAccessToken validates an access token and returns its claims.
func ParseAccessToken(secret string, tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAccessTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, ErrAccessTokenInvalid
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrAccessTokenInvalid
	}
	return claims, nil
}

// generateRefreshToken signs a refresh token for the user.
func generateRefreshToken(secret string, userID string, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := RefreshClaims{
		UserID:  userID,
		TokenID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseRefreshToken validates a refresh token and returns its claims. The
// allow-list check happens separately in the Manager.
func ParseRefreshToken(secret string, tokenString string) (*RefreshClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrRefreshTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrRefreshTokenExpired
		}
		return nil, ErrRefreshTokenInvalid
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return nil, ErrRefreshTokenInvalid
	}
	return claims, nil
}
