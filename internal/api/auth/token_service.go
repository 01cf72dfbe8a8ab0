package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken means the request carried no credential at all
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken covers bad signatures, expiry and claims without an id
	ErrInvalidToken = errors.New("invalid token")
)

// JWTClaims represents the claims in our JWT tokens. The account service
// signs {"id": "<user id>"} with an HMAC secret.
type JWTClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenService verifies identity tokens and, for development, mints them
type TokenService struct {
	secretKey []byte

	// TokenDuration is the lifetime of minted tokens. Default: 7 days
	TokenDuration time.Duration
}

// NewTokenService creates a new token service
func NewTokenService(secretKey string) *TokenService {
	return &TokenService{
		secretKey:     []byte(secretKey),
		TokenDuration: 7 * 24 * time.Hour,
	}
}

// SignToken creates an HS256 token whose id claim is userID
func (ts *TokenService) SignToken(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id is required")
	}

	now := time.Now()
	claims := &JWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies tokenString and returns the principal id it carries
func (ts *TokenService) ValidateToken(tokenString string) (string, error) {
	if strings.TrimSpace(tokenString) == "" {
		return "", ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return "", fmt.Errorf("%w: no id claim", ErrInvalidToken)
	}
	return claims.UserID, nil
}
