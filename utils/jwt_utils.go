package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"novytek/api/models"
)

const (
	TokenCookie = "jwt_token"
	TokenTTL    = 24 * time.Hour
	tokenIssuer = "novytek-api"
)

// Claims identify a signed-in administrator.
type Claims struct {
	UserID string           `json:"user_id"`
	Email  string           `json:"email"`
	Role   models.AdminRole `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies admin session tokens with an HMAC secret.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

// GenerateJWT issues a token for an active administrator.
func (t *TokenIssuer) GenerateJWT(admin *models.AdminUser) (string, error) {
	now := t.now()
	claims := &Claims{
		UserID: admin.UserID,
		Email:  admin.Email,
		Role:   admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   admin.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateJWT parses and validates a token string.
func (t *TokenIssuer) ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}
