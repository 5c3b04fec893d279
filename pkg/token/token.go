package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims structure for custom claims in the access token
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// ErrInvalidToken invalid or expired token
var ErrInvalidToken = errors.New("invalid token")

// JWTSecret key for token validation
var JWTSecret = []byte("secure_secret_key")

// ParseJWT parse and validate an access token.
// 客戶端用它從 token 取出自己的 session identity
func ParseJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return JWTSecret, nil
	})
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserIDFromToken shortcut returning only the session identity
func UserIDFromToken(tokenString string) (string, error) {
	claims, err := ParseJWT(tokenString)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
