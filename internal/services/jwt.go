package services

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Nika0000/publisher-cli/internal/config"
)

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateAdminToken mints a bearer token for the serve-mode admin
// endpoints (publish, regenerate).
func GenerateAdminToken(role string, ttl time.Duration) (string, error) {
	claims := AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.Current.JWTSecret))
}

func ParseToken(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(config.Current.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AdminClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
