package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"estately/internal/platform/config"
)

const (
	RoleAdmin = "admin"
	RoleOwner = "owner"
	RoleAgent = "agent"
	RoleBuyer = "buyer"
)

var ErrNotConfigured = errors.New("jwt secret is not configured")

type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type TokenService struct {
	config config.JWTConfig
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{config: cfg}
}

// GenerateAccessToken issues a token for the marketplace's session layer.
// Login itself happens elsewhere.
func (s *TokenService) GenerateAccessToken(userID, role, email string) (string, error) {
	if s.config.Secret == "" {
		return "", ErrNotConfigured
	}

	ttl := s.config.AccessTokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	claims := Claims{
		UserID: userID,
		Role:   role,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	if s.config.Secret == "" {
		return nil, ErrNotConfigured
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
