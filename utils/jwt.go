package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"taskhub/apperr"
	"taskhub/config"
	"taskhub/models"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

type Claims struct {
	UserID       uint      `json:"user_id"`
	TokenVersion int       `json:"token_version"`
	Type         TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func GenerateJWTToken(user *models.User) (*TokenPair, error) {
	now := time.Now()
	accessExpiry := now.Add(config.AppConfig.AccessTokenTTL)

	access, err := signToken(user, AccessToken, now, accessExpiry)
	if err != nil {
		return nil, err
	}
	refresh, err := signToken(user, RefreshToken, now, now.Add(config.AppConfig.RefreshTokenTTL))
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: accessExpiry}, nil
}

func signToken(user *models.User, typ TokenType, issuedAt, expiresAt time.Time) (string, error) {
	claims := &Claims{
		UserID:       user.ID,
		TokenVersion: user.TokenVersion,
		Type:         typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.AppConfig.JWTSecret))
	if err != nil {
		return "", apperr.New(apperr.Internal, "could not sign token", apperr.WithCause(err))
	}
	return signed, nil
}

// ParseJWTToken validates tokenString and checks it is of the expected type.
// Every failure is Unauthenticated.
func ParseJWTToken(tokenString string, expected TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, apperr.New(apperr.Unauthenticated, "invalid or expired token", apperr.WithCause(err))
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperr.New(apperr.Unauthenticated, "invalid token")
	}
	if claims.Type != expected {
		return nil, apperr.New(apperr.Unauthenticated, "wrong token type")
	}
	return claims, nil
}
