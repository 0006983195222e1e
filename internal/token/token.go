package token

import (
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"time"
)

var (
	ErrRefreshToken = errors.New("refresh token error")
	ErrAccessToken  = errors.New("access token not valid")
)

type Generate interface {
	GenerateAccessToken(userID, role string) (string, error)
	GenerateRefreshToken(userID string) (string, error)
	VerifyRefreshToken(tokenString string) (jwt.MapClaims, error)
	VerifyAccessToken(tokenString string) (jwt.MapClaims, error)
}

type JWTManager struct {
	accessSecret    string
	refreshSecret   string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewJWTManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		accessSecret:    accessSecret,
		refreshSecret:   refreshSecret,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
	}
}

func (m *JWTManager) AccessTTL() time.Duration {
	return m.accessTokenTTL
}

func (m *JWTManager) GenerateAccessToken(userID, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"jti":  uuid.NewString(),
		"exp":  now.Add(m.accessTokenTTL).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.accessSecret))
}

// GenerateRefreshToken issues a fresh token id on every call so rotated
// refresh tokens never collide.
func (m *JWTManager) GenerateRefreshToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"jti": uuid.NewString(),
		"exp": now.Add(m.refreshTokenTTL).Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.refreshSecret))
}

func (m *JWTManager) VerifyRefreshToken(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, ErrRefreshToken
	}

	claims, err := verify(tokenString, m.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshToken, err)
	}
	return claims, nil
}

func (m *JWTManager) VerifyAccessToken(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, ErrAccessToken
	}

	claims, err := verify(tokenString, m.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAccessToken, err)
	}
	return claims, nil
}

func verify(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// ExpiresAt reads the exp claim without checking the signature. The client
// only uses it for display; the server stays the judge of validity.
func ExpiresAt(tokenString string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
