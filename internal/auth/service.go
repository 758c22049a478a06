package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"topgun/internal/shared/config"
)

var ErrUnauthenticated = errors.New("unauthenticated")

const bearerPrefix = "Bearer "

// Verifier turns a raw bearer credential into a caller identity
type Verifier interface {
	Verify(rawCredential string) (*Identity, error)
}

type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{
		secret: []byte(cfg.JWT.Secret),
		issuer: cfg.JWT.Issuer,
		ttl:    cfg.JWT.JWTExpiresIn,
	}
}

// RemoveBearer strips the "Bearer " scheme when present
func RemoveBearer(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= len(bearerPrefix) && strings.EqualFold(raw[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(raw[len(bearerPrefix):])
	}
	return raw
}

// Verify checks signature, expiry and token type. Every failure is reported as
// ErrUnauthenticated so callers cannot tell a forged token from an expired one.
func (s *TokenService) Verify(rawCredential string) (*Identity, error) {
	tokenString := RemoveBearer(rawCredential)
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrUnauthenticated
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrUnauthenticated
	}
	if claims.Type != tokenTypeAccess || claims.UserID == "" {
		return nil, ErrUnauthenticated
	}

	return &Identity{
		UserID:   claims.UserID,
		UserType: Role(claims.UserType),
	}, nil
}

// Issue signs an access token. Login lives in another service; this is used by
// the seeder and by tests.
func (s *TokenService) Issue(userID string, userType Role) (string, error) {
	return s.issueWithTTL(userID, userType, s.ttl)
}

func (s *TokenService) issueWithTTL(userID string, userType Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:   userID,
		UserType: string(userType),
		Type:     tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    s.issuer,
			Subject:   userID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
