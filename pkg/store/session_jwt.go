package store

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"giftai/internal/util"
)

const (
	jwtIssuer   = "giftai"
	jwtAudience = "giftai-api"
	jwtLeeway   = 30 * time.Second
)

// JWTSessionStore issues and validates HS256 session tokens. Stateless;
// DeleteSession is a no-op and tokens simply expire.
type JWTSessionStore struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTSessionStore builds an HS256 session store.
func NewJWTSessionStore(secret string, ttl time.Duration) *JWTSessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTSessionStore{secret: []byte(secret), ttl: ttl}
}

// NewSession creates a signed JWT for the user ID.
func (s *JWTSessionStore) NewSession(userID string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("jwt store not configured")
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    jwtIssuer,
		Audience:  jwt.ClaimStrings{jwtAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        util.NewID(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// GetUserIDByToken validates a JWT and returns the subject.
func (s *JWTSessionStore) GetUserIDByToken(token string) (string, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false, errors.New("invalid token format")
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithAudience(jwtAudience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(jwtLeeway),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return "", false, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", false, errors.New("token subject missing")
	}
	return claims.Subject, true, nil
}

// DeleteSession is a no-op for stateless JWTs.
func (s *JWTSessionStore) DeleteSession(string) error {
	return nil
}
