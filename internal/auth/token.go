package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	UserID   int64  `json:"uid"`
	jwt.RegisteredClaims
}

// TokenMaker issues and verifies HS256 session tokens.
type TokenMaker struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenMaker(secret string, ttl time.Duration) *TokenMaker {
	return &TokenMaker{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenMaker) Generate(a Actor) (string, error) {
	now := m.now()
	claims := Claims{
		Username: a.Username,
		Role:     a.Role,
		UserID:   a.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(a.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenMaker) Parse(tokenStr string) (Actor, error) {
	const op = "auth.TokenMaker.Parse"

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return Actor{}, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Actor{}, fmt.Errorf("%s: invalid token", op)
	}
	if claims.Role != RoleUser && claims.Role != RoleAdmin {
		return Actor{}, fmt.Errorf("%s: unexpected role %q", op, claims.Role)
	}
	return Actor{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}

func (m *TokenMaker) TTL() time.Duration { return m.ttl }
