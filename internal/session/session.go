// Package session resolves the acting user from a request token into an
// explicit value threaded through every engine call. Nothing in the engine
// reads ambient auth state.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dentix/clinic-scheduling/internal/schedule"
)

var (
	ErrNoSession    = errors.New("no session in context")
	ErrInvalidToken = errors.New("invalid session token")
)

type contextKey struct{}

// FromContext returns the session stored by the auth middleware.
func FromContext(ctx context.Context) (schedule.Session, error) {
	sess, ok := ctx.Value(contextKey{}).(schedule.Session)
	if !ok {
		return schedule.Session{}, ErrNoSession
	}
	return sess, nil
}

// WithSession attaches a session to ctx.
func WithSession(ctx context.Context, sess schedule.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken validates an HMAC-signed bearer token and extracts the session.
// The subject claim carries the user id, the role claim the actor role.
func ParseToken(tokenString, secret string) (schedule.Session, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return schedule.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return schedule.Session{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	role := schedule.Role(c.Role)
	if !schedule.ValidRole(role) {
		return schedule.Session{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}

	return schedule.Session{UserID: userID, Role: role}, nil
}

// MintToken issues a signed session token. Used by the seed and simulate
// tools and by tests; production tokens come from the auth service.
func MintToken(userID uuid.UUID, role schedule.Role, secret string, ttl time.Duration) (string, error) {
	c := claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString([]byte(secret))
}
