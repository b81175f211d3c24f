// Package auth issues and verifies HS256 bearer tokens carrying the caller's
// id and role.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
)

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Role actor.Role `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for a user or admin.
func (a *Authenticator) Issue(who actor.Actor) (string, error) {
	if who.Role != actor.RoleUser && who.Role != actor.RoleAdmin {
		return "", fmt.Errorf("cannot issue a token for role %q", who.Role)
	}

	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: who.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

func (a *Authenticator) Verify(raw string) (actor.Actor, error) {
	var c claims

	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return actor.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return actor.Actor{}, fmt.Errorf("%w: subject: %w", ErrInvalidToken, err)
	}

	switch c.Role {
	case actor.RoleUser:
		return actor.User(id), nil
	case actor.RoleAdmin:
		return actor.Admin(id), nil
	default:
		return actor.Actor{}, fmt.Errorf("%w: role %q", ErrInvalidToken, c.Role)
	}
}

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		who, err := a.Verify(strings.TrimSpace(raw))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(actor.WithContext(r.Context(), who)))
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		who, ok := actor.FromContext(r.Context())
		if !ok || !who.IsAdmin() {
			http.Error(w, "admin role required", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
