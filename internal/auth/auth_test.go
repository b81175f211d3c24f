package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	a := New("secret", time.Hour)

	for _, who := range []actor.Actor{actor.User(uuid.New()), actor.Admin(uuid.New())} {
		token, err := a.Issue(who)
		require.NoError(t, err)

		got, err := a.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, who, got)
	}
}

func TestAuthenticator_Rejects(t *testing.T) {
	a := New("secret", time.Hour)
	token, err := a.Issue(actor.User(uuid.New()))
	require.NoError(t, err)

	expired := New("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(actor.User(uuid.New()))
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, claims{Role: actor.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		auth  *Authenticator
		token string
	}{
		{name: "Wrong secret", auth: New("other", time.Hour), token: token},
		{name: "Expired", auth: a, token: old},
		{name: "Unsigned", auth: a, token: unsigned},
		{name: "Garbage", auth: a, token: "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.auth.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = a.Issue(actor.System)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	a := New("secret", time.Hour)
	user := actor.User(uuid.New())
	admin := actor.Admin(uuid.New())

	var seen actor.Actor

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = actor.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	bearer := func(who actor.Actor) string {
		token, err := a.Issue(who)
		require.NoError(t, err)

		return "Bearer " + token
	}

	tests := []struct {
		name     string
		handler  http.Handler
		header   string
		wantCode int
	}{
		{name: "No header", handler: a.Middleware(ok), wantCode: http.StatusUnauthorized},
		{name: "User passes", handler: a.Middleware(ok), header: bearer(user), wantCode: http.StatusNoContent},
		{name: "User blocked from admin", handler: a.Middleware(RequireAdmin(ok)), header: bearer(user), wantCode: http.StatusForbidden},
		{name: "Admin passes", handler: a.Middleware(RequireAdmin(ok)), header: bearer(admin), wantCode: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}

	assert.Equal(t, admin, seen)
}
