package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	handler := Auth(testJWT, nil)(okHandler())
	for _, header := range []string{"", "Bearer ", "Bearer invalid"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, http.StatusUnauthorized, serve(handler, req).Code, "%q", header)
	}
}

func TestAuthSeedsActor(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, userID, enums.ActorRoleSupplier)

	var captured auth.Actor
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		captured = actor
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, serve(handler, req).Code)
	assert.Equal(t, userID, captured.UserID)
	assert.True(t, captured.IsSupplier())
}

func TestRequireRole(t *testing.T) {
	guard := RequireRole(nil, enums.ActorRoleAdmin)(okHandler())

	cases := []struct {
		name  string
		actor *auth.Actor
		want  int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"client", &auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleClient}, http.StatusForbidden},
		{"admin", &auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.actor != nil {
			req = req.WithContext(WithActor(req.Context(), *tc.actor))
		}
		assert.Equal(t, tc.want, serve(guard, req).Code, tc.name)
	}
}

func TestRequestIDPropagatesOrMints(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(responses.RequestIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(responses.RequestIDHeader, "abc-123")
	rec := serve(handler, req)
	assert.Equal(t, "abc-123", rec.Header().Get(responses.RequestIDHeader))
	assert.Equal(t, "abc-123", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(responses.RequestIDHeader, "forged\tline")
	minted := serve(handler, req).Header().Get(responses.RequestIDHeader)
	_, err := uuid.Parse(minted)
	assert.NoError(t, err)
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := RequestID(nil)(Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map write")
	})))
	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "nil map")
	assert.Contains(t, rec.Body.String(), rec.Header().Get(responses.RequestIDHeader))
}

func TestRecovererReraisesAbort(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		rec := recover()
		err, ok := rec.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, http.ErrAbortHandler))
	}()
	serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	t.Fatal("expected abort panic to propagate")
}

func mintTestToken(t *testing.T, userID uuid.UUID, role enums.ActorRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}
