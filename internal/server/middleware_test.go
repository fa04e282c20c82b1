package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
)

// echoUser writes the resolved user id and request id.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"user":      common.ResolveUserID(r.Context()),
		"requestId": common.ResolveRequestID(r.Context()),
	})
})

func authStack(cfg common.AuthConfig) http.Handler {
	return requestIDMiddleware(bearerTokenMiddleware(cfg)(echoUser))
}

func TestRequestIDMiddleware(t *testing.T) {
	h := requestIDMiddleware(echoUser)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolios", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-123", decode[map[string]string](t, rec)["requestId"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolios", nil))
	generated := rec.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, decode[map[string]string](t, rec)["requestId"])
}

func TestBearerTokenMiddleware(t *testing.T) {
	enabled := common.AuthConfig{Enabled: true, JWTSecret: testSecret, Issuer: "idp"}
	disabled := common.AuthConfig{JWTSecret: testSecret}
	future := time.Now().Add(time.Hour).Unix()
	past := time.Now().Add(-time.Hour).Unix()

	tests := []struct {
		name     string
		cfg      common.AuthConfig
		path     string
		token    func(t *testing.T) string
		wantCode int
		wantUser string
	}{
		{
			name:     "disabled without token runs as default user",
			cfg:      disabled,
			path:     "/api/portfolios",
			wantCode: http.StatusOK,
			wantUser: common.DefaultUserID,
		},
		{
			name: "disabled with valid token uses subject",
			cfg:  disabled,
			path: "/api/portfolios",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"sub": "alice", "exp": future})
			},
			wantCode: http.StatusOK,
			wantUser: "alice",
		},
		{
			name:     "enabled without token",
			cfg:      enabled,
			path:     "/api/portfolios",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "public path skips auth",
			cfg:      enabled,
			path:     "/api/health",
			wantCode: http.StatusOK,
			wantUser: common.DefaultUserID,
		},
		{
			name: "enabled with valid token",
			cfg:  enabled,
			path: "/api/portfolios",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"sub": "bob", "iss": "idp", "exp": future})
			},
			wantCode: http.StatusOK,
			wantUser: "bob",
		},
		{
			name: "wrong issuer",
			cfg:  enabled,
			path: "/api/portfolios",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"sub": "bob", "iss": "other", "exp": future})
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "expired",
			cfg:  enabled,
			path: "/api/portfolios",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"sub": "bob", "iss": "idp", "exp": past})
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "missing expiry",
			cfg:  enabled,
			path: "/api/portfolios",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"sub": "bob", "iss": "idp"})
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "wrong secret",
			cfg:  enabled,
			path: "/api/portfolios",
			token: func(t *testing.T) string {
				return signToken(t, "not-the-secret", jwt.MapClaims{"sub": "bob", "iss": "idp", "exp": future})
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "missing subject",
			cfg:  enabled,
			path: "/api/portfolios",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"iss": "idp", "exp": future})
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "no secret configured",
			cfg:  common.AuthConfig{},
			path: "/api/portfolios",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"sub": "bob", "exp": future})
			},
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != nil {
				req.Header.Set("Authorization", "Bearer "+tt.token(t))
			}
			rec := httptest.NewRecorder()
			authStack(tt.cfg).ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
				assert.Equal(t, codeUnauthorized, decode[ErrorResponse](t, rec).Code)
				return
			}
			body := decode[map[string]string](t, rec)
			assert.Equal(t, tt.wantUser, body["user"])
			assert.NotEmpty(t, body["requestId"])
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolios", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, codeInternal, decode[ErrorResponse](t, rec).Code)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	h := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/portfolios", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusTeapot)
	n, err := rw.Write([]byte("short"))

	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusTeapot, rw.statusCode)
	assert.Equal(t, 5, rw.bytesWritten)
}
