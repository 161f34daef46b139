package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "helden"
)

func whoAmI(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(userIDFromContext(r.Context())))
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := IssueToken(testSecret, testIssuer, userID, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthenticator(t *testing.T) {
	handler := Authenticator(testSecret, testIssuer)(http.HandlerFunc(whoAmI))

	otherIssuer, err := IssueToken(testSecret, "someone-else", "user-1", "", time.Hour)
	require.NoError(t, err)
	otherSecret, err := IssueToken("wrong", testIssuer, "user-1", "", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, testIssuer, "user-1", "", -time.Hour)
	require.NoError(t, err)
	noSubject, err := IssueToken(testSecret, testIssuer, "", "", time.Hour)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: testIssuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", bearer(t, "user-1", ""), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + otherIssuer, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + otherSecret, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"no subject", "Bearer " + noSubject, http.StatusUnauthorized},
		{"alg none", "Bearer " + unsigned, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "user-1", rec.Body.String())
			} else {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	handler := Authenticator(testSecret, testIssuer)(AdminOnly(http.HandlerFunc(whoAmI)))

	for _, tc := range []struct {
		role   string
		status int
	}{
		{RoleAdmin, http.StatusOK},
		{"", http.StatusForbidden},
		{"customer", http.StatusForbidden},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", bearer(t, "admin-1", tc.role))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, tc.status, rec.Code, "role %q", tc.role)
	}
}

func TestMaxBody(t *testing.T) {
	handler := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := decodeJSON(r, &body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"far too long for the limit"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
