package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskforge/taskforge-api/internal/config"
	"github.com/taskforge/taskforge-api/internal/service/auth"
)

func newAuthFixture(t *testing.T) (*AuthHandler, auth.JWTService) {
	t.Helper()

	hash, err := auth.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	cfg := config.AuthConfig{
		JWTSecret:            "test-secret-key-thats-at-least-32-chars!",
		TokenLifetimeMinutes: 60,
		AdminUsername:        "admin",
		AdminPasswordHash:    hash,
	}
	jwtService, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	return NewAuthHandler(cfg, jwtService, auth.NewBcryptVerifier()), jwtService
}

func doLogin(t *testing.T, handler *AuthHandler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.Login(w, req)
	return w
}

func TestAuthHandler_LoginSuccess(t *testing.T) {
	handler, jwtService := newAuthFixture(t)

	w := doLogin(t, handler, LoginRequest{
		Username: "admin",
		Password: "correct horse battery staple",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp AuthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.ExpiresAt)

	claims, err := jwtService.ValidateToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestAuthHandler_LoginRejectsBadCredentials(t *testing.T) {
	handler, _ := newAuthFixture(t)

	tests := []struct {
		name string
		body LoginRequest
	}{
		{"wrong_password", LoginRequest{Username: "admin", Password: "nope"}},
		{"unknown_username", LoginRequest{Username: "intruder", Password: "correct horse battery staple"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doLogin(t, handler, tc.body)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var resp map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, "Invalid credentials", resp["error"])
		})
	}
}

func TestAuthHandler_LoginValidation(t *testing.T) {
	handler, _ := newAuthFixture(t)

	w := doLogin(t, handler, LoginRequest{Username: "", Password: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
