package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/2beens/fitcoach/internal/auth"
	"github.com/2beens/fitcoach/internal/middleware"
	"github.com/2beens/fitcoach/internal/users"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) newRequest(
	ctx context.Context,
	t *testing.T,
	method, path, token string,
	body any,
) *http.Request {
	var reqBody io.Reader
	if body != nil {
		bodyJson, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(bodyJson)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	// every request looks like a different client, so per-IP login limits do not interfere
	req.Header.Set("X-Real-Ip", gofakeit.IPv4Address())
	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}
	return req
}

// do sends the request, asserts the status code and decodes the response body into out, if given.
func (s *IntegrationTestSuite) do(t *testing.T, req *http.Request, expectedStatus int, out any) {
	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, resp.StatusCode, "%s %s: %s", req.Method, req.URL.Path, respBytes)

	if out != nil {
		require.NoError(t, json.Unmarshal(respBytes, out))
	}
}

func (s *IntegrationTestSuite) gatewayCallback(ctx context.Context, t *testing.T, path string, body any, expectedStatus int, out any) {
	req := s.newRequest(ctx, t, http.MethodPost, path, "", body)
	req.Header.Set(middleware.GatewaySecretHeader, testGatewaySecret)
	s.do(t, req, expectedStatus, out)
}

func (s *IntegrationTestSuite) login(ctx context.Context, t *testing.T, email, password string) users.LoginResponse {
	var loginResp users.LoginResponse
	req := s.newRequest(ctx, t, http.MethodPost, "/api/login", "", users.LoginRequest{
		Email:    email,
		Password: password,
	})
	s.do(t, req, http.StatusOK, &loginResp)
	require.NotEmpty(t, loginResp.Token)
	return loginResp
}

func (s *IntegrationTestSuite) loginAdmin(ctx context.Context, t *testing.T) string {
	return s.login(ctx, t, testAdminEmail, testAdminPassword).Token
}

// registerClient creates a new client user and returns it with a fresh session token.
func (s *IntegrationTestSuite) registerClient(ctx context.Context, t *testing.T) (users.User, string) {
	password := gofakeit.Password(true, true, true, false, false, 12)
	registerReq := users.RegisterRequest{
		Email:    gofakeit.Email(),
		Name:     gofakeit.Name(),
		Password: password,
	}

	var user users.User
	s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/register", "", registerReq), http.StatusCreated, &user)
	require.NotZero(t, user.ID)

	loginResp := s.login(ctx, t, registerReq.Email, password)
	return user, loginResp.Token
}
