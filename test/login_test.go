package test

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/2beens/fitcoach/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	user, _ := s.registerClient(ctx, t)

	t.Run("admin seeded on startup", func(t *testing.T) {
		loginResp := s.login(ctx, t, testAdminEmail, testAdminPassword)
		assert.Equal(t, "admin", loginResp.User.Role)
	})

	t.Run("registered client", func(t *testing.T) {
		assert.Equal(t, "client", user.Role)
		assert.NotEmpty(t, user.Email)
	})

	t.Run("duplicate register", func(t *testing.T) {
		req := s.newRequest(ctx, t, http.MethodPost, "/api/register", "", users.RegisterRequest{
			Email:    user.Email,
			Name:     "again",
			Password: "password-again",
		})
		s.do(t, req, http.StatusConflict, nil)
	})

	t.Run("bad password", func(t *testing.T) {
		req := s.newRequest(ctx, t, http.MethodPost, "/api/login", "", users.LoginRequest{
			Email:    user.Email,
			Password: "bad-password",
		})
		resp, err := s.httpClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "error, wrong credentials", strings.TrimSpace(string(respBytes)))
	})

	t.Run("unknown email", func(t *testing.T) {
		req := s.newRequest(ctx, t, http.MethodPost, "/api/login", "", users.LoginRequest{
			Email:    "nobody@fitcoach.test",
			Password: testAdminPassword,
		})
		s.do(t, req, http.StatusUnauthorized, nil)
	})

	t.Run("login, then logout", func(t *testing.T) {
		token := s.loginAdmin(ctx, t)
		s.do(t, s.newRequest(ctx, t, http.MethodGet, "/api/measurements", token, nil), http.StatusOK, nil)

		s.do(t, s.newRequest(ctx, t, http.MethodPost, "/api/logout", token, nil), http.StatusOK, nil)
		s.do(t, s.newRequest(ctx, t, http.MethodGet, "/api/measurements", token, nil), http.StatusUnauthorized, nil)
	})

	t.Run("client cannot reach admin routes", func(t *testing.T) {
		_, token := s.registerClient(ctx, t)
		path := "/api/admin/users/" + strconv.FormatInt(user.ID, 10) + "/measurements"
		s.do(t, s.newRequest(ctx, t, http.MethodGet, path, token, nil), http.StatusForbidden, nil)
	})

	t.Run("rate limiting", func(t *testing.T) {
		// config allows 10 login attempts per minute from one address, then 429
		loginRequest := users.LoginRequest{
			Email:    "brute@fitcoach.test",
			Password: "test-pass",
		}
		for i := 1; i <= 15; i++ {
			req := s.newRequest(ctx, t, http.MethodPost, "/api/login", "", loginRequest)
			req.Header.Set("X-Real-Ip", "10.10.10.10")

			resp, err := s.httpClient.Do(req)
			require.NoError(t, err)

			if i <= 10 {
				require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "iteration: %d", i)
				assert.Empty(t, resp.Header.Get("Retry-After"), "iteration: %d", i)
			} else {
				require.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "iteration: %d", i)
				retryAfter, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64)
				require.NoError(t, err, "iteration: %d", i)
				assert.True(t, retryAfter > 0, "iteration: %d", i)
			}

			assert.NoError(t, resp.Body.Close())
		}

		require.NoError(t, s.redisDataCleanup(ctx))
	})
}
