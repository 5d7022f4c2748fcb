package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/learnlink-client/auth"
	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/jrsteele09/learnlink-client/internal/validation"
	"github.com/jrsteele09/learnlink-client/token/tokenfake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const refreshCookie = "refreshToken"

type testFixture struct {
	server        *httptest.Server
	client        *auth.Client
	accessToken   string
	refreshCalls  atomic.Int32
	logoutCalls   atomic.Int32
	lastChildAuth atomic.Value
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		accessToken: tokenfake.Mint(tokenfake.Parent(), time.Now().Add(15*time.Minute)),
	}
	f.lastChildAuth.Store("")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Email != "parent@learnlink.test" || req.Password != "Secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid email or password"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "r-1", Path: "/", HttpOnly: true})
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": f.accessToken})
	})
	mux.HandleFunc("POST /auth/google", func(w http.ResponseWriter, r *http.Request) {
		var req auth.GoogleLoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "google-id-token", req.Credential)
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": f.accessToken})
	})
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": f.accessToken})
	})
	mux.HandleFunc("POST /auth/register-child", func(w http.ResponseWriter, r *http.Request) {
		f.lastChildAuth.Store(r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "child-9", "name": "Lan"})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		cookie, err := r.Cookie(refreshCookie)
		if err != nil || cookie.Value != "r-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": f.accessToken})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logoutCalls.Add(1)
		http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	httpClient := &http.Client{Jar: jar}
	authorized := &http.Client{Jar: jar, Transport: bearer{token: "parent-token"}}
	f.client = auth.NewClient(f.server.URL, httpClient, auth.WithAuthorizedClient(authorized))
	return f
}

type bearer struct {
	token string
}

func (b bearer) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(req)
}

func TestLogin_ThenRefreshUsesCookie(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.client.Refresh(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	resp, err := f.client.Login(ctx, auth.LoginRequest{Email: " Parent@LearnLink.test ", Password: "Secret123"})
	require.NoError(t, err)
	require.Equal(t, f.accessToken, resp.AccessToken)

	refreshed, err := f.client.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, f.accessToken, refreshed)
	require.Equal(t, int32(2), f.refreshCalls.Load())
}

func TestLogin_WrongPassword(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.Login(context.Background(), auth.LoginRequest{Email: "parent@learnlink.test", Password: "nope"})
	require.Error(t, err)

	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Invalid email or password", apiErr.Message)
}

func TestLogin_ValidationBlocksRequest(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.Login(context.Background(), auth.LoginRequest{Email: "not-an-email"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Contains(t, fe, "email")
	require.Contains(t, fe, "password")
}

func TestLoginWithGoogle(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.LoginWithGoogle(context.Background(), "")
	require.ErrorIs(t, err, auth.ErrMissingCredential)

	resp, err := f.client.LoginWithGoogle(context.Background(), "google-id-token")
	require.NoError(t, err)
	require.Equal(t, f.accessToken, resp.AccessToken)
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		name    string
		req     auth.RegisterRequest
		wantErr string
	}{
		{"weak password", auth.RegisterRequest{Name: "Mai", Email: "mai@learnlink.test", Password: "short", ConfirmPassword: "short"}, "password"},
		{"mismatch", auth.RegisterRequest{Name: "Mai", Email: "mai@learnlink.test", Password: "Secret123", ConfirmPassword: "Secret124"}, "confirmPassword"},
		{"missing name", auth.RegisterRequest{Email: "mai@learnlink.test", Password: "Secret123", ConfirmPassword: "Secret123"}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.client.Register(context.Background(), tt.req)
			var fe validation.FieldErrors
			require.ErrorAs(t, err, &fe)
			require.Contains(t, fe, tt.wantErr)
		})
	}

	resp, err := f.client.Register(context.Background(), auth.RegisterRequest{
		Name: "Mai", Email: "mai@learnlink.test", Password: "Secret123", ConfirmPassword: "Secret123",
	})
	require.NoError(t, err)
	require.Equal(t, f.accessToken, resp.AccessToken)
}

func TestRegisterChild_UsesAuthorizedClient(t *testing.T) {
	f := setupTestFixture(t)

	child, err := f.client.RegisterChild(context.Background(), auth.RegisterChildRequest{
		Name: "Lan", Email: "lan@learnlink.test", Password: "Secret123", ConfirmPassword: "Secret123", Age: 9,
	})
	require.NoError(t, err)
	require.Equal(t, "child-9", child.ID)
	require.Equal(t, "lan@learnlink.test", child.Email)
	require.Equal(t, "Bearer parent-token", f.lastChildAuth.Load())

	_, err = f.client.RegisterChild(context.Background(), auth.RegisterChildRequest{
		Name: "Lan", Email: "lan@learnlink.test", Password: "Secret123", ConfirmPassword: "Secret123", Age: 40,
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestNewClient_LoggerReachesAuthorizedClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Email already registered"}`))
	}))
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	c := auth.NewClient(server.URL, http.DefaultClient,
		auth.WithAuthorizedClient(&http.Client{Transport: bearer{token: "parent-token"}}),
		auth.WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)),
	)

	_, err := c.RegisterChild(context.Background(), auth.RegisterChildRequest{
		Name: "Lan", Email: "lan@learnlink.test", Password: "Secret123", ConfirmPassword: "Secret123", Age: 9,
	})
	require.Error(t, err)
	require.Contains(t, buf.String(), "request failed")
	require.Contains(t, buf.String(), auth.RouteRegisterChild)
}

func TestLogout_DropsRefreshCookie(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.client.Login(ctx, auth.LoginRequest{Email: "parent@learnlink.test", Password: "Secret123"})
	require.NoError(t, err)
	require.NoError(t, f.client.Logout(ctx))
	require.Equal(t, int32(1), f.logoutCalls.Load())

	_, err = f.client.Refresh(ctx)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestTokenResponse_Aliases(t *testing.T) {
	for _, body := range []string{
		`{"accessToken":"a"}`,
		`{"access_token":"a"}`,
		`{"token":"a"}`,
		`{"data":{"accessToken":"a"}}`,
	} {
		var resp auth.TokenResponse
		require.NoError(t, json.Unmarshal([]byte(body), &resp), body)
		require.Equal(t, "a", resp.AccessToken, body)
	}
}
