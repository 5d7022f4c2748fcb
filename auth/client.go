package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/learnlink-client/client"
	"github.com/rs/zerolog"
)

const (
	RouteLogin         = "/auth/login"
	RouteGoogle        = "/auth/google"
	RouteRegister      = "/auth/register"
	RouteRegisterChild = "/auth/register-child"
	RouteRefresh       = "/auth/refresh"
	RouteLogout        = "/auth/logout"
)

// Client talks to the /auth endpoints. Its plain http.Client must share the
// cookie jar with the resource client so the HttpOnly refresh cookie set by
// login is sent on refresh, but it must not use the refreshing transport:
// a 401 from /auth/refresh is a failed refresh, not a reason to refresh.
type Client struct {
	plain      *client.Client
	authorized *client.Client
	authedHTTP *http.Client
	log        zerolog.Logger
}

type ClientOption func(*Client)

// WithAuthorizedClient sets the bearer-carrying client used by RegisterChild
func WithAuthorizedClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.authedHTTP = httpClient
	}
}

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

func NewClient(baseURL string, httpClient *http.Client, options ...ClientOption) *Client {
	c := &Client{log: zerolog.Nop()}
	for _, opt := range options {
		opt(c)
	}
	c.plain = client.New(baseURL, httpClient, client.WithLogger(c.log))
	c.authorized = c.plain
	if c.authedHTTP != nil {
		c.authorized = client.New(baseURL, c.authedHTTP, client.WithLogger(c.log))
	}
	return c
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	req.Email = normaliseEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.tokenCall(ctx, RouteLogin, req)
}

// LoginWithGoogle exchanges a Google ID token for a Learn Link session
func (c *Client) LoginWithGoogle(ctx context.Context, credential string) (*TokenResponse, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}
	return c.tokenCall(ctx, RouteGoogle, GoogleLoginRequest{Credential: credential})
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	req.Email = normaliseEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp TokenResponse
	if err := c.plain.Post(ctx, RouteRegister, req, &resp); err != nil {
		return nil, fmt.Errorf("[auth Register] %w", err)
	}
	// Some deployments require email confirmation and return no token.
	return &resp, nil
}

// RegisterChild creates a child account. The parent's session is unchanged.
func (c *Client) RegisterChild(ctx context.Context, req RegisterChildRequest) (*ChildAccount, error) {
	req.Email = normaliseEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var child ChildAccount
	if err := c.authorized.Post(ctx, RouteRegisterChild, req, &child); err != nil {
		return nil, fmt.Errorf("[auth RegisterChild] %w", err)
	}
	if child.Email == "" {
		child.Email = req.Email
	}
	if child.Name == "" {
		child.Name = req.Name
	}
	return &child, nil
}

// Refresh exchanges the refresh cookie for a new access token
func (c *Client) Refresh(ctx context.Context) (string, error) {
	resp, err := c.tokenCall(ctx, RouteRefresh, nil)
	if err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Logout revokes the refresh cookie server side
func (c *Client) Logout(ctx context.Context) error {
	if err := c.plain.Post(ctx, RouteLogout, nil, nil); err != nil {
		return fmt.Errorf("[auth Logout] %w", err)
	}
	return nil
}

func (c *Client) tokenCall(ctx context.Context, route string, body any) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.plain.Post(ctx, route, body, &resp); err != nil {
		return nil, fmt.Errorf("[auth %s] %w", route, err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("[auth %s] %w", route, ErrMissingAccessToken)
	}
	c.log.Debug().Str("route", route).Msg("access token issued")
	return &resp, nil
}
