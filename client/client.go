package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/rs/zerolog"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	maxErrorBody    = 64 << 10
)

// Client issues JSON requests against the Learn Link API. Authentication
// and token recovery are the job of the http.Client's transport; see
// Transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

type ClientOption func(*Client)

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a client for baseURL (e.g. "https://learnlink.example.com/api")
func New(baseURL string, httpClient *http.Client, options ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient exposes the underlying client, e.g. for the hub's negotiate call
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, withQuery(path, query), nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPut, path, in, out)
}

func (c *Client) Patch(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPatch, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do sends in as JSON (when non-nil) and decodes the response into out
// (when non-nil). Non-2xx responses are returned as *errors.APIError.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("[Client Do] marshal %s %s: %w", method, path, err)
		}
		// bytes.Reader gives the request a GetBody, so the transport can replay it.
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return fmt.Errorf("[Client Do] new request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	return c.send(req, out)
}

// Upload sends a multipart form
func (c *Client) Upload(ctx context.Context, method, path string, form *Form, out any) error {
	body, contentType, err := form.Encode()
	if err != nil {
		return fmt.Errorf("[Client Upload] encode form %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("[Client Upload] new request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		if apperrors.Is(err, apperrors.ErrRefreshFailed) || apperrors.Is(err, apperrors.ErrSessionExpired) {
			return err
		}
		return fmt.Errorf("%w: %w", apperrors.ErrNoResponse, err)
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		c.log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Int("status", resp.StatusCode).Msg("request failed")
		return err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("[Client send] decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// CheckResponse turns a non-2xx response into an *errors.APIError, reading
// the backend's {"message": "..."} body when present.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &apperrors.APIError{StatusCode: resp.StatusCode}
	if resp.Request != nil && resp.Request.URL != nil {
		apiErr.Path = resp.Request.URL.Path
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(data) > 0 {
		var msg struct {
			Message string `json:"message"`
			Title   string `json:"title"`
		}
		if json.Unmarshal(data, &msg) == nil {
			apiErr.Message = msg.Message
			if apiErr.Message == "" {
				apiErr.Message = msg.Title
			}
		} else if len(data) < 512 {
			apiErr.Message = strings.TrimSpace(string(data))
		}
	}
	return apiErr
}

func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
