package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	headerAuthorization  = "Authorization"
	headerRequestID      = "X-Request-ID"
	headerAcceptLanguage = "Accept-Language"
)

// TokenSource is what the transport needs from the session: the token to
// attach and a way to obtain a fresh one after a 401.
type TokenSource interface {
	Current() string
	Refresh(ctx context.Context, stale string) (string, error)
}

// Metrics records one observation per round trip
type Metrics interface {
	RecordRequest(method string, statusCode int, duration time.Duration)
}

// Transport attaches the bearer token to every request and recovers from an
// expired token: a 401 triggers one refresh (shared with every other request
// failing at the same time) and a single retry with the new token.
type Transport struct {
	base    http.RoundTripper
	tokens  TokenSource
	locale  func() string
	limiter *rate.Limiter
	metrics Metrics
	log     zerolog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

type TransportOption func(*Transport)

func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.base = base
	}
}

// WithLocale sets a function returning the two-letter locale sent as Accept-Language
func WithLocale(locale func() string) TransportOption {
	return func(t *Transport) {
		t.locale = locale
	}
}

// WithRateLimit throttles outgoing requests; a limit of 0 disables it
func WithRateLimit(perSecond float64, burst int) TransportOption {
	return func(t *Transport) {
		if perSecond <= 0 {
			t.limiter = nil
			return
		}
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithMetrics(metrics Metrics) TransportOption {
	return func(t *Transport) {
		t.metrics = metrics
	}
}

func WithTransportLogger(log zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.log = log
	}
}

func NewTransport(tokens TokenSource, options ...TransportOption) *Transport {
	t := &Transport{
		base:   http.DefaultTransport,
		tokens: tokens,
		log:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := req.Header.Get(headerRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	sent := t.tokens.Current()
	resp, err := t.send(req, sent, requestID, req.Body)
	if err != nil {
		// No response means nothing to recover from.
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	body, ok := t.replayBody(req)
	if !ok {
		t.log.Debug().Str("path", req.URL.Path).Msg("401 on a request without a replayable body, not retrying")
		return resp, nil
	}

	fresh, err := t.tokens.Refresh(req.Context(), sent)
	if err != nil {
		drain(resp)
		if body != nil {
			body.Close()
		}
		return nil, fmt.Errorf("[Transport RoundTrip] %s %s: %w", req.Method, req.URL.Path, err)
	}
	drain(resp)

	t.log.Debug().Str("path", req.URL.Path).Str("request_id", requestID).Msg("retrying after token refresh")
	return t.send(req, fresh, requestID, body)
}

// send issues one attempt. The original request is never modified.
func (t *Transport) send(req *http.Request, bearer, requestID string, body io.ReadCloser) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			if body != nil {
				body.Close()
			}
			return nil, err
		}
	}

	// The base transport closes body, as the RoundTripper contract requires.
	out := req.Clone(req.Context())
	out.Body = body
	out.Header.Set(headerRequestID, requestID)
	if bearer != "" {
		out.Header.Set(headerAuthorization, "Bearer "+bearer)
	} else {
		out.Header.Del(headerAuthorization)
	}
	if t.locale != nil && out.Header.Get(headerAcceptLanguage) == "" {
		if l := t.locale(); l != "" {
			out.Header.Set(headerAcceptLanguage, l)
		}
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(out)
	if t.metrics != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.metrics.RecordRequest(req.Method, status, time.Since(start))
	}
	return resp, err
}

// replayBody returns a fresh copy of the request body for the retry. A
// request with a body but no GetBody cannot be retried.
func (t *Transport) replayBody(req *http.Request) (io.ReadCloser, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	return body, true
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
