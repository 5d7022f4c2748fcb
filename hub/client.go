// Package hub is a client for the backend's real-time notification hub. It
// speaks the JSON hub protocol over a WebSocket and reconnects on its own
// until its context is cancelled.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultKeepAlive     = 15 * time.Second
	DefaultServerTimeout = 30 * time.Second
	handshakeTimeout     = 15 * time.Second
	writeTimeout         = 10 * time.Second
)

// DefaultReconnectDelays is the backoff between reconnect attempts. Once
// exhausted the last delay repeats.
var DefaultReconnectDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}

// TokenSource supplies the bearer for each connection attempt
type TokenSource interface {
	AccessToken() string
}

type Metrics interface {
	RecordReconnect()
	RecordEvent(event string)
}

type Handler func(Event)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "disconnected"
}

type subscription struct {
	id      int
	event   string
	handler Handler
}

// Client is a hub connection. Register handlers with On before or while
// Run is active.
type Client struct {
	url        string
	httpClient *http.Client
	tokens     TokenSource
	dialer     *websocket.Dialer
	delays     []time.Duration
	keepAlive  time.Duration
	timeout    time.Duration
	sleep      func(context.Context, time.Duration) error
	nowFunc    func() time.Time
	onState    func(State)
	metrics    Metrics
	log        zerolog.Logger

	mu       sync.RWMutex
	subs     []subscription
	nextID   int
	state    State
	running  bool
	lastConn string
}

type ClientOption func(*Client)

// WithHTTPClient sets the client used for negotiate. Pass the authorized
// client so negotiate shares the refresh-on-401 transport.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *Client) {
		c.dialer = dialer
	}
}

func WithReconnectDelays(delays []time.Duration) ClientOption {
	return func(c *Client) {
		if len(delays) > 0 {
			c.delays = delays
		}
	}
}

// WithKeepAlive sets how often the client pings and how long it waits for
// any frame from the server before treating the connection as dead.
func WithKeepAlive(keepAlive, serverTimeout time.Duration) ClientOption {
	return func(c *Client) {
		if keepAlive > 0 {
			c.keepAlive = keepAlive
		}
		if serverTimeout > 0 {
			c.timeout = serverTimeout
		}
	}
}

// WithSleepFunc replaces the wait between reconnect attempts
func WithSleepFunc(fn func(context.Context, time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = fn
	}
}

func WithNowFunc(fn func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowFunc = fn
	}
}

func WithStateHook(fn func(State)) ClientOption {
	return func(c *Client) {
		c.onState = fn
	}
}

func WithMetrics(metrics Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = metrics
	}
}

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient returns a client for the hub at hubURL (http or https)
func NewClient(hubURL string, tokens TokenSource, options ...ClientOption) *Client {
	c := &Client{
		url:        strings.TrimRight(hubURL, "/"),
		httpClient: http.DefaultClient,
		tokens:     tokens,
		dialer:     websocket.DefaultDialer,
		delays:     DefaultReconnectDelays,
		keepAlive:  DefaultKeepAlive,
		timeout:    DefaultServerTimeout,
		sleep:      sleepContext,
		nowFunc:    time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// On registers handler for event and returns a function that removes it
func (c *Client) On(event string, handler Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs = append(c.subs, subscription{id: id, event: event, handler: handler})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// OnAny registers handler for every event
func (c *Client) OnAny(handler Handler) func() {
	return c.On("", handler)
}

// OnMission registers fn for the four mission lifecycle events, decoding
// the payload. Undecodable payloads are logged and dropped.
func (c *Client) OnMission(fn func(event string, payload MissionEvent)) func() {
	unsubs := make([]func(), 0, len(MissionEvents))
	for _, name := range MissionEvents {
		unsubs = append(unsubs, c.On(name, func(ev Event) {
			var payload MissionEvent
			if err := ev.Decode(&payload); err != nil {
				c.log.Warn().Err(err).Str("event", ev.Name).Msg("dropping hub event")
				return
			}
			fn(ev.Name, payload)
		}))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ConnectionID is the id of the current or most recent connection
func (c *Client) ConnectionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastConn
}

// Run connects and serves until ctx is cancelled, reconnecting after every
// failure. It returns nil on cancellation, or an error when reconnecting is
// pointless: the session has ended, or the server closed the connection
// without allowing a reconnect.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("[hub Client] %w: already running", apperrors.ErrUnsupported)
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		c.setState(StateDisconnected)
	}()

	attempt := 0
	c.setState(StateConnecting)
	for {
		err := c.connectAndServe(ctx, func() { attempt = 0 })
		if ctx.Err() != nil {
			return nil
		}
		if isFatal(err) {
			c.log.Warn().Err(err).Msg("hub stopped")
			return err
		}

		delay := c.delay(attempt)
		attempt++
		c.setState(StateReconnecting)
		c.log.Info().Err(err).Dur("in", delay).Int("attempt", attempt).Msg("hub reconnecting")
		if c.metrics != nil {
			c.metrics.RecordReconnect()
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

func (c *Client) delay(attempt int) time.Duration {
	if attempt < len(c.delays) {
		return c.delays[attempt]
	}
	return c.delays[len(c.delays)-1]
}

func isFatal(err error) bool {
	return errors.Is(err, apperrors.ErrHubClosed) ||
		errors.Is(err, apperrors.ErrNotAuthenticated) ||
		errors.Is(err, apperrors.ErrSessionExpired) ||
		errors.Is(err, apperrors.ErrRefreshFailed)
}

func (c *Client) connectAndServe(ctx context.Context, connected func()) error {
	conn, pending, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	connected()
	c.setState(StateConnected)
	c.log.Info().Str("connection_id", c.ConnectionID()).Msg("hub connected")
	return c.serve(ctx, conn, pending)
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, []byte, error) {
	if c.tokens.AccessToken() == "" {
		return nil, nil, fmt.Errorf("[hub Client] %w", apperrors.ErrNotAuthenticated)
	}

	neg, err := c.negotiate(ctx)
	if err != nil {
		return nil, nil, err
	}

	// Read the token after negotiate: a 401 there may have refreshed it.
	accessToken := c.tokens.AccessToken()
	base := c.url
	if neg.URL != "" {
		base = strings.TrimRight(neg.URL, "/")
		if neg.AccessToken != "" {
			accessToken = neg.AccessToken
		}
	}
	connToken := neg.ConnectionToken
	if connToken == "" {
		connToken = neg.ConnectionID
	}
	wsURL, err := websocketURL(base, connToken, accessToken)
	if err != nil {
		return nil, nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)
	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, nil, fmt.Errorf("[hub Client] dial: %w", apperrors.ErrUnauthorized)
		}
		return nil, nil, fmt.Errorf("[hub Client] dial: %w", err)
	}

	rest, err := c.handshake(conn)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	c.mu.Lock()
	c.lastConn = neg.ConnectionID
	c.mu.Unlock()
	return conn, rest, nil
}

func (c *Client) negotiate(ctx context.Context) (*negotiateResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/negotiate?negotiateVersion=1", nil)
	if err != nil {
		return nil, fmt.Errorf("[hub Client] negotiate: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[hub Client] negotiate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("[hub Client] negotiate: %w", &apperrors.APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Path:       req.URL.Path,
		})
	}

	var neg negotiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&neg); err != nil {
		return nil, fmt.Errorf("[hub Client] negotiate: decode: %w", err)
	}
	if neg.Error != "" {
		return nil, fmt.Errorf("[hub Client] negotiate: %s", neg.Error)
	}
	if neg.URL == "" && !neg.supportsWebSockets() {
		return nil, fmt.Errorf("[hub Client] %w: server does not offer WebSockets", apperrors.ErrUnsupported)
	}
	return &neg, nil
}

func websocketURL(base, connToken, accessToken string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("[hub Client] bad hub url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	if connToken != "" {
		q.Set("id", connToken)
	}
	q.Set("access_token", accessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// handshake negotiates the JSON protocol. Any bytes the server sent after
// the handshake response in the same message are returned for serve.
func (c *Client) handshake(conn *websocket.Conn) ([]byte, error) {
	frame, err := encodeFrame(handshakeRequest{Protocol: "json", Version: 1})
	if err != nil {
		return nil, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return nil, fmt.Errorf("[hub Client] %w: %w", apperrors.ErrHubHandshake, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("[hub Client] %w: %w", apperrors.ErrHubHandshake, err)
	}
	i := bytes.IndexByte(data, recordSeparator)
	if i < 0 {
		return nil, fmt.Errorf("[hub Client] %w: unterminated response", apperrors.ErrHubHandshake)
	}
	var resp handshakeResponse
	if err := json.Unmarshal(data[:i], &resp); err != nil {
		return nil, fmt.Errorf("[hub Client] %w: %w", apperrors.ErrHubHandshake, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("[hub Client] %w: %s", apperrors.ErrHubHandshake, resp.Error)
	}
	return data[i+1:], nil
}

// serve reads frames until the connection fails, the server closes it, or
// ctx is cancelled.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, pending []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeMu sync.Mutex
	write := func(frame []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteMessage(websocket.TextMessage, frame)
	}

	go func() {
		ticker := time.NewTicker(c.keepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				conn.Close()
				return
			case <-ticker.C:
				if err := write(pingFrame); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		frames, rest := splitFrames(pending)
		pending = append([]byte(nil), rest...)
		for _, frame := range frames {
			msg, err := decodeMessage(frame)
			if err != nil {
				c.log.Warn().Err(err).Msg("skipping malformed hub frame")
				continue
			}
			switch msg.Type {
			case typeInvocation:
				c.dispatch(Event{Name: msg.Target, Arguments: msg.Arguments, ReceivedAt: c.nowFunc()})
			case typePing:
				if err := write(pingFrame); err != nil {
					return fmt.Errorf("[hub Client] pong: %w", err)
				}
			case typeClose:
				return closeError(msg)
			default:
				c.log.Debug().Int("type", int(msg.Type)).Msg("ignoring hub frame")
			}
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.timeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("[hub Client] read: %w", err)
		}
		pending = append(pending, data...)
	}
}

func closeError(msg message) error {
	reason := msg.Error
	if reason == "" {
		reason = "server closed the connection"
	}
	if msg.AllowReconnect {
		return fmt.Errorf("[hub Client] %s", reason)
	}
	return fmt.Errorf("[hub Client] %w: %s", apperrors.ErrHubClosed, reason)
}

func (c *Client) dispatch(ev Event) {
	c.mu.RLock()
	var handlers []Handler
	for _, s := range c.subs {
		if s.event == "" || strings.EqualFold(s.event, ev.Name) {
			handlers = append(handlers, s.handler)
		}
	}
	c.mu.RUnlock()

	if c.metrics != nil {
		c.metrics.RecordEvent(ev.Name)
	}
	if len(handlers) == 0 {
		c.log.Debug().Str("event", ev.Name).Msg("no handler for hub event")
		return
	}
	for _, h := range handlers {
		h(ev)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.onState != nil {
		c.onState(s)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
