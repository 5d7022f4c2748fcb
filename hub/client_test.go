package hub_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/learnlink-client/hub"
	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/jrsteele09/learnlink-client/missions"
	"github.com/stretchr/testify/require"
)

const hubPath = "/hubs/notification"

type staticTokens struct {
	mu    sync.Mutex
	token string
}

func (s *staticTokens) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *staticTokens) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

type serverConn struct {
	ws        *websocket.Conn
	fromPeer  chan string
	closed    chan struct{}
	token     string
	connToken string
}

func (c *serverConn) send(t *testing.T, frames ...string) {
	t.Helper()
	var b strings.Builder
	for _, f := range frames {
		b.WriteString(f)
		b.WriteByte(0x1e)
	}
	require.NoError(t, c.ws.WriteMessage(websocket.TextMessage, []byte(b.String())))
}

// fakeHub implements just enough of the hub server side: negotiate,
// upgrade, handshake, then frames pushed by the test.
type fakeHub struct {
	*httptest.Server
	upgrader websocket.Upgrader
	conns    chan *serverConn

	mu              sync.Mutex
	negotiateStatus int
	negotiateAuth   []string
	negotiations    int
	handshakeExtra  string
}

func newFakeHub(t *testing.T) *fakeHub {
	h := &fakeHub{conns: make(chan *serverConn, 4)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+hubPath+"/negotiate", h.negotiate)
	mux.HandleFunc("GET "+hubPath, h.connect)
	h.Server = httptest.NewServer(mux)
	t.Cleanup(h.Close)
	return h
}

func (h *fakeHub) negotiate(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.negotiations++
	n := h.negotiations
	h.negotiateAuth = append(h.negotiateAuth, r.Header.Get("Authorization"))
	status := h.negotiateStatus
	h.mu.Unlock()

	if r.URL.Query().Get("negotiateVersion") != "1" {
		http.Error(w, "negotiateVersion required", http.StatusBadRequest)
		return
	}
	if status != 0 {
		http.Error(w, "unavailable", status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"connectionId":"conn-` + strconv.Itoa(n) + `","connectionToken":"ctok-` + strconv.Itoa(n) + `","negotiateVersion":1,` +
		`"availableTransports":[{"transport":"ServerSentEvents","transferFormats":["Text"]},{"transport":"WebSockets","transferFormats":["Text","Binary"]}]}`))
}

func (h *fakeHub) connect(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	_, data, err := ws.ReadMessage()
	if err != nil || string(data) != "{\"protocol\":\"json\",\"version\":1}\x1e" {
		ws.Close()
		return
	}

	h.mu.Lock()
	extra := h.handshakeExtra
	h.mu.Unlock()
	if err := ws.WriteMessage(websocket.TextMessage, []byte("{}\x1e"+extra)); err != nil {
		ws.Close()
		return
	}

	conn := &serverConn{
		ws:        ws,
		fromPeer:  make(chan string, 16),
		closed:    make(chan struct{}),
		token:     r.URL.Query().Get("access_token"),
		connToken: r.URL.Query().Get("id"),
	}
	h.conns <- conn
	go func() {
		defer close(conn.closed)
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			conn.fromPeer <- string(data)
		}
	}()
}

func (h *fakeHub) nextConn(t *testing.T) *serverConn {
	t.Helper()
	select {
	case c := <-h.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
		return nil
	}
}

func (h *fakeHub) Negotiations() (int, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.negotiations, append([]string(nil), h.negotiateAuth...)
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	done := r.limit > 0 && len(r.delays) >= r.limit
	r.mu.Unlock()
	if done {
		r.cancel()
		return context.Canceled
	}
	return ctx.Err()
}

func (r *recordedSleeps) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type fakeMetrics struct {
	mu         sync.Mutex
	reconnects int
	events     map[string]int
}

func (m *fakeMetrics) RecordReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

func (m *fakeMetrics) Reconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}

func (m *fakeMetrics) RecordEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events == nil {
		m.events = map[string]int{}
	}
	m.events[event]++
}

type testFixture struct {
	hub     *fakeHub
	tokens  *staticTokens
	sleeps  *recordedSleeps
	metrics *fakeMetrics
	client  *hub.Client
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan error
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f := &testFixture{
		hub:     newFakeHub(t),
		tokens:  &staticTokens{token: "token-a"},
		sleeps:  &recordedSleeps{cancel: cancel},
		metrics: &fakeMetrics{},
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	f.client = hub.NewClient(f.hub.URL+hubPath, f.tokens,
		hub.WithHTTPClient(f.hub.Client()),
		hub.WithSleepFunc(f.sleeps.sleep),
		hub.WithMetrics(f.metrics),
	)
	return f
}

func (f *testFixture) run() {
	go func() { f.done <- f.client.Run(f.ctx) }()
}

func (f *testFixture) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestClient_DispatchesInvocations(t *testing.T) {
	f := setupTestFixture(t)
	events := make(chan hub.Event, 4)
	missionEvents := make(chan hub.MissionEvent, 4)
	unsubscribe := f.client.On(hub.EventMissionCreated, func(ev hub.Event) { events <- ev })
	f.client.OnMission(func(name string, ev hub.MissionEvent) { missionEvents <- ev })
	f.run()

	conn := f.hub.nextConn(t)
	require.Equal(t, "token-a", conn.token)
	require.Equal(t, "ctok-1", conn.connToken)
	_, auth := f.hub.Negotiations()
	require.Equal(t, []string{"Bearer token-a"}, auth)

	conn.send(t,
		`{"type":1,"target":"MissionCreated","arguments":[{"missionId":"m1","title":"Tidy room","status":"Assigned"}]}`,
		`{"type":1,"target":"MissionStarted","arguments":[{"missionId":"m1","status":1}]}`,
	)

	ev := <-events
	require.Equal(t, hub.EventMissionCreated, ev.Name)
	var payload hub.MissionEvent
	require.NoError(t, ev.Decode(&payload))
	require.Equal(t, "Tidy room", payload.Title)

	require.Equal(t, missions.StatusAssigned, (<-missionEvents).Status)
	require.Equal(t, missions.StatusProcessing, (<-missionEvents).Status)
	require.Equal(t, hub.StateConnected, f.client.State())

	unsubscribe()
	conn.send(t, `{"type":1,"target":"MissionCreated","arguments":[{"missionId":"m2"}]}`)
	require.Equal(t, "m2", (<-missionEvents).MissionID)
	require.Empty(t, events)

	f.cancel()
	require.NoError(t, f.wait(t))
	f.metrics.mu.Lock()
	defer f.metrics.mu.Unlock()
	require.Equal(t, 2, f.metrics.events[hub.EventMissionCreated])
}

func TestClient_FramesSentWithHandshake(t *testing.T) {
	f := setupTestFixture(t)
	f.hub.handshakeExtra = "{\"type\":1,\"target\":\"MissionReviewed\",\"arguments\":[{\"missionId\":\"m9\",\"score\":8}]}\x1e"
	got := make(chan hub.MissionEvent, 1)
	f.client.OnMission(func(name string, ev hub.MissionEvent) { got <- ev })
	f.run()

	f.hub.nextConn(t)
	select {
	case ev := <-got:
		require.Equal(t, "m9", ev.MissionID)
		require.Equal(t, 8, *ev.Score)
	case <-time.After(time.Second):
		t.Fatal("event sent with the handshake was lost")
	}
}

func TestClient_AnswersPing(t *testing.T) {
	f := setupTestFixture(t)
	f.run()
	conn := f.hub.nextConn(t)

	conn.send(t, `{"type":6}`)
	select {
	case frame := <-conn.fromPeer:
		require.Equal(t, "{\"type\":6}\x1e", frame)
	case <-time.After(time.Second):
		t.Fatal("no ping reply")
	}
}

func TestClient_ReconnectsWithCurrentToken(t *testing.T) {
	f := setupTestFixture(t)
	states := make(chan hub.State, 16)
	f.client = hub.NewClient(f.hub.URL+hubPath, f.tokens,
		hub.WithHTTPClient(f.hub.Client()),
		hub.WithSleepFunc(f.sleeps.sleep),
		hub.WithMetrics(f.metrics),
		hub.WithStateHook(func(s hub.State) { states <- s }),
	)
	f.run()
	first := f.hub.nextConn(t)

	f.tokens.Set("token-b")
	first.send(t, `{"type":7,"error":"Server restarting","allowReconnect":true}`)

	second := f.hub.nextConn(t)
	require.Equal(t, "token-b", second.token)
	require.Equal(t, "ctok-2", second.connToken)

	// The server queues the connection before the client has read the
	// handshake reply, so wait for the client to report it.
	for _, want := range []hub.State{hub.StateConnecting, hub.StateConnected, hub.StateReconnecting, hub.StateConnected} {
		select {
		case got := <-states:
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("no %v state", want)
		}
	}
	require.Equal(t, "conn-2", f.client.ConnectionID())
	require.Equal(t, []time.Duration{0}, f.sleeps.Delays())
	require.Equal(t, 1, f.metrics.Reconnects())
}

func TestClient_CloseWithoutReconnectStops(t *testing.T) {
	f := setupTestFixture(t)
	f.run()
	conn := f.hub.nextConn(t)

	conn.send(t, `{"type":7,"error":"Connection closed with an error."}`)
	err := f.wait(t)
	require.ErrorIs(t, err, apperrors.ErrHubClosed)
	require.Empty(t, f.sleeps.Delays())
	require.Equal(t, hub.StateDisconnected, f.client.State())
}

func TestClient_ReconnectDelaysThenSteadyRetry(t *testing.T) {
	f := setupTestFixture(t)
	f.hub.negotiateStatus = http.StatusServiceUnavailable
	f.sleeps.limit = 7
	f.run()

	require.NoError(t, f.wait(t))
	require.Equal(t, []time.Duration{
		0, 2 * time.Second, 10 * time.Second, 30 * time.Second,
		30 * time.Second, 30 * time.Second, 30 * time.Second,
	}, f.sleeps.Delays())
	require.Equal(t, 7, f.metrics.Reconnects())
}

func TestClient_ReconnectResetsBackoffAfterConnecting(t *testing.T) {
	f := setupTestFixture(t)
	f.run()

	for i := 0; i < 3; i++ {
		conn := f.hub.nextConn(t)
		conn.send(t, `{"type":7,"allowReconnect":true}`)
	}
	f.hub.nextConn(t)
	require.Equal(t, []time.Duration{0, 0, 0}, f.sleeps.Delays())
}

func TestClient_WithoutTokenDoesNotConnect(t *testing.T) {
	f := setupTestFixture(t)
	f.tokens.Set("")
	f.run()

	err := f.wait(t)
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
	n, _ := f.hub.Negotiations()
	require.Zero(t, n)
}

func TestClient_CancelClosesConnection(t *testing.T) {
	f := setupTestFixture(t)
	f.run()
	conn := f.hub.nextConn(t)

	f.cancel()
	require.NoError(t, f.wait(t))
	select {
	case <-conn.closed:
	case <-time.After(time.Second):
		t.Fatal("server side still open")
	}
}

func TestClient_RunTwiceRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.run()
	f.hub.nextConn(t)

	err := f.client.Run(context.Background())
	require.ErrorIs(t, err, apperrors.ErrUnsupported)
}
