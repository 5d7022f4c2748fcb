// Package app wires the Learn Link client together: configuration, cookie
// persistence, the refreshing transport, the session, and every service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/learnlink-client/alerts"
	"github.com/jrsteele09/learnlink-client/auth"
	"github.com/jrsteele09/learnlink-client/auth/google"
	"github.com/jrsteele09/learnlink-client/client"
	"github.com/jrsteele09/learnlink-client/family"
	"github.com/jrsteele09/learnlink-client/hub"
	"github.com/jrsteele09/learnlink-client/internal/config"
	"github.com/jrsteele09/learnlink-client/internal/cookies"
	"github.com/jrsteele09/learnlink-client/locale"
	"github.com/jrsteele09/learnlink-client/manager"
	"github.com/jrsteele09/learnlink-client/metrics"
	"github.com/jrsteele09/learnlink-client/missions"
	"github.com/jrsteele09/learnlink-client/notifications"
	"github.com/jrsteele09/learnlink-client/password"
	"github.com/jrsteele09/learnlink-client/payment"
	"github.com/jrsteele09/learnlink-client/points"
	"github.com/jrsteele09/learnlink-client/reports"
	"github.com/jrsteele09/learnlink-client/sessions"
	"github.com/jrsteele09/learnlink-client/shop"
	"github.com/jrsteele09/learnlink-client/submissions"
	"github.com/jrsteele09/learnlink-client/token"
	"github.com/jrsteele09/learnlink-client/token/refresh"
	"github.com/jrsteele09/learnlink-client/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type App struct {
	config   config.Config
	log      zerolog.Logger
	baseURL  *url.URL
	jar      *cookies.Jar
	registry *prometheus.Registry

	Locale    *locale.Setting
	Metrics   *metrics.Collector
	Tokens    *token.Store
	Refresher *refresh.Manager
	API       *client.Client
	Auth      *auth.Client
	Sessions  *sessions.Manager
	Alerts    *alerts.Center
	Hub       *hub.Client
	Google    *google.Flow

	Missions      *missions.Service
	Submissions   *submissions.Service
	Shop          *shop.Service
	Points        *points.Service
	Family        *family.Service
	Reports       *reports.Service
	Notifications *notifications.Service
	Password      *password.Service
	Payment       *payment.Service
	Manager       *manager.Service
}

type Option func(*options)

type options struct {
	log         zerolog.Logger
	base        http.RoundTripper
	registry    *prometheus.Registry
	openBrowser func(string) error
	onAlerts    func([]alerts.Alert)
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithRoundTripper replaces the network transport under every client
func WithRoundTripper(base http.RoundTripper) Option {
	return func(o *options) {
		o.base = base
	}
}

func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithOpenBrowser is handed the Google authorization URL
func WithOpenBrowser(fn func(string) error) Option {
	return func(o *options) {
		o.openBrowser = fn
	}
}

func WithAlertHandler(fn func([]alerts.Alert)) Option {
	return func(o *options) {
		o.onAlerts = fn
	}
}

// New builds the client graph and loads persisted cookies. Nothing touches
// the network until Restore or a service call.
func New(cfg config.Config, opts ...Option) (*App, error) {
	o := options{log: zerolog.Nop(), base: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	baseURL, err := url.Parse(cfg.GetBaseURL())
	if err != nil || baseURL.Host == "" {
		return nil, fmt.Errorf("[app New] invalid API base url %q", cfg.GetBaseURL())
	}

	jar, err := cookies.New()
	if err != nil {
		return nil, fmt.Errorf("[app New] %w", err)
	}
	if err := jar.Load(cfg.GetCookieFile()); err != nil {
		o.log.Warn().Err(err).Str("file", cfg.GetCookieFile()).Msg("ignoring unreadable cookie file")
	}

	a := &App{
		config:   cfg,
		log:      o.log,
		baseURL:  baseURL,
		jar:      jar,
		registry: o.registry,
		Tokens:   token.NewStore(),
		Metrics:  metrics.NewCollector(o.registry),
	}

	// A locale cookie from an earlier run wins over the configured default.
	code, ok := locale.FromJar(jar, baseURL)
	if !ok {
		code = locale.Parse(cfg.GetLocale())
	}
	a.Locale = locale.NewSetting(code)

	plainHTTP := &http.Client{
		Transport: o.base,
		Jar:       jar,
		Timeout:   cfg.GetRequestTimeout(),
	}

	// The refresh func closes over Auth, which needs the authorized client,
	// which needs the refresher: so Auth is assigned after both exist.
	refreshFunc := func(ctx context.Context) (string, error) {
		return a.Auth.Refresh(ctx)
	}
	a.Refresher = refresh.NewManager(a.Tokens, refreshFunc,
		refresh.WithMetrics(a.Metrics),
		refresh.WithLogger(o.log),
	)

	transportOpts := []client.TransportOption{
		client.WithBase(o.base),
		client.WithLocale(a.Locale.Get),
		client.WithMetrics(a.Metrics),
		client.WithTransportLogger(o.log),
	}
	if rate := cfg.GetRateLimit(); rate > 0 {
		transportOpts = append(transportOpts, client.WithRateLimit(rate, cfg.GetRateBurst()))
	}
	authedHTTP := &http.Client{
		Transport: client.NewTransport(a.Refresher, transportOpts...),
		Jar:       jar,
		Timeout:   cfg.GetRequestTimeout(),
	}

	a.Auth = auth.NewClient(cfg.GetBaseURL(), plainHTTP, auth.WithLogger(o.log), auth.WithAuthorizedClient(authedHTTP))
	a.API = client.New(cfg.GetBaseURL(), authedHTTP, client.WithLogger(o.log))

	a.Sessions = sessions.NewManager(a.Auth, a.Tokens, a.Refresher,
		sessions.WithRefreshLead(cfg.GetRefreshLead()),
		sessions.WithLogger(o.log),
	)

	alertOpts := []alerts.CenterOption{alerts.WithDuration(cfg.GetAlertDuration())}
	if o.onAlerts != nil {
		alertOpts = append(alertOpts, alerts.WithOnChange(o.onAlerts))
	}
	a.Alerts = alerts.NewCenter(alertOpts...)

	a.Hub = hub.NewClient(cfg.GetHubURL(), a.Tokens,
		hub.WithHTTPClient(authedHTTP),
		hub.WithReconnectDelays(cfg.GetReconnectDelays()),
		hub.WithMetrics(a.Metrics),
		hub.WithLogger(o.log),
	)

	googleOpts := []google.FlowOption{google.WithLogger(o.log)}
	if o.openBrowser != nil {
		googleOpts = append(googleOpts, google.WithOpenBrowser(o.openBrowser))
	}
	a.Google = google.NewFlow(google.Config{
		Issuer:       cfg.GetGoogleIssuer(),
		ClientID:     cfg.GetGoogleClientID(),
		ClientSecret: cfg.GetGoogleClientSecret(),
		RedirectPort: cfg.GetGoogleRedirectPort(),
	}, googleOpts...)

	a.Missions = missions.NewService(a.API)
	a.Submissions = submissions.NewService(a.API)
	a.Shop = shop.NewService(a.API)
	a.Points = points.NewService(a.API)
	a.Family = family.NewService(a.API)
	a.Reports = reports.NewService(a.API)
	a.Notifications = notifications.NewService(a.API)
	a.Password = password.NewService(a.API)
	a.Payment = payment.NewService(a.API)
	a.Manager = manager.NewService(a.API)

	return a, nil
}

func (a *App) Config() config.Config {
	return a.config
}

func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Restore resumes the session from the persisted refresh cookie
func (a *App) Restore(ctx context.Context) sessions.State {
	a.Sessions.Restore(ctx)
	return a.Sessions.State()
}

// Guard gates a command to roles; with no roles any signed-in user passes
func (a *App) Guard(roles ...users.RoleType) *sessions.Guard {
	opts := []sessions.GuardOption{
		sessions.WithLoginPath(a.config.GetLoginPath()),
		sessions.WithFallbackPath(a.config.GetFallbackPath()),
	}
	if len(roles) > 0 {
		opts = append(opts, sessions.WithAllowedRoles(roles...))
	}
	return sessions.NewGuard(a.Sessions, opts...)
}

// SignInWithGoogle runs the browser flow and exchanges the ID token with
// the backend.
func (a *App) SignInWithGoogle(ctx context.Context) error {
	identity, err := a.Google.SignIn(ctx)
	if err != nil {
		return fmt.Errorf("[app SignInWithGoogle] %w", err)
	}
	a.log.Debug().Str("email", identity.Email).Msg("google identity verified")
	return a.Sessions.LoginWithGoogle(ctx, identity.RawIDToken)
}

// SetLocale switches the Accept-Language sent from now on and remembers it
// in the locale cookie.
func (a *App) SetLocale(code locale.Code) locale.Code {
	code = a.Locale.Set(code)
	locale.SaveToJar(a.jar, a.baseURL, code)
	return code
}

// SaveCookies persists the jar so the next run can restore the session
func (a *App) SaveCookies() error {
	return a.jar.Save(a.config.GetCookieFile())
}

// Close stops background timers and saves cookies
func (a *App) Close() error {
	a.Sessions.Close()
	a.Alerts.Close()
	if err := a.SaveCookies(); err != nil {
		return fmt.Errorf("[app Close] %w", err)
	}
	return nil
}
