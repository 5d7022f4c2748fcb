// Package google obtains a verified Google ID token from a terminal using the
// authorization code flow with PKCE and a loopback redirect.
package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	DefaultIssuer = "https://accounts.google.com"
	callbackPath  = "/callback"
)

var (
	ErrStateMismatch = errors.New("oauth state mismatch")
	ErrNonceMismatch = errors.New("id token nonce mismatch")
	ErrNoIDToken     = errors.New("no id token in token response")
	ErrDenied        = errors.New("authorization denied")
)

type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	// RedirectPort is the loopback port; 0 picks a free one.
	RedirectPort int
}

// Identity is the verified ID token with the claims the backend cares about
type Identity struct {
	RawIDToken string
	Subject    string
	Email      string
	Name       string
}

// Flow runs one sign-in. OpenBrowser receives the authorization URL; a CLI
// prints it or hands it to the system browser.
type Flow struct {
	cfg         Config
	openBrowser func(url string) error
	log         zerolog.Logger
}

type FlowOption func(*Flow)

func WithOpenBrowser(fn func(url string) error) FlowOption {
	return func(f *Flow) {
		f.openBrowser = fn
	}
}

func WithLogger(log zerolog.Logger) FlowOption {
	return func(f *Flow) {
		f.log = log
	}
}

func NewFlow(cfg Config, options ...FlowOption) *Flow {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	f := &Flow{
		cfg:         cfg,
		openBrowser: func(string) error { return nil },
		log:         zerolog.Nop(),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

type callbackResult struct {
	code string
	err  error
}

// SignIn blocks until the browser comes back to the loopback listener, ctx
// is cancelled, or the exchange fails.
func (f *Flow) SignIn(ctx context.Context) (*Identity, error) {
	provider, err := oidc.NewProvider(ctx, f.cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("[google SignIn] create OIDC provider: %w", err)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(f.cfg.RedirectPort)))
	if err != nil {
		return nil, fmt.Errorf("[google SignIn] listen: %w", err)
	}
	defer listener.Close()

	oauthCfg := &oauth2.Config{
		ClientID:     f.cfg.ClientID,
		ClientSecret: f.cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  "http://" + listener.Addr().String() + callbackPath,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	state := randomString(24)
	nonce := randomString(24)
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	srv := &http.Server{Handler: callbackHandler(state, results)}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.log.Debug().Err(err).Msg("loopback server stopped")
		}
	}()
	defer srv.Close()

	authURL := oauthCfg.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	f.log.Debug().Str("redirect_uri", oauthCfg.RedirectURL).Msg("waiting for google sign-in")
	if err := f.openBrowser(authURL); err != nil {
		return nil, fmt.Errorf("[google SignIn] open browser: %w", err)
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return nil, fmt.Errorf("[google SignIn] %w", res.err)
	}

	tok, err := oauthCfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("[google SignIn] token exchange: %w", err)
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("[google SignIn] %w", ErrNoIDToken)
	}

	return Verify(ctx, provider.Verifier(&oidc.Config{ClientID: f.cfg.ClientID}), rawIDToken, nonce)
}

// Verify checks the ID token signature, audience and nonce, and extracts the
// identity claims.
func Verify(ctx context.Context, verifier *oidc.IDTokenVerifier, rawIDToken, nonce string) (*Identity, error) {
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("[google Verify] %w", err)
	}

	var claims struct {
		Nonce string `json:"nonce"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("[google Verify] claims: %w", err)
	}
	if nonce != "" && claims.Nonce != nonce {
		return nil, fmt.Errorf("[google Verify] %w", ErrNonceMismatch)
	}

	return &Identity{
		RawIDToken: rawIDToken,
		Subject:    idToken.Subject,
		Email:      claims.Email,
		Name:       claims.Name,
	}, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		var res callbackResult
		switch {
		case r.FormValue("error") != "":
			res.err = fmt.Errorf("%w: %s %s", ErrDenied, r.FormValue("error"), r.FormValue("error_description"))
		case r.FormValue("state") != state:
			res.err = ErrStateMismatch
		case r.FormValue("code") == "":
			res.err = fmt.Errorf("%w: missing code", ErrDenied)
		default:
			res.code = r.FormValue("code")
		}

		if res.err != nil {
			http.Error(w, "Sign-in failed. You can close this window.", http.StatusBadRequest)
		} else {
			_, _ = w.Write([]byte("Signed in to Learn Link. You can close this window."))
		}

		select {
		case results <- res:
		default:
		}
	})
	return mux
}

func randomString(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
