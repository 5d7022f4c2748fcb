package google_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/learnlink-client/auth/google"
	"github.com/stretchr/testify/require"
)

const clientID = "learnlink-cli"

// fakeProvider is a minimal OIDC issuer: discovery, JWKS, authorize and token
type fakeProvider struct {
	t         *testing.T
	server    *httptest.Server
	key       *rsa.PrivateKey
	challenge string
	nonce     string
	denied    bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p := &fakeProvider{t: t, key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                p.server.URL,
			"authorization_endpoint":                p.server.URL + "/authorize",
			"token_endpoint":                        p.server.URL + "/token",
			"jwks_uri":                              p.server.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	})
	mux.HandleFunc("/authorize", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "S256", q.Get("code_challenge_method"))
		p.challenge = q.Get("code_challenge")
		p.nonce = q.Get("nonce")

		back := url.Values{"state": {q.Get("state")}}
		if p.denied {
			back.Set("error", "access_denied")
		} else {
			back.Set("code", "auth-code-1")
		}
		http.Redirect(w, r, q.Get("redirect_uri")+"?"+back.Encode(), http.StatusFound)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "auth-code-1", r.PostForm.Get("code"))

		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		require.Equal(t, p.challenge, base64.RawURLEncoding.EncodeToString(sum[:]), "PKCE verifier must match challenge")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "google-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     p.idToken(p.nonce),
		})
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) idToken(nonce string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   p.server.URL,
		"aud":   clientID,
		"sub":   "google-sub-1",
		"email": "parent@learnlink.test",
		"name":  "Hoa Nguyen",
		"nonce": nonce,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(p.key)
	require.NoError(p.t, err)
	return signed
}

func browser(t *testing.T) func(string) error {
	return func(authURL string) error {
		resp, err := http.Get(authURL)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}

func TestSignIn_PKCEFlow(t *testing.T) {
	p := newFakeProvider(t)
	flow := google.NewFlow(google.Config{Issuer: p.server.URL, ClientID: clientID}, google.WithOpenBrowser(browser(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	identity, err := flow.SignIn(ctx)
	require.NoError(t, err)
	require.Equal(t, "google-sub-1", identity.Subject)
	require.Equal(t, "parent@learnlink.test", identity.Email)
	require.Equal(t, "Hoa Nguyen", identity.Name)
	require.NotEmpty(t, identity.RawIDToken)
}

func TestSignIn_Denied(t *testing.T) {
	p := newFakeProvider(t)
	p.denied = true
	flow := google.NewFlow(google.Config{Issuer: p.server.URL, ClientID: clientID}, google.WithOpenBrowser(browser(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := flow.SignIn(ctx)
	require.ErrorIs(t, err, google.ErrDenied)
}

func TestSignIn_ContextCancelled(t *testing.T) {
	p := newFakeProvider(t)
	flow := google.NewFlow(google.Config{Issuer: p.server.URL, ClientID: clientID})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := flow.SignIn(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestVerify_NonceMismatch(t *testing.T) {
	p := newFakeProvider(t)
	ctx := context.Background()

	provider, err := oidc.NewProvider(ctx, p.server.URL)
	require.NoError(t, err)
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})

	_, err = google.Verify(ctx, verifier, p.idToken("other"), "expected")
	require.ErrorIs(t, err, google.ErrNonceMismatch)

	identity, err := google.Verify(ctx, verifier, p.idToken("expected"), "expected")
	require.NoError(t, err)
	require.Equal(t, "google-sub-1", identity.Subject)
}
