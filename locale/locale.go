package locale

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
)

type Code string

const (
	English    Code = "en"
	Vietnamese Code = "vi"

	Default    = English
	CookieName = "NEXT_LOCALE"
)

var supported = []Code{English, Vietnamese}

func Supported() []Code {
	out := make([]Code, len(supported))
	copy(out, supported)
	return out
}

// Parse accepts a two-letter code or a tag such as "vi-VN". Anything else
// falls back to Default.
func Parse(s string) Code {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-_"); i >= 0 {
		s = s[:i]
	}
	for _, c := range supported {
		if string(c) == s {
			return c
		}
	}
	return Default
}

// Setting holds the active locale. Its Get method is what the transport
// reads for Accept-Language.
type Setting struct {
	mu   sync.RWMutex
	code Code
}

func NewSetting(code Code) *Setting {
	return &Setting{code: Parse(string(code))}
}

func (s *Setting) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.code)
}

func (s *Setting) Code() Code {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

func (s *Setting) Set(code Code) Code {
	code = Parse(string(code))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	return code
}

// FromJar reads the locale cookie for u. It reports false, with Default,
// when none is stored.
func FromJar(jar http.CookieJar, u *url.URL) (Code, bool) {
	if jar == nil || u == nil {
		return Default, false
	}
	for _, c := range jar.Cookies(u) {
		if c.Name == CookieName {
			return Parse(c.Value), true
		}
	}
	return Default, false
}

// SaveToJar stores code as a plain (script-readable) cookie for u
func SaveToJar(jar http.CookieJar, u *url.URL, code Code) {
	if jar == nil || u == nil {
		return
	}
	jar.SetCookies(u, []*http.Cookie{{
		Name:   CookieName,
		Value:  string(Parse(string(code))),
		Path:   "/",
		MaxAge: 365 * 24 * 60 * 60,
	}})
}
