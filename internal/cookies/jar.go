// Package cookies provides a cookie jar that survives process restarts, so
// the HttpOnly refresh cookie set at login lets the next CLI run restore the
// session.
package cookies

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

type record struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"httpOnly,omitempty"`
}

// Jar is a publicsuffix-aware cookiejar.Jar that also remembers what it was
// given so it can be written to disk.
type Jar struct {
	*cookiejar.Jar
	mu      sync.Mutex
	records map[string]record
	nowFunc func() time.Time
}

var _ http.CookieJar = (*Jar)(nil)

func New() (*Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("[cookies New] %w", err)
	}
	return &Jar{
		Jar:     inner,
		records: make(map[string]record),
		nowFunc: time.Now,
	}, nil
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.Jar.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range cookies {
		key := u.Host + "|" + c.Path + "|" + c.Name
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = j.nowFunc().Add(time.Duration(c.MaxAge) * time.Second)
		}
		if c.MaxAge < 0 || (!expires.IsZero() && !expires.After(j.nowFunc())) {
			delete(j.records, key)
			continue
		}
		j.records[key] = record{
			URL:      u.Scheme + "://" + u.Host + "/",
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
	}
}

// Load replays the cookies saved at path. A missing file is not an error.
func (j *Jar) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("[cookies Load] %w", err)
	}

	var saved []record
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("[cookies Load] decode %s: %w", path, err)
	}

	now := j.nowFunc()
	for _, r := range saved {
		if !r.Expires.IsZero() && !r.Expires.After(now) {
			continue
		}
		u, err := url.Parse(r.URL)
		if err != nil {
			continue
		}
		j.SetCookies(u, []*http.Cookie{{
			Name:     r.Name,
			Value:    r.Value,
			Path:     r.Path,
			Domain:   r.Domain,
			Expires:  r.Expires,
			Secure:   r.Secure,
			HttpOnly: r.HTTPOnly,
		}})
	}
	return nil
}

// Save writes the unexpired cookies to path with owner-only permissions
func (j *Jar) Save(path string) error {
	j.mu.Lock()
	now := j.nowFunc()
	saved := make([]record, 0, len(j.records))
	for _, r := range j.records {
		if r.Expires.IsZero() || r.Expires.After(now) {
			saved = append(saved, r)
		}
	}
	j.mu.Unlock()

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("[cookies Save] %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("[cookies Save] %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("[cookies Save] %w", err)
	}
	return nil
}
