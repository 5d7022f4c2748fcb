package config

import (
	"path/filepath"
	"time"
)

type SessionConfig interface {
	GetRefreshLead() time.Duration
	GetLoginPath() string
	GetFallbackPath() string
	GetCookieFile() string
	GetAlertDuration() time.Duration
}

type SessionSettings struct {
	RefreshLead  time.Duration // how long before expiry the silent refresh fires
	LoginPath    string
	FallbackPath string
	CookieFile   string // relative to the data folder unless absolute
}

type AlertSettings struct {
	Duration time.Duration
}

var _ SessionConfig = mainConfig{}

func (c mainConfig) GetRefreshLead() time.Duration {
	return c.settings.Session.RefreshLead
}

func (c mainConfig) GetLoginPath() string {
	return c.settings.Session.LoginPath
}

func (c mainConfig) GetFallbackPath() string {
	if c.settings.Session.FallbackPath == "" {
		return "/"
	}
	return c.settings.Session.FallbackPath
}

func (c mainConfig) GetCookieFile() string {
	f := c.settings.Session.CookieFile
	if f == "" || filepath.IsAbs(f) {
		return f
	}
	return filepath.Join(c.GetDataFolder(), f)
}

func (c mainConfig) GetAlertDuration() time.Duration {
	return c.settings.Alerts.Duration
}
