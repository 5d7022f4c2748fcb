package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetRateLimit() float64
	GetRateBurst() int
	GetLocale() string
}

type APISettings struct {
	BaseURL        string
	RequestTimeout time.Duration
	RateLimit      float64 // requests per second, 0 disables limiting
	RateBurst      int
	Locale         string
}

var _ APIConfig = mainConfig{}

// GetBaseURL returns the API root without a trailing slash (e.g. "https://learnlink.example.com/api")
func (c mainConfig) GetBaseURL() string {
	return strings.TrimRight(c.settings.API.BaseURL, "/")
}

func (c mainConfig) GetRequestTimeout() time.Duration {
	return c.settings.API.RequestTimeout
}

func (c mainConfig) GetRateLimit() float64 {
	return c.settings.API.RateLimit
}

func (c mainConfig) GetRateBurst() int {
	if c.settings.API.RateBurst <= 0 {
		return 1
	}
	return c.settings.API.RateBurst
}

func (c mainConfig) GetLocale() string {
	return c.settings.API.Locale
}
