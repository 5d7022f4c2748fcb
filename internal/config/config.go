package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix = "LEARNLINK"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	HubConfig
	GoogleConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDataFolder() string
}

type mainConfig struct {
	settings Settings
}

// Settings is the decoded configuration tree. Keys are matched
// case-insensitively by viper, so LEARNLINK_API_BASEURL sets API.BaseURL.
type Settings struct {
	App     AppSettings
	API     APISettings
	Session SessionSettings
	Alerts  AlertSettings
	Hub     HubSettings
	Nats    NatsSettings
	Google  GoogleSettings
}

type AppSettings struct {
	Name       string
	Env        string
	LogLevel   string
	DataFolder string
}

// Load reads learnlink.yaml from the given folders (plus the working
// directory) and overlays LEARNLINK_* environment variables. A missing file
// is not an error.
func Load(paths ...string) (Config, error) {
	v := viper.New()
	v.SetConfigName("learnlink")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("[config Load] read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("[config Load] unmarshal config: %w", err)
	}

	return mainConfig{settings: s}, nil
}

// New returns a Config built from explicit settings. Unset fields keep their
// zero value, so callers normally start from Defaults().
func New(s Settings) Config {
	return mainConfig{settings: s}
}

// Defaults returns the settings Load would produce with no file and no env
func Defaults() Settings {
	return Settings{
		App: AppSettings{
			Name:       "Learn Link",
			Env:        "DEV",
			LogLevel:   "info",
			DataFolder: "./data",
		},
		API: APISettings{
			BaseURL:        "http://localhost:5000/api",
			RequestTimeout: 30 * time.Second,
			Locale:         "en",
		},
		Session: SessionSettings{
			RefreshLead:  60 * time.Second,
			LoginPath:    "/login",
			FallbackPath: "/",
			CookieFile:   "cookies.json",
		},
		Alerts: AlertSettings{
			Duration: 5 * time.Second,
		},
		Hub: HubSettings{
			URL:             "http://localhost:5000/hubs/notification",
			ReconnectDelays: []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second},
		},
		Google: GoogleSettings{
			Issuer: "https://accounts.google.com",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault("app.name", d.App.Name)
	v.SetDefault("app.env", d.App.Env)
	v.SetDefault("app.loglevel", d.App.LogLevel)
	v.SetDefault("app.datafolder", d.App.DataFolder)

	v.SetDefault("api.baseurl", d.API.BaseURL)
	v.SetDefault("api.requesttimeout", d.API.RequestTimeout.String())
	v.SetDefault("api.ratelimit", d.API.RateLimit)
	v.SetDefault("api.rateburst", d.API.RateBurst)
	v.SetDefault("api.locale", d.API.Locale)

	v.SetDefault("session.refreshlead", d.Session.RefreshLead.String())
	v.SetDefault("session.loginpath", d.Session.LoginPath)
	v.SetDefault("session.fallbackpath", d.Session.FallbackPath)
	v.SetDefault("session.cookiefile", d.Session.CookieFile)

	v.SetDefault("alerts.duration", d.Alerts.Duration.String())

	v.SetDefault("hub.url", d.Hub.URL)
	v.SetDefault("hub.reconnectdelays", "0s,2s,10s,30s")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subjectprefix", "learnlink.events")

	v.SetDefault("google.issuer", d.Google.Issuer)
	v.SetDefault("google.clientid", "")
	v.SetDefault("google.clientsecret", "")
	v.SetDefault("google.redirectport", 0)
}

func (c mainConfig) GetAppName() string {
	return c.settings.App.Name
}

func (c mainConfig) GetEnv() string {
	if c.settings.App.Env == "" {
		return "DEV"
	}
	return c.settings.App.Env
}

func (c mainConfig) GetLogLevel() string {
	return c.settings.App.LogLevel
}

func (c mainConfig) GetDataFolder() string {
	return c.settings.App.DataFolder
}
