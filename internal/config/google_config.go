package config

type GoogleConfig interface {
	GetGoogleIssuer() string
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleRedirectPort() int
}

type GoogleSettings struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectPort int // 0 picks a free loopback port
}

var _ GoogleConfig = mainConfig{}

func (c mainConfig) GetGoogleIssuer() string {
	return c.settings.Google.Issuer
}

func (c mainConfig) GetGoogleClientID() string {
	return c.settings.Google.ClientID
}

func (c mainConfig) GetGoogleClientSecret() string {
	return c.settings.Google.ClientSecret
}

func (c mainConfig) GetGoogleRedirectPort() int {
	return c.settings.Google.RedirectPort
}
