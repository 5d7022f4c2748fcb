package config

import "time"

type HubConfig interface {
	GetHubURL() string
	GetReconnectDelays() []time.Duration
	GetNatsURL() string
	GetNatsSubjectPrefix() string
}

type HubSettings struct {
	URL             string
	ReconnectDelays []time.Duration
}

type NatsSettings struct {
	URL           string
	SubjectPrefix string
}

var _ HubConfig = mainConfig{}

func (c mainConfig) GetHubURL() string {
	return c.settings.Hub.URL
}

func (c mainConfig) GetReconnectDelays() []time.Duration {
	return c.settings.Hub.ReconnectDelays
}

// GetNatsURL returns an empty string when the relay is disabled
func (c mainConfig) GetNatsURL() string {
	return c.settings.Nats.URL
}

func (c mainConfig) GetNatsSubjectPrefix() string {
	if c.settings.Nats.SubjectPrefix == "" {
		return "learnlink.events"
	}
	return c.settings.Nats.SubjectPrefix
}
