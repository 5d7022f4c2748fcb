// Package relay republishes hub events to NATS so other processes can react
// to mission activity without their own hub connection.
package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/learnlink-client/hub"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const DefaultSubjectPrefix = "learnlink.events"

// Publisher is the part of *nats.Conn the relay uses
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Message is the JSON body published for each event
type Message struct {
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Source     string          `json:"source,omitempty"`
}

type Relay struct {
	pub    Publisher
	prefix string
	source string
	log    zerolog.Logger
}

type Option func(*Relay)

func WithSubjectPrefix(prefix string) Option {
	return func(r *Relay) {
		if prefix = strings.Trim(prefix, "."); prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithSource tags published messages, typically with the user id
func WithSource(source string) Option {
	return func(r *Relay) {
		r.source = source
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Relay) {
		r.log = log
	}
}

func New(pub Publisher, options ...Option) *Relay {
	r := &Relay{
		pub:    pub,
		prefix: DefaultSubjectPrefix,
		log:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Connect dials NATS and returns a relay using the connection. close drains
// the connection so in-flight publishes are flushed.
func Connect(natsURL string, options ...Option) (*Relay, func(), error) {
	nc, err := nats.Connect(natsURL, nats.Name("learnlink-relay"))
	if err != nil {
		return nil, nil, fmt.Errorf("[relay Connect] %w", err)
	}
	r := New(nc, options...)
	closeFn := func() {
		if err := nc.Drain(); err != nil {
			r.log.Warn().Err(err).Msg("nats drain failed")
			nc.Close()
		}
	}
	return r, closeFn, nil
}

// Subject returns the subject an event is published on
func (r *Relay) Subject(event string) string {
	return r.prefix + "." + event
}

// Publish sends one event
func (r *Relay) Publish(ev hub.Event) error {
	data, err := json.Marshal(Message{
		Event:      ev.Name,
		Payload:    ev.Payload(),
		ReceivedAt: ev.ReceivedAt.UTC(),
		Source:     r.source,
	})
	if err != nil {
		return fmt.Errorf("[relay Publish] marshal %s: %w", ev.Name, err)
	}
	subject := r.Subject(ev.Name)
	if err := r.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("[relay Publish] %s: %w", subject, err)
	}
	r.log.Debug().Str("subject", subject).Msg("relayed hub event")
	return nil
}

// Attach relays every event the hub client receives until the returned
// function is called. Publish failures are logged; the hub keeps running.
func (r *Relay) Attach(c *hub.Client) func() {
	return c.OnAny(func(ev hub.Event) {
		if err := r.Publish(ev); err != nil {
			r.log.Warn().Err(err).Msg("relay publish failed")
		}
	})
}
