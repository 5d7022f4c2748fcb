package relay_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/learnlink-client/hub"
	"github.com/jrsteele09/learnlink-client/hub/relay"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{subject: subject, data: data})
	return nil
}

func TestRelay_Publish(t *testing.T) {
	pub := &fakePublisher{}
	r := relay.New(pub, relay.WithSource("parent-1"))
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	err := r.Publish(hub.Event{
		Name:       hub.EventMissionReviewed,
		Arguments:  []json.RawMessage{json.RawMessage(`{"missionId":"m1","score":7}`)},
		ReceivedAt: at,
	})
	require.NoError(t, err)
	require.Len(t, pub.msgs, 1)
	require.Equal(t, "learnlink.events.MissionReviewed", pub.msgs[0].subject)

	var msg relay.Message
	require.NoError(t, json.Unmarshal(pub.msgs[0].data, &msg))
	require.Equal(t, hub.EventMissionReviewed, msg.Event)
	require.JSONEq(t, `{"missionId":"m1","score":7}`, string(msg.Payload))
	require.Equal(t, at, msg.ReceivedAt)
	require.Equal(t, "parent-1", msg.Source)
}

func TestRelay_SubjectPrefix(t *testing.T) {
	r := relay.New(&fakePublisher{}, relay.WithSubjectPrefix("family.42."))
	require.Equal(t, "family.42.MissionCreated", r.Subject(hub.EventMissionCreated))

	r = relay.New(&fakePublisher{}, relay.WithSubjectPrefix(""))
	require.Equal(t, "learnlink.events.MissionCreated", r.Subject(hub.EventMissionCreated))
}

func TestRelay_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	err := relay.New(pub).Publish(hub.Event{Name: hub.EventMissionStarted})
	require.ErrorContains(t, err, "learnlink.events.MissionStarted")
	require.ErrorContains(t, err, "connection closed")
}
