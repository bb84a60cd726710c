package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"campus/internal/shared/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T) events.Envelope {
	t.Helper()
	event, err := events.New("evt-1", "election.closed", "election-service", "election_id", "e1",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), map[string]any{"election_id": "e1"})
	require.NoError(t, err)
	return event
}

func TestBuildMessageUsesPrefixAndPartitionKey(t *testing.T) {
	message, err := buildMessage("campus.", "election.closed", envelope(t))
	require.NoError(t, err)

	assert.Equal(t, "campus.election.closed", message.Topic)
	assert.Equal(t, []byte("e1"), message.Key)

	var decoded events.Envelope
	require.NoError(t, json.Unmarshal(message.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.EventID)
}

func TestBuildMessageFallsBackToEventType(t *testing.T) {
	event := envelope(t)
	event.PartitionKey = ""
	message, err := buildMessage("", "", event)
	require.NoError(t, err)
	assert.Equal(t, "election.closed", message.Topic)
	assert.Equal(t, []byte("evt-1"), message.Key)
}

func TestLocalBusDeliversToSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewLocalBus(nil)
	received := make(chan events.Envelope, 1)
	bus.Subscribe(ctx, "election.closed", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	})

	require.NoError(t, bus.Publish(ctx, "election.closed", envelope(t)))
	select {
	case event := <-received:
		assert.Equal(t, "evt-1", event.EventID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestLocalBusWithoutSubscribersKeepsEventUndelivered(t *testing.T) {
	bus := NewLocalBus(nil)
	err := bus.Publish(context.Background(), "election.closed", envelope(t))
	assert.ErrorIs(t, err, ErrNoSubscribers)
}
