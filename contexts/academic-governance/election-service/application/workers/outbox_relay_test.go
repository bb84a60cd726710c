package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus/contexts/academic-governance/election-service/adapters/memory"
	"campus/contexts/academic-governance/election-service/domain/entities"
	"campus/contexts/academic-governance/election-service/ports"
	"campus/internal/shared/events"
)

type recordingPublisher struct {
	topics []string
	failAt int
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ ports.EventEnvelope) error {
	if p.failAt > 0 && len(p.topics)+1 == p.failAt {
		return errors.New("broker down")
	}
	p.topics = append(p.topics, topic)
	return nil
}

func seedOutbox(t *testing.T, store *memory.Store, types ...string) {
	t.Helper()
	for index, eventType := range types {
		envelope, err := events.New(
			"evt-"+eventType,
			eventType,
			"election-service",
			"election_id",
			"e1",
			time.Date(2026, 1, 1, 0, 0, index, 0, time.UTC),
			map[string]any{"election_id": "e1"},
		)
		if err != nil {
			t.Fatalf("build envelope: %v", err)
		}
		election := entities.Election{
			ElectionID: "e-" + eventType,
			Status:     entities.ElectionStatusOpen,
		}
		if err := store.CreateElection(context.Background(), election, envelope, nil); err != nil {
			t.Fatalf("seed outbox: %v", err)
		}
	}
}

func TestOutboxRelayPublishesInOrder(t *testing.T) {
	store := memory.NewStore(nil)
	seedOutbox(t, store, "election.created", "election.vote_cast", "election.closed")
	publisher := &recordingPublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if len(publisher.topics) != 3 || publisher.topics[0] != "election.created" || publisher.topics[2] != "election.closed" {
		t.Fatalf("unexpected publish order %v", publisher.topics)
	}
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty outbox, got %d rows", len(pending))
	}
}

func TestOutboxRelayStopsAtFirstFailure(t *testing.T) {
	store := memory.NewStore(nil)
	seedOutbox(t, store, "election.created", "election.vote_cast", "election.closed")
	publisher := &recordingPublisher{failAt: 2}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store}

	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected publish failure")
	}
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 || pending[0].EventType != "election.vote_cast" {
		t.Fatalf("expected remaining rows to keep order, got %+v", pending)
	}
}
