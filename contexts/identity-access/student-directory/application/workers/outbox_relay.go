package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "campus/contexts/identity-access/student-directory/application"
	"campus/contexts/identity-access/student-directory/ports"
)

// OutboxRelay publishes persisted student outbox rows to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes one batch in creation order and marks each row only
// after the broker accepted it. The first failure ends the cycle so the
// remaining rows keep their order for the next run.
func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("student outbox list failed",
			"event", "student_outbox_list_failed",
			"module", "identity-access/student-directory",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		logger.Debug("student outbox relay found no pending rows",
			"event", "student_outbox_relay_noop",
			"module", "identity-access/student-directory",
			"layer", "worker",
			"batch_size", limit,
		)
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("student outbox decode failed",
				"event", "student_outbox_decode_failed",
				"module", "identity-access/student-directory",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("student outbox publish failed",
				"event", "student_outbox_publish_failed",
				"module", "identity-access/student-directory",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("student outbox mark published failed",
				"event", "student_outbox_mark_published_failed",
				"module", "identity-access/student-directory",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("student outbox relay cycle completed",
		"event", "student_outbox_relay_completed",
		"module", "identity-access/student-directory",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
