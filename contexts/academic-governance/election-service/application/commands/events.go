package commands

import (
	"context"
	"time"

	"campus/contexts/academic-governance/election-service/ports"
	"campus/internal/shared/events"
)

const (
	EventElectionCreated   = "election.created"
	EventElectionVoteCast  = "election.vote_cast"
	EventElectionClosed    = "election.closed"
	EventElectionDeleted   = "election.deleted"
	EventStudentRoleChange = "student.role_changed"

	sourceService = "election-service"
)

// Election events are partitioned by election id so consumers see one
// election's history in order.
func newElectionEnvelope(
	ctx context.Context,
	idGen ports.IDGenerator,
	eventType string,
	electionID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return events.New(eventID, eventType, sourceService, "election_id", electionID, occurredAt, data)
}
