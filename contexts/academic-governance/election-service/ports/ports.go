package ports

import (
	"context"
	"time"

	"campus/contexts/academic-governance/election-service/domain/entities"
	"campus/internal/shared/events"
)

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID generation for elections and outbox rows.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = events.Envelope

// StudentProjection is the read model of an identity-store record.
type StudentProjection struct {
	StudentID string
	IDNo      string
	Name      string
	Email     string
	ClassName string
	Role      entities.Role
}

// StudentDirectory resolves student references outside of any transaction.
type StudentDirectory interface {
	GetStudent(ctx context.Context, studentID string) (StudentProjection, error)
	ListStudentsByIDs(ctx context.Context, studentIDs []string) ([]StudentProjection, error)
}

// RoleStore is bound to the transaction that closes an election. Every write
// made through it commits or rolls back together with the election.
type RoleStore interface {
	FindClassRepresentative(ctx context.Context, className string) (StudentProjection, bool, error)
	GetStudent(ctx context.Context, studentID string) (StudentProjection, error)
	SetStudentRole(ctx context.Context, studentID string, role entities.Role) error
}

type ElectionFilter struct {
	Status    entities.ElectionStatus
	ClassName string
	Branch    string
}

// CastVoteInput is applied as one conditional write: the election must still
// be open and the voter absent, otherwise nothing changes.
type CastVoteInput struct {
	ElectionID         string
	VoterID            string
	CandidateStudentID string
	VotedAt            time.Time
	Event              EventEnvelope
}

// CloseResult is what the close callback hands back for persistence.
type CloseResult struct {
	Election entities.Election
	Events   []EventEnvelope
}

// CloseFunc runs while the repository holds the election lock. It only sees
// elections that are still OPEN.
type CloseFunc func(ctx context.Context, election entities.Election, roles RoleStore) (CloseResult, error)

type ElectionRepository interface {
	// CreateElection stores the election and its created event. A non-nil
	// idempotency record is claimed in the same transaction; while another
	// unexpired record holds the key nothing is written and
	// ErrIdempotencyKeyTaken is returned.
	CreateElection(ctx context.Context, election entities.Election, event EventEnvelope, idempotency *IdempotencyRecord) error
	GetElection(ctx context.Context, electionID string) (entities.Election, error)
	ListElections(ctx context.Context, filter ElectionFilter) ([]entities.Election, error)
	CastVote(ctx context.Context, input CastVoteInput) error
	// CloseElection returns the final election and whether finalize ran.
	// An already-closed election is returned unchanged with applied=false.
	CloseElection(ctx context.Context, electionID string, finalize CloseFunc) (entities.Election, bool, error)
	DeleteElection(ctx context.Context, electionID string, event EventEnvelope) error
}

// IdempotencyRecord stores the request hash of a replayable create.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	ElectionID  string
	ExpiresAt   time.Time
}

// IdempotencyStore reads records claimed by ElectionRepository.CreateElection.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
}

// OutboxMessage represents a pending relay message.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxRepository supports worker relay polling and acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
