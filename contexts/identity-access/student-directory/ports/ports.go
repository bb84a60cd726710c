package ports

import (
	"context"
	"io"
	"time"

	"campus/contexts/identity-access/student-directory/domain/entities"
	"campus/internal/shared/events"
)

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID generation for students and outbox rows.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = events.Envelope

type StudentFilter struct {
	ClassName string
	// Search matches name or idNo, case-insensitive substring.
	Search string
}

// StudentRepository owns the students table/collection. Writes append their
// outbox event in the same unit.
type StudentRepository interface {
	CreateStudent(ctx context.Context, student entities.Student, event EventEnvelope) error
	GetStudent(ctx context.Context, studentID string) (entities.Student, error)
	// FindByIdentifier matches the lowercased email or the exact idNo.
	FindByIdentifier(ctx context.Context, identifier string) (entities.Student, error)
	ExistsByEmailOrIDNo(ctx context.Context, email string, idNo string) (bool, error)
	ListStudents(ctx context.Context, filter StudentFilter) ([]entities.Student, error)
	UpdateProfile(ctx context.Context, student entities.Student, event EventEnvelope) error
	SetRefreshTokenHash(ctx context.Context, studentID string, hash string, updatedAt time.Time) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) bool
}

// AccessClaims is what an access token carries.
type AccessClaims struct {
	StudentID string
	Role      entities.Role
	ExpiresAt time.Time
}

type TokenIssuer interface {
	IssueAccessToken(student entities.Student, now time.Time) (string, error)
	IssueRefreshToken(student entities.Student, now time.Time) (string, error)
	ParseAccessToken(token string) (AccessClaims, error)
	// ParseRefreshToken returns the student id the token was issued to.
	ParseRefreshToken(token string) (string, error)
}

type AvatarUpload struct {
	StudentID   string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type AvatarStorage interface {
	UploadAvatar(ctx context.Context, upload AvatarUpload) (string, error)
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
