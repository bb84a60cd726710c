package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"campus/contexts/identity-access/student-directory/ports"
	"campus/internal/shared/events"
)

const (
	EventStudentRegistered     = "student.registered"
	EventStudentProfileUpdated = "student.profile_updated"

	sourceService = "student-directory"
)

func newStudentEnvelope(
	ctx context.Context,
	idGen ports.IDGenerator,
	eventType string,
	studentID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return events.New(eventID, eventType, sourceService, "student_id", studentID, occurredAt, data)
}

// hashToken keeps refresh tokens out of storage in plain form.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
