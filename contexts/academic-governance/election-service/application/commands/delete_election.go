package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "campus/contexts/academic-governance/election-service/application"
	"campus/contexts/academic-governance/election-service/domain/entities"
	domainerrors "campus/contexts/academic-governance/election-service/domain/errors"
	"campus/contexts/academic-governance/election-service/ports"

	"github.com/google/uuid"
)

type DeleteElectionCommand struct {
	Actor      entities.Actor
	ElectionID string
}

type DeleteElectionUseCase struct {
	Elections ports.ElectionRepository
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// DeleteElection hard-deletes an election in any state.
func (uc DeleteElectionUseCase) DeleteElection(ctx context.Context, cmd DeleteElectionCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Actor.IsAuthenticated() {
		return domainerrors.ErrUnauthenticated
	}
	if !cmd.Actor.CanAdministerElection() {
		return domainerrors.ErrForbidden
	}
	electionID := strings.TrimSpace(cmd.ElectionID)
	if _, err := uuid.Parse(electionID); err != nil {
		return domainerrors.ErrInvalidElectionID
	}

	election, err := uc.Elections.GetElection(ctx, electionID)
	if err != nil {
		return err
	}

	now := uc.now()
	event, err := newElectionEnvelope(ctx, uc.IDGen, EventElectionDeleted, electionID, now, map[string]any{
		"election_id": electionID,
		"class_name":  election.ClassName,
		"status":      string(election.Status),
		"deleted_by":  strings.TrimSpace(cmd.Actor.StudentID),
		"occurred_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := uc.Elections.DeleteElection(ctx, electionID, event); err != nil {
		return err
	}

	logger.Info("election deleted",
		"event", "election_deleted",
		"module", "academic-governance/election-service",
		"layer", "application",
		"election_id", electionID,
		"deleted_by", cmd.Actor.StudentID,
	)
	return nil
}

func (uc DeleteElectionUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
