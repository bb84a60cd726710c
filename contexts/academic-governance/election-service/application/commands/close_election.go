package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "campus/contexts/academic-governance/election-service/application"
	"campus/contexts/academic-governance/election-service/domain/entities"
	domainerrors "campus/contexts/academic-governance/election-service/domain/errors"
	"campus/contexts/academic-governance/election-service/domain/services"
	"campus/contexts/academic-governance/election-service/ports"

	"github.com/google/uuid"
)

const defaultCloseAttempts = 3

type CloseElectionCommand struct {
	Actor      entities.Actor
	ElectionID string
}

type CloseElectionResult struct {
	Election      entities.Election
	AlreadyClosed bool
	Tally         services.TallyResult
	Transition    entities.RoleTransition
}

type CloseElectionUseCase struct {
	Elections   ports.ElectionRepository
	Coordinator RoleTransitionCoordinator
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	MaxAttempts int
	Logger      *slog.Logger
}

// CloseElection tallies CR candidates and finalises the election inside the
// repository transaction. Closing an already-closed election returns it as-is.
func (uc CloseElectionUseCase) CloseElection(ctx context.Context, cmd CloseElectionCommand) (CloseElectionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Actor.IsAuthenticated() {
		return CloseElectionResult{}, domainerrors.ErrUnauthenticated
	}
	if !cmd.Actor.CanAdministerElection() {
		return CloseElectionResult{}, domainerrors.ErrForbidden
	}
	electionID := strings.TrimSpace(cmd.ElectionID)
	if _, err := uuid.Parse(electionID); err != nil {
		return CloseElectionResult{}, domainerrors.ErrInvalidElectionID
	}

	attempts := uc.MaxAttempts
	if attempts <= 0 {
		attempts = defaultCloseAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := uc.closeOnce(ctx, cmd.Actor, electionID)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, domainerrors.ErrTransactionAborted) {
			break
		}
		logger.Warn("election close transaction aborted",
			"event", "election_close_retry",
			"module", "academic-governance/election-service",
			"layer", "application",
			"election_id", electionID,
			"attempt", attempt,
			"error", err.Error(),
		)
	}

	logger.Error("election close failed",
		"event", "election_close_failed",
		"module", "academic-governance/election-service",
		"layer", "application",
		"election_id", electionID,
		"error", lastErr.Error(),
	)
	return CloseElectionResult{}, lastErr
}

func (uc CloseElectionUseCase) closeOnce(ctx context.Context, actor entities.Actor, electionID string) (CloseElectionResult, error) {
	var (
		tally      services.TallyResult
		transition entities.RoleTransition
	)
	finalize := func(ctx context.Context, election entities.Election, roles ports.RoleStore) (ports.CloseResult, error) {
		now := uc.now()
		tally = services.Tally(election.CandidatesFor(entities.PositionCR))
		transition = entities.RoleTransition{}

		closed := election.Clone()
		closed.Status = entities.ElectionStatusClosed
		closed.ResultDeclared = true
		closed.IsDraw = tally.IsDraw
		closed.WinnerID = tally.WinnerID
		closed.Winners = tally.Winners
		closed.ClosedBy = strings.TrimSpace(actor.StudentID)
		closed.ClosedAt = &now
		closed.UpdatedAt = now

		if tally.Outcome == services.TallyClearWinner {
			applied, err := uc.Coordinator.PromoteToCR(ctx, roles, tally.WinnerID, closed.ClassName)
			if err != nil {
				return ports.CloseResult{}, err
			}
			transition = applied
		}

		closedEvent, err := newElectionEnvelope(ctx, uc.IDGen, EventElectionClosed, closed.ElectionID, now, map[string]any{
			"election_id": closed.ElectionID,
			"class_name":  closed.ClassName,
			"outcome":     string(tally.Outcome),
			"is_draw":     closed.IsDraw,
			"winner_id":   closed.WinnerID,
			"total_votes": closed.TotalVotes(),
			"closed_by":   closed.ClosedBy,
			"occurred_at": now.Format(time.RFC3339),
		})
		if err != nil {
			return ports.CloseResult{}, err
		}
		result := ports.CloseResult{Election: closed, Events: []ports.EventEnvelope{closedEvent}}

		if transition.Applied() {
			roleEvent, err := newElectionEnvelope(ctx, uc.IDGen, EventStudentRoleChange, closed.ElectionID, now, map[string]any{
				"election_id": closed.ElectionID,
				"class_name":  transition.ClassName,
				"demoted_id":  transition.DemotedID,
				"promoted_id": transition.PromotedID,
				"occurred_at": now.Format(time.RFC3339),
			})
			if err != nil {
				return ports.CloseResult{}, err
			}
			result.Events = append(result.Events, roleEvent)
		}
		return result, nil
	}

	election, applied, err := uc.Elections.CloseElection(ctx, electionID, finalize)
	if err != nil {
		return CloseElectionResult{}, err
	}
	logger := application.ResolveLogger(uc.Logger)
	if !applied {
		logger.Info("election already closed",
			"event", "election_close_noop",
			"module", "academic-governance/election-service",
			"layer", "application",
			"election_id", electionID,
		)
		return CloseElectionResult{Election: election, AlreadyClosed: true}, nil
	}

	logger.Info("election closed",
		"event", "election_closed",
		"module", "academic-governance/election-service",
		"layer", "application",
		"election_id", electionID,
		"outcome", string(tally.Outcome),
		"winner_id", election.WinnerID,
		"demoted_id", transition.DemotedID,
	)
	return CloseElectionResult{
		Election:   election,
		Tally:      tally,
		Transition: transition,
	}, nil
}

func (uc CloseElectionUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
