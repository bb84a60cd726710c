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
	"campus/contexts/academic-governance/election-service/ports"

	"github.com/google/uuid"
)

type CastVoteCommand struct {
	Actor       entities.Actor
	ElectionID  string
	CandidateID string
}

type VoteUseCase struct {
	Elections ports.ElectionRepository
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// CastVote checks eligibility against a snapshot first so callers get a
// precise error, then lets the repository re-assert openness and voter
// absence inside one conditional write.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Actor.IsAuthenticated() {
		return domainerrors.ErrUnauthenticated
	}
	candidateID := strings.TrimSpace(cmd.CandidateID)
	if _, err := uuid.Parse(candidateID); err != nil {
		return domainerrors.ErrInvalidCandidateID
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
	if !election.IsOpen(now) {
		return domainerrors.ErrElectionClosed
	}
	if strings.TrimSpace(cmd.Actor.ClassName) != election.ClassName {
		logger.Warn("vote rejected for class mismatch",
			"event", "election_vote_class_mismatch",
			"module", "academic-governance/election-service",
			"layer", "application",
			"election_id", electionID,
			"voter_id", cmd.Actor.StudentID,
		)
		return domainerrors.ErrVoterNotEligible
	}
	voterID := strings.TrimSpace(cmd.Actor.StudentID)
	if election.HasVoted(voterID) {
		return domainerrors.ErrAlreadyVoted
	}
	if _, _, ok := election.FindCandidate(candidateID); !ok {
		return domainerrors.ErrCandidateNotFound
	}

	// The ballot itself stays out of the event.
	event, err := newElectionEnvelope(ctx, uc.IDGen, EventElectionVoteCast, electionID, now, map[string]any{
		"election_id": electionID,
		"class_name":  election.ClassName,
		"occurred_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	err = uc.Elections.CastVote(ctx, ports.CastVoteInput{
		ElectionID:         electionID,
		VoterID:            voterID,
		CandidateStudentID: candidateID,
		VotedAt:            now,
		Event:              event,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyVoted) || errors.Is(err, domainerrors.ErrElectionClosed) {
			logger.Warn("vote lost conditional write",
				"event", "election_vote_conditional_rejected",
				"module", "academic-governance/election-service",
				"layer", "application",
				"election_id", electionID,
				"voter_id", voterID,
				"error", err.Error(),
			)
		}
		return err
	}

	logger.Info("vote cast",
		"event", "election_vote_cast",
		"module", "academic-governance/election-service",
		"layer", "application",
		"election_id", electionID,
		"voter_id", voterID,
	)
	return nil
}

func (uc VoteUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
