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

const (
	MinCandidates = 2
	MaxCandidates = 8
)

type CandidateInput struct {
	StudentID string
	Position  string
}

type CreateElectionCommand struct {
	Actor          entities.Actor
	IdempotencyKey string
	Title          string
	ClassName      string
	Branch         string
	AcademicYear   string
	ClosesAt       *time.Time
	Candidates     []CandidateInput
}

type CreateElectionResult struct {
	Election entities.Election
	Replayed bool
}

type CreateElectionUseCase struct {
	Elections      ports.ElectionRepository
	Students       ports.StudentDirectory
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// CreateElection opens a new ballot. All validation happens before the single
// insert; an optional idempotency key makes client retries replay-safe.
func (uc CreateElectionUseCase) CreateElection(ctx context.Context, cmd CreateElectionCommand) (CreateElectionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if !cmd.Actor.IsAuthenticated() {
		return CreateElectionResult{}, domainerrors.ErrUnauthenticated
	}
	if !cmd.Actor.CanCreateElection() {
		logger.Warn("election create forbidden",
			"event", "election_create_forbidden",
			"module", "academic-governance/election-service",
			"layer", "application",
			"actor_id", cmd.Actor.StudentID,
			"role", string(cmd.Actor.Role),
		)
		return CreateElectionResult{}, domainerrors.ErrForbidden
	}

	title := strings.TrimSpace(cmd.Title)
	className := strings.TrimSpace(cmd.ClassName)
	branch := strings.TrimSpace(cmd.Branch)
	academicYear := strings.TrimSpace(cmd.AcademicYear)
	if title == "" || className == "" || branch == "" || academicYear == "" {
		return CreateElectionResult{}, domainerrors.ErrInvalidElectionInput
	}
	if len(cmd.Candidates) < MinCandidates || len(cmd.Candidates) > MaxCandidates {
		return CreateElectionResult{}, domainerrors.ErrInvalidCandidateCount
	}
	candidates := normaliseCandidates(cmd.Candidates)
	if len(candidates) < MinCandidates {
		logger.Warn("election create rejected after candidate dedup",
			"event", "election_create_candidates_collapsed",
			"module", "academic-governance/election-service",
			"layer", "application",
			"raw_count", len(cmd.Candidates),
			"unique_count", len(candidates),
		)
		return CreateElectionResult{}, domainerrors.ErrInvalidCandidateCount
	}

	now := uc.now()
	key := strings.TrimSpace(cmd.IdempotencyKey)
	var claim *ports.IdempotencyRecord
	if key != "" && uc.Idempotency != nil {
		requestHash, err := hashRequest(map[string]any{
			"op":            "create_election",
			"actor_id":      strings.TrimSpace(cmd.Actor.StudentID),
			"title":         title,
			"class_name":    className,
			"branch":        branch,
			"academic_year": academicYear,
			"closes_at":     cmd.ClosesAt,
			"candidates":    candidates,
		})
		if err != nil {
			return CreateElectionResult{}, err
		}
		if result, found, err := uc.replay(ctx, key, requestHash, now); err != nil || found {
			return result, err
		}
		claim = &ports.IdempotencyRecord{
			Key:         key,
			RequestHash: requestHash,
			ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
		}
	}

	if err := uc.ensureCandidatesExist(ctx, className, candidates); err != nil {
		return CreateElectionResult{}, err
	}

	electionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CreateElectionResult{}, err
	}
	var closesAt *time.Time
	if cmd.ClosesAt != nil {
		value := cmd.ClosesAt.UTC()
		closesAt = &value
	}
	election := entities.Election{
		ElectionID:   electionID,
		Title:        title,
		ClassName:    className,
		Branch:       branch,
		AcademicYear: academicYear,
		Status:       entities.ElectionStatusOpen,
		ClosesAt:     closesAt,
		Candidates:   candidates,
		Voters:       []string{},
		Winners:      []entities.Winner{},
		CreatedBy:    strings.TrimSpace(cmd.Actor.StudentID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	event, err := newElectionEnvelope(ctx, uc.IDGen, EventElectionCreated, electionID, now, map[string]any{
		"election_id":     electionID,
		"title":           title,
		"class_name":      className,
		"branch":          branch,
		"academic_year":   academicYear,
		"candidate_count": len(candidates),
		"created_by":      election.CreatedBy,
		"occurred_at":     now.Format(time.RFC3339),
	})
	if err != nil {
		return CreateElectionResult{}, err
	}
	if err := uc.Elections.CreateElection(ctx, election, event, claim); err != nil {
		if errors.Is(err, domainerrors.ErrIdempotencyKeyTaken) && claim != nil {
			// Another request with the same key committed first.
			result, found, replayErr := uc.replay(ctx, key, claim.RequestHash, now)
			if replayErr != nil {
				return CreateElectionResult{}, replayErr
			}
			if found {
				return result, nil
			}
			return CreateElectionResult{}, domainerrors.ErrIdempotencyConflict
		}
		logger.Error("election create failed",
			"event", "election_create_failed",
			"module", "academic-governance/election-service",
			"layer", "application",
			"election_id", electionID,
			"error", err.Error(),
		)
		return CreateElectionResult{}, err
	}

	logger.Info("election created",
		"event", "election_created",
		"module", "academic-governance/election-service",
		"layer", "application",
		"election_id", electionID,
		"class_name", className,
		"candidate_count", len(candidates),
	)
	return CreateElectionResult{Election: election}, nil
}

// replay returns the election recorded under key. A record for a different
// request is ErrIdempotencyConflict.
func (uc CreateElectionUseCase) replay(ctx context.Context, key string, requestHash string, now time.Time) (CreateElectionResult, bool, error) {
	record, found, err := uc.Idempotency.Get(ctx, key, now)
	if err != nil || !found {
		return CreateElectionResult{}, false, err
	}
	if record.RequestHash != requestHash {
		return CreateElectionResult{}, false, domainerrors.ErrIdempotencyConflict
	}
	election, err := uc.Elections.GetElection(ctx, record.ElectionID)
	if err != nil {
		return CreateElectionResult{}, false, err
	}
	application.ResolveLogger(uc.Logger).Info("election create replayed",
		"event", "election_create_replayed",
		"module", "academic-governance/election-service",
		"layer", "application",
		"election_id", election.ElectionID,
	)
	return CreateElectionResult{Election: election, Replayed: true}, true, nil
}

func (uc CreateElectionUseCase) ensureCandidatesExist(ctx context.Context, className string, candidates []entities.Candidate) error {
	ids := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, ok := seen[candidate.StudentID]; ok {
			continue
		}
		seen[candidate.StudentID] = struct{}{}
		ids = append(ids, candidate.StudentID)
	}

	students, err := uc.Students.ListStudentsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(students) != len(ids) {
		return domainerrors.ErrStudentNotFound
	}
	for _, student := range students {
		if student.ClassName != className {
			return domainerrors.ErrCandidateClassMismatch
		}
	}
	return nil
}

// normaliseCandidates drops malformed ids and collapses duplicate
// (student, position) pairs. The last duplicate wins but keeps the slot of
// the first occurrence.
func normaliseCandidates(inputs []CandidateInput) []entities.Candidate {
	order := make([]string, 0, len(inputs))
	unique := make(map[string]entities.Candidate, len(inputs))
	for _, input := range inputs {
		studentID := strings.TrimSpace(input.StudentID)
		if _, err := uuid.Parse(studentID); err != nil {
			continue
		}
		position := entities.NormalizePosition(input.Position)
		key := studentID + "-" + string(position)
		if _, exists := unique[key]; !exists {
			order = append(order, key)
		}
		unique[key] = entities.Candidate{
			StudentID: studentID,
			Position:  position,
		}
	}

	candidates := make([]entities.Candidate, 0, len(order))
	for _, key := range order {
		candidates = append(candidates, unique[key])
	}
	return candidates
}

func (uc CreateElectionUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func (uc CreateElectionUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}
