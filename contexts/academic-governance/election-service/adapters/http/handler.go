package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"campus/contexts/academic-governance/election-service/application/commands"
	"campus/contexts/academic-governance/election-service/application/queries"
	"campus/contexts/academic-governance/election-service/domain/entities"
	"campus/contexts/academic-governance/election-service/ports"
	httptransport "campus/contexts/academic-governance/election-service/transport/http"
)

type Handler struct {
	Create    commands.CreateElectionUseCase
	Votes     commands.VoteUseCase
	Close     commands.CloseElectionUseCase
	Delete    commands.DeleteElectionUseCase
	Elections queries.ElectionsUseCase
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (h Handler) CreateElectionHandler(
	ctx context.Context,
	actor entities.Actor,
	idempotencyKey string,
	req httptransport.CreateElectionRequest,
) (httptransport.ElectionResponse, error) {
	candidates := make([]commands.CandidateInput, 0, len(req.Candidates))
	for _, candidate := range req.Candidates {
		candidates = append(candidates, commands.CandidateInput{
			StudentID: candidate.StudentID,
			Position:  candidate.Position,
		})
	}
	result, err := h.Create.CreateElection(ctx, commands.CreateElectionCommand{
		Actor:          actor,
		IdempotencyKey: idempotencyKey,
		Title:          req.Title,
		ClassName:      req.ClassName,
		Branch:         req.Branch,
		AcademicYear:   req.AcademicYear,
		ClosesAt:       req.ClosesAt,
		Candidates:     candidates,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	response, err := h.expandOne(ctx, actor, result.Election)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	response.Replayed = result.Replayed
	return response, nil
}

func (h Handler) ListElectionsHandler(
	ctx context.Context,
	actor entities.Actor,
	req httptransport.ListElectionsRequest,
) (httptransport.ListElectionsResponse, error) {
	elections, err := h.Elections.ListElections(ctx, queries.ListElectionsQuery{
		Status:        req.Status,
		ClassName:     req.ClassName,
		Branch:        req.Branch,
		IncludeClosed: req.IncludeClosed,
	})
	if err != nil {
		return httptransport.ListElectionsResponse{}, err
	}
	students, err := h.Elections.ResolveStudents(ctx, elections...)
	if err != nil {
		return httptransport.ListElectionsResponse{}, err
	}
	now := h.now()
	items := make([]httptransport.ElectionResponse, 0, len(elections))
	for _, election := range elections {
		items = append(items, mapElection(election, students, actor, now))
	}
	return httptransport.ListElectionsResponse{Items: items}, nil
}

func (h Handler) GetElectionHandler(ctx context.Context, actor entities.Actor, electionID string) (httptransport.ElectionResponse, error) {
	election, err := h.Elections.GetElection(ctx, electionID)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return h.expandOne(ctx, actor, election)
}

func (h Handler) VoteHandler(
	ctx context.Context,
	actor entities.Actor,
	electionID string,
	req httptransport.VoteRequest,
) (httptransport.SuccessResponse, error) {
	if err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		Actor:       actor,
		ElectionID:  electionID,
		CandidateID: req.CandidateID,
	}); err != nil {
		return httptransport.SuccessResponse{}, err
	}
	return httptransport.SuccessResponse{Success: true}, nil
}

// CloseElectionHandler reports whether the call closed the election or found
// it already closed.
func (h Handler) CloseElectionHandler(ctx context.Context, actor entities.Actor, electionID string) (httptransport.ElectionResponse, bool, error) {
	result, err := h.Close.CloseElection(ctx, commands.CloseElectionCommand{
		Actor:      actor,
		ElectionID: electionID,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, false, err
	}
	response, err := h.expandOne(ctx, actor, result.Election)
	if err != nil {
		return httptransport.ElectionResponse{}, false, err
	}
	return response, result.AlreadyClosed, nil
}

func (h Handler) DeleteElectionHandler(ctx context.Context, actor entities.Actor, electionID string) (httptransport.SuccessResponse, error) {
	if err := h.Delete.DeleteElection(ctx, commands.DeleteElectionCommand{
		Actor:      actor,
		ElectionID: electionID,
	}); err != nil {
		return httptransport.SuccessResponse{}, err
	}
	return httptransport.SuccessResponse{Success: true}, nil
}

func (h Handler) expandOne(ctx context.Context, actor entities.Actor, election entities.Election) (httptransport.ElectionResponse, error) {
	students, err := h.Elections.ResolveStudents(ctx, election)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(election, students, actor, h.now()), nil
}

func (h Handler) now() time.Time {
	if h.Clock == nil {
		return time.Now().UTC()
	}
	return h.Clock.Now().UTC()
}

func mapElection(
	election entities.Election,
	students map[string]ports.StudentProjection,
	actor entities.Actor,
	now time.Time,
) httptransport.ElectionResponse {
	candidates := make([]httptransport.CandidateResponse, 0, len(election.Candidates))
	for _, candidate := range election.Candidates {
		candidates = append(candidates, httptransport.CandidateResponse{
			Student:  studentRef(students, candidate.StudentID),
			Position: string(candidate.Position),
			Votes:    candidate.Votes,
		})
	}
	winners := make([]httptransport.WinnerResponse, 0, len(election.Winners))
	for _, winner := range election.Winners {
		winners = append(winners, httptransport.WinnerResponse{
			Position: string(winner.Position),
			Student:  studentRef(students, winner.StudentID),
		})
	}
	var winner *httptransport.StudentRef
	if election.WinnerID != "" {
		ref := studentRef(students, election.WinnerID)
		winner = &ref
	}
	return httptransport.ElectionResponse{
		ID:             election.ElectionID,
		Title:          election.Title,
		ClassName:      election.ClassName,
		Branch:         election.Branch,
		AcademicYear:   election.AcademicYear,
		Status:         string(election.Status),
		IsOpen:         election.IsOpen(now),
		ClosesAt:       election.ClosesAt,
		Candidates:     candidates,
		VoterCount:     len(election.Voters),
		HasVoted:       election.HasVoted(actor.StudentID),
		ResultDeclared: election.ResultDeclared,
		IsDraw:         election.IsDraw,
		Winner:         winner,
		Winners:        winners,
		CreatedBy:      studentRef(students, election.CreatedBy),
		ClosedAt:       election.ClosedAt,
		CreatedAt:      election.CreatedAt,
		UpdatedAt:      election.UpdatedAt,
	}
}

func studentRef(students map[string]ports.StudentProjection, studentID string) httptransport.StudentRef {
	student, ok := students[studentID]
	if !ok {
		return httptransport.StudentRef{ID: studentID}
	}
	return httptransport.StudentRef{
		ID:        student.StudentID,
		IDNo:      student.IDNo,
		Name:      student.Name,
		Email:     student.Email,
		ClassName: student.ClassName,
	}
}
