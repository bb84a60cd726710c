package queries

import (
	"context"
	"strings"

	"campus/contexts/academic-governance/election-service/domain/entities"
	domainerrors "campus/contexts/academic-governance/election-service/domain/errors"
	"campus/contexts/academic-governance/election-service/ports"

	"github.com/google/uuid"
)

type ListElectionsQuery struct {
	Status        string
	ClassName     string
	Branch        string
	IncludeClosed bool
}

type ElectionsUseCase struct {
	Elections ports.ElectionRepository
	Students  ports.StudentDirectory
}

// ListElections shows OPEN elections unless the caller names a status or asks
// for closed ones too. Results are newest first.
func (uc ElectionsUseCase) ListElections(ctx context.Context, query ListElectionsQuery) ([]entities.Election, error) {
	filter := ports.ElectionFilter{
		ClassName: strings.TrimSpace(query.ClassName),
		Branch:    strings.TrimSpace(query.Branch),
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, ok := entities.ParseElectionStatus(raw)
		if !ok {
			return nil, domainerrors.ErrInvalidElectionFilter
		}
		filter.Status = status
	} else if !query.IncludeClosed {
		filter.Status = entities.ElectionStatusOpen
	}
	return uc.Elections.ListElections(ctx, filter)
}

func (uc ElectionsUseCase) GetElection(ctx context.Context, electionID string) (entities.Election, error) {
	electionID = strings.TrimSpace(electionID)
	if _, err := uuid.Parse(electionID); err != nil {
		return entities.Election{}, domainerrors.ErrInvalidElectionID
	}
	return uc.Elections.GetElection(ctx, electionID)
}

// ResolveStudents loads every student referenced by the elections, keyed by id.
// Missing students are simply absent from the map.
func (uc ElectionsUseCase) ResolveStudents(ctx context.Context, elections ...entities.Election) (map[string]ports.StudentProjection, error) {
	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, election := range elections {
		for _, id := range election.StudentIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	resolved := make(map[string]ports.StudentProjection, len(ids))
	if len(ids) == 0 || uc.Students == nil {
		return resolved, nil
	}
	students, err := uc.Students.ListStudentsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, student := range students {
		resolved[student.StudentID] = student
	}
	return resolved, nil
}
