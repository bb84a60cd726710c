package entities

import (
	"strings"
	"time"
)

type ElectionStatus string

const (
	ElectionStatusOpen   ElectionStatus = "OPEN"
	ElectionStatusClosed ElectionStatus = "CLOSED"
)

// ParseElectionStatus accepts OPEN/CLOSED in any case.
func ParseElectionStatus(raw string) (ElectionStatus, bool) {
	switch ElectionStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case ElectionStatusOpen:
		return ElectionStatusOpen, true
	case ElectionStatusClosed:
		return ElectionStatusClosed, true
	default:
		return "", false
	}
}

type Position string

const (
	PositionCR Position = "CR"
	PositionGR Position = "GR"
)

// NormalizePosition maps anything other than an explicit GR to CR.
func NormalizePosition(raw string) Position {
	if strings.TrimSpace(raw) == string(PositionGR) {
		return PositionGR
	}
	return PositionCR
}

type Candidate struct {
	StudentID string
	Position  Position
	Votes     int
}

type Winner struct {
	Position  Position
	StudentID string
}

// Election is the aggregate root for one class ballot. Candidates keep their
// creation order; Voters is only used for membership tests.
type Election struct {
	ElectionID     string
	Title          string
	ClassName      string
	Branch         string
	AcademicYear   string
	Status         ElectionStatus
	ClosesAt       *time.Time
	Candidates     []Candidate
	Voters         []string
	ResultDeclared bool
	IsDraw         bool
	WinnerID       string
	Winners        []Winner
	CreatedBy      string
	ClosedBy       string
	ClosedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsOpen is derived on every call. An expired closesAt makes the election
// not-open even while Status still reads OPEN.
func (e Election) IsOpen(now time.Time) bool {
	if e.Status != ElectionStatusOpen {
		return false
	}
	if e.ClosesAt != nil && now.UTC().After(e.ClosesAt.UTC()) {
		return false
	}
	return true
}

func (e Election) IsClosed() bool {
	return e.Status == ElectionStatusClosed
}

func (e Election) HasVoted(studentID string) bool {
	studentID = strings.TrimSpace(studentID)
	for _, voter := range e.Voters {
		if voter == studentID {
			return true
		}
	}
	return false
}

// FindCandidate returns the first candidate entry for the student, in
// creation order.
func (e Election) FindCandidate(studentID string) (Candidate, int, bool) {
	studentID = strings.TrimSpace(studentID)
	for index, candidate := range e.Candidates {
		if candidate.StudentID == studentID {
			return candidate, index, true
		}
	}
	return Candidate{}, -1, false
}

func (e Election) CandidatesFor(position Position) []Candidate {
	items := make([]Candidate, 0, len(e.Candidates))
	for _, candidate := range e.Candidates {
		if candidate.Position == position {
			items = append(items, candidate)
		}
	}
	return items
}

func (e Election) TotalVotes() int {
	total := 0
	for _, candidate := range e.Candidates {
		total += candidate.Votes
	}
	return total
}

// StudentIDs lists every student referenced by the election once, in first
// appearance order. Used to expand references for display.
func (e Election) StudentIDs() []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(e.Candidates)+2)
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, candidate := range e.Candidates {
		add(candidate.StudentID)
	}
	for _, winner := range e.Winners {
		add(winner.StudentID)
	}
	add(e.WinnerID)
	add(e.CreatedBy)
	return ids
}

// Clone deep-copies the slices so callers can mutate freely.
func (e Election) Clone() Election {
	out := e
	out.Candidates = append([]Candidate(nil), e.Candidates...)
	out.Voters = append([]string(nil), e.Voters...)
	out.Winners = append([]Winner(nil), e.Winners...)
	if e.ClosesAt != nil {
		closesAt := e.ClosesAt.UTC()
		out.ClosesAt = &closesAt
	}
	if e.ClosedAt != nil {
		closedAt := e.ClosedAt.UTC()
		out.ClosedAt = &closedAt
	}
	return out
}
