package http

import "time"

type CandidateRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	// Position is GR only when exactly "GR"; any other value means CR.
	Position string `json:"position,omitempty"`
}

type CreateElectionRequest struct {
	Title        string             `json:"title" validate:"required"`
	ClassName    string             `json:"className" validate:"required"`
	Branch       string             `json:"branch" validate:"required"`
	AcademicYear string             `json:"acadmicYear" validate:"required"`
	ClosesAt     *time.Time         `json:"closesAt,omitempty"`
	Candidates   []CandidateRequest `json:"candidates" validate:"required,min=2,max=8,dive"`
}

type VoteRequest struct {
	CandidateID string `json:"candidateId" validate:"required"`
}

type ListElectionsRequest struct {
	Status        string
	ClassName     string
	Branch        string
	IncludeClosed bool
}

// StudentRef is the expanded form of a student reference. Only ID is set
// when the student no longer exists.
type StudentRef struct {
	ID        string `json:"id"`
	IDNo      string `json:"idNo,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	ClassName string `json:"class,omitempty"`
}

type CandidateResponse struct {
	Student  StudentRef `json:"student"`
	Position string     `json:"position"`
	Votes    int        `json:"votes"`
}

type WinnerResponse struct {
	Position string     `json:"position"`
	Student  StudentRef `json:"student"`
}

type ElectionResponse struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	ClassName      string              `json:"className"`
	Branch         string              `json:"branch"`
	AcademicYear   string              `json:"acadmicYear"`
	Status         string              `json:"status"`
	IsOpen         bool                `json:"isOpen"`
	ClosesAt       *time.Time          `json:"closesAt,omitempty"`
	Candidates     []CandidateResponse `json:"candidates"`
	VoterCount     int                 `json:"voterCount"`
	HasVoted       bool                `json:"hasVoted"`
	ResultDeclared bool                `json:"resultDeclared"`
	IsDraw         bool                `json:"isDraw"`
	Winner         *StudentRef         `json:"winner"`
	Winners        []WinnerResponse    `json:"winners"`
	CreatedBy      StudentRef          `json:"createdBy"`
	ClosedAt       *time.Time          `json:"closedAt,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
	Replayed       bool                `json:"replayed,omitempty"`
}

type ListElectionsResponse struct {
	Items []ElectionResponse `json:"items"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
