package services

import "campus/contexts/academic-governance/election-service/domain/entities"

type TallyOutcome string

const (
	TallyNoCandidates TallyOutcome = "no_candidates"
	TallyNoVotesCast  TallyOutcome = "no_votes_cast"
	TallyClearWinner  TallyOutcome = "clear_winner"
	TallyDraw         TallyOutcome = "draw"
)

type TallyResult struct {
	Outcome  TallyOutcome
	WinnerID string
	Winners  []entities.Winner
	IsDraw   bool
	TopVotes int
	// Tied lists the students sharing the top count when Outcome is a draw.
	Tied []string
}

// Tally classifies CR candidates by vote count. A tie at the top count is a
// draw no matter how many candidates trail; there is no tie-break.
func Tally(candidates []entities.Candidate) TallyResult {
	if len(candidates) == 0 {
		return TallyResult{Outcome: TallyNoCandidates, Winners: []entities.Winner{}}
	}

	top := candidates[0].Votes
	for _, candidate := range candidates[1:] {
		if candidate.Votes > top {
			top = candidate.Votes
		}
	}
	if top <= 0 {
		return TallyResult{Outcome: TallyNoVotesCast, Winners: []entities.Winner{}}
	}

	leaders := make([]string, 0, 2)
	for _, candidate := range candidates {
		if candidate.Votes == top {
			leaders = append(leaders, candidate.StudentID)
		}
	}
	if len(leaders) > 1 {
		return TallyResult{
			Outcome:  TallyDraw,
			Winners:  []entities.Winner{},
			IsDraw:   true,
			TopVotes: top,
			Tied:     leaders,
		}
	}
	return TallyResult{
		Outcome:  TallyClearWinner,
		WinnerID: leaders[0],
		Winners: []entities.Winner{{
			Position:  entities.PositionCR,
			StudentID: leaders[0],
		}},
		TopVotes: top,
	}
}
