package services

import (
	"testing"

	"campus/contexts/academic-governance/election-service/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crCandidates(votes map[string]int, order ...string) []entities.Candidate {
	items := make([]entities.Candidate, 0, len(order))
	for _, id := range order {
		items = append(items, entities.Candidate{
			StudentID: id,
			Position:  entities.PositionCR,
			Votes:     votes[id],
		})
	}
	return items
}

func TestTallyNoCandidates(t *testing.T) {
	result := Tally(nil)

	assert.Equal(t, TallyNoCandidates, result.Outcome)
	assert.Empty(t, result.WinnerID)
	assert.Empty(t, result.Winners)
	assert.False(t, result.IsDraw)
}

func TestTallyNoVotesCast(t *testing.T) {
	result := Tally(crCandidates(map[string]int{}, "a", "b", "c"))

	assert.Equal(t, TallyNoVotesCast, result.Outcome)
	assert.Empty(t, result.WinnerID)
	assert.Empty(t, result.Winners)
	assert.False(t, result.IsDraw)
}

func TestTallyClearWinner(t *testing.T) {
	result := Tally(crCandidates(map[string]int{"a": 5, "b": 3}, "a", "b"))

	require.Equal(t, TallyClearWinner, result.Outcome)
	assert.Equal(t, "a", result.WinnerID)
	assert.Equal(t, []entities.Winner{{Position: entities.PositionCR, StudentID: "a"}}, result.Winners)
	assert.Equal(t, 5, result.TopVotes)
	assert.False(t, result.IsDraw)
}

func TestTallyClearWinnerIndependentOfOrder(t *testing.T) {
	result := Tally(crCandidates(map[string]int{"a": 1, "b": 4, "c": 2}, "a", "b", "c"))

	require.Equal(t, TallyClearWinner, result.Outcome)
	assert.Equal(t, "b", result.WinnerID)
}

func TestTallyDrawIgnoresTrailingCandidates(t *testing.T) {
	result := Tally(crCandidates(map[string]int{"a": 5, "b": 5, "c": 2}, "a", "b", "c"))

	require.Equal(t, TallyDraw, result.Outcome)
	assert.True(t, result.IsDraw)
	assert.Empty(t, result.WinnerID)
	assert.Empty(t, result.Winners)
	assert.ElementsMatch(t, []string{"a", "b"}, result.Tied)
}

func TestTallyDrawHasNoTieBreak(t *testing.T) {
	for _, order := range [][]string{{"a", "b"}, {"b", "a"}} {
		result := Tally(crCandidates(map[string]int{"a": 1, "b": 1}, order...))
		assert.Equal(t, TallyDraw, result.Outcome, "order %v", order)
		assert.Empty(t, result.WinnerID, "order %v", order)
	}
}

func TestTallySingleCandidateWithVotesWins(t *testing.T) {
	result := Tally(crCandidates(map[string]int{"a": 1}, "a"))

	assert.Equal(t, TallyClearWinner, result.Outcome)
	assert.Equal(t, "a", result.WinnerID)
}
