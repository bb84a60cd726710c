package electionservice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	electionservice "campus/contexts/academic-governance/election-service"
	"campus/contexts/academic-governance/election-service/application/commands"
	"campus/contexts/academic-governance/election-service/domain/entities"
	domainerrors "campus/contexts/academic-governance/election-service/domain/errors"
	"campus/contexts/academic-governance/election-service/ports"
	httptransport "campus/contexts/academic-governance/election-service/transport/http"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const className = "CSE-3"

type fixture struct {
	module  electionservice.Module
	faculty entities.Actor
	voters  []entities.Actor
	ids     map[string]string
}

// newFixture registers a faculty member plus the named students of CSE-3.
func newFixture(t *testing.T, names ...string) fixture {
	t.Helper()
	module := electionservice.NewInMemoryModule(nil, nil)
	f := fixture{
		module: module,
		ids:    make(map[string]string),
		faculty: entities.Actor{
			StudentID: uuid.NewString(),
			Role:      entities.RoleFaculty,
		},
	}
	module.Store.SetStudent(ports.StudentProjection{
		StudentID: f.faculty.StudentID,
		Name:      "Faculty",
		Role:      entities.RoleFaculty,
	})
	for _, name := range names {
		id := uuid.NewString()
		f.ids[name] = id
		module.Store.SetStudent(ports.StudentProjection{
			StudentID: id,
			IDNo:      "R-" + name,
			Name:      name,
			Email:     name + "@campus.test",
			ClassName: className,
			Role:      entities.RoleStudent,
		})
	}
	return f
}

func (f *fixture) addVoters(t *testing.T, count int) []entities.Actor {
	t.Helper()
	voters := make([]entities.Actor, 0, count)
	for i := 0; i < count; i++ {
		voter := entities.Actor{StudentID: uuid.NewString(), Role: entities.RoleStudent, ClassName: className}
		f.module.Store.SetStudent(ports.StudentProjection{
			StudentID: voter.StudentID,
			ClassName: className,
			Role:      entities.RoleStudent,
		})
		voters = append(voters, voter)
	}
	f.voters = append(f.voters, voters...)
	return voters
}

func (f fixture) create(t *testing.T, candidates ...string) httptransport.ElectionResponse {
	t.Helper()
	request := httptransport.CreateElectionRequest{
		Title:        "CR election",
		ClassName:    className,
		Branch:       "CSE",
		AcademicYear: "E3",
	}
	for _, name := range candidates {
		request.Candidates = append(request.Candidates, httptransport.CandidateRequest{StudentID: f.ids[name]})
	}
	election, err := f.module.Handler.CreateElectionHandler(context.Background(), f.faculty, "", request)
	require.NoError(t, err)
	return election
}

// castVotes spreads fresh voters over the candidates, one voter per vote.
func (f *fixture) castVotes(t *testing.T, electionID string, votes map[string]int) {
	t.Helper()
	for name, count := range votes {
		for _, voter := range f.addVoters(t, count) {
			_, err := f.module.Handler.VoteHandler(context.Background(), voter, electionID, httptransport.VoteRequest{
				CandidateID: f.ids[name],
			})
			require.NoError(t, err)
		}
	}
}

func (f fixture) roleOf(t *testing.T, name string) entities.Role {
	t.Helper()
	student, ok := f.module.Store.Student(f.ids[name])
	require.True(t, ok)
	return student.Role
}

func countCRs(f fixture) int {
	count := 0
	for _, id := range f.ids {
		if student, ok := f.module.Store.Student(id); ok && student.Role == entities.RoleCR {
			count++
		}
	}
	return count
}

func TestCreateElectionExpandsCandidates(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	election := f.create(t, "alice", "bob")

	assert.Equal(t, "OPEN", election.Status)
	assert.True(t, election.IsOpen)
	assert.False(t, election.ResultDeclared)
	require.Len(t, election.Candidates, 2)
	assert.Equal(t, "alice", election.Candidates[0].Student.Name)
	assert.Equal(t, "CR", election.Candidates[0].Position)
	assert.Zero(t, election.Candidates[0].Votes)
	assert.Equal(t, f.faculty.StudentID, election.CreatedBy.ID)
}

func TestCreateElectionCandidateCountBounds(t *testing.T) {
	f := newFixture(t, "a", "b", "c", "d", "e", "f", "g", "h", "i")
	ctx := context.Background()

	one := httptransport.CreateElectionRequest{
		Title: "t", ClassName: className, Branch: "CSE", AcademicYear: "E3",
		Candidates: []httptransport.CandidateRequest{{StudentID: f.ids["a"]}},
	}
	_, err := f.module.Handler.CreateElectionHandler(ctx, f.faculty, "", one)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCandidateCount)

	nine := one
	nine.Candidates = nil
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"} {
		nine.Candidates = append(nine.Candidates, httptransport.CandidateRequest{StudentID: f.ids[name]})
	}
	_, err = f.module.Handler.CreateElectionHandler(ctx, f.faculty, "", nine)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCandidateCount)

	duplicate := one
	duplicate.Candidates = []httptransport.CandidateRequest{
		{StudentID: f.ids["a"], Position: "CR"},
		{StudentID: f.ids["a"]},
	}
	_, err = f.module.Handler.CreateElectionHandler(ctx, f.faculty, "", duplicate)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCandidateCount)
}

func TestCreateElectionRejectsForeignOrMissingCandidates(t *testing.T) {
	f := newFixture(t, "alice")
	outsider := uuid.NewString()
	f.module.Store.SetStudent(ports.StudentProjection{StudentID: outsider, ClassName: "ECE-1", Role: entities.RoleStudent})
	ctx := context.Background()

	request := httptransport.CreateElectionRequest{
		Title: "t", ClassName: className, Branch: "CSE", AcademicYear: "E3",
		Candidates: []httptransport.CandidateRequest{{StudentID: f.ids["alice"]}, {StudentID: outsider}},
	}
	_, err := f.module.Handler.CreateElectionHandler(ctx, f.faculty, "", request)
	assert.ErrorIs(t, err, domainerrors.ErrCandidateClassMismatch)

	request.Candidates[1].StudentID = uuid.NewString()
	_, err = f.module.Handler.CreateElectionHandler(ctx, f.faculty, "", request)
	assert.ErrorIs(t, err, domainerrors.ErrStudentNotFound)
}

func TestCreateElectionRoles(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	request := httptransport.CreateElectionRequest{
		Title: "t", ClassName: className, Branch: "CSE", AcademicYear: "E3",
		Candidates: []httptransport.CandidateRequest{{StudentID: f.ids["alice"]}, {StudentID: f.ids["bob"]}},
	}
	student := entities.Actor{StudentID: f.ids["alice"], Role: entities.RoleStudent, ClassName: className}
	_, err := f.module.Handler.CreateElectionHandler(context.Background(), student, "", request)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	cr := entities.Actor{StudentID: f.ids["bob"], Role: entities.RoleCR, ClassName: className}
	_, err = f.module.Handler.CreateElectionHandler(context.Background(), cr, "", request)
	assert.NoError(t, err)

	blank := request
	blank.Title = "  "
	_, err = f.module.Handler.CreateElectionHandler(context.Background(), f.faculty, "", blank)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidElectionInput)
}

func TestCreateElectionIdempotencyReplay(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	request := httptransport.CreateElectionRequest{
		Title: "t", ClassName: className, Branch: "CSE", AcademicYear: "E3",
		Candidates: []httptransport.CandidateRequest{{StudentID: f.ids["alice"]}, {StudentID: f.ids["bob"]}},
	}
	ctx := context.Background()
	first, err := f.module.Handler.CreateElectionHandler(ctx, f.faculty, "idem-1", request)
	require.NoError(t, err)
	second, err := f.module.Handler.CreateElectionHandler(ctx, f.faculty, "idem-1", request)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ID, second.ID)

	request.Title = "changed"
	_, err = f.module.Handler.CreateElectionHandler(ctx, f.faculty, "idem-1", request)
	assert.ErrorIs(t, err, domainerrors.ErrIdempotencyConflict)
}

func TestCreateElectionConcurrentSameKeyStoresOneElection(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	request := httptransport.CreateElectionRequest{
		Title: "t", ClassName: className, Branch: "CSE", AcademicYear: "E3",
		Candidates: []httptransport.CandidateRequest{{StudentID: f.ids["alice"]}, {StudentID: f.ids["bob"]}},
	}

	const attempts = 16
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]int)
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			response, err := f.module.Handler.CreateElectionHandler(context.Background(), f.faculty, "idem-race", request)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[response.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	stored, err := f.module.Store.ListElections(context.Background(), ports.ElectionFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

// missFirstGet hides the first lookup, as when two requests race past the
// replay check before either has committed.
type missFirstGet struct {
	ports.IdempotencyStore
	mu     sync.Mutex
	missed bool
}

func (m *missFirstGet) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	m.mu.Lock()
	first := !m.missed
	m.missed = true
	m.mu.Unlock()
	if first {
		return ports.IdempotencyRecord{}, false, nil
	}
	return m.IdempotencyStore.Get(ctx, key, now)
}

func TestCreateElectionLosingClaimReplaysOrConflicts(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	request := httptransport.CreateElectionRequest{
		Title: "t", ClassName: className, Branch: "CSE", AcademicYear: "E3",
		Candidates: []httptransport.CandidateRequest{{StudentID: f.ids["alice"]}, {StudentID: f.ids["bob"]}},
	}
	first, err := f.module.Handler.CreateElectionHandler(ctx, f.faculty, "idem-late", request)
	require.NoError(t, err)

	store := f.module.Store
	useCase := func() commands.CreateElectionUseCase {
		return commands.CreateElectionUseCase{
			Elections:   store,
			Students:    store,
			Idempotency: &missFirstGet{IdempotencyStore: store},
			Clock:       store,
			IDGen:       store,
		}
	}
	cmd := commands.CreateElectionCommand{
		Actor:          f.faculty,
		IdempotencyKey: "idem-late",
		Title:          "t",
		ClassName:      className,
		Branch:         "CSE",
		AcademicYear:   "E3",
		Candidates: []commands.CandidateInput{
			{StudentID: f.ids["alice"]},
			{StudentID: f.ids["bob"]},
		},
	}

	replayed, err := useCase().CreateElection(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, replayed.Replayed)
	assert.Equal(t, first.ID, replayed.Election.ElectionID)

	cmd.Title = "different"
	_, err = useCase().CreateElection(ctx, cmd)
	assert.ErrorIs(t, err, domainerrors.ErrIdempotencyConflict)

	stored, err := store.ListElections(ctx, ports.ElectionFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestCreateElectionReusesExpiredKey(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start
	f.module.Store.SetNow(func() time.Time { return now })

	request := httptransport.CreateElectionRequest{
		Title: "t", ClassName: className, Branch: "CSE", AcademicYear: "E3",
		Candidates: []httptransport.CandidateRequest{{StudentID: f.ids["alice"]}, {StudentID: f.ids["bob"]}},
	}
	first, err := f.module.Handler.CreateElectionHandler(ctx, f.faculty, "idem-old", request)
	require.NoError(t, err)

	now = start.Add(25 * time.Hour)
	request.Title = "next term"
	second, err := f.module.Handler.CreateElectionHandler(ctx, f.faculty, "idem-old", request)
	require.NoError(t, err)
	assert.False(t, second.Replayed)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestVoteRejections(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	election := f.create(t, "alice", "bob")
	voter := f.addVoters(t, 1)[0]
	ctx := context.Background()

	outsider := entities.Actor{StudentID: uuid.NewString(), Role: entities.RoleStudent, ClassName: "ECE-1"}
	_, err := f.module.Handler.VoteHandler(ctx, outsider, election.ID, httptransport.VoteRequest{CandidateID: f.ids["alice"]})
	assert.ErrorIs(t, err, domainerrors.ErrVoterNotEligible)

	_, err = f.module.Handler.VoteHandler(ctx, voter, election.ID, httptransport.VoteRequest{CandidateID: f.ids["carol"]})
	assert.ErrorIs(t, err, domainerrors.ErrCandidateNotFound)

	_, err = f.module.Handler.VoteHandler(ctx, voter, uuid.NewString(), httptransport.VoteRequest{CandidateID: f.ids["alice"]})
	assert.ErrorIs(t, err, domainerrors.ErrElectionNotFound)

	_, err = f.module.Handler.VoteHandler(ctx, voter, "not-a-uuid", httptransport.VoteRequest{CandidateID: f.ids["alice"]})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidElectionID)

	ack, err := f.module.Handler.VoteHandler(ctx, voter, election.ID, httptransport.VoteRequest{CandidateID: f.ids["alice"]})
	require.NoError(t, err)
	assert.True(t, ack.Success)

	_, err = f.module.Handler.VoteHandler(ctx, voter, election.ID, httptransport.VoteRequest{CandidateID: f.ids["bob"]})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyVoted)

	_, _, err = f.module.Handler.CloseElectionHandler(ctx, f.faculty, election.ID)
	require.NoError(t, err)
	late := f.addVoters(t, 1)[0]
	_, err = f.module.Handler.VoteHandler(ctx, late, election.ID, httptransport.VoteRequest{CandidateID: f.ids["alice"]})
	assert.ErrorIs(t, err, domainerrors.ErrElectionClosed)
}

func TestVoteRejectedAfterDeadline(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	closesAt := time.Now().UTC().Add(time.Hour)
	election, err := f.module.Handler.CreateElectionHandler(context.Background(), f.faculty, "", httptransport.CreateElectionRequest{
		Title: "t", ClassName: className, Branch: "CSE", AcademicYear: "E3",
		ClosesAt:   &closesAt,
		Candidates: []httptransport.CandidateRequest{{StudentID: f.ids["alice"]}, {StudentID: f.ids["bob"]}},
	})
	require.NoError(t, err)

	f.module.Store.SetNow(func() time.Time { return closesAt.Add(time.Minute) })
	voter := f.addVoters(t, 1)[0]
	_, err = f.module.Handler.VoteHandler(context.Background(), voter, election.ID, httptransport.VoteRequest{CandidateID: f.ids["alice"]})
	assert.ErrorIs(t, err, domainerrors.ErrElectionClosed)

	fetched, err := f.module.Handler.GetElectionHandler(context.Background(), voter, election.ID)
	require.NoError(t, err)
	assert.Equal(t, "OPEN", fetched.Status)
	assert.False(t, fetched.IsOpen)
}

func TestConcurrentVotesKeepCountersConsistent(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	election := f.create(t, "alice", "bob")
	voters := f.addVoters(t, 40)

	var wg sync.WaitGroup
	for index, voter := range voters {
		candidate := f.ids["alice"]
		if index%3 == 0 {
			candidate = f.ids["bob"]
		}
		// Every voter tries twice at once; exactly one attempt may land.
		for attempt := 0; attempt < 2; attempt++ {
			wg.Add(1)
			go func(voter entities.Actor, candidate string) {
				defer wg.Done()
				_, err := f.module.Handler.VoteHandler(context.Background(), voter, election.ID, httptransport.VoteRequest{CandidateID: candidate})
				if err != nil && !errors.Is(err, domainerrors.ErrAlreadyVoted) {
					t.Errorf("unexpected vote error: %v", err)
				}
			}(voter, candidate)
		}
	}
	wg.Wait()

	stored, err := f.module.Store.GetElection(context.Background(), election.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Voters, len(voters))
	assert.Equal(t, len(stored.Voters), stored.TotalVotes())

	seen := make(map[string]struct{})
	for _, voter := range stored.Voters {
		_, duplicate := seen[voter]
		assert.False(t, duplicate, "voter %s recorded twice", voter)
		seen[voter] = struct{}{}
	}
}

func TestCloseClearWinnerPromotesAndDemotes(t *testing.T) {
	f := newFixture(t, "alice", "bob", "incumbent")
	f.module.Store.SetStudent(ports.StudentProjection{
		StudentID: f.ids["incumbent"],
		Name:      "incumbent",
		ClassName: className,
		Role:      entities.RoleCR,
	})
	election := f.create(t, "alice", "bob")
	f.castVotes(t, election.ID, map[string]int{"alice": 5, "bob": 3})

	closed, alreadyClosed, err := f.module.Handler.CloseElectionHandler(context.Background(), f.faculty, election.ID)
	require.NoError(t, err)
	assert.False(t, alreadyClosed)
	assert.Equal(t, "CLOSED", closed.Status)
	assert.True(t, closed.ResultDeclared)
	assert.False(t, closed.IsDraw)
	require.NotNil(t, closed.Winner)
	assert.Equal(t, f.ids["alice"], closed.Winner.ID)
	require.Len(t, closed.Winners, 1)
	assert.Equal(t, "CR", closed.Winners[0].Position)

	assert.Equal(t, entities.RoleCR, f.roleOf(t, "alice"))
	assert.Equal(t, entities.RoleStudent, f.roleOf(t, "incumbent"))
	assert.Equal(t, 1, countCRs(f))
}

func TestStoreRejectsSecondCRInClass(t *testing.T) {
	f := newFixture(t, "alice", "bob", "incumbent")
	f.module.Store.SetStudent(ports.StudentProjection{
		StudentID: f.ids["incumbent"],
		Name:      "incumbent",
		ClassName: className,
		Role:      entities.RoleCR,
	})
	election := f.create(t, "alice", "bob")

	_, _, err := f.module.Store.CloseElection(context.Background(), election.ID,
		func(ctx context.Context, open entities.Election, roles ports.RoleStore) (ports.CloseResult, error) {
			if err := roles.SetStudentRole(ctx, f.ids["alice"], entities.RoleCR); err != nil {
				return ports.CloseResult{}, err
			}
			closed := open.Clone()
			closed.Status = entities.ElectionStatusClosed
			return ports.CloseResult{Election: closed}, nil
		})
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	assert.Equal(t, entities.RoleStudent, f.roleOf(t, "alice"))
	assert.Equal(t, entities.RoleCR, f.roleOf(t, "incumbent"))
	stored, err := f.module.Store.GetElection(context.Background(), election.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ElectionStatusOpen, stored.Status)
}

func TestCloseDrawLeavesRolesUntouched(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	election := f.create(t, "a", "b", "c")
	f.castVotes(t, election.ID, map[string]int{"a": 5, "b": 5, "c": 2})

	closed, _, err := f.module.Handler.CloseElectionHandler(context.Background(), f.faculty, election.ID)
	require.NoError(t, err)
	assert.True(t, closed.IsDraw)
	assert.Nil(t, closed.Winner)
	assert.Empty(t, closed.Winners)
	assert.Zero(t, countCRs(f))
}

func TestCloseWithoutVotesDeclaresNoWinner(t *testing.T) {
	f := newFixture(t, "a", "b")
	election := f.create(t, "a", "b")

	closed, _, err := f.module.Handler.CloseElectionHandler(context.Background(), f.faculty, election.ID)
	require.NoError(t, err)
	assert.True(t, closed.ResultDeclared)
	assert.False(t, closed.IsDraw)
	assert.Nil(t, closed.Winner)
	assert.Zero(t, countCRs(f))
}

func TestCloseIgnoresGRCandidates(t *testing.T) {
	f := newFixture(t, "a", "b", "g")
	election, err := f.module.Handler.CreateElectionHandler(context.Background(), f.faculty, "", httptransport.CreateElectionRequest{
		Title: "t", ClassName: className, Branch: "CSE", AcademicYear: "E3",
		Candidates: []httptransport.CandidateRequest{
			{StudentID: f.ids["a"]},
			{StudentID: f.ids["b"]},
			{StudentID: f.ids["g"], Position: "GR"},
		},
	})
	require.NoError(t, err)
	f.castVotes(t, election.ID, map[string]int{"a": 1, "g": 4})

	closed, _, err := f.module.Handler.CloseElectionHandler(context.Background(), f.faculty, election.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.Winner)
	assert.Equal(t, f.ids["a"], closed.Winner.ID)
	assert.Equal(t, entities.RoleStudent, f.roleOf(t, "g"))
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(t, "a", "b")
	election := f.create(t, "a", "b")
	f.castVotes(t, election.ID, map[string]int{"a": 2})

	first, alreadyClosed, err := f.module.Handler.CloseElectionHandler(context.Background(), f.faculty, election.ID)
	require.NoError(t, err)
	require.False(t, alreadyClosed)
	pendingAfterFirst, err := f.module.Store.ListPendingOutbox(context.Background(), 1000)
	require.NoError(t, err)

	second, alreadyClosed, err := f.module.Handler.CloseElectionHandler(context.Background(), f.faculty, election.ID)
	require.NoError(t, err)
	assert.True(t, alreadyClosed)
	assert.Equal(t, first, second)

	pendingAfterSecond, err := f.module.Store.ListPendingOutbox(context.Background(), 1000)
	require.NoError(t, err)
	assert.Len(t, pendingAfterSecond, len(pendingAfterFirst))
}

func TestConcurrentClosesPromoteOnce(t *testing.T) {
	f := newFixture(t, "a", "b")
	election := f.create(t, "a", "b")
	f.castVotes(t, election.ID, map[string]int{"a": 3, "b": 1})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, alreadyClosed, err := f.module.Handler.CloseElectionHandler(context.Background(), f.faculty, election.ID)
			if err != nil {
				t.Errorf("close failed: %v", err)
				return
			}
			if !alreadyClosed {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, countCRs(f))
}

func TestCloseRollsBackWhenRoleWriteFails(t *testing.T) {
	f := newFixture(t, "alice", "bob", "incumbent")
	f.module.Store.SetStudent(ports.StudentProjection{
		StudentID: f.ids["incumbent"],
		ClassName: className,
		Role:      entities.RoleCR,
	})
	election := f.create(t, "alice", "bob")
	f.castVotes(t, election.ID, map[string]int{"alice": 2})

	writeFailure := errors.New("identity store unavailable")
	f.module.Store.FailRoleWrite(f.ids["alice"], writeFailure)

	_, _, err := f.module.Handler.CloseElectionHandler(context.Background(), f.faculty, election.ID)
	require.ErrorIs(t, err, writeFailure)

	stored, err := f.module.Store.GetElection(context.Background(), election.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ElectionStatusOpen, stored.Status)
	assert.False(t, stored.ResultDeclared)
	assert.Equal(t, entities.RoleCR, f.roleOf(t, "incumbent"))
	assert.Equal(t, entities.RoleStudent, f.roleOf(t, "alice"))

	f.module.Store.FailRoleWrite(f.ids["alice"], nil)
	closed, _, err := f.module.Handler.CloseElectionHandler(context.Background(), f.faculty, election.ID)
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", closed.Status)
	assert.Equal(t, entities.RoleCR, f.roleOf(t, "alice"))
	assert.Equal(t, entities.RoleStudent, f.roleOf(t, "incumbent"))
}

func TestCloseRetriesAbortedTransactions(t *testing.T) {
	f := newFixture(t, "a", "b")
	election := f.create(t, "a", "b")
	store := &abortingStore{ElectionRepository: f.module.Store, aborts: 2}
	module := electionservice.NewModule(electionservice.Dependencies{
		Elections: store,
		Students:  f.module.Store,
		Clock:     f.module.Store,
		IDGen:     f.module.Store,
	})

	result, err := module.Handler.Close.CloseElection(context.Background(), commands.CloseElectionCommand{
		Actor:      f.faculty,
		ElectionID: election.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, entities.ElectionStatusClosed, result.Election.Status)
	assert.Equal(t, 3, store.calls)
}

func TestCloseAndDeleteRequireAdministrator(t *testing.T) {
	f := newFixture(t, "a", "b")
	election := f.create(t, "a", "b")
	cr := entities.Actor{StudentID: f.ids["a"], Role: entities.RoleCR, ClassName: className}

	_, _, err := f.module.Handler.CloseElectionHandler(context.Background(), cr, election.ID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
	_, err = f.module.Handler.DeleteElectionHandler(context.Background(), cr, election.ID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	ack, err := f.module.Handler.DeleteElectionHandler(context.Background(), f.faculty, election.ID)
	require.NoError(t, err)
	assert.True(t, ack.Success)
	_, err = f.module.Handler.GetElectionHandler(context.Background(), f.faculty, election.ID)
	assert.ErrorIs(t, err, domainerrors.ErrElectionNotFound)
}

func TestListElectionsDefaultsToOpen(t *testing.T) {
	f := newFixture(t, "a", "b")
	open := f.create(t, "a", "b")
	closed := f.create(t, "a", "b")
	_, _, err := f.module.Handler.CloseElectionHandler(context.Background(), f.faculty, closed.ID)
	require.NoError(t, err)
	ctx := context.Background()

	list, err := f.module.Handler.ListElectionsHandler(ctx, f.faculty, httptransport.ListElectionsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, open.ID, list.Items[0].ID)

	list, err = f.module.Handler.ListElectionsHandler(ctx, f.faculty, httptransport.ListElectionsRequest{IncludeClosed: true})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)

	list, err = f.module.Handler.ListElectionsHandler(ctx, f.faculty, httptransport.ListElectionsRequest{Status: "closed"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, closed.ID, list.Items[0].ID)

	_, err = f.module.Handler.ListElectionsHandler(ctx, f.faculty, httptransport.ListElectionsRequest{Status: "archived"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidElectionFilter)
}

type abortingStore struct {
	ports.ElectionRepository
	aborts int
	calls  int
}

func (s *abortingStore) CloseElection(ctx context.Context, electionID string, finalize ports.CloseFunc) (entities.Election, bool, error) {
	s.calls++
	if s.calls <= s.aborts {
		return entities.Election{}, false, domainerrors.ErrTransactionAborted
	}
	return s.ElectionRepository.CloseElection(ctx, electionID, finalize)
}
