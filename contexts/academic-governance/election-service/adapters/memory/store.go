package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"campus/contexts/academic-governance/election-service/domain/entities"
	domainerrors "campus/contexts/academic-governance/election-service/domain/errors"
	"campus/contexts/academic-governance/election-service/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	sequence  int
	published bool
}

// Store is the in-memory election repository used by tests and local runs.
// A single mutex stands in for the database row locks.
type Store struct {
	mu sync.RWMutex

	elections   map[string]entities.Election
	students    map[string]ports.StudentProjection
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	sequence    int

	roleFailure map[string]error

	clockMu sync.RWMutex
	now     func() time.Time
}

func NewStore(seed []entities.Election) *Store {
	elections := make(map[string]entities.Election, len(seed))
	for _, election := range seed {
		elections[election.ElectionID] = election.Clone()
	}
	return &Store{
		elections:   elections,
		students:    make(map[string]ports.StudentProjection),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
		roleFailure: make(map[string]error),
	}
}

func (s *Store) SetStudent(student ports.StudentProjection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	student.StudentID = strings.TrimSpace(student.StudentID)
	student.ClassName = strings.TrimSpace(student.ClassName)
	s.students[student.StudentID] = student
}

// Student returns the committed projection, for assertions.
func (s *Store) Student(studentID string) (ports.StudentProjection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.students[strings.TrimSpace(studentID)]
	return student, ok
}

// FailRoleWrite makes every role write for studentID return err until cleared
// with a nil error.
func (s *Store) FailRoleWrite(studentID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.roleFailure, strings.TrimSpace(studentID))
		return
	}
	s.roleFailure[strings.TrimSpace(studentID)] = err
}

func (s *Store) SetNow(now func() time.Time) {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	s.now = now
}

func (s *Store) CreateElection(
	_ context.Context,
	election entities.Election,
	event ports.EventEnvelope,
	idempotency *ports.IdempotencyRecord,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.elections[election.ElectionID]; exists {
		return domainerrors.ErrConflict
	}
	var claim ports.IdempotencyRecord
	if idempotency != nil {
		claim = ports.IdempotencyRecord{
			Key:         strings.TrimSpace(idempotency.Key),
			RequestHash: strings.TrimSpace(idempotency.RequestHash),
			ElectionID:  election.ElectionID,
			ExpiresAt:   idempotency.ExpiresAt.UTC(),
		}
		if existing, held := s.idempotency[claim.Key]; held && !election.CreatedAt.After(existing.ExpiresAt) {
			return domainerrors.ErrIdempotencyKeyTaken
		}
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	s.elections[election.ElectionID] = election.Clone()
	if idempotency != nil {
		s.idempotency[claim.Key] = claim
	}
	return nil
}

func (s *Store) GetElection(_ context.Context, electionID string) (entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return election.Clone(), nil
}

func (s *Store) ListElections(_ context.Context, filter ports.ElectionFilter) ([]entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Election, 0, len(s.elections))
	for _, election := range s.elections {
		if filter.Status != "" && election.Status != filter.Status {
			continue
		}
		if filter.ClassName != "" && election.ClassName != filter.ClassName {
			continue
		}
		if filter.Branch != "" && election.Branch != filter.Branch {
			continue
		}
		items = append(items, election.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ElectionID > items[j].ElectionID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) CastVote(_ context.Context, input ports.CastVoteInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	election, ok := s.elections[strings.TrimSpace(input.ElectionID)]
	if !ok {
		return domainerrors.ErrElectionNotFound
	}
	votedAt := input.VotedAt.UTC()
	if votedAt.IsZero() {
		votedAt = s.Now()
	}
	if !election.IsOpen(votedAt) {
		return domainerrors.ErrElectionClosed
	}
	voterID := strings.TrimSpace(input.VoterID)
	if election.HasVoted(voterID) {
		return domainerrors.ErrAlreadyVoted
	}
	_, index, found := election.FindCandidate(input.CandidateStudentID)
	if !found {
		return domainerrors.ErrCandidateNotFound
	}
	if err := s.appendOutboxLocked(input.Event); err != nil {
		return err
	}

	updated := election.Clone()
	updated.Candidates[index].Votes++
	updated.Voters = append(updated.Voters, voterID)
	updated.UpdatedAt = votedAt
	s.elections[updated.ElectionID] = updated
	return nil
}

func (s *Store) CloseElection(ctx context.Context, electionID string, finalize ports.CloseFunc) (entities.Election, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, false, domainerrors.ErrElectionNotFound
	}
	if election.IsClosed() {
		return election.Clone(), false, nil
	}

	tx := &roleTx{store: s, staged: make(map[string]entities.Role)}
	result, err := finalize(ctx, election.Clone(), tx)
	if err != nil {
		return entities.Election{}, false, err
	}

	// Commit: outbox rows are validated before any state is touched.
	for _, event := range result.Events {
		if _, exists := s.outbox[outboxIDFor(event)]; exists {
			return entities.Election{}, false, domainerrors.ErrConflict
		}
	}
	for _, event := range result.Events {
		if err := s.appendOutboxLocked(event); err != nil {
			return entities.Election{}, false, err
		}
	}
	for studentID, role := range tx.staged {
		student := s.students[studentID]
		student.Role = role
		s.students[studentID] = student
	}
	s.elections[result.Election.ElectionID] = result.Election.Clone()
	return result.Election.Clone(), true, nil
}

func (s *Store) DeleteElection(_ context.Context, electionID string, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	electionID = strings.TrimSpace(electionID)
	if _, ok := s.elections[electionID]; !ok {
		return domainerrors.ErrElectionNotFound
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	delete(s.elections, electionID)
	return nil
}

func (s *Store) GetStudent(_ context.Context, studentID string) (ports.StudentProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.students[strings.TrimSpace(studentID)]
	if !ok {
		return ports.StudentProjection{}, domainerrors.ErrStudentNotFound
	}
	return student, nil
}

func (s *Store) ListStudentsByIDs(_ context.Context, studentIDs []string) ([]ports.StudentProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ports.StudentProjection, 0, len(studentIDs))
	for _, id := range studentIDs {
		if student, ok := s.students[strings.TrimSpace(id)]; ok {
			items = append(items, student)
		}
	}
	return items, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.TrimSpace(key)
	record, ok := s.idempotency[key]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.IsZero() && now.UTC().After(record.ExpiresAt.UTC()) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if !row.published {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].sequence < rows[j].sequence
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

// Now has its own lock because use cases read the clock from inside
// CloseElection callbacks while mu is held.
func (s *Store) Now() time.Time {
	s.clockMu.RLock()
	defer s.clockMu.RUnlock()
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) appendOutboxLocked(event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	outboxID := outboxIDFor(event)
	if _, exists := s.outbox[outboxID]; exists {
		return domainerrors.ErrConflict
	}
	createdAt := event.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.sequence++
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(event.EventType),
			PartitionKey: strings.TrimSpace(event.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
		sequence: s.sequence,
	}
	return nil
}

func outboxIDFor(event ports.EventEnvelope) string {
	if id := strings.TrimSpace(event.EventID); id != "" {
		return id
	}
	return uuid.NewString()
}

// roleTx stages role writes until the close commits. It runs while the store
// mutex is held, so it reads the maps directly.
type roleTx struct {
	store  *Store
	staged map[string]entities.Role
}

func (t *roleTx) view(studentID string) (ports.StudentProjection, bool) {
	student, ok := t.store.students[studentID]
	if !ok {
		return ports.StudentProjection{}, false
	}
	if role, staged := t.staged[studentID]; staged {
		student.Role = role
	}
	return student, true
}

func (t *roleTx) FindClassRepresentative(_ context.Context, className string) (ports.StudentProjection, bool, error) {
	className = strings.TrimSpace(className)
	ids := make([]string, 0, len(t.store.students))
	for id := range t.store.students {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		student, _ := t.view(id)
		if student.ClassName == className && student.Role == entities.RoleCR {
			return student, true, nil
		}
	}
	return ports.StudentProjection{}, false, nil
}

func (t *roleTx) GetStudent(_ context.Context, studentID string) (ports.StudentProjection, error) {
	student, ok := t.view(strings.TrimSpace(studentID))
	if !ok {
		return ports.StudentProjection{}, domainerrors.ErrStudentNotFound
	}
	return student, nil
}

func (t *roleTx) SetStudentRole(_ context.Context, studentID string, role entities.Role) error {
	studentID = strings.TrimSpace(studentID)
	if err, ok := t.store.roleFailure[studentID]; ok {
		return err
	}
	student, ok := t.store.students[studentID]
	if !ok {
		return domainerrors.ErrStudentNotFound
	}
	if role == entities.RoleCR && t.otherCR(studentID, student.ClassName) {
		// Mirrors the one-CR-per-class unique index.
		return domainerrors.ErrConflict
	}
	t.staged[studentID] = role
	return nil
}

func (t *roleTx) otherCR(studentID string, className string) bool {
	for id, other := range t.store.students {
		if id == studentID || other.ClassName != className {
			continue
		}
		role := other.Role
		if staged, ok := t.staged[id]; ok {
			role = staged
		}
		if role == entities.RoleCR {
			return true
		}
	}
	return false
}

var _ ports.ElectionRepository = (*Store)(nil)
var _ ports.StudentDirectory = (*Store)(nil)
var _ ports.IdempotencyStore = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
