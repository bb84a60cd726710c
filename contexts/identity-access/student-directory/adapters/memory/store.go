package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"campus/contexts/identity-access/student-directory/domain/entities"
	domainerrors "campus/contexts/identity-access/student-directory/domain/errors"
	"campus/contexts/identity-access/student-directory/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	sequence  int
	published bool
}

// Store is the in-memory student repository used by tests and local runs.
// It also stands in for avatar storage.
type Store struct {
	mu       sync.RWMutex
	students map[string]entities.Student
	outbox   map[string]outboxRecord
	sequence int
	avatars  map[string][]byte
	now      func() time.Time
}

func NewStore(seed []entities.Student) *Store {
	students := make(map[string]entities.Student, len(seed))
	for _, student := range seed {
		students[student.StudentID] = student
	}
	return &Store{
		students: students,
		outbox:   make(map[string]outboxRecord),
		avatars:  make(map[string][]byte),
	}
}

func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutStudent writes a student directly, for seeding tests.
func (s *Store) PutStudent(student entities.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[student.StudentID] = student
}

func (s *Store) CreateStudent(_ context.Context, student entities.Student, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.students[student.StudentID]; exists {
		return domainerrors.ErrConflict
	}
	if s.existsLocked(student.Email, student.IDNo, "") {
		return domainerrors.ErrAlreadyRegistered
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	s.students[student.StudentID] = student
	return nil
}

func (s *Store) GetStudent(_ context.Context, studentID string) (entities.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.students[strings.TrimSpace(studentID)]
	if !ok {
		return entities.Student{}, domainerrors.ErrStudentNotFound
	}
	return student, nil
}

func (s *Store) FindByIdentifier(_ context.Context, identifier string) (entities.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identifier = strings.TrimSpace(identifier)
	email := entities.NormalizeEmail(identifier)
	for _, student := range s.students {
		if student.Email == email || student.IDNo == identifier {
			return student, nil
		}
	}
	return entities.Student{}, domainerrors.ErrStudentNotFound
}

func (s *Store) ExistsByEmailOrIDNo(_ context.Context, email string, idNo string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.existsLocked(email, idNo, ""), nil
}

func (s *Store) ListStudents(_ context.Context, filter ports.StudentFilter) ([]entities.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(filter.Search)
	items := make([]entities.Student, 0, len(s.students))
	for _, student := range s.students {
		if filter.ClassName != "" && student.ClassName != filter.ClassName {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(student.Name), search) &&
			!strings.Contains(strings.ToLower(student.IDNo), search) {
			continue
		}
		items = append(items, student)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name == items[j].Name {
			return items[i].StudentID < items[j].StudentID
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

// UpdateProfile never touches role, password or refresh token.
func (s *Store) UpdateProfile(_ context.Context, student entities.Student, event ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.students[student.StudentID]
	if !ok {
		return domainerrors.ErrStudentNotFound
	}
	if s.existsLocked(student.Email, "", student.StudentID) {
		return domainerrors.ErrAlreadyRegistered
	}
	if err := s.appendOutboxLocked(event); err != nil {
		return err
	}
	current.Name = student.Name
	current.Email = student.Email
	current.ClassName = student.ClassName
	current.AcademicYear = student.AcademicYear
	current.Branch = student.Branch
	current.Section = student.Section
	current.Phone = student.Phone
	current.AvatarURL = student.AvatarURL
	current.UpdatedAt = student.UpdatedAt
	s.students[student.StudentID] = current
	return nil
}

func (s *Store) SetRefreshTokenHash(_ context.Context, studentID string, hash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[strings.TrimSpace(studentID)]
	if !ok {
		return domainerrors.ErrStudentNotFound
	}
	student.RefreshTokenHash = hash
	student.UpdatedAt = updatedAt.UTC()
	s.students[student.StudentID] = student
	return nil
}

func (s *Store) UploadAvatar(_ context.Context, upload ports.AvatarUpload) (string, error) {
	body, err := io.ReadAll(upload.Body)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("avatars/%s/%s", upload.StudentID, uuid.NewString())
	s.mu.Lock()
	s.avatars[key] = body
	s.mu.Unlock()
	return "memory://" + key, nil
}

// Avatar returns stored avatar bytes by URL, for assertions.
func (s *Store) Avatar(url string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.avatars[strings.TrimPrefix(url, "memory://")]
	return body, ok
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

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// existsLocked matches the email or a non-empty idNo, ignoring exceptID.
func (s *Store) existsLocked(email string, idNo string, exceptID string) bool {
	email = entities.NormalizeEmail(email)
	idNo = strings.TrimSpace(idNo)
	for id, student := range s.students {
		if id == exceptID {
			continue
		}
		if (email != "" && student.Email == email) || (idNo != "" && student.IDNo == idNo) {
			return true
		}
	}
	return false
}

func (s *Store) appendOutboxLocked(event ports.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(event.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return domainerrors.ErrConflict
	}
	s.sequence++
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      payload,
			CreatedAt:    event.OccurredAt.UTC(),
		},
		sequence: s.sequence,
	}
	return nil
}

var _ ports.StudentRepository = (*Store)(nil)
var _ ports.AvatarStorage = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
