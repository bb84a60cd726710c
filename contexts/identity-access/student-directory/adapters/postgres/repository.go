package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"campus/contexts/identity-access/student-directory/domain/entities"
	domainerrors "campus/contexts/identity-access/student-directory/domain/errors"
	"campus/contexts/identity-access/student-directory/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateStudent(ctx context.Context, student entities.Student, event ports.EventEnvelope) error {
	row := studentModelFromEntity(student)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return appendOutbox(tx, event)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyRegistered
		}
		return r.logError("student_repo_create_failed", err, "student_id", student.StudentID)
	}
	return nil
}

func (r *Repository) GetStudent(ctx context.Context, studentID string) (entities.Student, error) {
	studentID = strings.TrimSpace(studentID)
	if _, err := uuid.Parse(studentID); err != nil {
		return entities.Student{}, domainerrors.ErrStudentNotFound
	}
	var row studentModel
	if err := r.db.WithContext(ctx).Where("id = ?", studentID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Student{}, domainerrors.ErrStudentNotFound
		}
		return entities.Student{}, r.logError("student_repo_get_failed", err, "student_id", studentID)
	}
	return row.toEntity(), nil
}

func (r *Repository) FindByIdentifier(ctx context.Context, identifier string) (entities.Student, error) {
	identifier = strings.TrimSpace(identifier)
	var row studentModel
	err := r.db.WithContext(ctx).
		Where("email = ? OR id_no = ?", entities.NormalizeEmail(identifier), identifier).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Student{}, domainerrors.ErrStudentNotFound
		}
		return entities.Student{}, r.logError("student_repo_find_identifier_failed", err)
	}
	return row.toEntity(), nil
}

func (r *Repository) ExistsByEmailOrIDNo(ctx context.Context, email string, idNo string) (bool, error) {
	email = entities.NormalizeEmail(email)
	idNo = strings.TrimSpace(idNo)
	if email == "" && idNo == "" {
		return false, nil
	}
	tx := r.db.WithContext(ctx).Model(&studentModel{})
	switch {
	case email != "" && idNo != "":
		tx = tx.Where("email = ? OR id_no = ?", email, idNo)
	case email != "":
		tx = tx.Where("email = ?", email)
	default:
		tx = tx.Where("id_no = ?", idNo)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, r.logError("student_repo_exists_failed", err)
	}
	return count > 0, nil
}

func (r *Repository) ListStudents(ctx context.Context, filter ports.StudentFilter) ([]entities.Student, error) {
	tx := r.db.WithContext(ctx).Model(&studentModel{})
	if filter.ClassName != "" {
		tx = tx.Where("class_name = ?", filter.ClassName)
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		tx = tx.Where("(name ILIKE ? OR id_no ILIKE ?)", pattern, pattern)
	}
	var rows []studentModel
	if err := tx.Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("student_repo_list_failed", err, "class_name", filter.ClassName)
	}
	items := make([]entities.Student, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// UpdateProfile writes only profile columns; role is owned by elections.
func (r *Repository) UpdateProfile(ctx context.Context, student entities.Student, event ports.EventEnvelope) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&studentModel{}).
			Where("id = ?", student.StudentID).
			Updates(map[string]any{
				"name":          student.Name,
				"email":         entities.NormalizeEmail(student.Email),
				"class_name":    student.ClassName,
				"academic_year": student.AcademicYear,
				"branch":        student.Branch,
				"section":       student.Section,
				"phone":         student.Phone,
				"avatar_url":    student.AvatarURL,
				"updated_at":    student.UpdatedAt.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrStudentNotFound
		}
		return appendOutbox(tx, event)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrStudentNotFound) {
			return err
		}
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyRegistered
		}
		return r.logError("student_repo_update_profile_failed", err, "student_id", student.StudentID)
	}
	return nil
}

func (r *Repository) SetRefreshTokenHash(ctx context.Context, studentID string, hash string, updatedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&studentModel{}).
		Where("id = ?", strings.TrimSpace(studentID)).
		Updates(map[string]any{
			"refresh_token_hash": hash,
			"updated_at":         updatedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("student_repo_set_refresh_token_failed", result.Error, "student_id", studentID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrStudentNotFound
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("student_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("student_repo_mark_outbox_published_failed", result.Error, "outbox_id", outboxID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "identity-access/student-directory",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("student repository operation failed", fields...)
	return pkgerrors.WithStack(err)
}

func appendOutbox(tx *gorm.DB, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return tx.Omit("sequence").Create(&row).Error
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

type studentModel struct {
	ID               string    `gorm:"column:id;primaryKey"`
	IDNo             string    `gorm:"column:id_no"`
	Email            string    `gorm:"column:email"`
	PasswordHash     string    `gorm:"column:password_hash"`
	Name             string    `gorm:"column:name"`
	ClassName        string    `gorm:"column:class_name"`
	Branch           string    `gorm:"column:branch"`
	Section          string    `gorm:"column:section"`
	Phone            string    `gorm:"column:phone"`
	AcademicYear     string    `gorm:"column:academic_year"`
	Role             string    `gorm:"column:role"`
	AvatarURL        string    `gorm:"column:avatar_url"`
	RefreshTokenHash string    `gorm:"column:refresh_token_hash"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (studentModel) TableName() string {
	return "students"
}

func studentModelFromEntity(student entities.Student) studentModel {
	return studentModel{
		ID:               student.StudentID,
		IDNo:             student.IDNo,
		Email:            entities.NormalizeEmail(student.Email),
		PasswordHash:     student.PasswordHash,
		Name:             student.Name,
		ClassName:        student.ClassName,
		Branch:           student.Branch,
		Section:          student.Section,
		Phone:            student.Phone,
		AcademicYear:     student.AcademicYear,
		Role:             string(student.Role),
		AvatarURL:        student.AvatarURL,
		RefreshTokenHash: student.RefreshTokenHash,
		CreatedAt:        student.CreatedAt.UTC(),
		UpdatedAt:        student.UpdatedAt.UTC(),
	}
}

func (m studentModel) toEntity() entities.Student {
	return entities.Student{
		StudentID:        m.ID,
		IDNo:             m.IDNo,
		Email:            m.Email,
		PasswordHash:     m.PasswordHash,
		Name:             m.Name,
		ClassName:        m.ClassName,
		Branch:           m.Branch,
		Section:          m.Section,
		Phone:            m.Phone,
		AcademicYear:     m.AcademicYear,
		Role:             entities.Role(m.Role),
		AvatarURL:        m.AvatarURL,
		RefreshTokenHash: m.RefreshTokenHash,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	Sequence     int64      `gorm:"column:sequence"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "student_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.StudentRepository = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
