package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"campus/contexts/academic-governance/election-service/domain/entities"
	domainerrors "campus/contexts/academic-governance/election-service/domain/errors"
	"campus/contexts/academic-governance/election-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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

func (r *Repository) CreateElection(
	ctx context.Context,
	election entities.Election,
	event ports.EventEnvelope,
	idempotency *ports.IdempotencyRecord,
) error {
	row := electionModelFromEntity(election)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if idempotency != nil {
			if err := claimIdempotencyKey(tx, *idempotency, election); err != nil {
				return err
			}
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		candidates := candidateModelsFromEntity(election)
		if len(candidates) > 0 {
			if err := tx.Create(&candidates).Error; err != nil {
				return err
			}
		}
		return appendOutbox(tx, event)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrIdempotencyKeyTaken) {
			return err
		}
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("election_repo_create_failed", err, "election_id", election.ElectionID)
	}
	return nil
}

func (r *Repository) GetElection(ctx context.Context, electionID string) (entities.Election, error) {
	var row electionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(electionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, domainerrors.ErrElectionNotFound
		}
		return entities.Election{}, r.logError("election_repo_get_failed", err, "election_id", strings.TrimSpace(electionID))
	}
	elections, err := r.hydrate(r.db.WithContext(ctx), []electionModel{row})
	if err != nil {
		return entities.Election{}, r.logError("election_repo_get_hydrate_failed", err, "election_id", row.ID)
	}
	return elections[0], nil
}

func (r *Repository) ListElections(ctx context.Context, filter ports.ElectionFilter) ([]entities.Election, error) {
	tx := r.db.WithContext(ctx).Model(&electionModel{})
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if filter.ClassName != "" {
		tx = tx.Where("class_name = ?", filter.ClassName)
	}
	if filter.Branch != "" {
		tx = tx.Where("branch = ?", filter.Branch)
	}
	var rows []electionModel
	if err := tx.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_failed", err,
			"status", string(filter.Status),
			"class_name", filter.ClassName,
		)
	}
	elections, err := r.hydrate(r.db.WithContext(ctx), rows)
	if err != nil {
		return nil, r.logError("election_repo_list_hydrate_failed", err)
	}
	return elections, nil
}

// CastVote takes the election row lock through a conditional update, so
// votes on one election serialise and a close cannot interleave. The voter
// insert is the membership assertion; the counter moves in the same tx.
func (r *Repository) CastVote(ctx context.Context, input ports.CastVoteInput) error {
	electionID := strings.TrimSpace(input.ElectionID)
	voterID := strings.TrimSpace(input.VoterID)
	votedAt := input.VotedAt.UTC()
	if votedAt.IsZero() {
		votedAt = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		touched := tx.Model(&electionModel{}).
			Where("id = ?", electionID).
			Where("status = ?", string(entities.ElectionStatusOpen)).
			Where("(closes_at IS NULL OR closes_at >= ?)", votedAt).
			Update("updated_at", votedAt)
		if touched.Error != nil {
			return touched.Error
		}
		if touched.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&electionModel{}).Where("id = ?", electionID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domainerrors.ErrElectionNotFound
			}
			return domainerrors.ErrElectionClosed
		}

		inserted := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "election_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).Create(&voterModel{
			ElectionID: electionID,
			StudentID:  voterID,
			VotedAt:    votedAt,
		})
		if inserted.Error != nil {
			return inserted.Error
		}
		if inserted.RowsAffected == 0 {
			return domainerrors.ErrAlreadyVoted
		}

		var candidate candidateModel
		if err := tx.Where("election_id = ? AND student_id = ?", electionID, strings.TrimSpace(input.CandidateStudentID)).
			Order("ordinal ASC").
			First(&candidate).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrCandidateNotFound
			}
			return err
		}
		if err := tx.Model(&candidateModel{}).
			Where("election_id = ? AND ordinal = ?", electionID, candidate.Ordinal).
			UpdateColumn("votes", gorm.Expr("votes + ?", 1)).Error; err != nil {
			return err
		}
		return appendOutbox(tx, input.Event)
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		if isTransactionAborted(err) {
			return domainerrors.ErrTransactionAborted
		}
		return r.logError("election_repo_cast_vote_failed", err,
			"election_id", electionID,
			"voter_id", voterID,
		)
	}
	return nil
}

// CloseElection holds the election row lock for the whole callback. The
// status flip is also conditional, so a second closer that slipped past the
// lock cannot finalise twice.
func (r *Repository) CloseElection(ctx context.Context, electionID string, finalize ports.CloseFunc) (entities.Election, bool, error) {
	electionID = strings.TrimSpace(electionID)
	var (
		final   entities.Election
		applied bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row electionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", electionID).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrElectionNotFound
			}
			return err
		}
		hydrated, err := r.hydrate(tx, []electionModel{row})
		if err != nil {
			return err
		}
		election := hydrated[0]
		if election.IsClosed() {
			final = election
			return nil
		}

		result, err := finalize(ctx, election, roleStore{tx: tx})
		if err != nil {
			return err
		}
		closed := result.Election
		flipped := tx.Model(&electionModel{}).
			Where("id = ? AND status = ?", electionID, string(entities.ElectionStatusOpen)).
			Updates(map[string]any{
				"status":          string(closed.Status),
				"result_declared": closed.ResultDeclared,
				"is_draw":         closed.IsDraw,
				"winner_id":       nullableString(closed.WinnerID),
				"closed_by":       nullableString(closed.ClosedBy),
				"closed_at":       closed.ClosedAt,
				"updated_at":      closed.UpdatedAt.UTC(),
			})
		if flipped.Error != nil {
			return flipped.Error
		}
		if flipped.RowsAffected == 0 {
			return domainerrors.ErrConflict
		}
		if err := tx.Where("election_id = ?", electionID).Delete(&winnerModel{}).Error; err != nil {
			return err
		}
		winners := winnerModelsFromEntity(closed)
		if len(winners) > 0 {
			if err := tx.Create(&winners).Error; err != nil {
				return err
			}
		}
		for _, event := range result.Events {
			if err := appendOutbox(tx, event); err != nil {
				return err
			}
		}
		final = closed
		applied = true
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return entities.Election{}, false, err
		}
		if isTransactionAborted(err) {
			return entities.Election{}, false, domainerrors.ErrTransactionAborted
		}
		return entities.Election{}, false, r.logError("election_repo_close_failed", err, "election_id", electionID)
	}
	return final, applied, nil
}

func (r *Repository) DeleteElection(ctx context.Context, electionID string, event ports.EventEnvelope) error {
	electionID = strings.TrimSpace(electionID)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&voterModel{}, &candidateModel{}, &winnerModel{}} {
			if err := tx.Where("election_id = ?", electionID).Delete(model).Error; err != nil {
				return err
			}
		}
		deleted := tx.Where("id = ?", electionID).Delete(&electionModel{})
		if deleted.Error != nil {
			return deleted.Error
		}
		if deleted.RowsAffected == 0 {
			return domainerrors.ErrElectionNotFound
		}
		return appendOutbox(tx, event)
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return r.logError("election_repo_delete_failed", err, "election_id", electionID)
	}
	return nil
}

func (r *Repository) GetStudent(ctx context.Context, studentID string) (ports.StudentProjection, error) {
	return getStudent(r.db.WithContext(ctx), studentID)
}

func (r *Repository) ListStudentsByIDs(ctx context.Context, studentIDs []string) ([]ports.StudentProjection, error) {
	ids := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		if _, err := uuid.Parse(strings.TrimSpace(id)); err == nil {
			ids = append(ids, strings.TrimSpace(id))
		}
	}
	if len(ids) == 0 {
		return []ports.StudentProjection{}, nil
	}
	var rows []studentProjectionModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_students_failed", err, "count", len(ids))
	}
	items := make([]ports.StudentProjection, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toProjection())
	}
	return items, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("election_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key),
		)
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("election_repo_idempotency_expire_delete_failed", err,
				"idempotency_key", strings.TrimSpace(key),
			)
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		ElectionID:  row.ElectionID,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

// claimIdempotencyKey inserts the key, or takes over a row whose record has
// expired. A concurrent claim blocks on the primary key until the first
// transaction finishes, then affects no rows.
func claimIdempotencyKey(tx *gorm.DB, record ports.IdempotencyRecord, election entities.Election) error {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		ElectionID:  election.ElectionID,
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	claim := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"request_hash", "election_id", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "election_idempotency.expires_at < ?", Vars: []any{election.CreatedAt.UTC()}},
		}},
	}).Create(&row)
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		return domainerrors.ErrIdempotencyKeyTaken
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
		return nil, r.logError("election_repo_list_pending_outbox_failed", err, "limit", limit)
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
		return r.logError("election_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

// hydrate loads candidates, voters and winners for the given rows with one
// query per child table.
func (r *Repository) hydrate(db *gorm.DB, rows []electionModel) ([]entities.Election, error) {
	if len(rows) == 0 {
		return []entities.Election{}, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var candidates []candidateModel
	if err := db.Where("election_id IN ?", ids).Order("ordinal ASC").Find(&candidates).Error; err != nil {
		return nil, err
	}
	var voters []voterModel
	if err := db.Where("election_id IN ?", ids).Order("voted_at ASC").Find(&voters).Error; err != nil {
		return nil, err
	}
	var winners []winnerModel
	if err := db.Where("election_id IN ?", ids).Order("ordinal ASC").Find(&winners).Error; err != nil {
		return nil, err
	}

	byElection := make(map[string]*entities.Election, len(rows))
	items := make([]entities.Election, len(rows))
	for index, row := range rows {
		items[index] = row.toEntity()
		byElection[row.ID] = &items[index]
	}
	for _, candidate := range candidates {
		if election, ok := byElection[candidate.ElectionID]; ok {
			election.Candidates = append(election.Candidates, candidate.toEntity())
		}
	}
	for _, voter := range voters {
		if election, ok := byElection[voter.ElectionID]; ok {
			election.Voters = append(election.Voters, voter.StudentID)
		}
	}
	for _, winner := range winners {
		if election, ok := byElection[winner.ElectionID]; ok {
			election.Winners = append(election.Winners, entities.Winner{
				Position:  entities.Position(winner.Position),
				StudentID: winner.StudentID,
			})
		}
	}
	return items, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+6)
	fields = append(fields,
		"event", event,
		"module", "academic-governance/election-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("election repository operation failed", fields...)
	return pkgerrors.WithStack(err)
}

// roleStore runs identity-store reads and writes on the close transaction.
type roleStore struct {
	tx *gorm.DB
}

// FindClassRepresentative first takes a transaction-scoped advisory lock on
// the class so concurrent closes for the same class see each other's
// promotions instead of the same stale incumbent.
func (s roleStore) FindClassRepresentative(_ context.Context, className string) (ports.StudentProjection, bool, error) {
	className = strings.TrimSpace(className)
	if err := s.tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "class-representative:"+className).Error; err != nil {
		return ports.StudentProjection{}, false, err
	}
	var row studentProjectionModel
	err := s.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("class_name = ? AND role = ?", className, string(entities.RoleCR)).
		Order("id ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.StudentProjection{}, false, nil
		}
		return ports.StudentProjection{}, false, err
	}
	return row.toProjection(), true, nil
}

func (s roleStore) GetStudent(_ context.Context, studentID string) (ports.StudentProjection, error) {
	var row studentProjectionModel
	err := s.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", strings.TrimSpace(studentID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.StudentProjection{}, domainerrors.ErrStudentNotFound
		}
		return ports.StudentProjection{}, err
	}
	return row.toProjection(), nil
}

func (s roleStore) SetStudentRole(_ context.Context, studentID string, role entities.Role) error {
	updated := s.tx.Model(&studentProjectionModel{}).
		Where("id = ?", strings.TrimSpace(studentID)).
		Updates(map[string]any{
			"role":       string(role),
			"updated_at": time.Now().UTC(),
		})
	if updated.Error != nil {
		return updated.Error
	}
	if updated.RowsAffected == 0 {
		return domainerrors.ErrStudentNotFound
	}
	return nil
}

func getStudent(db *gorm.DB, studentID string) (ports.StudentProjection, error) {
	studentID = strings.TrimSpace(studentID)
	if _, err := uuid.Parse(studentID); err != nil {
		return ports.StudentProjection{}, domainerrors.ErrStudentNotFound
	}
	var row studentProjectionModel
	if err := db.Where("id = ?", studentID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.StudentProjection{}, domainerrors.ErrStudentNotFound
		}
		return ports.StudentProjection{}, pkgerrors.WithStack(err)
	}
	return row.toProjection(), nil
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

type electionModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	Title          string     `gorm:"column:title"`
	ClassName      string     `gorm:"column:class_name"`
	Branch         string     `gorm:"column:branch"`
	AcademicYear   string     `gorm:"column:academic_year"`
	Status         string     `gorm:"column:status"`
	ClosesAt       *time.Time `gorm:"column:closes_at"`
	ResultDeclared bool       `gorm:"column:result_declared"`
	IsDraw         bool       `gorm:"column:is_draw"`
	WinnerID       *string    `gorm:"column:winner_id"`
	CreatedBy      string     `gorm:"column:created_by"`
	ClosedBy       *string    `gorm:"column:closed_by"`
	ClosedAt       *time.Time `gorm:"column:closed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (electionModel) TableName() string {
	return "elections"
}

func electionModelFromEntity(election entities.Election) electionModel {
	row := electionModel{
		ID:             strings.TrimSpace(election.ElectionID),
		Title:          election.Title,
		ClassName:      election.ClassName,
		Branch:         election.Branch,
		AcademicYear:   election.AcademicYear,
		Status:         string(election.Status),
		ClosesAt:       normalizeOptionalTime(election.ClosesAt),
		ResultDeclared: election.ResultDeclared,
		IsDraw:         election.IsDraw,
		WinnerID:       nullableString(election.WinnerID),
		CreatedBy:      election.CreatedBy,
		ClosedBy:       nullableString(election.ClosedBy),
		ClosedAt:       normalizeOptionalTime(election.ClosedAt),
		CreatedAt:      election.CreatedAt.UTC(),
		UpdatedAt:      election.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m electionModel) toEntity() entities.Election {
	return entities.Election{
		ElectionID:     m.ID,
		Title:          m.Title,
		ClassName:      m.ClassName,
		Branch:         m.Branch,
		AcademicYear:   m.AcademicYear,
		Status:         entities.ElectionStatus(m.Status),
		ClosesAt:       normalizeOptionalTime(m.ClosesAt),
		Candidates:     []entities.Candidate{},
		Voters:         []string{},
		ResultDeclared: m.ResultDeclared,
		IsDraw:         m.IsDraw,
		WinnerID:       derefString(m.WinnerID),
		Winners:        []entities.Winner{},
		CreatedBy:      m.CreatedBy,
		ClosedBy:       derefString(m.ClosedBy),
		ClosedAt:       normalizeOptionalTime(m.ClosedAt),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type candidateModel struct {
	ElectionID string `gorm:"column:election_id;primaryKey"`
	Ordinal    int    `gorm:"column:ordinal;primaryKey"`
	StudentID  string `gorm:"column:student_id"`
	Position   string `gorm:"column:position"`
	Votes      int    `gorm:"column:votes"`
}

func (candidateModel) TableName() string {
	return "election_candidates"
}

func candidateModelsFromEntity(election entities.Election) []candidateModel {
	rows := make([]candidateModel, 0, len(election.Candidates))
	for index, candidate := range election.Candidates {
		rows = append(rows, candidateModel{
			ElectionID: election.ElectionID,
			Ordinal:    index,
			StudentID:  candidate.StudentID,
			Position:   string(candidate.Position),
			Votes:      candidate.Votes,
		})
	}
	return rows
}

func (m candidateModel) toEntity() entities.Candidate {
	return entities.Candidate{
		StudentID: m.StudentID,
		Position:  entities.Position(m.Position),
		Votes:     m.Votes,
	}
}

type voterModel struct {
	ElectionID string    `gorm:"column:election_id;primaryKey"`
	StudentID  string    `gorm:"column:student_id;primaryKey"`
	VotedAt    time.Time `gorm:"column:voted_at"`
}

func (voterModel) TableName() string {
	return "election_voters"
}

type winnerModel struct {
	ElectionID string `gorm:"column:election_id;primaryKey"`
	Ordinal    int    `gorm:"column:ordinal;primaryKey"`
	Position   string `gorm:"column:position"`
	StudentID  string `gorm:"column:student_id"`
}

func (winnerModel) TableName() string {
	return "election_winners"
}

func winnerModelsFromEntity(election entities.Election) []winnerModel {
	rows := make([]winnerModel, 0, len(election.Winners))
	for index, winner := range election.Winners {
		rows = append(rows, winnerModel{
			ElectionID: election.ElectionID,
			Ordinal:    index,
			Position:   string(winner.Position),
			StudentID:  winner.StudentID,
		})
	}
	return rows
}

type studentProjectionModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	IDNo      string    `gorm:"column:id_no"`
	Name      string    `gorm:"column:name"`
	Email     string    `gorm:"column:email"`
	ClassName string    `gorm:"column:class_name"`
	Role      string    `gorm:"column:role"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (studentProjectionModel) TableName() string {
	return "students"
}

func (m studentProjectionModel) toProjection() ports.StudentProjection {
	return ports.StudentProjection{
		StudentID: m.ID,
		IDNo:      m.IDNo,
		Name:      m.Name,
		Email:     m.Email,
		ClassName: m.ClassName,
		Role:      entities.Role(m.Role),
	}
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	ElectionID  string    `gorm:"column:election_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "election_idempotency"
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
	return "election_outbox"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func nullableString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domainerrors.ErrElectionNotFound,
		domainerrors.ErrElectionClosed,
		domainerrors.ErrAlreadyVoted,
		domainerrors.ErrCandidateNotFound,
		domainerrors.ErrStudentNotFound,
		domainerrors.ErrWinnerClassMismatch,
		domainerrors.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isTransactionAborted covers serialization failures and deadlocks, both safe
// to retry from the start.
func isTransactionAborted(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

var _ ports.ElectionRepository = (*Repository)(nil)
var _ ports.StudentDirectory = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.RoleStore = roleStore{}
