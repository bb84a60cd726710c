package mongoadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"campus/contexts/identity-access/student-directory/domain/entities"
	domainerrors "campus/contexts/identity-access/student-directory/domain/errors"
	"campus/contexts/identity-access/student-directory/ports"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	studentsCollection = "students"
	outboxCollection   = "student_outbox"

	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository shares the students collection with the election service,
// which reads the same documents and owns the role field.
type Repository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

func NewRepository(client *mongo.Client, db *mongo.Database, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		client: client,
		db:     db,
		logger: logger,
	}
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.db.Collection(studentsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "id_no", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"id_no": bson.M{"$gt": ""}}),
		},
		{Keys: bson.D{{Key: "class_name", Value: 1}, {Key: "role", Value: 1}}},
		{
			Keys: bson.D{{Key: "class_name", Value: 1}},
			Options: options.Index().
				SetName("one_cr_per_class").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"role": "CR"}),
		},
	}); err != nil {
		return r.logError("student_mongo_index_students_failed", err)
	}
	if _, err := r.db.Collection(outboxCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return r.logError("student_mongo_index_outbox_failed", err)
	}
	return nil
}

func (r *Repository) CreateStudent(ctx context.Context, student entities.Student, event ports.EventEnvelope) error {
	doc := studentDocumentFromEntity(student)
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.db.Collection(studentsCollection).InsertOne(sc, doc); err != nil {
			return err
		}
		return r.appendOutbox(sc, event)
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainerrors.ErrAlreadyRegistered
		}
		return r.logError("student_mongo_create_failed", err, "student_id", student.StudentID)
	}
	return nil
}

func (r *Repository) GetStudent(ctx context.Context, studentID string) (entities.Student, error) {
	return r.findOne(ctx, bson.M{"_id": strings.TrimSpace(studentID)}, "student_mongo_get_failed")
}

func (r *Repository) FindByIdentifier(ctx context.Context, identifier string) (entities.Student, error) {
	identifier = strings.TrimSpace(identifier)
	filter := bson.M{"$or": bson.A{
		bson.M{"email": entities.NormalizeEmail(identifier)},
		bson.M{"id_no": identifier},
	}}
	return r.findOne(ctx, filter, "student_mongo_find_identifier_failed")
}

func (r *Repository) ExistsByEmailOrIDNo(ctx context.Context, email string, idNo string) (bool, error) {
	email = entities.NormalizeEmail(email)
	idNo = strings.TrimSpace(idNo)
	clauses := bson.A{}
	if email != "" {
		clauses = append(clauses, bson.M{"email": email})
	}
	if idNo != "" {
		clauses = append(clauses, bson.M{"id_no": idNo})
	}
	if len(clauses) == 0 {
		return false, nil
	}
	count, err := r.db.Collection(studentsCollection).CountDocuments(ctx,
		bson.M{"$or": clauses},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, r.logError("student_mongo_exists_failed", err)
	}
	return count > 0, nil
}

func (r *Repository) ListStudents(ctx context.Context, filter ports.StudentFilter) ([]entities.Student, error) {
	query := bson.M{}
	if filter.ClassName != "" {
		query["class_name"] = filter.ClassName
	}
	if filter.Search != "" {
		pattern := primitiveRegex(filter.Search)
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"id_no": pattern},
		}
	}
	cursor, err := r.db.Collection(studentsCollection).Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, r.logError("student_mongo_list_failed", err, "class_name", filter.ClassName)
	}
	var docs []studentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, r.logError("student_mongo_list_decode_failed", err)
	}
	items := make([]entities.Student, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toEntity())
	}
	return items, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, student entities.Student, event ports.EventEnvelope) error {
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		result, err := r.db.Collection(studentsCollection).UpdateOne(sc,
			bson.M{"_id": student.StudentID},
			bson.M{"$set": bson.M{
				"name":          student.Name,
				"email":         entities.NormalizeEmail(student.Email),
				"class_name":    student.ClassName,
				"academic_year": student.AcademicYear,
				"branch":        student.Branch,
				"section":       student.Section,
				"phone":         student.Phone,
				"avatar_url":    student.AvatarURL,
				"updated_at":    student.UpdatedAt.UTC(),
			}},
		)
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			return domainerrors.ErrStudentNotFound
		}
		return r.appendOutbox(sc, event)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrStudentNotFound) {
			return err
		}
		if mongo.IsDuplicateKeyError(err) {
			return domainerrors.ErrAlreadyRegistered
		}
		return r.logError("student_mongo_update_profile_failed", err, "student_id", student.StudentID)
	}
	return nil
}

func (r *Repository) SetRefreshTokenHash(ctx context.Context, studentID string, hash string, updatedAt time.Time) error {
	result, err := r.db.Collection(studentsCollection).UpdateOne(ctx,
		bson.M{"_id": strings.TrimSpace(studentID)},
		bson.M{"$set": bson.M{"refresh_token_hash": hash, "updated_at": updatedAt.UTC()}},
	)
	if err != nil {
		return r.logError("student_mongo_set_refresh_token_failed", err, "student_id", studentID)
	}
	if result.MatchedCount == 0 {
		return domainerrors.ErrStudentNotFound
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	cursor, err := r.db.Collection(outboxCollection).Find(ctx,
		bson.M{"status": outboxStatusPending},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "sequence", Value: 1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, r.logError("student_mongo_list_pending_outbox_failed", err, "limit", limit)
	}
	var docs []outboxDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, r.logError("student_mongo_list_pending_outbox_decode_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(docs))
	for _, doc := range docs {
		items = append(items, ports.OutboxMessage{
			OutboxID:     doc.OutboxID,
			EventType:    doc.EventType,
			PartitionKey: doc.PartitionKey,
			Payload:      doc.Payload,
			CreatedAt:    doc.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result, err := r.db.Collection(outboxCollection).UpdateOne(ctx,
		bson.M{"_id": strings.TrimSpace(outboxID)},
		bson.M{"$set": bson.M{"status": outboxStatusPublished, "published_at": publishedAt.UTC()}},
	)
	if err != nil {
		return r.logError("student_mongo_mark_outbox_published_failed", err, "outbox_id", outboxID)
	}
	if result.MatchedCount == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) findOne(ctx context.Context, filter bson.M, event string) (entities.Student, error) {
	var doc studentDocument
	if err := r.db.Collection(studentsCollection).FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entities.Student{}, domainerrors.ErrStudentNotFound
		}
		return entities.Student{}, r.logError(event, err)
	}
	return doc.toEntity(), nil
}

func (r *Repository) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (r *Repository) appendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	doc := outboxDocument{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		Sequence:     time.Now().UnixNano(),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if doc.OutboxID == "" {
		doc.OutboxID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err = r.db.Collection(outboxCollection).InsertOne(ctx, doc)
	return err
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
	r.logger.Error("student mongo operation failed", fields...)
	return pkgerrors.WithStack(err)
}

func primitiveRegex(search string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
}

type studentDocument struct {
	ID               string    `bson:"_id"`
	IDNo             string    `bson:"id_no"`
	Name             string    `bson:"name"`
	Email            string    `bson:"email"`
	PasswordHash     string    `bson:"password_hash"`
	ClassName        string    `bson:"class_name"`
	Branch           string    `bson:"branch"`
	Section          string    `bson:"section"`
	Phone            string    `bson:"phone"`
	AcademicYear     string    `bson:"academic_year"`
	Role             string    `bson:"role"`
	AvatarURL        string    `bson:"avatar_url"`
	RefreshTokenHash string    `bson:"refresh_token_hash"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func studentDocumentFromEntity(student entities.Student) studentDocument {
	return studentDocument{
		ID:               student.StudentID,
		IDNo:             student.IDNo,
		Name:             student.Name,
		Email:            entities.NormalizeEmail(student.Email),
		PasswordHash:     student.PasswordHash,
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

func (d studentDocument) toEntity() entities.Student {
	return entities.Student{
		StudentID:        d.ID,
		IDNo:             d.IDNo,
		Email:            d.Email,
		PasswordHash:     d.PasswordHash,
		Name:             d.Name,
		ClassName:        d.ClassName,
		Branch:           d.Branch,
		Section:          d.Section,
		Phone:            d.Phone,
		AcademicYear:     d.AcademicYear,
		Role:             entities.Role(d.Role),
		AvatarURL:        d.AvatarURL,
		RefreshTokenHash: d.RefreshTokenHash,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

type outboxDocument struct {
	OutboxID     string     `bson:"_id"`
	Sequence     int64      `bson:"sequence"`
	EventType    string     `bson:"event_type"`
	PartitionKey string     `bson:"partition_key"`
	Payload      []byte     `bson:"payload"`
	Status       string     `bson:"status"`
	CreatedAt    time.Time  `bson:"created_at"`
	PublishedAt  *time.Time `bson:"published_at,omitempty"`
}

var _ ports.StudentRepository = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
