package mongoadapter

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
	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	electionsCollection   = "elections"
	studentsCollection    = "students"
	outboxCollection      = "election_outbox"
	idempotencyCollection = "election_idempotency"
	classLocksCollection  = "class_role_locks"

	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository stores each election as one document with its candidates,
// voters and winners embedded. Multi-document writes run in a session
// transaction, so the deployment must be a replica set.
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

// EnsureIndexes creates the indexes the queries rely on. Safe to call on
// every start.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.db.Collection(electionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "class_name", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}); err != nil {
		return r.logError("election_mongo_index_elections_failed", err)
	}
	if _, err := r.db.Collection(outboxCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return r.logError("election_mongo_index_outbox_failed", err)
	}
	if _, err := r.db.Collection(idempotencyCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}); err != nil {
		return r.logError("election_mongo_index_idempotency_failed", err)
	}
	return nil
}

func (r *Repository) CreateElection(
	ctx context.Context,
	election entities.Election,
	event ports.EventEnvelope,
	idempotency *ports.IdempotencyRecord,
) error {
	doc := electionDocumentFromEntity(election)
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if idempotency != nil {
			if err := r.claimIdempotencyKey(sc, *idempotency, election); err != nil {
				return err
			}
		}
		if _, err := r.db.Collection(electionsCollection).InsertOne(sc, doc); err != nil {
			return err
		}
		return r.appendOutbox(sc, event)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrIdempotencyKeyTaken) {
			return domainerrors.ErrIdempotencyKeyTaken
		}
		if mongo.IsDuplicateKeyError(err) {
			return domainerrors.ErrConflict
		}
		return r.mapError("election_mongo_create_failed", err, "election_id", election.ElectionID)
	}
	return nil
}

func (r *Repository) GetElection(ctx context.Context, electionID string) (entities.Election, error) {
	var doc electionDocument
	err := r.db.Collection(electionsCollection).
		FindOne(ctx, bson.M{"_id": strings.TrimSpace(electionID)}).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entities.Election{}, domainerrors.ErrElectionNotFound
		}
		return entities.Election{}, r.logError("election_mongo_get_failed", err, "election_id", strings.TrimSpace(electionID))
	}
	return doc.toEntity(), nil
}

func (r *Repository) ListElections(ctx context.Context, filter ports.ElectionFilter) ([]entities.Election, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.ClassName != "" {
		query["class_name"] = filter.ClassName
	}
	if filter.Branch != "" {
		query["branch"] = filter.Branch
	}
	cursor, err := r.db.Collection(electionsCollection).Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, r.logError("election_mongo_list_failed", err, "status", string(filter.Status))
	}
	defer cursor.Close(ctx)

	var docs []electionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, r.logError("election_mongo_list_decode_failed", err)
	}
	items := make([]entities.Election, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toEntity())
	}
	return items, nil
}

// CastVote increments the first matching candidate and records the voter in
// one update. When nothing matches the election is reloaded to say why.
func (r *Repository) CastVote(ctx context.Context, input ports.CastVoteInput) error {
	electionID := strings.TrimSpace(input.ElectionID)
	voterID := strings.TrimSpace(input.VoterID)
	candidateID := strings.TrimSpace(input.CandidateStudentID)
	votedAt := input.VotedAt.UTC()
	if votedAt.IsZero() {
		votedAt = time.Now().UTC()
	}

	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		result, err := r.db.Collection(electionsCollection).UpdateOne(sc,
			bson.M{
				"_id":                electionID,
				"status":             string(entities.ElectionStatusOpen),
				"voters":             bson.M{"$ne": voterID},
				"candidates.student": candidateID,
				"$or": bson.A{
					bson.M{"closes_at": nil},
					bson.M{"closes_at": bson.M{"$gte": votedAt}},
				},
			},
			bson.M{
				"$inc":  bson.M{"candidates.$.votes": 1},
				"$push": bson.M{"voters": voterID},
				"$set":  bson.M{"updated_at": votedAt},
			},
		)
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			return r.classifyVoteMiss(sc, electionID, voterID, candidateID, votedAt)
		}
		return r.appendOutbox(sc, input.Event)
	})
	if err != nil {
		return r.mapError("election_mongo_cast_vote_failed", err,
			"election_id", electionID,
			"voter_id", voterID,
		)
	}
	return nil
}

func (r *Repository) classifyVoteMiss(ctx context.Context, electionID, voterID, candidateID string, votedAt time.Time) error {
	var doc electionDocument
	if err := r.db.Collection(electionsCollection).FindOne(ctx, bson.M{"_id": electionID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainerrors.ErrElectionNotFound
		}
		return err
	}
	election := doc.toEntity()
	switch {
	case !election.IsOpen(votedAt):
		return domainerrors.ErrElectionClosed
	case election.HasVoted(voterID):
		return domainerrors.ErrAlreadyVoted
	default:
		if _, _, found := election.FindCandidate(candidateID); !found {
			return domainerrors.ErrCandidateNotFound
		}
		return domainerrors.ErrConflict
	}
}

// CloseElection runs finalize inside a session transaction. The status flip
// is filtered on OPEN, so a concurrent closer loses with a write conflict and
// the driver retries it against the committed state.
func (r *Repository) CloseElection(ctx context.Context, electionID string, finalize ports.CloseFunc) (entities.Election, bool, error) {
	electionID = strings.TrimSpace(electionID)
	var (
		final   entities.Election
		applied bool
	)
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		applied = false
		var doc electionDocument
		if err := r.db.Collection(electionsCollection).FindOne(sc, bson.M{"_id": electionID}).Decode(&doc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return domainerrors.ErrElectionNotFound
			}
			return err
		}
		election := doc.toEntity()
		if election.IsClosed() {
			final = election
			return nil
		}

		result, err := finalize(sc, election, roleStore{db: r.db, ctx: sc})
		if err != nil {
			return err
		}
		closed := electionDocumentFromEntity(result.Election)
		updated, err := r.db.Collection(electionsCollection).UpdateOne(sc,
			bson.M{"_id": electionID, "status": string(entities.ElectionStatusOpen)},
			bson.M{"$set": bson.M{
				"status":          closed.Status,
				"result_declared": closed.ResultDeclared,
				"is_draw":         closed.IsDraw,
				"winner_id":       closed.WinnerID,
				"winners":         closed.Winners,
				"closed_by":       closed.ClosedBy,
				"closed_at":       closed.ClosedAt,
				"updated_at":      closed.UpdatedAt,
			}},
		)
		if err != nil {
			return err
		}
		if updated.MatchedCount == 0 {
			return domainerrors.ErrConflict
		}
		for _, event := range result.Events {
			if err := r.appendOutbox(sc, event); err != nil {
				return err
			}
		}
		final = result.Election
		applied = true
		return nil
	})
	if err != nil {
		return entities.Election{}, false, r.mapError("election_mongo_close_failed", err, "election_id", electionID)
	}
	return final, applied, nil
}

func (r *Repository) DeleteElection(ctx context.Context, electionID string, event ports.EventEnvelope) error {
	electionID = strings.TrimSpace(electionID)
	err := r.withTransaction(ctx, func(sc mongo.SessionContext) error {
		result, err := r.db.Collection(electionsCollection).DeleteOne(sc, bson.M{"_id": electionID})
		if err != nil {
			return err
		}
		if result.DeletedCount == 0 {
			return domainerrors.ErrElectionNotFound
		}
		return r.appendOutbox(sc, event)
	})
	if err != nil {
		return r.mapError("election_mongo_delete_failed", err, "election_id", electionID)
	}
	return nil
}

func (r *Repository) GetStudent(ctx context.Context, studentID string) (ports.StudentProjection, error) {
	var doc studentDocument
	err := r.db.Collection(studentsCollection).FindOne(ctx, bson.M{"_id": strings.TrimSpace(studentID)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ports.StudentProjection{}, domainerrors.ErrStudentNotFound
		}
		return ports.StudentProjection{}, r.logError("election_mongo_get_student_failed", err, "student_id", studentID)
	}
	return doc.toProjection(), nil
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
	cursor, err := r.db.Collection(studentsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, r.logError("election_mongo_list_students_failed", err, "count", len(ids))
	}
	defer cursor.Close(ctx)
	var docs []studentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, r.logError("election_mongo_list_students_decode_failed", err)
	}
	items := make([]ports.StudentProjection, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toProjection())
	}
	return items, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var doc idempotencyDocument
	err := r.db.Collection(idempotencyCollection).FindOne(ctx, bson.M{"_id": strings.TrimSpace(key)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("election_mongo_idempotency_get_failed", err, "idempotency_key", key)
	}
	// The TTL monitor runs about once a minute; expired rows may still be read.
	if now.UTC().After(doc.ExpiresAt.UTC()) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         doc.Key,
		RequestHash: doc.RequestHash,
		ElectionID:  doc.ElectionID,
		ExpiresAt:   doc.ExpiresAt.UTC(),
	}, true, nil
}

// claimIdempotencyKey upserts the key only over an expired record. A live
// record makes the upsert collide on _id.
func (r *Repository) claimIdempotencyKey(sc mongo.SessionContext, record ports.IdempotencyRecord, election entities.Election) error {
	key := strings.TrimSpace(record.Key)
	_, err := r.db.Collection(idempotencyCollection).UpdateOne(sc,
		bson.M{"_id": key, "expires_at": bson.M{"$lt": election.CreatedAt.UTC()}},
		bson.M{"$set": bson.M{
			"request_hash": strings.TrimSpace(record.RequestHash),
			"election_id":  election.ElectionID,
			"expires_at":   record.ExpiresAt.UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainerrors.ErrIdempotencyKeyTaken
		}
		return err
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
		return nil, r.logError("election_mongo_list_pending_outbox_failed", err, "limit", limit)
	}
	defer cursor.Close(ctx)
	var docs []outboxDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, r.logError("election_mongo_list_pending_outbox_decode_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(docs))
	for _, doc := range docs {
		items = append(items, ports.OutboxMessage{
			OutboxID:     doc.OutboxID,
			EventType:    doc.EventType,
			PartitionKey: doc.PartitionKey,
			Payload:      append([]byte(nil), doc.Payload...),
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
		return r.logError("election_mongo_mark_outbox_published_failed", err, "outbox_id", outboxID)
	}
	if result.MatchedCount == 0 {
		return domainerrors.ErrConflict
	}
	return nil
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

func (r *Repository) mapError(event string, err error, attrs ...any) error {
	if isDomainError(err) {
		return err
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
		return domainerrors.ErrTransactionAborted
	}
	return r.logError(event, err, attrs...)
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "academic-governance/election-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("election mongo operation failed", fields...)
	return pkgerrors.WithStack(err)
}

// roleStore reads and writes students on the close session.
type roleStore struct {
	db  *mongo.Database
	ctx mongo.SessionContext
}

// FindClassRepresentative bumps a per-class lock document first. Two closes
// for the same class then write the same document and one of them is
// aborted and retried, instead of both seeing the same incumbent.
func (s roleStore) FindClassRepresentative(_ context.Context, className string) (ports.StudentProjection, bool, error) {
	className = strings.TrimSpace(className)
	if _, err := s.db.Collection(classLocksCollection).UpdateOne(s.ctx,
		bson.M{"_id": className},
		bson.M{"$inc": bson.M{"version": 1}},
		options.Update().SetUpsert(true),
	); err != nil {
		return ports.StudentProjection{}, false, err
	}
	var doc studentDocument
	err := s.db.Collection(studentsCollection).FindOne(s.ctx,
		bson.M{"class_name": className, "role": string(entities.RoleCR)},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ports.StudentProjection{}, false, nil
		}
		return ports.StudentProjection{}, false, err
	}
	return doc.toProjection(), true, nil
}

func (s roleStore) GetStudent(_ context.Context, studentID string) (ports.StudentProjection, error) {
	var doc studentDocument
	err := s.db.Collection(studentsCollection).FindOne(s.ctx, bson.M{"_id": strings.TrimSpace(studentID)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ports.StudentProjection{}, domainerrors.ErrStudentNotFound
		}
		return ports.StudentProjection{}, err
	}
	return doc.toProjection(), nil
}

func (s roleStore) SetStudentRole(_ context.Context, studentID string, role entities.Role) error {
	result, err := s.db.Collection(studentsCollection).UpdateOne(s.ctx,
		bson.M{"_id": strings.TrimSpace(studentID)},
		bson.M{"$set": bson.M{"role": string(role), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domainerrors.ErrStudentNotFound
	}
	return nil
}

type candidateDocument struct {
	Student  string `bson:"student"`
	Position string `bson:"position"`
	Votes    int    `bson:"votes"`
}

type winnerDocument struct {
	Position string `bson:"position"`
	Student  string `bson:"student"`
}

type electionDocument struct {
	ID             string              `bson:"_id"`
	Title          string              `bson:"title"`
	ClassName      string              `bson:"class_name"`
	Branch         string              `bson:"branch"`
	AcademicYear   string              `bson:"academic_year"`
	Status         string              `bson:"status"`
	ClosesAt       *time.Time          `bson:"closes_at"`
	Candidates     []candidateDocument `bson:"candidates"`
	Voters         []string            `bson:"voters"`
	ResultDeclared bool                `bson:"result_declared"`
	IsDraw         bool                `bson:"is_draw"`
	WinnerID       string              `bson:"winner_id,omitempty"`
	Winners        []winnerDocument    `bson:"winners"`
	CreatedBy      string              `bson:"created_by"`
	ClosedBy       string              `bson:"closed_by,omitempty"`
	ClosedAt       *time.Time          `bson:"closed_at"`
	CreatedAt      time.Time           `bson:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at"`
}

func electionDocumentFromEntity(election entities.Election) electionDocument {
	doc := electionDocument{
		ID:             election.ElectionID,
		Title:          election.Title,
		ClassName:      election.ClassName,
		Branch:         election.Branch,
		AcademicYear:   election.AcademicYear,
		Status:         string(election.Status),
		ClosesAt:       election.ClosesAt,
		Candidates:     make([]candidateDocument, 0, len(election.Candidates)),
		Voters:         append([]string{}, election.Voters...),
		ResultDeclared: election.ResultDeclared,
		IsDraw:         election.IsDraw,
		WinnerID:       election.WinnerID,
		Winners:        make([]winnerDocument, 0, len(election.Winners)),
		CreatedBy:      election.CreatedBy,
		ClosedBy:       election.ClosedBy,
		ClosedAt:       election.ClosedAt,
		CreatedAt:      election.CreatedAt.UTC(),
		UpdatedAt:      election.UpdatedAt.UTC(),
	}
	for _, candidate := range election.Candidates {
		doc.Candidates = append(doc.Candidates, candidateDocument{
			Student:  candidate.StudentID,
			Position: string(candidate.Position),
			Votes:    candidate.Votes,
		})
	}
	for _, winner := range election.Winners {
		doc.Winners = append(doc.Winners, winnerDocument{
			Position: string(winner.Position),
			Student:  winner.StudentID,
		})
	}
	return doc
}

func (d electionDocument) toEntity() entities.Election {
	election := entities.Election{
		ElectionID:     d.ID,
		Title:          d.Title,
		ClassName:      d.ClassName,
		Branch:         d.Branch,
		AcademicYear:   d.AcademicYear,
		Status:         entities.ElectionStatus(d.Status),
		Candidates:     make([]entities.Candidate, 0, len(d.Candidates)),
		Voters:         append([]string{}, d.Voters...),
		ResultDeclared: d.ResultDeclared,
		IsDraw:         d.IsDraw,
		WinnerID:       d.WinnerID,
		Winners:        make([]entities.Winner, 0, len(d.Winners)),
		CreatedBy:      d.CreatedBy,
		ClosedBy:       d.ClosedBy,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	if d.ClosesAt != nil {
		closesAt := d.ClosesAt.UTC()
		election.ClosesAt = &closesAt
	}
	if d.ClosedAt != nil {
		closedAt := d.ClosedAt.UTC()
		election.ClosedAt = &closedAt
	}
	for _, candidate := range d.Candidates {
		election.Candidates = append(election.Candidates, entities.Candidate{
			StudentID: candidate.Student,
			Position:  entities.Position(candidate.Position),
			Votes:     candidate.Votes,
		})
	}
	for _, winner := range d.Winners {
		election.Winners = append(election.Winners, entities.Winner{
			Position:  entities.Position(winner.Position),
			StudentID: winner.Student,
		})
	}
	return election
}

type studentDocument struct {
	ID        string `bson:"_id"`
	IDNo      string `bson:"id_no"`
	Name      string `bson:"name"`
	Email     string `bson:"email"`
	ClassName string `bson:"class_name"`
	Role      string `bson:"role"`
}

func (d studentDocument) toProjection() ports.StudentProjection {
	return ports.StudentProjection{
		StudentID: d.ID,
		IDNo:      d.IDNo,
		Name:      d.Name,
		Email:     d.Email,
		ClassName: d.ClassName,
		Role:      entities.Role(d.Role),
	}
}

type idempotencyDocument struct {
	Key         string    `bson:"_id"`
	RequestHash string    `bson:"request_hash"`
	ElectionID  string    `bson:"election_id"`
	ExpiresAt   time.Time `bson:"expires_at"`
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

var _ ports.ElectionRepository = (*Repository)(nil)
var _ ports.StudentDirectory = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.RoleStore = roleStore{}
