package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"voiceswap/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrAlreadyExists = errors.New("session already exists")
	// ErrStale means the row changed between read and write; the update was not applied.
	ErrStale = errors.New("session changed concurrently")
)

// Predicate checks the expected pre-state. A nil return means the transition may proceed.
type Predicate func(s *model.Session) error

// Mutation computes the next state in place
type Mutation func(s *model.Session)

// UpdateResult is the outcome of a conditional update. When Applied is false,
// Reason holds the predicate error or ErrStale and Current is the state the
// caller should reason about.
type UpdateResult struct {
	Applied bool
	Current *model.Session
	Reason  error
}

// SessionRepo is the typed accessor over the session store
type SessionRepo interface {
	Insert(ctx context.Context, session *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	ConditionalUpdate(ctx context.Context, id string, expect Predicate, mutate Mutation) (*UpdateResult, error)
	ListActive(ctx context.Context, limit int) ([]*model.Session, error)
}

// prepare evaluates expect on current and returns the next state with its version bumped.
func prepare(current *model.Session, expect Predicate, mutate Mutation) (*model.Session, error) {
	if expect != nil {
		if err := expect(current); err != nil {
			return nil, err
		}
	}
	next := current.Clone()
	mutate(next)
	next.ID = current.ID
	next.Version = current.Version + 1
	for i := range next.Participants {
		next.Participants[i].SessionID = current.ID
	}
	return next, nil
}

type mongoSessionRepo struct {
	collection *mongo.Collection
}

// NewMongoSessionRepo creates the mongo-backed session repository. Participants
// are embedded in the session document so every transition is a single-document write.
func NewMongoSessionRepo(db *mongo.Database) SessionRepo {
	repo := &mongoSessionRepo{
		collection: db.Collection("sessions"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *mongoSessionRepo) ensureIndexes(ctx context.Context) {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "startedAt", Value: 1}}},
		{Keys: bson.D{{Key: "participants.userId", Value: 1}}},
	})
	if err != nil {
		slog.Warn("failed to create session indexes", "err", err)
	}
}

func (r *mongoSessionRepo) Insert(ctx context.Context, session *model.Session) error {
	_, err := r.collection.InsertOne(ctx, session)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}

func (r *mongoSessionRepo) Get(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *mongoSessionRepo) ConditionalUpdate(ctx context.Context, id string, expect Predicate, mutate Mutation) (*UpdateResult, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	next, perr := prepare(current, expect, mutate)
	if perr != nil {
		return &UpdateResult{Current: current, Reason: perr}, nil
	}

	// The version in the filter pins the exact document the predicate was evaluated on.
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": id, "version": current.Version}, next)
	if err != nil {
		return nil, fmt.Errorf("replace session: %w", err)
	}
	if res.MatchedCount == 0 {
		fresh, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &UpdateResult{Current: fresh, Reason: ErrStale}, nil
	}
	return &UpdateResult{Applied: true, Current: next}, nil
}

func (r *mongoSessionRepo) ListActive(ctx context.Context, limit int) ([]*model.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, bson.M{"status": model.SessionTalk}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*model.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
