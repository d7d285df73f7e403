package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"bookvocab/internal/database"
	"bookvocab/internal/models"
	"bookvocab/internal/session"
)

const (
	UsersCollection = "users"

	opTimeout = 5 * time.Second
)

// MongoStore keeps credentials and session whitelists on the users
// collection. Each whitelist write is a single-document update, so it is
// atomic without transactions.
type MongoStore struct {
	db    *mongo.Database
	users *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, users: db.Collection(UsersCollection)}
}

type sessionDoc struct {
	ID             primitive.ObjectID `bson:"_id"`
	RefreshTokens  session.Whitelist  `bson:"refreshToken"`
	SessionVersion int64              `bson:"sessionVersion"`
}

var sessionProjection = options.FindOne().SetProjection(bson.M{"refreshToken": 1, "sessionVersion": 1})

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.Client().Ping(ctx, readpref.Primary())
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	u.ID = primitive.NilObjectID
	u.Email = normalizeEmail(u.Email)
	u.RefreshTokens = session.Whitelist{}
	u.SessionVersion = 0
	u.CreatedAt = now
	u.UpdatedAt = now

	res, err := s.users.InsertOne(ctx, u)
	if err != nil {
		if dup := duplicateField(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("insert user: unexpected id type %T", res.InsertedID)
	}
	u.ID = id
	return nil
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findUser(ctx, bson.M{"email": normalizeEmail(email)})
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.User{}, models.ErrUserNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var u models.User
	err := s.users.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *MongoStore) Owner(ctx context.Context, token string) (session.Record, error) {
	rec, err := s.findSession(ctx, bson.M{"refreshToken": token})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return session.Record{}, session.ErrNoOwner
	}
	return rec, err
}

func (s *MongoStore) Get(ctx context.Context, userID string) (session.Record, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return session.Record{}, session.ErrUnknownUser
	}
	rec, err := s.findSession(ctx, bson.M{"_id": oid})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return session.Record{}, session.ErrUnknownUser
	}
	return rec, err
}

func (s *MongoStore) findSession(ctx context.Context, filter bson.M) (session.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc sessionDoc
	if err := s.users.FindOne(ctx, filter, sessionProjection).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return session.Record{}, err
		}
		return session.Record{}, fmt.Errorf("find session: %w", err)
	}
	return session.Record{
		UserID:  doc.ID.Hex(),
		Tokens:  doc.RefreshTokens,
		Version: doc.SessionVersion,
	}, nil
}

func (s *MongoStore) Push(ctx context.Context, userID, token string) error {
	return s.update(ctx, userID, bson.M{"$push": bson.M{"refreshToken": token}})
}

func (s *MongoStore) Pull(ctx context.Context, userID, token string) error {
	return s.update(ctx, userID, bson.M{"$pull": bson.M{"refreshToken": token}})
}

func (s *MongoStore) Clear(ctx context.Context, userID string) error {
	return s.update(ctx, userID, bson.M{"$set": bson.M{"refreshToken": session.Whitelist{}}})
}

func (s *MongoStore) Swap(ctx context.Context, userID string, expectedVersion int64, tokens session.Whitelist) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return session.ErrUnknownUser
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"_id": oid, "sessionVersion": versionMatch(expectedVersion)}
	res, err := s.users.UpdateOne(ctx, filter, withVersionBump(bson.M{
		"$set": bson.M{"refreshToken": tokens},
	}))
	if err != nil {
		return fmt.Errorf("swap whitelist: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.users.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("swap whitelist: %w", err)
	}
	if n == 0 {
		return session.ErrUnknownUser
	}
	return session.ErrVersionConflict
}

func (s *MongoStore) update(ctx context.Context, userID string, change bson.M) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return session.ErrUnknownUser
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, withVersionBump(change))
	if err != nil {
		return fmt.Errorf("update whitelist: %w", err)
	}
	if res.MatchedCount == 0 {
		return session.ErrUnknownUser
	}
	return nil
}

// withVersionBump adds the version increment and updatedAt to an update
// document.
func withVersionBump(change bson.M) bson.M {
	change["$inc"] = bson.M{"sessionVersion": 1}
	set, _ := change["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
	}
	set["updatedAt"] = time.Now().UTC()
	change["$set"] = set
	return change
}

// versionMatch treats a missing sessionVersion field as version 0 so older
// documents can be swapped.
func versionMatch(v int64) interface{} {
	if v == 0 {
		return bson.M{"$in": bson.A{0, nil}}
	}
	return v
}

func duplicateField(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if strings.Contains(e.Message, "index: "+database.UsernameIndexName+" ") {
				return models.ErrDuplicateUsername
			}
		}
	}
	return models.ErrDuplicateEmail
}
