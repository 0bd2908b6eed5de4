package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storefront-api/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

// UserRepo stores users in a MongoDB collection with unique sparse indexes
// on email and phoneNumber.
type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the uniqueness indexes. Safe to call on every startup.
func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "phoneNumber", Value: 1}},
			Options: options.Index().SetName("phoneNumber_unique").SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": userID})
}

// FindByEmailOrPhone returns the user owning email or phone. Email wins when
// the two identify different users.
func (r *UserRepo) FindByEmailOrPhone(ctx context.Context, email, phone string) (*domain.User, error) {
	if email != "" {
		u, err := r.findOne(ctx, bson.M{"email": email})
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return u, err
		}
	}
	if phone != "" {
		return r.findOne(ctx, bson.M{"phoneNumber": phone})
	}
	return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *UserRepo) Save(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": u.UserID}, u)
	if err != nil {
		return mapWriteErr(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	return nil
}

// List returns users ordered by ID. cursor is the last ID of the previous
// page; the returned cursor is empty on the last page.
func (r *UserRepo) List(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	filter := bson.M{}
	if cursor != "" {
		filter["_id"] = bson.M{"$gt": cursor}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit) + 1)

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, "", fmt.Errorf("list users: %w", err)
	}
	users := []domain.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, "", fmt.Errorf("decode users: %w", err)
	}
	next := ""
	if len(users) > int(limit) {
		users = users[:limit]
		next = users[len(users)-1].UserID
	}
	return users, next, nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var u domain.User
	err := r.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func mapWriteErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("email or phone number already registered: %w", domain.ErrDuplicateIdentity)
	}
	return fmt.Errorf("write user: %w", err)
}
