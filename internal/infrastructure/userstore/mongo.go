package userstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/realitycheck/backend/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

// MongoStore persists users in MongoDB
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to MongoDB, verifies the connection and ensures a
// unique index on email.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(databaseName(uri)).Collection(usersCollection)
	_, err = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create user indexes: %w", err)
	}

	return &MongoStore{client: client, collection: collection}, nil
}

// databaseName parses the database name from the URI, defaulting to "realitycheck"
func databaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "realitycheck"
	}
	if u.Path != "" && u.Path != "/" {
		return u.Path[1:]
	}
	return "realitycheck"
}

// Create inserts a user; duplicate emails map to domain.ErrEmailTaken
func (s *MongoStore) Create(ctx context.Context, user *domain.StoredUser) error {
	_, err := s.collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByEmail looks a user up by email
func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*domain.StoredUser, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// FindByID looks a user up by id
func (s *MongoStore) FindByID(ctx context.Context, id string) (*domain.StoredUser, error) {
	return s.findOne(ctx, bson.M{"id": id})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*domain.StoredUser, error) {
	var user domain.StoredUser
	err := s.collection.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// Delete removes a user by id
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
