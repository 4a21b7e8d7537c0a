package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/libaas-store/storefront/internal/domain"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const newsletterCollection = "newsletter_subscriptions"

// MongoNewsletterRepository implements domain.NewsletterRepository
type MongoNewsletterRepository struct {
	collection *mongo.Collection
}

// NewMongoNewsletterRepository creates the repository and ensures the unique email index.
// The index is what turns a second insert of the same address into a duplicate key error.
func NewMongoNewsletterRepository(ctx context.Context, db *mongo.Database) (*MongoNewsletterRepository, error) {
	coll := db.Collection(newsletterCollection)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create newsletter indexes: %w", err)
	}

	return &MongoNewsletterRepository{
		collection: coll,
	}, nil
}

// Create inserts a subscriber, assigning its ID and creation time
func (r *MongoNewsletterRepository) Create(ctx context.Context, subscriber *domain.Subscriber) error {
	if subscriber.ID == "" {
		subscriber.ID = ulid.Make().String()
	}
	if subscriber.CreatedAt.IsZero() {
		subscriber.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, subscriber)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create newsletter subscription: %w", err)
	}
	return nil
}
