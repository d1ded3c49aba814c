package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flipfinder/backend/internal/domain"
)

// usageDocument is one counter per account, period and operation
type usageDocument struct {
	AccountID string    `bson:"account_id"`
	Period    string    `bson:"period"`
	Operation string    `bson:"operation"`
	Calls     int       `bson:"calls"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore persists accounts and usage counters in MongoDB
type MongoStore struct {
	client   *mongo.Client
	accounts *mongo.Collection
	usage    *mongo.Collection
}

// NewMongoStore connects, pings and ensures indexes
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetMaxPoolSize(10)
	clientOptions.SetMaxConnIdleTime(30 * time.Second)
	clientOptions.SetTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		accounts: db.Collection("accounts"),
		usage:    db.Collection("api_usage"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create account index: %w", err)
	}

	_, err = s.usage.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "account_id", Value: 1},
			{Key: "period", Value: 1},
			{Key: "operation", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create usage index: %w", err)
	}
	return nil
}

func (s *MongoStore) findAccount(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var account domain.Account
	err := s.accounts.FindOne(ctx, filter).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetByID returns the account with the given id or domain.ErrNotFound
func (s *MongoStore) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": id})
}

// GetByEmail returns the account registered under email or domain.ErrNotFound
func (s *MongoStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.findAccount(ctx, bson.M{"email": email})
}

// Upsert replaces the account document, inserting it when missing
func (s *MongoStore) Upsert(ctx context.Context, account *domain.Account) error {
	_, err := s.accounts.ReplaceOne(ctx,
		bson.M{"_id": account.ID},
		account,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// GetUsage sums the account's counters for period
func (s *MongoStore) GetUsage(ctx context.Context, accountID, period string) (int, error) {
	cursor, err := s.usage.Find(ctx, bson.M{"account_id": accountID, "period": period})
	if err != nil {
		return 0, fmt.Errorf("failed to read usage: %w", err)
	}
	defer cursor.Close(ctx)

	total := 0
	for cursor.Next(ctx) {
		var doc usageDocument
		if err := cursor.Decode(&doc); err != nil {
			return 0, fmt.Errorf("failed to decode usage: %w", err)
		}
		total += doc.Calls
	}
	if err := cursor.Err(); err != nil {
		return 0, fmt.Errorf("cursor error: %w", err)
	}
	return total, nil
}

// IncrementUsage bumps the operation counter atomically and returns the new period total
func (s *MongoStore) IncrementUsage(ctx context.Context, accountID, period, operation string) (int, error) {
	filter := bson.M{"account_id": accountID, "period": period, "operation": operation}
	update := bson.M{
		"$inc": bson.M{"calls": 1},
		"$set": bson.M{"updated_at": time.Now()},
	}

	err := s.usage.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Err()
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return s.GetUsage(ctx, accountID, period)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
