// database/database.go
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kimtee92/PropMan/config"
	"github.com/kimtee92/PropMan/models"
)

var Client *mongo.Client

func Connect() error {
	clientOptions := options.Client().
		ApplyURI(config.MongoURI).
		SetConnectTimeout(20 * time.Second).
		SetServerSelectionTimeout(15 * time.Second).
		SetMaxPoolSize(50)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	Client, err = mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to create MongoDB client: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelPing()

	if err = Client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = Client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Println("Connected to MongoDB")
	return nil
}

func DB() *mongo.Database {
	return Client.Database(config.DatabaseName)
}

// EnsureIndexes creates the indexes the application relies on. The
// partial unique index on approvals backstops the application-level
// duplicate-pending check against concurrent submissions.
func EnsureIndexes(ctx context.Context) error {
	db := DB()

	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users email index: %w", err)
	}

	_, err = db.Collection("approvals").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "type", Value: 1},
			{Key: "refId", Value: 1},
			{Key: "action", Value: 1},
		},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"status": models.StatusPending}),
	})
	if err != nil {
		return fmt.Errorf("approvals pending index: %w", err)
	}

	secondary := []struct {
		coll string
		keys bson.D
	}{
		{"properties", bson.D{{Key: "portfolioId", Value: 1}}},
		{"properties", bson.D{{Key: "status", Value: 1}}},
		{"fields", bson.D{{Key: "propertyId", Value: 1}}},
		{"fields", bson.D{{Key: "status", Value: 1}}},
		{"documents", bson.D{{Key: "propertyId", Value: 1}}},
		{"documents", bson.D{{Key: "status", Value: 1}}},
		{"notes", bson.D{{Key: "propertyId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{"approvals", bson.D{{Key: "status", Value: 1}}},
		{"auditlogs", bson.D{{Key: "timestamp", Value: -1}}},
		{"auditlogs", bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}}},
	}
	for _, idx := range secondary {
		_, err := db.Collection(idx.coll).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: idx.keys})
		if err != nil {
			return fmt.Errorf("%s index: %w", idx.coll, err)
		}
	}
	return nil
}

func Disconnect() {
	if Client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := Client.Disconnect(ctx); err != nil {
		log.Printf("MongoDB disconnect error: %v", err)
	}
}
