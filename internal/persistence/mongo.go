package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// snapshotTTL expires carts nobody touched for 90 days.
const snapshotTTL = 90 * 24 * time.Hour

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type snapshotDocument struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoKV stores one document per key in the cart_snapshots collection.
type MongoKV struct {
	collection *mongo.Collection
}

func NewMongoKV(db *mongo.Database) *MongoKV {
	return &MongoKV{collection: db.Collection("cart_snapshots")}
}

func (m *MongoKV) Get(ctx context.Context, key string) ([]byte, error) {
	var doc snapshotDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return doc.Value, nil
}

func (m *MongoKV) Set(ctx context.Context, key string, value []byte) error {
	update := bson.M{"$set": bson.M{"value": value, "updated_at": time.Now().UTC()}}
	opts := options.Update().SetUpsert(true)
	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": key}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

func (m *MongoKV) Delete(ctx context.Context, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (m *MongoKV) CreateIndexes(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(snapshotTTL.Seconds())),
	}
	if _, err := m.collection.Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
