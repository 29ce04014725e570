// mongodb.go - MongoDB archive for finished tasks

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TaskCollection holds one document per task, keyed by task_id.
const TaskCollection = "ocr_tasks"

const (
	connectTimeout = 10 * time.Second
	queryTimeout   = 5 * time.Second
)

// TaskArchive keeps task snapshots in MongoDB so they outlive the in-memory registry.
type TaskArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// ConnectTaskArchive connects, pings and makes sure the task_id index exists.
func ConnectTaskArchive(ctx context.Context, uri, dbName string) (*TaskArchive, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(dbName).Collection(TaskCollection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "task_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create task index: %w", err)
	}

	log.WithFields(log.Fields{"db": dbName, "collection": TaskCollection}).Info("✅ Connected to MongoDB task archive")
	return &TaskArchive{client: client, collection: collection}, nil
}

// Upsert replaces the stored snapshot for id, inserting it when absent.
func (a *TaskArchive) Upsert(ctx context.Context, id string, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := a.collection.ReplaceOne(ctx, bson.M{"task_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to archive task %s: %w", id, err)
	}
	return nil
}

// Find decodes the snapshot for id into out; ErrNotFound when there is none.
func (a *TaskArchive) Find(ctx context.Context, id string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := a.collection.FindOne(ctx, bson.M{"task_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query task %s: %w", id, err)
	}
	return nil
}

// Close disconnects the client.
func (a *TaskArchive) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return err
	}
	log.Info("MongoDB connection closed")
	return nil
}
