package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store using MongoDB.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoConfig holds MongoDB configuration
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

type checkpointDoc struct {
	RunID     string    `bson:"run_id"`
	StepKey   string    `bson:"step_key"`
	Document  string    `bson:"document"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore creates a new MongoDB-backed checkpoint store
func NewMongoStore(ctx context.Context, config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = &MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "genflow",
			Collection: "plan_checkpoints",
		}
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}, nil
}

// SaveStep upserts the step document for the run.
func (s *MongoStore) SaveStep(ctx context.Context, runID, stepKey string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal step document: %w", err)
	}

	filter := bson.M{"run_id": runID, "step_key": stepKey}
	update := bson.M{"$set": checkpointDoc{
		RunID:     runID,
		StepKey:   stepKey,
		Document:  string(data),
		UpdatedAt: time.Now(),
	}}
	if _, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to store step in MongoDB: %w", err)
	}
	return nil
}

// LoadRun fetches every saved step document for the run.
func (s *MongoStore) LoadRun(ctx context.Context, runID string) (map[string]any, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"run_id": runID})
	if err != nil {
		return nil, fmt.Errorf("failed to load run from MongoDB: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]any)
	for cursor.Next(ctx) {
		var record checkpointDoc
		if err := cursor.Decode(&record); err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint document: %w", err)
		}
		var doc any
		if err := json.Unmarshal([]byte(record.Document), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step %q: %w", record.StepKey, err)
		}
		out[record.StepKey] = doc
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoint documents: %w", err)
	}
	return out, nil
}

// ClearRun deletes every saved document for the run.
func (s *MongoStore) ClearRun(ctx context.Context, runID string) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{"run_id": runID}); err != nil {
		return fmt.Errorf("failed to clear run in MongoDB: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
