package polyadicqml

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 3 * time.Second

// MongoStore persists archive records to a MongoDB collection, keyed by job
// identifier. Saving the same job twice replaces its record.
type MongoStore struct {
	coll *mongo.Collection
}

type mongoRecord struct {
	JobID   string        `bson:"jobId"`
	Record  ArchiveRecord `bson:"record"`
	SavedAt time.Time     `bson:"savedAt"`
}

// NewMongoStore connects to the given MongoDB instance and returns a store
// writing to database/collection.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return &MongoStore{coll: client.Database(database).Collection(collection)}, nil
}

// Save upserts the record for jobID.
func (s *MongoStore) Save(ctx context.Context, jobID string, rec ArchiveRecord) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"jobId": jobID},
		mongoRecord{JobID: jobID, Record: rec, SavedAt: time.Now()},
		options.Replace().SetUpsert(true),
	)
	return err
}
