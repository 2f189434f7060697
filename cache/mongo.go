package cache

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ Cache = &MongoCache{}

// MongoCache stores entries as {_id, value, expires_at} documents.
// Expired documents are hidden from reads immediately and removed by the TTL
// index created in EnsureIndexes.
type MongoCache struct {
	coll *mongo.Collection
	now  func() time.Time
}

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// NewMongoCache creates a cache backed by the named collection of db.
func NewMongoCache(db *mongo.Database, collection string) *MongoCache {
	if collection == "" {
		collection = "integration_cache"
	}
	return &MongoCache{
		coll: db.Collection(collection),
		now:  time.Now,
	}
}

// EnsureIndexes creates the TTL index on expires_at.
func (c *MongoCache) EnsureIndexes(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (c *MongoCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	update := bson.M{"$set": bson.M{
		"value":      value,
		"expires_at": c.now().UTC().Add(ttl),
	}}
	_, err := c.coll.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	return err
}

func (c *MongoCache) Get(ctx context.Context, key string) (string, error) {
	var e mongoEntry
	err := c.coll.FindOne(ctx, c.liveFilter(key)).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

func (c *MongoCache) Delete(ctx context.Context, key string) error {
	_, err := c.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (c *MongoCache) Take(ctx context.Context, key string) (string, error) {
	var e mongoEntry
	err := c.coll.FindOneAndDelete(ctx, c.liveFilter(key)).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

func (c *MongoCache) liveFilter(key string) bson.M {
	return bson.M{
		"_id":        key,
		"expires_at": bson.M{"$gt": c.now().UTC()},
	}
}
