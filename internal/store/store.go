// Package store implements the Order Store: the durable, transactional
// record of AdvancedOrders, SliceRecords, and append-only OrderEvents.
package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const defaultDatabase = "edge_keeper"

// Store wraps the MongoDB client and database holding every collection the
// keeper persists to.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to MongoDB and returns a Store. uri should include the
// database name (e.g. mongodb://localhost:27017/edge_keeper); if absent,
// defaultDatabase is used.
func Open(ctx context.Context, uri string) (*Store, error) {
	clientOpts := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	dbName := defaultDatabase
	if u, err := url.Parse(uri); err == nil {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			dbName = name
		}
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ordersColl() *mongo.Collection { return s.db.Collection("orders") }
func (s *Store) slicesColl() *mongo.Collection { return s.db.Collection("slices") }
func (s *Store) eventsColl() *mongo.Collection { return s.db.Collection("events") }

// EnsureIndexes creates the idempotent indexes the Order Store's query
// patterns rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	type idx struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}

	indexes := []idx{
		{s.ordersColl(), mongo.IndexModel{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.ordersColl(), mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}}}},
		{s.slicesColl(), mongo.IndexModel{Keys: bson.D{{Key: "hash", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.slicesColl(), mongo.IndexModel{Keys: bson.D{{Key: "parent_id", Value: 1}}}},
		{s.eventsColl(), mongo.IndexModel{Keys: bson.D{{Key: "parent_id", Value: 1}, {Key: "ts_ms", Value: 1}}}},
	}

	for _, i := range indexes {
		if _, err := i.coll.Indexes().CreateOne(ctx, i.model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.coll.Name(), err)
		}
	}
	return nil
}

// ErrNotFound is returned by GetOrder when no order matches the given id.
var ErrNotFound = fmt.Errorf("order not found")

// ErrVersionConflict is returned by UpdateOrder when the order was modified
// concurrently between the read and the write (optimistic concurrency).
var ErrVersionConflict = fmt.Errorf("order version conflict")

// decimalOrZero parses a stored decimal string, treating "" as zero rather
// than an error — documents written before a field existed should not fail
// to decode.
func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
