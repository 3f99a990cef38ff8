package fixstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoStore persists fix outcomes as documents in a "fix_outcomes"
// collection, grounded on the teacher's pkg/mongodb/handler.go connect/
// ping/collection shape.
type mongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection

	mu      sync.RWMutex
	totals  map[string]int
	accepts map[string]int
}

const fixstoreDatabase = "janus_dispatch"

func newMongoStore(ctx context.Context, uri string) (*mongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("fixstore: connecting to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("fixstore: pinging mongo: %w", err)
	}

	s := &mongoStore{
		client:  client,
		coll:    client.Database(fixstoreDatabase).Collection("fix_outcomes"),
		totals:  make(map[string]int),
		accepts: make(map[string]int),
	}
	if err := s.warmCache(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

type mongoRecord struct {
	FixID      string    `bson:"fix_id"`
	FixKind    string    `bson:"fix_kind"`
	Accepted   bool      `bson:"accepted"`
	ObservedAt time.Time `bson:"observed_at"`
}

func (s *mongoStore) warmCache(ctx context.Context) error {
	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("fixstore: warming mongo cache: %w", err)
	}
	defer cur.Close(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	for cur.Next(ctx) {
		var rec mongoRecord
		if err := cur.Decode(&rec); err != nil {
			return fmt.Errorf("fixstore: decoding outcome: %w", err)
		}
		s.totals[rec.FixID]++
		if rec.Accepted {
			s.accepts[rec.FixID]++
		}
	}
	return cur.Err()
}

func (s *mongoStore) RecordOutcome(ctx context.Context, rec Record) error {
	_, err := s.coll.InsertOne(ctx, mongoRecord{
		FixID:      rec.FixID,
		FixKind:    rec.FixKind,
		Accepted:   rec.Accepted,
		ObservedAt: rec.ObservedAt,
	})
	if err != nil {
		return fmt.Errorf("fixstore: inserting outcome: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[rec.FixID]++
	if rec.Accepted {
		s.accepts[rec.FixID]++
	}
	return nil
}

func (s *mongoStore) AcceptanceRate(fixID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := s.totals[fixID]
	if total == 0 {
		return 0
	}
	return float64(s.accepts[fixID]) / float64(total)
}

func (s *mongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
