package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/1edge/keeper/pkg/types"
)

// eventDoc mirrors types.OrderEvent for the append-only events collection.
type eventDoc struct {
	ParentID string `bson:"parent_id"`
	Kind     string `bson:"kind"`
	Detail   string `bson:"detail"`
	TsMs     int64  `bson:"ts_ms"`
}

// AppendEvent inserts an immutable audit entry. Events are never updated or
// deleted — the events collection is the replayable history a client can
// use to reconstruct an AdvancedOrder's state transitions.
func (s *Store) AppendEvent(ctx context.Context, evt types.OrderEvent) error {
	doc := eventDoc{
		ParentID: evt.ParentID,
		Kind:     string(evt.Kind),
		Detail:   evt.Detail,
		TsMs:     evt.TsMs,
	}
	if _, err := s.eventsColl().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("append event for %s: %w", evt.ParentID, err)
	}
	return nil
}

// ListEvents returns every event recorded for parentID in chronological
// order.
func (s *Store) ListEvents(ctx context.Context, parentID string) ([]types.OrderEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ts_ms", Value: 1}})
	cursor, err := s.eventsColl().Find(ctx, bson.M{"parent_id": parentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", parentID, err)
	}
	defer cursor.Close(ctx)

	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode events for %s: %w", parentID, err)
	}

	events := make([]types.OrderEvent, len(docs))
	for i, d := range docs {
		events[i] = types.OrderEvent{
			ParentID: d.ParentID,
			Kind:     types.EventKind(d.Kind),
			Detail:   d.Detail,
			TsMs:     d.TsMs,
		}
	}
	return events, nil
}
