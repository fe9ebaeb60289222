package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/1edge/keeper/pkg/types"
)

// sliceDoc mirrors types.SliceRecord with string-flattened decimals, same
// convention as orderDoc.
type sliceDoc struct {
	Hash          string `bson:"hash"`
	ParentID      string `bson:"parent_id"`
	Making        string `bson:"making"`
	Taking        string `bson:"taking"`
	LimitPrice    string `bson:"limit_price"`
	SubmittedMs   int64  `bson:"submitted_ms"`
	Remaining     string `bson:"remaining"`
	InvalidReason string `bson:"invalid_reason"`
	MissingPolls  int    `bson:"missing_polls"`
}

func sliceToDoc(s types.SliceRecord) sliceDoc {
	return sliceDoc{
		Hash:          s.Hash,
		ParentID:      s.ParentID,
		Making:        s.Making.String(),
		Taking:        s.Taking.String(),
		LimitPrice:    s.LimitPrice.String(),
		SubmittedMs:   s.SubmittedMs,
		Remaining:     s.Remaining.String(),
		InvalidReason: s.InvalidReason,
		MissingPolls:  s.MissingPolls,
	}
}

func sliceFromDoc(d sliceDoc) (types.SliceRecord, error) {
	making, err := decimalOrZero(d.Making)
	if err != nil {
		return types.SliceRecord{}, err
	}
	taking, err := decimalOrZero(d.Taking)
	if err != nil {
		return types.SliceRecord{}, err
	}
	limitPrice, err := decimalOrZero(d.LimitPrice)
	if err != nil {
		return types.SliceRecord{}, err
	}
	remaining, err := decimalOrZero(d.Remaining)
	if err != nil {
		return types.SliceRecord{}, err
	}
	return types.SliceRecord{
		Hash:          d.Hash,
		ParentID:      d.ParentID,
		Making:        making,
		Taking:        taking,
		LimitPrice:    limitPrice,
		SubmittedMs:   d.SubmittedMs,
		Remaining:     remaining,
		InvalidReason: d.InvalidReason,
		MissingPolls:  d.MissingPolls,
	}, nil
}

// UpsertSlice creates or updates a SliceRecord by hash.
func (s *Store) UpsertSlice(ctx context.Context, slice types.SliceRecord) error {
	doc := sliceToDoc(slice)
	opts := options.Replace().SetUpsert(true)
	if _, err := s.slicesColl().ReplaceOne(ctx, bson.M{"hash": slice.Hash}, doc, opts); err != nil {
		return fmt.Errorf("upsert slice %s: %w", slice.Hash, err)
	}
	return nil
}

// GetSlice loads a SliceRecord by hash.
func (s *Store) GetSlice(ctx context.Context, hash string) (types.SliceRecord, error) {
	var doc sliceDoc
	err := s.slicesColl().FindOne(ctx, bson.M{"hash": hash}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.SliceRecord{}, ErrNotFound
	}
	if err != nil {
		return types.SliceRecord{}, fmt.Errorf("get slice %s: %w", hash, err)
	}
	return sliceFromDoc(doc)
}

// ListSlicesForOrder returns every SliceRecord belonging to parentID.
func (s *Store) ListSlicesForOrder(ctx context.Context, parentID string) ([]types.SliceRecord, error) {
	cursor, err := s.slicesColl().Find(ctx, bson.M{"parent_id": parentID})
	if err != nil {
		return nil, fmt.Errorf("list slices for %s: %w", parentID, err)
	}
	defer cursor.Close(ctx)

	var docs []sliceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode slices for %s: %w", parentID, err)
	}

	slices := make([]types.SliceRecord, 0, len(docs))
	for _, d := range docs {
		slice, err := sliceFromDoc(d)
		if err != nil {
			return nil, err
		}
		slices = append(slices, slice)
	}
	return slices, nil
}
