package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/1edge/keeper/pkg/types"
)

// orderDoc is the Mongo-stored shape of an AdvancedOrder. Decimal amounts
// are flattened to their string form and the polymorphic Params/NextTrigger
// fields to JSON, mirroring ndrandal-feed-simulator's persist package
// convention of storing only bson-primitive field types rather than
// teaching the bson codec about shopspring/decimal or an interface field.
type orderDoc struct {
	ID         string `bson:"id"`
	Owner      string `bson:"owner"`
	MakerAsset string `bson:"maker_asset"`
	TakerAsset string `bson:"taker_asset"`
	Symbol     string `bson:"symbol"`
	Side       string `bson:"side"`

	Kind       string `bson:"kind"`
	ParamsJSON string `bson:"params_json"`

	Status       string `bson:"status"`
	CreatedMs    int64  `bson:"created_ms"`
	TriggerCount int64  `bson:"trigger_count"`

	OriginalMaking string `bson:"original_making"`
	RemainingMaker string `bson:"remaining_maker"`
	TotalFilled    string `bson:"total_filled"`

	NextTriggerJSON string   `bson:"next_trigger_json"`
	SliceHashes     []string `bson:"slice_hashes"`

	LastError string `bson:"last_error"`
	Version   int64  `bson:"version"`
}

func toDoc(o types.AdvancedOrder) (orderDoc, error) {
	paramsJSON, err := json.Marshal(o.Params)
	if err != nil {
		return orderDoc{}, fmt.Errorf("marshal params: %w", err)
	}
	nextJSON, err := json.Marshal(o.NextTrigger)
	if err != nil {
		return orderDoc{}, fmt.Errorf("marshal next_trigger: %w", err)
	}
	return orderDoc{
		ID:              o.ID,
		Owner:           o.Owner,
		MakerAsset:      o.MakerAsset,
		TakerAsset:      o.TakerAsset,
		Symbol:          string(o.Symbol),
		Side:            string(o.Side),
		Kind:            string(o.Kind),
		ParamsJSON:      string(paramsJSON),
		Status:          string(o.Status),
		CreatedMs:       o.CreatedMs,
		TriggerCount:    o.TriggerCount,
		OriginalMaking:  o.OriginalMaking.String(),
		RemainingMaker:  o.RemainingMaker.String(),
		TotalFilled:     o.TotalFilled.String(),
		NextTriggerJSON: string(nextJSON),
		SliceHashes:     o.SliceHashes,
		LastError:       o.LastError,
		Version:         o.Version,
	}, nil
}

func fromDoc(d orderDoc) (types.AdvancedOrder, error) {
	params, err := types.UnmarshalOrderParams(types.OrderKind(d.Kind), json.RawMessage(d.ParamsJSON))
	if err != nil {
		return types.AdvancedOrder{}, fmt.Errorf("decode params: %w", err)
	}
	var next types.NextTrigger
	if d.NextTriggerJSON != "" {
		if err := json.Unmarshal([]byte(d.NextTriggerJSON), &next); err != nil {
			return types.AdvancedOrder{}, fmt.Errorf("decode next_trigger: %w", err)
		}
	}
	originalMaking, err := decimal.NewFromString(d.OriginalMaking)
	if err != nil {
		return types.AdvancedOrder{}, fmt.Errorf("decode original_making: %w", err)
	}
	remainingMaker, err := decimal.NewFromString(d.RemainingMaker)
	if err != nil {
		return types.AdvancedOrder{}, fmt.Errorf("decode remaining_maker: %w", err)
	}
	totalFilled, err := decimal.NewFromString(d.TotalFilled)
	if err != nil {
		return types.AdvancedOrder{}, fmt.Errorf("decode total_filled: %w", err)
	}

	return types.AdvancedOrder{
		ID:             d.ID,
		Owner:          d.Owner,
		MakerAsset:     d.MakerAsset,
		TakerAsset:     d.TakerAsset,
		Symbol:         types.IndexSymbol(d.Symbol),
		Side:           types.Side(d.Side),
		Kind:           types.OrderKind(d.Kind),
		Params:         params,
		Status:         types.OrderStatus(d.Status),
		CreatedMs:      d.CreatedMs,
		TriggerCount:   d.TriggerCount,
		OriginalMaking: originalMaking,
		RemainingMaker: remainingMaker,
		TotalFilled:    totalFilled,
		NextTrigger:    next,
		SliceHashes:    d.SliceHashes,
		LastError:      d.LastError,
		Version:        d.Version,
	}, nil
}

// InsertOrder persists a newly validated AdvancedOrder with status=Pending.
func (s *Store) InsertOrder(ctx context.Context, order types.AdvancedOrder) error {
	order.Status = types.StatusPending
	order.Version = 1

	doc, err := toDoc(order)
	if err != nil {
		return err
	}
	if _, err := s.ordersColl().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}
	return nil
}

// GetOrder loads an AdvancedOrder by id, returning ErrNotFound if absent.
func (s *Store) GetOrder(ctx context.Context, id string) (types.AdvancedOrder, error) {
	var doc orderDoc
	err := s.ordersColl().FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.AdvancedOrder{}, ErrNotFound
	}
	if err != nil {
		return types.AdvancedOrder{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return fromDoc(doc)
}

// Mutator transforms an AdvancedOrder in place; returning an error aborts
// the update without persisting any change.
type Mutator func(order *types.AdvancedOrder) error

// UpdateOrder performs an atomic read-modify-write: it loads the order,
// applies mutate, and writes the result back gated on the Version observed
// at load time, so concurrent mutations to the same order never silently
// clobber one another. ErrVersionConflict signals the caller should retry
// from GetOrder.
func (s *Store) UpdateOrder(ctx context.Context, id string, mutate Mutator) (types.AdvancedOrder, error) {
	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return types.AdvancedOrder{}, err
	}

	updated := current
	if err := mutate(&updated); err != nil {
		return types.AdvancedOrder{}, fmt.Errorf("mutate order %s: %w", id, err)
	}
	updated.Version = current.Version + 1

	doc, err := toDoc(updated)
	if err != nil {
		return types.AdvancedOrder{}, err
	}

	filter := bson.M{"id": id, "version": current.Version}
	after := options.After
	res := s.ordersColl().FindOneAndReplace(ctx, filter, doc, &options.FindOneAndReplaceOptions{ReturnDocument: &after})

	var result orderDoc
	if err := res.Decode(&result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.AdvancedOrder{}, ErrVersionConflict
		}
		return types.AdvancedOrder{}, fmt.Errorf("persist order %s: %w", id, err)
	}
	return fromDoc(result)
}

// ListPending returns every AdvancedOrder in a non-terminal state, used by
// the Watcher Registry to reconstruct running supervisors on startup.
func (s *Store) ListPending(ctx context.Context) ([]types.AdvancedOrder, error) {
	terminal := []string{
		string(types.StatusFilled), string(types.StatusCancelled),
		string(types.StatusExpired), string(types.StatusFailed),
	}
	cursor, err := s.ordersColl().Find(ctx, bson.M{"status": bson.M{"$nin": terminal}})
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode pending orders: %w", err)
	}

	orders := make([]types.AdvancedOrder, 0, len(docs))
	for _, d := range docs {
		order, err := fromDoc(d)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
