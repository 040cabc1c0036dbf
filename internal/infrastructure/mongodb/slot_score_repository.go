package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/task-engine/internal/domain"
	pkgmongo "github.com/wms-platform/task-engine/pkg/mongodb"
)

// SlotScoreRepository implements domain.SlotScoreRepository using MongoDB
type SlotScoreRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewSlotScoreRepository creates a new SlotScoreRepository
func NewSlotScoreRepository(client *pkgmongo.InstrumentedClient) *SlotScoreRepository {
	return &SlotScoreRepository{collection: client.Collection(CollectionSlotScores)}
}

// EnsureIndexes creates the per-product and relocation indexes
func (r *SlotScoreRepository) EnsureIndexes(ctx context.Context) error {
	indexes := append(tenantIndexes(),
		mongo.IndexModel{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "warehouseId", Value: 1}, {Key: "productId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		mongo.IndexModel{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "relocationRank", Value: 1}}},
	)
	return pkgmongo.EnsureIndexes(ctx, r.collection.Raw(), indexes)
}

// Upsert replaces each product row in place, keeping its creation time
func (r *SlotScoreRepository) Upsert(ctx context.Context, scores []*domain.SlotScore) error {
	if len(scores) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(scores))
	for _, s := range scores {
		doc, err := bson.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode slot score: %w", err)
		}
		var set bson.M
		if err := bson.Unmarshal(doc, &set); err != nil {
			return fmt.Errorf("failed to encode slot score: %w", err)
		}
		delete(set, "_id")
		delete(set, "createdAt")

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": s.ID}).
			SetUpdate(bson.M{"$set": set, "$setOnInsert": bson.M{"createdAt": s.CreatedAt}}).
			SetUpsert(true))
	}
	if _, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to upsert slot scores: %w", err)
	}
	return nil
}

// FindByWarehouse lists every scored product of a warehouse
func (r *SlotScoreRepository) FindByWarehouse(ctx context.Context, warehouseID string) ([]*domain.SlotScore, error) {
	return r.find(ctx, scoped(ctx, bson.M{"warehouseId": warehouseID}), options.Find().SetSort(bson.D{{Key: "productId", Value: 1}}))
}

// FindByProduct returns one product's row
func (r *SlotScoreRepository) FindByProduct(ctx context.Context, warehouseID, productID string) (*domain.SlotScore, error) {
	var score domain.SlotScore
	err := r.collection.FindOne(ctx, scoped(ctx, bson.M{"warehouseId": warehouseID, "productId": productID})).Decode(&score)
	if pkgmongo.IsNoDocuments(err) {
		return nil, domain.NewNotFound("slot score", productID)
	}
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// FindRelocations lists ranked relocation candidates, best first
func (r *SlotScoreRepository) FindRelocations(ctx context.Context, warehouseID string, limit int) ([]*domain.SlotScore, error) {
	filter := bson.M{"warehouseId": warehouseID, "relocationRank": bson.M{"$gt": 0}}
	opts := options.Find().SetSort(bson.D{{Key: "relocationRank", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, scoped(ctx, filter), opts)
}

func (r *SlotScoreRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.SlotScore, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var scores []*domain.SlotScore
	if err := cursor.All(ctx, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}
