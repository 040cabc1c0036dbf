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

// WavePicklistRepository implements domain.WavePicklistRepository. A
// partial unique index on picklistId over open rows keeps a picklist in at
// most one open wave.
type WavePicklistRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewWavePicklistRepository creates a new WavePicklistRepository
func NewWavePicklistRepository(client *pkgmongo.InstrumentedClient) *WavePicklistRepository {
	return &WavePicklistRepository{collection: client.Collection(CollectionWavePicklists)}
}

// EnsureIndexes creates the open-membership index
func (r *WavePicklistRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "picklistId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_open_picklist").
				SetPartialFilterExpression(bson.M{"open": true}),
		},
		{Keys: bson.D{{Key: "waveId", Value: 1}, {Key: "picklistId", Value: 1}}},
	}
	return pkgmongo.EnsureIndexes(ctx, r.collection.Raw(), indexes)
}

// Attach inserts an open association
func (r *WavePicklistRepository) Attach(ctx context.Context, wp *domain.WavePicklist) error {
	_, err := r.collection.InsertOne(ctx, wp)
	if pkgmongo.IsDuplicateKey(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to attach picklist: %w", err)
	}
	return nil
}

// FindByWave lists the wave's picklists
func (r *WavePicklistRepository) FindByWave(ctx context.Context, waveID string) ([]*domain.WavePicklist, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"waveId": waveID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []*domain.WavePicklist
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// OpenPicklistIDs reports which ids already sit in an open wave
func (r *WavePicklistRepository) OpenPicklistIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	open := make(map[string]bool)
	if len(ids) == 0 {
		return open, nil
	}
	filter := scoped(ctx, bson.M{"picklistId": bson.M{"$in": ids}, "open": true})
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"picklistId": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			PicklistID string `bson:"picklistId"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		open[row.PicklistID] = true
	}
	return open, cursor.Err()
}

// MarkCompleted flips completed once
func (r *WavePicklistRepository) MarkCompleted(ctx context.Context, waveID, picklistID string) (bool, error) {
	filter := bson.M{"waveId": waveID, "picklistId": picklistID, "completed": false}
	result, err := r.collection.UpdateOne(ctx, filter, pkgmongo.BuildUpdateWithTimestamp(bson.M{"completed": true}))
	if err != nil {
		return false, fmt.Errorf("failed to complete picklist: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

// CloseByWave releases the wave's picklists for future waves
func (r *WavePicklistRepository) CloseByWave(ctx context.Context, waveID string) error {
	_, err := r.collection.UpdateMany(ctx, bson.M{"waveId": waveID, "open": true}, pkgmongo.BuildUpdateWithTimestamp(bson.M{"open": false}))
	if err != nil {
		return fmt.Errorf("failed to close wave picklists: %w", err)
	}
	return nil
}
