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

// WaveRepository implements domain.WaveRepository using MongoDB
type WaveRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewWaveRepository creates a new WaveRepository
func NewWaveRepository(client *pkgmongo.InstrumentedClient) *WaveRepository {
	return &WaveRepository{collection: client.Collection(CollectionWaves)}
}

// EnsureIndexes creates the wave indexes
func (r *WaveRepository) EnsureIndexes(ctx context.Context) error {
	indexes := append(tenantIndexes(),
		mongo.IndexModel{Keys: bson.D{{Key: "waveNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		mongo.IndexModel{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	)
	return pkgmongo.EnsureIndexes(ctx, r.collection.Raw(), indexes)
}

// Save inserts a new wave or replaces the stored one at the same version.
// On success wave.Version holds the stored version.
func (r *WaveRepository) Save(ctx context.Context, wave *domain.PickWave) error {
	expected := wave.Version
	wave.Version = expected + 1

	if err := saveVersioned(ctx, r.collection, wave.ID, expected, wave); err != nil {
		wave.Version = expected
		return err
	}
	return nil
}

// FindByID retrieves a wave by its ID
func (r *WaveRepository) FindByID(ctx context.Context, waveID string) (*domain.PickWave, error) {
	var wave domain.PickWave
	err := r.collection.FindOne(ctx, scoped(ctx, bson.M{"_id": waveID})).Decode(&wave)
	if pkgmongo.IsNoDocuments(err) {
		return nil, domain.NewNotFound("wave", waveID)
	}
	if err != nil {
		return nil, err
	}
	return &wave, nil
}

// FindByStatus lists the warehouse's waves, newest first
func (r *WaveRepository) FindByStatus(ctx context.Context, warehouseID string, status domain.WaveStatus) ([]*domain.PickWave, error) {
	filter := bson.M{"warehouseId": warehouseID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, scoped(ctx, filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var waves []*domain.PickWave
	if err := cursor.All(ctx, &waves); err != nil {
		return nil, err
	}
	return waves, nil
}

// AddProgress increments the progress counters and the version
func (r *WaveRepository) AddProgress(ctx context.Context, waveID string, pickedQuantity, completedPicklists int) error {
	update := bson.M{
		"$inc": bson.M{
			"counters.pickedQuantity":     pickedQuantity,
			"counters.completedPicklists": completedPicklists,
			"version":                     1,
		},
		"$currentDate": bson.M{"updatedAt": true},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": waveID}, update)
	if err != nil {
		return fmt.Errorf("failed to add wave progress: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.NewNotFound("wave", waveID)
	}
	return nil
}

// saveVersioned inserts doc when expected is 0, else replaces the document
// still stored at version expected
func saveVersioned(ctx context.Context, coll *pkgmongo.InstrumentedCollection, id string, expected int64, doc any) error {
	if expected == 0 {
		_, err := coll.InsertOne(ctx, doc)
		if pkgmongo.IsDuplicateKey(err) {
			return domain.ErrVersionConflict
		}
		return err
	}

	result, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "version": expected}, doc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}
