package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/task-engine/internal/domain"
	pkgmongo "github.com/wms-platform/task-engine/pkg/mongodb"
)

// CrossDockRepository implements domain.CrossDockRepository using MongoDB
type CrossDockRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewCrossDockRepository creates a new CrossDockRepository
func NewCrossDockRepository(client *pkgmongo.InstrumentedClient) *CrossDockRepository {
	return &CrossDockRepository{collection: client.Collection(CollectionCrossDocks)}
}

// EnsureIndexes creates the inbound lookup index
func (r *CrossDockRepository) EnsureIndexes(ctx context.Context) error {
	indexes := append(tenantIndexes(),
		mongo.IndexModel{Keys: bson.D{{Key: "inboundRef.id", Value: 1}, {Key: "status", Value: 1}}},
	)
	return pkgmongo.EnsureIndexes(ctx, r.collection.Raw(), indexes)
}

// Save inserts or replaces the record at its current version
func (r *CrossDockRepository) Save(ctx context.Context, cd *domain.CrossDock) error {
	expected := cd.Version
	cd.Version = expected + 1

	if err := saveVersioned(ctx, r.collection, cd.ID, expected, cd); err != nil {
		cd.Version = expected
		return err
	}
	return nil
}

// FindByID retrieves a record by its ID
func (r *CrossDockRepository) FindByID(ctx context.Context, id string) (*domain.CrossDock, error) {
	return r.findOne(ctx, scoped(ctx, bson.M{"_id": id}), id)
}

// FindOpenByInbound returns the non-terminal record fed by the inbound
func (r *CrossDockRepository) FindOpenByInbound(ctx context.Context, inboundID string) (*domain.CrossDock, error) {
	filter := bson.M{
		"inboundRef.id": inboundID,
		"status":        bson.M{"$nin": []domain.CrossDockStatus{domain.CrossDockDeparted, domain.CrossDockCancelled}},
	}
	return r.findOne(ctx, scoped(ctx, filter), inboundID)
}

func (r *CrossDockRepository) findOne(ctx context.Context, filter bson.M, key string) (*domain.CrossDock, error) {
	var cd domain.CrossDock
	err := r.collection.FindOne(ctx, filter).Decode(&cd)
	if pkgmongo.IsNoDocuments(err) {
		return nil, domain.NewNotFound("cross-dock", key)
	}
	if err != nil {
		return nil, err
	}
	return &cd, nil
}
