package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	pkgmongo "github.com/wms-platform/task-engine/pkg/mongodb"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

// Collection names
const (
	CollectionTasks           = "tasks"
	CollectionWaves           = "waves"
	CollectionWavePicklists   = "wave_picklists"
	CollectionSlotScores      = "slot_scores"
	CollectionCrossDocks      = "cross_docks"
	CollectionWorkerLocations = "worker_locations"
)

// Transactor implements domain.Transactor with a MongoDB session. The
// callback receives the session context; repositories called with it join
// the transaction. A nested call reuses the outer session.
type Transactor struct {
	client *pkgmongo.InstrumentedClient
}

// NewTransactor creates a Transactor
func NewTransactor(client *pkgmongo.InstrumentedClient) *Transactor {
	return &Transactor{client: client}
}

// WithTransaction runs fn in a transaction
func (t *Transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	return t.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
}

// scoped adds the tenant condition when the caller carries an explicit
// tenant. Background sweeps run without one and see every tenant.
func scoped(ctx context.Context, filter bson.M) bson.M {
	if _, err := tenant.FromContext(ctx); err != nil {
		return filter
	}
	return tenant.NewRepositoryHelper(false).WithTenantFilterOptional(ctx, filter)
}

// tenantIndexes returns the shared tenant indexes as models
func tenantIndexes() []mongo.IndexModel {
	keys := tenant.TenantIndexes()
	models := make([]mongo.IndexModel, 0, len(keys))
	for _, k := range keys {
		models = append(models, mongo.IndexModel{Keys: k})
	}
	return models
}
