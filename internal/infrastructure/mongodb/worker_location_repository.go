package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/task-engine/internal/domain"
	pkgmongo "github.com/wms-platform/task-engine/pkg/mongodb"
)

// WorkerLocationRepository implements domain.WorkerLocationRepository.
// Position and session fields are written by separate partial upserts so
// the tracker and the session coordinator never overwrite each other.
type WorkerLocationRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewWorkerLocationRepository creates a new WorkerLocationRepository
func NewWorkerLocationRepository(client *pkgmongo.InstrumentedClient) *WorkerLocationRepository {
	return &WorkerLocationRepository{collection: client.Collection(CollectionWorkerLocations)}
}

// EnsureIndexes creates the worker, session and zone indexes
func (r *WorkerLocationRepository) EnsureIndexes(ctx context.Context) error {
	indexes := append(tenantIndexes(),
		mongo.IndexModel{Keys: bson.D{{Key: "workerId", Value: 1}}, Options: options.Index().SetUnique(true)},
		mongo.IndexModel{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetSparse(true)},
		mongo.IndexModel{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "currentZone", Value: 1}, {Key: "sessionStatus", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "sessionStatus", Value: 1}, {Key: "lastHeartbeatAt", Value: 1}}},
	)
	return pkgmongo.EnsureIndexes(ctx, r.collection.Raw(), indexes)
}

// FindByWorker returns the worker's row
func (r *WorkerLocationRepository) FindByWorker(ctx context.Context, workerID string) (*domain.WorkerLocation, error) {
	return r.findOne(ctx, bson.M{"workerId": workerID}, workerID)
}

// FindBySession returns the row holding the session
func (r *WorkerLocationRepository) FindBySession(ctx context.Context, sessionID string) (*domain.WorkerLocation, error) {
	return r.findOne(ctx, bson.M{"sessionId": sessionID}, sessionID)
}

// ListByZone lists workers last seen in a zone
func (r *WorkerLocationRepository) ListByZone(ctx context.Context, warehouseID, zone string) ([]*domain.WorkerLocation, error) {
	return r.find(ctx, scoped(ctx, bson.M{"warehouseId": warehouseID, "currentZone": zone}))
}

// SavePosition upserts the tracker-owned fields
func (r *WorkerLocationRepository) SavePosition(ctx context.Context, loc *domain.WorkerLocation) error {
	set := bson.M{
		"warehouseId":   loc.WarehouseID,
		"currentZone":   loc.CurrentZone,
		"currentBin":    loc.CurrentBin,
		"currentTaskId": loc.CurrentTaskID,
		"lastTaskType":  loc.LastTaskType,
		"lastTaskBin":   loc.LastTaskBin,
		"pinnedZone":    loc.PinnedZone,
		"isOnBreak":     loc.IsOnBreak,
		"updatedAt":     loc.UpdatedAt,
	}
	return r.upsert(ctx, loc, set)
}

// SaveSession upserts the session-owned fields
func (r *WorkerLocationRepository) SaveSession(ctx context.Context, loc *domain.WorkerLocation) error {
	set := bson.M{
		"warehouseId":      loc.WarehouseID,
		"sessionId":        loc.SessionID,
		"deviceId":         loc.DeviceID,
		"sessionStatus":    loc.SessionStatus,
		"sessionStartedAt": loc.SessionStartedAt,
		"lastHeartbeatAt":  loc.LastHeartbeatAt,
		"shiftStart":       loc.ShiftStart,
		"shiftEnd":         loc.ShiftEnd,
		"updatedAt":        loc.UpdatedAt,
	}
	return r.upsert(ctx, loc, set)
}

func (r *WorkerLocationRepository) upsert(ctx context.Context, loc *domain.WorkerLocation, set bson.M) error {
	id := loc.ID
	if id == "" {
		id = loc.WorkerID
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":        id,
			"tenantId":   loc.TenantID,
			"facilityId": loc.FacilityID,
			"createdAt":  loc.CreatedAt,
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"workerId": loc.WorkerID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save worker location: %w", err)
	}
	return nil
}

// TransitionSession moves a session between statuses exactly once
func (r *WorkerLocationRepository) TransitionSession(ctx context.Context, sessionID string, from, to domain.SessionStatus, at time.Time) (bool, error) {
	filter := bson.M{"sessionId": sessionID, "sessionStatus": from}
	update := bson.M{"$set": bson.M{"sessionStatus": to, "updatedAt": at}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to transition session: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

// FindStaleSessions lists ACTIVE sessions silent since before the cutoff
func (r *WorkerLocationRepository) FindStaleSessions(ctx context.Context, heartbeatBefore time.Time) ([]*domain.WorkerLocation, error) {
	return r.find(ctx, bson.M{
		"sessionStatus":   domain.SessionActive,
		"lastHeartbeatAt": bson.M{"$lt": heartbeatBefore},
	})
}

// CountActiveInZone counts signed-in workers in a zone
func (r *WorkerLocationRepository) CountActiveInZone(ctx context.Context, warehouseID, zone string) (int64, error) {
	filter := bson.M{"warehouseId": warehouseID, "currentZone": zone, "sessionStatus": domain.SessionActive}
	return r.collection.CountDocuments(ctx, scoped(ctx, filter))
}

// CountActiveSessions counts signed-in workers across all tenants
func (r *WorkerLocationRepository) CountActiveSessions(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"sessionStatus": domain.SessionActive})
}

func (r *WorkerLocationRepository) findOne(ctx context.Context, filter bson.M, key string) (*domain.WorkerLocation, error) {
	var loc domain.WorkerLocation
	err := r.collection.FindOne(ctx, filter).Decode(&loc)
	if pkgmongo.IsNoDocuments(err) {
		return nil, domain.NewNotFound("worker location", key)
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *WorkerLocationRepository) find(ctx context.Context, filter bson.M) ([]*domain.WorkerLocation, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var locs []*domain.WorkerLocation
	if err := cursor.All(ctx, &locs); err != nil {
		return nil, err
	}
	return locs, nil
}
