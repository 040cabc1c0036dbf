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

var claimedStatuses = []domain.TaskStatus{domain.TaskStatusAssigned, domain.TaskStatusInProgress}

// TaskRepository implements domain.TaskRepository using MongoDB. Every
// status change is a conditional write on the stored status, holder and
// claimVersion.
type TaskRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(client *pkgmongo.InstrumentedClient) *TaskRepository {
	return &TaskRepository{collection: client.Collection(CollectionTasks)}
}

// EnsureIndexes creates the claim and lookup indexes
func (r *TaskRepository) EnsureIndexes(ctx context.Context) error {
	indexes := append(tenantIndexes(),
		mongo.IndexModel{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "status", Value: 1}, {Key: "zone", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "status", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "source.type", Value: 1}, {Key: "source.id", Value: 1}, {Key: "sequence", Value: 1}}},
		mongo.IndexModel{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "taskType", Value: 1}, {Key: "completedAt", Value: 1}}},
	)
	return pkgmongo.EnsureIndexes(ctx, r.collection.Raw(), indexes)
}

// SaveAll upserts tasks in one unordered bulk write
func (r *TaskRepository) SaveAll(ctx context.Context, tasks []*domain.WarehouseTask) error {
	if len(tasks) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(tasks))
	for _, t := range tasks {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": t.ID}).
			SetReplacement(t).
			SetUpsert(true))
	}
	if _, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to save tasks: %w", err)
	}
	return nil
}

// FindByID retrieves a task by its ID
func (r *TaskRepository) FindByID(ctx context.Context, taskID string) (*domain.WarehouseTask, error) {
	var task domain.WarehouseTask
	err := r.collection.FindOne(ctx, scoped(ctx, bson.M{"_id": taskID})).Decode(&task)
	if pkgmongo.IsNoDocuments(err) {
		return nil, domain.NewNotFound("task", taskID)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindPending lists PENDING tasks oldest first
func (r *TaskRepository) FindPending(ctx context.Context, warehouseID, zone string) ([]*domain.WarehouseTask, error) {
	filter := bson.M{"warehouseId": warehouseID, "status": domain.TaskStatusPending}
	if zone != "" {
		filter["zone"] = zone
	}
	return r.find(ctx, scoped(ctx, filter), options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
}

// FindOpenByWorker returns the task the worker currently holds
func (r *TaskRepository) FindOpenByWorker(ctx context.Context, workerID string) (*domain.WarehouseTask, error) {
	var task domain.WarehouseTask
	filter := bson.M{"assignedTo": workerID, "status": bson.M{"$in": claimedStatuses}}
	err := r.collection.FindOne(ctx, filter).Decode(&task)
	if pkgmongo.IsNoDocuments(err) {
		return nil, domain.NewNotFound("task", workerID)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindBySource lists the tasks generated from one wave, picklist or cross-dock
func (r *TaskRepository) FindBySource(ctx context.Context, source domain.TaskSource) ([]*domain.WarehouseTask, error) {
	filter := bson.M{"source.type": source.Type, "source.id": source.ID}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}, {Key: "_id", Value: 1}}))
}

// CountNonTerminalBySource counts the source's tasks still in flight
func (r *TaskRepository) CountNonTerminalBySource(ctx context.Context, source domain.TaskSource) (int64, error) {
	filter := bson.M{
		"source.type": source.Type,
		"source.id":   source.ID,
		"status":      bson.M{"$in": []domain.TaskStatus{domain.TaskStatusPending, domain.TaskStatusAssigned, domain.TaskStatusInProgress}},
	}
	return r.collection.CountDocuments(ctx, filter)
}

// FindExceptions lists unhandled EXCEPTION tasks
func (r *TaskRepository) FindExceptions(ctx context.Context, warehouseID string) ([]*domain.WarehouseTask, error) {
	filter := bson.M{
		"warehouseId":        warehouseID,
		"status":             domain.TaskStatusException,
		"exceptionHandledBy": bson.M{"$exists": false},
	}
	return r.find(ctx, scoped(ctx, filter), options.Find().SetSort(bson.D{{Key: "completedAt", Value: 1}}))
}

// FindCompletedPicks lists PICK tasks finished inside the period
func (r *TaskRepository) FindCompletedPicks(ctx context.Context, warehouseID string, period domain.Period) ([]*domain.WarehouseTask, error) {
	filter := bson.M{
		"warehouseId": warehouseID,
		"taskType":    domain.TaskTypePick,
		"status":      bson.M{"$in": []domain.TaskStatus{domain.TaskStatusCompleted, domain.TaskStatusException}},
		"completedAt": bson.M{"$gte": period.From, "$lt": period.To},
	}
	return r.find(ctx, scoped(ctx, filter), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// ClaimPending moves a PENDING task to ASSIGNED in one atomic update
func (r *TaskRepository) ClaimPending(ctx context.Context, taskID, workerID string, at time.Time) (*domain.WarehouseTask, error) {
	filter := bson.M{"_id": taskID, "status": domain.TaskStatusPending}
	update := bson.M{
		"$set": bson.M{
			"status":     domain.TaskStatusAssigned,
			"assignedTo": workerID,
			"assignedAt": at,
			"updatedAt":  at,
		},
		"$inc": bson.M{"claimVersion": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var task domain.WarehouseTask
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&task)
	if pkgmongo.IsNoDocuments(err) {
		return nil, domain.ErrClaimConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return &task, nil
}

func holderFilter(taskID, holder string, claimVersion int64) bson.M {
	return bson.M{
		"_id":          taskID,
		"status":       bson.M{"$in": claimedStatuses},
		"assignedTo":   holder,
		"claimVersion": claimVersion,
	}
}

// UpdateClaimed replaces the task while the claim is still the caller's
func (r *TaskRepository) UpdateClaimed(ctx context.Context, task *domain.WarehouseTask, holder string, claimVersion int64) error {
	result, err := r.collection.ReplaceOne(ctx, holderFilter(task.ID, holder, claimVersion), task)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrClaimConflict
	}
	return nil
}

// ReleaseClaim returns a claimed task to PENDING
func (r *TaskRepository) ReleaseClaim(ctx context.Context, taskID, holder string, claimVersion int64, at time.Time) (*domain.WarehouseTask, error) {
	update := bson.M{
		"$set":   bson.M{"status": domain.TaskStatusPending, "travelSeconds": 0, "updatedAt": at},
		"$unset": bson.M{"assignedTo": "", "assignedAt": "", "startedAt": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var task domain.WarehouseTask
	err := r.collection.FindOneAndUpdate(ctx, holderFilter(taskID, holder, claimVersion), update, opts).Decode(&task)
	if pkgmongo.IsNoDocuments(err) {
		return nil, domain.ErrClaimConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to release task: %w", err)
	}
	return &task, nil
}

// UpdateIfStatus replaces the task while its stored status is one of from
func (r *TaskRepository) UpdateIfStatus(ctx context.Context, task *domain.WarehouseTask, from ...domain.TaskStatus) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": task.ID, "status": bson.M{"$in": from}}, task)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrClaimConflict
	}
	return nil
}

// SetSuggestion records the next task the worker should pick up
func (r *TaskRepository) SetSuggestion(ctx context.Context, taskID, suggestedTaskID string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": taskID}, bson.M{"$set": bson.M{"suggestedNextTaskId": suggestedTaskID}})
	return err
}

func (r *TaskRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.WarehouseTask, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []*domain.WarehouseTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
