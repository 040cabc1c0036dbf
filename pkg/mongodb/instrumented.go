package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

// InstrumentedClient wraps a Client so every collection operation is traced,
// counted and logged.
type InstrumentedClient struct {
	client  *Client
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewInstrumentedClient creates a new instrumented MongoDB client
func NewInstrumentedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *InstrumentedClient {
	return &InstrumentedClient{
		client:  client,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("mongodb"),
	}
}

// Collection returns an instrumented collection
func (c *InstrumentedClient) Collection(name string) *InstrumentedCollection {
	return &InstrumentedCollection{
		collection: c.client.Collection(name),
		name:       name,
		database:   c.client.config.Database,
		metrics:    c.metrics,
		logger:     c.logger,
		tracer:     c.tracer,
	}
}

func (c *InstrumentedClient) Database() *mongo.Database {
	return c.client.Database()
}

func (c *InstrumentedClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// HealthCheck pings the primary inside a span
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.ping",
		trace.WithAttributes(semconv.DBSystemMongoDB, semconv.DBNameKey.String(c.client.config.Database)))
	defer span.End()

	err := c.client.HealthCheck(ctx)
	finishSpan(span, err)
	return err
}

// WithTransaction runs fn in a transaction inside a span
func (c *InstrumentedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.transaction",
		trace.WithAttributes(semconv.DBSystemMongoDB, semconv.DBNameKey.String(c.client.config.Database)))
	defer span.End()

	err := c.client.WithTransaction(ctx, fn)
	finishSpan(span, err)
	return err
}

// InstrumentedCollection wraps a collection with metrics and tracing
type InstrumentedCollection struct {
	collection *mongo.Collection
	name       string
	database   string
	metrics    *metrics.Metrics
	logger     *logging.Logger
	tracer     trace.Tracer
}

// Raw exposes the driver collection for index management
func (c *InstrumentedCollection) Raw() *mongo.Collection {
	return c.collection
}

// observe runs op inside a client span and records its outcome. A
// mongo.ErrNoDocuments result counts as a successful lookup.
func (c *InstrumentedCollection) observe(ctx context.Context, operation string, op func(ctx context.Context) (int64, error)) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.database),
			semconv.DBOperationKey.String(operation),
			attribute.String("db.collection", c.name),
		),
	)
	defer span.End()

	rows, err := op(ctx)
	duration := time.Since(start)
	success := err == nil || IsNoDocuments(err)

	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation(c.name, operation, success, duration)
	}
	if c.logger != nil {
		c.logger.DatabaseQuery(ctx, c.name, operation, duration, success, rows)
	}

	if success {
		span.SetAttributes(attribute.Int64("db.rows_affected", rows))
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

func (c *InstrumentedCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (result *mongo.InsertOneResult, err error) {
	c.observe(ctx, "insertOne", func(ctx context.Context) (int64, error) {
		result, err = c.collection.InsertOne(ctx, document, opts...)
		if err != nil {
			return 0, err
		}
		return 1, nil
	})
	return result, err
}

func (c *InstrumentedCollection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (result *mongo.InsertManyResult, err error) {
	c.observe(ctx, "insertMany", func(ctx context.Context) (int64, error) {
		result, err = c.collection.InsertMany(ctx, documents, opts...)
		if err != nil {
			return 0, err
		}
		return int64(len(result.InsertedIDs)), nil
	})
	return result, err
}

func (c *InstrumentedCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (result *mongo.SingleResult) {
	c.observe(ctx, "findOne", func(ctx context.Context) (int64, error) {
		result = c.collection.FindOne(ctx, filter, opts...)
		if err := result.Err(); err != nil {
			return 0, err
		}
		return 1, nil
	})
	return result
}

func (c *InstrumentedCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (cursor *mongo.Cursor, err error) {
	c.observe(ctx, "find", func(ctx context.Context) (int64, error) {
		cursor, err = c.collection.Find(ctx, filter, opts...)
		return 0, err
	})
	return cursor, err
}

func (c *InstrumentedCollection) UpdateOne(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (result *mongo.UpdateResult, err error) {
	c.observe(ctx, "updateOne", func(ctx context.Context) (int64, error) {
		result, err = c.collection.UpdateOne(ctx, filter, update, opts...)
		if err != nil {
			return 0, err
		}
		return result.ModifiedCount + result.UpsertedCount, nil
	})
	return result, err
}

func (c *InstrumentedCollection) UpdateMany(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (result *mongo.UpdateResult, err error) {
	c.observe(ctx, "updateMany", func(ctx context.Context) (int64, error) {
		result, err = c.collection.UpdateMany(ctx, filter, update, opts...)
		if err != nil {
			return 0, err
		}
		return result.ModifiedCount, nil
	})
	return result, err
}

func (c *InstrumentedCollection) ReplaceOne(ctx context.Context, filter, replacement interface{}, opts ...*options.ReplaceOptions) (result *mongo.UpdateResult, err error) {
	c.observe(ctx, "replaceOne", func(ctx context.Context) (int64, error) {
		result, err = c.collection.ReplaceOne(ctx, filter, replacement, opts...)
		if err != nil {
			return 0, err
		}
		return result.ModifiedCount + result.UpsertedCount, nil
	})
	return result, err
}

func (c *InstrumentedCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (result *mongo.DeleteResult, err error) {
	c.observe(ctx, "deleteMany", func(ctx context.Context) (int64, error) {
		result, err = c.collection.DeleteMany(ctx, filter, opts...)
		if err != nil {
			return 0, err
		}
		return result.DeletedCount, nil
	})
	return result, err
}

func (c *InstrumentedCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (count int64, err error) {
	c.observe(ctx, "countDocuments", func(ctx context.Context) (int64, error) {
		count, err = c.collection.CountDocuments(ctx, filter, opts...)
		return 0, err
	})
	return count, err
}

func (c *InstrumentedCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (cursor *mongo.Cursor, err error) {
	c.observe(ctx, "aggregate", func(ctx context.Context) (int64, error) {
		cursor, err = c.collection.Aggregate(ctx, pipeline, opts...)
		return 0, err
	})
	return cursor, err
}

// FindOneAndUpdate is the compare-and-set primitive used by task claims
func (c *InstrumentedCollection) FindOneAndUpdate(ctx context.Context, filter, update interface{}, opts ...*options.FindOneAndUpdateOptions) (result *mongo.SingleResult) {
	c.observe(ctx, "findOneAndUpdate", func(ctx context.Context) (int64, error) {
		result = c.collection.FindOneAndUpdate(ctx, filter, update, opts...)
		if err := result.Err(); err != nil {
			return 0, err
		}
		return 1, nil
	})
	return result
}

func (c *InstrumentedCollection) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (result *mongo.BulkWriteResult, err error) {
	c.observe(ctx, "bulkWrite", func(ctx context.Context) (int64, error) {
		result, err = c.collection.BulkWrite(ctx, models, opts...)
		if err != nil {
			return 0, err
		}
		return result.InsertedCount + result.ModifiedCount + result.UpsertedCount + result.DeletedCount, nil
	})
	return result, err
}
