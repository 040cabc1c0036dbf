package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/internal/config"
	"github.com/wms-platform/task-engine/internal/infrastructure/clients"
	kafkaAdapter "github.com/wms-platform/task-engine/internal/infrastructure/kafka"
	mongoRepo "github.com/wms-platform/task-engine/internal/infrastructure/mongodb"
	redisAdapter "github.com/wms-platform/task-engine/internal/infrastructure/redis"
	"github.com/wms-platform/task-engine/pkg/cloudevents"
	"github.com/wms-platform/task-engine/pkg/contracts/asyncapi"
	"github.com/wms-platform/task-engine/pkg/idempotency"
	"github.com/wms-platform/task-engine/pkg/kafka"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
	"github.com/wms-platform/task-engine/pkg/middleware"
	"github.com/wms-platform/task-engine/pkg/mongodb"
	"github.com/wms-platform/task-engine/pkg/outbox"
	outboxMongo "github.com/wms-platform/task-engine/pkg/outbox/mongodb"
	"github.com/wms-platform/task-engine/pkg/temporal"
	"github.com/wms-platform/task-engine/pkg/tracing"
)

const serviceName = "task-engine"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.ParseLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting task-engine API")

	cfg := loadConfig()
	ctx := context.Background()

	engine, err := config.LoadFromEnv()
	if err != nil {
		logger.WithError(err).Error("Invalid engine configuration")
		os.Exit(1)
	}

	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"
	tracingConfig.SampleRate = parseFloat(getEnv("TRACING_SAMPLE_RATE", "1.0"), 1.0)

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		// the engine runs without traces rather than refusing to start
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	// MongoDB
	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	db := mongodb.NewInstrumentedClient(mongoClient, m, logger)
	defer db.Close(context.Background())
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	taskRepo := mongoRepo.NewTaskRepository(db)
	waveRepo := mongoRepo.NewWaveRepository(db)
	picklistRepo := mongoRepo.NewWavePicklistRepository(db)
	scoreRepo := mongoRepo.NewSlotScoreRepository(db)
	crossDockRepo := mongoRepo.NewCrossDockRepository(db)
	locationRepo := mongoRepo.NewWorkerLocationRepository(db)
	outboxRepo := outboxMongo.NewOutboxRepository(db.Database())
	transactor := mongoRepo.NewTransactor(db)

	for name, ensure := range map[string]func(context.Context) error{
		mongoRepo.CollectionTasks:           taskRepo.EnsureIndexes,
		mongoRepo.CollectionWaves:           waveRepo.EnsureIndexes,
		mongoRepo.CollectionWavePicklists:   picklistRepo.EnsureIndexes,
		mongoRepo.CollectionSlotScores:      scoreRepo.EnsureIndexes,
		mongoRepo.CollectionCrossDocks:      crossDockRepo.EnsureIndexes,
		mongoRepo.CollectionWorkerLocations: locationRepo.EnsureIndexes,
		outboxMongo.DefaultCollectionName:   outboxRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			logger.WithError(err).Error("Failed to ensure indexes", "collection", name)
			os.Exit(1)
		}
	}

	eventPublisher := kafkaAdapter.NewEventPublisher(outboxRepo, cloudevents.NewEventFactory(cloudevents.SourceTaskEngine))
	if cfg.ContractValidation {
		eventContract, err := asyncapi.NewEventValidatorFromBytes(kafkaAdapter.Contract)
		if err != nil {
			logger.WithError(err).Error("Invalid event contract")
			os.Exit(1)
		}
		eventPublisher.SetValidator(eventContract)
		logger.Info("Event contract validation enabled", "eventTypes", len(eventContract.SupportedEventTypes()))
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Error("Failed to connect to Redis")
		os.Exit(1)
	}
	logger.Info("Connected to Redis", "addr", cfg.Redis.Addr)

	zoneLockConfig := redisAdapter.DefaultZoneLockConfig()
	zoneLockConfig.WaitTimeout = parseDuration(getEnv("ZONE_LOCK_WAIT", "3s"), zoneLockConfig.WaitTimeout)
	zoneLock := redisAdapter.NewZoneLock(redisClient, zoneLockConfig, logger)
	jobLock := redisAdapter.NewJobLock(redisClient, logger)
	sessionCache := redisAdapter.NewSessionCache(redisClient)
	idempotencyStore := idempotency.NewRedisStore(redisClient)
	idempotencyMetrics := idempotency.NewMetrics(m.Registry())

	// Temporal is optional; without it waves release but orders are not signalled
	var signaler clients.WorkflowSignaler
	temporalClient, err := temporal.NewClient(ctx, cfg.Temporal, logger.Logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to connect to Temporal - wave signaling will be disabled")
	} else {
		defer temporalClient.Close()
		signaler = temporalClient
		logger.Info("Connected to Temporal", "host", cfg.Temporal.HostPort)
	}

	picklistClient := clients.NewPicklistClient(clients.DefaultConfig("picking-service", cfg.PickingServiceURL), signaler, logger)
	inventoryClient := clients.NewInventoryClient(clients.DefaultConfig("inventory-service", cfg.InventoryServiceURL), logger)

	// Application services
	tracker := application.NewLocationTracker(locationRepo, application.SystemClock, logger)
	dispatcher := application.NewDispatcher(application.DispatcherDeps{
		Tasks:      taskRepo,
		Locations:  locationRepo,
		Transactor: transactor,
		Events:     eventPublisher,
		Inventory:  inventoryClient,
		Locks:      application.NewZoneLocks(zoneLock),
		Tracker:    tracker,
		Clock:      application.SystemClock,
	}, engine.Dispatch, logger, m)

	waveBuilder := application.NewWaveBuilder(application.WaveBuilderDeps{
		Waves:      waveRepo,
		Picklists:  picklistRepo,
		Tasks:      taskRepo,
		Transactor: transactor,
		Events:     eventPublisher,
		Upstream:   picklistClient,
		Canceller:  dispatcher,
		Clock:      application.SystemClock,
	}, logger, m)
	dispatcher.AddObserver(waveBuilder)

	optimizer := application.NewSlottingOptimizer(taskRepo, scoreRepo, inventoryClient, transactor, eventPublisher, engine.Slotting, application.SystemClock, logger, m)
	dispatcher.SetPutawayAdvisor(optimizer)

	assignment := application.NewAssignmentCoordinator(dispatcher, taskRepo, locationRepo, sessionCache, engine.Assignment, application.SystemClock, logger, m)
	assignment.SetWorkerLock(zoneLock)
	crossDocks := application.NewCrossDockCoordinator(crossDockRepo, taskRepo, transactor, eventPublisher, dispatcher, application.SystemClock, logger, m)
	receiving := application.NewReceivingHandler(crossDocks, dispatcher, logger)

	heartbeatMonitor := application.NewHeartbeatMonitor(assignment, engine.Assignment, logger)
	if err := heartbeatMonitor.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start heartbeat monitor")
		os.Exit(1)
	}

	var slottingScheduler *application.SlottingScheduler
	if len(engine.Slotting.Warehouses) > 0 {
		slottingScheduler = application.NewSlottingScheduler(optimizer, jobLock, engine.Slotting, application.SystemClock, logger)
		if err := slottingScheduler.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start slotting scheduler")
		} else {
			logger.Info("Slotting scheduler started",
				"interval", engine.Slotting.Interval,
				"warehouses", len(engine.Slotting.Warehouses),
			)
		}
	} else {
		logger.Info("Slotting scheduler disabled, no warehouses configured")
	}

	// Kafka
	producer := kafka.NewProductionProducer(cfg.Kafka, m, logger)
	defer producer.Close()

	outboxPublisher := outbox.NewPublisher(outboxRepo, producer, logger, m, &outbox.PublisherConfig{
		PollInterval: parseDuration(getEnv("OUTBOX_POLL_INTERVAL", "1s"), time.Second),
		BatchSize:    parseInt(getEnv("OUTBOX_BATCH_SIZE", "100"), 100),
	})
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	logger.Info("Outbox publisher started")

	consumer := kafka.NewInstrumentedConsumer(kafka.NewConsumer(cfg.Kafka, logger.Logger), m, logger)
	kafkaAdapter.NewReceivingConsumer(receiving, logger).Register(consumer, idempotencyStore, cfg.Kafka.ConsumerGroup, idempotencyMetrics)
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	go func() {
		if err := consumer.Start(consumerCtx); err != nil {
			logger.WithError(err).Error("Kafka consumer stopped")
		}
	}()
	logger.Info("Kafka consumer started", "brokers", cfg.Kafka.Brokers, "group", cfg.Kafka.ConsumerGroup)

	// HTTP
	router := gin.New()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:9080"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-Correlation-ID", "Idempotency-Key", middleware.HeaderWMSTenantID, middleware.HeaderWMSFacilityID, middleware.HeaderWMSWarehouseID, middleware.HeaderWorkerID},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-Correlation-ID"},
		AllowCredentials: true,
	}))
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.SimpleTracingMiddleware(serviceName))

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := db.HealthCheck(checkCtx); err != nil {
			return err
		}
		return redisClient.Ping(checkCtx).Err()
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))
	router.GET("/openapi.yaml", serveAPIContract)

	idempotencyConfig := idempotency.DefaultConfig(serviceName, idempotencyStore)
	idempotencyConfig.Metrics = idempotencyMetrics
	idempotencyConfig.Logger = logger.Logger

	api := router.Group("/api/v1")
	api.Use(middleware.TenantContext(middleware.TenantConfig{Required: cfg.TenantRequired}))
	if cfg.ContractValidation {
		requestContract, err := loadAPIContract()
		if err != nil {
			logger.WithError(err).Error("Invalid API contract")
			os.Exit(1)
		}
		api.Use(middleware.ContractValidation(requestContract, logger.Logger))
	}
	api.Use(idempotency.Middleware(idempotencyConfig))
	registerRoutes(api, services{
		Waves:      waveBuilder,
		Tasks:      dispatcher,
		Assignment: assignment,
		Locations:  tracker,
		Slotting:   optimizer,
		CrossDocks: crossDocks,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	heartbeatMonitor.Stop()
	if slottingScheduler != nil {
		slottingScheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	stopConsumer()
	if err := consumer.Close(); err != nil {
		logger.WithError(err).Error("Failed to close Kafka consumer")
	}
	if err := outboxPublisher.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop outbox publisher")
	}

	logger.Info("Server stopped")
}

// Config holds process configuration; engine tuning lives in internal/config
type Config struct {
	ServerAddr          string
	TenantRequired      bool
	ContractValidation  bool
	MongoDB             *mongodb.Config
	Kafka               *kafka.Config
	Redis               RedisConfig
	Temporal            *temporal.Config
	PickingServiceURL   string
	InventoryServiceURL string
}

// RedisConfig holds the coordination store connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func loadConfig() *Config {
	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = getEnv("MONGODB_URI", mongoConfig.URI)
	mongoConfig.Database = getEnv("MONGODB_DATABASE", mongoConfig.Database)

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = []string{getEnv("KAFKA_BROKERS", "localhost:9092")}
	kafkaConfig.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", serviceName)
	kafkaConfig.ClientID = serviceName

	temporalConfig := temporal.DefaultConfig()
	temporalConfig.HostPort = getEnv("TEMPORAL_HOST", temporalConfig.HostPort)
	temporalConfig.Namespace = getEnv("TEMPORAL_NAMESPACE", temporalConfig.Namespace)
	temporalConfig.Identity = serviceName

	return &Config{
		ServerAddr:     getEnv("SERVER_ADDR", ":8011"),
		TenantRequired: getEnv("TENANT_REQUIRED", "false") == "true",
		ContractValidation: getEnv("CONTRACT_VALIDATION", "false") == "true",
		MongoDB:        mongoConfig,
		Kafka:          kafkaConfig,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		},
		Temporal:            temporalConfig,
		PickingServiceURL:   getEnv("PICKING_SERVICE_URL", "http://localhost:8004"),
		InventoryServiceURL: getEnv("INVENTORY_SERVICE_URL", "http://localhost:8008"),
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return i
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
