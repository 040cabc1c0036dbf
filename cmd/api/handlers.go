package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-engine/internal/application"
	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/middleware"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

type waveService interface {
	CreateWave(ctx context.Context, cmd application.CreateWaveCommand) (*application.WaveDTO, error)
	GetWave(ctx context.Context, waveID string) (*application.WaveDTO, error)
	ListWaves(ctx context.Context, warehouseID, status string) ([]application.WaveDTO, error)
	PreviewWave(ctx context.Context, waveID string) (*application.WavePreviewDTO, error)
	ReleaseWave(ctx context.Context, waveID string) (*application.ReleaseResultDTO, error)
	CancelWave(ctx context.Context, cmd application.CancelWaveCommand) (*application.WaveDTO, error)
}

type taskService interface {
	GetTask(ctx context.Context, taskID string) (*application.TaskDTO, error)
	CreateTask(ctx context.Context, cmd application.CreateTaskCommand) (*application.TaskDTO, error)
	StartTask(ctx context.Context, cmd application.StartTaskCommand) (*application.TaskDTO, error)
	CompleteTask(ctx context.Context, cmd application.CompleteTaskCommand) (*application.TaskDTO, error)
	SkipTask(ctx context.Context, cmd application.SkipTaskCommand) (*application.TaskDTO, error)
	CancelTask(ctx context.Context, cmd application.CancelTaskCommand) (*application.TaskDTO, error)
	ListExceptions(ctx context.Context, warehouseID string) ([]application.TaskDTO, error)
	ResolveException(ctx context.Context, cmd application.ResolveExceptionCommand) (*application.TaskDTO, error)
}

type assignmentService interface {
	Claim(ctx context.Context, cmd application.ClaimTaskCommand) (*application.TaskDTO, error)
	StartSession(ctx context.Context, cmd application.StartSessionCommand) (*application.SessionDTO, error)
	Heartbeat(ctx context.Context, sessionID string) (*application.SessionDTO, error)
	EndSession(ctx context.Context, sessionID string) error
}

type locationService interface {
	Update(ctx context.Context, cmd application.UpdateLocationCommand) (*application.WorkerLocationDTO, error)
	Get(ctx context.Context, workerID string) (*application.WorkerLocationDTO, error)
	ListByZone(ctx context.Context, warehouseID, zone string) ([]application.WorkerLocationDTO, error)
	SetBreak(ctx context.Context, workerID string, onBreak bool) (*application.WorkerLocationDTO, error)
	SetPinnedZone(ctx context.Context, workerID, zone string) (*application.WorkerLocationDTO, error)
}

type slottingService interface {
	Recompute(ctx context.Context, cmd application.RecomputeSlottingCommand) (*application.SlottingRunDTO, error)
	ListRelocations(ctx context.Context, warehouseID string, limit int) ([]application.SlotScoreDTO, error)
}

type crossDockService interface {
	Create(ctx context.Context, cmd application.CreateCrossDockCommand) (*application.CrossDockDTO, error)
	Get(ctx context.Context, id string) (*application.CrossDockDTO, error)
	RecordInbound(ctx context.Context, cmd application.RecordInboundCommand) (*application.CrossDockDTO, error)
	Match(ctx context.Context, id string) (*application.MatchResultDTO, error)
	Depart(ctx context.Context, id string) (*application.CrossDockDTO, error)
	Cancel(ctx context.Context, cmd application.CancelCrossDockCommand) (*application.CrossDockDTO, error)
}

// services are the application entry points behind the HTTP API
type services struct {
	Waves      waveService
	Tasks      taskService
	Assignment assignmentService
	Locations  locationService
	Slotting   slottingService
	CrossDocks crossDockService
}

func registerRoutes(api *gin.RouterGroup, svc services, logger *logging.Logger) {
	waves := api.Group("/waves")
	{
		waves.POST("", createWaveHandler(svc.Waves, logger))
		waves.GET("", listWavesHandler(svc.Waves, logger))
		waves.GET("/:id", getWaveHandler(svc.Waves, logger))
		waves.GET("/:id/preview", previewWaveHandler(svc.Waves, logger))
		waves.POST("/:id/release", releaseWaveHandler(svc.Waves, logger))
		waves.POST("/:id/cancel", cancelWaveHandler(svc.Waves, logger))
	}

	tasks := api.Group("/tasks")
	{
		tasks.POST("/claim", claimTaskHandler(svc.Assignment, logger))
		tasks.POST("", createTaskHandler(svc.Tasks, logger))
		tasks.GET("/exceptions", listExceptionsHandler(svc.Tasks, logger))
		tasks.GET("/:id", getTaskHandler(svc.Tasks, logger))
		tasks.POST("/:id/start", startTaskHandler(svc.Tasks, logger))
		tasks.POST("/:id/complete", completeTaskHandler(svc.Tasks, logger))
		tasks.POST("/:id/skip", skipTaskHandler(svc.Tasks, logger))
		tasks.POST("/:id/cancel", cancelTaskHandler(svc.Tasks, logger))
		tasks.POST("/:id/exception/resolve", resolveExceptionHandler(svc.Tasks, logger))
	}

	sessions := api.Group("/sessions")
	{
		sessions.POST("", startSessionHandler(svc.Assignment, logger))
		sessions.POST("/:id/heartbeat", heartbeatHandler(svc.Assignment, logger))
		sessions.DELETE("/:id", endSessionHandler(svc.Assignment, logger))
	}

	workers := api.Group("/workers")
	{
		workers.PUT("/:id/location", updateLocationHandler(svc.Locations, logger))
		workers.GET("/:id/location", getLocationHandler(svc.Locations, logger))
		workers.PUT("/:id/break", setBreakHandler(svc.Locations, logger))
		workers.PUT("/:id/pinned-zone", setPinnedZoneHandler(svc.Locations, logger))
	}
	api.GET("/zones/:zone/workers", listZoneWorkersHandler(svc.Locations, logger))

	slotting := api.Group("/slotting")
	{
		slotting.POST("/recompute", recomputeSlottingHandler(svc.Slotting, logger))
		slotting.GET("/:warehouseId/relocations", listRelocationsHandler(svc.Slotting, logger))
	}

	crossDocks := api.Group("/cross-docks")
	{
		crossDocks.POST("", createCrossDockHandler(svc.CrossDocks, logger))
		crossDocks.GET("/:id", getCrossDockHandler(svc.CrossDocks, logger))
		crossDocks.POST("/:id/inbound", recordInboundHandler(svc.CrossDocks, logger))
		crossDocks.POST("/:id/match", matchCrossDockHandler(svc.CrossDocks, logger))
		crossDocks.POST("/:id/depart", departCrossDockHandler(svc.CrossDocks, logger))
		crossDocks.POST("/:id/cancel", cancelCrossDockHandler(svc.CrossDocks, logger))
	}
}

func respondError(c *gin.Context, logger *logging.Logger, err error) {
	middleware.NewErrorResponder(c, logger.Logger).RespondWithAppError(application.ToAppError(err))
}

func bind(c *gin.Context, req any) bool {
	if appErr := middleware.BindAndValidate(c, req); appErr != nil {
		middleware.AbortWithAppError(c, appErr)
		return false
	}
	return true
}

// workerID prefers the body value and falls back to the gateway header
func workerID(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.GetString(middleware.ContextKeyWorkerID)
}

// warehouseID prefers the query parameter and falls back to the tenant headers
func warehouseID(c *gin.Context) string {
	if id := c.Query("warehouseId"); id != "" {
		return id
	}
	return tenant.FromContextOptional(c.Request.Context()).WarehouseID
}

// Wave handlers

type createWaveRequest struct {
	WarehouseID string             `json:"warehouseId"`
	Type        string             `json:"type" binding:"required"`
	Filters     domain.WaveFilters `json:"filters"`
	Options     domain.WaveOptions `json:"options"`
}

func createWaveHandler(svc waveService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWaveRequest
		if !bind(c, &req) {
			return
		}
		middleware.AddSpanAttributes(c, map[string]any{"wave.type": req.Type})

		wave, err := svc.CreateWave(c.Request.Context(), application.CreateWaveCommand{
			WarehouseID: req.WarehouseID,
			Type:        req.Type,
			Filters:     req.Filters,
			Options:     req.Options,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, wave)
	}
}

func listWavesHandler(svc waveService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		waves, err := svc.ListWaves(c.Request.Context(), warehouseID(c), c.Query("status"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": waves, "total": len(waves)})
	}
}

func getWaveHandler(svc waveService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		wave, err := svc.GetWave(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, wave)
	}
}

func previewWaveHandler(svc waveService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		preview, err := svc.PreviewWave(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, preview)
	}
}

func releaseWaveHandler(svc waveService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		waveID := c.Param("id")
		middleware.AddSpanAttributes(c, map[string]any{"wave.id": waveID})

		result, err := svc.ReleaseWave(c.Request.Context(), waveID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func cancelWaveHandler(svc waveService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reasonRequest
		if !bind(c, &req) {
			return
		}
		wave, err := svc.CancelWave(c.Request.Context(), application.CancelWaveCommand{WaveID: c.Param("id"), Reason: req.Reason})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, wave)
	}
}

// Task handlers

type claimTaskRequest struct {
	WorkerID string `json:"workerId"`
	ZoneHint string `json:"zoneHint" binding:"omitempty,zone_code"`
}

func claimTaskHandler(svc assignmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req claimTaskRequest
		if c.Request.ContentLength > 0 && !bind(c, &req) {
			return
		}
		worker := workerID(c, req.WorkerID)
		if worker == "" {
			respondError(c, logger, domain.NewValidationError("workerId", "is required"))
			return
		}

		task, err := svc.Claim(c.Request.Context(), application.ClaimTaskCommand{WorkerID: worker, ZoneHint: req.ZoneHint})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if task == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

type createTaskRequest struct {
	WarehouseID    string     `json:"warehouseId"`
	TaskType       string     `json:"taskType" binding:"required"`
	Priority       string     `json:"priority"`
	DueAt          *time.Time `json:"dueAt"`
	SourceType     string     `json:"sourceType" binding:"required"`
	SourceID       string     `json:"sourceId" binding:"required"`
	SourceBin      string     `json:"sourceBin"`
	DestinationBin string     `json:"destinationBin"`
	ProductID      string     `json:"productId" binding:"required"`
	SKU            string     `json:"sku"`
	UnitWeight     float64    `json:"unitWeight" binding:"gte=0"`
	Quantity       int        `json:"quantity" binding:"gt=0"`
}

func createTaskHandler(svc taskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTaskRequest
		if !bind(c, &req) {
			return
		}
		task, err := svc.CreateTask(c.Request.Context(), application.CreateTaskCommand{
			WarehouseID:    req.WarehouseID,
			TaskType:       req.TaskType,
			Priority:       req.Priority,
			DueAt:          req.DueAt,
			SourceType:     req.SourceType,
			SourceID:       req.SourceID,
			SourceBin:      req.SourceBin,
			DestinationBin: req.DestinationBin,
			ProductID:      req.ProductID,
			SKU:            req.SKU,
			UnitWeight:     req.UnitWeight,
			Quantity:       req.Quantity,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, task)
	}
}

func getTaskHandler(svc taskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := svc.GetTask(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

type workerRequest struct {
	WorkerID string `json:"workerId"`
}

func startTaskHandler(svc taskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req workerRequest
		if c.Request.ContentLength > 0 && !bind(c, &req) {
			return
		}
		task, err := svc.StartTask(c.Request.Context(), application.StartTaskCommand{
			TaskID:   c.Param("id"),
			WorkerID: workerID(c, req.WorkerID),
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

type completeTaskRequest struct {
	WorkerID     string `json:"workerId"`
	Quantity     int    `json:"quantity" binding:"gte=0"`
	ExceptionQty int    `json:"exceptionQty" binding:"gte=0"`
	Reason       string `json:"reason"`
}

func completeTaskHandler(svc taskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req completeTaskRequest
		if !bind(c, &req) {
			return
		}
		taskID := c.Param("id")
		middleware.AddSpanAttributes(c, map[string]any{"task.id": taskID, "task.quantity": req.Quantity})

		task, err := svc.CompleteTask(c.Request.Context(), application.CompleteTaskCommand{
			TaskID:       taskID,
			WorkerID:     workerID(c, req.WorkerID),
			Quantity:     req.Quantity,
			ExceptionQty: req.ExceptionQty,
			Reason:       req.Reason,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

type skipTaskRequest struct {
	WorkerID string `json:"workerId"`
	Reason   string `json:"reason" binding:"required"`
}

func skipTaskHandler(svc taskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req skipTaskRequest
		if !bind(c, &req) {
			return
		}
		task, err := svc.SkipTask(c.Request.Context(), application.SkipTaskCommand{
			TaskID:   c.Param("id"),
			WorkerID: workerID(c, req.WorkerID),
			Reason:   req.Reason,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func cancelTaskHandler(svc taskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reasonRequest
		if !bind(c, &req) {
			return
		}
		task, err := svc.CancelTask(c.Request.Context(), application.CancelTaskCommand{TaskID: c.Param("id"), Reason: req.Reason})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func listExceptionsHandler(svc taskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := svc.ListExceptions(c.Request.Context(), warehouseID(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": tasks, "total": len(tasks)})
	}
}

type resolveExceptionRequest struct {
	HandledBy string `json:"handledBy" binding:"required"`
}

func resolveExceptionHandler(svc taskService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resolveExceptionRequest
		if !bind(c, &req) {
			return
		}
		task, err := svc.ResolveException(c.Request.Context(), application.ResolveExceptionCommand{TaskID: c.Param("id"), HandledBy: req.HandledBy})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

// Session handlers

type startSessionRequest struct {
	WorkerID    string     `json:"workerId"`
	WarehouseID string     `json:"warehouseId"`
	DeviceID    string     `json:"deviceId"`
	ShiftStart  *time.Time `json:"shiftStart"`
	ShiftEnd    *time.Time `json:"shiftEnd"`
}

func startSessionHandler(svc assignmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startSessionRequest
		if !bind(c, &req) {
			return
		}
		session, err := svc.StartSession(c.Request.Context(), application.StartSessionCommand{
			WorkerID:    workerID(c, req.WorkerID),
			WarehouseID: req.WarehouseID,
			DeviceID:    req.DeviceID,
			ShiftStart:  req.ShiftStart,
			ShiftEnd:    req.ShiftEnd,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	}
}

func heartbeatHandler(svc assignmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := svc.Heartbeat(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func endSessionHandler(svc assignmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.EndSession(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Worker location handlers

type updateLocationRequest struct {
	Zone       string  `json:"zone" binding:"omitempty,zone_code"`
	Bin        string  `json:"bin" binding:"omitempty,bin_code"`
	IsOnBreak  *bool   `json:"isOnBreak"`
	PinnedZone *string `json:"pinnedZone"`
}

func updateLocationHandler(svc locationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateLocationRequest
		if !bind(c, &req) {
			return
		}
		loc, err := svc.Update(c.Request.Context(), application.UpdateLocationCommand{
			WorkerID:   c.Param("id"),
			Zone:       req.Zone,
			Bin:        req.Bin,
			IsOnBreak:  req.IsOnBreak,
			PinnedZone: req.PinnedZone,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, loc)
	}
}

func getLocationHandler(svc locationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		loc, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, loc)
	}
}

type setBreakRequest struct {
	OnBreak *bool `json:"onBreak" binding:"required"`
}

func setBreakHandler(svc locationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setBreakRequest
		if !bind(c, &req) {
			return
		}
		loc, err := svc.SetBreak(c.Request.Context(), c.Param("id"), *req.OnBreak)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, loc)
	}
}

type setPinnedZoneRequest struct {
	Zone string `json:"zone" binding:"omitempty,zone_code"`
}

func setPinnedZoneHandler(svc locationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setPinnedZoneRequest
		if !bind(c, &req) {
			return
		}
		loc, err := svc.SetPinnedZone(c.Request.Context(), c.Param("id"), req.Zone)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, loc)
	}
}

func listZoneWorkersHandler(svc locationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		workers, err := svc.ListByZone(c.Request.Context(), warehouseID(c), c.Param("zone"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": workers, "total": len(workers)})
	}
}

// Slotting handlers

type recomputeSlottingRequest struct {
	WarehouseID string `json:"warehouseId" binding:"required"`
	Period      struct {
		From time.Time `json:"from" binding:"required"`
		To   time.Time `json:"to" binding:"required"`
	} `json:"period"`
}

func recomputeSlottingHandler(svc slottingService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recomputeSlottingRequest
		if !bind(c, &req) {
			return
		}
		start := time.Now()
		run, err := svc.Recompute(c.Request.Context(), application.RecomputeSlottingCommand{
			WarehouseID: req.WarehouseID,
			From:        req.Period.From,
			To:          req.Period.To,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		logger.Performance(c.Request.Context(), "slotting_recompute", time.Since(start), true, map[string]any{
			"warehouseId": req.WarehouseID,
			"products":    run.Products,
		})
		c.JSON(http.StatusOK, run)
	}
}

const defaultRelocationLimit = 50

func listRelocationsHandler(svc slottingService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultRelocationLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				respondError(c, logger, domain.NewValidationError("limit", "must be a positive integer"))
				return
			}
			limit = n
		}
		rows, err := svc.ListRelocations(c.Request.Context(), c.Param("warehouseId"), limit)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows, "total": len(rows)})
	}
}

// Cross-dock handlers

type createCrossDockRequest struct {
	WarehouseID string `json:"warehouseId"`
	Type        string `json:"type"`
	InboundRef  struct {
		Type string `json:"type" binding:"required"`
		ID   string `json:"id" binding:"required"`
	} `json:"inboundRef"`
	StagingBin string                  `json:"stagingBin" binding:"required,bin_code"`
	Items      map[string]int          `json:"items" binding:"required"`
	Outbound   []domain.OutboundDemand `json:"outbound"`
}

func createCrossDockHandler(svc crossDockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createCrossDockRequest
		if !bind(c, &req) {
			return
		}
		cd, err := svc.Create(c.Request.Context(), application.CreateCrossDockCommand{
			WarehouseID: req.WarehouseID,
			Type:        req.Type,
			InboundType: req.InboundRef.Type,
			InboundID:   req.InboundRef.ID,
			StagingBin:  req.StagingBin,
			Items:       req.Items,
			Outbound:    req.Outbound,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, cd)
	}
}

func getCrossDockHandler(svc crossDockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cd, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, cd)
	}
}

type recordInboundRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"gt=0"`
}

func recordInboundHandler(svc crossDockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recordInboundRequest
		if !bind(c, &req) {
			return
		}
		cd, err := svc.RecordInbound(c.Request.Context(), application.RecordInboundCommand{
			CrossDockID: c.Param("id"),
			ProductID:   req.ProductID,
			Quantity:    req.Quantity,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, cd)
	}
}

func matchCrossDockHandler(svc crossDockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := svc.Match(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func departCrossDockHandler(svc crossDockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cd, err := svc.Depart(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, cd)
	}
}

func cancelCrossDockHandler(svc crossDockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reasonRequest
		if !bind(c, &req) {
			return
		}
		cd, err := svc.Cancel(c.Request.Context(), application.CancelCrossDockCommand{CrossDockID: c.Param("id"), Reason: req.Reason})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, cd)
	}
}
