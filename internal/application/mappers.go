package application

import (
	"github.com/wms-platform/task-engine/internal/domain"
)

// ToTaskDTO converts a task to its API view
func ToTaskDTO(t *domain.WarehouseTask) *TaskDTO {
	if t == nil {
		return nil
	}
	dto := &TaskDTO{
		ID:                  t.ID,
		WarehouseID:         t.WarehouseID,
		TaskType:            string(t.TaskType),
		Status:              string(t.Status),
		Priority:            string(t.Priority),
		DueAt:               t.DueAt,
		SourceType:          string(t.Source.Type),
		SourceID:            t.Source.ID,
		Zone:                t.Zone,
		SourceBin:           t.SourceBin,
		DestinationBin:      t.DestinationBin,
		ProductID:           t.ProductID,
		SKU:                 t.SKU,
		TripNumber:          t.TripNumber,
		Sequence:            t.Sequence,
		QuantityRequired:    t.QuantityRequired,
		QuantityCompleted:   t.QuantityCompleted,
		QuantityException:   t.QuantityException,
		ExceptionReason:     t.ExceptionReason,
		ExceptionHandledBy:  t.ExceptionHandledBy,
		AssignedTo:          t.AssignedTo,
		AssignedAt:          t.AssignedAt,
		ClaimVersion:        t.ClaimVersion,
		SuggestedNextTaskID: t.SuggestedNextTaskID,
		SkipCount:           t.SkipCount,
		StartedAt:           t.StartedAt,
		CompletedAt:         t.CompletedAt,
		TravelSeconds:       t.TravelSeconds,
		ExecutionSeconds:    t.ExecutionSeconds,
		TotalSeconds:        t.TotalSeconds,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
	if t.DemandRef != nil {
		dto.OrderID = t.DemandRef.OrderID
		dto.PicklistID = t.DemandRef.PicklistID
	}
	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []*domain.WarehouseTask) []TaskDTO {
	dtos := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, *ToTaskDTO(t))
	}
	return dtos
}

// ToWaveDTO converts a wave to its API view
func ToWaveDTO(w *domain.PickWave) *WaveDTO {
	if w == nil {
		return nil
	}
	dto := &WaveDTO{
		ID:                 w.ID,
		WaveNumber:         w.WaveNumber,
		WarehouseID:        w.WarehouseID,
		Type:               string(w.Type),
		Status:             string(w.Status),
		Filters:            filtersView(w.Filters),
		OptimizeRoute:      w.Options.OptimizeRoute,
		GroupByZone:        w.Options.GroupByZone,
		MaxPicksPerTrip:    w.Options.MaxPicksPerTrip,
		MaxWeightPerTrip:   w.Options.MaxWeightPerTrip,
		TotalOrders:        w.Counters.TotalOrders,
		TotalPicklists:     w.Counters.TotalPicklists,
		TotalItems:         w.Counters.TotalItems,
		TotalTasks:         w.Counters.TotalTasks,
		CompletedPicklists: w.Counters.CompletedPicklists,
		PickedQuantity:     w.Counters.PickedQuantity,
		ReleasedAt:         w.ReleasedAt,
		StartedAt:          w.StartedAt,
		CompletedAt:        w.CompletedAt,
		CancelledAt:        w.CancelledAt,
		CancelReason:       w.CancelReason,
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
	}
	if w.Counters.TotalItems > 0 {
		dto.Progress = float64(w.Counters.PickedQuantity) / float64(w.Counters.TotalItems) * 100
	}
	return dto
}

func filtersView(f domain.WaveFilters) map[string]any {
	view := map[string]any{}
	if f.Carrier != "" {
		view["carrier"] = f.Carrier
	}
	if f.CutoffAt != nil {
		view["cutoffAt"] = f.CutoffAt
	}
	if len(f.Zones) > 0 {
		view["zones"] = f.Zones
	}
	if len(f.Channels) > 0 {
		view["channels"] = f.Channels
	}
	if len(f.CustomerTypes) > 0 {
		view["customerTypes"] = f.CustomerTypes
	}
	if !f.PriorityBand.IsZero() {
		view["priorityBand"] = f.PriorityBand
	}
	return view
}

// ToWaveDTOs converts a slice of waves
func ToWaveDTOs(waves []*domain.PickWave) []WaveDTO {
	dtos := make([]WaveDTO, 0, len(waves))
	for _, w := range waves {
		dtos = append(dtos, *ToWaveDTO(w))
	}
	return dtos
}

// ToSessionDTO converts the session fields of a location row
func ToSessionDTO(loc *domain.WorkerLocation, cfg AssignmentConfig) *SessionDTO {
	if loc == nil {
		return nil
	}
	return &SessionDTO{
		SessionID:               loc.SessionID,
		WorkerID:                loc.WorkerID,
		WarehouseID:             loc.WarehouseID,
		DeviceID:                loc.DeviceID,
		Status:                  string(loc.SessionStatus),
		StartedAt:               loc.SessionStartedAt,
		LastHeartbeatAt:         loc.LastHeartbeatAt,
		HeartbeatTimeoutSeconds: int(cfg.HeartbeatTimeout.Seconds()),
	}
}

// ToWorkerLocationDTO converts the position fields of a location row
func ToWorkerLocationDTO(loc *domain.WorkerLocation) *WorkerLocationDTO {
	if loc == nil {
		return nil
	}
	return &WorkerLocationDTO{
		WorkerID:      loc.WorkerID,
		WarehouseID:   loc.WarehouseID,
		Zone:          loc.CurrentZone,
		Bin:           loc.CurrentBin,
		CurrentTaskID: loc.CurrentTaskID,
		LastTaskType:  string(loc.LastTaskType),
		PinnedZone:    loc.PinnedZone,
		IsOnBreak:     loc.IsOnBreak,
		SessionStatus: string(loc.SessionStatus),
		UpdatedAt:     loc.UpdatedAt,
	}
}

// ToSlotScoreDTOs converts optimizer rows
func ToSlotScoreDTOs(scores []*domain.SlotScore) []SlotScoreDTO {
	dtos := make([]SlotScoreDTO, 0, len(scores))
	for _, s := range scores {
		dtos = append(dtos, SlotScoreDTO{
			ProductID:          s.ProductID,
			VelocityClass:      string(s.VelocityClass),
			VelocityScore:      s.VelocityScore,
			AffinityScore:      s.AffinityScore,
			ErgonomicScore:     s.ErgonomicScore,
			SeasonalityScore:   s.SeasonalityScore,
			TotalScore:         s.TotalScore,
			CurrentBin:         s.CurrentBin,
			RecommendedBin:     s.RecommendedBin,
			RecommendedZone:    s.RecommendedZone,
			RelocationPriority: s.RelocationPriority,
			RelocationRank:     s.RelocationRank,
			PickCount:          s.PickCount,
			PickQuantity:       s.PickQuantity,
			ComputedAt:         s.ComputedAt,
		})
	}
	return dtos
}

// ToCrossDockDTO converts a cross-dock record
func ToCrossDockDTO(cd *domain.CrossDock) *CrossDockDTO {
	if cd == nil {
		return nil
	}
	dto := &CrossDockDTO{
		ID:                cd.ID,
		WarehouseID:       cd.WarehouseID,
		Type:              string(cd.Type),
		Status:            string(cd.Status),
		InboundType:       cd.InboundRef.Type,
		InboundID:         cd.InboundRef.ID,
		StagingBin:        cd.StagingBin,
		Items:             cd.Items,
		Received:          cd.Received,
		Outbound:          make([]OutboundDTO, 0, len(cd.Outbound)),
		Allocations:       ToAllocationDTOs(cd.Allocations),
		TotalQuantity:     cd.TotalQuantity,
		ReceivedQuantity:  cd.ReceivedQuantity,
		ProcessedQuantity: cd.ProcessedQuantity,
		CancelReason:      cd.CancelReason,
		CreatedAt:         cd.CreatedAt,
		UpdatedAt:         cd.UpdatedAt,
	}
	for _, d := range cd.Outbound {
		dto.Outbound = append(dto.Outbound, OutboundDTO{
			OrderID:            d.OrderID,
			ShipmentID:         d.ShipmentID,
			ProductID:          d.ProductID,
			Quantity:           d.Quantity,
			Allocated:          d.Allocated,
			ScheduledDeparture: d.ScheduledDeparture,
			DockBin:            d.DockBin,
		})
	}
	return dto
}

// ToAllocationDTOs converts allocations
func ToAllocationDTOs(allocations []domain.Allocation) []AllocationDTO {
	dtos := make([]AllocationDTO, 0, len(allocations))
	for _, a := range allocations {
		dtos = append(dtos, AllocationDTO{OrderID: a.OrderID, ProductID: a.ProductID, Quantity: a.Quantity, TaskID: a.TaskID})
	}
	return dtos
}
