package application

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/task-engine/internal/domain"
)

// wavePlan is everything a release writes
type wavePlan struct {
	Picklists []*domain.WavePicklist
	Tasks     []*domain.WarehouseTask
	Counters  domain.WaveCounters
}

type pickLine struct {
	picklist *domain.Picklist
	item     domain.PicklistItem
	zone     string
}

// sortPicklistsForWave orders picklists by priority, then cutoff, then id
func sortPicklistsForWave(picklists []domain.Picklist) []domain.Picklist {
	sorted := make([]domain.Picklist, len(picklists))
	copy(sorted, picklists)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		switch {
		case a.CutoffAt != nil && b.CutoffAt == nil:
			return true
		case a.CutoffAt == nil && b.CutoffAt != nil:
			return false
		case a.CutoffAt != nil && !a.CutoffAt.Equal(*b.CutoffAt):
			return a.CutoffAt.Before(*b.CutoffAt)
		}
		return a.ID < b.ID
	})
	return sorted
}

// picklistZone is the declared zone or the zone of the first bin
func picklistZone(p *domain.Picklist) string {
	if p.Zone != "" {
		return strings.ToUpper(p.Zone)
	}
	for _, item := range p.Items {
		if zone := domain.ZoneOf(item.Bin); zone != "" {
			return zone
		}
	}
	return ""
}

// groupLines partitions lines by picklist zone when requested. Groups come
// back in zone order; without grouping there is one group in picklist order.
func groupLines(picklists []domain.Picklist, byZone bool) [][]pickLine {
	order := []string{}
	groups := map[string][]pickLine{}
	for i := range picklists {
		p := &picklists[i]
		key := ""
		if byZone {
			key = picklistZone(p)
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		for _, item := range p.Items {
			if item.Quantity <= 0 {
				continue
			}
			item.Bin = strings.ToUpper(item.Bin)
			zone := domain.ZoneOf(item.Bin)
			if zone == "" {
				zone = picklistZone(p)
			}
			groups[key] = append(groups[key], pickLine{picklist: p, item: item, zone: zone})
		}
	}
	if byZone {
		sort.Strings(order)
	}
	result := make([][]pickLine, 0, len(order))
	for _, key := range order {
		if len(groups[key]) > 0 {
			result = append(result, groups[key])
		}
	}
	return result
}

// routeOrder sorts lines along the pick path by zone, aisle, rack and level
func routeOrder(lines []pickLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		return domain.LessInRoute(lines[i].item.Bin, lines[j].item.Bin)
	})
}

// splitTrips cuts a group into trips bounded by pick count and weight.
// A single line above the weight limit travels alone.
func splitTrips(lines []pickLine, maxPicks int, maxWeight float64) [][]pickLine {
	var trips [][]pickLine
	var current []pickLine
	weight := 0.0
	for _, line := range lines {
		lineWeight := float64(line.item.Quantity) * line.item.UnitWeight
		full := maxPicks > 0 && len(current) >= maxPicks
		heavy := maxWeight > 0 && len(current) > 0 && weight+lineWeight > maxWeight
		if full || heavy {
			trips = append(trips, current)
			current = nil
			weight = 0
		}
		current = append(current, line)
		weight += lineWeight
	}
	if len(current) > 0 {
		trips = append(trips, current)
	}
	return trips
}

// planWaveTasks turns eligible picklists into one PICK task per line
func planWaveTasks(wave *domain.PickWave, picklists []domain.Picklist, now time.Time) (*wavePlan, error) {
	opts := wave.Options
	useTrips := opts.OptimizeRoute || opts.MaxPicksPerTrip > 0 || opts.MaxWeightPerTrip > 0
	source, err := domain.NewTaskSource(domain.SourceWave, wave.ID)
	if err != nil {
		return nil, err
	}

	plan := &wavePlan{}
	perPicklist := map[string]*domain.WavePicklist{}
	orders := map[string]bool{}
	trip, sequence := 0, 0

	for _, group := range groupLines(picklists, opts.GroupByZone) {
		if opts.OptimizeRoute {
			routeOrder(group)
		}
		trips := [][]pickLine{group}
		if useTrips {
			trips = splitTrips(group, opts.MaxPicksPerTrip, opts.MaxWeightPerTrip)
		}
		for _, lines := range trips {
			if useTrips {
				trip++
			}
			for _, line := range lines {
				sequence++
				task, err := newPickTask(wave, source, line, trip, sequence, now)
				if err != nil {
					return nil, err
				}
				plan.Tasks = append(plan.Tasks, task)

				p := line.picklist
				wp, ok := perPicklist[p.ID]
				if !ok {
					wp = &domain.WavePicklist{
						ID:          uuid.NewString(),
						TenantID:    wave.TenantID,
						FacilityID:  wave.FacilityID,
						WarehouseID: wave.WarehouseID,
						WaveID:      wave.ID,
						PicklistID:  p.ID,
						OrderID:     p.OrderID,
						Zone:        picklistZone(p),
						Open:        true,
						CreatedAt:   now,
						UpdatedAt:   now,
					}
					perPicklist[p.ID] = wp
					plan.Picklists = append(plan.Picklists, wp)
				}
				wp.ItemCount += line.item.Quantity
				wp.TaskCount++
				orders[p.OrderID] = true
				plan.Counters.TotalItems += line.item.Quantity
			}
		}
	}

	sort.Slice(plan.Picklists, func(i, j int) bool { return plan.Picklists[i].PicklistID < plan.Picklists[j].PicklistID })
	plan.Counters.TotalOrders = len(orders)
	plan.Counters.TotalPicklists = len(plan.Picklists)
	plan.Counters.TotalTasks = len(plan.Tasks)
	return plan, nil
}

func newPickTask(wave *domain.PickWave, source domain.TaskSource, line pickLine, trip, sequence int, now time.Time) (*domain.WarehouseTask, error) {
	p := line.picklist
	priority, err := domain.ParsePriority(string(p.Priority))
	if err != nil {
		priority = domain.PriorityNormal
	}
	dueAt := p.DueAt
	if dueAt == nil {
		dueAt = p.CutoffAt
	}
	return domain.NewTask(domain.NewTaskParams{
		TenantID:    wave.TenantID,
		FacilityID:  wave.FacilityID,
		WarehouseID: wave.WarehouseID,
		TaskType:    domain.TaskTypePick,
		Priority:    priority,
		DueAt:       dueAt,
		Source:      source,
		DemandRef:   &domain.DemandRef{OrderID: p.OrderID, PicklistID: p.ID},
		SourceBin:   line.item.Bin,
		Zone:        line.zone,
		ProductID:   line.item.ProductID,
		SKU:         line.item.SKU,
		UnitWeight:  line.item.UnitWeight,
		Quantity:    line.item.Quantity,
		TripNumber:  trip,
		Sequence:    sequence,
	}, now)
}
