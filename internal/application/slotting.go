package application

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
	"github.com/wms-platform/task-engine/pkg/tenant"
)

// SlottingOptimizer scores products from pick history and recommends
// where each should live
type SlottingOptimizer struct {
	tasks     domain.TaskRepository
	scores    domain.SlotScoreRepository
	inventory domain.InventoryService
	tx        domain.Transactor
	events    domain.EventPublisher
	config    SlottingConfig
	clock     Clock
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewSlottingOptimizer creates a SlottingOptimizer
func NewSlottingOptimizer(
	tasks domain.TaskRepository,
	scores domain.SlotScoreRepository,
	inventory domain.InventoryService,
	tx domain.Transactor,
	events domain.EventPublisher,
	config SlottingConfig,
	clock Clock,
	logger *logging.Logger,
	m *metrics.Metrics,
) *SlottingOptimizer {
	if clock == nil {
		clock = SystemClock
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &SlottingOptimizer{
		tasks:     tasks,
		scores:    scores,
		inventory: inventory,
		tx:        tx,
		events:    events,
		config:    config,
		clock:     clock,
		logger:    logger.WithComponent("slotting"),
		metrics:   m,
	}
}

// productStats accumulates what the optimizer knows about one product
type productStats struct {
	productID    string
	quantity     int
	picks        int
	longQuantity int
	picklists    map[string]bool
	bin          string
	binQuantity  int
	unitWeight   float64
}

// Recompute scores every stocked or picked product of a warehouse over
// period and replaces its slot scores
func (s *SlottingOptimizer) Recompute(ctx context.Context, cmd RecomputeSlottingCommand) (*SlottingRunDTO, error) {
	period := domain.Period{From: cmd.From.UTC(), To: cmd.To.UTC()}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if cmd.WarehouseID == "" {
		return nil, domain.NewValidationError("warehouseId", "is required")
	}
	start := time.Now()

	scores, err := s.compute(ctx, cmd.WarehouseID, period)
	if err != nil {
		return nil, err
	}

	relocations := 0
	for _, sc := range scores {
		if sc.NeedsRelocation() {
			relocations++
		}
	}
	now := s.clock()
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.scores.Upsert(txCtx, scores); err != nil {
			return err
		}
		return s.events.Publish(txCtx, &domain.SlottingRecomputedEvent{
			WarehouseID: cmd.WarehouseID, PeriodFrom: period.From, PeriodTo: period.To,
			Products: len(scores), Relocations: relocations, At: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store slot scores: %w", err)
	}

	s.metrics.RecordSlottingRun(cmd.WarehouseID, time.Since(start))
	s.logger.Info("Recomputed slotting", "warehouseId", cmd.WarehouseID, "products", len(scores), "relocations", relocations)
	return &SlottingRunDTO{
		WarehouseID: cmd.WarehouseID,
		PeriodFrom:  period.From,
		PeriodTo:    period.To,
		Products:    len(scores),
		Relocations: relocations,
		Scores:      ToSlotScoreDTOs(scores),
	}, nil
}

// compute is the pure scoring pass; output is sorted by product id
func (s *SlottingOptimizer) compute(ctx context.Context, warehouseID string, period domain.Period) ([]*domain.SlotScore, error) {
	picks, err := s.tasks.FindCompletedPicks(ctx, warehouseID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load pick history: %w", err)
	}
	longRun, err := s.tasks.FindCompletedPicks(ctx, warehouseID, period.LongRun())
	if err != nil {
		return nil, fmt.Errorf("failed to load long-run pick history: %w", err)
	}
	bins, err := s.inventory.ListBins(ctx, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bins: %w", err)
	}

	stats := map[string]*productStats{}
	get := func(productID string) *productStats {
		st, ok := stats[productID]
		if !ok {
			st = &productStats{productID: productID, picklists: map[string]bool{}}
			stats[productID] = st
		}
		return st
	}
	for _, b := range bins {
		if b.ProductID == "" || b.Quantity <= 0 {
			continue
		}
		st := get(b.ProductID)
		if b.Quantity > st.binQuantity || (b.Quantity == st.binQuantity && b.Bin < st.bin) {
			st.bin = b.Bin
			st.binQuantity = b.Quantity
		}
		if b.UnitWeight > 0 {
			st.unitWeight = b.UnitWeight
		}
	}
	for _, t := range picks {
		st := get(t.ProductID)
		st.quantity += t.QuantityCompleted
		st.picks++
		if t.DemandRef != nil && t.DemandRef.PicklistID != "" {
			st.picklists[t.DemandRef.PicklistID] = true
		}
		if st.unitWeight == 0 {
			st.unitWeight = t.UnitWeight
		}
	}
	for _, t := range longRun {
		if st, ok := stats[t.ProductID]; ok {
			st.longQuantity += t.QuantityCompleted
		}
	}

	ranked := make([]*productStats, 0, len(stats))
	for _, st := range stats {
		ranked = append(ranked, st)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.quantity != b.quantity {
			return a.quantity > b.quantity
		}
		if a.picks != b.picks {
			return a.picks > b.picks
		}
		return a.productID < b.productID
	})

	classes := classifyVelocity(ranked, s.config.ClassA, s.config.ClassB)
	affinity := affinityScores(stats)
	tc := tenant.FromContextOptional(ctx)
	weights := s.config.WeightsFor(tc.TenantID)
	maxQuantity := 0
	if len(ranked) > 0 {
		maxQuantity = ranked[0].quantity
	}
	periodDays := period.To.Sub(period.From).Hours() / 24
	now := s.clock()

	scores := make([]*domain.SlotScore, 0, len(ranked))
	for _, st := range ranked {
		class := classes[st.productID]
		sc := &domain.SlotScore{
			ID:            slotScoreID(tc.TenantID, warehouseID, st.productID),
			TenantID:      tc.TenantID,
			FacilityID:    tc.FacilityID,
			WarehouseID:   warehouseID,
			ProductID:     st.productID,
			VelocityClass: class,
			CurrentBin:    st.bin,
			CurrentZone:   domain.ZoneOf(st.bin),
			PeriodFrom:    period.From,
			PeriodTo:      period.To,
			PickCount:     st.picks,
			PickQuantity:  st.quantity,
			UnitWeight:    st.unitWeight,
			ComputedAt:    now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if maxQuantity > 0 {
			sc.VelocityScore = round2(100 * float64(st.quantity) / float64(maxQuantity))
		}
		sc.AffinityScore = round2(affinity[st.productID])
		sc.ErgonomicScore = ergonomicScore(st.bin, class)
		sc.SeasonalityScore = round2(seasonalityScore(st.quantity, st.longQuantity, periodDays))
		sc.TotalScore = round2(weights.Velocity*sc.VelocityScore +
			weights.Affinity*sc.AffinityScore +
			weights.Ergonomic*sc.ErgonomicScore +
			weights.Seasonality*sc.SeasonalityScore)
		scores = append(scores, sc)
	}

	if err := s.recommend(ctx, warehouseID, scores); err != nil {
		return nil, err
	}
	rankRelocations(scores)
	sort.Slice(scores, func(i, j int) bool { return scores[i].ProductID < scores[j].ProductID })
	return scores, nil
}

func slotScoreID(tenantID, warehouseID, productID string) string {
	return tenantID + ":" + warehouseID + ":" + productID
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// classifyVelocity buckets products by the cumulative share of picked
// quantity ranked ahead of them, so the top mover is always A; ranked must
// be sorted by quantity descending
func classifyVelocity(ranked []*productStats, classA, classB float64) map[string]domain.VelocityClass {
	total := 0
	for _, st := range ranked {
		total += st.quantity
	}
	classes := make(map[string]domain.VelocityClass, len(ranked))
	before := 0
	for _, st := range ranked {
		if total == 0 || st.quantity == 0 {
			classes[st.productID] = domain.VelocityC
			continue
		}
		share := float64(before) / float64(total)
		before += st.quantity
		switch {
		case share < classA-1e-9:
			classes[st.productID] = domain.VelocityA
		case share < classA+classB-1e-9:
			classes[st.productID] = domain.VelocityB
		default:
			classes[st.productID] = domain.VelocityC
		}
	}
	return classes
}

// affinityScores is, per product, the strongest co-pick share with any
// other product over the picklists that contain it
func affinityScores(stats map[string]*productStats) map[string]float64 {
	byPicklist := map[string][]string{}
	for productID, st := range stats {
		for picklistID := range st.picklists {
			byPicklist[picklistID] = append(byPicklist[picklistID], productID)
		}
	}
	co := map[string]map[string]int{}
	for _, products := range byPicklist {
		for _, a := range products {
			for _, b := range products {
				if a == b {
					continue
				}
				if co[a] == nil {
					co[a] = map[string]int{}
				}
				co[a][b]++
			}
		}
	}
	scores := make(map[string]float64, len(stats))
	for productID, st := range stats {
		if len(st.picklists) == 0 {
			continue
		}
		best := 0
		for _, n := range co[productID] {
			best = max(best, n)
		}
		scores[productID] = 100 * float64(best) / float64(len(st.picklists))
	}
	return scores
}

// ergonomicScore is 100 when the current bin sits in the class's target
// reach tier, 60 one tier off and 20 otherwise
func ergonomicScore(bin string, class domain.VelocityClass) float64 {
	diff := domain.ReachTier(bin) - class.TargetTier()
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 100
	case 1:
		return 60
	default:
		return 20
	}
}

// seasonalityScore compares the period's daily rate to the long-run daily
// rate over the three preceding period lengths; 50 means steady
func seasonalityScore(quantity, longQuantity int, periodDays float64) float64 {
	if longQuantity == 0 || periodDays <= 0 {
		return 50
	}
	rate := float64(quantity) / periodDays
	longRate := float64(longQuantity) / (3 * periodDays)
	return math.Max(0, math.Min(100, 50*rate/longRate))
}

// recommend picks a zone by class and the first free bin in it. Free bins
// are handed out by descending total score so hot products choose first.
func (s *SlottingOptimizer) recommend(ctx context.Context, warehouseID string, scores []*domain.SlotScore) error {
	zones := s.config.ZonesFor(warehouseID)
	order := make([]*domain.SlotScore, len(scores))
	copy(order, scores)
	sort.Slice(order, func(i, j int) bool {
		if order[i].TotalScore != order[j].TotalScore {
			return order[i].TotalScore > order[j].TotalScore
		}
		return order[i].ProductID < order[j].ProductID
	})

	free := map[string][]string{}
	loaded := map[string]bool{}
	for _, sc := range order {
		zone := sc.CurrentZone
		switch sc.VelocityClass {
		case domain.VelocityA:
			if zones.Forward != "" {
				zone = zones.Forward
			}
		case domain.VelocityC:
			if zones.Reserve != "" {
				zone = zones.Reserve
			}
		}
		sc.RecommendedZone = zone
		sc.RecommendedBin = sc.CurrentBin

		inPlace := sc.CurrentBin != "" && sc.CurrentZone == zone &&
			domain.ReachTier(sc.CurrentBin) == sc.VelocityClass.TargetTier()
		if inPlace || zone == "" {
			continue
		}
		if !loaded[zone] {
			bins, err := s.inventory.EmptyBins(ctx, warehouseID, zone)
			if err != nil {
				return fmt.Errorf("failed to list free bins in zone %s: %w", zone, err)
			}
			sort.Strings(bins)
			free[zone] = bins
			loaded[zone] = true
		}
		if candidates := free[zone]; len(candidates) > 0 {
			sc.RecommendedBin = candidates[0]
			free[zone] = candidates[1:]
		}
	}
	return nil
}

// rankRelocations orders moves by benefit over cost
func rankRelocations(scores []*domain.SlotScore) {
	var moves []*domain.SlotScore
	for _, sc := range scores {
		sc.RelocationPriority = 0
		sc.RelocationRank = 0
		if !sc.NeedsRelocation() {
			continue
		}
		cost := 1 + sc.UnitWeight/10
		if sc.VelocityClass == domain.VelocityC {
			cost++
		}
		sc.RelocationPriority = round2(sc.TotalScore / cost)
		moves = append(moves, sc)
	}
	sort.Slice(moves, func(i, j int) bool {
		if moves[i].RelocationPriority != moves[j].RelocationPriority {
			return moves[i].RelocationPriority > moves[j].RelocationPriority
		}
		return moves[i].ProductID < moves[j].ProductID
	})
	for i, sc := range moves {
		sc.RelocationRank = i + 1
	}
}

// RecomputeAll runs Recompute for every configured warehouse with bounded
// concurrency, each under its own tenant context
func (s *SlottingOptimizer) RecomputeAll(ctx context.Context, period domain.Period) (map[string]int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	var mu sync.Mutex
	results := make(map[string]int, len(s.config.Warehouses))
	for _, wh := range s.config.Warehouses {
		g.Go(func() error {
			wctx := tenant.ToContext(gctx, &tenant.Context{TenantID: wh.TenantID, FacilityID: wh.FacilityID, WarehouseID: wh.WarehouseID})
			run, err := s.Recompute(wctx, RecomputeSlottingCommand{WarehouseID: wh.WarehouseID, From: period.From, To: period.To})
			if err != nil {
				return fmt.Errorf("warehouse %s: %w", wh.WarehouseID, err)
			}
			mu.Lock()
			results[wh.WarehouseID] = run.Products
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

// ListRelocations returns ranked relocation suggestions
func (s *SlottingOptimizer) ListRelocations(ctx context.Context, warehouseID string, limit int) ([]SlotScoreDTO, error) {
	if limit <= 0 {
		limit = 50
	}
	scores, err := s.scores.FindRelocations(ctx, warehouseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list relocations: %w", err)
	}
	return ToSlotScoreDTOs(scores), nil
}

// SuggestPutaway returns the recommended bin of a product, or its current
// bin, or "" when the product was never scored
func (s *SlottingOptimizer) SuggestPutaway(ctx context.Context, warehouseID, productID string) (string, error) {
	sc, err := s.scores.FindByProduct(ctx, warehouseID, productID)
	if domain.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if sc.RecommendedBin != "" {
		return sc.RecommendedBin, nil
	}
	return sc.CurrentBin, nil
}
