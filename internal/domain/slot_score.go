package domain

import "time"

// VelocityClass is the ABC bucket of a product
type VelocityClass string

const (
	VelocityA VelocityClass = "A"
	VelocityB VelocityClass = "B"
	VelocityC VelocityClass = "C"
)

// TargetTier is the ergonomic reach tier a class should live in
func (c VelocityClass) TargetTier() int {
	switch c {
	case VelocityA:
		return 1
	case VelocityB:
		return 2
	default:
		return 3
	}
}

// SlotScore is the optimizer's verdict for one product in one warehouse
type SlotScore struct {
	ID                 string        `bson:"_id" json:"id"`
	TenantID           string        `bson:"tenantId" json:"tenantId"`
	FacilityID         string        `bson:"facilityId" json:"facilityId"`
	WarehouseID        string        `bson:"warehouseId" json:"warehouseId"`
	ProductID          string        `bson:"productId" json:"productId"`
	VelocityClass      VelocityClass `bson:"velocityClass" json:"velocityClass"`
	VelocityScore      float64       `bson:"velocityScore" json:"velocityScore"`
	AffinityScore      float64       `bson:"affinityScore" json:"affinityScore"`
	ErgonomicScore     float64       `bson:"ergonomicScore" json:"ergonomicScore"`
	SeasonalityScore   float64       `bson:"seasonalityScore" json:"seasonalityScore"`
	TotalScore         float64       `bson:"totalScore" json:"totalScore"`
	CurrentBin         string        `bson:"currentBin" json:"currentBin"`
	CurrentZone        string        `bson:"currentZone" json:"currentZone"`
	RecommendedBin     string        `bson:"recommendedBin" json:"recommendedBin"`
	RecommendedZone    string        `bson:"recommendedZone" json:"recommendedZone"`
	RelocationPriority float64       `bson:"relocationPriority" json:"relocationPriority"`
	RelocationRank     int           `bson:"relocationRank" json:"relocationRank"`
	PeriodFrom         time.Time     `bson:"periodFrom" json:"periodFrom"`
	PeriodTo           time.Time     `bson:"periodTo" json:"periodTo"`
	PickCount          int           `bson:"pickCount" json:"pickCount"`
	PickQuantity       int           `bson:"pickQuantity" json:"pickQuantity"`
	UnitWeight         float64       `bson:"unitWeight" json:"unitWeight"`
	ComputedAt         time.Time     `bson:"computedAt" json:"computedAt"`
	CreatedAt          time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// NeedsRelocation reports whether the product should move
func (s *SlotScore) NeedsRelocation() bool {
	return s.RecommendedBin != "" && s.RecommendedBin != s.CurrentBin
}

// Period is a half-open time window [From, To)
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate rejects empty or inverted windows
func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return NewValidationError("period", "from and to are required")
	}
	if !p.From.Before(p.To) {
		return NewValidationError("period", "from must be before to")
	}
	return nil
}

// LongRun is the window of three period lengths immediately before p
func (p Period) LongRun() Period {
	length := p.To.Sub(p.From)
	return Period{From: p.From.Add(-3 * length), To: p.From}
}
