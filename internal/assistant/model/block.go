package model

import "time"

// GrowthStage is the crop-cycle phase, derived from planting date and stage
// durations or overridden by the block's manually advanced operational state.
type GrowthStage string

const (
	StageGermination GrowthStage = "germination"
	StageVegetative  GrowthStage = "vegetative"
	StageFlowering   GrowthStage = "flowering"
	StageFruiting    GrowthStage = "fruiting"
	StageHarvest     GrowthStage = "harvest"
	StageCompleted   GrowthStage = "completed"
	StageFallow      GrowthStage = "fallow"
	StageUnknown     GrowthStage = "unknown"
)

// GrowthStageInfo is derived, never persisted.
type GrowthStageInfo struct {
	Stage           GrowthStage `json:"stage"`
	Day             int         `json:"day"`
	TotalCycleDays  int         `json:"total_cycle_days"`
	ProgressPercent float64     `json:"progress_percent"`
}

// Block operational states. States past "growing" override the date-derived stage.
const (
	BlockStatePreparing  = "preparing"
	BlockStatePlanted    = "planted"
	BlockStateGrowing    = "growing"
	BlockStateHarvesting = "harvesting"
	BlockStateCompleted  = "completed"
	BlockStateFallow     = "fallow"
)

// Block is the read-mostly view of a farming block this core consumes. The
// document itself is owned by the surrounding CRUD estate; only the DeviceHub
// bundle is written back through this core.
type Block struct {
	ID             string                `json:"id"`
	FarmID         string                `json:"farm_id"`
	Name           string                `json:"name"`
	State          string                `json:"state"`
	TargetCrop     string                `json:"targetCrop,omitempty"`
	TargetCropName string                `json:"targetCropName,omitempty"`
	PlantedDate    *time.Time            `json:"plantedDate,omitempty"`
	ParentBlockID  string                `json:"parentBlockId,omitempty"`
	AreaSqM        float64               `json:"areaSqM,omitempty"`
	DeviceHub      *DeviceHubCredentials `json:"deviceHub,omitempty"`
}

// GrowthCycle is the per-crop stage duration breakdown in days.
type GrowthCycle struct {
	GerminationDays     int `json:"germinationDays"`
	VegetativeDays      int `json:"vegetativeDays"`
	FloweringDays       int `json:"floweringDays"`
	FruitingDays        int `json:"fruitingDays"`
	HarvestDurationDays int `json:"harvestDurationDays"`
}

// TotalDays returns the full cycle length, floored at one day so progress
// arithmetic never divides by zero.
func (g GrowthCycle) TotalDays() int {
	total := g.GerminationDays + g.VegetativeDays + g.FloweringDays + g.FruitingDays + g.HarvestDurationDays
	if total < 1 {
		return 1
	}
	return total
}

// EnvironmentProfile holds the crop's target environment ranges.
type EnvironmentProfile struct {
	TempMinC      float64 `json:"tempMinC,omitempty"`
	TempMaxC      float64 `json:"tempMaxC,omitempty"`
	HumidityMin   float64 `json:"humidityMin,omitempty"`
	HumidityMax   float64 `json:"humidityMax,omitempty"`
	ECMin         float64 `json:"ecMin,omitempty"`
	ECMax         float64 `json:"ecMax,omitempty"`
	PHMin         float64 `json:"phMin,omitempty"`
	PHMax         float64 `json:"phMax,omitempty"`
	LightHours    float64 `json:"lightHours,omitempty"`
}

// FertigationIngredient is one dosing rule within a schedule entry.
type FertigationIngredient struct {
	Name      string  `json:"name"`
	Dosage    float64 `json:"dosage"`
	Unit      string  `json:"unit"`
	Frequency string  `json:"frequency,omitempty"`
}

// FertigationEntry is one schedule entry, declared for a growth stage or for
// "general" use across the whole cycle.
type FertigationEntry struct {
	Stage       string                  `json:"stage"`
	Active      bool                    `json:"active"`
	Note        string                  `json:"note,omitempty"`
	Ingredients []FertigationIngredient `json:"ingredients"`
}

// Crop is the read-only crop document this core consumes.
type Crop struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Variety     string             `json:"variety,omitempty"`
	GrowthCycle GrowthCycle        `json:"growthCycle"`
	Environment EnvironmentProfile `json:"environment"`
	Fertigation []FertigationEntry `json:"fertigation,omitempty"`
}
