package contextbuilder

import (
	"time"

	"github.com/plotpilot/server/internal/assistant/model"
)

// ComputeGrowthStage derives the stage summary for a block from its planting
// date and the crop's stage-duration breakdown. When the block's operational
// state has been manually advanced past what the dates imply, that state wins
// and the dates are reduced to a day-count display.
func ComputeGrowthStage(now time.Time, planted *time.Time, cycle model.GrowthCycle, blockState string) model.GrowthStageInfo {
	total := cycle.TotalDays()
	days := daysSincePlanting(now, planted)

	info := model.GrowthStageInfo{
		Stage:           model.StageUnknown,
		Day:             days,
		TotalCycleDays:  total,
		ProgressPercent: progressPercent(days, total),
	}

	// Manual override: the operator's word beats the calendar.
	switch blockState {
	case model.BlockStateHarvesting:
		info.Stage = model.StageHarvest
		return info
	case model.BlockStateCompleted:
		info.Stage = model.StageCompleted
		info.ProgressPercent = 100
		return info
	case model.BlockStateFallow:
		info.Stage = model.StageFallow
		return info
	}

	if planted == nil {
		info.ProgressPercent = 0
		return info
	}

	info.Stage = stageForDay(days, cycle)
	return info
}

// daysSincePlanting floors at zero so a future planting date never yields a
// negative day count.
func daysSincePlanting(now time.Time, planted *time.Time) int {
	if planted == nil {
		return 0
	}
	days := int(now.Sub(*planted).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func progressPercent(days, total int) float64 {
	pct := 100 * float64(days) / float64(total)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// stageForDay walks cumulative stage boundaries to find the bucket the day
// count falls into. Zero-length stages collapse and are never reported.
func stageForDay(days int, cycle model.GrowthCycle) model.GrowthStage {
	boundaries := []struct {
		stage model.GrowthStage
		days  int
	}{
		{model.StageGermination, cycle.GerminationDays},
		{model.StageVegetative, cycle.VegetativeDays},
		{model.StageFlowering, cycle.FloweringDays},
		{model.StageFruiting, cycle.FruitingDays},
		{model.StageHarvest, cycle.HarvestDurationDays},
	}

	cumulative := 0
	for _, b := range boundaries {
		cumulative += b.days
		if days < cumulative {
			return b.stage
		}
	}
	return model.StageCompleted
}
