package contextbuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/plotpilot/server/internal/assistant/model"
	"github.com/plotpilot/server/internal/assistant/prompts"
	"github.com/plotpilot/server/internal/assistant/tools"
	logx "github.com/plotpilot/server/pkg/logger"
)

// Builder assembles the grounded system prompt for one block. It only reads;
// missing crop or planting data degrades to explicit "no crop assigned" text
// instead of failing the turn.
type Builder struct {
	repo model.BlockRepository
	now  func() time.Time
}

func NewBuilder(repo model.BlockRepository) *Builder {
	return &Builder{repo: repo, now: time.Now}
}

// Build loads the block and renders the system prompt plus the structured
// growth-stage summary when one could be derived.
func (b *Builder) Build(ctx context.Context, farmID, blockID string) (*model.BlockContext, error) {
	block, err := b.repo.GetBlock(ctx, farmID, blockID)
	if err != nil {
		return nil, fmt.Errorf("load block: %w", err)
	}

	vars := prompts.SystemPromptVars{
		BlockName:  blockDisplayName(block),
		ReadTools:  strings.Join(tools.ReadToolNames(), ", "),
		WriteTools: strings.Join(tools.WriteToolNames(), ", "),
		SearchTool: tools.ToolWebSearch,
	}

	var stage *model.GrowthStageInfo

	switch {
	case block.TargetCrop != "":
		stage = b.singleCropSections(ctx, block, &vars)
	default:
		stage = b.multiCropSections(ctx, block, &vars)
	}

	prompt, err := prompts.RenderSystemPrompt(ctx, vars)
	if err != nil {
		return nil, err
	}

	return &model.BlockContext{SystemPrompt: prompt, GrowthStage: stage}, nil
}

// singleCropSections fills the prompt sections for a block with one assigned crop.
func (b *Builder) singleCropSections(ctx context.Context, block *model.Block, vars *prompts.SystemPromptVars) *model.GrowthStageInfo {
	crop, err := b.repo.GetCrop(ctx, block.TargetCrop)
	if err != nil || crop == nil {
		logx.Warn().Err(err).Str("crop_id", block.TargetCrop).Msg("crop lookup failed, degrading to name-only context")
		vars.CropSection = noCropText(block.TargetCropName)
		return nil
	}

	info := ComputeGrowthStage(b.now(), block.PlantedDate, crop.GrowthCycle, block.State)

	vars.CropSection = cropSection(crop, block)
	vars.StageSection = stageSection(info)
	vars.EnvironmentSection = environmentSection(crop.Environment)
	vars.FertigationSection = renderFertigation(selectFertigationEntry(crop.Fertigation, info.Stage))
	return &info
}

// multiCropSections handles a parent block whose child plantings share its
// physical footprint. The first child's stage becomes the reported primary stage.
func (b *Builder) multiCropSections(ctx context.Context, block *model.Block, vars *prompts.SystemPromptVars) *model.GrowthStageInfo {
	children, err := b.repo.ListChildBlocks(ctx, block.FarmID, block.ID)
	if err != nil {
		logx.Warn().Err(err).Str("block_id", block.ID).Msg("child block lookup failed")
	}

	var (
		sections []string
		primary  *model.GrowthStageInfo
	)
	for _, child := range children {
		if child.TargetCrop == "" {
			continue
		}
		crop, err := b.repo.GetCrop(ctx, child.TargetCrop)
		if err != nil || crop == nil {
			logx.Warn().Err(err).Str("crop_id", child.TargetCrop).Msg("child crop lookup failed")
			continue
		}
		info := ComputeGrowthStage(b.now(), child.PlantedDate, crop.GrowthCycle, child.State)
		if primary == nil {
			primary = &info
		}
		sections = append(sections, fmt.Sprintf("- %s: %s (%s), stage %s, day %d of %d",
			blockDisplayName(child), crop.Name, child.State, info.Stage, info.Day, info.TotalCycleDays))
	}

	if len(sections) == 0 {
		vars.CropSection = noCropText(block.TargetCropName)
		return nil
	}

	vars.CropSection = "This block hosts multiple plantings sharing the same footprint:\n" + strings.Join(sections, "\n")
	vars.StageSection = stageSection(*primary)
	return primary
}

func cropSection(crop *model.Crop, block *model.Block) string {
	name := crop.Name
	if crop.Variety != "" {
		name = fmt.Sprintf("%s (%s)", crop.Name, crop.Variety)
	}
	s := fmt.Sprintf("Current crop: %s. Block state: %s.", name, block.State)
	if block.PlantedDate != nil {
		s += fmt.Sprintf(" Planted on %s.", block.PlantedDate.Format("2006-01-02"))
	}
	return s
}

func stageSection(info model.GrowthStageInfo) string {
	return fmt.Sprintf("Growth stage: %s, day %d of a %d-day cycle (%.1f%% through).",
		info.Stage, info.Day, info.TotalCycleDays, info.ProgressPercent)
}

func environmentSection(env model.EnvironmentProfile) string {
	var parts []string
	if env.TempMaxC > 0 {
		parts = append(parts, fmt.Sprintf("temperature %.1f-%.1f C", env.TempMinC, env.TempMaxC))
	}
	if env.HumidityMax > 0 {
		parts = append(parts, fmt.Sprintf("humidity %.0f-%.0f%%", env.HumidityMin, env.HumidityMax))
	}
	if env.ECMax > 0 {
		parts = append(parts, fmt.Sprintf("EC %.1f-%.1f mS/cm", env.ECMin, env.ECMax))
	}
	if env.PHMax > 0 {
		parts = append(parts, fmt.Sprintf("pH %.1f-%.1f", env.PHMin, env.PHMax))
	}
	if env.LightHours > 0 {
		parts = append(parts, fmt.Sprintf("%.0fh light", env.LightHours))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Target environment: " + strings.Join(parts, ", ") + "."
}

func noCropText(cropName string) string {
	if cropName != "" {
		return fmt.Sprintf("No crop profile is available for this block (planned crop: %s). Answer operational questions from device data only.", cropName)
	}
	return "No crop is currently assigned to this block. Answer operational questions from device data only."
}

func blockDisplayName(block *model.Block) string {
	if block.Name != "" {
		return block.Name
	}
	return block.ID
}
