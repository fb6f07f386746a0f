package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/system_prompt.txt
var systemPromptTemplate string

// SystemPromptVars carries the pre-rendered sections stitched into the
// assistant system prompt.
type SystemPromptVars struct {
	BlockName          string
	CropSection        string
	StageSection       string
	EnvironmentSection string
	FertigationSection string
	ReadTools          string
	WriteTools         string
	SearchTool         string
}

// RenderSystemPrompt renders the assistant system prompt via the Eino prompt
// component (Go template) so prompt callbacks fire like any other render.
func RenderSystemPrompt(ctx context.Context, vars SystemPromptVars) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(systemPromptTemplate),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"BlockName":          vars.BlockName,
		"CropSection":        vars.CropSection,
		"StageSection":       vars.StageSection,
		"EnvironmentSection": vars.EnvironmentSection,
		"FertigationSection": vars.FertigationSection,
		"ReadTools":          vars.ReadTools,
		"WriteTools":         vars.WriteTools,
		"SearchTool":         vars.SearchTool,
	})
	if err != nil {
		return "", fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt render: empty result")
	}
	return msgs[0].Content, nil
}
