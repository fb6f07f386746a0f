package contextbuilder

import (
	"fmt"
	"strings"

	"github.com/plotpilot/server/internal/assistant/model"
)

// generalStage marks a fertigation entry that applies across the whole cycle.
const generalStage = "general"

// selectFertigationEntry picks the schedule entry for the current stage,
// falling back to a "general" entry, then to any active entry.
func selectFertigationEntry(entries []model.FertigationEntry, stage model.GrowthStage) *model.FertigationEntry {
	for i := range entries {
		if entries[i].Active && strings.EqualFold(entries[i].Stage, string(stage)) {
			return &entries[i]
		}
	}
	for i := range entries {
		if entries[i].Active && strings.EqualFold(entries[i].Stage, generalStage) {
			return &entries[i]
		}
	}
	for i := range entries {
		if entries[i].Active {
			return &entries[i]
		}
	}
	return nil
}

// renderFertigation turns a schedule entry into plain text dosing rules for
// the system prompt.
func renderFertigation(entry *model.FertigationEntry) string {
	if entry == nil || len(entry.Ingredients) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fertigation program (%s):\n", entry.Stage)
	for _, ing := range entry.Ingredients {
		fmt.Fprintf(&b, "- %s: %g %s", ing.Name, ing.Dosage, ing.Unit)
		if ing.Frequency != "" {
			fmt.Fprintf(&b, " (%s)", ing.Frequency)
		}
		b.WriteString("\n")
	}
	if entry.Note != "" {
		fmt.Fprintf(&b, "Note: %s\n", entry.Note)
	}
	return strings.TrimRight(b.String(), "\n")
}
