package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"freelancehub/internal/roadmap"
)

const (
	// MaxMilestones caps how many generated milestones are kept.
	MaxMilestones = 8
	// UntitledMilestone replaces an empty generated title.
	UntitledMilestone = "Untitled milestone"
)

var errEmptyOutput = errors.New("empty agent output")

// stripFences removes markdown code fences around the model output.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ParseMilestones decodes the agent output into milestone inputs. The output
// must be a JSON array, optionally fenced.
func ParseMilestones(content string) ([]roadmap.MilestoneInput, error) {
	cleaned := stripFences(content)
	if cleaned == "" {
		return nil, errEmptyOutput
	}

	var raw []struct {
		Title             string  `json:"title"`
		Description       string  `json:"description"`
		EstimatedDuration *string `json:"estimatedDuration"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("parse agent output: %w", err)
	}
	if len(raw) > MaxMilestones {
		raw = raw[:MaxMilestones]
	}

	items := make([]roadmap.MilestoneInput, len(raw))
	for i, r := range raw {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = UntitledMilestone
		}
		items[i] = roadmap.MilestoneInput{
			Title:       title,
			Description: strings.TrimSpace(r.Description),
		}
		if r.EstimatedDuration != nil {
			items[i].EstimatedDuration = strings.TrimSpace(*r.EstimatedDuration)
		}
	}
	return items, nil
}
