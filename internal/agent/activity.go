package agent

import "time"

// ActivityLevel distinguishes ordinary progress rows from error rows.
type ActivityLevel string

const (
	ActivityInfo  ActivityLevel = "info"
	ActivityError ActivityLevel = "error"
)

// ActivityEntry is one row in an agent's activity log (spec.md §4.4c).
type ActivityEntry struct {
	ID         string         `json:"id"`
	AnalysisID string         `json:"analysis_id"`
	AgentType  string         `json:"agent_type"`
	Activity   string         `json:"activity"`
	Level      ActivityLevel  `json:"level"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
