package step2

import (
	"context"
	"encoding/json"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/llmadapter"
)

const stateContextSystemPrompt = `You are an STPA-Sec control context analyst. Given the registered
control actions (each with a stable identifier) and components, define
each control action's execution context and the operational modes the
system can be in.

Respond with a JSON array mixing three shapes, tagged by a "record_kind"
field:
- record_kind "control_context": control_action_id, triggers (array),
  preconditions (array), environmental_factors (array), timing,
  decision_logic (object with inputs, criteria, priority,
  conflict_resolution), applicable_modes (array of mode names)
- record_kind "operational_mode": name, description
- record_kind "mode_transition": from_mode, to_mode, trigger

Only cite control_action_id values from the supplied list.`

// StateContextAnalyst identifies per-action execution context and the
// system's operational modes (spec.md §3 ControlContext,
// OperationalMode, ModeTransition).
type StateContextAnalyst struct {
	agent.Base
}

func NewStateContextAnalyst(llm *llmadapter.Adapter) *StateContextAnalyst {
	return &StateContextAnalyst{Base: agent.NewBase("CTX", llm)}
}

func (a *StateContextAnalyst) AgentType() string { return "state_context_analysis" }

func (a *StateContextAnalyst) ValidateAbstractionLevel(text string) bool { return true }

func (a *StateContextAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	priors, err := agent.PriorResults(rc.Gateway, rc.AnalysisID, "control_action_mapping")
	if err != nil {
		return agent.Result{}, err
	}
	userPrompt := "Control actions:\n" + joinItems(priors["control_action_mapping"])
	if rc.Registry != nil {
		userPrompt += "\n\nComponents:\n" + rc.Registry.PromptContext()
	}

	schema := agent.ItemSchema("state_context_analysis", "record_kind")
	raw, err := a.DispatchStructured(ctx, rc, stateContextSystemPrompt, userPrompt, a.AgentType(), schema)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	items, err := agent.ParseItems(raw)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	actionIDs := make(map[string]bool)
	for _, raw := range priors["control_action_mapping"] {
		var action map[string]any
		if err := json.Unmarshal(raw, &action); err == nil {
			if id, ok := action["id"].(string); ok {
				actionIDs[id] = true
			}
		}
	}

	var valid []map[string]any
	for _, item := range items {
		if item["record_kind"] == "control_context" {
			id, _ := item["control_action_id"].(string)
			if !actionIDs[id] {
				_ = agent.LogActivity(rc.Gateway, rc.AnalysisID, a.AgentType(), "Invalid control action reference: "+id, agent.ActivityError, nil)
				continue
			}
		}
		valid = append(valid, item)
	}

	out, _ := json.Marshal(valid)
	return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Items: out}, nil
}

func joinItems(raws []json.RawMessage) string {
	out, _ := json.Marshal(raws)
	return string(out)
}
