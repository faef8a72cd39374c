package step2

import (
	"context"
	"encoding/json"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/llmadapter"
	"github.com/stpasec/engine/internal/registry"
)

const processModelSystemPrompt = `You are an STPA-Sec process model analyst. Given the registered
controller components, describe each controller's process model: its
internal belief about the state of what it controls.

Respond with a JSON array of objects with keys: controller_id,
state_variables (array), update_sources (array), frequency,
staleness_tolerance, assumptions (array), potential_mismatches (array).
Only cite controller_id values from the supplied component list.`

// ProcessModelAnalyst identifies each controller's process model
// (spec.md §3 ProcessModel).
type ProcessModelAnalyst struct {
	agent.Base
}

func NewProcessModelAnalyst(llm *llmadapter.Adapter) *ProcessModelAnalyst {
	return &ProcessModelAnalyst{Base: agent.NewBase("PM", llm)}
}

func (a *ProcessModelAnalyst) AgentType() string { return "process_model_analyst" }

func (a *ProcessModelAnalyst) ValidateAbstractionLevel(text string) bool { return true }

func (a *ProcessModelAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	controllers := rc.Registry.ByKind(registry.KindController)
	payload, err := json.Marshal(controllers)
	if err != nil {
		return agent.Result{}, err
	}
	userPrompt := "Controllers:\n" + string(payload)

	schema := agent.ItemSchema("process_model_analyst", "controller_id")
	raw, err := a.DispatchStructured(ctx, rc, processModelSystemPrompt, userPrompt, a.AgentType(), schema)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	items, err := agent.ParseItems(raw)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	var valid []map[string]any
	for _, item := range items {
		id, _ := item["controller_id"].(string)
		if !rc.Registry.Validate(id) {
			_ = agent.LogActivity(rc.Gateway, rc.AnalysisID, a.AgentType(), "Invalid controller reference: "+id, agent.ActivityError, nil)
			continue
		}
		valid = append(valid, item)
	}

	out, _ := json.Marshal(valid)
	return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Items: out}, nil
}
