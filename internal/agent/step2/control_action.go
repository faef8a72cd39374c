package step2

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/llmadapter"
	"github.com/stpasec/engine/internal/registry"
)

const controlActionSystemPrompt = `You are an STPA-Sec control action analyst. Given the registered
components (each with a stable identifier), identify the control actions
each controller issues to the controlled processes it supervises.

Respond with a JSON array of objects with keys: controller_id,
controlled_process_id, name, description, action_type,
authority_level, timing_requirements, security_relevance. Only cite
identifiers from the supplied component list.`

// ControlActionAnalyst identifies control actions (spec.md §3
// ControlAction, `CA-n`).
type ControlActionAnalyst struct {
	agent.Base
}

func NewControlActionAnalyst(llm *llmadapter.Adapter) *ControlActionAnalyst {
	return &ControlActionAnalyst{Base: agent.NewBase("CA", llm)}
}

func (a *ControlActionAnalyst) AgentType() string { return "control_action_mapping" }

func (a *ControlActionAnalyst) ValidateAbstractionLevel(text string) bool { return true }

func (a *ControlActionAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	userPrompt := "Registered components:\n" + rc.Registry.PromptContext()

	schema := agent.ItemSchema("control_action_mapping", "controller_id", "controlled_process_id", "name")
	raw, err := a.DispatchStructured(ctx, rc, controlActionSystemPrompt, userPrompt, a.AgentType(), schema)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	items, err := agent.ParseItems(raw)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	valid, errs := filterValidReferences(rc.Registry, items,
		referencePair{fromField: "controller_id", toField: "controlled_process_id"})
	for _, e := range errs {
		_ = agent.LogActivity(rc.Gateway, rc.AnalysisID, a.AgentType(), e, agent.ActivityError, nil)
	}

	out, _ := json.Marshal(valid)
	return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Items: out}, nil
}

// referencePair names the two identifier-valued fields on an item that
// must both resolve in the registry for the item to survive.
type referencePair struct {
	fromField string
	toField   string
}

// filterValidReferences drops any item citing an unregistered
// identifier, returning the survivors plus a human-readable error per
// rejection (spec.md §4.5, testable scenario S3:
// "Invalid controller reference: CTRL-9").
func filterValidReferences(reg *registry.Registry, items []map[string]any, pairs ...referencePair) ([]map[string]any, []string) {
	var valid []map[string]any
	var errs []string
	for _, item := range items {
		ok := true
		for _, p := range pairs {
			fromID, _ := item[p.fromField].(string)
			toID, _ := item[p.toField].(string)
			res := reg.AddReference(fromID, toID)
			switch res {
			case registry.ReferenceUndefinedSource:
				errs = append(errs, fmt.Sprintf("Invalid %s reference: %s", fieldLabel(p.fromField), fromID))
				ok = false
			case registry.ReferenceUndefinedTarget:
				errs = append(errs, fmt.Sprintf("Invalid %s reference: %s", fieldLabel(p.toField), toID))
				ok = false
			}
		}
		if ok {
			valid = append(valid, item)
		}
	}
	return valid, errs
}

func fieldLabel(field string) string {
	switch field {
	case "controller_id":
		return "controller"
	case "controlled_process_id":
		return "controlled process"
	case "component_a_id":
		return "component"
	case "component_b_id":
		return "component"
	case "source_process_id":
		return "source process"
	case "target_controller_id":
		return "target controller"
	default:
		return field
	}
}
