package step1

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/llmadapter"
)

const boundarySystemPrompt = `You are an STPA-Sec system boundary analyst. Given a system description,
define the analysis boundaries: the system scope, trust boundaries,
responsibility boundaries, and data governance boundaries.

For each boundary, tag every element with its position relative to that
boundary: inside, outside, interface, or crossing. A system_scope
boundary needs at least 3 inside, 3 outside, and 2 interface elements. A
responsibility boundary needs at least 2 elements each tagged to reflect
"we own", "they own", and "shared" ownership (encode ownership in the
element name, e.g. "payment-ledger (we own)"), using inside/outside/
shared positions. Trust and data_governance boundaries need at least 3
elements each.

Respond with a JSON array of objects with keys: name, type (one of
system_scope, trust, responsibility, data_governance), elements (array
of objects with keys name, position).`

// BoundaryAnalyst defines system boundaries (spec.md §3 SystemBoundary).
type BoundaryAnalyst struct {
	agent.Base
}

func NewBoundaryAnalyst(llm *llmadapter.Adapter) *BoundaryAnalyst {
	return &BoundaryAnalyst{Base: agent.NewBase("SB", llm)}
}

func (a *BoundaryAnalyst) AgentType() string { return "system_boundaries" }

func (a *BoundaryAnalyst) ValidateAbstractionLevel(text string) bool {
	return !agent.IsImplementationDetail(text)
}

func (a *BoundaryAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	userPrompt := fmt.Sprintf("System description:\n%s\n\nDefine the analysis boundaries.", rc.SystemDescription)

	schema := agent.ItemSchema("system_boundaries", "name", "type", "elements")
	raw, err := a.DispatchStructured(ctx, rc, boundarySystemPrompt, userPrompt, a.AgentType(), schema)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	items, err := agent.ParseItems(raw)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}
	out, _ := json.Marshal(items)
	return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Items: out}, nil
}
