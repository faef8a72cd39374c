package step1

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/llmadapter"
)

const stakeholderSystemPrompt = `You are an STPA-Sec stakeholder analyst. Given a system description,
identify both the legitimate stakeholders with an interest in the
mission and the adversary classes that might threaten it.

Identify at least 5 stakeholders and at least 2 adversaries.

Respond with a JSON array mixing two shapes, each tagged by a
"record_kind" field:
- record_kind "stakeholder": name, type, mission_perspective,
  loss_exposure (array of loss categories this stakeholder cares about),
  influence, interest
- record_kind "adversary": name, class, profile, targets (array of
  strings naming what the adversary targets)`

// StakeholderAnalyst identifies stakeholders and adversaries (spec.md §3).
type StakeholderAnalyst struct {
	agent.Base
}

func NewStakeholderAnalyst(llm *llmadapter.Adapter) *StakeholderAnalyst {
	return &StakeholderAnalyst{Base: agent.NewBase("ST", llm)}
}

func (a *StakeholderAnalyst) AgentType() string { return "stakeholder_analyst" }

func (a *StakeholderAnalyst) ValidateAbstractionLevel(text string) bool {
	return !agent.IsImplementationDetail(text)
}

func (a *StakeholderAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	userPrompt := fmt.Sprintf("System description:\n%s\n\nIdentify stakeholders and adversaries.", rc.SystemDescription)

	schema := agent.ItemSchema("stakeholder_analyst", "record_kind", "name")
	raw, err := a.DispatchStructured(ctx, rc, stakeholderSystemPrompt, userPrompt, a.AgentType(), schema)
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
