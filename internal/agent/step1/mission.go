// Package step1 implements the Step 1 (problem framing) concrete
// agents: mission, loss, hazard, stakeholder/adversary, security
// constraint, and system boundary analysts. Each embeds agent.Base and
// is grounded on its counterpart under
// _examples/original_source/apps/backend/core/agents/step1_agents/.
package step1

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/llmadapter"
)

const missionSystemPrompt = `You are an STPA-Sec mission analyst. Given a system description, extract a
mission-level problem statement. Describe the system's purpose, its
method of operation, its goals, its domain, its criticality, its
operational tempo, its key capabilities, its constraints, and the
assumptions the analysis should carry forward.

Write at mission level: WHAT the system accomplishes and for whom, never
HOW it is implemented (no technology names, no protocol names, no
specific products) and never what should be prevented (no "must not",
no "prevent", no control language — that belongs to later phases).

Respond with a JSON array containing exactly one object with keys:
purpose, method, goals (array of strings), domain, criticality,
operational_tempo, key_capabilities (array of strings), constraints
(array of strings), assumptions (array of strings).`

// MissionAnalyst produces the single Mission record for a Step 1 analysis.
type MissionAnalyst struct {
	agent.Base
}

// NewMissionAnalyst builds the mission_analyst agent.
func NewMissionAnalyst(llm *llmadapter.Adapter) *MissionAnalyst {
	return &MissionAnalyst{Base: agent.NewBase("MISSION", llm)}
}

func (a *MissionAnalyst) AgentType() string { return "mission_analyst" }

func (a *MissionAnalyst) ValidateAbstractionLevel(text string) bool {
	return !agent.IsImplementationDetail(text) && !agent.IsPreventionLanguage(text)
}

func (a *MissionAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	userPrompt := fmt.Sprintf("System description:\n%s", rc.SystemDescription)

	schema := agent.ItemSchema("mission_analyst", "purpose", "method", "goals")
	raw, err := a.DispatchStructured(ctx, rc, missionSystemPrompt, userPrompt, a.AgentType(), schema)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	items, err := agent.ParseItems(raw)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}
	for _, item := range items {
		if !a.ValidateAbstractionLevel(purposeAndMethod(item)) {
			item["abstraction_warning"] = true
		}
	}
	out, _ := json.Marshal(items)
	return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Items: out}, nil
}

func purposeAndMethod(item map[string]any) string {
	p, _ := item["purpose"].(string)
	m, _ := item["method"].(string)
	return strings.Join([]string{p, m}, " ")
}
