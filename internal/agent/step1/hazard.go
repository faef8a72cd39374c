package step1

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/domain"
	"github.com/stpasec/engine/internal/llmadapter"
)

const hazardSystemPrompt = `You are an STPA-Sec hazard analyst. Given a system description, identify
hazardous system STATES — conditions the system can be in that, together
with worst-case environmental factors, lead to one of its losses. Write
each hazard in state form ("the system is in a state where X"), never as
an action or an absence ("without", "missing", "lack of" are all
disallowed — a hazard is a state, not a gap).

Identify at least 3 hazards spanning categories: integrity,
confidentiality, availability, capability.

Respond with a JSON array of objects with keys: category (one of
integrity, confidentiality, availability, capability), description,
affected_property, temporal_nature, environmental_factors (array of
strings).`

// HazardAnalyst identifies hazardous system states (spec.md §3 Hazard, `H-n`).
type HazardAnalyst struct {
	agent.Base
}

func NewHazardAnalyst(llm *llmadapter.Adapter) *HazardAnalyst {
	return &HazardAnalyst{Base: agent.NewBase("H", llm)}
}

func (a *HazardAnalyst) AgentType() string { return "hazard_identification" }

func (a *HazardAnalyst) ValidateAbstractionLevel(text string) bool {
	return agent.DescribesState(text)
}

func (a *HazardAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	userPrompt := fmt.Sprintf("System description:\n%s\n\nIdentify the hazardous system states.", rc.SystemDescription)

	schema := agent.ItemSchema("hazard_identification", "category", "description")
	raw, err := a.DispatchStructured(ctx, rc, hazardSystemPrompt, userPrompt, a.AgentType(), schema)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	items, err := agent.ParseItems(raw)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}
	for _, item := range items {
		desc, _ := item["description"].(string)
		if !a.ValidateAbstractionLevel(desc) {
			item["abstraction_warning"] = true
		}
	}
	out, _ := json.Marshal(items)
	return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Items: out}, nil
}

const hazardLossMappingSystemPrompt = `You are an STPA-Sec hazard analyst. Given the identified hazards and
losses (each with a stable identifier), map each hazard to the loss(es)
it can lead to.

Respond with a JSON array of objects with keys: hazard_id, loss_id,
relationship (one of direct, conditional, indirect), rationale,
enabling_conditions (array of strings). Only cite identifiers from the
supplied lists. Every hazard should map to at least one loss.`

// InferMappings runs once per analysis after both hazards and losses
// have stable identifiers (spec.md §3 HazardLossMapping).
func (a *HazardAnalyst) InferMappings(ctx context.Context, rc *agent.RunContext, hazards []domain.Hazard, losses []domain.Loss) ([]domain.HazardLossMapping, error) {
	if len(hazards) == 0 || len(losses) == 0 {
		return nil, nil
	}
	catalog := struct {
		Hazards []domain.Hazard `json:"hazards"`
		Losses  []domain.Loss   `json:"losses"`
	}{hazards, losses}
	payload, err := json.Marshal(catalog)
	if err != nil {
		return nil, err
	}
	schema := agent.ItemSchema("hazard_loss_mapping", "hazard_id", "loss_id", "relationship")
	raw, err := a.DispatchStructured(ctx, rc, hazardLossMappingSystemPrompt, string(payload), "hazard_loss_mapping", schema)
	if err != nil {
		return nil, err
	}
	knownHazards := make(map[string]bool, len(hazards))
	for _, h := range hazards {
		knownHazards[h.ID] = true
	}
	knownLosses := make(map[string]bool, len(losses))
	for _, l := range losses {
		knownLosses[l.ID] = true
	}
	items, err := agent.ParseItems(raw)
	if err != nil {
		return nil, err
	}
	var mappings []domain.HazardLossMapping
	for _, item := range items {
		hazardID, _ := item["hazard_id"].(string)
		lossID, _ := item["loss_id"].(string)
		if !knownHazards[hazardID] || !knownLosses[lossID] {
			continue
		}
		rationale, _ := item["rationale"].(string)
		mappings = append(mappings, domain.HazardLossMapping{
			AnalysisID:         rc.AnalysisID,
			HazardID:           hazardID,
			LossID:             lossID,
			Relationship:       domain.HazardLossRelationship(fmt.Sprint(item["relationship"])),
			Rationale:          rationale,
			EnablingConditions: stringSlice(item["enabling_conditions"]),
		})
	}
	return mappings, nil
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, el := range raw {
		if s, ok := el.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
