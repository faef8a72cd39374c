package step1

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/domain"
	"github.com/stpasec/engine/internal/llmadapter"
)

const constraintSystemPrompt = `You are an STPA-Sec security constraint analyst. Given the identified
hazards, derive the security constraints that would address them. Write
each as a technology-agnostic objective statement (what must be true),
never naming a specific mechanism, product, or protocol.

Identify at least 3 constraints, spanning types preventive, detective,
corrective, compensating, favoring preventive as the majority (a good
spread looks roughly like 40%% preventive / 30%% detective / 20%%
corrective / 10%% compensating). Give critical hazards at least 2
constraints.

Respond with a JSON array of objects with keys: statement, type (one of
preventive, detective, corrective, compensating), enforcement_level (one
of mandatory, recommended), rationale.`

// ConstraintAnalyst derives security constraints (spec.md §3
// SecurityConstraint, `SC-n`).
type ConstraintAnalyst struct {
	agent.Base
}

func NewConstraintAnalyst(llm *llmadapter.Adapter) *ConstraintAnalyst {
	return &ConstraintAnalyst{Base: agent.NewBase("SC", llm)}
}

func (a *ConstraintAnalyst) AgentType() string { return "security_constraints" }

func (a *ConstraintAnalyst) ValidateAbstractionLevel(text string) bool {
	return !agent.IsImplementationDetail(text)
}

func (a *ConstraintAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	priors, err := agent.PriorResults(rc.Gateway, rc.AnalysisID, "hazard_identification")
	if err != nil {
		return agent.Result{}, err
	}
	userPrompt := fmt.Sprintf("System description:\n%s\n\nHazards:\n%s", rc.SystemDescription, joinRaw(priors["hazard_identification"]))

	schema := agent.ItemSchema("security_constraints", "statement", "type")
	raw, err := a.DispatchStructured(ctx, rc, constraintSystemPrompt, userPrompt, a.AgentType(), schema)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	items, err := agent.ParseItems(raw)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}
	for _, item := range items {
		stmt, _ := item["statement"].(string)
		if !a.ValidateAbstractionLevel(stmt) {
			item["abstraction_warning"] = true
		}
	}
	out, _ := json.Marshal(items)
	return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Items: out}, nil
}

const constraintHazardMappingSystemPrompt = `You are an STPA-Sec security constraint analyst. Given the identified
constraints and hazards (each with a stable identifier), map each
constraint to the hazard(s) it addresses and how.

Respond with a JSON array of objects with keys: constraint_id,
hazard_id, relationship (one of eliminates, detects, reduces,
transfers). Only cite identifiers from the supplied lists.`

// InferMappings runs once per analysis after both constraints and
// hazards have stable identifiers (spec.md §3 ConstraintHazardMapping).
func (a *ConstraintAnalyst) InferMappings(ctx context.Context, rc *agent.RunContext, constraints []domain.SecurityConstraint, hazards []domain.Hazard) ([]domain.ConstraintHazardMapping, error) {
	if len(constraints) == 0 || len(hazards) == 0 {
		return nil, nil
	}
	catalog := struct {
		Constraints []domain.SecurityConstraint `json:"constraints"`
		Hazards     []domain.Hazard             `json:"hazards"`
	}{constraints, hazards}
	payload, err := json.Marshal(catalog)
	if err != nil {
		return nil, err
	}
	schema := agent.ItemSchema("constraint_hazard_mapping", "constraint_id", "hazard_id", "relationship")
	raw, err := a.DispatchStructured(ctx, rc, constraintHazardMappingSystemPrompt, string(payload), "constraint_hazard_mapping", schema)
	if err != nil {
		return nil, err
	}
	knownConstraints := make(map[string]bool, len(constraints))
	for _, c := range constraints {
		knownConstraints[c.ID] = true
	}
	knownHazards := make(map[string]bool, len(hazards))
	for _, h := range hazards {
		knownHazards[h.ID] = true
	}
	items, err := agent.ParseItems(raw)
	if err != nil {
		return nil, err
	}
	var mappings []domain.ConstraintHazardMapping
	for _, item := range items {
		constraintID, _ := item["constraint_id"].(string)
		hazardID, _ := item["hazard_id"].(string)
		if !knownConstraints[constraintID] || !knownHazards[hazardID] {
			continue
		}
		mappings = append(mappings, domain.ConstraintHazardMapping{
			AnalysisID:   rc.AnalysisID,
			ConstraintID: constraintID,
			HazardID:     hazardID,
			Relationship: domain.ConstraintHazardRelationship(fmt.Sprint(item["relationship"])),
		})
	}
	return mappings, nil
}

// joinRaw renders a set of previously persisted artifact rows (already
// JSON) as a single JSON array for inclusion in a follow-on prompt.
func joinRaw(items []json.RawMessage) string {
	raw, _ := json.Marshal(items)
	return string(raw)
}
