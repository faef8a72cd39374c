// Package step2 implements the Step 2 (control-structure analysis)
// concrete agents: control structure, control action mapping, state
// context analysis, feedback mechanism, trust boundary, and process
// model. Each embeds agent.Base, validates its identifier citations
// against the shared registry.Registry (spec.md C5), and drops
// artifacts that cite an unregistered identifier rather than failing
// the phase (spec.md §4.5, §7 RegistryViolation).
package step2

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/domain"
	"github.com/stpasec/engine/internal/llmadapter"
	"github.com/stpasec/engine/internal/registry"
)

const controlStructureSystemPrompt = `You are an STPA-Sec control structure analyst. Given a system
description (and, if supplied, its Step 1 mission/loss/hazard context),
identify the control structure: the controllers, controlled processes,
and dual-role components that make up the system, plus the supervisory
hierarchy among them.

Respond with a JSON array of objects with keys: kind (one of controller,
controlled_process, dual_role), name, description, authority_level,
criticality, abstraction_level, source, sensor_only (boolean, true only
for a controller with no outgoing control action, e.g. a pure monitor).`

// ControlStructureAnalyst identifies components (spec.md §3 Component).
type ControlStructureAnalyst struct {
	agent.Base
}

func NewControlStructureAnalyst(llm *llmadapter.Adapter) *ControlStructureAnalyst {
	return &ControlStructureAnalyst{Base: agent.NewBase("COMP", llm)}
}

func (a *ControlStructureAnalyst) AgentType() string { return "control_structure_analyst" }

func (a *ControlStructureAnalyst) ValidateAbstractionLevel(text string) bool { return true }

func (a *ControlStructureAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	userPrompt := fmt.Sprintf("System description:\n%s", rc.SystemDescription)
	if rc.Registry != nil {
		userPrompt += "\n\n" + rc.Registry.PromptContext()
	}

	schema := agent.ItemSchema("control_structure_analyst", "kind", "name")
	raw, err := a.DispatchStructured(ctx, rc, controlStructureSystemPrompt, userPrompt, a.AgentType(), schema)
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

// ComponentPrefix returns the identifier prefix for a merged component
// item, branching on its kind field (spec.md S3's CTRL-n / PROC-n
// identifier shapes).
func ComponentPrefix(item map[string]any) string {
	kind, _ := item["kind"].(string)
	switch registry.Kind(kind) {
	case registry.KindController:
		return "CTRL"
	case registry.KindControlledProcess:
		return "PROC"
	default:
		return "DR"
	}
}

const hierarchySystemPrompt = `You are an STPA-Sec control structure analyst. Given the registered
components (each with a stable identifier), identify the supervisory
hierarchy: which components supervise, coordinate, or delegate to which.

Respond with a JSON array of objects with keys: parent_id, child_id,
relationship (one of supervises, coordinates, delegates). Only cite
identifiers from the supplied list. The edges must form a DAG — do not
propose a cycle.`

// InferHierarchy runs once per analysis after components have stable
// identifiers, validating every edge against reg and rejecting any edge
// that would close a cycle (spec.md invariant 4).
func (a *ControlStructureAnalyst) InferHierarchy(ctx context.Context, rc *agent.RunContext, components []domain.Component, reg *registry.Registry) ([]domain.ControlHierarchy, error) {
	if len(components) < 2 {
		return nil, nil
	}
	payload, err := json.Marshal(components)
	if err != nil {
		return nil, err
	}
	schema := agent.ItemSchema("control_hierarchy", "parent_id", "child_id", "relationship")
	raw, err := a.DispatchStructured(ctx, rc, hierarchySystemPrompt, string(payload), "control_hierarchy", schema)
	if err != nil {
		return nil, err
	}
	items, err := agent.ParseItems(raw)
	if err != nil {
		return nil, err
	}

	var edges []domain.ControlHierarchy
	accepted := make(map[[2]string]bool)
	for _, item := range items {
		parentID, _ := item["parent_id"].(string)
		childID, _ := item["child_id"].(string)
		if reg != nil {
			if res := reg.AddReference(parentID, childID); res != registry.ReferenceOK {
				continue
			}
		}
		candidate := append(edgeList(accepted), [2]string{parentID, childID})
		if !domain.IsAcyclic(candidate) {
			continue // would close a cycle; drop it (spec.md invariant 4)
		}
		accepted[[2]string{parentID, childID}] = true
		edges = append(edges, domain.ControlHierarchy{
			AnalysisID:   rc.AnalysisID,
			ParentID:     parentID,
			ChildID:      childID,
			Relationship: domain.HierarchyRelationship(fmt.Sprint(item["relationship"])),
		})
	}
	return edges, nil
}

func edgeList(accepted map[[2]string]bool) [][2]string {
	out := make([][2]string, 0, len(accepted))
	for e := range accepted {
		out = append(out, e)
	}
	return out
}
