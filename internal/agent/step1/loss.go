package step1

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/domain"
	"github.com/stpasec/engine/internal/llmadapter"
)

const lossSystemPrompt = `You are an STPA-Sec loss analyst. Given a system description and its
mission statement, identify the unacceptable losses the system must
avoid — described as OUTCOMES (what is lost), never as attacks,
exploits, breaches, or hacks (that is implementation-level, not
mission-level).

Identify at least 3 distinct losses spanning the categories available:
financial, regulatory, privacy, reputation, mission.

Respond with a JSON array of objects with keys: category (one of
financial, regulatory, privacy, reputation, mission), description,
severity (object with magnitude, scope, duration, reversibility,
detection), mission_impact.`

// LossAnalyst identifies unacceptable losses (spec.md §3 Loss, `L-n`).
type LossAnalyst struct {
	agent.Base
}

func NewLossAnalyst(llm *llmadapter.Adapter) *LossAnalyst {
	return &LossAnalyst{Base: agent.NewBase("L", llm)}
}

func (a *LossAnalyst) AgentType() string { return "loss_identification" }

func (a *LossAnalyst) ValidateAbstractionLevel(text string) bool {
	return agent.DescribesOutcome(text)
}

func (a *LossAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	userPrompt := fmt.Sprintf("System description:\n%s\n\nIdentify the unacceptable losses.", rc.SystemDescription)

	schema := agent.ItemSchema("loss_identification", "category", "description")
	raw, err := a.DispatchStructured(ctx, rc, lossSystemPrompt, userPrompt, a.AgentType(), schema)
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

const lossDependencySystemPrompt = `You are an STPA-Sec loss analyst. Given an already-identified list of
losses (each with a stable identifier), identify which losses depend on
one another: does experiencing one loss trigger, enable, or amplify
another?

Respond with a JSON array of objects with keys: primary_loss_id,
dependent_loss_id, type (one of triggers, enables, amplifies), strength,
timing, rationale. Only cite identifiers from the supplied list. If no
losses depend on each other, respond with an empty array.`

// InferDependencies runs once per analysis, after synthesis has
// assigned stable loss identifiers, since LossDependency cites those
// identifiers (spec.md §3 LossDependency) — unlike the fanned-out
// Analyze call, this never runs per cognitive style.
func (a *LossAnalyst) InferDependencies(ctx context.Context, rc *agent.RunContext, losses []domain.Loss) ([]domain.LossDependency, error) {
	if len(losses) < 2 {
		return nil, nil
	}
	catalog, err := json.Marshal(losses)
	if err != nil {
		return nil, err
	}
	userPrompt := fmt.Sprintf("Losses:\n%s", catalog)
	schema := agent.ItemSchema("loss_dependency", "primary_loss_id", "dependent_loss_id", "type")
	raw, err := a.DispatchStructured(ctx, rc, lossDependencySystemPrompt, userPrompt, "loss_dependency", schema)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(losses))
	for _, l := range losses {
		known[l.ID] = true
	}
	items, err := agent.ParseItems(raw)
	if err != nil {
		return nil, err
	}
	var deps []domain.LossDependency
	for _, item := range items {
		primary, _ := item["primary_loss_id"].(string)
		dependent, _ := item["dependent_loss_id"].(string)
		if !known[primary] || !known[dependent] {
			continue // spec.md invariant 1: dangling references are dropped, not persisted
		}
		strength, _ := item["strength"].(string)
		timing, _ := item["timing"].(string)
		rationale, _ := item["rationale"].(string)
		deps = append(deps, domain.LossDependency{
			AnalysisID:      rc.AnalysisID,
			PrimaryLossID:   primary,
			DependentLossID: dependent,
			Type:            domain.LossDependencyType(fmt.Sprint(item["type"])),
			Strength:        strength,
			Timing:          timing,
			Rationale:       rationale,
		})
	}
	return deps, nil
}
