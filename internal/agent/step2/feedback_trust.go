package step2

import (
	"context"
	"encoding/json"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/llmadapter"
)

const feedbackSystemPrompt = `You are an STPA-Sec feedback mechanism analyst. Given the registered
components, identify the feedback channels each controlled process
sends back to its controller.

Respond with a JSON array of objects with keys: source_process_id,
target_controller_id, information_type, content, timing, reliability,
security_relevance. Only cite identifiers from the supplied component
list.`

// FeedbackAnalyst identifies feedback mechanisms (spec.md §3
// FeedbackMechanism, `FB-n`).
type FeedbackAnalyst struct {
	agent.Base
}

func NewFeedbackAnalyst(llm *llmadapter.Adapter) *FeedbackAnalyst {
	return &FeedbackAnalyst{Base: agent.NewBase("FB", llm)}
}

func (a *FeedbackAnalyst) AgentType() string { return "feedback_mechanism" }

func (a *FeedbackAnalyst) ValidateAbstractionLevel(text string) bool { return true }

func (a *FeedbackAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	userPrompt := "Registered components:\n" + rc.Registry.PromptContext()

	schema := agent.ItemSchema("feedback_mechanism", "source_process_id", "target_controller_id")
	raw, err := a.DispatchStructured(ctx, rc, feedbackSystemPrompt, userPrompt, a.AgentType(), schema)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	items, err := agent.ParseItems(raw)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	valid, errs := filterValidReferences(rc.Registry, items,
		referencePair{fromField: "source_process_id", toField: "target_controller_id"})
	for _, e := range errs {
		_ = agent.LogActivity(rc.Gateway, rc.AnalysisID, a.AgentType(), e, agent.ActivityError, nil)
	}

	out, _ := json.Marshal(valid)
	return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Items: out}, nil
}

const trustBoundarySystemPrompt = `You are an STPA-Sec trust boundary analyst. Given the registered
components, identify the trust boundaries between pairs of components:
where authentication, authorization, or data classification changes as
information crosses between them.

Respond with a JSON array of objects with keys: component_a_id,
component_b_id, type, direction, auth_method, data_protection. Only
cite identifiers from the supplied component list.`

// TrustBoundaryAnalyst identifies trust boundaries (spec.md §3
// TrustBoundary, `TB-n`).
type TrustBoundaryAnalyst struct {
	agent.Base
}

func NewTrustBoundaryAnalyst(llm *llmadapter.Adapter) *TrustBoundaryAnalyst {
	return &TrustBoundaryAnalyst{Base: agent.NewBase("TB", llm)}
}

func (a *TrustBoundaryAnalyst) AgentType() string { return "trust_boundary" }

func (a *TrustBoundaryAnalyst) ValidateAbstractionLevel(text string) bool { return true }

func (a *TrustBoundaryAnalyst) Analyze(ctx context.Context, rc *agent.RunContext) (agent.Result, error) {
	userPrompt := "Registered components:\n" + rc.Registry.PromptContext()

	schema := agent.ItemSchema("trust_boundary", "component_a_id", "component_b_id")
	raw, err := a.DispatchStructured(ctx, rc, trustBoundarySystemPrompt, userPrompt, a.AgentType(), schema)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	items, err := agent.ParseItems(raw)
	if err != nil {
		return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Err: err}, err
	}

	valid, errs := filterValidReferences(rc.Registry, items,
		referencePair{fromField: "component_a_id", toField: "component_b_id"})
	for _, e := range errs {
		_ = agent.LogActivity(rc.Gateway, rc.AnalysisID, a.AgentType(), e, agent.ActivityError, nil)
	}

	out, _ := json.Marshal(valid)
	return agent.Result{AgentType: a.AgentType(), Style: rc.Style, Items: out}, nil
}
