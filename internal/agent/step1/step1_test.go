package step1

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/domain"
	"github.com/stpasec/engine/internal/llmadapter"
)

type fixedProvider struct {
	response string
}

func (f *fixedProvider) Name() string { return "fixed" }

func (f *fixedProvider) Generate(ctx context.Context, messages []llmadapter.Message, opts llmadapter.Options) (string, error) {
	return f.response, nil
}

func TestMissionAnalyst_Analyze(t *testing.T) {
	provider := &fixedProvider{response: `[{"purpose":"process customer payments via a REST interface","method":"batch settlement","goals":["daily settlement"],"domain":"payments","criticality":"high","operational_tempo":"daily","key_capabilities":["settlement"],"constraints":[],"assumptions":[]}]`}
	llm := llmadapter.New(provider)
	a := NewMissionAnalyst(llm)

	rc := &agent.RunContext{AnalysisID: "a1", Style: agent.StyleBalanced, SystemDescription: "A web service to process customer payments."}
	result, err := a.Analyze(context.Background(), rc)
	require.NoError(t, err)

	items, err := agent.ParseItems(result.Items)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Contains(t, items[0]["purpose"], "process customer payments")
}

func TestLossAnalyst_Analyze_FlagsAttackNarrative(t *testing.T) {
	provider := &fixedProvider{response: `[{"category":"financial","description":"an attacker can exploit the settlement batch"}]`}
	llm := llmadapter.New(provider)
	a := NewLossAnalyst(llm)

	rc := &agent.RunContext{AnalysisID: "a1", Style: agent.StyleBalanced, SystemDescription: "desc"}
	result, err := a.Analyze(context.Background(), rc)
	require.NoError(t, err)

	items, err := agent.ParseItems(result.Items)
	require.NoError(t, err)
	require.Equal(t, true, items[0]["abstraction_warning"])
}

func TestHazardAnalyst_InferMappings_DropsUnknownIDs(t *testing.T) {
	provider := &fixedProvider{response: `[{"hazard_id":"H-1","loss_id":"L-1","relationship":"direct","rationale":"r"},{"hazard_id":"H-9","loss_id":"L-1","relationship":"direct","rationale":"r"}]`}
	llm := llmadapter.New(provider)
	a := NewHazardAnalyst(llm)

	hazards := []domain.Hazard{{ID: "H-1", AnalysisID: "a1"}}
	losses := []domain.Loss{{ID: "L-1", AnalysisID: "a1"}}

	rc := &agent.RunContext{AnalysisID: "a1", Style: agent.StyleBalanced}
	mappings, err := a.InferMappings(context.Background(), rc, hazards, losses)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	require.Equal(t, "H-1", mappings[0].HazardID)
}

func TestConstraintAnalyst_InferMappings_DropsUnknownIDs(t *testing.T) {
	provider := &fixedProvider{response: `[{"constraint_id":"SC-1","hazard_id":"H-1","relationship":"reduces"},{"constraint_id":"SC-9","hazard_id":"H-1","relationship":"reduces"}]`}
	llm := llmadapter.New(provider)
	a := NewConstraintAnalyst(llm)

	constraints := []domain.SecurityConstraint{{ID: "SC-1", AnalysisID: "a1"}}
	hazards := []domain.Hazard{{ID: "H-1", AnalysisID: "a1"}}

	rc := &agent.RunContext{AnalysisID: "a1", Style: agent.StyleBalanced}
	mappings, err := a.InferMappings(context.Background(), rc, constraints, hazards)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	require.Equal(t, "SC-1", mappings[0].ConstraintID)
}

func TestBoundaryAnalyst_Analyze(t *testing.T) {
	provider := &fixedProvider{response: `[{"name":"system scope","type":"system_scope","elements":[{"name":"payment-api","position":"inside"}]}]`}
	llm := llmadapter.New(provider)
	a := NewBoundaryAnalyst(llm)

	rc := &agent.RunContext{AnalysisID: "a1", Style: agent.StyleBalanced}
	result, err := a.Analyze(context.Background(), rc)
	require.NoError(t, err)

	items, err := agent.ParseItems(result.Items)
	require.NoError(t, err)
	require.Len(t, items, 1)
}
