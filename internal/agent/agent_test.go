package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stpasec/engine/internal/llmadapter"
)

type queueProvider struct {
	responses []string
	calls     int
}

func (q *queueProvider) Name() string { return "queue" }

func (q *queueProvider) Generate(ctx context.Context, messages []llmadapter.Message, opts llmadapter.Options) (string, error) {
	r := q.responses[q.calls%len(q.responses)]
	q.calls++
	return r, nil
}

type stubAgent struct {
	agentType string
	items     string
	calls     int
}

func (s *stubAgent) AgentType() string { return s.agentType }

func (s *stubAgent) Analyze(ctx context.Context, rc *RunContext) (Result, error) {
	s.calls++
	return Result{AgentType: s.agentType, Style: rc.Style, Items: []byte(s.items)}, nil
}

func (s *stubAgent) ValidateAbstractionLevel(text string) bool {
	return !IsImplementationDetail(text)
}

func TestPromptModifier_BalancedIsEmpty(t *testing.T) {
	require.Empty(t, PromptModifier(StyleBalanced))
	require.Contains(t, PromptModifier(StyleIntuitive), "intuitive")
}

func TestStylesForMode(t *testing.T) {
	require.Equal(t, []Style{StyleBalanced}, StylesForMode("standard", nil))
	require.Equal(t, []Style{StyleIntuitive, StyleTechnical, StyleCreative, StyleSystematic}, StylesForMode("dream_team", nil))
	require.Equal(t, []Style{StyleIntuitive, StyleTechnical}, StylesForMode("enhanced", nil))
	require.Equal(t, []Style{StyleCreative, StyleSystematic}, StylesForMode("enhanced", []Style{StyleCreative, StyleSystematic}))
}

func TestIsImplementationDetail(t *testing.T) {
	require.True(t, IsImplementationDetail("relies on a Kubernetes cluster"))
	require.False(t, IsImplementationDetail("the system cannot verify operator identity"))
}

func TestIsPreventionLanguage(t *testing.T) {
	require.True(t, IsPreventionLanguage("the system must not allow unauthenticated access"))
	require.False(t, IsPreventionLanguage("the system operates without verified operator identity"))
}

func TestDescribesOutcomeAndState(t *testing.T) {
	require.False(t, DescribesOutcome("an attacker can exfiltrate mission data"))
	require.True(t, DescribesOutcome("mission data becomes unrecoverable"))
	require.False(t, DescribesState("operates without integrity verification"))
	require.True(t, DescribesState("operates in a degraded integrity state"))
}

func TestBase_NextID_SequentialAndScopedPerAnalysis(t *testing.T) {
	b := NewBase("L", nil)
	require.Equal(t, "L-1", b.NextID("a1"))
	require.Equal(t, "L-2", b.NextID("a1"))
	require.Equal(t, "L-1", b.NextID("a2"), "allocator is scoped per analysis")
}

func TestSupervised_RetriesOnceWhenReviewSaysIncomplete(t *testing.T) {
	provider := &queueProvider{responses: []string{"INCOMPLETE"}}
	llm := llmadapter.New(provider)
	base := NewBase("X", llm)
	inner := &stubAgent{agentType: "loss_identification", items: `[{"description":"x"}]`}
	supervised := Supervise(inner, &base)

	rc := &RunContext{AnalysisID: "a1", Style: StyleBalanced}
	_, err := supervised.Analyze(context.Background(), rc)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls, "review said INCOMPLETE, so Analyze should have run twice")
}

func TestSupervised_NoRetryWhenReviewSaysComplete(t *testing.T) {
	provider := &queueProvider{responses: []string{"COMPLETE"}}
	llm := llmadapter.New(provider)
	base := NewBase("X", llm)
	inner := &stubAgent{agentType: "loss_identification", items: `[{"description":"x"}]`}
	supervised := Supervise(inner, &base)

	rc := &RunContext{AnalysisID: "a1", Style: StyleBalanced}
	_, err := supervised.Analyze(context.Background(), rc)
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)
}
