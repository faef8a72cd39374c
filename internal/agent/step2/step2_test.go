package step2

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/llmadapter"
	"github.com/stpasec/engine/internal/registry"
)

type fixedProvider struct {
	response string
}

func (f *fixedProvider) Name() string { return "fixed" }

func (f *fixedProvider) Generate(ctx context.Context, messages []llmadapter.Message, opts llmadapter.Options) (string, error) {
	return f.response, nil
}

// TestControlActionAnalyst_DropsUndefinedReference mirrors spec.md
// scenario S3: a control action citing an unregistered controller is
// dropped, not persisted, and the phase still completes.
func TestControlActionAnalyst_DropsUndefinedReference(t *testing.T) {
	provider := &fixedProvider{response: `[{"controller_id":"CTRL-9","controlled_process_id":"PROC-9","name":"bogus"}]`}
	llm := llmadapter.New(provider)
	a := NewControlActionAnalyst(llm)

	reg := registry.New()
	reg.Register("CTRL-1", registry.KindController, "orchestrator", "", "", nil)
	reg.Register("PROC-1", registry.KindControlledProcess, "ledger", "", "", nil)

	rc := &agent.RunContext{AnalysisID: "a1", Style: agent.StyleBalanced, Registry: reg}
	result, err := a.Analyze(context.Background(), rc)
	require.NoError(t, err)

	var items []map[string]any
	if len(result.Items) > 0 {
		items, _ = agent.ParseItems(result.Items)
	}
	require.Empty(t, items)

	report := reg.Report()
	require.Contains(t, report.UndefinedReferences, "CTRL-9")
}

func TestControlActionAnalyst_KeepsValidReference(t *testing.T) {
	provider := &fixedProvider{response: `[{"controller_id":"CTRL-1","controlled_process_id":"PROC-1","name":"settle"}]`}
	llm := llmadapter.New(provider)
	a := NewControlActionAnalyst(llm)

	reg := registry.New()
	reg.Register("CTRL-1", registry.KindController, "orchestrator", "", "", nil)
	reg.Register("PROC-1", registry.KindControlledProcess, "ledger", "", "", nil)

	rc := &agent.RunContext{AnalysisID: "a1", Style: agent.StyleBalanced, Registry: reg}
	result, err := a.Analyze(context.Background(), rc)
	require.NoError(t, err)

	items, err := agent.ParseItems(result.Items)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestComponentPrefix(t *testing.T) {
	require.Equal(t, "CTRL", ComponentPrefix(map[string]any{"kind": "controller"}))
	require.Equal(t, "PROC", ComponentPrefix(map[string]any{"kind": "controlled_process"}))
	require.Equal(t, "DR", ComponentPrefix(map[string]any{"kind": "dual_role"}))
}
