package promptsaver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stpasec/engine/internal/llmadapter"
)

func TestSaver_WritesPromptAndResponseFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	err = s.Save(context.Background(), llmadapter.PromptCapture{
		Agent: "mission_analyst", Step: 1, CognitiveStyle: "balanced",
		Prompt: "prompt text", Response: "response text",
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	files, err := os.ReadDir(filepath.Join(dir, "prompts"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(files), 3) // prompt, response, index.md

	index, err := os.ReadFile(filepath.Join(dir, "prompts", "index.md"))
	require.NoError(t, err)
	require.Contains(t, string(index), "mission_analyst")
}

func TestDisabledSaver_DoesNoIO(t *testing.T) {
	s := Disabled()
	err := s.Save(context.Background(), llmadapter.PromptCapture{Prompt: "x", Response: "y"})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSaver_MonotoneCountersAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(context.Background(), llmadapter.PromptCapture{Prompt: "p", Response: "r"}))
	}
	require.NoError(t, s.Close())

	require.Len(t, s.entries, 3)
	require.Equal(t, int64(1), s.entries[0].Seq)
	require.Equal(t, int64(3), s.entries[2].Seq)
}
