// Package promptsaver implements the per-analysis prompt/response
// capture sidecar (spec.md C3).
//
// Enabled/disabled state is fixed at construction: Disabled() returns a
// Saver whose Save is a no-op, so the coordinator can wire the same
// llmadapter.PromptSaver interface regardless of whether capture is on.
package promptsaver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stpasec/engine/internal/llmadapter"
)

// Saver writes two files per captured prompt/response pair (the prompt
// and the response) under baseDir/prompts/, each named with a monotone
// counter and a short timestamp, and writes a Markdown index at Close.
type Saver struct {
	dir      string
	enabled  bool
	counter  atomic.Int64
	mu       sync.Mutex
	entries  []indexEntry
	nowFunc  func() time.Time
}

type indexEntry struct {
	Seq            int64
	Timestamp      string
	Agent          string
	Step           int
	CognitiveStyle string
	PromptFile     string
	ResponseFile   string
}

// New returns an enabled Saver writing under baseDir/prompts/.
func New(baseDir string) (*Saver, error) {
	dir := filepath.Join(baseDir, "prompts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("promptsaver: creating %s: %w", dir, err)
	}
	return &Saver{dir: dir, enabled: true, nowFunc: time.Now}, nil
}

// Disabled returns a Saver that performs no I/O, for coordinators built
// without --save-prompts.
func Disabled() *Saver {
	return &Saver{enabled: false}
}

var _ llmadapter.PromptSaver = (*Saver)(nil)

// Save writes the prompt and response bodies to their own files and
// records the triple for the end-of-run index.
func (s *Saver) Save(ctx context.Context, entry llmadapter.PromptCapture) error {
	if !s.enabled {
		return nil
	}

	seq := s.counter.Add(1)
	ts := s.nowFunc().Format("20060102T150405")

	promptFile := fmt.Sprintf("%04d_%s_prompt.txt", seq, ts)
	responseFile := fmt.Sprintf("%04d_%s_response.txt", seq, ts)

	if err := os.WriteFile(filepath.Join(s.dir, promptFile), []byte(entry.Prompt), 0o644); err != nil {
		return fmt.Errorf("promptsaver: writing prompt: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, responseFile), []byte(entry.Response), 0o644); err != nil {
		return fmt.Errorf("promptsaver: writing response: %w", err)
	}

	s.mu.Lock()
	s.entries = append(s.entries, indexEntry{
		Seq:            seq,
		Timestamp:      ts,
		Agent:          entry.Agent,
		Step:           entry.Step,
		CognitiveStyle: entry.CognitiveStyle,
		PromptFile:     promptFile,
		ResponseFile:   responseFile,
	})
	s.mu.Unlock()

	return nil
}

// Close writes prompts/index.md, a Markdown table of every captured
// triple in sequence order. It is a no-op for a disabled Saver.
func (s *Saver) Close() error {
	if !s.enabled {
		return nil
	}

	s.mu.Lock()
	entries := append([]indexEntry(nil), s.entries...)
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })

	var b []byte
	b = append(b, "| Seq | Timestamp | Agent | Step | Style | Prompt | Response |\n"...)
	b = append(b, "|---|---|---|---|---|---|---|\n"...)
	for _, e := range entries {
		line := fmt.Sprintf("| %d | %s | %s | %d | %s | [%s](%s) | [%s](%s) |\n",
			e.Seq, e.Timestamp, e.Agent, e.Step, e.CognitiveStyle,
			e.PromptFile, e.PromptFile, e.ResponseFile, e.ResponseFile)
		b = append(b, line...)
	}

	return os.WriteFile(filepath.Join(s.dir, "index.md"), b, 0o644)
}
