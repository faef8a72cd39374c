// Package agent implements the Agent Framework (spec.md C4): shared
// behavior every concrete Step 1/Step 2 agent builds on — cognitive
// style prompt modification, LLM dispatch through the adapter, prior
// result loading, activity logging, and per-analysis identifier
// allocation. Grounded on
// _examples/original_source/apps/backend/core/agents/step1_agents/base_step1.py's
// BaseStep1Agent, reshaped from an ABC with instance state into a Go
// interface plus an embeddable Base that concrete agents compose.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/stpasec/engine/internal/domain"
	"github.com/stpasec/engine/internal/llmadapter"
	"github.com/stpasec/engine/internal/registry"
	"github.com/stpasec/engine/internal/store"
)

var tracer = otel.Tracer("stpasec/agent")

// Agent is implemented by every concrete Step 1/Step 2 analysis agent.
type Agent interface {
	AgentType() string
	Analyze(ctx context.Context, rc *RunContext) (Result, error)
	ValidateAbstractionLevel(text string) bool
}

// RunContext carries everything an agent needs for one invocation: the
// shared dependencies, which style it is running under, and whatever
// prior-phase artifacts the coordinator chose to pass through. Agents
// must not retain it past a single Analyze call.
type RunContext struct {
	AnalysisID        string
	Step              domain.Step
	SystemDescription string
	Style             Style
	Registry          *registry.Registry // nil for Step 1 phases
	Gateway           *store.Gateway
}

// Result is the outcome of one Analyze call: the parsed artifacts (as
// raw JSON, since each agent's shape differs) plus bookkeeping the
// coordinator and synthesis stage need.
type Result struct {
	AgentType string
	Style     Style
	Items     json.RawMessage
	Err       error // set when analysis failed but the phase should continue
}

// Base is embedded by concrete agents to get identifier allocation,
// LLM dispatch, and activity logging for free. It is not itself an
// Agent; concrete types embed Base and implement AgentType/Analyze/
// ValidateAbstractionLevel.
type Base struct {
	Prefix    string
	LLM       *llmadapter.Adapter
	allocMu   sync.Mutex
	allocator map[string]*domain.IDAllocator // analysisID -> allocator, since Base is shared across runs
}

// NewBase constructs a Base for agents minting identifiers with the
// given prefix (e.g. "L" for losses, "CA" for control actions).
func NewBase(prefix string, llm *llmadapter.Adapter) Base {
	return Base{Prefix: prefix, LLM: llm, allocator: map[string]*domain.IDAllocator{}}
}

// NextID returns the next identifier for this agent's prefix, scoped
// to analysisID. Safe for concurrent use across style fan-out.
func (b *Base) NextID(analysisID string) string {
	b.allocMu.Lock()
	defer b.allocMu.Unlock()
	if b.allocator == nil {
		b.allocator = map[string]*domain.IDAllocator{}
	}
	a, ok := b.allocator[analysisID]
	if !ok {
		a = domain.NewIDAllocator(b.Prefix)
		b.allocator[analysisID] = a
	}
	return a.Next()
}

// Dispatch calls the LLM with the cognitive style modifier prepended
// to systemPrompt, returning the raw response text. Dispatch is the
// single in-flight LLM call an agent may hold a suspension point on
// (spec.md §4.4: "must not hold ... resources across a suspension
// point other than the single in-flight LLM call").
func (b *Base) Dispatch(ctx context.Context, rc *RunContext, systemPrompt, userPrompt string, agentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "agent.Dispatch", oteltrace.WithAttributes(
		attribute.String("agent_type", agentType),
		attribute.String("cognitive_style", string(rc.Style)),
	))
	defer span.End()

	full := systemPrompt
	if mod := PromptModifier(rc.Style); mod != "" {
		if full == "" {
			full = mod
		} else {
			full = mod + "\n\n" + full
		}
	}
	messages := []llmadapter.Message{
		{Role: llmadapter.RoleSystem, Content: full},
		{Role: llmadapter.RoleUser, Content: userPrompt},
	}
	return b.LLM.Generate(ctx, messages, llmadapter.Options{
		Temperature:    0.7,
		Agent:          agentType,
		Step:           int(rc.Step),
		CognitiveStyle: string(rc.Style),
	})
}

// DispatchStructured is Dispatch's schema-validated counterpart, used
// by agents emitting array-shaped artifacts.
func (b *Base) DispatchStructured(ctx context.Context, rc *RunContext, systemPrompt, userPrompt string, agentType string, schema llmadapter.Schema) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "agent.DispatchStructured", oteltrace.WithAttributes(
		attribute.String("agent_type", agentType),
		attribute.String("cognitive_style", string(rc.Style)),
		attribute.String("schema", schema.Name),
	))
	defer span.End()

	full := systemPrompt
	if mod := PromptModifier(rc.Style); mod != "" {
		if full == "" {
			full = mod
		} else {
			full = mod + "\n\n" + full
		}
	}
	messages := []llmadapter.Message{
		{Role: llmadapter.RoleSystem, Content: full},
		{Role: llmadapter.RoleUser, Content: userPrompt},
	}
	return b.LLM.GenerateStructured(ctx, messages, schema, llmadapter.Options{
		Temperature:    0.7,
		Agent:          agentType,
		Step:           int(rc.Step),
		CognitiveStyle: string(rc.Style),
	})
}

// LogActivity persists one activity-log row through the gateway as an
// artifact of kind "activity_log", keyed by a fresh uuid so repeated
// log calls never collide.
func LogActivity(gw *store.Gateway, analysisID, agentType, activity string, level ActivityLevel, details map[string]any) error {
	if gw == nil {
		return nil
	}
	entry := ActivityEntry{
		ID:         uuid.NewString(),
		AnalysisID: analysisID,
		AgentType:  agentType,
		Activity:   activity,
		Level:      level,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	if err := gw.InsertArtifact(analysisID, "activity_log", entry.ID, entry); err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

// PriorResults loads the most recently persisted artifacts for each of
// the named agent types, e.g. a constraints agent pulling hazards and
// losses before it runs (spec.md §4.4b). Results are returned keyed by
// agent type; a type with no persisted artifacts is simply absent.
func PriorResults(gw *store.Gateway, analysisID string, kinds ...string) (map[string][]json.RawMessage, error) {
	if gw == nil {
		return map[string][]json.RawMessage{}, nil
	}
	out := make(map[string][]json.RawMessage, len(kinds))
	for _, kind := range kinds {
		items, err := store.FetchArtifacts[json.RawMessage](gw, analysisID, kind)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			out[kind] = items
		}
	}
	return out, nil
}
