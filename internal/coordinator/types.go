// Package coordinator implements the Step Coordinator (spec.md C7): the
// phase-graph scheduler that drives every Step 1 and Step 2 agent
// through synthesis, persistence, and validation.
//
// Grounded on
// _examples/jinterlante1206-AleutianLocal/services/trace/analysis/enhanced_analyzer.go's
// runPriorityGroup (errgroup fan-out where a participant's error is
// recorded but never aborts the group) for the cognitive-style fan-out
// within a phase, and on that same package's sequential
// priority-group-by-priority-group walk for the phase graph itself.
package coordinator

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/config"
	"github.com/stpasec/engine/internal/events"
	"github.com/stpasec/engine/internal/llmadapter"
	"github.com/stpasec/engine/internal/store"
)

var tracer = otel.Tracer("stpasec/coordinator")

// Default deadlines (spec.md §4.1/§4.7): a single LLM call already
// enforces its own 120s default inside llmadapter; these two bound the
// coordinator's own units of work.
const (
	DefaultAgentTimeout       = 600 * time.Second
	DefaultCoordinatorTimeout = 3600 * time.Second
)

// AgentError wraps a failed Analyze call. It is non-fatal to the phase
// (spec.md §7): the phase continues with whatever styles succeeded, and
// the error is recorded in the execution log rather than aborting the
// run.
type AgentError struct {
	AgentType string
	Style     string
	Cause     error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("coordinator: agent %s (style %s): %v", e.AgentType, e.Style, e.Cause)
}

func (e *AgentError) Unwrap() error { return e.Cause }

// ValidationFailure is an error type carrying only the OverallStatus
// string of a validator.Report, not the report itself. RunStep1 and
// RunStep2 do not return it; they report the status in their result's
// Validation field.
type ValidationFailure struct {
	Status string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("coordinator: validation status %s", e.Status)
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithExecutionMode sets the cognitive-style fan-out strategy (spec.md
// §4.7). Defaults to config.ModeStandard.
func WithExecutionMode(mode config.ExecutionMode) Option {
	return func(c *Coordinator) { c.mode = mode }
}

// WithReporter attaches a progress-event sink (spec.md §6.6). Defaults
// to events.Noop.
func WithReporter(r events.Reporter) Option {
	return func(c *Coordinator) { c.reporter = r }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithSupervision enables the optional quality-review retry decorator
// (spec.md's Open Questions: opt-in only, never the default) on every
// agent the coordinator drives.
func WithSupervision(enabled bool) Option {
	return func(c *Coordinator) { c.supervise = enabled }
}

// WithAgentTimeout overrides DefaultAgentTimeout.
func WithAgentTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.agentTimeout = d }
}

// WithCoordinatorTimeout overrides DefaultCoordinatorTimeout.
func WithCoordinatorTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.coordinatorTimeout = d }
}

// Coordinator drives one analysis run (Step 1 or Step 2) end to end:
// phase graph traversal, cognitive-style fan-out, synthesis, atomic
// per-phase persistence, and final validation.
type Coordinator struct {
	gw        *store.Gateway
	llm       *llmadapter.Adapter
	reporter  events.Reporter
	logger    *slog.Logger
	mode      config.ExecutionMode
	supervise bool

	agentTimeout       time.Duration
	coordinatorTimeout time.Duration

	supervisorBase agent.Base
}

// New builds a Coordinator around gw and llm.
func New(gw *store.Gateway, llm *llmadapter.Adapter, opts ...Option) *Coordinator {
	c := &Coordinator{
		gw:                 gw,
		llm:                llm,
		reporter:           events.Noop,
		logger:             slog.Default(),
		mode:               config.ModeStandard,
		agentTimeout:       DefaultAgentTimeout,
		coordinatorTimeout: DefaultCoordinatorTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.supervisorBase = agent.NewBase("SUP", llm)
	return c
}

// wrap applies the optional supervision decorator uniformly.
func (c *Coordinator) wrap(a agent.Agent) agent.Agent {
	if !c.supervise {
		return a
	}
	return agent.Supervise(a, &c.supervisorBase)
}

func (c *Coordinator) publish(phase, agentType string, status events.Status, message string) {
	c.reporter.Publish(events.Event{
		Timestamp: time.Now(),
		Phase:     phase,
		Agent:     agentType,
		Status:    status,
		Message:   message,
	})
}
