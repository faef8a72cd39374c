package coordinator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/domain"
	"github.com/stpasec/engine/internal/events"
	"github.com/stpasec/engine/internal/registry"
	"github.com/stpasec/engine/internal/synthesis"
)

// phaseRequest bundles everything runPhase needs to fan an agent out
// across cognitive styles and merge the result.
type phaseRequest struct {
	phaseName    string
	analysisID   string
	step         domain.Step
	systemDesc   string
	registry     *registry.Registry
	enhancedPair []agent.Style
	// prefixForItem derives a merged item's identifier prefix. Agents
	// with one artifact shape return a constant; control_structure
	// branches on kind via step2.ComponentPrefix.
	prefixForItem func(item map[string]any) string
	agent         agent.Agent
}

// phaseOutcome is one phase's merged, synthesized output plus whatever
// non-fatal agent errors occurred along the way.
type phaseOutcome struct {
	Items  []map[string]any
	Meta   synthesis.Metadata
	Errors []error
}

// runPhase fans req.agent out across every cognitive style the
// coordinator's execution mode selects, synthesizes the per-style
// results into one deduplicated list, and returns it. An individual
// style's failure is recorded as an AgentError and excluded from
// synthesis; runPhase itself only returns an error when every style
// failed (an empty phase has nothing to persist or synthesize).
func (c *Coordinator) runPhase(ctx context.Context, req phaseRequest) (phaseOutcome, error) {
	ctx, span := tracer.Start(ctx, "coordinator.runPhase", oteltrace.WithAttributes(
		attribute.String("phase", req.phaseName),
		attribute.String("agent_type", req.agent.AgentType()),
	))
	defer span.End()

	styles := agent.StylesForMode(string(c.mode), req.enhancedPair)
	wrapped := c.wrap(req.agent)

	type styleResult struct {
		style agent.Style
		items []map[string]any
		err   error
	}
	results := make([]styleResult, len(styles))

	g, gCtx := errgroup.WithContext(ctx)
	for i, style := range styles {
		i, style := i, style
		g.Go(func() error {
			agentCtx, cancel := context.WithTimeout(gCtx, c.agentTimeout)
			defer cancel()

			rc := &agent.RunContext{
				AnalysisID:        req.analysisID,
				Step:              req.step,
				SystemDescription: req.systemDesc,
				Style:             style,
				Registry:          req.registry,
				Gateway:           c.gw,
			}
			c.publish(req.phaseName, req.agent.AgentType(), events.StatusStarted, "style "+string(style)+" started")
			result, err := wrapped.Analyze(agentCtx, rc)
			if err != nil {
				results[i] = styleResult{style: style, err: err}
				c.publish(req.phaseName, req.agent.AgentType(), events.StatusFailed, err.Error())
				return nil // non-fatal: other styles still run (spec.md §7)
			}
			items, parseErr := agent.ParseItems(result.Items)
			if parseErr != nil {
				results[i] = styleResult{style: style, err: parseErr}
				c.publish(req.phaseName, req.agent.AgentType(), events.StatusFailed, parseErr.Error())
				return nil
			}
			results[i] = styleResult{style: style, items: items}
			c.publish(req.phaseName, req.agent.AgentType(), events.StatusCompleted, "style "+string(style)+" completed")
			return nil
		})
	}
	_ = g.Wait()

	perStyle := make(map[string][]map[string]any, len(styles))
	var errs []error
	succeeded := 0
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, &AgentError{AgentType: req.agent.AgentType(), Style: string(r.style), Cause: r.err})
			continue
		}
		perStyle[string(r.style)] = r.items
		succeeded++
	}
	if succeeded == 0 {
		return phaseOutcome{Errors: errs}, &AgentError{AgentType: req.agent.AgentType(), Style: "all", Cause: errFirst(errs)}
	}

	merged, meta := synthesis.MergeWithPrefixFunc(req.agent.AgentType(), perStyle, req.prefixForItem)
	return phaseOutcome{Items: merged, Meta: meta, Errors: errs}, nil
}

func errFirst(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// constPrefix returns a prefixForItem func that always returns prefix,
// for agents whose merged items all share one identifier shape.
func constPrefix(prefix string) func(map[string]any) string {
	return func(map[string]any) string { return prefix }
}
