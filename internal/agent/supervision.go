package agent

import (
	"context"
	"strings"
)

// Supervised wraps an Agent with a bounded quality-check retry: after
// the inner agent's Analyze returns, a single follow-up LLM call asks
// whether the result looks complete and consistent, and re-runs
// Analyze once if it says no. Opt-in only — per spec.md's Open
// Questions, supervision is never the default path; a coordinator
// enables it only through its WithSupervision option, never through the
// execution mode. Grounded on
// _examples/original_source/apps/backend/core/agents/expert_agent.py /
// expert_integration.py's supervisor-review-and-retry pattern.
type Supervised struct {
	Agent
	base *Base
}

// Supervise decorates inner with one round of LLM-judged self-review.
// base supplies the dispatch path the review call is made through;
// it need not be the same Base the inner agent embeds.
func Supervise(inner Agent, base *Base) *Supervised {
	return &Supervised{Agent: inner, base: base}
}

func (s *Supervised) Analyze(ctx context.Context, rc *RunContext) (Result, error) {
	result, err := s.Agent.Analyze(ctx, rc)
	if err != nil {
		return result, err
	}
	verdict, verr := s.review(ctx, rc, result)
	if verr != nil || verdict {
		return result, nil
	}
	return s.Agent.Analyze(ctx, rc)
}

// review asks the LLM a yes/no quality question about the agent's own
// output. A review failure (LLM error) is treated as "pass" — this is
// a quality nudge, not a correctness gate, so it must never turn an
// LLM outage into a spurious retry loop.
func (s *Supervised) review(ctx context.Context, rc *RunContext, result Result) (bool, error) {
	system := "You are a terse STPA-Sec quality reviewer. Answer with exactly one word: COMPLETE or INCOMPLETE."
	user := "Review this " + s.Agent.AgentType() + " output for completeness and internal consistency:\n\n" + string(result.Items)
	text, err := s.base.Dispatch(ctx, rc, system, user, "supervisor:"+s.Agent.AgentType())
	if err != nil {
		return true, err
	}
	return strings.Contains(strings.ToUpper(text), "COMPLETE") && !strings.Contains(strings.ToUpper(text), "INCOMPLETE"), nil
}
