package coordinator

import "strings"

type keywordHint struct {
	keyword string
	hint    string
}

// domainHints maps a keyword found in the free-text system description to
// the domain hint it implies. Grounded on
// _examples/original_source/apps/backend/core/agents/step1_agents/system_description.py,
// which ran a full LLM pass to extract this kind of context before the
// mission analyst ran; here it's collapsed to the deterministic keyword
// scan that pass's own abstraction-level checker already resembled,
// since spec.md's phase graph has no room for an extra LLM phase.
var domainHints = []keywordHint{
	{"payment", "domain hint: payments/financial processing"},
	{"financial", "domain hint: payments/financial processing"},
	{"health", "domain hint: healthcare"},
	{"medical", "domain hint: healthcare"},
	{"patient", "domain hint: healthcare"},
	{"vehicle", "domain hint: automotive/transportation"},
	{"autonomous", "domain hint: autonomous systems"},
	{"industrial", "domain hint: industrial control"},
	{"scada", "domain hint: industrial control"},
	{"power grid", "domain hint: critical infrastructure"},
	{"energy", "domain hint: critical infrastructure"},
	{"aviation", "domain hint: aviation"},
	{"flight", "domain hint: aviation"},
}

var criticalityHints = []keywordHint{
	{"life-critical", "criticality hint: life-critical"},
	{"life critical", "criticality hint: life-critical"},
	{"safety-critical", "criticality hint: safety-critical"},
	{"mission-critical", "criticality hint: mission-critical"},
	{"regulated", "criticality hint: regulatory oversight"},
	{"regulatory", "criticality hint: regulatory oversight"},
	{"compliance", "criticality hint: regulatory oversight"},
}

// enrichSystemDescription prefixes desc with whatever domain/criticality
// hints its keywords imply, so every Step 1 agent's prompt carries the
// same lightweight context a dedicated system_description pass would
// have surfaced. A description with no matching keyword is returned
// unchanged; hint order is fixed (domain table then criticality table)
// so a given description always produces the same prefix.
func enrichSystemDescription(desc string) string {
	lower := strings.ToLower(desc)
	var hints []string
	seen := make(map[string]bool)
	for _, kh := range domainHints {
		if strings.Contains(lower, kh.keyword) && !seen[kh.hint] {
			hints = append(hints, kh.hint)
			seen[kh.hint] = true
		}
	}
	for _, kh := range criticalityHints {
		if strings.Contains(lower, kh.keyword) && !seen[kh.hint] {
			hints = append(hints, kh.hint)
			seen[kh.hint] = true
		}
	}
	if len(hints) == 0 {
		return desc
	}
	return strings.Join(hints, "; ") + "\n\n" + desc
}
