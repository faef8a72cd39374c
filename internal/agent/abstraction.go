package agent

import "strings"

// implementationKeywords flags Step 1 content that has dropped below
// mission-level abstraction into HOW rather than WHAT. Grounded on
// _examples/original_source/apps/backend/core/agents/step1_agents/base_step1.py's
// is_implementation_detail keyword list.
var implementationKeywords = []string{
	"algorithm", "protocol", "api", "database", "firewall",
	"encryption key", "tls", "ssl", "http", "tcp/ip",
	"code", "function", "method", "class", "module",
	"sql", "nosql", "rest", "soap", "graphql",
	"aws", "azure", "docker", "kubernetes",
	"patch", "update", "version", "library",
}

// preventionKeywords flags Step 1 content that prescribes a mitigation
// rather than describing a system state; losses and hazards describe
// what happens, not what should be done about it. Grounded on the same
// source's is_prevention_language.
var preventionKeywords = []string{
	"prevent", "mitigate", "defend", "protect against",
	"security control", "countermeasure", "safeguard",
	"must not", "shall not", "avoid", "ensure",
	"validate", "verify", "authenticate", "authorize",
}

// IsImplementationDetail reports whether text names a concrete
// mechanism rather than a mission-level capability.
func IsImplementationDetail(text string) bool {
	return containsAny(text, implementationKeywords)
}

// IsPreventionLanguage reports whether text prescribes a mitigation
// instead of describing a state.
func IsPreventionLanguage(text string) bool {
	return containsAny(text, preventionKeywords)
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// outcomeViolations flags Loss.description text written as an attack
// narrative instead of an outcome.
var outcomeViolations = []string{"attack", "exploit", "breach", "hack"}

// stateViolations flags Hazard.description text written with absence
// phrasing instead of a system state. Action verbs are not checked.
var stateViolations = []string{"without", "missing", "lack of"}

// DescribesOutcome reports whether a loss description avoids
// attack-narrative language.
func DescribesOutcome(text string) bool {
	return !containsAny(text, outcomeViolations)
}

// DescribesState reports whether a hazard description avoids negation
// phrasing that describes an absence rather than a state.
func DescribesState(text string) bool {
	return !containsAny(text, stateViolations)
}
