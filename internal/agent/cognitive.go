package agent

// Style is one of the five cognitive stances an agent can run under
// (spec.md §4.4/§4.7). BALANCED is the default single-pass mode;
// the other four are fanned out together under execution_mode
// `dream_team` and paired under `enhanced`.
type Style string

const (
	StyleBalanced   Style = "balanced"
	StyleIntuitive  Style = "intuitive"
	StyleTechnical  Style = "technical"
	StyleCreative   Style = "creative"
	StyleSystematic Style = "systematic"
)

// promptModifiers holds the stance instruction prepended to an agent's
// system prompt for each style. Text grounded on
// _examples/original_source/apps/backend/core/agents/step1_agents/base_step1.py's
// get_cognitive_style_prompt_modifier, carried over verbatim in the
// teacher's manner of keeping prompt text as a literal table rather
// than templating it.
var promptModifiers = map[Style]string{
	StyleBalanced: "",
	StyleIntuitive: `Think like an intuitive pattern recognizer:
- Trust your instincts about what "feels" wrong or dangerous
- Look for non-obvious patterns and emergent risks
- Consider the aesthetic and human aspects of the system
- Identify risks that might not be immediately measurable
- Focus on the "big picture" and systemic issues`,
	StyleTechnical: `Think like a pragmatic technical implementer:
- Focus on concrete, measurable, and exploitable vulnerabilities
- Consider practical attack vectors and failure modes
- Emphasize technically feasible risks
- Be specific about mechanisms and dependencies
- Prioritize high-impact, high-likelihood scenarios`,
	StyleCreative: `Think like a creative innovator:
- Imagine novel and unexpected failure scenarios
- Consider edge cases and unusual combinations
- Think "outside the box" about potential risks
- Explore unconventional attack vectors
- Don't limit yourself to known patterns`,
	StyleSystematic: `Think like a systematic validator:
- Ensure comprehensive and complete coverage
- Check for logical consistency and completeness
- Validate that nothing important is missed
- Be rigorous and methodical in your analysis
- Ensure MECE (Mutually Exclusive, Collectively Exhaustive) categorization`,
}

// PromptModifier returns the stance instruction for s, or "" for balanced.
func PromptModifier(s Style) string {
	return promptModifiers[s]
}

// EmphasizesNovelty reports whether s should bias toward surfacing
// novel, less-obvious findings rather than rigor.
func EmphasizesNovelty(s Style) bool {
	return s == StyleIntuitive || s == StyleCreative
}

// EmphasizesRigor reports whether s should bias toward exhaustive,
// verifiable coverage rather than novelty.
func EmphasizesRigor(s Style) bool {
	return s == StyleTechnical || s == StyleSystematic
}

// StylesForMode returns the cognitive styles a phase runs an agent
// under for the given execution mode (spec.md §4.7). enhancedPair lets
// a phase supply its own task-appropriate pair for `enhanced` mode
// (e.g. loss identification pairs intuitive+technical); callers that
// don't care about the distinction can pass nil for a generic pair.
func StylesForMode(mode string, enhancedPair []Style) []Style {
	switch mode {
	case "dream_team":
		return []Style{StyleIntuitive, StyleTechnical, StyleCreative, StyleSystematic}
	case "enhanced":
		if len(enhancedPair) > 0 {
			return enhancedPair
		}
		return []Style{StyleIntuitive, StyleTechnical}
	default:
		return []Style{StyleBalanced}
	}
}
