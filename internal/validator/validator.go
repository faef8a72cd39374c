// Package validator implements the Validator (spec.md C10): weighted
// completeness/abstraction/consistency/coverage/security-constraint/
// system-boundary scoring, plus the Step 1 -> Step 2 bridge. Grounded
// on _examples/original_source/apps/backend/core/agents/step1_agents/validation_agent.py
// and .../step2_agents/synthesis_enhancement.py's registry-health checks,
// reshaped from a single monolithic scoring function into one scorer per
// category so each can be unit tested in isolation.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/domain"
	"github.com/stpasec/engine/internal/registry"
)

// Category is one of the six scored dimensions (spec.md §4.10).
type Category string

const (
	CategoryAbstraction          Category = "abstraction"
	CategoryCompleteness         Category = "completeness"
	CategoryConsistency          Category = "consistency"
	CategoryCoverage             Category = "coverage"
	CategorySecurityConstraints  Category = "security_constraints"
	CategorySystemBoundaries     Category = "system_boundaries"
)

// weights sum to 1.00 (spec.md §4.10: 0.20/0.20/0.20/0.15/0.15/0.10).
var weights = map[Category]float64{
	CategoryAbstraction:         0.20,
	CategoryCompleteness:        0.20,
	CategoryConsistency:         0.20,
	CategoryCoverage:            0.15,
	CategorySecurityConstraints: 0.15,
	CategorySystemBoundaries:    0.10,
}

// Severity classifies an Issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityWarning  Severity = "warning"
)

// Issue is one finding surfaced by a category check.
type Issue struct {
	Category Severity `json:"-"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// CategoryResult is one category's score and the issues that produced it.
type CategoryResult struct {
	Score  float64 `json:"score"`
	Issues []Issue `json:"issues"`
}

// QualityLevel enumerates the banding spec.md §4.10 assigns to OverallScore.
type QualityLevel string

const (
	QualityExcellent        QualityLevel = "excellent"
	QualityGood             QualityLevel = "good"
	QualityAdequate         QualityLevel = "adequate"
	QualityNeedsImprovement QualityLevel = "needs_improvement"
	QualityPoor             QualityLevel = "poor"
)

// OverallStatus enumerates spec.md §7's ValidationFailure outcome values.
type OverallStatus string

const (
	StatusReadyForStep2        OverallStatus = "ready_for_step2"
	StatusReadyWithMinorIssues OverallStatus = "ready_with_minor_issues"
	StatusReviewRecommended    OverallStatus = "review_recommended"
	StatusRevisionRequired     OverallStatus = "revision_required"
)

// Report is the structured output of a validation run.
type Report struct {
	Categories    map[Category]CategoryResult `json:"categories"`
	OverallScore  float64                     `json:"overall_score"`
	QualityLevel  QualityLevel                `json:"quality_level"`
	OverallStatus OverallStatus               `json:"overall_status"`
	Bridge        *Bridge                     `json:"bridge,omitempty"`
}

// Input bundles every artifact a validation pass may need. Step 2
// fields are left zero-valued for a Step 1-only run and vice versa;
// each category check only fires when its inputs are non-empty.
type Input struct {
	Mission                  *domain.Mission
	Losses                   []domain.Loss
	Hazards                  []domain.Hazard
	HazardLossMappings       []domain.HazardLossMapping
	Stakeholders             []domain.Stakeholder
	Adversaries              []domain.Adversary
	Constraints              []domain.SecurityConstraint
	ConstraintHazardMappings []domain.ConstraintHazardMapping
	Boundaries               []domain.SystemBoundary

	Components       []domain.Component
	ControlActions   []domain.ControlAction
	ControlContexts  []domain.ControlContext
	Hierarchy        []domain.ControlHierarchy
	RegistryReport   *registry.Report

	// AgentFailures lists agent types that failed outright during
	// phase execution (spec.md §4.7 "Failure handling") — their
	// presence forces OverallStatus to revision_required regardless of
	// score, since a missing phase's output can't be scored as "good".
	AgentFailures []string
}

// Validate runs every category check applicable to input and combines
// them into a weighted Report (spec.md §4.10).
func Validate(in Input) Report {
	categories := map[Category]CategoryResult{
		CategoryAbstraction:         checkAbstraction(in),
		CategoryCompleteness:        checkCompleteness(in),
		CategoryConsistency:         checkConsistency(in),
		CategoryCoverage:            checkCoverage(in),
		CategorySecurityConstraints: checkSecurityConstraints(in),
		CategorySystemBoundaries:    checkSystemBoundaries(in),
	}

	overall := 0.0
	for cat, w := range weights {
		overall += categories[cat].Score * w
	}

	level := qualityLevel(overall)
	status := overallStatus(level, categories, in.AgentFailures)

	var bridge *Bridge
	if in.Mission != nil || len(in.Hazards) > 0 {
		b := buildBridge(in)
		bridge = &b
	}

	return Report{
		Categories:    categories,
		OverallScore:  overall,
		QualityLevel:  level,
		OverallStatus: status,
		Bridge:        bridge,
	}
}

func qualityLevel(score float64) QualityLevel {
	switch {
	case score >= 90:
		return QualityExcellent
	case score >= 80:
		return QualityGood
	case score >= 70:
		return QualityAdequate
	case score >= 60:
		return QualityNeedsImprovement
	default:
		return QualityPoor
	}
}

func overallStatus(level QualityLevel, categories map[Category]CategoryResult, agentFailures []string) OverallStatus {
	if len(agentFailures) > 0 {
		return StatusRevisionRequired
	}
	for _, c := range categories {
		for _, issue := range c.Issues {
			if issue.Severity == SeverityCritical {
				return StatusRevisionRequired
			}
		}
	}
	switch level {
	case QualityExcellent, QualityGood:
		return StatusReadyForStep2
	case QualityAdequate:
		return StatusReadyWithMinorIssues
	case QualityNeedsImprovement:
		return StatusReviewRecommended
	default:
		return StatusRevisionRequired
	}
}

// scoreFromIssues derives a 0-100 score by deducting per-severity
// penalties from a perfect base, floored at 0. Grounded on the same
// deduction-from-100 scoring the original Python validator used,
// reimplemented as a pure function over a typed Severity rather than a
// dict of string->int lookups.
func scoreFromIssues(issues []Issue) float64 {
	score := 100.0
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			score -= 25
		case SeverityMajor:
			score -= 12
		case SeverityMinor:
			score -= 5
		case SeverityWarning:
			score -= 2
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// --- Abstraction ---

func checkAbstraction(in Input) CategoryResult {
	var issues []Issue
	if in.Mission != nil {
		text := in.Mission.Purpose + " " + in.Mission.Method + " " + strings.Join(in.Mission.Goals, " ")
		if agent.IsImplementationDetail(text) {
			issues = append(issues, Issue{Severity: SeverityMajor, Message: "mission statement names implementation-level mechanisms"})
		}
		if agent.IsPreventionLanguage(text) {
			issues = append(issues, Issue{Severity: SeverityMajor, Message: "mission statement prescribes mitigation instead of describing purpose"})
		}
	}
	for _, l := range in.Losses {
		if !agent.DescribesOutcome(l.Description) {
			issues = append(issues, Issue{Severity: SeverityMinor, Message: fmt.Sprintf("loss %s reads as an attack narrative, not an outcome", l.ID)})
		}
	}
	for _, h := range in.Hazards {
		if !agent.DescribesState(h.Description) {
			issues = append(issues, Issue{Severity: SeverityMinor, Message: fmt.Sprintf("hazard %s reads as an absence/action, not a state", h.ID)})
		}
	}
	return CategoryResult{Score: scoreFromIssues(issues), Issues: issues}
}

// --- Completeness ---

// minimumCounts enumerates spec.md §4.7's required artifact minimums.
var minimumCounts = map[string]int{
	"losses":       3,
	"hazards":      3,
	"stakeholders": 5,
	"adversaries":  2,
	"constraints":  3,
}

func checkCompleteness(in Input) CategoryResult {
	var issues []Issue

	counts := map[string]int{
		"losses":       len(in.Losses),
		"hazards":      len(in.Hazards),
		"stakeholders": len(in.Stakeholders),
		"adversaries":  len(in.Adversaries),
		"constraints":  len(in.Constraints),
	}
	isStep1 := in.Mission != nil || len(in.Losses) > 0 || len(in.Hazards) > 0
	if isStep1 {
		kinds := sortedKeys(minimumCounts)
		for _, kind := range kinds {
			min := minimumCounts[kind]
			if counts[kind] < min {
				issues = append(issues, Issue{Severity: SeverityMajor, Message: fmt.Sprintf("%s: %d found, minimum %d required", kind, counts[kind], min)})
			}
		}
		if in.Mission == nil {
			issues = append(issues, Issue{Severity: SeverityCritical, Message: "mission statement missing"})
		}
	}

	if in.RegistryReport != nil {
		if len(in.RegistryReport.UndefinedReferences) > 0 {
			issues = append(issues, Issue{Severity: SeverityMajor, Message: fmt.Sprintf("%d undefined identifier reference(s)", len(in.RegistryReport.UndefinedReferences))})
		}
		orphanControllers := 0
		for _, id := range in.RegistryReport.OrphanComponents {
			orphanControllers++
			_ = id
		}
		if orphanControllers > 0 {
			issues = append(issues, Issue{Severity: SeverityMinor, Message: fmt.Sprintf("%d orphan component(s) with no in or out references", orphanControllers)})
		}
	}
	if len(in.Components) > 0 {
		for _, c := range in.Components {
			if c.Kind == domain.ComponentController && !c.SensorOnly && !hasOutgoingAction(in.ControlActions, c.ID) {
				issues = append(issues, Issue{Severity: SeverityMajor, Message: fmt.Sprintf("controller %s has no outgoing control action and is not sensor_only", c.ID)})
			}
			if c.Kind == domain.ComponentControlledProcess && !hasIncomingAction(in.ControlActions, c.ID) {
				issues = append(issues, Issue{Severity: SeverityMajor, Message: fmt.Sprintf("controlled process %s has no incoming control action", c.ID)})
			}
		}
		actionIDs := make(map[string]bool, len(in.ControlActions))
		for _, a := range in.ControlActions {
			actionIDs[a.ID] = true
		}
		contextedActions := make(map[string]bool, len(in.ControlContexts))
		for _, cc := range in.ControlContexts {
			contextedActions[cc.ControlActionID] = true
		}
		for id := range actionIDs {
			if !contextedActions[id] {
				issues = append(issues, Issue{Severity: SeverityMinor, Message: fmt.Sprintf("control action %s has no control context", id)})
			}
		}
	}

	return CategoryResult{Score: scoreFromIssues(issues), Issues: issues}
}

func hasOutgoingAction(actions []domain.ControlAction, controllerID string) bool {
	for _, a := range actions {
		if a.ControllerID == controllerID {
			return true
		}
	}
	return false
}

func hasIncomingAction(actions []domain.ControlAction, processID string) bool {
	for _, a := range actions {
		if a.ControlledProcessID == processID {
			return true
		}
	}
	return false
}

// --- Consistency ---

func checkConsistency(in Input) CategoryResult {
	var issues []Issue

	lossIDs := idSet(lossIDs(in.Losses))
	hazardIDs := idSet(hazardIDsOf(in.Hazards))
	constraintIDs := idSet(constraintIDsOf(in.Constraints))

	for _, m := range in.HazardLossMappings {
		if !hazardIDs[m.HazardID] {
			issues = append(issues, Issue{Severity: SeverityMajor, Message: fmt.Sprintf("hazard-loss mapping cites unknown hazard %s", m.HazardID)})
		}
		if !lossIDs[m.LossID] {
			issues = append(issues, Issue{Severity: SeverityMajor, Message: fmt.Sprintf("hazard-loss mapping cites unknown loss %s", m.LossID)})
		}
	}
	for _, m := range in.ConstraintHazardMappings {
		if !constraintIDs[m.ConstraintID] {
			issues = append(issues, Issue{Severity: SeverityMajor, Message: fmt.Sprintf("constraint-hazard mapping cites unknown constraint %s", m.ConstraintID)})
		}
		if !hazardIDs[m.HazardID] {
			issues = append(issues, Issue{Severity: SeverityMajor, Message: fmt.Sprintf("constraint-hazard mapping cites unknown hazard %s", m.HazardID)})
		}
	}
	for _, s := range in.Stakeholders {
		for _, exposure := range s.LossExposure {
			if !lossIDs[exposure] && !isLossCategory(exposure) {
				issues = append(issues, Issue{Severity: SeverityMinor, Message: fmt.Sprintf("stakeholder %s loss exposure cites unknown loss %s", s.ID, exposure)})
			}
		}
	}

	if len(in.Hierarchy) > 0 {
		edges := make([][2]string, 0, len(in.Hierarchy))
		for _, h := range in.Hierarchy {
			edges = append(edges, [2]string{h.ParentID, h.ChildID})
		}
		if !domain.IsAcyclic(edges) {
			issues = append(issues, Issue{Severity: SeverityCritical, Message: "control hierarchy contains a cycle"})
		}
	}

	return CategoryResult{Score: scoreFromIssues(issues), Issues: issues}
}

// isLossCategory allows a stakeholder's loss_exposure to cite a loss
// category (e.g. "financial") rather than a specific loss identifier,
// matching the agent prompt's own "array of loss categories" framing.
func isLossCategory(s string) bool {
	switch domain.LossCategory(s) {
	case domain.LossFinancial, domain.LossRegulatory, domain.LossPrivacy, domain.LossReputation, domain.LossMission:
		return true
	default:
		return false
	}
}

// --- Coverage ---

// expectedHazardCategories is spec.md §4.10's "expected set".
var expectedHazardCategories = []string{"integrity", "confidentiality", "availability", "capability"}

func checkCoverage(in Input) CategoryResult {
	if len(in.Hazards) == 0 {
		return CategoryResult{Score: 100, Issues: nil}
	}
	seen := make(map[string]bool, len(in.Hazards))
	for _, h := range in.Hazards {
		seen[strings.ToLower(h.Category)] = true
	}
	var issues []Issue
	for _, cat := range expectedHazardCategories {
		if !seen[cat] {
			issues = append(issues, Issue{Severity: SeverityMinor, Message: fmt.Sprintf("no hazard in category %q", cat)})
		}
	}
	return CategoryResult{Score: scoreFromIssues(issues), Issues: issues}
}

// --- Security constraints ---

// idealConstraintDistribution is spec.md §4.10's ideal percentage spread.
var idealConstraintDistribution = map[domain.ConstraintType]float64{
	domain.ConstraintPreventive:   0.40,
	domain.ConstraintDetective:    0.30,
	domain.ConstraintCorrective:   0.20,
	domain.ConstraintCompensating: 0.10,
}

func checkSecurityConstraints(in Input) CategoryResult {
	if len(in.Hazards) == 0 {
		return CategoryResult{Score: 100, Issues: nil}
	}
	var issues []Issue

	addressed := make(map[string]int, len(in.Hazards))
	for _, m := range in.ConstraintHazardMappings {
		addressed[m.HazardID]++
	}
	for _, h := range in.Hazards {
		count := addressed[h.ID]
		critical := strings.EqualFold(h.TemporalNature, "critical") || strings.Contains(strings.ToLower(h.Description), "critical")
		switch {
		case count == 0:
			issues = append(issues, Issue{Severity: SeverityMajor, Message: fmt.Sprintf("hazard %s has no addressing constraint", h.ID)})
		case critical && count < 2:
			issues = append(issues, Issue{Severity: SeverityMinor, Message: fmt.Sprintf("critical hazard %s has only %d constraint(s), expected >= 2", h.ID, count)})
		}
	}

	if len(in.Constraints) > 0 {
		counts := make(map[domain.ConstraintType]int, 4)
		for _, c := range in.Constraints {
			counts[c.Type]++
		}
		total := float64(len(in.Constraints))
		for t, ideal := range idealConstraintDistribution {
			actual := float64(counts[t]) / total
			if diff := actual - ideal; diff > 0.25 || diff < -0.25 {
				issues = append(issues, Issue{Severity: SeverityWarning, Message: fmt.Sprintf("%s constraints are %.0f%% of the total, ideal is %.0f%%", t, actual*100, ideal*100)})
			}
		}
	}

	return CategoryResult{Score: scoreFromIssues(issues), Issues: issues}
}

// --- System boundaries ---

func checkSystemBoundaries(in Input) CategoryResult {
	if len(in.Boundaries) == 0 {
		return CategoryResult{Score: 100, Issues: nil}
	}
	var issues []Issue
	for _, b := range in.Boundaries {
		counts := map[domain.ElementPosition]int{}
		for _, el := range b.Elements {
			counts[el.Position]++
		}
		switch b.Type {
		case domain.BoundarySystemScope:
			requireAtLeast(&issues, b.ID, "inside", counts[domain.PositionInside], 3)
			requireAtLeast(&issues, b.ID, "outside", counts[domain.PositionOutside], 3)
			requireAtLeast(&issues, b.ID, "interface", counts[domain.PositionInterface], 2)
		case domain.BoundaryResponsibility:
			if len(b.Elements) < 2 {
				issues = append(issues, Issue{Severity: SeverityMinor, Message: fmt.Sprintf("responsibility boundary %s needs >= 2 elements per ownership category", b.ID)})
			}
		case domain.BoundaryTrust, domain.BoundaryDataGovernance:
			if len(b.Elements) < 3 {
				issues = append(issues, Issue{Severity: SeverityMinor, Message: fmt.Sprintf("%s boundary %s needs >= 3 elements", b.Type, b.ID)})
			}
		}
	}
	return CategoryResult{Score: scoreFromIssues(issues), Issues: issues}
}

func requireAtLeast(issues *[]Issue, boundaryID, label string, actual, min int) {
	if actual < min {
		*issues = append(*issues, Issue{Severity: SeverityMinor, Message: fmt.Sprintf("system_scope boundary %s has %d %s element(s), minimum %d", boundaryID, actual, label, min)})
	}
}

// --- helpers ---

func lossIDs(losses []domain.Loss) []string {
	out := make([]string, len(losses))
	for i, l := range losses {
		out[i] = l.ID
	}
	return out
}

func hazardIDsOf(hazards []domain.Hazard) []string {
	out := make([]string, len(hazards))
	for i, h := range hazards {
		out[i] = h.ID
	}
	return out
}

func constraintIDsOf(constraints []domain.SecurityConstraint) []string {
	out := make([]string, len(constraints))
	for i, c := range constraints {
		out[i] = c.ID
	}
	return out
}

func idSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
