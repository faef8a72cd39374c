package coordinator

import (
	"fmt"
	"sort"

	"github.com/stpasec/engine/internal/domain"
)

// minimumArtifactCounts is spec.md §4.7's required-artifact-kind table.
var minimumArtifactCounts = map[string]int{
	"losses":       3,
	"hazards":      3,
	"stakeholders": 5,
	"adversaries":  2,
	"constraints":  3,
}

// checkStep1Completeness runs the deterministic gate described in
// spec.md §4.7, distinct from the Validator's scored completeness
// category: it checks presence (minimum counts, required sub-fields,
// cross-reference resolution), not content quality.
func checkStep1Completeness(r Step1Result) domain.CompletenessCheck {
	counts := map[string]int{
		"losses":       len(r.Losses),
		"hazards":      len(r.Hazards),
		"stakeholders": len(r.Stakeholders),
		"adversaries":  len(r.Adversaries),
		"constraints":  len(r.Constraints),
	}

	var missingMinimums []string
	for _, kind := range sortedStringKeys(minimumArtifactCounts) {
		if counts[kind] < minimumArtifactCounts[kind] {
			missingMinimums = append(missingMinimums, fmt.Sprintf("%s: %d found, minimum %d required", kind, counts[kind], minimumArtifactCounts[kind]))
		}
	}

	var missingFields []string
	if r.Mission.Purpose == "" {
		missingFields = append(missingFields, "mission.purpose")
	}
	if r.Mission.Method == "" {
		missingFields = append(missingFields, "mission.method")
	}
	if len(r.Mission.Goals) == 0 {
		missingFields = append(missingFields, "mission.goals")
	}
	for _, l := range r.Losses {
		if l.Description == "" {
			missingFields = append(missingFields, fmt.Sprintf("%s.description", l.ID))
		}
		if l.Category == "" {
			missingFields = append(missingFields, fmt.Sprintf("%s.category", l.ID))
		}
	}
	for _, h := range r.Hazards {
		if h.Description == "" {
			missingFields = append(missingFields, fmt.Sprintf("%s.description", h.ID))
		}
	}
	for _, sc := range r.Constraints {
		if sc.Statement == "" {
			missingFields = append(missingFields, fmt.Sprintf("%s.statement", sc.ID))
		}
	}

	lossIDs := idSetOf(r.Losses, func(l domain.Loss) string { return l.ID })
	hazardIDs := idSetOf(r.Hazards, func(h domain.Hazard) string { return h.ID })
	constraintIDs := idSetOf(r.Constraints, func(c domain.SecurityConstraint) string { return c.ID })

	var unresolved []string
	for _, m := range r.HazardLossMappings {
		if !hazardIDs[m.HazardID] {
			unresolved = append(unresolved, fmt.Sprintf("hazard_loss_mapping -> %s (hazard)", m.HazardID))
		}
		if !lossIDs[m.LossID] {
			unresolved = append(unresolved, fmt.Sprintf("hazard_loss_mapping -> %s (loss)", m.LossID))
		}
	}
	for _, m := range r.ConstraintHazardMappings {
		if !constraintIDs[m.ConstraintID] {
			unresolved = append(unresolved, fmt.Sprintf("constraint_hazard_mapping -> %s (constraint)", m.ConstraintID))
		}
		if !hazardIDs[m.HazardID] {
			unresolved = append(unresolved, fmt.Sprintf("constraint_hazard_mapping -> %s (hazard)", m.HazardID))
		}
	}
	for _, d := range r.LossDependencies {
		if !lossIDs[d.PrimaryLossID] {
			unresolved = append(unresolved, fmt.Sprintf("loss_dependency -> %s (primary)", d.PrimaryLossID))
		}
		if !lossIDs[d.DependentLossID] {
			unresolved = append(unresolved, fmt.Sprintf("loss_dependency -> %s (dependent)", d.DependentLossID))
		}
	}

	isComplete := len(missingMinimums) == 0 && len(missingFields) == 0 && len(unresolved) == 0 && r.Mission.Purpose != ""

	return domain.CompletenessCheck{
		IsComplete:      isComplete,
		Counts:          counts,
		MissingMinimums: missingMinimums,
		MissingFields:   missingFields,
		UnresolvedRefs:  unresolved,
	}
}

// checkStep2Completeness mirrors checkStep1Completeness for Step 2:
// presence of the control structure's required sub-fields plus
// resolution of every cited component identifier against r.Components
// (spec.md §4.7).
func checkStep2Completeness(r Step2Result) domain.CompletenessCheck {
	counts := map[string]int{
		"components":      len(r.Components),
		"control_actions": len(r.ControlActions),
		"feedback":        len(r.FeedbackMechanisms),
		"trust_boundaries": len(r.TrustBoundaries),
	}

	var missingFields []string
	for _, c := range r.Components {
		if c.Name == "" {
			missingFields = append(missingFields, fmt.Sprintf("%s.name", c.ID))
		}
	}
	contextedActions := make(map[string]bool, len(r.ControlContexts))
	for _, cc := range r.ControlContexts {
		contextedActions[cc.ControlActionID] = true
	}
	for _, a := range r.ControlActions {
		if !contextedActions[a.ID] {
			missingFields = append(missingFields, fmt.Sprintf("%s.control_context", a.ID))
		}
	}

	var unresolved []string
	componentIDs := idSetOf(r.Components, func(c domain.Component) string { return c.ID })
	for _, a := range r.ControlActions {
		if !componentIDs[a.ControllerID] {
			unresolved = append(unresolved, fmt.Sprintf("control_action %s -> %s (controller)", a.ID, a.ControllerID))
		}
		if !componentIDs[a.ControlledProcessID] {
			unresolved = append(unresolved, fmt.Sprintf("control_action %s -> %s (controlled_process)", a.ID, a.ControlledProcessID))
		}
	}
	for _, fb := range r.FeedbackMechanisms {
		if !componentIDs[fb.SourceProcessID] {
			unresolved = append(unresolved, fmt.Sprintf("feedback %s -> %s (source)", fb.ID, fb.SourceProcessID))
		}
		if !componentIDs[fb.TargetControllerID] {
			unresolved = append(unresolved, fmt.Sprintf("feedback %s -> %s (target)", fb.ID, fb.TargetControllerID))
		}
	}
	for _, tb := range r.TrustBoundaries {
		if !componentIDs[tb.ComponentAID] {
			unresolved = append(unresolved, fmt.Sprintf("trust_boundary %s -> %s (component_a)", tb.ID, tb.ComponentAID))
		}
		if !componentIDs[tb.ComponentBID] {
			unresolved = append(unresolved, fmt.Sprintf("trust_boundary %s -> %s (component_b)", tb.ID, tb.ComponentBID))
		}
	}
	for _, h := range r.Hierarchy {
		if !componentIDs[h.ParentID] {
			unresolved = append(unresolved, fmt.Sprintf("control_hierarchy %s -> %s (parent)", h.ParentID, h.ParentID))
		}
		if !componentIDs[h.ChildID] {
			unresolved = append(unresolved, fmt.Sprintf("control_hierarchy -> %s (child)", h.ChildID))
		}
	}

	isComplete := len(r.Components) > 0 && len(missingFields) == 0 && len(unresolved) == 0

	return domain.CompletenessCheck{
		IsComplete:      isComplete,
		Counts:          counts,
		MissingFields:   missingFields,
		UnresolvedRefs:  unresolved,
	}
}

func idSetOf[T any](items []T, id func(T) string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		out[id(item)] = true
	}
	return out
}

func sortedStringKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
