package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stpasec/engine/internal/domain"
)

// ControlNeeds is the derived {integrity, confidentiality, availability,
// capability} demand signal Step 2's control structure agent reads
// before it proposes components (spec.md §4.10 "bridge").
type ControlNeeds struct {
	Integrity       int `json:"integrity"`
	Confidentiality int `json:"confidentiality"`
	Availability    int `json:"availability"`
	Capability      int `json:"capability"`
}

// ImpliedBoundary is a system_scope/trust boundary Step 2 should expect
// to see reflected in its own trust boundary artifacts, derived from a
// Step 1 SystemBoundary rather than invented fresh.
type ImpliedBoundary struct {
	SourceBoundaryID string `json:"source_boundary_id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
}

// Bridge is the Step1 -> Step2 handoff payload: everything the control
// structure agent's prompt needs beyond the raw artifact list itself.
type Bridge struct {
	ControlNeeds             ControlNeeds        `json:"control_needs"`
	ImpliedBoundaries        []ImpliedBoundary   `json:"implied_boundaries"`
	ConstraintsByType        map[string][]string `json:"constraints_by_type"`
	BoundaryControlRequirements []string         `json:"boundary_control_requirements"`
	TransitionGuidance       []string            `json:"transition_guidance"`
}

// buildBridge derives the Step 2 handoff from whatever Step 1 artifacts
// are present in in. Called unconditionally by Validate whenever a
// Step 1 shaped Input is seen; fields simply come back empty for
// artifact kinds that weren't supplied.
func buildBridge(in Input) Bridge {
	needs := ControlNeeds{}
	for _, h := range in.Hazards {
		switch strings.ToLower(h.Category) {
		case "integrity":
			needs.Integrity++
		case "confidentiality":
			needs.Confidentiality++
		case "availability":
			needs.Availability++
		case "capability":
			needs.Capability++
		}
	}

	var implied []ImpliedBoundary
	for _, b := range in.Boundaries {
		if b.Type == domain.BoundarySystemScope || b.Type == domain.BoundaryTrust {
			implied = append(implied, ImpliedBoundary{
				SourceBoundaryID: b.ID,
				Name:             b.Name,
				Type:             string(b.Type),
			})
		}
	}

	byType := map[string][]string{}
	for _, c := range in.Constraints {
		key := string(c.Type)
		byType[key] = append(byType[key], c.ID)
	}

	var boundaryReqs []string
	for _, b := range in.Boundaries {
		count := 0
		for _, el := range b.Elements {
			if el.Position == domain.PositionInterface || el.Position == domain.PositionCrossing {
				count++
			}
		}
		if count > 0 {
			boundaryReqs = append(boundaryReqs, fmt.Sprintf("boundary %s (%s) requires a trust boundary control at each of its %d interface/crossing element(s)", b.ID, b.Type, count))
		}
	}
	sort.Strings(boundaryReqs)

	guidance := transitionGuidance(in, needs)

	return Bridge{
		ControlNeeds:                needs,
		ImpliedBoundaries:           implied,
		ConstraintsByType:           byType,
		BoundaryControlRequirements: boundaryReqs,
		TransitionGuidance:          guidance,
	}
}

// transitionGuidance renders the control-needs counts and unaddressed
// hazards into prose lines meant to be spliced directly into the
// control structure agent's system prompt (spec.md §4.10: "transition
// guidance strings").
func transitionGuidance(in Input, needs ControlNeeds) []string {
	var lines []string
	if needs.Integrity > 0 {
		lines = append(lines, fmt.Sprintf("%d integrity hazard(s) identified: controllers touching affected data need explicit validation control actions.", needs.Integrity))
	}
	if needs.Confidentiality > 0 {
		lines = append(lines, fmt.Sprintf("%d confidentiality hazard(s) identified: model trust boundaries around any component handling the affected data.", needs.Confidentiality))
	}
	if needs.Availability > 0 {
		lines = append(lines, fmt.Sprintf("%d availability hazard(s) identified: controlled processes need a degraded-mode control action.", needs.Availability))
	}
	if needs.Capability > 0 {
		lines = append(lines, fmt.Sprintf("%d capability hazard(s) identified: consider whether a dual_role component concentrates authority unsafely.", needs.Capability))
	}

	addressed := map[string]bool{}
	for _, m := range in.ConstraintHazardMappings {
		addressed[m.HazardID] = true
	}
	var unaddressed []string
	for _, h := range in.Hazards {
		if !addressed[h.ID] {
			unaddressed = append(unaddressed, h.ID)
		}
	}
	sort.Strings(unaddressed)
	if len(unaddressed) > 0 {
		lines = append(lines, fmt.Sprintf("hazards with no Step 1 constraint (needs a Step 2 control action instead): %s", strings.Join(unaddressed, ", ")))
	}

	return lines
}
