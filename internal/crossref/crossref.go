// Package crossref implements the Cross-Reference Synthesizer (spec.md
// C9): after every Step 2 phase has run, join components, control
// actions, feedback, and trust boundaries into one coherent graph.
//
// Grounded on
// _examples/original_source/apps/backend/core/agents/step2_agents/synthesis_enhancement.py's
// Step 2 cross-component merge (components/actions keyed by identifier
// rather than fuzzy text match, since Step 2 identifiers are already
// registry-validated).
package crossref

import (
	"strings"

	"github.com/stpasec/engine/internal/domain"
)

// RiskLevel enumerates TrustBoundarySummary.RiskLevel values.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// highRiskTypes are the trust boundary types spec.md §4.9
// treats as automatically high-risk regardless of crossing count.
var highRiskTypes = map[string]bool{"network": true, "organizational": true}

// CriticalControlAction enriches a ControlAction with the boundaries it
// crosses and the feedback that closes its loop.
type CriticalControlAction struct {
	ActionID           string   `json:"action_id"`
	ControllerID       string   `json:"controller_id"`
	ControlledProcessID string  `json:"controlled_process_id"`
	CrossesBoundaries  []string `json:"crosses_boundaries"`
	FeedbackMechanisms []string `json:"feedback_mechanisms"`
	ClosedLoop         bool     `json:"closed_loop"`
}

// TrustBoundarySummary enriches a TrustBoundary with the control
// actions that cross it and a derived risk level.
type TrustBoundarySummary struct {
	BoundaryID     string    `json:"boundary_id"`
	CrossingActions []string `json:"crossing_actions"`
	RiskLevel      RiskLevel `json:"risk_level"`
}

// Relationship is one flattened edge in the component hierarchy view.
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"` // "hierarchy" | "control_action" | "feedback"
}

// ComponentHierarchy is the controller-centric view of the control
// structure graph.
type ComponentHierarchy struct {
	SendsCommandsTo     map[string][]string `json:"sends_commands_to"`
	ReceivesFeedbackFrom map[string][]string `json:"receives_feedback_from"`
	Relationships       []Relationship       `json:"relationships"`
}

// Summary is the cross_references count block.
type Summary struct {
	BoundaryCrossingActions int `json:"boundary_crossing_actions"`
	ClosedLoopActions       int `json:"closed_loop_actions"`
	HighRiskBoundaries      int `json:"high_risk_boundaries"`
}

// Result is the full enriched Step 2 synthesis (spec.md §4.9).
type Result struct {
	CriticalControlActions []CriticalControlAction `json:"critical_control_actions"`
	TrustBoundaries        []TrustBoundarySummary   `json:"trust_boundaries"`
	ComponentHierarchy     ComponentHierarchy       `json:"component_hierarchy"`
	CrossReferences        Summary                  `json:"cross_references"`
}

// endpoints returns the unordered pair of component ids a trust
// boundary or control action spans, for set-equality comparisons.
func endpoints(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// Synthesize joins every Step 2 artifact kind into the enriched graph.
func Synthesize(components []domain.Component, actions []domain.ControlAction, feedbacks []domain.FeedbackMechanism, boundaries []domain.TrustBoundary, hierarchy []domain.ControlHierarchy) Result {
	actionsByBoundary := make(map[string][]string, len(boundaries))
	boundaryByEndpoints := make(map[[2]string][]domain.TrustBoundary)
	for _, b := range boundaries {
		boundaryByEndpoints[endpoints(b.ComponentAID, b.ComponentBID)] = append(boundaryByEndpoints[endpoints(b.ComponentAID, b.ComponentBID)], b)
	}

	feedbackByPair := make(map[[2]string][]domain.FeedbackMechanism)
	for _, f := range feedbacks {
		feedbackByPair[[2]string{f.SourceProcessID, f.TargetControllerID}] = append(feedbackByPair[[2]string{f.SourceProcessID, f.TargetControllerID}], f)
	}

	var criticalActions []CriticalControlAction
	closedLoopCount := 0
	boundaryCrossingCount := 0

	for _, action := range actions {
		pair := endpoints(action.ControllerID, action.ControlledProcessID)
		var crossed []string
		for _, b := range boundaryByEndpoints[pair] {
			crossed = append(crossed, b.ID)
			actionsByBoundary[b.ID] = append(actionsByBoundary[b.ID], action.ID)
		}

		var feedbackIDs []string
		for _, f := range feedbackByPair[[2]string{action.ControlledProcessID, action.ControllerID}] {
			feedbackIDs = append(feedbackIDs, f.ID)
		}
		closedLoop := len(feedbackIDs) > 0

		critical := len(crossed) > 0 ||
			strings.EqualFold(action.SecurityRelevance, "high") ||
			strings.EqualFold(action.SecurityRelevance, "critical")
		if !critical {
			continue
		}

		if len(crossed) > 0 {
			boundaryCrossingCount++
		}
		if closedLoop {
			closedLoopCount++
		}

		criticalActions = append(criticalActions, CriticalControlAction{
			ActionID:            action.ID,
			ControllerID:        action.ControllerID,
			ControlledProcessID: action.ControlledProcessID,
			CrossesBoundaries:   crossed,
			FeedbackMechanisms:  feedbackIDs,
			ClosedLoop:          closedLoop,
		})
	}

	var boundarySummaries []TrustBoundarySummary
	highRiskCount := 0
	for _, b := range boundaries {
		crossing := actionsByBoundary[b.ID]
		risk := RiskLow
		switch {
		case len(crossing) > 3 || highRiskTypes[strings.ToLower(b.Type)]:
			risk = RiskHigh
		case len(crossing) > 0:
			risk = RiskMedium
		}
		if risk == RiskHigh {
			highRiskCount++
		}
		boundarySummaries = append(boundarySummaries, TrustBoundarySummary{
			BoundaryID:      b.ID,
			CrossingActions: crossing,
			RiskLevel:       risk,
		})
	}

	hierarchyView := ComponentHierarchy{
		SendsCommandsTo:      map[string][]string{},
		ReceivesFeedbackFrom: map[string][]string{},
	}
	for _, edge := range hierarchy {
		hierarchyView.Relationships = append(hierarchyView.Relationships, Relationship{From: edge.ParentID, To: edge.ChildID, Kind: "hierarchy"})
	}
	for _, action := range actions {
		hierarchyView.SendsCommandsTo[action.ControllerID] = appendUnique(hierarchyView.SendsCommandsTo[action.ControllerID], action.ControlledProcessID)
		hierarchyView.Relationships = append(hierarchyView.Relationships, Relationship{From: action.ControllerID, To: action.ControlledProcessID, Kind: "control_action"})
	}
	for _, f := range feedbacks {
		hierarchyView.ReceivesFeedbackFrom[f.TargetControllerID] = appendUnique(hierarchyView.ReceivesFeedbackFrom[f.TargetControllerID], f.SourceProcessID)
		hierarchyView.Relationships = append(hierarchyView.Relationships, Relationship{From: f.SourceProcessID, To: f.TargetControllerID, Kind: "feedback"})
	}

	return Result{
		CriticalControlActions: criticalActions,
		TrustBoundaries:        boundarySummaries,
		ComponentHierarchy:     hierarchyView,
		CrossReferences: Summary{
			BoundaryCrossingActions: boundaryCrossingCount,
			ClosedLoopActions:       closedLoopCount,
			HighRiskBoundaries:      highRiskCount,
		},
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
