package crossref

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stpasec/engine/internal/domain"
)

func TestSynthesize_MarksBoundaryCrossingAsCritical(t *testing.T) {
	components := []domain.Component{
		{ID: "CTRL-1", Kind: domain.ComponentController, Name: "orchestrator"},
		{ID: "PROC-1", Kind: domain.ComponentControlledProcess, Name: "external-ledger"},
	}
	actions := []domain.ControlAction{
		{ID: "CA-1", ControllerID: "CTRL-1", ControlledProcessID: "PROC-1", Name: "settle"},
	}
	boundaries := []domain.TrustBoundary{
		{ID: "TB-1", ComponentAID: "CTRL-1", ComponentBID: "PROC-1", Type: "network"},
	}

	result := Synthesize(components, actions, nil, boundaries, nil)

	require.Len(t, result.CriticalControlActions, 1)
	require.Equal(t, []string{"TB-1"}, result.CriticalControlActions[0].CrossesBoundaries)
	require.False(t, result.CriticalControlActions[0].ClosedLoop)
	require.Len(t, result.TrustBoundaries, 1)
	require.Equal(t, RiskHigh, result.TrustBoundaries[0].RiskLevel) // network type forces high
	require.Equal(t, 1, result.CrossReferences.BoundaryCrossingActions)
}

func TestSynthesize_ClosedLoopViaFeedback(t *testing.T) {
	actions := []domain.ControlAction{
		{ID: "CA-1", ControllerID: "CTRL-1", ControlledProcessID: "PROC-1", SecurityRelevance: "high"},
	}
	feedbacks := []domain.FeedbackMechanism{
		{ID: "FB-1", SourceProcessID: "PROC-1", TargetControllerID: "CTRL-1"},
	}

	result := Synthesize(nil, actions, feedbacks, nil, nil)

	require.Len(t, result.CriticalControlActions, 1)
	require.True(t, result.CriticalControlActions[0].ClosedLoop)
	require.Equal(t, []string{"FB-1"}, result.CriticalControlActions[0].FeedbackMechanisms)
	require.Equal(t, 1, result.CrossReferences.ClosedLoopActions)
}

func TestSynthesize_NonCriticalActionOmitted(t *testing.T) {
	actions := []domain.ControlAction{
		{ID: "CA-1", ControllerID: "CTRL-1", ControlledProcessID: "PROC-1"},
	}
	result := Synthesize(nil, actions, nil, nil, nil)
	require.Empty(t, result.CriticalControlActions)
}

func TestSynthesize_ComponentHierarchyAggregatesEdges(t *testing.T) {
	actions := []domain.ControlAction{
		{ID: "CA-1", ControllerID: "CTRL-1", ControlledProcessID: "PROC-1"},
		{ID: "CA-2", ControllerID: "CTRL-1", ControlledProcessID: "PROC-1"},
	}
	hierarchy := []domain.ControlHierarchy{
		{ParentID: "CTRL-1", ChildID: "CTRL-2", Relationship: domain.HierarchySupervises},
	}

	result := Synthesize(nil, actions, nil, nil, hierarchy)

	require.Equal(t, []string{"PROC-1"}, result.ComponentHierarchy.SendsCommandsTo["CTRL-1"]) // deduped, not doubled
	require.Len(t, result.ComponentHierarchy.Relationships, 3)                                 // 1 hierarchy + 2 action edges
}

func TestSynthesize_BoundaryRiskByCrossingCount(t *testing.T) {
	actions := []domain.ControlAction{
		{ID: "CA-1", ControllerID: "CTRL-1", ControlledProcessID: "PROC-1"},
		{ID: "CA-2", ControllerID: "CTRL-1", ControlledProcessID: "PROC-1"},
	}
	boundaries := []domain.TrustBoundary{
		{ID: "TB-1", ComponentAID: "CTRL-1", ComponentBID: "PROC-1", Type: "organizational_unit"},
	}
	// Actions aren't security-relevant nor crossing yet flagged critical unless they cross;
	// they do cross TB-1, so both become critical and TB-1 sees two crossings -> medium (not >3, type doesn't match exactly).
	result := Synthesize(nil, actions, nil, boundaries, nil)
	require.Equal(t, RiskMedium, result.TrustBoundaries[0].RiskLevel)
}
