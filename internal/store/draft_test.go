package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stpasec/engine/internal/domain"
)

func seedLoss(t *testing.T, gw *Gateway, analysisID, id, description string) {
	t.Helper()
	txn := gw.BeginPhase()
	txn.InsertArtifact(analysisID, "loss", id, domain.Loss{ID: id, AnalysisID: analysisID, Description: description})
	require.NoError(t, txn.Commit())
}

func TestGetOrCreateDraft_ReusesWorkingDraft(t *testing.T) {
	gw := openTestGateway(t)
	d1, err := gw.GetOrCreateDraft("a1", "u1")
	require.NoError(t, err)
	d2, err := gw.GetOrCreateDraft("a1", "u1")
	require.NoError(t, err)
	require.Equal(t, d1.ID, d2.ID)
	require.Equal(t, DraftWorking, d2.State)
}

// TestDraftCommit_S4 exercises spec.md's S4 scenario: commit a draft
// editing L-2's description and verify the new version, the live row,
// draft state, and that the prior version's view is untouched.
func TestDraftCommit_S4(t *testing.T) {
	gw := openTestGateway(t)
	seedLoss(t, gw, "a1", "L-1", "first")
	seedLoss(t, gw, "a1", "L-2", "Original")

	_, err := gw.GetOrCreateDraft("a1", "u1")
	require.NoError(t, err)
	require.NoError(t, gw.AccumulateEdit("a1", "u1", "loss", "L-2", map[string]any{"Description": "Revised"}, false))

	version, err := gw.Commit("a1", "u1", "revise L-2", "u1")
	require.NoError(t, err)
	require.Equal(t, 1, version.VersionNumber)
	require.Len(t, version.UserModifications, 1)
	require.Contains(t, version.UserModifications[0].Diff, "Revised")

	losses, err := FetchArtifacts[domain.Loss](gw, "a1", "loss")
	require.NoError(t, err)
	var l2 domain.Loss
	for _, l := range losses {
		if l.ID == "L-2" {
			l2 = l
		}
	}
	require.Equal(t, "Revised", l2.Description)

	draft, err := gw.GetOrCreateDraft("a1", "u1")
	require.NoError(t, err)
	require.Equal(t, DraftWorking, draft.State, "a fresh GetOrCreateDraft after commit starts a new working draft")

	reread, err := gw.FetchVersion("a1", 1)
	require.NoError(t, err)
	require.Equal(t, "revise L-2", reread.CommitMessage)
}

func TestCommit_AlreadyCommittedDraftIsConflict(t *testing.T) {
	gw := openTestGateway(t)
	seedLoss(t, gw, "a1", "L-1", "first")
	_, err := gw.GetOrCreateDraft("a1", "u1")
	require.NoError(t, err)
	require.NoError(t, gw.AccumulateEdit("a1", "u1", "loss", "L-1", map[string]any{"Description": "changed"}, false))
	_, err = gw.Commit("a1", "u1", "first commit", "u1")
	require.NoError(t, err)

	_, err = gw.Commit("a1", "u1", "second commit", "u1")
	require.Error(t, err)
	var conflict *DraftConflict
	require.ErrorAs(t, err, &conflict)
}

func TestCommit_MissingArtifactLeavesNoEditsApplied(t *testing.T) {
	gw := openTestGateway(t)
	seedLoss(t, gw, "a1", "L-1", "first")
	_, err := gw.GetOrCreateDraft("a1", "u1")
	require.NoError(t, err)
	require.NoError(t, gw.AccumulateEdit("a1", "u1", "loss", "L-1", map[string]any{"Description": "ok"}, false))
	require.NoError(t, gw.AccumulateEdit("a1", "u1", "loss", "L-NONEXISTENT", map[string]any{"Description": "bad"}, false))

	_, err = gw.Commit("a1", "u1", "partial", "u1")
	require.Error(t, err, "committing an edit against a missing artifact should fail the whole commit")

	losses, err := FetchArtifacts[domain.Loss](gw, "a1", "loss")
	require.NoError(t, err)
	require.Len(t, losses, 1)
	require.Equal(t, "first", losses[0].Description, "L-1 must be untouched since the batch failed atomically")
}

func TestImpact_SeverityThresholds(t *testing.T) {
	gw := openTestGateway(t)
	txn := gw.BeginPhase()
	txn.InsertDependency("a1", "hazard", "H-1", []string{"SC-1"})
	txn.InsertDependency("a1", "hazard", "H-2", []string{"SC-1", "SC-2", "SC-3", "SC-4", "SC-5", "SC-6"})
	require.NoError(t, txn.Commit())

	low, err := gw.Impact("a1", "hazard", "H-nonexistent")
	require.NoError(t, err)
	require.Equal(t, ImpactLow, low.Severity)

	medium, err := gw.Impact("a1", "hazard", "H-1")
	require.NoError(t, err)
	require.Equal(t, ImpactMedium, medium.Severity)

	high, err := gw.Impact("a1", "hazard", "H-2")
	require.NoError(t, err)
	require.Equal(t, ImpactHigh, high.Severity)
}
