package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stpasec/engine/internal/domain"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	gw, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func TestInsertAndFetchAnalysis(t *testing.T) {
	gw := openTestGateway(t)
	a := domain.Analysis{ID: "a1", Step: domain.Step1, Name: "test", CreatedAt: time.Now(), Status: domain.StatusRunning}
	require.NoError(t, gw.InsertAnalysis(a))

	got, err := gw.FetchAnalysis("a1")
	require.NoError(t, err)
	require.Equal(t, "test", got.Name)
	require.Equal(t, domain.StatusRunning, got.Status)
}

func TestFetchAnalysis_MissingIDIsPersistenceError(t *testing.T) {
	gw := openTestGateway(t)
	_, err := gw.FetchAnalysis("nope")
	require.Error(t, err)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
}

func TestFetchLatestStep1ForDB_PicksMostRecent(t *testing.T) {
	gw := openTestGateway(t)
	older := domain.Analysis{ID: "older", Step: domain.Step1, CreatedAt: time.Now().Add(-time.Hour)}
	newer := domain.Analysis{ID: "newer", Step: domain.Step1, CreatedAt: time.Now()}
	step2 := domain.Analysis{ID: "s2", Step: domain.Step2, CreatedAt: time.Now().Add(time.Hour)}
	require.NoError(t, gw.InsertAnalysis(older))
	require.NoError(t, gw.InsertAnalysis(newer))
	require.NoError(t, gw.InsertAnalysis(step2))

	got, err := gw.FetchLatestStep1ForDB()
	require.NoError(t, err)
	require.Equal(t, "newer", got.ID)
}

func TestFetchLatestStep1ForDB_NoneFoundIsError(t *testing.T) {
	gw := openTestGateway(t)
	_, err := gw.FetchLatestStep1ForDB()
	require.Error(t, err)
}

func TestPhaseTxn_CommitsAllArtifactsAtomically(t *testing.T) {
	gw := openTestGateway(t)
	txn := gw.BeginPhase()
	txn.InsertArtifact("a1", "loss", "L-1", domain.Loss{ID: "L-1", AnalysisID: "a1", Description: "first"})
	txn.InsertArtifact("a1", "loss", "L-2", domain.Loss{ID: "L-2", AnalysisID: "a1", Description: "second"})
	require.NoError(t, txn.Commit())

	losses, err := FetchArtifacts[domain.Loss](gw, "a1", "loss")
	require.NoError(t, err)
	require.Len(t, losses, 2)
}

// unmarshalable fails json.Marshal, simulating a mid-phase encode failure.
type unmarshalable struct {
	Fn func()
}

func TestPhaseTxn_MarshalFailureDiscardsWholeBatch(t *testing.T) {
	gw := openTestGateway(t)
	txn := gw.BeginPhase()
	txn.InsertArtifact("a1", "loss", "L-1", domain.Loss{ID: "L-1", AnalysisID: "a1"})
	txn.InsertArtifact("a1", "bad", "B-1", unmarshalable{Fn: func() {}})
	err := txn.Commit()
	require.Error(t, err)

	losses, err := FetchArtifacts[domain.Loss](gw, "a1", "loss")
	require.NoError(t, err)
	require.Empty(t, losses, "no partial writes should be visible after a failed phase commit")
}

func TestFetchMappings_DecodesAllOfKind(t *testing.T) {
	gw := openTestGateway(t)
	txn := gw.BeginPhase()
	txn.InsertMapping("a1", "hazard_loss", "H-1", "L-1", domain.HazardLossMapping{
		AnalysisID: "a1", HazardID: "H-1", LossID: "L-1", Relationship: domain.RelationshipDirect,
	})
	require.NoError(t, txn.Commit())

	mappings, err := FetchMappings[domain.HazardLossMapping](gw, "a1", "hazard_loss")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	require.Equal(t, domain.RelationshipDirect, mappings[0].Relationship)
}

func TestDecodeArtifact_RecoversIdentifierFromLegacyMetadata(t *testing.T) {
	legacy := []byte(`{"AnalysisID":"a1","Description":"legacy loss","metadata":{"identifier":"L-9"}}`)
	var l domain.Loss
	require.NoError(t, DecodeArtifact(legacy, &l))
	require.Equal(t, "L-9", l.ID)
	require.Equal(t, "legacy loss", l.Description)
}

func TestDecodeArtifact_CurrentSchemaUnaffected(t *testing.T) {
	current := []byte(`{"ID":"L-1","AnalysisID":"a1","Description":"current loss"}`)
	var l domain.Loss
	require.NoError(t, DecodeArtifact(current, &l))
	require.Equal(t, "L-1", l.ID)
}
