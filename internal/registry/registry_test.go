package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegister_UniqueIdentifiers(t *testing.T) {
	r := New()
	require.Equal(t, RegisterOK, r.Register("CTRL-1", KindController, "Controller 1", "", "control_structure_analyst", nil))
	require.Equal(t, RegisterOK, r.Register("CTRL-2", KindController, "Controller 2", "", "control_structure_analyst", nil))
	require.Equal(t, RegisterDuplicate, r.Register("CTRL-1", KindController, "Dup", "", "x", nil))

	report := r.Report()
	require.Equal(t, 2, report.Counts[KindController])
	require.Len(t, report.Errors, 1)
}

func TestAddReference_UndefinedTargetIsDropped(t *testing.T) {
	// S3 — control action cites CTRL-9/PROC-9 when only CTRL-1/PROC-1 exist.
	r := New()
	r.Register("CTRL-1", KindController, "Controller", "", "x", nil)
	r.Register("PROC-1", KindControlledProcess, "Process", "", "x", nil)

	result := r.AddReference("CTRL-9", "PROC-9")
	require.Equal(t, ReferenceUndefinedSource, result)

	report := r.Report()
	require.Contains(t, report.UndefinedReferences, "CTRL-9")
}

func TestAddReference_UndefinedTargetOnly(t *testing.T) {
	r := New()
	r.Register("CTRL-1", KindController, "Controller", "", "x", nil)

	result := r.AddReference("CTRL-1", "PROC-9")
	require.Equal(t, ReferenceUndefinedTarget, result)

	report := r.Report()
	require.Contains(t, report.UndefinedReferences, "PROC-9")
}

func TestAddReference_ValidReferenceClearsOrphanStatus(t *testing.T) {
	r := New()
	r.Register("CTRL-1", KindController, "Controller", "", "x", nil)
	r.Register("PROC-1", KindControlledProcess, "Process", "", "x", nil)

	require.Equal(t, ReferenceOK, r.AddReference("CTRL-1", "PROC-1"))

	report := r.Report()
	require.NotContains(t, report.OrphanComponents, "CTRL-1")
	require.NotContains(t, report.OrphanComponents, "PROC-1") // controlled processes never flagged as orphans
}

func TestReport_OrphanControllerWithNoReferences(t *testing.T) {
	r := New()
	r.Register("CTRL-1", KindController, "Lonely", "", "x", nil)

	report := r.Report()
	require.Contains(t, report.OrphanComponents, "CTRL-1")
}

func TestRegister_ConcurrentDistinctIDs(t *testing.T) {
	r := New()
	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("CTRL-%d", i), KindController, "c", "", "x", nil)
		}(i)
	}
	wg.Wait()

	report := r.Report()
	require.Equal(t, n, report.Counts[KindController])
}

func TestRegister_ConcurrentSameID(t *testing.T) {
	r := New()
	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			r.Register("CTRL-1", KindController, "c", "", "x", nil)
		}()
	}
	wg.Wait()

	report := r.Report()
	require.Equal(t, 1, report.Counts[KindController])
	require.Len(t, report.Errors, n-1)
}

func TestPromptContext_ListsRegisteredIdentifiers(t *testing.T) {
	r := New()
	r.Register("CTRL-1", KindController, "Payment Controller", "Handles settlement", "x", nil)

	ctx := r.PromptContext()
	require.Contains(t, ctx, "CTRL-1")
	require.Contains(t, ctx, "Payment Controller")
}
