package synthesis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMerge_CognitiveDeduplication mirrors spec.md scenario S2: intuitive
// finds one loss, technical finds the same loss plus a distinct one.
func TestMerge_CognitiveDeduplication(t *testing.T) {
	perStyle := map[string][]map[string]any{
		"intuitive": {
			{"category": "privacy", "description": "Unauthorized exposure of customer records"},
		},
		"technical": {
			{"category": "privacy", "description": "Unauthorized exposure of customer records"},
			{"category": "financial", "description": "Direct monetary theft via fraudulent transactions"},
		},
	}

	merged, meta := Merge("loss_identification", perStyle, "L")
	require.Len(t, merged, 2)
	require.Equal(t, 2, meta.TotalUnique)
	require.Equal(t, 1, meta.Consensus)

	privacy := merged[0]
	require.Equal(t, "privacy", privacy["category"])
	require.Equal(t, []string{"intuitive", "technical"}, privacy["found_by_styles"])
	require.Equal(t, ConfidenceVeryHigh, privacy["confidence"])
	require.Equal(t, "L-1", privacy["id"])

	financial := merged[1]
	require.Equal(t, "financial", financial["category"])
	require.Equal(t, []string{"technical"}, financial["found_by_styles"])
	require.Equal(t, ConfidenceHigh, financial["confidence"])
	require.Equal(t, "L-2", financial["id"])
}

func TestMerge_SingleStyleYieldsMediumConfidence(t *testing.T) {
	perStyle := map[string][]map[string]any{
		"balanced": {
			{"category": "mission", "description": "Loss of settlement capability"},
		},
	}
	merged, meta := Merge("loss_identification", perStyle, "L")
	require.Len(t, merged, 1)
	require.Equal(t, ConfidenceMedium, merged[0]["confidence"])
	require.Equal(t, 1, meta.StylesUsed)
}

// TestMerge_Idempotent covers testable property 4: merging {A} == A,
// merging {A, A} == A with found_by_styles counted once per distinct style.
func TestMerge_Idempotent(t *testing.T) {
	a := map[string]any{"category": "privacy", "description": "Unauthorized exposure of customer records"}

	single, _ := Merge("loss_identification", map[string][]map[string]any{"balanced": {a}}, "L")
	require.Len(t, single, 1)

	repeated, _ := Merge("loss_identification", map[string][]map[string]any{
		"balanced":  {a},
		"technical": {a},
	}, "L")
	require.Len(t, repeated, 1)
	require.Equal(t, []string{"balanced", "technical"}, repeated[0]["found_by_styles"])
}

func TestMerge_ConstraintMandatoryWins(t *testing.T) {
	perStyle := map[string][]map[string]any{
		"intuitive": {
			{"type": "preventive", "statement": "Limit settlement batch exposure", "enforcement_level": "recommended"},
		},
		"technical": {
			{"type": "preventive", "statement": "Limit settlement batch exposure", "enforcement_level": "mandatory"},
		},
	}
	merged, _ := Merge("security_constraints", perStyle, "SC")
	require.Len(t, merged, 1)
	require.Equal(t, "mandatory", merged[0]["enforcement_level"])
}

func TestMergeBoundaryElements_Dedup(t *testing.T) {
	a := []map[string]any{{"name": "payment-api", "position": "inside"}}
	b := []map[string]any{
		{"name": "payment-api", "position": "inside"},
		{"name": "settlement-bank", "position": "outside"},
	}
	merged := MergeBoundaryElements(a, b)
	require.Len(t, merged, 2)
}
