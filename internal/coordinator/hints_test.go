package coordinator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnrichSystemDescription_AddsMatchingHints(t *testing.T) {
	out := enrichSystemDescription("A platform that settles customer payments under regulatory oversight.")
	require.True(t, strings.HasPrefix(out, "domain hint: payments/financial processing; criticality hint: regulatory oversight\n\n"))
	require.True(t, strings.HasSuffix(out, "A platform that settles customer payments under regulatory oversight."))
}

func TestEnrichSystemDescription_NoMatchReturnsUnchanged(t *testing.T) {
	desc := "A system that schedules internal meetings."
	require.Equal(t, desc, enrichSystemDescription(desc))
}

func TestEnrichSystemDescription_DeduplicatesSynonymousKeywords(t *testing.T) {
	out := enrichSystemDescription("A payment and financial settlement platform.")
	require.Equal(t, 1, strings.Count(out, "domain hint: payments/financial processing"))
}
