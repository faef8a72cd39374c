package jsonrepair

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_AlreadyValidJSON(t *testing.T) {
	v, err := Parse(`{"losses":[{"description":"x"}]}`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"losses": []any{map[string]any{"description": "x"}},
	}, v)
}

func TestParse_CodeFenceWrapped(t *testing.T) {
	text := "Here is the result: ```json\n{\"losses\":[{\"description\":\"x\",}]}\n``` trailing"
	v, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"losses": []any{map[string]any{"description": "x"}},
	}, v)
}

func TestParse_TrailingComma(t *testing.T) {
	v, err := Parse(`{"a": 1, "b": 2,}`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, v)
}

func TestParse_UnbalancedBrackets(t *testing.T) {
	v, err := Parse(`{"a": [1, 2, 3]`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": []any{1.0, 2.0, 3.0}}, v)
}

func TestParse_SingleQuotes(t *testing.T) {
	v, err := Parse(`{'a': 'hello world'}`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": "hello world"}, v)
}

func TestParse_PreservesQuotesInsideDoubleQuotedStrings(t *testing.T) {
	v, err := Parse(`{"a": "it's fine"}`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": "it's fine"}, v)
}

func TestParse_NoJSON(t *testing.T) {
	_, err := Parse("no json here at all")
	require.ErrorIs(t, err, ErrNoJSONFound)
}

func TestParse_UnrepairableGivesPreview(t *testing.T) {
	longGarbage := make([]byte, 600)
	for i := range longGarbage {
		longGarbage[i] = 'x'
	}
	text := "{" + string(longGarbage)
	_, err := Parse(text)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.LessOrEqual(t, len(pe.Preview), 500)
}

func TestParse_NeverGuessesMissingFields(t *testing.T) {
	// A dangling key with no value cannot be repaired without guessing;
	// repair must fail rather than invent a value.
	_, err := Parse(`{"a": 1, "b":`)
	require.Error(t, err)
}

func TestParseInto(t *testing.T) {
	type losses struct {
		Losses []struct {
			Description string `json:"description"`
		} `json:"losses"`
	}
	var dst losses
	err := ParseInto("```json\n{\"losses\":[{\"description\":\"x\"}]}\n```", &dst)
	require.NoError(t, err)
	require.Len(t, dst.Losses, 1)
	require.Equal(t, "x", dst.Losses[0].Description)
}
