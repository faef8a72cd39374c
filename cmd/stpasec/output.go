package main

import "encoding/json"

// marshalResult renders a Step1Result/Step2Result as the indented JSON
// spec.md §6.3 calls analysis-results.json.
func marshalResult(result any) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}
