package agent

import (
	"encoding/json"
	"fmt"

	"github.com/stpasec/engine/internal/llmadapter"
)

// ItemSchema builds a llmadapter.Schema for an agent that emits a JSON
// array of objects, each checked against validateItem. Agents don't
// carry a JSON-Schema document; Validate is a plain structural check run
// uniformly by the adapter on both the schema-constrained and the
// repair-fallback path.
func ItemSchema(name string, requiredFields ...string) llmadapter.Schema {
	return llmadapter.Schema{
		Name: name,
		Validate: func(raw []byte) error {
			items, err := ParseItems(raw)
			if err != nil {
				return err
			}
			for i, item := range items {
				for _, field := range requiredFields {
					if _, ok := item[field]; !ok {
						return fmt.Errorf("%s: item %d missing required field %q", name, i, field)
					}
				}
			}
			return nil
		},
	}
}

// ParseItems decodes raw as a JSON array of objects, the shape every
// Step 1/Step 2 agent's structured output takes.
func ParseItems(raw []byte) ([]map[string]any, error) {
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("agent: decoding items array: %w", err)
	}
	return items, nil
}
