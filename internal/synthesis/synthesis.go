// Package synthesis implements Cognitive Synthesis (spec.md C8): merging
// the per-cognitive-style outputs of one agent type into a single
// deduplicated list, with provenance (found_by_styles/confidence) and a
// synthesis_metadata summary.
//
// Grounded on
// _examples/original_source/apps/backend/core/agents/step1_agents/step1_coordinator.py's
// _synthesize_loss_results/_synthesize_hazard_results/_synthesize_stakeholder_results
// identity-key merge (category + description-prefix dedup, found_by_styles
// accumulation), reshaped from one hand-written merge per artifact kind
// into a generic map[string]any merge over an ordered style sequence so
// the result is deterministic regardless of goroutine completion order.
package synthesis

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/stpasec/engine/internal/domain"
)

// Confidence enumerates the provenance confidence levels spec.md §4.8
// assigns a merged item.
const (
	ConfidenceVeryHigh = "very_high"
	ConfidenceHigh     = "high"
	ConfidenceMedium   = "medium"
)

// Metadata is the synthesis_metadata attached alongside merged output.
type Metadata struct {
	TotalUnique  int            `json:"total_unique"`
	Consensus    int            `json:"consensus_count"`
	StyleCounts  map[string]int `json:"style_contribution_counts"`
	StylesUsed   int            `json:"styles_used"`
}

// IdentityFunc derives the stable identity key an item merges on.
type IdentityFunc func(item map[string]any) string

// identityFuncs maps agent type to its identity key function (spec.md
// §4.8: "loss category + first 50 chars of description; hazard category
// + description prefix; stakeholder type + name").
var identityFuncs = map[string]IdentityFunc{
	"loss_identification":   catDescKey,
	"hazard_identification": catDescKey,
	"security_constraints":  typeStatementKey,
	"stakeholder_analyst":   stakeholderKey,
	"system_boundaries":     nameTypeKey,
	"mission_analyst":       constantKey,
	"control_structure_analyst": componentKey,
}

func componentKey(item map[string]any) string {
	return str(item["kind"]) + "|" + str(item["name"])
}

// unionFieldsByAgent names, per agent type, the list-valued fields that
// should be unioned (not merely fillMissing-ed) across style variants
// sharing an identity — e.g. a boundary's elements, where every
// cognitive style proposes its own (possibly overlapping) element set.
var unionFieldsByAgent = map[string][]string{
	"system_boundaries":   {"elements"},
	"stakeholder_analyst": {"loss_exposure", "targets"},
	"mission_analyst":     {"goals", "key_capabilities", "constraints", "assumptions"},
}

func constantKey(map[string]any) string { return "singleton" }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func catDescKey(item map[string]any) string {
	return fmt.Sprintf("%s|%s", str(item["category"]), truncate(str(item["description"]), 50))
}

func typeStatementKey(item map[string]any) string {
	return fmt.Sprintf("%s|%s", str(item["type"]), truncate(str(item["statement"]), 50))
}

func nameTypeKey(item map[string]any) string {
	return fmt.Sprintf("%s|%s", str(item["name"]), str(item["type"]))
}

func stakeholderKey(item map[string]any) string {
	if str(item["record_kind"]) == "adversary" {
		return "adversary|" + str(item["class"]) + "|" + str(item["name"])
	}
	return "stakeholder|" + str(item["type"]) + "|" + str(item["name"])
}

// fallbackKey is used for agent types with no registered identity
// function (Step 2 agents other than control_structure_analyst, whose
// items are already keyed by registry-checked identifiers rather than
// fuzzy text similarity): the whole item serializes to its own key, so
// only byte-identical items merge across styles and synthesis otherwise
// degrades to a simple append-and-renumber.
func fallbackKey(item map[string]any) string {
	raw, _ := json.Marshal(item)
	return string(raw)
}

func identityFor(agentType string) IdentityFunc {
	if f, ok := identityFuncs[agentType]; ok {
		return f
	}
	return fallbackKey
}

type mergedEntry struct {
	item         map[string]any
	foundBy      map[string]bool
	order        []string
	sawMandatory bool
}

// Merge combines perStyle's per-cognitive-style item lists for one
// agent type into a single ordered, deduplicated, identifier-reassigned
// list plus its synthesis metadata (spec.md §4.8, testable property 4:
// idempotent and order-independent).
//
// perStyle must include every style the phase actually invoked, even
// ones that produced zero items, since stylesUsed (used for confidence
// grading) is len(perStyle).
func Merge(agentType string, perStyle map[string][]map[string]any, prefix string) ([]map[string]any, Metadata) {
	return MergeWithPrefixFunc(agentType, perStyle, func(map[string]any) string { return prefix })
}

// MergeWithPrefixFunc is Merge's counterpart for agent types whose
// merged items need different identifier prefixes depending on their
// own content — e.g. Step 2 components, where a controller gets a
// "CTRL-" id and a controlled process gets a "PROC-" id even though
// both come out of the same control_structure_analyst phase. Each
// distinct prefix gets its own monotonic counter.
func MergeWithPrefixFunc(agentType string, perStyle map[string][]map[string]any, prefixFor func(item map[string]any) string) ([]map[string]any, Metadata) {
	identity := identityFor(agentType)
	unionFields := unionFieldsByAgent[agentType]

	styles := make([]string, 0, len(perStyle))
	for s := range perStyle {
		styles = append(styles, s)
	}
	sort.Strings(styles)

	byKey := make(map[string]*mergedEntry)
	var keyOrder []string
	styleCounts := make(map[string]int, len(styles))

	for _, style := range styles {
		items := perStyle[style]
		styleCounts[style] = len(items)
		for _, item := range items {
			key := identity(item)
			entry, exists := byKey[key]
			if !exists {
				entry = &mergedEntry{item: cloneMap(item), foundBy: map[string]bool{}}
				byKey[key] = entry
				keyOrder = append(keyOrder, key)
			} else {
				fillMissing(entry.item, item, unionFields)
			}
			entry.foundBy[style] = true
			if !contains(entry.order, style) {
				entry.order = append(entry.order, style)
			}
			if str(item["enforcement_level"]) == "mandatory" {
				entry.sawMandatory = true
			}
		}
	}

	allocators := make(map[string]*domain.IDAllocator)
	merged := make([]map[string]any, 0, len(keyOrder))
	consensus := 0
	for _, key := range keyOrder {
		entry := byKey[key]
		foundBy := append([]string(nil), entry.order...)
		sort.Strings(foundBy)

		item := entry.item
		item["found_by_styles"] = foundBy
		if len(foundBy) >= 2 {
			item["confidence"] = ConfidenceVeryHigh
			consensus++
		} else if len(perStyle) > 1 {
			item["confidence"] = ConfidenceHigh
		} else {
			item["confidence"] = ConfidenceMedium
		}
		if entry.sawMandatory {
			item["enforcement_level"] = "mandatory"
		}
		prefix := prefixFor(item)
		alloc, ok := allocators[prefix]
		if !ok {
			alloc = domain.NewIDAllocator(prefix)
			allocators[prefix] = alloc
		}
		item["id"] = alloc.Next()
		merged = append(merged, item)
	}

	meta := Metadata{
		TotalUnique: len(merged),
		Consensus:   consensus,
		StyleCounts: styleCounts,
		StylesUsed:  len(perStyle),
	}
	return merged, meta
}

// MergeBoundaryElements unions a SystemBoundary's elements by
// (name, position) across every style variant sharing the boundary's
// identity, de-duplicating exact repeats (spec.md §4.8 item 5).
func MergeBoundaryElements(variants ...[]map[string]any) []map[string]any {
	seen := make(map[string]bool)
	var out []map[string]any
	for _, elements := range variants {
		for _, el := range elements {
			key := str(el["name"]) + "|" + str(el["position"])
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, el)
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// fillMissing copies fields present in src but absent or empty in dst,
// implementing spec.md's "union lists where items differ only in
// optional fields". Fields named in unionFields are combined (deduped)
// instead of fillMissing-ed, for list-valued fields every style
// variant contributes to independently (e.g. boundary elements).
func fillMissing(dst, src map[string]any, unionFields []string) {
	union := make(map[string]bool, len(unionFields))
	for _, f := range unionFields {
		union[f] = true
	}
	for k, v := range src {
		if union[k] {
			dst[k] = unionValues(dst[k], v)
			continue
		}
		existing, ok := dst[k]
		if !ok || isEmptyValue(existing) {
			dst[k] = v
		}
	}
}

// unionValues combines two list-valued fields, deduplicating elements
// by their JSON encoding while preserving first-seen order.
func unionValues(existing, incoming any) any {
	if existing == nil {
		return incoming
	}
	existingList, ok := existing.([]any)
	if !ok {
		return existing
	}
	incomingList, ok := incoming.([]any)
	if !ok {
		return existing
	}
	seen := make(map[string]bool, len(existingList))
	out := append([]any(nil), existingList...)
	for _, v := range existingList {
		raw, _ := json.Marshal(v)
		seen[string(raw)] = true
	}
	for _, v := range incomingList {
		raw, _ := json.Marshal(v)
		if seen[string(raw)] {
			continue
		}
		seen[string(raw)] = true
		out = append(out, v)
	}
	return out
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
