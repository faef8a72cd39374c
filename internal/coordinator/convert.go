package coordinator

import (
	"github.com/stpasec/engine/internal/domain"
)

// Field extraction deliberately mirrors the manual type-assertion style
// already used across internal/agent/step1 and internal/agent/step2
// (e.g. step1/hazard.go's stringSlice) rather than a json-tagged
// unmarshal: domain structs carry no json tags since their field names
// don't match the snake_case keys an LLM emits, and the agents
// themselves already establish map[string]any as the wire shape
// between a phase and its synthesis/persistence step.

func str(v any) string {
	s, _ := v.(string)
	return s
}

func boolVal(v any) bool {
	b, _ := v.(bool)
	return b
}

func strSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, el := range raw {
		if s, ok := el.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func mapVal(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func toSeverity(v any) domain.Severity {
	m := mapVal(v)
	return domain.Severity{
		Magnitude:     str(m["magnitude"]),
		Scope:         str(m["scope"]),
		Duration:      str(m["duration"]),
		Reversibility: str(m["reversibility"]),
		Detection:     str(m["detection"]),
	}
}

func toMission(analysisID string, item map[string]any) domain.Mission {
	return domain.Mission{
		AnalysisID:       analysisID,
		Purpose:          str(item["purpose"]),
		Method:           str(item["method"]),
		Goals:            strSlice(item["goals"]),
		Domain:           str(item["domain"]),
		Criticality:      str(item["criticality"]),
		OperationalTempo: str(item["operational_tempo"]),
		KeyCapabilities:  strSlice(item["key_capabilities"]),
		Constraints:      strSlice(item["constraints"]),
		Assumptions:      strSlice(item["assumptions"]),
	}
}

func toLoss(analysisID string, item map[string]any) domain.Loss {
	return domain.Loss{
		ID:            str(item["id"]),
		AnalysisID:    analysisID,
		Description:   str(item["description"]),
		Category:      domain.LossCategory(str(item["category"])),
		Severity:      toSeverity(item["severity"]),
		MissionImpact: str(item["mission_impact"]),
		FoundByStyles: strSlice(item["found_by_styles"]),
		Confidence:    str(item["confidence"]),
	}
}

func toHazard(analysisID string, item map[string]any) domain.Hazard {
	return domain.Hazard{
		ID:                   str(item["id"]),
		AnalysisID:           analysisID,
		Description:          str(item["description"]),
		Category:             str(item["category"]),
		AffectedProperty:     str(item["affected_property"]),
		TemporalNature:       str(item["temporal_nature"]),
		EnvironmentalFactors: strSlice(item["environmental_factors"]),
		FoundByStyles:        strSlice(item["found_by_styles"]),
		Confidence:           str(item["confidence"]),
	}
}

// splitStakeholders separates a stakeholder_analyst phase's merged
// items by record_kind into Stakeholders and Adversaries.
func splitStakeholders(analysisID string, items []map[string]any) ([]domain.Stakeholder, []domain.Adversary) {
	var stakeholders []domain.Stakeholder
	var adversaries []domain.Adversary
	for _, item := range items {
		if str(item["record_kind"]) == "adversary" {
			adversaries = append(adversaries, domain.Adversary{
				ID:            str(item["id"]),
				AnalysisID:    analysisID,
				Name:          str(item["name"]),
				Class:         str(item["class"]),
				Profile:       str(item["profile"]),
				Targets:       strSlice(item["targets"]),
				FoundByStyles: strSlice(item["found_by_styles"]),
				Confidence:    str(item["confidence"]),
			})
			continue
		}
		stakeholders = append(stakeholders, domain.Stakeholder{
			ID:                 str(item["id"]),
			AnalysisID:         analysisID,
			Name:               str(item["name"]),
			Type:               str(item["type"]),
			MissionPerspective: str(item["mission_perspective"]),
			LossExposure:       strSlice(item["loss_exposure"]),
			Influence:          str(item["influence"]),
			Interest:           str(item["interest"]),
			FoundByStyles:      strSlice(item["found_by_styles"]),
			Confidence:         str(item["confidence"]),
		})
	}
	return stakeholders, adversaries
}

// stakeholderPrefix branches a merged stakeholder_analyst item's
// identifier prefix on its record_kind.
func stakeholderPrefix(item map[string]any) string {
	if str(item["record_kind"]) == "adversary" {
		return "ADV"
	}
	return "ST"
}

func toConstraint(analysisID string, item map[string]any) domain.SecurityConstraint {
	return domain.SecurityConstraint{
		ID:               str(item["id"]),
		AnalysisID:       analysisID,
		Statement:        str(item["statement"]),
		Type:             domain.ConstraintType(str(item["type"])),
		EnforcementLevel: str(item["enforcement_level"]),
		Rationale:        str(item["rationale"]),
		FoundByStyles:    strSlice(item["found_by_styles"]),
		Confidence:       str(item["confidence"]),
	}
}

func toBoundaryElements(v any) []domain.BoundaryElement {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]domain.BoundaryElement, 0, len(raw))
	for _, el := range raw {
		m := mapVal(el)
		out = append(out, domain.BoundaryElement{
			Name:     str(m["name"]),
			Position: domain.ElementPosition(str(m["position"])),
		})
	}
	return out
}

func toBoundary(analysisID string, item map[string]any) domain.SystemBoundary {
	return domain.SystemBoundary{
		ID:         str(item["id"]),
		AnalysisID: analysisID,
		Name:       str(item["name"]),
		Type:       domain.BoundaryType(str(item["type"])),
		Elements:   toBoundaryElements(item["elements"]),
	}
}

func toComponent(analysisID string, item map[string]any) domain.Component {
	return domain.Component{
		ID:               str(item["id"]),
		AnalysisID:       analysisID,
		Kind:             domain.ComponentKind(str(item["kind"])),
		Name:             str(item["name"]),
		Description:      str(item["description"]),
		AuthorityLevel:   str(item["authority_level"]),
		Criticality:      str(item["criticality"]),
		AbstractionLevel: str(item["abstraction_level"]),
		Source:           str(item["source"]),
		SensorOnly:       boolVal(item["sensor_only"]),
	}
}

func toControlAction(analysisID string, item map[string]any) domain.ControlAction {
	return domain.ControlAction{
		ID:                  str(item["id"]),
		AnalysisID:          analysisID,
		ControllerID:        str(item["controller_id"]),
		ControlledProcessID: str(item["controlled_process_id"]),
		Name:                str(item["name"]),
		Description:         str(item["description"]),
		ActionType:          str(item["action_type"]),
		AuthorityLevel:      str(item["authority_level"]),
		TimingRequirements:  str(item["timing_requirements"]),
		SecurityRelevance:   str(item["security_relevance"]),
	}
}

func toDecisionLogic(v any) domain.DecisionLogic {
	m := mapVal(v)
	return domain.DecisionLogic{
		Inputs:             strSlice(m["inputs"]),
		Criteria:           strSlice(m["criteria"]),
		Priority:           str(m["priority"]),
		ConflictResolution: str(m["conflict_resolution"]),
	}
}

// splitStateContext separates a state_context_analysis phase's merged
// items by record_kind.
func splitStateContext(analysisID string, items []map[string]any) ([]domain.ControlContext, []domain.OperationalMode, []domain.ModeTransition) {
	var contexts []domain.ControlContext
	var modes []domain.OperationalMode
	var transitions []domain.ModeTransition
	for _, item := range items {
		switch str(item["record_kind"]) {
		case "operational_mode":
			modes = append(modes, domain.OperationalMode{
				AnalysisID:  analysisID,
				Name:        str(item["name"]),
				Description: str(item["description"]),
			})
		case "mode_transition":
			transitions = append(transitions, domain.ModeTransition{
				AnalysisID: analysisID,
				FromMode:   str(item["from_mode"]),
				ToMode:     str(item["to_mode"]),
				Trigger:    str(item["trigger"]),
			})
		default:
			contexts = append(contexts, domain.ControlContext{
				AnalysisID:           analysisID,
				ControlActionID:      str(item["control_action_id"]),
				Triggers:             strSlice(item["triggers"]),
				Preconditions:        strSlice(item["preconditions"]),
				EnvironmentalFactors: strSlice(item["environmental_factors"]),
				Timing:               str(item["timing"]),
				DecisionLogic:        toDecisionLogic(item["decision_logic"]),
				ApplicableModes:      strSlice(item["applicable_modes"]),
			})
		}
	}
	return contexts, modes, transitions
}

// stateContextPrefix branches a merged state_context_analysis item's
// identifier prefix on its record_kind.
func stateContextPrefix(item map[string]any) string {
	switch str(item["record_kind"]) {
	case "operational_mode":
		return "MODE"
	case "mode_transition":
		return "TRANS"
	default:
		return "CTX"
	}
}

func toFeedback(analysisID string, item map[string]any) domain.FeedbackMechanism {
	return domain.FeedbackMechanism{
		ID:                 str(item["id"]),
		AnalysisID:         analysisID,
		SourceProcessID:    str(item["source_process_id"]),
		TargetControllerID: str(item["target_controller_id"]),
		InformationType:    str(item["information_type"]),
		Content:            str(item["content"]),
		Timing:             str(item["timing"]),
		Reliability:        str(item["reliability"]),
		SecurityRelevance:  str(item["security_relevance"]),
	}
}

func toTrustBoundary(analysisID string, item map[string]any) domain.TrustBoundary {
	return domain.TrustBoundary{
		ID:             str(item["id"]),
		AnalysisID:     analysisID,
		ComponentAID:   str(item["component_a_id"]),
		ComponentBID:   str(item["component_b_id"]),
		Type:           str(item["type"]),
		Direction:      str(item["direction"]),
		AuthMethod:     str(item["auth_method"]),
		DataProtection: str(item["data_protection"]),
	}
}

func toProcessModel(analysisID string, item map[string]any) domain.ProcessModel {
	return domain.ProcessModel{
		AnalysisID:          analysisID,
		ControllerID:        str(item["controller_id"]),
		StateVariables:      strSlice(item["state_variables"]),
		UpdateSources:       strSlice(item["update_sources"]),
		Frequency:           str(item["frequency"]),
		StalenessTolerance:  str(item["staleness_tolerance"]),
		Assumptions:         strSlice(item["assumptions"]),
		PotentialMismatches: strSlice(item["potential_mismatches"]),
	}
}
