package coordinator

import (
	"encoding/json"
	"time"

	"github.com/stpasec/engine/internal/domain"
)

// LoadStep1Demo re-populates the store from a previously persisted
// Step1Result (spec.md §6.2 `demo --name <id>`, §9 Open Questions: a
// loaded analysis is treated as a committed version with
// version_type='loaded' rather than run through the live coordinator).
func (c *Coordinator) LoadStep1Demo(analysisID, name, description string, r Step1Result, stateSnapshot json.RawMessage) error {
	analysis := domain.Analysis{
		ID:           analysisID,
		Step:         domain.Step1,
		Name:         name,
		Description:  description,
		CreatedAt:    time.Now(),
		Status:       domain.StatusComplete,
		QualityScore: r.Validation.OverallScore,
		VersionType:  "loaded",
	}
	completeness := r.Completeness
	analysis.Completeness = &completeness
	if err := c.gw.InsertAnalysis(analysis); err != nil {
		return err
	}

	if err := c.gw.InsertArtifact(analysisID, "mission_analyst", analysisID, r.Mission); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "loss_identification", r.Losses, func(l domain.Loss) string { return l.ID }); err != nil {
		return err
	}
	if err := commitMappings(c, analysisID, "loss_dependency", r.LossDependencies,
		func(d domain.LossDependency) string { return d.PrimaryLossID },
		func(d domain.LossDependency) string { return d.DependentLossID }); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "hazard_identification", r.Hazards, func(h domain.Hazard) string { return h.ID }); err != nil {
		return err
	}
	if err := commitMappings(c, analysisID, "hazard_loss_mapping", r.HazardLossMappings,
		func(m domain.HazardLossMapping) string { return m.HazardID },
		func(m domain.HazardLossMapping) string { return m.LossID }); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "stakeholder_analyst", r.Stakeholders, func(s domain.Stakeholder) string { return s.ID }); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "adversary", r.Adversaries, func(a domain.Adversary) string { return a.ID }); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "security_constraints", r.Constraints, func(sc domain.SecurityConstraint) string { return sc.ID }); err != nil {
		return err
	}
	if err := commitMappings(c, analysisID, "constraint_hazard_mapping", r.ConstraintHazardMappings,
		func(m domain.ConstraintHazardMapping) string { return m.ConstraintID },
		func(m domain.ConstraintHazardMapping) string { return m.HazardID }); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "system_boundaries", r.Boundaries, func(b domain.SystemBoundary) string { return b.ID }); err != nil {
		return err
	}
	if err := c.gw.InsertArtifact(analysisID, "validation_report", analysisID, r.Validation); err != nil {
		return err
	}
	if err := c.gw.InsertArtifact(analysisID, "completeness_check", analysisID, r.Completeness); err != nil {
		return err
	}

	_, err := c.gw.InsertLoadedVersion(analysisID, "demo", stateSnapshot)
	return err
}

// LoadStep2Demo is LoadStep1Demo's Step 2 counterpart.
func (c *Coordinator) LoadStep2Demo(analysisID, parentAnalysisID, name, description string, r Step2Result, stateSnapshot json.RawMessage) error {
	analysis := domain.Analysis{
		ID:           analysisID,
		Step:         domain.Step2,
		Name:         name,
		Description:  description,
		CreatedAt:    time.Now(),
		Status:       domain.StatusComplete,
		QualityScore: r.Validation.OverallScore,
		ParentID:     parentAnalysisID,
		VersionType:  "loaded",
	}
	completeness := r.Completeness
	analysis.Completeness = &completeness
	if err := c.gw.InsertAnalysis(analysis); err != nil {
		return err
	}

	if err := commitArtifacts(c, analysisID, "control_structure_analyst", r.Components, func(cm domain.Component) string { return cm.ID }); err != nil {
		return err
	}
	if err := commitMappings(c, analysisID, "control_hierarchy", r.Hierarchy,
		func(h domain.ControlHierarchy) string { return h.ParentID },
		func(h domain.ControlHierarchy) string { return h.ChildID }); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "control_action_mapping", r.ControlActions, func(a domain.ControlAction) string { return a.ID }); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "control_context", r.ControlContexts, func(cc domain.ControlContext) string { return cc.ControlActionID }); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "operational_mode", r.OperationalModes, func(m domain.OperationalMode) string { return m.Name }); err != nil {
		return err
	}
	if err := commitMappings(c, analysisID, "mode_transition", r.ModeTransitions,
		func(t domain.ModeTransition) string { return t.FromMode },
		func(t domain.ModeTransition) string { return t.ToMode }); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "feedback_mechanism", r.FeedbackMechanisms, func(f domain.FeedbackMechanism) string { return f.ID }); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "trust_boundary", r.TrustBoundaries, func(t domain.TrustBoundary) string { return t.ID }); err != nil {
		return err
	}
	if err := commitArtifacts(c, analysisID, "process_model_analyst", r.ProcessModels, func(p domain.ProcessModel) string { return p.ControllerID }); err != nil {
		return err
	}
	if err := c.gw.InsertArtifact(analysisID, "cross_reference", analysisID, r.CrossReference); err != nil {
		return err
	}
	if err := c.gw.InsertArtifact(analysisID, "validation_report", analysisID, r.Validation); err != nil {
		return err
	}
	if err := c.gw.InsertArtifact(analysisID, "completeness_check", analysisID, r.Completeness); err != nil {
		return err
	}

	_, err := c.gw.InsertLoadedVersion(analysisID, "demo", stateSnapshot)
	return err
}
