package coordinator

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stpasec/engine/internal/agent"
	"github.com/stpasec/engine/internal/agent/step2"
	"github.com/stpasec/engine/internal/crossref"
	"github.com/stpasec/engine/internal/domain"
	"github.com/stpasec/engine/internal/events"
	"github.com/stpasec/engine/internal/registry"
	"github.com/stpasec/engine/internal/validator"
)

// Step2Result is the full output of a Step 2 run (spec.md §3, §4.9, §4.10).
type Step2Result struct {
	AnalysisID        string
	ParentAnalysisID  string
	Components        []domain.Component
	Hierarchy         []domain.ControlHierarchy
	ControlActions    []domain.ControlAction
	ControlContexts   []domain.ControlContext
	OperationalModes  []domain.OperationalMode
	ModeTransitions   []domain.ModeTransition
	FeedbackMechanisms []domain.FeedbackMechanism
	TrustBoundaries   []domain.TrustBoundary
	ProcessModels     []domain.ProcessModel
	CrossReference    crossref.Result
	Validation        validator.Report
	Completeness      domain.CompletenessCheck
	Errors            []error
}

// RunStep2 executes the Step 2 phase graph: control_structure ->
// control_action_mapping -> state_context_analysis ->
// {feedback_mechanism || trust_boundary} -> process_model_analyst,
// sharing one registry.Registry across every phase (spec.md C5, §4.5).
func (c *Coordinator) RunStep2(ctx context.Context, analysisID, parentAnalysisID, name, description, systemDescription string) (Step2Result, error) {
	ctx, span := tracer.Start(ctx, "coordinator.RunStep2", oteltrace.WithAttributes(
		attribute.String("analysis_id", analysisID),
		attribute.String("parent_analysis_id", parentAnalysisID),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.coordinatorTimeout)
	defer cancel()

	analysis := domain.Analysis{
		ID:          analysisID,
		Step:        domain.Step2,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
		Status:      domain.StatusRunning,
		ParentID:    parentAnalysisID,
	}
	if err := c.gw.InsertAnalysis(analysis); err != nil {
		return Step2Result{}, err
	}

	result := Step2Result{AnalysisID: analysisID, ParentAnalysisID: parentAnalysisID}
	fail := func(err error) (Step2Result, error) {
		analysis.Status = domain.StatusError
		_ = c.gw.UpdateAnalysis(analysis)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	reg := registry.New()

	balanced := func() *agent.RunContext {
		return &agent.RunContext{AnalysisID: analysisID, Step: domain.Step2, SystemDescription: systemDescription, Style: agent.StyleBalanced, Registry: reg, Gateway: c.gw}
	}

	// --- control structure (components) ---
	structureAgentConcrete := step2.NewControlStructureAnalyst(c.llm)
	structureOutcome, err := c.runPhase(ctx, phaseRequest{
		phaseName: "control_structure", analysisID: analysisID, step: domain.Step2,
		systemDesc: systemDescription, registry: reg, prefixForItem: step2.ComponentPrefix, agent: structureAgentConcrete,
	})
	if err != nil && !nonFatal(err) {
		return fail(err)
	}
	result.Errors = append(result.Errors, structureOutcome.Errors...)
	for _, item := range structureOutcome.Items {
		component := toComponent(analysisID, item)
		result.Components = append(result.Components, component)
		reg.Register(component.ID, registry.Kind(component.Kind), component.Name, component.Description, component.Source, nil)
	}
	if err := commitArtifacts(c, analysisID, "control_structure_analyst", result.Components, func(cm domain.Component) string { return cm.ID }); err != nil {
		return fail(err)
	}

	hierarchy, err := structureAgentConcrete.InferHierarchy(ctx, balanced(), result.Components, reg)
	if err != nil {
		result.Errors = append(result.Errors, err)
	}
	result.Hierarchy = hierarchy
	if err := commitMappings(c, analysisID, "control_hierarchy", result.Hierarchy,
		func(h domain.ControlHierarchy) string { return h.ParentID },
		func(h domain.ControlHierarchy) string { return h.ChildID }); err != nil {
		return fail(err)
	}

	// --- control action mapping ---
	actionAgentConcrete := step2.NewControlActionAnalyst(c.llm)
	actionOutcome, err := c.runPhase(ctx, phaseRequest{
		phaseName: "control_action_mapping", analysisID: analysisID, step: domain.Step2,
		systemDesc: systemDescription, registry: reg, prefixForItem: constPrefix("CA"), agent: actionAgentConcrete,
	})
	if err != nil && !nonFatal(err) {
		return fail(err)
	}
	result.Errors = append(result.Errors, actionOutcome.Errors...)
	for _, item := range actionOutcome.Items {
		result.ControlActions = append(result.ControlActions, toControlAction(analysisID, item))
	}
	if err := commitArtifacts(c, analysisID, "control_action_mapping", result.ControlActions, func(a domain.ControlAction) string { return a.ID }); err != nil {
		return fail(err)
	}

	// --- state/context analysis (reads control_action_mapping back via PriorResults) ---
	contextAgentConcrete := step2.NewStateContextAnalyst(c.llm)
	contextOutcome, err := c.runPhase(ctx, phaseRequest{
		phaseName: "state_context_analysis", analysisID: analysisID, step: domain.Step2,
		systemDesc: systemDescription, registry: reg, prefixForItem: stateContextPrefix, agent: contextAgentConcrete,
	})
	if err != nil && !nonFatal(err) {
		return fail(err)
	}
	result.Errors = append(result.Errors, contextOutcome.Errors...)
	result.ControlContexts, result.OperationalModes, result.ModeTransitions = splitStateContext(analysisID, contextOutcome.Items)
	if err := commitArtifacts(c, analysisID, "control_context", result.ControlContexts, func(cc domain.ControlContext) string { return cc.ControlActionID }); err != nil {
		return fail(err)
	}
	if err := commitArtifacts(c, analysisID, "operational_mode", result.OperationalModes, func(m domain.OperationalMode) string { return m.Name }); err != nil {
		return fail(err)
	}
	if err := commitMappings(c, analysisID, "mode_transition", result.ModeTransitions,
		func(t domain.ModeTransition) string { return t.FromMode },
		func(t domain.ModeTransition) string { return t.ToMode }); err != nil {
		return fail(err)
	}

	// --- feedback_mechanism || trust_boundary, parallel phases ---
	feedbackAgentConcrete := step2.NewFeedbackAnalyst(c.llm)
	trustAgentConcrete := step2.NewTrustBoundaryAnalyst(c.llm)

	var feedbackOutcome, trustOutcome phaseOutcome
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		feedbackOutcome, err = c.runPhase(gCtx, phaseRequest{
			phaseName: "feedback_mechanism", analysisID: analysisID, step: domain.Step2,
			systemDesc: systemDescription, registry: reg, prefixForItem: constPrefix("FB"), agent: feedbackAgentConcrete,
		})
		if nonFatal(err) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		var err error
		trustOutcome, err = c.runPhase(gCtx, phaseRequest{
			phaseName: "trust_boundary", analysisID: analysisID, step: domain.Step2,
			systemDesc: systemDescription, registry: reg, prefixForItem: constPrefix("TB"), agent: trustAgentConcrete,
		})
		if nonFatal(err) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(err)
	}
	result.Errors = append(result.Errors, feedbackOutcome.Errors...)
	result.Errors = append(result.Errors, trustOutcome.Errors...)

	for _, item := range feedbackOutcome.Items {
		result.FeedbackMechanisms = append(result.FeedbackMechanisms, toFeedback(analysisID, item))
	}
	if err := commitArtifacts(c, analysisID, "feedback_mechanism", result.FeedbackMechanisms, func(f domain.FeedbackMechanism) string { return f.ID }); err != nil {
		return fail(err)
	}
	for _, item := range trustOutcome.Items {
		result.TrustBoundaries = append(result.TrustBoundaries, toTrustBoundary(analysisID, item))
	}
	if err := commitArtifacts(c, analysisID, "trust_boundary", result.TrustBoundaries, func(t domain.TrustBoundary) string { return t.ID }); err != nil {
		return fail(err)
	}

	// --- process model ---
	processAgentConcrete := step2.NewProcessModelAnalyst(c.llm)
	processOutcome, err := c.runPhase(ctx, phaseRequest{
		phaseName: "process_model_analyst", analysisID: analysisID, step: domain.Step2,
		systemDesc: systemDescription, registry: reg, prefixForItem: constPrefix("PM"), agent: processAgentConcrete,
	})
	if err != nil && !nonFatal(err) {
		return fail(err)
	}
	result.Errors = append(result.Errors, processOutcome.Errors...)
	for _, item := range processOutcome.Items {
		result.ProcessModels = append(result.ProcessModels, toProcessModel(analysisID, item))
	}
	if err := commitArtifacts(c, analysisID, "process_model_analyst", result.ProcessModels, func(p domain.ProcessModel) string { return p.ControllerID }); err != nil {
		return fail(err)
	}

	// --- cross-reference synthesis (spec.md C9) ---
	result.CrossReference = crossref.Synthesize(result.Components, result.ControlActions, result.FeedbackMechanisms, result.TrustBoundaries, result.Hierarchy)
	if err := c.gw.InsertArtifact(analysisID, "cross_reference", analysisID, result.CrossReference); err != nil {
		return fail(err)
	}

	// --- validation ---
	var agentFailures []string
	for _, e := range result.Errors {
		var ae *AgentError
		if errors.As(e, &ae) {
			agentFailures = append(agentFailures, ae.AgentType)
		}
	}
	regReport := reg.Report()
	result.Validation = validator.Validate(validator.Input{
		Components:      result.Components,
		ControlActions:  result.ControlActions,
		ControlContexts: result.ControlContexts,
		Hierarchy:       result.Hierarchy,
		RegistryReport:  &regReport,
		AgentFailures:   agentFailures,
	})
	if err := c.gw.InsertArtifact(analysisID, "validation_report", analysisID, result.Validation); err != nil {
		return fail(err)
	}

	completeness := checkStep2Completeness(result)
	result.Completeness = completeness
	if err := c.gw.InsertArtifact(analysisID, "completeness_check", analysisID, completeness); err != nil {
		return fail(err)
	}

	analysis.Status = domain.StatusComplete
	analysis.QualityScore = result.Validation.OverallScore
	analysis.Completeness = &completeness
	if err := c.gw.UpdateAnalysis(analysis); err != nil {
		return fail(err)
	}

	c.publish("validation", "validator", events.StatusCompleted, string(result.Validation.OverallStatus))
	span.SetStatus(codes.Ok, "")
	return result, nil
}
