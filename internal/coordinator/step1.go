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
	"github.com/stpasec/engine/internal/agent/step1"
	"github.com/stpasec/engine/internal/domain"
	"github.com/stpasec/engine/internal/events"
	"github.com/stpasec/engine/internal/validator"
)

// Step1Result is the full output of a Step 1 run (spec.md §3, §4.10).
type Step1Result struct {
	AnalysisID               string
	Mission                  domain.Mission
	Losses                   []domain.Loss
	LossDependencies         []domain.LossDependency
	Hazards                  []domain.Hazard
	HazardLossMappings       []domain.HazardLossMapping
	Stakeholders             []domain.Stakeholder
	Adversaries              []domain.Adversary
	Constraints              []domain.SecurityConstraint
	ConstraintHazardMappings []domain.ConstraintHazardMapping
	Boundaries               []domain.SystemBoundary
	Validation               validator.Report
	Completeness             domain.CompletenessCheck
	Errors                   []error
}

// RunStep1 executes the Step 1 phase graph: mission -> loss ->
// {hazard || stakeholder} -> security_constraints -> system_boundaries
// -> validation (spec.md §3 Non-goals note Step 1 has no Component
// Registry; none of these phases take one).
func (c *Coordinator) RunStep1(ctx context.Context, analysisID, name, description, systemDescription string) (Step1Result, error) {
	ctx, span := tracer.Start(ctx, "coordinator.RunStep1", oteltrace.WithAttributes(
		attribute.String("analysis_id", analysisID),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.coordinatorTimeout)
	defer cancel()

	analysis := domain.Analysis{
		ID:          analysisID,
		Step:        domain.Step1,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
		Status:      domain.StatusRunning,
	}
	if err := c.gw.InsertAnalysis(analysis); err != nil {
		return Step1Result{}, err
	}

	result := Step1Result{AnalysisID: analysisID}
	fail := func(err error) (Step1Result, error) {
		analysis.Status = domain.StatusError
		_ = c.gw.UpdateAnalysis(analysis)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	// Surface domain/criticality hints to every phase's prompt before
	// the mission analyst runs (see hints.go).
	systemDescription = enrichSystemDescription(systemDescription)

	balanced := func() *agent.RunContext {
		return &agent.RunContext{AnalysisID: analysisID, Step: domain.Step1, SystemDescription: systemDescription, Style: agent.StyleBalanced, Gateway: c.gw}
	}

	// --- mission ---
	missionAgent := step1.NewMissionAnalyst(c.llm)
	missionOutcome, err := c.runPhase(ctx, phaseRequest{
		phaseName: "mission", analysisID: analysisID, step: domain.Step1,
		systemDesc: systemDescription, prefixForItem: constPrefix("MISSION"), agent: missionAgent,
	})
	if err != nil && !nonFatal(err) {
		return fail(err)
	}
	result.Errors = append(result.Errors, missionOutcome.Errors...)
	if len(missionOutcome.Items) > 0 {
		result.Mission = toMission(analysisID, missionOutcome.Items[0])
	}
	if err := c.gw.InsertArtifact(analysisID, "mission_analyst", analysisID, result.Mission); err != nil {
		return fail(err)
	}

	// --- loss ---
	lossAgentConcrete := step1.NewLossAnalyst(c.llm)
	lossOutcome, err := c.runPhase(ctx, phaseRequest{
		phaseName: "loss", analysisID: analysisID, step: domain.Step1,
		systemDesc: systemDescription, enhancedPair: []agent.Style{agent.StyleIntuitive, agent.StyleTechnical},
		prefixForItem: constPrefix("L"), agent: lossAgentConcrete,
	})
	if err != nil && !nonFatal(err) {
		return fail(err)
	}
	result.Errors = append(result.Errors, lossOutcome.Errors...)
	for _, item := range lossOutcome.Items {
		result.Losses = append(result.Losses, toLoss(analysisID, item))
	}
	if err := commitArtifacts(c, analysisID, "loss_identification", result.Losses, func(l domain.Loss) string { return l.ID }); err != nil {
		return fail(err)
	}

	deps, err := lossAgentConcrete.InferDependencies(ctx, balanced(), result.Losses)
	if err != nil {
		result.Errors = append(result.Errors, err)
	}
	result.LossDependencies = deps
	if err := commitMappings(c, analysisID, "loss_dependency", result.LossDependencies,
		func(d domain.LossDependency) string { return d.PrimaryLossID },
		func(d domain.LossDependency) string { return d.DependentLossID }); err != nil {
		return fail(err)
	}

	// --- hazard || stakeholder, run as parallel phases ---
	hazardAgentConcrete := step1.NewHazardAnalyst(c.llm)
	stakeholderAgentConcrete := step1.NewStakeholderAnalyst(c.llm)

	var hazardOutcome, stakeholderOutcome phaseOutcome
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hazardOutcome, err = c.runPhase(gCtx, phaseRequest{
			phaseName: "hazard", analysisID: analysisID, step: domain.Step1,
			systemDesc: systemDescription, enhancedPair: []agent.Style{agent.StyleTechnical, agent.StyleSystematic},
			prefixForItem: constPrefix("H"), agent: hazardAgentConcrete,
		})
		if nonFatal(err) {
			return nil // spec.md §7: an agent failure doesn't kill the parallel phase
		}
		return err
	})
	g.Go(func() error {
		var err error
		stakeholderOutcome, err = c.runPhase(gCtx, phaseRequest{
			phaseName: "stakeholder", analysisID: analysisID, step: domain.Step1,
			systemDesc: systemDescription, prefixForItem: stakeholderPrefix, agent: stakeholderAgentConcrete,
		})
		if nonFatal(err) {
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(err)
	}
	result.Errors = append(result.Errors, hazardOutcome.Errors...)
	result.Errors = append(result.Errors, stakeholderOutcome.Errors...)

	for _, item := range hazardOutcome.Items {
		result.Hazards = append(result.Hazards, toHazard(analysisID, item))
	}
	if err := commitArtifacts(c, analysisID, "hazard_identification", result.Hazards, func(h domain.Hazard) string { return h.ID }); err != nil {
		return fail(err)
	}

	result.Stakeholders, result.Adversaries = splitStakeholders(analysisID, stakeholderOutcome.Items)
	if err := commitArtifacts(c, analysisID, "stakeholder_analyst", result.Stakeholders, func(s domain.Stakeholder) string { return s.ID }); err != nil {
		return fail(err)
	}
	if err := commitArtifacts(c, analysisID, "adversary", result.Adversaries, func(a domain.Adversary) string { return a.ID }); err != nil {
		return fail(err)
	}

	hlMappings, err := hazardAgentConcrete.InferMappings(ctx, balanced(), result.Hazards, result.Losses)
	if err != nil {
		result.Errors = append(result.Errors, err)
	}
	result.HazardLossMappings = hlMappings
	if err := commitMappings(c, analysisID, "hazard_loss_mapping", result.HazardLossMappings,
		func(m domain.HazardLossMapping) string { return m.HazardID },
		func(m domain.HazardLossMapping) string { return m.LossID }); err != nil {
		return fail(err)
	}

	// --- security constraints ---
	constraintAgentConcrete := step1.NewConstraintAnalyst(c.llm)
	constraintOutcome, err := c.runPhase(ctx, phaseRequest{
		phaseName: "security_constraints", analysisID: analysisID, step: domain.Step1,
		systemDesc: systemDescription, prefixForItem: constPrefix("SC"), agent: constraintAgentConcrete,
	})
	if err != nil && !nonFatal(err) {
		return fail(err)
	}
	result.Errors = append(result.Errors, constraintOutcome.Errors...)
	for _, item := range constraintOutcome.Items {
		result.Constraints = append(result.Constraints, toConstraint(analysisID, item))
	}
	if err := commitArtifacts(c, analysisID, "security_constraints", result.Constraints, func(sc domain.SecurityConstraint) string { return sc.ID }); err != nil {
		return fail(err)
	}

	chMappings, err := constraintAgentConcrete.InferMappings(ctx, balanced(), result.Constraints, result.Hazards)
	if err != nil {
		result.Errors = append(result.Errors, err)
	}
	result.ConstraintHazardMappings = chMappings
	if err := commitMappings(c, analysisID, "constraint_hazard_mapping", result.ConstraintHazardMappings,
		func(m domain.ConstraintHazardMapping) string { return m.ConstraintID },
		func(m domain.ConstraintHazardMapping) string { return m.HazardID }); err != nil {
		return fail(err)
	}

	// --- system boundaries ---
	boundaryAgentConcrete := step1.NewBoundaryAnalyst(c.llm)
	boundaryOutcome, err := c.runPhase(ctx, phaseRequest{
		phaseName: "system_boundaries", analysisID: analysisID, step: domain.Step1,
		systemDesc: systemDescription, prefixForItem: constPrefix("SB"), agent: boundaryAgentConcrete,
	})
	if err != nil && !nonFatal(err) {
		return fail(err)
	}
	result.Errors = append(result.Errors, boundaryOutcome.Errors...)
	for _, item := range boundaryOutcome.Items {
		result.Boundaries = append(result.Boundaries, toBoundary(analysisID, item))
	}
	if err := commitArtifacts(c, analysisID, "system_boundaries", result.Boundaries, func(b domain.SystemBoundary) string { return b.ID }); err != nil {
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
	result.Validation = validator.Validate(validator.Input{
		Mission:                  &result.Mission,
		Losses:                   result.Losses,
		Hazards:                  result.Hazards,
		HazardLossMappings:       result.HazardLossMappings,
		Stakeholders:             result.Stakeholders,
		Adversaries:              result.Adversaries,
		Constraints:              result.Constraints,
		ConstraintHazardMappings: result.ConstraintHazardMappings,
		Boundaries:               result.Boundaries,
		AgentFailures:            agentFailures,
	})
	if err := c.gw.InsertArtifact(analysisID, "validation_report", analysisID, result.Validation); err != nil {
		return fail(err)
	}

	completeness := checkStep1Completeness(result)
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
