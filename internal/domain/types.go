package domain

import "time"

// Step distinguishes Step 1 (problem framing) from Step 2
// (control-structure analysis) analyses.
type Step int

const (
	Step1 Step = 1
	Step2 Step = 2
)

// CompletionStatus is the lifecycle state of an Analysis.
type CompletionStatus string

const (
	StatusRunning CompletionStatus = "running"
	StatusComplete CompletionStatus = "complete"
	StatusError   CompletionStatus = "error"
	StatusTimeout CompletionStatus = "timeout"
)

// Analysis is the root record for one execution (spec.md §3).
type Analysis struct {
	ID          string // surrogate key (uuid)
	Step        Step
	Name        string
	Description string
	CreatedAt   time.Time
	Status      CompletionStatus
	QualityScore float64
	ParentID    string // Step 2 -> Step 1 parent, empty for Step 1
	VersionType string // "", or "loaded" for demo-populated analyses (spec.md §9 Open Questions)

	Completeness *CompletenessCheck
}

// CompletenessCheck is the Step Coordinator's deterministic gate
// (spec.md §4.7): required artifact-kind minimums, required sub-fields,
// and cross-reference resolution, independent of the Validator's scored
// completeness category (§4.10) which grades content quality instead of
// presence.
type CompletenessCheck struct {
	IsComplete         bool           `json:"is_complete"`
	Counts             map[string]int `json:"counts"`
	MissingMinimums    []string       `json:"missing_minimums,omitempty"`
	MissingFields      []string       `json:"missing_fields,omitempty"`
	UnresolvedRefs     []string       `json:"unresolved_references,omitempty"`
}

// Mission is the Step 1 mission statement, exactly one per Step 1 analysis.
type Mission struct {
	AnalysisID       string
	Purpose          string
	Method           string
	Goals            []string
	Domain           string
	Criticality      string
	OperationalTempo string
	KeyCapabilities  []string
	Constraints      []string
	Assumptions      []string
}

// LossCategory enumerates spec.md's Loss.category values.
type LossCategory string

const (
	LossFinancial  LossCategory = "financial"
	LossRegulatory LossCategory = "regulatory"
	LossPrivacy    LossCategory = "privacy"
	LossReputation LossCategory = "reputation"
	LossMission    LossCategory = "mission"
)

// Severity captures the multi-dimensional severity of a Loss.
type Severity struct {
	Magnitude    string
	Scope        string
	Duration     string
	Reversibility string
	Detection    string
}

// Loss is a Step 1 `L-n` artifact.
type Loss struct {
	ID           string
	AnalysisID   string
	Description  string
	Category     LossCategory
	Severity     Severity
	MissionImpact string
	FoundByStyles []string // cognitive synthesis provenance (C8)
	Confidence    string
}

// LossDependencyType enumerates the relation between two losses.
type LossDependencyType string

const (
	DependencyTriggers LossDependencyType = "triggers"
	DependencyEnables  LossDependencyType = "enables"
	DependencyAmplifies LossDependencyType = "amplifies"
)

// LossDependency relates a primary loss to a dependent one.
type LossDependency struct {
	AnalysisID    string
	PrimaryLossID string
	DependentLossID string
	Type          LossDependencyType
	Strength      string
	Timing        string
	Rationale     string
}

// Hazard is a Step 1 `H-n` artifact, stated as a system state.
type Hazard struct {
	ID                string
	AnalysisID        string
	Description       string
	Category          string
	AffectedProperty  string
	TemporalNature    string
	EnvironmentalFactors []string
	FoundByStyles     []string
	Confidence        string
}

// HazardLossRelationship enumerates how strongly a hazard maps to a loss.
type HazardLossRelationship string

const (
	RelationshipDirect     HazardLossRelationship = "direct"
	RelationshipConditional HazardLossRelationship = "conditional"
	RelationshipIndirect   HazardLossRelationship = "indirect"
)

// HazardLossMapping is a Step 1 hazard -> loss cross-reference.
type HazardLossMapping struct {
	AnalysisID         string
	HazardID           string
	LossID             string
	Relationship       HazardLossRelationship
	Rationale          string
	EnablingConditions []string
}

// Stakeholder is a Step 1 named party with an interest in the mission.
type Stakeholder struct {
	ID               string
	AnalysisID       string
	Name             string
	Type             string
	MissionPerspective string
	LossExposure     []string // loss IDs
	Influence        string
	Interest         string
	FoundByStyles    []string
	Confidence       string
}

// Adversary is a Step 1 threat actor profile.
type Adversary struct {
	ID         string
	AnalysisID string
	Name       string
	Class      string
	Profile    string
	Targets    []string
	FoundByStyles []string
	Confidence string
}

// ConstraintType enumerates spec.md's SecurityConstraint.type values.
type ConstraintType string

const (
	ConstraintPreventive   ConstraintType = "preventive"
	ConstraintDetective    ConstraintType = "detective"
	ConstraintCorrective   ConstraintType = "corrective"
	ConstraintCompensating ConstraintType = "compensating"
)

// SecurityConstraint is a Step 1 `SC-n` artifact.
type SecurityConstraint struct {
	ID              string
	AnalysisID      string
	Statement       string
	Type            ConstraintType
	EnforcementLevel string // "mandatory" | "recommended"
	Rationale       string
	FoundByStyles   []string
	Confidence      string
}

// ConstraintHazardRelationship enumerates how a constraint addresses a hazard.
type ConstraintHazardRelationship string

const (
	ConstraintEliminates ConstraintHazardRelationship = "eliminates"
	ConstraintDetects   ConstraintHazardRelationship = "detects"
	ConstraintReduces   ConstraintHazardRelationship = "reduces"
	ConstraintTransfers ConstraintHazardRelationship = "transfers"
)

// ConstraintHazardMapping is a Step 1 constraint -> hazard cross-reference.
type ConstraintHazardMapping struct {
	AnalysisID   string
	ConstraintID string
	HazardID     string
	Relationship ConstraintHazardRelationship
}

// BoundaryType enumerates spec.md's SystemBoundary.type values.
type BoundaryType string

const (
	BoundarySystemScope     BoundaryType = "system_scope"
	BoundaryTrust           BoundaryType = "trust"
	BoundaryResponsibility  BoundaryType = "responsibility"
	BoundaryDataGovernance  BoundaryType = "data_governance"
)

// ElementPosition enumerates where a boundary element sits relative to the boundary.
type ElementPosition string

const (
	PositionInside    ElementPosition = "inside"
	PositionOutside   ElementPosition = "outside"
	PositionInterface ElementPosition = "interface"
	PositionCrossing  ElementPosition = "crossing"
)

// BoundaryElement is one tagged element of a SystemBoundary.
type BoundaryElement struct {
	Name     string
	Position ElementPosition
}

// SystemBoundary is a Step 1 boundary definition.
type SystemBoundary struct {
	ID         string
	AnalysisID string
	Name       string
	Type       BoundaryType
	Elements   []BoundaryElement
}

// --- Step 2 artifacts ---

// ComponentKind enumerates spec.md's Component.kind values.
type ComponentKind string

const (
	ComponentController       ComponentKind = "controller"
	ComponentControlledProcess ComponentKind = "controlled_process"
	ComponentDualRole         ComponentKind = "dual_role"
)

// Component is a Step 2 controller/controlled-process/dual-role node.
type Component struct {
	ID              string
	AnalysisID      string
	Kind            ComponentKind
	Name            string
	Description     string
	AuthorityLevel  string
	Criticality     string
	AbstractionLevel string
	Source          string
	SensorOnly      bool // explicit escape from invariant 3's outgoing-control-action requirement
}

// HierarchyRelationship enumerates ControlHierarchy.relationship values.
type HierarchyRelationship string

const (
	HierarchySupervises  HierarchyRelationship = "supervises"
	HierarchyCoordinates HierarchyRelationship = "coordinates"
	HierarchyDelegates   HierarchyRelationship = "delegates"
)

// ControlHierarchy is a parent/child component edge.
type ControlHierarchy struct {
	AnalysisID string
	ParentID   string
	ChildID    string
	Relationship HierarchyRelationship
}

// ControlAction is a Step 2 `CA-n` artifact.
type ControlAction struct {
	ID                 string
	AnalysisID         string
	ControllerID       string
	ControlledProcessID string
	Name               string
	Description        string
	ActionType         string
	AuthorityLevel     string
	TimingRequirements string
	SecurityRelevance  string
}

// DecisionLogic captures the decision-making inputs for a ControlContext.
type DecisionLogic struct {
	Inputs           []string
	Criteria         []string
	Priority         string
	ConflictResolution string
}

// ControlContext is a control-action-scoped execution context.
type ControlContext struct {
	AnalysisID         string
	ControlActionID    string
	Triggers           []string
	Preconditions      []string
	EnvironmentalFactors []string
	Timing             string
	DecisionLogic      DecisionLogic
	ApplicableModes    []string
}

// OperationalMode is a named mode the system can be in.
type OperationalMode struct {
	AnalysisID  string
	Name        string
	Description string
}

// ModeTransition is an edge between two OperationalModes.
type ModeTransition struct {
	AnalysisID string
	FromMode   string
	ToMode     string
	Trigger    string
}

// FeedbackMechanism is a Step 2 `FB-n` artifact.
type FeedbackMechanism struct {
	ID                string
	AnalysisID        string
	SourceProcessID   string
	TargetControllerID string
	InformationType   string
	Content           string
	Timing            string
	Reliability       string
	SecurityRelevance string
}

// ProcessModel is a controller-owned view of its controlled process's state.
type ProcessModel struct {
	AnalysisID       string
	ControllerID     string
	StateVariables   []string
	UpdateSources    []string
	Frequency        string
	StalenessTolerance string
	Assumptions      []string
	PotentialMismatches []string
}

// TrustBoundary is a Step 2 `TB-n` artifact.
type TrustBoundary struct {
	ID               string
	AnalysisID       string
	ComponentAID     string
	ComponentBID     string
	Type             string
	Direction        string
	AuthMethod       string
	DataProtection   string
}
