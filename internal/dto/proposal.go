package dto

import "github.com/noah-isme/thesisflow-api/internal/models"

// DraftEntryInput carries one draft topic from the editing dialog. ID is
// empty for newly added entries.
type DraftEntryInput struct {
	ID               string   `json:"id"`
	Title            string   `json:"title" validate:"required"`
	Abstract         string   `json:"abstract" validate:"required"`
	ProblemStatement string   `json:"problem_statement"`
	ExpectedOutcome  string   `json:"expected_outcome"`
	Keywords         []string `json:"keywords"`
}

// UpdateDraftEntriesRequest replaces the draft entry list of a set.
type UpdateDraftEntriesRequest struct {
	Entries []DraftEntryInput `json:"entries" validate:"required,dive"`
}

// ReviewDecisionRequest records a moderator or head decision on one entry.
type ReviewDecisionRequest struct {
	Decision models.ReviewDecision `json:"decision" validate:"required,oneof=approved rejected"`
	Notes    string                `json:"notes"`
	Agenda   string                `json:"agenda"`
	ESG      string                `json:"esg"`
	SDG      string                `json:"sdg"`
}

// MarkAsThesisRequest locks one approved entry as the official topic.
type MarkAsThesisRequest struct {
	ProposalID string `json:"proposal_id" validate:"required"`
}

// ProposalSetView decorates a set with its derived workflow summary.
type ProposalSetView struct {
	models.ProposalSet
	Summary models.WorkflowSummary `json:"summary"`
	CanEdit bool                   `json:"can_edit"`
}

// ProposalSetEvent is the payload published on every set mutation.
type ProposalSetEvent struct {
	GroupID string `json:"group_id"`
	SetID   string `json:"set_id"`
	Event   string `json:"event"`
}
