package models

import (
	"time"

	"github.com/lib/pq"
)

// ProposalEntryStatus tracks a single topic through the two-stage review.
type ProposalEntryStatus string

const (
	EntryStatusDraft             ProposalEntryStatus = "draft"
	EntryStatusSubmitted         ProposalEntryStatus = "submitted"
	EntryStatusHeadReview        ProposalEntryStatus = "head_review"
	EntryStatusHeadApproved      ProposalEntryStatus = "head_approved"
	EntryStatusHeadRejected      ProposalEntryStatus = "head_rejected"
	EntryStatusModeratorRejected ProposalEntryStatus = "moderator_rejected"
)

// Terminal reports whether no further transition is possible for the entry.
func (s ProposalEntryStatus) Terminal() bool {
	switch s {
	case EntryStatusHeadApproved, EntryStatusHeadRejected, EntryStatusModeratorRejected:
		return true
	}
	return false
}

// ProposalSetStatus is the derived aggregate status of a set.
type ProposalSetStatus string

const (
	SetStatusDraft       ProposalSetStatus = "draft"
	SetStatusUnderReview ProposalSetStatus = "under_review"
	SetStatusApproved    ProposalSetStatus = "approved"
	SetStatusRejected    ProposalSetStatus = "rejected"
	SetStatusArchived    ProposalSetStatus = "archived"
)

// ReviewStage identifies which reviewer tier produced a decision.
type ReviewStage string

const (
	ReviewStageModerator ReviewStage = "moderator"
	ReviewStageHead      ReviewStage = "head"
)

// ReviewDecision is the binary outcome of a review.
type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "approved"
	DecisionRejected ReviewDecision = "rejected"
)

// ProposalEntry is one candidate thesis topic inside a set.
type ProposalEntry struct {
	ID                 string              `db:"id" json:"id"`
	SetID              string              `db:"set_id" json:"set_id"`
	Title              string              `db:"title" json:"title"`
	Abstract           string              `db:"abstract" json:"abstract"`
	ProblemStatement   *string             `db:"problem_statement" json:"problem_statement,omitempty"`
	ExpectedOutcome    *string             `db:"expected_outcome" json:"expected_outcome,omitempty"`
	Keywords           pq.StringArray      `db:"keywords" json:"keywords"`
	ProposedBy         string              `db:"proposed_by" json:"proposed_by"`
	Status             ProposalEntryStatus `db:"status" json:"status"`
	ModeratorReviewer  *string             `db:"moderator_reviewer" json:"moderator_reviewer,omitempty"`
	ModeratorDecision  *ReviewDecision     `db:"moderator_decision" json:"moderator_decision,omitempty"`
	ModeratorDecidedAt *time.Time          `db:"moderator_decided_at" json:"moderator_decided_at,omitempty"`
	ModeratorNotes     *string             `db:"moderator_notes" json:"moderator_notes,omitempty"`
	HeadReviewer       *string             `db:"head_reviewer" json:"head_reviewer,omitempty"`
	HeadDecision       *ReviewDecision     `db:"head_decision" json:"head_decision,omitempty"`
	HeadDecidedAt      *time.Time          `db:"head_decided_at" json:"head_decided_at,omitempty"`
	HeadNotes          *string             `db:"head_notes" json:"head_notes,omitempty"`
	Agenda             *string             `db:"agenda" json:"agenda,omitempty"`
	ESG                *string             `db:"esg" json:"esg,omitempty"`
	SDG                *string             `db:"sdg" json:"sdg,omitempty"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// ProposalSet is one submission cycle of candidate topics for a group.
type ProposalSet struct {
	ID                string            `db:"id" json:"id"`
	GroupID           string            `db:"group_id" json:"group_id"`
	CreatedBy         string            `db:"created_by" json:"created_by"`
	Cycle             int               `db:"cycle" json:"cycle"`
	Status            ProposalSetStatus `db:"status" json:"status"`
	AwaitingModerator bool              `db:"awaiting_moderator" json:"awaiting_moderator"`
	AwaitingHead      bool              `db:"awaiting_head" json:"awaiting_head"`
	LockedEntryID     *string           `db:"locked_entry_id" json:"locked_entry_id,omitempty"`
	UsedBy            *string           `db:"used_by" json:"used_by,omitempty"`
	UsedAsThesisAt    *time.Time        `db:"used_as_thesis_at" json:"used_as_thesis_at,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`

	Entries []ProposalEntry `db:"-" json:"entries"`
}

// ProposalReview is one append-only review history record.
type ProposalReview struct {
	ID         string         `db:"id" json:"id"`
	SetID      string         `db:"set_id" json:"set_id"`
	ProposalID string         `db:"proposal_id" json:"proposal_id"`
	Stage      ReviewStage    `db:"stage" json:"stage"`
	Decision   ReviewDecision `db:"decision" json:"decision"`
	ReviewerID string         `db:"reviewer_id" json:"reviewer_id"`
	Notes      *string        `db:"notes" json:"notes,omitempty"`
	ReviewedAt time.Time      `db:"reviewed_at" json:"reviewed_at"`
}

// WorkflowSummary is the aggregate state derived from a set's entries.
type WorkflowSummary struct {
	AwaitingModerator bool              `json:"awaiting_moderator"`
	AwaitingHead      bool              `json:"awaiting_head"`
	HasApproved       bool              `json:"has_approved"`
	AllRejected       bool              `json:"all_rejected"`
	WorkflowState     ProposalSetStatus `json:"workflow_state"`
}
