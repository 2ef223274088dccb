package service

import (
	"sort"

	"github.com/noah-isme/thesisflow-api/internal/models"
)

// SummarizeProposalEntries derives the aggregate workflow state for a set's
// entries. Precedence for the aggregate state: approved > rejected >
// under_review > draft; an approved entry wins even when siblings were
// rejected.
func SummarizeProposalEntries(entries []models.ProposalEntry) models.WorkflowSummary {
	summary := models.WorkflowSummary{}
	for _, entry := range entries {
		switch entry.Status {
		case models.EntryStatusSubmitted:
			summary.AwaitingModerator = true
		case models.EntryStatusHeadReview:
			summary.AwaitingHead = true
		case models.EntryStatusHeadApproved:
			summary.HasApproved = true
		}
	}
	summary.AllRejected = AreAllProposalsRejected(entries)

	switch {
	case summary.HasApproved:
		summary.WorkflowState = models.SetStatusApproved
	case summary.AllRejected:
		summary.WorkflowState = models.SetStatusRejected
	case summary.AwaitingModerator || summary.AwaitingHead:
		summary.WorkflowState = models.SetStatusUnderReview
	default:
		summary.WorkflowState = models.SetStatusDraft
	}
	return summary
}

// AreAllProposalsRejected reports whether every entry was rejected at some
// stage. An empty entry list is not considered rejected.
func AreAllProposalsRejected(entries []models.ProposalEntry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, entry := range entries {
		if entry.Status != models.EntryStatusModeratorRejected && entry.Status != models.EntryStatusHeadRejected {
			return false
		}
	}
	return true
}

// CanEditProposalSet reports whether the set is still fully editable: every
// entry must not have left draft state.
func CanEditProposalSet(set *models.ProposalSet) bool {
	if set == nil {
		return false
	}
	for _, entry := range set.Entries {
		if entry.Status != models.EntryStatusDraft {
			return false
		}
	}
	return true
}

// IsProposalSetArchived reports whether the set has been consumed. A set is
// archived once any of the usage markers is present; the lock writer stamps
// locked_entry_id, used_by, and used_as_thesis_at together so the three
// signals cannot disagree.
func IsProposalSetArchived(set *models.ProposalSet) bool {
	if set == nil {
		return false
	}
	return set.UsedAsThesisAt != nil || set.UsedBy != nil || set.LockedEntryID != nil
}

// PickActiveProposalSet returns the newest non-archived set, falling back to
// the newest set overall when everything is archived.
func PickActiveProposalSet(sets []models.ProposalSet) *models.ProposalSet {
	if len(sets) == 0 {
		return nil
	}
	ordered := make([]models.ProposalSet, len(sets))
	copy(ordered, sets)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})
	for i := range ordered {
		if !IsProposalSetArchived(&ordered[i]) {
			return &ordered[i]
		}
	}
	return &ordered[0]
}

// CanStartNewCycle reports whether a fresh submission cycle may begin on top
// of the given active set: the review pipeline must be fully drained and
// every entry rejected. A group with no set yet may always start.
func CanStartNewCycle(set *models.ProposalSet) bool {
	if set == nil {
		return true
	}
	if set.AwaitingModerator || set.AwaitingHead {
		return false
	}
	return AreAllProposalsRejected(set.Entries)
}
