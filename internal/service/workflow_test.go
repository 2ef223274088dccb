package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesisflow-api/internal/models"
)

func entriesWithStatuses(statuses ...models.ProposalEntryStatus) []models.ProposalEntry {
	entries := make([]models.ProposalEntry, 0, len(statuses))
	for i, status := range statuses {
		entries = append(entries, models.ProposalEntry{
			ID:     string(rune('a' + i)),
			Status: status,
		})
	}
	return entries
}

func TestSummarizeApprovedWinsOverRejected(t *testing.T) {
	entries := entriesWithStatuses(
		models.EntryStatusHeadApproved,
		models.EntryStatusModeratorRejected,
		models.EntryStatusHeadRejected,
	)
	summary := SummarizeProposalEntries(entries)
	require.True(t, summary.HasApproved)
	require.False(t, summary.AllRejected)
	require.Equal(t, models.SetStatusApproved, summary.WorkflowState)
}

func TestSummarizeAllRejected(t *testing.T) {
	entries := entriesWithStatuses(
		models.EntryStatusModeratorRejected,
		models.EntryStatusHeadRejected,
	)
	summary := SummarizeProposalEntries(entries)
	require.True(t, summary.AllRejected)
	require.Equal(t, models.SetStatusRejected, summary.WorkflowState)
}

func TestSummarizePendingStages(t *testing.T) {
	entries := entriesWithStatuses(
		models.EntryStatusSubmitted,
		models.EntryStatusHeadReview,
		models.EntryStatusModeratorRejected,
	)
	summary := SummarizeProposalEntries(entries)
	require.True(t, summary.AwaitingModerator)
	require.True(t, summary.AwaitingHead)
	require.Equal(t, models.SetStatusUnderReview, summary.WorkflowState)
}

func TestSummarizeAllDrafts(t *testing.T) {
	entries := entriesWithStatuses(models.EntryStatusDraft, models.EntryStatusDraft)
	summary := SummarizeProposalEntries(entries)
	require.False(t, summary.AwaitingModerator)
	require.False(t, summary.AwaitingHead)
	require.Equal(t, models.SetStatusDraft, summary.WorkflowState)
}

func TestAreAllProposalsRejectedEmpty(t *testing.T) {
	require.False(t, AreAllProposalsRejected(nil))
	require.False(t, AreAllProposalsRejected([]models.ProposalEntry{}))
}

func TestAreAllProposalsRejectedMixed(t *testing.T) {
	entries := entriesWithStatuses(
		models.EntryStatusModeratorRejected,
		models.EntryStatusSubmitted,
	)
	require.False(t, AreAllProposalsRejected(entries))

	entries = entriesWithStatuses(
		models.EntryStatusModeratorRejected,
		models.EntryStatusHeadRejected,
		models.EntryStatusModeratorRejected,
	)
	require.True(t, AreAllProposalsRejected(entries))
}

func TestCanEditProposalSet(t *testing.T) {
	set := &models.ProposalSet{Entries: entriesWithStatuses(models.EntryStatusDraft, models.EntryStatusDraft)}
	require.True(t, CanEditProposalSet(set))

	set.Entries[1].Status = models.EntryStatusSubmitted
	require.False(t, CanEditProposalSet(set))

	require.False(t, CanEditProposalSet(nil))
}

func TestIsProposalSetArchivedMarkers(t *testing.T) {
	require.False(t, IsProposalSetArchived(&models.ProposalSet{}))

	now := time.Now()
	userID := "user-1"
	entryID := "entry-1"

	require.True(t, IsProposalSetArchived(&models.ProposalSet{UsedAsThesisAt: &now}))
	require.True(t, IsProposalSetArchived(&models.ProposalSet{UsedBy: &userID}))
	require.True(t, IsProposalSetArchived(&models.ProposalSet{LockedEntryID: &entryID}))
}

func TestPickActiveProposalSetPrefersNewestActive(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entryID := "locked"
	sets := []models.ProposalSet{
		{ID: "old-active", CreatedAt: base},
		{ID: "new-archived", CreatedAt: base.Add(48 * time.Hour), LockedEntryID: &entryID},
		{ID: "mid-active", CreatedAt: base.Add(24 * time.Hour)},
	}
	picked := PickActiveProposalSet(sets)
	require.NotNil(t, picked)
	require.Equal(t, "mid-active", picked.ID)
}

func TestPickActiveProposalSetFallsBackToNewest(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entryID := "locked"
	sets := []models.ProposalSet{
		{ID: "older", CreatedAt: base, LockedEntryID: &entryID},
		{ID: "newer", CreatedAt: base.Add(time.Hour), LockedEntryID: &entryID},
	}
	picked := PickActiveProposalSet(sets)
	require.NotNil(t, picked)
	require.Equal(t, "newer", picked.ID)

	require.Nil(t, PickActiveProposalSet(nil))
}

func TestCanStartNewCycle(t *testing.T) {
	require.True(t, CanStartNewCycle(nil))

	pending := &models.ProposalSet{AwaitingModerator: true}
	require.False(t, CanStartNewCycle(pending))

	pendingHead := &models.ProposalSet{AwaitingHead: true}
	require.False(t, CanStartNewCycle(pendingHead))

	allRejected := &models.ProposalSet{
		Entries: entriesWithStatuses(models.EntryStatusModeratorRejected, models.EntryStatusHeadRejected),
	}
	require.True(t, CanStartNewCycle(allRejected))

	mixed := &models.ProposalSet{
		Entries: entriesWithStatuses(models.EntryStatusHeadApproved, models.EntryStatusHeadRejected),
	}
	require.False(t, CanStartNewCycle(mixed))

	empty := &models.ProposalSet{}
	require.False(t, CanStartNewCycle(empty))
}
