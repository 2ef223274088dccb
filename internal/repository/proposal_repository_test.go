package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesisflow-api/internal/models"
)

func TestMaxCycleForGroup(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	rows := sqlmock.NewRows([]string{"coalesce"}).AddRow(2)
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(cycle\), 0\) FROM proposal_sets`).
		WithArgs("g1").
		WillReturnRows(rows)

	cycle, err := repo.MaxCycleForGroup(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, cycle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitSetFlipsDraftEntries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE proposal_entries SET status = \$2, updated_at = \$3 WHERE set_id = \$1 AND status = \$4`).
		WithArgs("set-1", models.EntryStatusSubmitted, now, models.EntryStatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE proposal_sets SET status = \$2, awaiting_moderator = TRUE`).
		WithArgs("set-1", models.SetStatusUnderReview, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SubmitSet(context.Background(), "set-1", now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitSetNoDraftEntries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE proposal_entries SET status = \$2`).
		WithArgs("set-1", models.EntryStatusSubmitted, now, models.EntryStatusDraft).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SubmitSet(context.Background(), "set-1", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDecisionGuardsSourceStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE proposal_entries SET status = .+ moderator_reviewer = .+ AND status = .+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RecordDecision(context.Background(), DecisionParams{
		SetID:      "set-1",
		ProposalID: "entry-1",
		Stage:      models.ReviewStageModerator,
		ReviewerID: "mod-1",
		Decision:   models.DecisionApproved,
		FromStatus: models.EntryStatusSubmitted,
		ToStatus:   models.EntryStatusHeadReview,
		DecidedAt:  now,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDecisionAppendsReview(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE proposal_entries SET status = .+ head_reviewer = .+ AND status = .+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO proposal_reviews`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.RecordDecision(context.Background(), DecisionParams{
		SetID:      "set-1",
		ProposalID: "entry-1",
		Stage:      models.ReviewStageHead,
		ReviewerID: "head-1",
		Decision:   models.DecisionApproved,
		FromStatus: models.EntryStatusHeadReview,
		ToStatus:   models.EntryStatusHeadApproved,
		DecidedAt:  now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockEntryConditionalWrite(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE proposal_sets\s+SET locked_entry_id = \$2, used_by = \$3, used_as_thesis_at = \$4, status = \$5, updated_at = \$4\s+WHERE id = \$1 AND locked_entry_id IS NULL`).
		WithArgs("set-1", "entry-1", "leader-1", now, models.SetStatusArchived).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.LockEntry(context.Background(), "set-1", "entry-1", "leader-1", now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockEntryAlreadyLocked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE proposal_sets`).
		WithArgs("set-1", "entry-1", "leader-1", now, models.SetStatusArchived).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.LockEntry(context.Background(), "set-1", "entry-1", "leader-1", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSetByIDLoadsEntries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)
	now := time.Now()

	setRows := sqlmock.NewRows([]string{"id", "group_id", "created_by", "cycle", "status", "awaiting_moderator", "awaiting_head", "locked_entry_id", "used_by", "used_as_thesis_at", "created_at", "updated_at"}).
		AddRow("set-1", "g1", "leader-1", 1, string(models.SetStatusDraft), false, false, nil, nil, nil, now, now)
	mock.ExpectQuery(`SELECT .+ FROM proposal_sets WHERE id = \$1`).
		WithArgs("set-1").
		WillReturnRows(setRows)

	entryRows := sqlmock.NewRows([]string{"id", "set_id", "title", "status", "proposed_by", "created_at", "updated_at"}).
		AddRow("entry-1", "set-1", "Topic A", string(models.EntryStatusDraft), "leader-1", now, now)
	mock.ExpectQuery(`SELECT .+ FROM proposal_entries WHERE set_id = \$1`).
		WithArgs("set-1").
		WillReturnRows(entryRows)

	set, err := repo.GetSetByID(context.Background(), "set-1")
	require.NoError(t, err)
	assert.Equal(t, "g1", set.GroupID)
	require.Len(t, set.Entries, 1)
	assert.Equal(t, "Topic A", set.Entries[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}
