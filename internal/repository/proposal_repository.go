package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/thesisflow-api/internal/models"
)

const proposalSetColumns = `id, group_id, created_by, cycle, status, awaiting_moderator, awaiting_head,
       locked_entry_id, used_by, used_as_thesis_at, created_at, updated_at`

const proposalEntryColumns = `id, set_id, title, abstract, problem_statement, expected_outcome, keywords,
       proposed_by, status, moderator_reviewer, moderator_decision, moderator_decided_at, moderator_notes,
       head_reviewer, head_decision, head_decided_at, head_notes, agenda, esg, sdg, created_at, updated_at`

// ProposalRepository persists proposal sets, entries, and review history.
type ProposalRepository struct {
	db *sqlx.DB
}

// NewProposalRepository constructs the repository.
func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// CreateSet inserts a new proposal set with no entries.
func (r *ProposalRepository) CreateSet(ctx context.Context, set *models.ProposalSet) error {
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if set.CreatedAt.IsZero() {
		set.CreatedAt = now
	}
	set.UpdatedAt = now
	if set.Status == "" {
		set.Status = models.SetStatusDraft
	}
	const query = `INSERT INTO proposal_sets
	(id, group_id, created_by, cycle, status, awaiting_moderator, awaiting_head, locked_entry_id, used_by, used_as_thesis_at, created_at, updated_at)
	VALUES (:id, :group_id, :created_by, :cycle, :status, :awaiting_moderator, :awaiting_head, :locked_entry_id, :used_by, :used_as_thesis_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, set); err != nil {
		return fmt.Errorf("create proposal set: %w", err)
	}
	return nil
}

// GetSetByID fetches a set together with its entries.
func (r *ProposalRepository) GetSetByID(ctx context.Context, id string) (*models.ProposalSet, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposal_sets WHERE id = $1`, proposalSetColumns)
	var set models.ProposalSet
	if err := r.db.GetContext(ctx, &set, query, id); err != nil {
		return nil, err
	}
	entries, err := r.listEntries(ctx, set.ID)
	if err != nil {
		return nil, err
	}
	set.Entries = entries
	return &set, nil
}

// ListSetsByGroup returns all sets for a group, newest first, entries loaded.
func (r *ProposalRepository) ListSetsByGroup(ctx context.Context, groupID string) ([]models.ProposalSet, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposal_sets WHERE group_id = $1 ORDER BY created_at DESC`, proposalSetColumns)
	var sets []models.ProposalSet
	if err := r.db.SelectContext(ctx, &sets, query, groupID); err != nil {
		return nil, fmt.Errorf("list proposal sets: %w", err)
	}
	for i := range sets {
		entries, err := r.listEntries(ctx, sets[i].ID)
		if err != nil {
			return nil, err
		}
		sets[i].Entries = entries
	}
	return sets, nil
}

// ListPendingSets returns sets parked at the given review stage.
func (r *ProposalRepository) ListPendingSets(ctx context.Context, stage models.ReviewStage) ([]models.ProposalSet, error) {
	column := "awaiting_moderator"
	if stage == models.ReviewStageHead {
		column = "awaiting_head"
	}
	query := fmt.Sprintf(`SELECT %s FROM proposal_sets WHERE %s = TRUE ORDER BY updated_at ASC`, proposalSetColumns, column)
	var sets []models.ProposalSet
	if err := r.db.SelectContext(ctx, &sets, query); err != nil {
		return nil, fmt.Errorf("list pending proposal sets: %w", err)
	}
	for i := range sets {
		entries, err := r.listEntries(ctx, sets[i].ID)
		if err != nil {
			return nil, err
		}
		sets[i].Entries = entries
	}
	return sets, nil
}

// MaxCycleForGroup returns the highest cycle number used by the group, zero
// when the group has no sets yet.
func (r *ProposalRepository) MaxCycleForGroup(ctx context.Context, groupID string) (int, error) {
	const query = `SELECT COALESCE(MAX(cycle), 0) FROM proposal_sets WHERE group_id = $1`
	var cycle int
	if err := r.db.GetContext(ctx, &cycle, query, groupID); err != nil {
		return 0, fmt.Errorf("max cycle for group: %w", err)
	}
	return cycle, nil
}

// ReplaceDraftEntries swaps the full entry list of an editable set in one
// transaction. The caller has already verified every entry is draft.
func (r *ProposalRepository) ReplaceDraftEntries(ctx context.Context, setID string, entries []models.ProposalEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace entries: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM proposal_entries WHERE set_id = $1`, setID); err != nil {
		return fmt.Errorf("clear draft entries: %w", err)
	}

	const insert = `INSERT INTO proposal_entries
	(id, set_id, title, abstract, problem_statement, expected_outcome, keywords, proposed_by, status, created_at, updated_at)
	VALUES (:id, :set_id, :title, :abstract, :problem_statement, :expected_outcome, :keywords, :proposed_by, :status, :created_at, :updated_at)`
	for i := range entries {
		if _, err := tx.NamedExecContext(ctx, insert, &entries[i]); err != nil {
			return fmt.Errorf("insert draft entry: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE proposal_sets SET updated_at = $2 WHERE id = $1`, setID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch proposal set: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace entries: %w", err)
	}
	return nil
}

// SubmitSet flips every draft entry to submitted and raises the moderator
// flag in a single transaction so no partial submission is observable.
func (r *ProposalRepository) SubmitSet(ctx context.Context, setID string, now time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx,
		`UPDATE proposal_entries SET status = $2, updated_at = $3 WHERE set_id = $1 AND status = $4`,
		setID, models.EntryStatusSubmitted, now, models.EntryStatusDraft)
	if err != nil {
		return fmt.Errorf("submit entries: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submitted rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE proposal_sets SET status = $2, awaiting_moderator = TRUE, awaiting_head = FALSE, updated_at = $3 WHERE id = $1`,
		setID, models.SetStatusUnderReview, now); err != nil {
		return fmt.Errorf("mark set under review: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submit: %w", err)
	}
	return nil
}

// DecisionParams groups the columns written by a review decision.
type DecisionParams struct {
	SetID      string
	ProposalID string
	Stage      models.ReviewStage
	ReviewerID string
	Decision   models.ReviewDecision
	Notes      *string
	Agenda     *string
	ESG        *string
	SDG        *string
	FromStatus models.ProposalEntryStatus
	ToStatus   models.ProposalEntryStatus
	DecidedAt  time.Time
}

// RecordDecision applies a reviewer decision to one entry. The UPDATE is
// keyed on the expected source status; zero rows means the entry was not in
// that status and the caller maps it to an invalid-transition error.
func (r *ProposalRepository) RecordDecision(ctx context.Context, params DecisionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decision: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var query string
	args := map[string]interface{}{
		"id":         params.ProposalID,
		"set_id":     params.SetID,
		"status":     params.ToStatus,
		"from":       params.FromStatus,
		"reviewer":   params.ReviewerID,
		"decision":   params.Decision,
		"decided_at": params.DecidedAt,
		"notes":      params.Notes,
	}
	if params.Stage == models.ReviewStageModerator {
		query = `UPDATE proposal_entries SET status = :status, moderator_reviewer = :reviewer,
		moderator_decision = :decision, moderator_decided_at = :decided_at, moderator_notes = :notes,
		updated_at = :decided_at WHERE id = :id AND set_id = :set_id AND status = :from`
	} else {
		query = `UPDATE proposal_entries SET status = :status, head_reviewer = :reviewer,
		head_decision = :decision, head_decided_at = :decided_at, head_notes = :notes,
		agenda = :agenda, esg = :esg, sdg = :sdg,
		updated_at = :decided_at WHERE id = :id AND set_id = :set_id AND status = :from`
		args["agenda"] = params.Agenda
		args["esg"] = params.ESG
		args["sdg"] = params.SDG
	}

	result, err := tx.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("record %s decision: %w", params.Stage, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check decision rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	review := &models.ProposalReview{
		ID:         uuid.NewString(),
		SetID:      params.SetID,
		ProposalID: params.ProposalID,
		Stage:      params.Stage,
		Decision:   params.Decision,
		ReviewerID: params.ReviewerID,
		Notes:      params.Notes,
		ReviewedAt: params.DecidedAt,
	}
	const insertReview = `INSERT INTO proposal_reviews (id, set_id, proposal_id, stage, decision, reviewer_id, notes, reviewed_at)
	VALUES (:id, :set_id, :proposal_id, :stage, :decision, :reviewer_id, :notes, :reviewed_at)`
	if _, err := tx.NamedExecContext(ctx, insertReview, review); err != nil {
		return fmt.Errorf("append review history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decision: %w", err)
	}
	return nil
}

// UpdateSetWorkflow persists the recomputed aggregate state of a set.
func (r *ProposalRepository) UpdateSetWorkflow(ctx context.Context, setID string, status models.ProposalSetStatus, awaitingModerator, awaitingHead bool) error {
	const query = `UPDATE proposal_sets SET status = $2, awaiting_moderator = $3, awaiting_head = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, setID, status, awaitingModerator, awaitingHead, time.Now().UTC()); err != nil {
		return fmt.Errorf("update set workflow: %w", err)
	}
	return nil
}

// LockEntry adopts one approved entry as the group's thesis topic. The write
// only succeeds while no entry is locked yet; zero rows means another caller
// won the race and is surfaced as a conflict by the service.
func (r *ProposalRepository) LockEntry(ctx context.Context, setID, entryID, userID string, now time.Time) error {
	const query = `UPDATE proposal_sets
	SET locked_entry_id = $2, used_by = $3, used_as_thesis_at = $4, status = $5, updated_at = $4
	WHERE id = $1 AND locked_entry_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, setID, entryID, userID, now, models.SetStatusArchived)
	if err != nil {
		return fmt.Errorf("lock proposal entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check lock rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetEntry fetches one entry scoped to its set.
func (r *ProposalRepository) GetEntry(ctx context.Context, setID, entryID string) (*models.ProposalEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposal_entries WHERE id = $1 AND set_id = $2`, proposalEntryColumns)
	var entry models.ProposalEntry
	if err := r.db.GetContext(ctx, &entry, query, entryID, setID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListReviews returns the append-only review history of a set.
func (r *ProposalRepository) ListReviews(ctx context.Context, setID string) ([]models.ProposalReview, error) {
	const query = `SELECT id, set_id, proposal_id, stage, decision, reviewer_id, notes, reviewed_at
	FROM proposal_reviews WHERE set_id = $1 ORDER BY reviewed_at ASC`
	var reviews []models.ProposalReview
	if err := r.db.SelectContext(ctx, &reviews, query, setID); err != nil {
		return nil, fmt.Errorf("list proposal reviews: %w", err)
	}
	return reviews, nil
}

func (r *ProposalRepository) listEntries(ctx context.Context, setID string) ([]models.ProposalEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposal_entries WHERE set_id = $1 ORDER BY created_at ASC`, proposalEntryColumns)
	var entries []models.ProposalEntry
	if err := r.db.SelectContext(ctx, &entries, query, setID); err != nil {
		return nil, fmt.Errorf("list proposal entries: %w", err)
	}
	return entries, nil
}
