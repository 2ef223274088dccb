package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/thesisflow-api/internal/dto"
	"github.com/noah-isme/thesisflow-api/internal/models"
	"github.com/noah-isme/thesisflow-api/internal/repository"
	appErrors "github.com/noah-isme/thesisflow-api/pkg/errors"
)

type proposalStore interface {
	CreateSet(ctx context.Context, set *models.ProposalSet) error
	GetSetByID(ctx context.Context, id string) (*models.ProposalSet, error)
	ListSetsByGroup(ctx context.Context, groupID string) ([]models.ProposalSet, error)
	ListPendingSets(ctx context.Context, stage models.ReviewStage) ([]models.ProposalSet, error)
	MaxCycleForGroup(ctx context.Context, groupID string) (int, error)
	ReplaceDraftEntries(ctx context.Context, setID string, entries []models.ProposalEntry) error
	SubmitSet(ctx context.Context, setID string, now time.Time) error
	RecordDecision(ctx context.Context, params repository.DecisionParams) error
	UpdateSetWorkflow(ctx context.Context, setID string, status models.ProposalSetStatus, awaitingModerator, awaitingHead bool) error
	LockEntry(ctx context.Context, setID, entryID, userID string, now time.Time) error
	GetEntry(ctx context.Context, setID, entryID string) (*models.ProposalEntry, error)
	ListReviews(ctx context.Context, setID string) ([]models.ProposalReview, error)
}

type groupStore interface {
	GetByID(ctx context.Context, id string) (*models.Group, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	MemberIDs(ctx context.Context, groupID string) ([]string, error)
	UsersByRole(ctx context.Context, role models.UserRole) ([]string, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// WorkflowNotifier fans workflow events out to affected users. Notification
// delivery is best effort and never fails the triggering operation.
type WorkflowNotifier interface {
	ProposalSubmitted(set *models.ProposalSet, group *models.Group)
	ModeratorApproved(set *models.ProposalSet, entry *models.ProposalEntry, group *models.Group)
	ModeratorRejected(set *models.ProposalSet, entry *models.ProposalEntry, group *models.Group)
	HeadDecided(set *models.ProposalSet, entry *models.ProposalEntry, group *models.Group, decision models.ReviewDecision)
	ThesisLocked(set *models.ProposalSet, entry *models.ProposalEntry, group *models.Group)
}

// SetChangePublisher announces set mutations to realtime subscribers.
type SetChangePublisher interface {
	PublishSetChanged(ctx context.Context, event dto.ProposalSetEvent)
}

// ProposalService owns the topic proposal workflow: set lifecycle, draft
// editing, submission, the two-stage review, and thesis locking.
type ProposalService struct {
	repo       proposalStore
	groups     groupStore
	audit      auditLogger
	notifier   WorkflowNotifier
	publisher  SetChangePublisher
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
	maxEntries int
}

// ProposalServiceOption customises optional collaborators.
type ProposalServiceOption func(*ProposalService)

// WithProposalCache enables read-through caching of set views.
func WithProposalCache(cache *CacheService) ProposalServiceOption {
	return func(s *ProposalService) {
		s.cache = cache
	}
}

// NewProposalService constructs the service.
func NewProposalService(repo proposalStore, groups groupStore, audit auditLogger, notifier WorkflowNotifier, publisher SetChangePublisher, validate *validator.Validate, logger *zap.Logger, maxEntries int, opts ...ProposalServiceOption) *ProposalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxEntries <= 0 {
		maxEntries = 3
	}
	s := &ProposalService{
		repo:       repo,
		groups:     groups,
		audit:      audit,
		notifier:   notifier,
		publisher:  publisher,
		validator:  validate,
		logger:     logger,
		maxEntries: maxEntries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListByGroup returns every proposal set of a group, decorated with its
// derived workflow summary.
func (s *ProposalService) ListByGroup(ctx context.Context, groupID string, actor *models.JWTClaims) ([]dto.ProposalSetView, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireGroupAccess(ctx, group, actor); err != nil {
		return nil, err
	}
	sets, err := s.repo.ListSetsByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposal sets")
	}
	views := make([]dto.ProposalSetView, 0, len(sets))
	for i := range sets {
		views = append(views, s.viewOf(&sets[i]))
	}
	return views, nil
}

// GetSet returns one set with its summary. Views are cached per set and
// invalidated on every workflow mutation; the group access check still runs
// on cache hits.
func (s *ProposalService) GetSet(ctx context.Context, setID string, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	var cached dto.ProposalSetView
	if hit, _ := s.cache.Get(ctx, proposalSetCacheKey(setID), &cached); hit {
		group, err := s.loadGroup(ctx, cached.GroupID)
		if err != nil {
			return nil, err
		}
		if err := s.requireGroupAccess(ctx, group, actor); err != nil {
			return nil, err
		}
		return &cached, nil
	}
	set, group, err := s.loadSetAndGroup(ctx, setID)
	if err != nil {
		return nil, err
	}
	if err := s.requireGroupAccess(ctx, group, actor); err != nil {
		return nil, err
	}
	view := s.viewOf(set)
	if err := s.cache.Set(ctx, proposalSetCacheKey(setID), view, 0); err != nil {
		s.logger.Debug("Proposal set view not cached", zap.String("set_id", setID), zap.Error(err))
	}
	return &view, nil
}

// ListPending returns sets parked at the reviewer's stage: moderators see
// sets awaiting moderation, heads see sets awaiting final review.
func (s *ProposalService) ListPending(ctx context.Context, actor *models.JWTClaims) ([]dto.ProposalSetView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var stage models.ReviewStage
	switch actor.Role {
	case models.RoleModerator, models.RoleAdmin:
		stage = models.ReviewStageModerator
	case models.RoleHead:
		stage = models.ReviewStageHead
	default:
		return nil, appErrors.ErrForbidden
	}
	sets, err := s.repo.ListPendingSets(ctx, stage)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending sets")
	}
	views := make([]dto.ProposalSetView, 0, len(sets))
	for i := range sets {
		views = append(views, s.viewOf(&sets[i]))
	}
	return views, nil
}

// CreateSet opens a new submission cycle for the group. Only the leader may
// create, and only once the previous cycle is fully drained.
func (s *ProposalService) CreateSet(ctx context.Context, groupID string, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := requireLeader(group, actor); err != nil {
		return nil, err
	}

	sets, err := s.repo.ListSetsByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect existing cycles")
	}
	if active := PickActiveProposalSet(sets); active != nil && !IsProposalSetArchived(active) && !CanStartNewCycle(active) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "current proposal cycle is still in progress")
	}

	maxCycle, err := s.repo.MaxCycleForGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve cycle number")
	}

	set := &models.ProposalSet{
		GroupID:   groupID,
		CreatedBy: actor.UserID,
		Cycle:     maxCycle + 1,
		Status:    models.SetStatusDraft,
	}
	if err := s.repo.CreateSet(ctx, set); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create proposal set")
	}

	s.emitAudit(ctx, actor, models.AuditActionProposalSetCreate, set.ID, map[string]interface{}{"group_id": groupID, "cycle": set.Cycle})
	s.publishChange(ctx, groupID, set.ID, "set_created")

	view := s.viewOf(set)
	return &view, nil
}

// UpdateDraftEntries replaces the draft topic list. The set must still be
// fully editable and the bound on entries holds.
func (s *ProposalService) UpdateDraftEntries(ctx context.Context, setID string, req dto.UpdateDraftEntriesRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft entries payload")
	}
	if len(req.Entries) > s.maxEntries {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("a proposal set holds at most %d topics", s.maxEntries))
	}

	set, group, err := s.loadSetAndGroup(ctx, setID)
	if err != nil {
		return nil, err
	}
	if err := requireLeader(group, actor); err != nil {
		return nil, err
	}
	if !CanEditProposalSet(set) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "proposal set is no longer editable")
	}

	now := time.Now().UTC()
	existing := make(map[string]models.ProposalEntry, len(set.Entries))
	for _, entry := range set.Entries {
		existing[entry.ID] = entry
	}

	entries := make([]models.ProposalEntry, 0, len(req.Entries))
	for _, input := range req.Entries {
		entry := models.ProposalEntry{
			ID:         input.ID,
			SetID:      setID,
			Title:      strings.TrimSpace(input.Title),
			Abstract:   strings.TrimSpace(input.Abstract),
			Keywords:   pq.StringArray(input.Keywords),
			ProposedBy: actor.UserID,
			Status:     models.EntryStatusDraft,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if input.ProblemStatement != "" {
			v := input.ProblemStatement
			entry.ProblemStatement = &v
		}
		if input.ExpectedOutcome != "" {
			v := input.ExpectedOutcome
			entry.ExpectedOutcome = &v
		}
		if prev, ok := existing[input.ID]; ok {
			entry.CreatedAt = prev.CreatedAt
			entry.ProposedBy = prev.ProposedBy
		} else {
			entry.ID = uuid.NewString()
		}
		entries = append(entries, entry)
	}

	if err := s.repo.ReplaceDraftEntries(ctx, setID, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save draft entries")
	}
	set.Entries = entries
	set.UpdatedAt = now

	s.emitAudit(ctx, actor, models.AuditActionProposalSetEdit, setID, map[string]interface{}{"entries": len(entries)})
	s.publishChange(ctx, set.GroupID, setID, "entries_updated")

	view := s.viewOf(set)
	return &view, nil
}

// SubmitSet sends every draft topic to moderator review in one shot.
func (s *ProposalService) SubmitSet(ctx context.Context, setID string, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	set, group, err := s.loadSetAndGroup(ctx, setID)
	if err != nil {
		return nil, err
	}
	if err := requireLeader(group, actor); err != nil {
		return nil, err
	}
	if len(set.Entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot submit an empty proposal set")
	}
	if !CanEditProposalSet(set) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "proposal set was already submitted")
	}

	now := time.Now().UTC()
	if err := s.repo.SubmitSet(ctx, setID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "proposal set was already submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit proposal set")
	}

	for i := range set.Entries {
		set.Entries[i].Status = models.EntryStatusSubmitted
		set.Entries[i].UpdatedAt = now
	}
	set.Status = models.SetStatusUnderReview
	set.AwaitingModerator = true
	set.AwaitingHead = false
	set.UpdatedAt = now

	s.emitAudit(ctx, actor, models.AuditActionProposalSubmit, setID, map[string]interface{}{"entries": len(set.Entries)})
	if s.notifier != nil {
		s.notifier.ProposalSubmitted(set, group)
	}
	s.publishChange(ctx, set.GroupID, setID, "set_submitted")

	view := s.viewOf(set)
	return &view, nil
}

// RecordModeratorDecision applies the first-tier decision to one entry. The
// entry must currently be submitted.
func (s *ProposalService) RecordModeratorDecision(ctx context.Context, setID, proposalID string, req dto.ReviewDecisionRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleModerator && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	set, group, err := s.loadSetAndGroup(ctx, setID)
	if err != nil {
		return nil, err
	}
	entry, err := s.loadEntry(ctx, setID, proposalID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EntryStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "entry is not awaiting moderator review")
	}

	toStatus := models.EntryStatusHeadReview
	if req.Decision == models.DecisionRejected {
		toStatus = models.EntryStatusModeratorRejected
	}
	now := time.Now().UTC()
	params := repository.DecisionParams{
		SetID:      setID,
		ProposalID: proposalID,
		Stage:      models.ReviewStageModerator,
		ReviewerID: actor.UserID,
		Decision:   req.Decision,
		Notes:      optionalString(req.Notes),
		FromStatus: models.EntryStatusSubmitted,
		ToStatus:   toStatus,
		DecidedAt:  now,
	}
	if err := s.repo.RecordDecision(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "entry is not awaiting moderator review")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record moderator decision")
	}

	updated, err := s.refreshSetWorkflow(ctx, setID)
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, actor, models.AuditActionModeratorDecision, proposalID, map[string]interface{}{"decision": req.Decision, "set_id": setID})
	entry.Status = toStatus
	if s.notifier != nil {
		if req.Decision == models.DecisionApproved {
			s.notifier.ModeratorApproved(set, entry, group)
		} else {
			s.notifier.ModeratorRejected(set, entry, group)
		}
	}
	s.publishChange(ctx, set.GroupID, setID, "moderator_decision")

	view := s.viewOf(updated)
	return &view, nil
}

// RecordHeadDecision applies the final decision to one entry. The entry must
// currently sit in head review; on approval the optional classification
// fields are attached.
func (s *ProposalService) RecordHeadDecision(ctx context.Context, setID, proposalID string, req dto.ReviewDecisionRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleHead && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	set, group, err := s.loadSetAndGroup(ctx, setID)
	if err != nil {
		return nil, err
	}
	entry, err := s.loadEntry(ctx, setID, proposalID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EntryStatusHeadReview {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "entry is not awaiting head review")
	}

	toStatus := models.EntryStatusHeadApproved
	if req.Decision == models.DecisionRejected {
		toStatus = models.EntryStatusHeadRejected
	}
	now := time.Now().UTC()
	params := repository.DecisionParams{
		SetID:      setID,
		ProposalID: proposalID,
		Stage:      models.ReviewStageHead,
		ReviewerID: actor.UserID,
		Decision:   req.Decision,
		Notes:      optionalString(req.Notes),
		FromStatus: models.EntryStatusHeadReview,
		ToStatus:   toStatus,
		DecidedAt:  now,
	}
	if req.Decision == models.DecisionApproved {
		params.Agenda = optionalString(req.Agenda)
		params.ESG = optionalString(req.ESG)
		params.SDG = optionalString(req.SDG)
	}
	if err := s.repo.RecordDecision(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "entry is not awaiting head review")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record head decision")
	}

	updated, err := s.refreshSetWorkflow(ctx, setID)
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, actor, models.AuditActionHeadDecision, proposalID, map[string]interface{}{"decision": req.Decision, "set_id": setID})
	entry.Status = toStatus
	if s.notifier != nil {
		s.notifier.HeadDecided(set, entry, group, req.Decision)
	}
	s.publishChange(ctx, set.GroupID, setID, "head_decision")

	view := s.viewOf(updated)
	return &view, nil
}

// MarkAsThesis locks one head-approved entry as the group's official thesis
// topic and archives the set. At most one entry may ever hold the lock; the
// conditional write surfaces concurrent lockers as a conflict.
func (s *ProposalService) MarkAsThesis(ctx context.Context, setID string, req dto.MarkAsThesisRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lock payload")
	}

	set, group, err := s.loadSetAndGroup(ctx, setID)
	if err != nil {
		return nil, err
	}
	if err := requireLeader(group, actor); err != nil {
		return nil, err
	}
	entry, err := s.loadEntry(ctx, setID, req.ProposalID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EntryStatusHeadApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only a head-approved topic can become the thesis title")
	}

	now := time.Now().UTC()
	if err := s.repo.LockEntry(ctx, setID, req.ProposalID, actor.UserID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSetLocked, "proposal set already has a locked entry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock proposal entry")
	}

	set.LockedEntryID = &req.ProposalID
	set.UsedBy = &actor.UserID
	set.UsedAsThesisAt = &now
	set.Status = models.SetStatusArchived
	set.UpdatedAt = now

	s.emitAudit(ctx, actor, models.AuditActionThesisLock, req.ProposalID, map[string]interface{}{"set_id": setID})
	if s.notifier != nil {
		s.notifier.ThesisLocked(set, entry, group)
	}
	s.publishChange(ctx, set.GroupID, setID, "thesis_locked")

	view := s.viewOf(set)
	return &view, nil
}

// ReviewHistory returns the append-only decision log of a set.
func (s *ProposalService) ReviewHistory(ctx context.Context, setID string, actor *models.JWTClaims) ([]models.ProposalReview, error) {
	set, group, err := s.loadSetAndGroup(ctx, setID)
	if err != nil {
		return nil, err
	}
	if err := s.requireGroupAccess(ctx, group, actor); err != nil {
		return nil, err
	}
	reviews, err := s.repo.ListReviews(ctx, set.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review history")
	}
	return reviews, nil
}

func (s *ProposalService) refreshSetWorkflow(ctx context.Context, setID string) (*models.ProposalSet, error) {
	set, err := s.repo.GetSetByID(ctx, setID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload proposal set")
	}
	summary := SummarizeProposalEntries(set.Entries)
	status := summary.WorkflowState
	if IsProposalSetArchived(set) {
		status = models.SetStatusArchived
	}
	if err := s.repo.UpdateSetWorkflow(ctx, setID, status, summary.AwaitingModerator, summary.AwaitingHead); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update set workflow state")
	}
	set.Status = status
	set.AwaitingModerator = summary.AwaitingModerator
	set.AwaitingHead = summary.AwaitingHead
	return set, nil
}

func (s *ProposalService) viewOf(set *models.ProposalSet) dto.ProposalSetView {
	return dto.ProposalSetView{
		ProposalSet: *set,
		Summary:     SummarizeProposalEntries(set.Entries),
		CanEdit:     !IsProposalSetArchived(set) && CanEditProposalSet(set),
	}
}

func (s *ProposalService) loadGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

func (s *ProposalService) loadSetAndGroup(ctx context.Context, setID string) (*models.ProposalSet, *models.Group, error) {
	set, err := s.repo.GetSetByID(ctx, setID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "proposal set not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal set")
	}
	group, err := s.loadGroup(ctx, set.GroupID)
	if err != nil {
		return nil, nil, err
	}
	return set, group, nil
}

func (s *ProposalService) loadEntry(ctx context.Context, setID, entryID string) (*models.ProposalEntry, error) {
	entry, err := s.repo.GetEntry(ctx, setID, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal entry")
	}
	return entry, nil
}

func (s *ProposalService) requireGroupAccess(ctx context.Context, group *models.Group, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleModerator, models.RoleHead:
		return nil
	case models.RoleAdviser:
		if group.AdviserID != nil && *group.AdviserID == actor.UserID {
			return nil
		}
	case models.RoleStudent:
		member, err := s.groups.IsMember(ctx, group.ID, actor.UserID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
		}
		if member {
			return nil
		}
	}
	return appErrors.ErrForbidden
}

func requireLeader(group *models.Group, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if group.LeaderID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the group leader may do this")
	}
	return nil
}

func proposalSetCacheKey(setID string) string {
	return "proposal-set:" + setID
}

func (s *ProposalService) publishChange(ctx context.Context, groupID, setID, event string) {
	if err := s.cache.Invalidate(ctx, proposalSetCacheKey(setID)); err != nil {
		s.logger.Warn("Proposal set cache invalidation failed", zap.String("set_id", setID), zap.Error(err))
	}
	if s.publisher == nil {
		return
	}
	s.publisher.PublishSetChanged(ctx, dto.ProposalSetEvent{GroupID: groupID, SetID: setID, Event: event})
}

func (s *ProposalService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, payload map[string]interface{}) {
	if s.audit == nil {
		return
	}
	body, _ := json.Marshal(payload)
	log := &models.AuditLog{
		Action:     action,
		Resource:   "proposal",
		ResourceID: &resourceID,
		NewValues:  body,
		IPAddress:  "system",
		UserAgent:  "proposal-service",
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
