package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/thesisflow-api/internal/dto"
	"github.com/noah-isme/thesisflow-api/internal/models"
	appErrors "github.com/noah-isme/thesisflow-api/pkg/errors"
)

type groupManager interface {
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id string) (*models.Group, error)
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// GroupService manages thesis group registration and membership.
type GroupService struct {
	repo      groupManager
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs the service.
func NewGroupService(repo groupManager, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Create registers a new group. Admins and the department head may create.
func (s *GroupService) Create(ctx context.Context, req dto.CreateGroupRequest, actor *models.JWTClaims) (*models.Group, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}

	group := &models.Group{
		Name:      req.Name,
		Course:    req.Course,
		Section:   req.Section,
		LeaderID:  req.LeaderID,
		MemberIDs: req.MemberIDs,
	}
	if req.AdviserID != "" {
		v := req.AdviserID
		group.AdviserID = &v
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}

	s.emitAudit(ctx, actor, models.AuditActionGroupCreate, group.ID, map[string]interface{}{"name": group.Name})
	return group, nil
}

// Update replaces group metadata and membership.
func (s *GroupService) Update(ctx context.Context, id string, req dto.UpdateGroupRequest, actor *models.JWTClaims) (*models.Group, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}

	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	group.Name = req.Name
	group.Course = req.Course
	group.Section = req.Section
	group.LeaderID = req.LeaderID
	group.MemberIDs = req.MemberIDs
	group.AdviserID = nil
	if req.AdviserID != "" {
		v := req.AdviserID
		group.AdviserID = &v
	}

	if err := s.repo.Update(ctx, group); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}

	s.emitAudit(ctx, actor, models.AuditActionGroupUpdate, group.ID, map[string]interface{}{"name": group.Name})
	return group, nil
}

// GetByID returns one group the actor may see.
func (s *GroupService) GetByID(ctx context.Context, id string, actor *models.JWTClaims) (*models.Group, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if actor.Role == models.RoleStudent {
		member, err := s.repo.IsMember(ctx, id, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
		}
		if !member {
			return nil, appErrors.ErrForbidden
		}
	}
	if actor.Role == models.RoleAdviser && (group.AdviserID == nil || *group.AdviserID != actor.UserID) {
		return nil, appErrors.ErrForbidden
	}
	return group, nil
}

// List returns groups visible to the actor. Students and advisers see only
// their own groups, staff roles see everything.
func (s *GroupService) List(ctx context.Context, query dto.GroupQuery, actor *models.JWTClaims) ([]models.Group, int, error) {
	if actor == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	filter := models.GroupFilter{
		Course:   query.Course,
		Section:  query.Section,
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	switch actor.Role {
	case models.RoleStudent:
		filter.MemberID = actor.UserID
	case models.RoleAdviser:
		filter.AdviserID = actor.UserID
	}
	groups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, total, nil
}

func requireStaff(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleHead {
		return appErrors.ErrForbidden
	}
	return nil
}

// GroupsForUser lists the groups a user belongs to or advises. Staff roles
// get an empty result; their view is the full listing.
func (s *GroupService) GroupsForUser(ctx context.Context, userID string, role models.UserRole) ([]models.Group, error) {
	filter := models.GroupFilter{Page: 1, PageSize: 50}
	switch role {
	case models.RoleStudent:
		filter.MemberID = userID
	case models.RoleAdviser:
		filter.AdviserID = userID
	default:
		return nil, nil
	}
	groups, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list user groups")
	}
	return groups, nil
}

func (s *GroupService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, payload map[string]interface{}) {
	if s.audit == nil {
		return
	}
	body, _ := json.Marshal(payload)
	log := &models.AuditLog{
		Action:     action,
		Resource:   "group",
		ResourceID: &resourceID,
		NewValues:  body,
		IPAddress:  "system",
		UserAgent:  "group-service",
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
