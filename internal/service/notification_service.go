package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/thesisflow-api/internal/models"
	appErrors "github.com/noah-isme/thesisflow-api/pkg/errors"
	"github.com/noah-isme/thesisflow-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
}

type recipientStore interface {
	MemberIDs(ctx context.Context, groupID string) ([]string, error)
	UsersByRole(ctx context.Context, role models.UserRole) ([]string, error)
}

// NotificationPublisher pushes stored notifications onto per-user realtime
// channels. Optional: a nil publisher means inbox-only delivery.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, userID string, notification *models.Notification)
}

type notificationJob struct {
	Recipients []string
	Type       models.NotificationType
	Title      string
	Body       string
	Payload    map[string]interface{}
}

// NotificationService persists workflow notifications and serves the inbox.
// Dispatch runs on a background queue so a slow insert never blocks the
// workflow write that triggered it.
type NotificationService struct {
	repo       notificationStore
	recipients recipientStore
	publisher  NotificationPublisher
	queue      *jobs.Queue
	logger     *zap.Logger
}

// NotificationServiceOption customises optional collaborators.
type NotificationServiceOption func(*NotificationService)

// WithNotificationPublisher enables realtime delivery of stored rows.
func WithNotificationPublisher(publisher NotificationPublisher) NotificationServiceOption {
	return func(s *NotificationService) {
		s.publisher = publisher
	}
}

// NewNotificationService constructs the service. Call StartQueue before
// serving traffic and StopQueue on shutdown.
func NewNotificationService(repo notificationStore, recipients recipientStore, cfg jobs.QueueConfig, logger *zap.Logger, opts ...NotificationServiceOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		repo:       repo,
		recipients: recipients,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handleJob, cfg)
	return s
}

// StartQueue launches the dispatch workers.
func (s *NotificationService) StartQueue(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopQueue drains the dispatch workers.
func (s *NotificationService) StopQueue() {
	s.queue.Stop()
}

// List returns the caller's inbox.
func (s *NotificationService) List(ctx context.Context, actor *models.JWTClaims, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	items, err := s.repo.List(ctx, models.NotificationFilter{
		RecipientID: actor.UserID,
		UnreadOnly:  unreadOnly,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.MarkRead(ctx, id, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// ProposalSubmitted notifies moderators that a set entered their stage.
func (s *NotificationService) ProposalSubmitted(set *models.ProposalSet, group *models.Group) {
	recipients := s.roleRecipients(models.RoleModerator)
	s.enqueue(notificationJob{
		Recipients: recipients,
		Type:       models.NotificationProposalSubmitted,
		Title:      "New proposal set submitted",
		Body:       fmt.Sprintf("Group %s submitted proposal cycle %d for moderation.", group.Name, set.Cycle),
		Payload:    setPayload(set),
	})
}

// ModeratorApproved notifies heads that an entry reached final review, and
// the group that its topic advanced.
func (s *NotificationService) ModeratorApproved(set *models.ProposalSet, entry *models.ProposalEntry, group *models.Group) {
	recipients := s.moderatorApprovalRecipients(group)
	s.enqueue(notificationJob{
		Recipients: recipients,
		Type:       models.NotificationModeratorApproved,
		Title:      "Proposal forwarded to head review",
		Body:       fmt.Sprintf("%q from group %s passed moderation.", entry.Title, group.Name),
		Payload:    entryPayload(set, entry),
	})
}

// ModeratorRejected notifies the group that an entry was screened out.
func (s *NotificationService) ModeratorRejected(set *models.ProposalSet, entry *models.ProposalEntry, group *models.Group) {
	s.enqueue(notificationJob{
		Recipients: s.groupRecipients(group),
		Type:       models.NotificationModeratorRejected,
		Title:      "Proposal rejected by moderator",
		Body:       fmt.Sprintf("%q was rejected during moderation.", entry.Title),
		Payload:    entryPayload(set, entry),
	})
}

// HeadDecided notifies the group of the final verdict on an entry.
func (s *NotificationService) HeadDecided(set *models.ProposalSet, entry *models.ProposalEntry, group *models.Group, decision models.ReviewDecision) {
	kind := models.NotificationHeadApproved
	title := "Proposal approved"
	body := fmt.Sprintf("%q was approved by the head reviewer.", entry.Title)
	if decision == models.DecisionRejected {
		kind = models.NotificationHeadRejected
		title = "Proposal rejected"
		body = fmt.Sprintf("%q was rejected by the head reviewer.", entry.Title)
	}
	s.enqueue(notificationJob{
		Recipients: s.groupRecipients(group),
		Type:       kind,
		Title:      title,
		Body:       body,
		Payload:    entryPayload(set, entry),
	})
}

// ThesisLocked notifies the group that the official topic is fixed.
func (s *NotificationService) ThesisLocked(set *models.ProposalSet, entry *models.ProposalEntry, group *models.Group) {
	s.enqueue(notificationJob{
		Recipients: s.groupRecipients(group),
		Type:       models.NotificationThesisTitleLocked,
		Title:      "Thesis title locked",
		Body:       fmt.Sprintf("%q is now the official thesis title of group %s.", entry.Title, group.Name),
		Payload:    entryPayload(set, entry),
	})
}

func (s *NotificationService) enqueue(job notificationJob) {
	if len(job.Recipients) == 0 {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:       uuid.NewString(),
		Type:     string(job.Type),
		Payload:  job,
		Enqueued: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("type", string(job.Type)), zap.Error(err))
	}
}

func (s *NotificationService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationJob)
	if !ok {
		s.logger.Warn("dropping notification job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	body, _ := json.Marshal(payload.Payload)
	for _, recipient := range payload.Recipients {
		n := &models.Notification{
			RecipientID: recipient,
			Type:        payload.Type,
			Title:       payload.Title,
			Body:        payload.Body,
			Payload:     body,
		}
		if err := s.repo.Create(ctx, n); err != nil {
			return fmt.Errorf("notify %s: %w", recipient, err)
		}
		if s.publisher != nil {
			s.publisher.PublishNotification(ctx, recipient, n)
		}
	}
	return nil
}

func (s *NotificationService) groupRecipients(group *models.Group) []string {
	members, err := s.recipients.MemberIDs(context.Background(), group.ID)
	if err != nil {
		s.logger.Warn("failed to resolve group members for notification", zap.String("group_id", group.ID), zap.Error(err))
		members = nil
	}
	seen := make(map[string]struct{}, len(members)+2)
	out := make([]string, 0, len(members)+2)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range members {
		add(id)
	}
	add(group.LeaderID)
	if group.AdviserID != nil {
		add(*group.AdviserID)
	}
	return out
}

// moderatorApprovalRecipients is the fan-out for a passed moderation: the
// head reviewers who must act next plus the group that owns the topic.
func (s *NotificationService) moderatorApprovalRecipients(group *models.Group) []string {
	return mergeRecipients(s.roleRecipients(models.RoleHead), s.groupRecipients(group))
}

func mergeRecipients(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func (s *NotificationService) roleRecipients(role models.UserRole) []string {
	ids, err := s.recipients.UsersByRole(context.Background(), role)
	if err != nil {
		s.logger.Warn("failed to resolve recipients by role", zap.String("role", string(role)), zap.Error(err))
		return nil
	}
	return ids
}

func setPayload(set *models.ProposalSet) map[string]interface{} {
	return map[string]interface{}{
		"set_id":   set.ID,
		"group_id": set.GroupID,
		"cycle":    set.Cycle,
	}
}

func entryPayload(set *models.ProposalSet, entry *models.ProposalEntry) map[string]interface{} {
	p := setPayload(set)
	p["entry_id"] = entry.ID
	p["title"] = entry.Title
	return p
}
