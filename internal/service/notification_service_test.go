package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesisflow-api/internal/models"
	appErrors "github.com/noah-isme/thesisflow-api/pkg/errors"
	"github.com/noah-isme/thesisflow-api/pkg/jobs"
)

type notificationRepoStub struct {
	created []*models.Notification
	read    map[string]bool
	failing bool
}

func newNotificationRepoStub() *notificationRepoStub {
	return &notificationRepoStub{read: make(map[string]bool)}
}

func (n *notificationRepoStub) Create(ctx context.Context, notification *models.Notification) error {
	if n.failing {
		return sql.ErrConnDone
	}
	n.created = append(n.created, notification)
	return nil
}

func (n *notificationRepoStub) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	result := make([]models.Notification, 0)
	for _, created := range n.created {
		if created.RecipientID != filter.RecipientID {
			continue
		}
		if filter.UnreadOnly && created.Read {
			continue
		}
		result = append(result, *created)
	}
	return result, nil
}

func (n *notificationRepoStub) MarkRead(ctx context.Context, id, recipientID string) error {
	for _, created := range n.created {
		if created.ID == id && created.RecipientID == recipientID {
			created.Read = true
			return nil
		}
	}
	return sql.ErrNoRows
}

type recipientStoreStub struct {
	members map[string][]string
	byRole  map[models.UserRole][]string
}

func (r *recipientStoreStub) MemberIDs(ctx context.Context, groupID string) ([]string, error) {
	return r.members[groupID], nil
}

func (r *recipientStoreStub) UsersByRole(ctx context.Context, role models.UserRole) ([]string, error) {
	return r.byRole[role], nil
}

func newTestNotificationService(repo *notificationRepoStub, recipients *recipientStoreStub) *NotificationService {
	return NewNotificationService(repo, recipients, jobs.QueueConfig{Workers: 1}, nil)
}

func TestHandleJobPersistsPerRecipient(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := newTestNotificationService(repo, &recipientStoreStub{})

	err := svc.handleJob(context.Background(), jobs.Job{
		ID:   "job-1",
		Type: string(models.NotificationProposalSubmitted),
		Payload: notificationJob{
			Recipients: []string{"mod-1", "mod-2"},
			Type:       models.NotificationProposalSubmitted,
			Title:      "New proposal set submitted",
			Body:       "Group Alpha submitted proposal cycle 1 for moderation.",
		},
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 2)
	assert.Equal(t, "mod-1", repo.created[0].RecipientID)
	assert.Equal(t, models.NotificationProposalSubmitted, repo.created[0].Type)
}

func TestHandleJobIgnoresUnknownPayload(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := newTestNotificationService(repo, &recipientStoreStub{})

	err := svc.handleJob(context.Background(), jobs.Job{ID: "job-1", Payload: "garbage"})
	require.NoError(t, err)
	require.Empty(t, repo.created)
}

func TestGroupRecipientsDedupesLeaderAndAdviser(t *testing.T) {
	repo := newNotificationRepoStub()
	recipients := &recipientStoreStub{
		members: map[string][]string{"g1": {"leader-1", "member-2"}},
	}
	svc := newTestNotificationService(repo, recipients)

	adviser := "adviser-9"
	group := &models.Group{ID: "g1", LeaderID: "leader-1", AdviserID: &adviser}
	ids := svc.groupRecipients(group)
	assert.ElementsMatch(t, []string{"leader-1", "member-2", "adviser-9"}, ids)
}

func TestModeratorApprovalNotifiesHeadsAndGroup(t *testing.T) {
	repo := newNotificationRepoStub()
	recipients := &recipientStoreStub{
		members: map[string][]string{"g1": {"leader-1", "member-2"}},
		byRole:  map[models.UserRole][]string{models.RoleHead: {"head-1", "adviser-9"}},
	}
	svc := newTestNotificationService(repo, recipients)

	adviser := "adviser-9"
	group := &models.Group{ID: "g1", LeaderID: "leader-1", AdviserID: &adviser}
	ids := svc.moderatorApprovalRecipients(group)
	assert.ElementsMatch(t, []string{"head-1", "adviser-9", "leader-1", "member-2"}, ids)
}

func TestNotificationListScopedToCaller(t *testing.T) {
	repo := newNotificationRepoStub()
	repo.created = []*models.Notification{
		{ID: "n1", RecipientID: "user-1", Read: false},
		{ID: "n2", RecipientID: "user-1", Read: true},
		{ID: "n3", RecipientID: "user-2", Read: false},
	}
	svc := newTestNotificationService(repo, &recipientStoreStub{})

	actor := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	items, err := svc.List(context.Background(), actor, true, 50, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "n1", items[0].ID)
}

func TestMarkReadUnknownNotification(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := newTestNotificationService(repo, &recipientStoreStub{})

	actor := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	err := svc.MarkRead(context.Background(), "missing", actor)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
