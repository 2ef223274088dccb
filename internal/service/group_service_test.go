package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesisflow-api/internal/models"
)

type groupManagerStub struct {
	groups     []models.Group
	lastFilter models.GroupFilter
}

func (g *groupManagerStub) Create(ctx context.Context, group *models.Group) error { return nil }
func (g *groupManagerStub) Update(ctx context.Context, group *models.Group) error { return nil }
func (g *groupManagerStub) GetByID(ctx context.Context, id string) (*models.Group, error) {
	return nil, nil
}

func (g *groupManagerStub) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error) {
	g.lastFilter = filter
	return g.groups, len(g.groups), nil
}

func (g *groupManagerStub) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	return false, nil
}

func TestGroupsForUserFiltersByMembership(t *testing.T) {
	repo := &groupManagerStub{groups: []models.Group{{ID: "g1", LeaderID: "leader-1"}}}
	svc := NewGroupService(repo, &auditStub{}, nil, nil)

	groups, err := svc.GroupsForUser(context.Background(), "leader-1", models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "leader-1", repo.lastFilter.MemberID)
	require.Empty(t, repo.lastFilter.AdviserID)
}

func TestGroupsForUserFiltersByAdviser(t *testing.T) {
	repo := &groupManagerStub{groups: []models.Group{{ID: "g1"}}}
	svc := NewGroupService(repo, &auditStub{}, nil, nil)

	_, err := svc.GroupsForUser(context.Background(), "adviser-9", models.RoleAdviser)
	require.NoError(t, err)
	require.Equal(t, "adviser-9", repo.lastFilter.AdviserID)
	require.Empty(t, repo.lastFilter.MemberID)
}

func TestGroupsForUserEmptyForStaff(t *testing.T) {
	repo := &groupManagerStub{groups: []models.Group{{ID: "g1"}}}
	svc := NewGroupService(repo, &auditStub{}, nil, nil)

	groups, err := svc.GroupsForUser(context.Background(), "head-1", models.RoleHead)
	require.NoError(t, err)
	require.Empty(t, groups)
	require.Empty(t, repo.lastFilter.MemberID)
	require.Empty(t, repo.lastFilter.AdviserID)
}
