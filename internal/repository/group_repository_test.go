package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesisflow-api/internal/models"
)

func TestGroupGetByIDLoadsMembers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)
	now := time.Now()

	groupRows := sqlmock.NewRows([]string{"id", "name", "course", "section", "leader_id", "adviser_id", "created_at", "updated_at"}).
		AddRow("g1", "Alpha", "BSCS", "4A", "leader-1", nil, now, now)
	mock.ExpectQuery(`SELECT id, name, course, section, leader_id, adviser_id, created_at, updated_at\s+FROM thesis_groups WHERE id = \$1`).
		WithArgs("g1").
		WillReturnRows(groupRows)

	memberRows := sqlmock.NewRows([]string{"user_id"}).
		AddRow("leader-1").
		AddRow("member-2")
	mock.ExpectQuery(`SELECT user_id FROM group_members WHERE group_id = \$1`).
		WithArgs("g1").
		WillReturnRows(memberRows)

	group, err := repo.GetByID(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", group.Name)
	assert.Equal(t, []string{"leader-1", "member-2"}, group.MemberIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupCreateInsertsMembers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO thesis_groups`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO group_members`).
		WithArgs(sqlmock.AnyArg(), "leader-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO group_members`).
		WithArgs(sqlmock.AnyArg(), "member-2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	group := &models.Group{
		Name:      "Alpha",
		Course:    "BSCS",
		Section:   "4A",
		LeaderID:  "leader-1",
		MemberIDs: []string{"member-2", "leader-1"},
	}
	err := repo.Create(context.Background(), group)
	require.NoError(t, err)
	require.NotEmpty(t, group.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupIsMember(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("g1", "member-2").
		WillReturnRows(rows)

	member, err := repo.IsMember(context.Background(), "g1", "member-2")
	require.NoError(t, err)
	assert.True(t, member)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupListFiltersByMember(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)
	now := time.Now()

	listRows := sqlmock.NewRows([]string{"id", "name", "course", "section", "leader_id", "adviser_id", "created_at", "updated_at"}).
		AddRow("g1", "Alpha", "BSCS", "4A", "leader-1", nil, now, now)
	mock.ExpectQuery(`SELECT id, name, course, section, leader_id, adviser_id, created_at, updated_at FROM thesis_groups`).
		WithArgs("member-2").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM thesis_groups`).
		WithArgs("member-2").
		WillReturnRows(countRows)

	groups, total, err := repo.List(context.Background(), models.GroupFilter{MemberID: "member-2", Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, groups, 1)
	assert.Equal(t, "g1", groups[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
