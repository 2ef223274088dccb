package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesisflow-api/internal/models"
	appErrors "github.com/noah-isme/thesisflow-api/pkg/errors"
	"github.com/noah-isme/thesisflow-api/pkg/storage"
)

type exportProposalStub struct {
	sets    map[string]*models.ProposalSet
	reviews []models.ProposalReview
}

func (e *exportProposalStub) GetSetByID(ctx context.Context, id string) (*models.ProposalSet, error) {
	set, ok := e.sets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return set, nil
}

func (e *exportProposalStub) ListSetsByGroup(ctx context.Context, groupID string) ([]models.ProposalSet, error) {
	result := make([]models.ProposalSet, 0)
	for _, set := range e.sets {
		if set.GroupID == groupID {
			result = append(result, *set)
		}
	}
	return result, nil
}

func (e *exportProposalStub) ListReviews(ctx context.Context, setID string) ([]models.ProposalReview, error) {
	return e.reviews, nil
}

type exportGroupStub struct {
	group *models.Group
}

func (e *exportGroupStub) GetByID(ctx context.Context, id string) (*models.Group, error) {
	if e.group == nil || e.group.ID != id {
		return nil, sql.ErrNoRows
	}
	return e.group, nil
}

func newTestExportService(t *testing.T, proposals *exportProposalStub, groups *exportGroupStub) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(proposals, groups, store, signer, nil)
}

func TestExportGroupHistoryCSV(t *testing.T) {
	locked := "entry-1"
	proposals := &exportProposalStub{
		sets: map[string]*models.ProposalSet{
			"set-1": {
				ID:            "set-1",
				GroupID:       "g1",
				Cycle:         1,
				Status:        models.SetStatusArchived,
				LockedEntryID: &locked,
				Entries: []models.ProposalEntry{
					{ID: "entry-1", Title: "Topic A", Status: models.EntryStatusHeadApproved},
					{ID: "entry-2", Title: "Topic B", Status: models.EntryStatusHeadRejected},
				},
			},
		},
	}
	groups := &exportGroupStub{group: &models.Group{ID: "g1", Name: "Alpha"}}
	svc := newTestExportService(t, proposals, groups)

	head := &models.JWTClaims{UserID: "head-1", Role: models.RoleHead}
	result, err := svc.ExportGroupHistory(context.Background(), "g1", "csv", head)
	require.NoError(t, err)
	assert.Equal(t, "csv", result.Format)
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))
	assert.Contains(t, result.DownloadURL, "token=")
	assert.True(t, result.ExpiresAt.After(time.Now()))
}

func TestExportRejectsStudents(t *testing.T) {
	svc := newTestExportService(t, &exportProposalStub{}, &exportGroupStub{})

	student := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}
	_, err := svc.ExportGroupHistory(context.Background(), "g1", "csv", student)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestExportUnsupportedFormat(t *testing.T) {
	proposals := &exportProposalStub{sets: map[string]*models.ProposalSet{}}
	groups := &exportGroupStub{group: &models.Group{ID: "g1", Name: "Alpha"}}
	svc := newTestExportService(t, proposals, groups)

	head := &models.JWTClaims{UserID: "head-1", Role: models.RoleHead}
	_, err := svc.ExportGroupHistory(context.Background(), "g1", "docx", head)
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestResolveDownloadRoundTrip(t *testing.T) {
	proposals := &exportProposalStub{
		sets: map[string]*models.ProposalSet{
			"set-1": {ID: "set-1", GroupID: "g1", Cycle: 1},
		},
	}
	groups := &exportGroupStub{group: &models.Group{ID: "g1", Name: "Alpha"}}
	svc := newTestExportService(t, proposals, groups)

	head := &models.JWTClaims{UserID: "head-1", Role: models.RoleHead}
	result, err := svc.ExportReviewLog(context.Background(), "set-1", "csv", head)
	require.NoError(t, err)

	token := result.DownloadURL[strings.Index(result.DownloadURL, "token=")+len("token="):]
	filename, err := svc.ResolveDownload(token)
	require.NoError(t, err)
	assert.Equal(t, result.Filename, filename)

	_, err = svc.ResolveDownload("not-a-token")
	require.Error(t, err)
}
