package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/thesisflow-api/internal/dto"
	"github.com/noah-isme/thesisflow-api/internal/middleware"
	"github.com/noah-isme/thesisflow-api/internal/models"
	appErrors "github.com/noah-isme/thesisflow-api/pkg/errors"
)

type proposalServiceMock struct {
	view    *dto.ProposalSetView
	views   []dto.ProposalSetView
	reviews []models.ProposalReview
	err     error

	lastSetID      string
	lastProposalID string
	lastDecision   dto.ReviewDecisionRequest
}

func (m *proposalServiceMock) ListByGroup(ctx context.Context, groupID string, actor *models.JWTClaims) ([]dto.ProposalSetView, error) {
	return m.views, m.err
}

func (m *proposalServiceMock) GetSet(ctx context.Context, setID string, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	m.lastSetID = setID
	return m.view, m.err
}

func (m *proposalServiceMock) ListPending(ctx context.Context, actor *models.JWTClaims) ([]dto.ProposalSetView, error) {
	return m.views, m.err
}

func (m *proposalServiceMock) CreateSet(ctx context.Context, groupID string, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	return m.view, m.err
}

func (m *proposalServiceMock) UpdateDraftEntries(ctx context.Context, setID string, req dto.UpdateDraftEntriesRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	m.lastSetID = setID
	return m.view, m.err
}

func (m *proposalServiceMock) SubmitSet(ctx context.Context, setID string, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	m.lastSetID = setID
	return m.view, m.err
}

func (m *proposalServiceMock) RecordModeratorDecision(ctx context.Context, setID, proposalID string, req dto.ReviewDecisionRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	m.lastSetID = setID
	m.lastProposalID = proposalID
	m.lastDecision = req
	return m.view, m.err
}

func (m *proposalServiceMock) RecordHeadDecision(ctx context.Context, setID, proposalID string, req dto.ReviewDecisionRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	m.lastSetID = setID
	m.lastProposalID = proposalID
	m.lastDecision = req
	return m.view, m.err
}

func (m *proposalServiceMock) MarkAsThesis(ctx context.Context, setID string, req dto.MarkAsThesisRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error) {
	m.lastSetID = setID
	return m.view, m.err
}

func (m *proposalServiceMock) ReviewHistory(ctx context.Context, setID string, actor *models.JWTClaims) ([]models.ProposalReview, error) {
	return m.reviews, m.err
}

func sampleView() *dto.ProposalSetView {
	return &dto.ProposalSetView{
		ProposalSet: models.ProposalSet{ID: "set-1", GroupID: "g1", Cycle: 1, Status: models.SetStatusDraft},
		CanEdit:     true,
	}
}

func proposalTestContext(method, path string, body []byte, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "leader-1", Role: models.RoleStudent})
	return c, w
}

func TestProposalHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{view: sampleView()}
	h := NewProposalHandler(mockSvc)

	c, w := proposalTestContext(http.MethodPost, "/groups/g1/proposal-sets", nil,
		gin.Params{{Key: "groupId", Value: "g1"}})

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestProposalHandlerSubmitPassesSetID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{view: sampleView()}
	h := NewProposalHandler(mockSvc)

	c, w := proposalTestContext(http.MethodPost, "/proposal-sets/set-1/submit", nil,
		gin.Params{{Key: "id", Value: "set-1"}})

	h.Submit(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "set-1", mockSvc.lastSetID)
}

func TestProposalHandlerModeratorDecision(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{view: sampleView()}
	h := NewProposalHandler(mockSvc)

	payload, _ := json.Marshal(dto.ReviewDecisionRequest{Decision: models.DecisionApproved, Notes: "looks good"})
	c, w := proposalTestContext(http.MethodPost, "/proposal-sets/set-1/entries/entry-1/moderator-decision", payload,
		gin.Params{{Key: "id", Value: "set-1"}, {Key: "proposalId", Value: "entry-1"}})

	h.ModeratorDecision(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "set-1", mockSvc.lastSetID)
	require.Equal(t, "entry-1", mockSvc.lastProposalID)
	require.Equal(t, models.DecisionApproved, mockSvc.lastDecision.Decision)
}

func TestProposalHandlerDecisionInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{view: sampleView()}
	h := NewProposalHandler(mockSvc)

	c, w := proposalTestContext(http.MethodPost, "/proposal-sets/set-1/entries/entry-1/head-decision", []byte("{invalid"),
		gin.Params{{Key: "id", Value: "set-1"}, {Key: "proposalId", Value: "entry-1"}})

	h.HeadDecision(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProposalHandlerConflictSurfacesStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{err: appErrors.ErrInvalidTransition}
	h := NewProposalHandler(mockSvc)

	c, w := proposalTestContext(http.MethodPost, "/proposal-sets/set-1/submit", nil,
		gin.Params{{Key: "id", Value: "set-1"}})

	h.Submit(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestProposalHandlerUnauthorizedWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &proposalServiceMock{view: sampleView()}
	h := NewProposalHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/proposal-sets/set-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "set-1"}}

	h.Get(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProposalHandlerMarkAsThesis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	locked := "entry-1"
	view := sampleView()
	view.LockedEntryID = &locked
	view.Status = models.SetStatusArchived
	mockSvc := &proposalServiceMock{view: view}
	h := NewProposalHandler(mockSvc)

	payload, _ := json.Marshal(dto.MarkAsThesisRequest{ProposalID: "entry-1"})
	c, w := proposalTestContext(http.MethodPost, "/proposal-sets/set-1/mark-as-thesis", payload,
		gin.Params{{Key: "id", Value: "set-1"}})

	h.MarkAsThesis(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.ProposalSetView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, models.SetStatusArchived, envelope.Data.Status)
}
