package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesisflow-api/internal/dto"
	"github.com/noah-isme/thesisflow-api/internal/models"
	appErrors "github.com/noah-isme/thesisflow-api/pkg/errors"
	"github.com/noah-isme/thesisflow-api/pkg/response"
)

type proposalService interface {
	ListByGroup(ctx context.Context, groupID string, actor *models.JWTClaims) ([]dto.ProposalSetView, error)
	GetSet(ctx context.Context, setID string, actor *models.JWTClaims) (*dto.ProposalSetView, error)
	ListPending(ctx context.Context, actor *models.JWTClaims) ([]dto.ProposalSetView, error)
	CreateSet(ctx context.Context, groupID string, actor *models.JWTClaims) (*dto.ProposalSetView, error)
	UpdateDraftEntries(ctx context.Context, setID string, req dto.UpdateDraftEntriesRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error)
	SubmitSet(ctx context.Context, setID string, actor *models.JWTClaims) (*dto.ProposalSetView, error)
	RecordModeratorDecision(ctx context.Context, setID, proposalID string, req dto.ReviewDecisionRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error)
	RecordHeadDecision(ctx context.Context, setID, proposalID string, req dto.ReviewDecisionRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error)
	MarkAsThesis(ctx context.Context, setID string, req dto.MarkAsThesisRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error)
	ReviewHistory(ctx context.Context, setID string, actor *models.JWTClaims) ([]models.ProposalReview, error)
}

// ProposalHandler exposes REST endpoints for the topic proposal workflow.
type ProposalHandler struct {
	service proposalService
}

// NewProposalHandler constructs the handler.
func NewProposalHandler(service proposalService) *ProposalHandler {
	return &ProposalHandler{service: service}
}

// ListByGroup godoc
// @Summary List proposal sets of a group
// @Tags Proposals
// @Produce json
// @Param groupId path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{groupId}/proposal-sets [get]
func (h *ProposalHandler) ListByGroup(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	views, err := h.service.ListByGroup(c.Request.Context(), c.Param("groupId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Get godoc
// @Summary Get one proposal set with its workflow summary
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal set ID"
// @Success 200 {object} response.Envelope
// @Router /proposal-sets/{id} [get]
func (h *ProposalHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.service.GetSet(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ListPending godoc
// @Summary List proposal sets awaiting the caller's review stage
// @Tags Proposals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /proposal-sets/pending [get]
func (h *ProposalHandler) ListPending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	views, err := h.service.ListPending(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Create godoc
// @Summary Open a new proposal cycle for a group
// @Tags Proposals
// @Produce json
// @Param groupId path string true "Group ID"
// @Success 201 {object} response.Envelope
// @Router /groups/{groupId}/proposal-sets [post]
func (h *ProposalHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.service.CreateSet(c.Request.Context(), c.Param("groupId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, view, nil)
}

// UpdateEntries godoc
// @Summary Replace the draft topics of a set
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal set ID"
// @Param payload body dto.UpdateDraftEntriesRequest true "Draft entries"
// @Success 200 {object} response.Envelope
// @Router /proposal-sets/{id}/entries [put]
func (h *ProposalHandler) UpdateEntries(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateDraftEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid entries payload"))
		return
	}
	view, err := h.service.UpdateDraftEntries(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Submit godoc
// @Summary Submit a proposal set for moderation
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal set ID"
// @Success 200 {object} response.Envelope
// @Router /proposal-sets/{id}/submit [post]
func (h *ProposalHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.service.SubmitSet(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ModeratorDecision godoc
// @Summary Record a moderator decision on one entry
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal set ID"
// @Param proposalId path string true "Proposal entry ID"
// @Param payload body dto.ReviewDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /proposal-sets/{id}/entries/{proposalId}/moderator-decision [post]
func (h *ProposalHandler) ModeratorDecision(c *gin.Context) {
	h.decide(c, h.service.RecordModeratorDecision)
}

// HeadDecision godoc
// @Summary Record a head decision on one entry
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal set ID"
// @Param proposalId path string true "Proposal entry ID"
// @Param payload body dto.ReviewDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /proposal-sets/{id}/entries/{proposalId}/head-decision [post]
func (h *ProposalHandler) HeadDecision(c *gin.Context) {
	h.decide(c, h.service.RecordHeadDecision)
}

func (h *ProposalHandler) decide(c *gin.Context, record func(ctx context.Context, setID, proposalID string, req dto.ReviewDecisionRequest, actor *models.JWTClaims) (*dto.ProposalSetView, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	view, err := record(c.Request.Context(), c.Param("id"), c.Param("proposalId"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// MarkAsThesis godoc
// @Summary Lock an approved entry as the official thesis title
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal set ID"
// @Param payload body dto.MarkAsThesisRequest true "Entry to lock"
// @Success 200 {object} response.Envelope
// @Router /proposal-sets/{id}/mark-as-thesis [post]
func (h *ProposalHandler) MarkAsThesis(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.MarkAsThesisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid lock payload"))
		return
	}
	view, err := h.service.MarkAsThesis(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Reviews godoc
// @Summary List the decision history of a set
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal set ID"
// @Success 200 {object} response.Envelope
// @Router /proposal-sets/{id}/reviews [get]
func (h *ProposalHandler) Reviews(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reviews, err := h.service.ReviewHistory(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, nil)
}
