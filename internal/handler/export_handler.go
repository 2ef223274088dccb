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

type exportService interface {
	ExportGroupHistory(ctx context.Context, groupID, format string, actor *models.JWTClaims) (*dto.ExportResponse, error)
	ExportReviewLog(ctx context.Context, setID, format string, actor *models.JWTClaims) (*dto.ExportResponse, error)
	ResolveDownload(token string) (string, error)
	FilePath(filename string) string
}

// ExportHandler exposes report generation and signed downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// GroupHistory godoc
// @Summary Export the proposal history of a group
// @Tags Exports
// @Produce json
// @Param groupId path string true "Group ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {object} response.Envelope
// @Router /groups/{groupId}/exports/history [post]
func (h *ExportHandler) GroupHistory(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.ExportGroupHistory(c.Request.Context(), c.Param("groupId"), c.DefaultQuery("format", "csv"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ReviewLog godoc
// @Summary Export the review log of a proposal set
// @Tags Exports
// @Produce json
// @Param id path string true "Proposal set ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {object} response.Envelope
// @Router /proposal-sets/{id}/exports/reviews [post]
func (h *ExportHandler) ReviewLog(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.ExportReviewLog(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a previously generated export
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing download token"))
		return
	}
	filename, err := h.service.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(h.service.FilePath(filename), filename)
}
