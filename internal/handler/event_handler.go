package handler

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesisflow-api/internal/dto"
	"github.com/noah-isme/thesisflow-api/internal/models"
	appErrors "github.com/noah-isme/thesisflow-api/pkg/errors"
	"github.com/noah-isme/thesisflow-api/pkg/response"
)

type realtimeService interface {
	Subscribe(ctx context.Context, groupID string) (<-chan dto.ProposalSetEvent, func(), error)
}

type setSnapshotter interface {
	ListByGroup(ctx context.Context, groupID string, actor *models.JWTClaims) ([]dto.ProposalSetView, error)
}

// EventHandler streams proposal set changes to clients over SSE. Each
// message carries the group's full current set list, so a client replaces
// its state wholesale instead of patching individual events together.
type EventHandler struct {
	realtime realtimeService
	sets     setSnapshotter
}

// NewEventHandler constructs the handler.
func NewEventHandler(realtime realtimeService, sets setSnapshotter) *EventHandler {
	return &EventHandler{realtime: realtime, sets: sets}
}

// Stream godoc
// @Summary Subscribe to live proposal set updates for a group
// @Description Emits the group's full proposal set list on connect and
// @Description again after every workflow change.
// @Tags Events
// @Produce text/event-stream
// @Param groupId path string true "Group ID"
// @Router /groups/{groupId}/events [get]
func (h *EventHandler) Stream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	groupID := c.Param("groupId")

	// The snapshot load doubles as the access check.
	snapshot, err := h.sets.ListByGroup(c.Request.Context(), groupID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	events, cancel, err := h.realtime.Subscribe(c.Request.Context(), groupID)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "realtime updates unavailable"))
		return
	}
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("proposal-sets", snapshot)
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case _, ok := <-events:
			if !ok {
				return false
			}
			current, err := h.sets.ListByGroup(c.Request.Context(), groupID, claims)
			if err != nil {
				return false
			}
			c.SSEvent("proposal-sets", current)
			return true
		}
	})
}
