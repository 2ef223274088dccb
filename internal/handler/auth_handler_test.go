package handler

import (
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
)

type membershipResolverMock struct {
	groups     []models.Group
	err        error
	lastUserID string
	lastRole   models.UserRole
}

func (m *membershipResolverMock) GroupsForUser(ctx context.Context, userID string, role models.UserRole) ([]models.Group, error) {
	m.lastUserID = userID
	m.lastRole = role
	return m.groups, m.err
}

func meTestContext(claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/auth/me", nil)
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestMeIncludesMemberGroups(t *testing.T) {
	gin.SetMode(gin.TestMode)
	memberships := &membershipResolverMock{
		groups: []models.Group{{ID: "g1", Name: "Group Alpha", LeaderID: "leader-1"}},
	}
	h := NewAuthHandler(nil, memberships)

	c, w := meTestContext(&models.JWTClaims{UserID: "leader-1", Role: models.RoleStudent, Email: "l@example.com"})
	h.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "leader-1", memberships.lastUserID)
	require.Equal(t, models.RoleStudent, memberships.lastRole)

	var envelope struct {
		Data dto.MeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "leader-1", envelope.Data.ID)
	require.Len(t, envelope.Data.Groups, 1)
	require.Equal(t, "g1", envelope.Data.Groups[0].ID)
}

func TestMeWithoutClaimsRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(nil, &membershipResolverMock{})

	c, w := meTestContext(nil)
	h.Me(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
