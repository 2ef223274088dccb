package dto

import "github.com/noah-isme/thesisflow-api/internal/models"

// MeResponse is the authenticated user's profile plus the thesis groups
// they belong to or advise.
type MeResponse struct {
	models.UserInfo
	Groups []models.Group `json:"groups"`
}
