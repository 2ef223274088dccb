package dto

// CreateGroupRequest registers a new thesis group.
type CreateGroupRequest struct {
	Name      string   `json:"name" validate:"required"`
	Course    string   `json:"course" validate:"required"`
	Section   string   `json:"section" validate:"required"`
	LeaderID  string   `json:"leader_id" validate:"required"`
	AdviserID string   `json:"adviser_id"`
	MemberIDs []string `json:"member_ids"`
}

// UpdateGroupRequest updates group metadata and membership.
type UpdateGroupRequest struct {
	Name      string   `json:"name" validate:"required"`
	Course    string   `json:"course" validate:"required"`
	Section   string   `json:"section" validate:"required"`
	LeaderID  string   `json:"leader_id" validate:"required"`
	AdviserID string   `json:"adviser_id"`
	MemberIDs []string `json:"member_ids"`
}

// GroupQuery filters group listings.
type GroupQuery struct {
	Course   string `form:"course"`
	Section  string `form:"section"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
