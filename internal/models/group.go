package models

import "time"

// Group represents a student thesis group.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Course    string    `db:"course" json:"course"`
	Section   string    `db:"section" json:"section"`
	LeaderID  string    `db:"leader_id" json:"leader_id"`
	AdviserID *string   `db:"adviser_id" json:"adviser_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	MemberIDs []string `db:"-" json:"member_ids,omitempty"`
}

// GroupFilter constrains group listing queries.
type GroupFilter struct {
	Course    string
	Section   string
	AdviserID string
	MemberID  string
	Search    string
	Page      int
	PageSize  int
}
