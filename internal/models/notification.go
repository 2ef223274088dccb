package models

import "time"

// NotificationType enumerates workflow events that fan out to users.
type NotificationType string

const (
	NotificationProposalSubmitted NotificationType = "PROPOSAL_SUBMITTED"
	NotificationModeratorApproved NotificationType = "MODERATOR_APPROVED"
	NotificationModeratorRejected NotificationType = "MODERATOR_REJECTED"
	NotificationHeadApproved      NotificationType = "HEAD_APPROVED"
	NotificationHeadRejected      NotificationType = "HEAD_REJECTED"
	NotificationThesisTitleLocked NotificationType = "THESIS_TITLE_LOCKED"
)

// Notification is a per-recipient inbox record.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipient_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Body        string           `db:"body" json:"body"`
	Payload     []byte           `db:"payload" json:"payload,omitempty"`
	Read        bool             `db:"read" json:"read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter constrains inbox queries.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int
	Offset      int
}
