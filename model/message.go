package model

import "time"

// Notification types
const (
	NotificationContractFunded     = "contract_funded"
	NotificationContractActivated  = "contract_activated"
	NotificationContractCompleted  = "contract_completed"
	NotificationContractCancelled  = "contract_cancelled"
	NotificationMilestoneSubmitted = "milestone_submitted"
	NotificationMilestoneReviewed  = "milestone_reviewed"
	NotificationMilestonePaid      = "milestone_paid"
	NotificationProposalAccepted   = "proposal_accepted"
)

// Notification is an in-app feed entry for a user.
type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	ContractID string    `json:"contract_id,omitempty"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is a direct message between two users. Delivered reflects whether
// the recipient had a live stream at send time; there is no redelivery.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body"`
	Delivered   bool      `json:"delivered"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event is the envelope pushed over a user's SSE stream.
type Event struct {
	Type    string `json:"type"` // message, notification
	Payload any    `json:"payload"`
}
