package model

import "time"

// Job statuses
const (
	JobOpen   = "open"
	JobClosed = "closed"
)

// Proposal statuses
const (
	ProposalPending  = "pending"
	ProposalAccepted = "accepted"
	ProposalDeclined = "declined"
)

// Job is a client's posting that freelancers submit proposals against.
type Job struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Budget      float64   `json:"budget"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProposedMilestone is a milestone sketch inside a proposal. Accepted
// proposals turn these into contract milestones in order.
type ProposedMilestone struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Amount      float64    `json:"amount"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Proposal is a freelancer's bid on a job.
type Proposal struct {
	ID           string              `json:"id"`
	JobID        string              `json:"job_id"`
	FreelancerID string              `json:"freelancer_id"`
	CoverLetter  string              `json:"cover_letter"`
	BidAmount    float64             `json:"bid_amount"`
	Milestones   []ProposedMilestone `json:"milestones"`
	Status       string              `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Bookmark marks a job saved by a user. The (user, job) pair is unique.
type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	JobID     string    `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
}
