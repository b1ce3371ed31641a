package model

import (
	"errors"
	"fmt"
	"time"
)

// Contract statuses
const (
	ContractDraft     = "draft"
	ContractFunded    = "funded"
	ContractActive    = "active"
	ContractCompleted = "completed"
	ContractCancelled = "cancelled"
)

// Milestone statuses
const (
	MilestonePending          = "pending"
	MilestoneInProgress       = "in_progress"
	MilestoneSubmitted        = "submitted"
	MilestoneApproved         = "approved"
	MilestoneChangesRequested = "changes_requested"
	MilestoneCompleted        = "completed"
	MilestonePaid             = "paid"
)

// Escrow ledger directions
const (
	EscrowFund    = "fund"
	EscrowRelease = "release"
)

var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrContractClosed    = errors.New("contract is completed or cancelled")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrFeedbackRequired  = errors.New("feedback is required when requesting changes")
	ErrMilestoneNotFound = errors.New("milestone not found")
	ErrMilestonesUnpaid  = errors.New("all milestones must be paid before completing the contract")
	ErrEscrowNotEmpty    = errors.New("contract cannot be cancelled while funds are held in escrow")
	ErrNoSubmission      = errors.New("milestone has no submission to review")
)

// InsufficientEscrowError is returned when a release exceeds the held balance.
type InsufficientEscrowError struct {
	Required  float64
	Available float64
}

func (e *InsufficientEscrowError) Error() string {
	return fmt.Sprintf("Insufficient escrow balance. Required: %.2f, Available: %.2f", e.Required, e.Available)
}

// FileAttachment is an opaque reference to an uploaded deliverable.
type FileAttachment struct {
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

// Submission is the freelancer's current deliverable for a milestone.
type Submission struct {
	Comments    string           `json:"comments"`
	Files       []FileAttachment `json:"files"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// SubmissionRecord is one append-only entry in a milestone's history.
type SubmissionRecord struct {
	Status         string           `json:"status"`
	Comments       string           `json:"comments"`
	Files          []FileAttachment `json:"files"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	ClientFeedback string           `json:"client_feedback,omitempty"`
	FeedbackAt     *time.Time       `json:"feedback_at,omitempty"`
}

// Milestone is a contract sub-unit with its own deliverable and approval cycle.
// Order (Position) is meaningful: milestones form a sequential payment schedule.
type Milestone struct {
	ID                string             `json:"id"`
	ContractID        string             `json:"contract_id"`
	Position          int                `json:"position"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Amount            float64            `json:"amount"`
	DueDate           *time.Time         `json:"due_date,omitempty"`
	Status            string             `json:"status"`
	CurrentSubmission *Submission        `json:"current_submission,omitempty"`
	SubmissionHistory []SubmissionRecord `json:"submission_history"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Contract holds the parties, milestones, and escrow state of an engagement.
type Contract struct {
	ID            string       `json:"id"`
	JobID         string       `json:"job_id"`
	ClientID      string       `json:"client_id"`
	FreelancerID  string       `json:"freelancer_id"`
	Title         string       `json:"title"`
	Scope         string       `json:"scope"`
	TotalAmount   float64      `json:"total_amount"`
	EscrowBalance float64      `json:"escrow_balance"`
	FundedTotal   float64      `json:"funded_total"`
	ReleasedTotal float64      `json:"released_total"`
	Status        string       `json:"status"`
	Milestones    []*Milestone `json:"milestones"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// EscrowEntry records one funding or release event against a contract.
type EscrowEntry struct {
	ID           string    `json:"id"`
	ContractID   string    `json:"contract_id"`
	MilestoneID  string    `json:"milestone_id,omitempty"`
	ActorID      string    `json:"actor_id"`
	Direction    string    `json:"direction"`
	Amount       float64   `json:"amount"`
	BalanceAfter float64   `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// Closed reports whether the contract is in a terminal status.
func (c *Contract) Closed() bool {
	return c.Status == ContractCompleted || c.Status == ContractCancelled
}

// Milestone returns the milestone with the given id.
func (c *Contract) Milestone(id string) (*Milestone, error) {
	for _, m := range c.Milestones {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, ErrMilestoneNotFound
}

// Fund increases the escrow balance. Once the cumulative funded amount covers
// the first milestone, the contract moves draft -> funded and immediately
// activates, starting work without a separate call.
func (c *Contract) Fund(amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if c.Closed() {
		return ErrContractClosed
	}

	c.EscrowBalance += amount
	c.FundedTotal += amount

	if c.Status == ContractDraft && len(c.Milestones) > 0 && c.FundedTotal >= c.Milestones[0].Amount {
		c.Status = ContractFunded
		return c.Activate()
	}
	return nil
}

// Activate moves a funded contract to active and starts the first milestone.
// Funding past the first milestone's amount does this automatically; the
// explicit call covers contracts funded out of band.
func (c *Contract) Activate() error {
	if c.Status != ContractFunded {
		return fmt.Errorf("%w: contract is %s, not funded", ErrInvalidTransition, c.Status)
	}
	c.Status = ContractActive
	if len(c.Milestones) > 0 && c.Milestones[0].Status == MilestonePending {
		c.Milestones[0].Status = MilestoneInProgress
	}
	return nil
}

// SubmitWork records a deliverable for a milestone. Resubmission after
// requested changes is allowed; the history keeps every attempt.
func (c *Contract) SubmitWork(milestoneID string, sub Submission) error {
	if c.Closed() {
		return ErrContractClosed
	}
	m, err := c.Milestone(milestoneID)
	if err != nil {
		return err
	}
	switch m.Status {
	case MilestonePending, MilestoneInProgress, MilestoneChangesRequested:
	default:
		return fmt.Errorf("%w: cannot submit while milestone is %s", ErrInvalidTransition, m.Status)
	}

	m.CurrentSubmission = &sub
	m.SubmissionHistory = append(m.SubmissionHistory, SubmissionRecord{
		Status:      MilestoneSubmitted,
		Comments:    sub.Comments,
		Files:       sub.Files,
		SubmittedAt: sub.SubmittedAt,
	})
	m.Status = MilestoneSubmitted
	return nil
}

// Approve accepts a submitted milestone. Payment release is a separate,
// explicit action. Re-approving an already approved milestone is rejected.
func (c *Contract) Approve(milestoneID string) error {
	if c.Closed() {
		return ErrContractClosed
	}
	m, err := c.Milestone(milestoneID)
	if err != nil {
		return err
	}
	if m.Status != MilestoneSubmitted {
		return fmt.Errorf("%w: cannot approve while milestone is %s", ErrInvalidTransition, m.Status)
	}
	m.Status = MilestoneApproved
	return nil
}

// RequestChanges sends a submitted milestone back to the freelancer with
// feedback recorded on the latest history entry.
func (c *Contract) RequestChanges(milestoneID, feedback string, at time.Time) error {
	if c.Closed() {
		return ErrContractClosed
	}
	if feedback == "" {
		return ErrFeedbackRequired
	}
	m, err := c.Milestone(milestoneID)
	if err != nil {
		return err
	}
	if m.Status != MilestoneSubmitted {
		return fmt.Errorf("%w: cannot request changes while milestone is %s", ErrInvalidTransition, m.Status)
	}
	if len(m.SubmissionHistory) == 0 {
		return ErrNoSubmission
	}

	last := &m.SubmissionHistory[len(m.SubmissionHistory)-1]
	last.Status = MilestoneChangesRequested
	last.ClientFeedback = feedback
	last.FeedbackAt = &at
	m.Status = MilestoneChangesRequested
	return nil
}

// Release pays out an approved milestone from escrow. The balance check and
// the status change are a single unit; callers persist both atomically.
func (c *Contract) Release(milestoneID string) error {
	if c.Closed() {
		return ErrContractClosed
	}
	m, err := c.Milestone(milestoneID)
	if err != nil {
		return err
	}
	if m.Status != MilestoneApproved && m.Status != MilestoneCompleted {
		return fmt.Errorf("%w: cannot release while milestone is %s", ErrInvalidTransition, m.Status)
	}
	if c.EscrowBalance < m.Amount {
		return &InsufficientEscrowError{Required: m.Amount, Available: c.EscrowBalance}
	}

	c.EscrowBalance -= m.Amount
	c.ReleasedTotal += m.Amount
	m.Status = MilestonePaid

	// Start the next milestone in the schedule, if any.
	for _, next := range c.Milestones {
		if next.Position == m.Position+1 && next.Status == MilestonePending {
			next.Status = MilestoneInProgress
			break
		}
	}
	return nil
}

// Complete closes the contract after every milestone has been paid.
func (c *Contract) Complete() error {
	if c.Status != ContractActive {
		return fmt.Errorf("%w: contract is %s, not active", ErrInvalidTransition, c.Status)
	}
	for _, m := range c.Milestones {
		if m.Status != MilestonePaid {
			return ErrMilestonesUnpaid
		}
	}
	c.Status = ContractCompleted
	return nil
}

// Cancel closes the contract early. Held funds must be released or refunded
// out of band first, so cancellation requires an empty escrow balance.
func (c *Contract) Cancel() error {
	if c.Closed() {
		return ErrContractClosed
	}
	if c.EscrowBalance > 0 {
		return ErrEscrowNotEmpty
	}
	c.Status = ContractCancelled
	return nil
}
