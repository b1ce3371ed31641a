package model

import (
	"errors"
	"testing"
	"time"
)

func newTestContract(amounts ...float64) *Contract {
	c := &Contract{
		ID:           "contract-1",
		JobID:        "job-1",
		ClientID:     "client-1",
		FreelancerID: "freelancer-1",
		Title:        "Landing page",
		Status:       ContractDraft,
	}
	for i, amount := range amounts {
		c.TotalAmount += amount
		c.Milestones = append(c.Milestones, &Milestone{
			ID:         "milestone-" + string(rune('a'+i)),
			ContractID: c.ID,
			Position:   i,
			Title:      "Milestone",
			Amount:     amount,
			Status:     MilestonePending,
		})
	}
	return c
}

func TestFund(t *testing.T) {
	tests := []struct {
		name           string
		amount         float64
		wantErr        error
		wantBalance    float64
		wantStatus     string
	}{
		{"valid funding reaches first milestone", 500, nil, 500, ContractActive},
		{"partial funding stays draft", 100, nil, 100, ContractDraft},
		{"zero amount rejected", 0, ErrInvalidAmount, 0, ContractDraft},
		{"negative amount rejected", -50, ErrInvalidAmount, 0, ContractDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContract(500)
			err := c.Fund(tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fund(%v) error = %v, want %v", tt.amount, err, tt.wantErr)
			}
			if c.EscrowBalance != tt.wantBalance {
				t.Errorf("EscrowBalance = %v, want %v", c.EscrowBalance, tt.wantBalance)
			}
			if c.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", c.Status, tt.wantStatus)
			}
		})
	}
}

func TestFundClosedContract(t *testing.T) {
	for _, status := range []string{ContractCompleted, ContractCancelled} {
		c := newTestContract(500)
		c.Status = status
		if err := c.Fund(100); !errors.Is(err, ErrContractClosed) {
			t.Errorf("Fund on %s contract: error = %v, want ErrContractClosed", status, err)
		}
		if c.EscrowBalance != 0 {
			t.Errorf("EscrowBalance changed on rejected funding: %v", c.EscrowBalance)
		}
	}
}

func TestFundAccumulates(t *testing.T) {
	c := newTestContract(500)
	if err := c.Fund(300); err != nil {
		t.Fatalf("first funding: %v", err)
	}
	if c.Status != ContractDraft {
		t.Fatalf("Status after partial funding = %v, want draft", c.Status)
	}
	if err := c.Fund(200); err != nil {
		t.Fatalf("second funding: %v", err)
	}
	if c.Status != ContractActive {
		t.Errorf("Status after cumulative funding = %v, want active", c.Status)
	}
	if c.Milestones[0].Status != MilestoneInProgress {
		t.Errorf("first milestone status = %v, want in_progress", c.Milestones[0].Status)
	}
	if c.FundedTotal != 500 || c.EscrowBalance != 500 {
		t.Errorf("FundedTotal=%v EscrowBalance=%v, want 500/500", c.FundedTotal, c.EscrowBalance)
	}
}

func TestFundAutoActivates(t *testing.T) {
	c := newTestContract(500)
	if err := c.Fund(500); err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if c.Status != ContractActive {
		t.Errorf("Status = %v, want active", c.Status)
	}
	if c.Milestones[0].Status != MilestoneInProgress {
		t.Errorf("first milestone status = %v, want in_progress", c.Milestones[0].Status)
	}
}

func TestActivate(t *testing.T) {
	c := newTestContract(500)
	if err := c.Activate(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Activate on draft: error = %v, want ErrInvalidTransition", err)
	}

	// Explicit activation covers contracts funded out of band.
	funded := newTestContract(500)
	funded.Status = ContractFunded
	funded.EscrowBalance = 500
	funded.FundedTotal = 500
	if err := funded.Activate(); err != nil {
		t.Fatalf("Activate on funded: %v", err)
	}
	if funded.Status != ContractActive {
		t.Errorf("Status = %v, want active", funded.Status)
	}
	if funded.Milestones[0].Status != MilestoneInProgress {
		t.Errorf("first milestone status = %v, want in_progress", funded.Milestones[0].Status)
	}
	if err := funded.Activate(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Activate on active: error = %v, want ErrInvalidTransition", err)
	}
}

func activeContract(t *testing.T, amounts ...float64) *Contract {
	t.Helper()
	c := newTestContract(amounts...)
	var total float64
	for _, a := range amounts {
		total += a
	}
	if err := c.Fund(total); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if c.Status != ContractActive {
		t.Fatalf("status after full funding = %v, want active", c.Status)
	}
	return c
}

func TestSubmitWork(t *testing.T) {
	c := activeContract(t, 500)
	mid := c.Milestones[0].ID

	sub := Submission{Comments: "first draft", SubmittedAt: time.Now()}
	if err := c.SubmitWork(mid, sub); err != nil {
		t.Fatalf("SubmitWork: %v", err)
	}

	m := c.Milestones[0]
	if m.Status != MilestoneSubmitted {
		t.Errorf("Status = %v, want submitted", m.Status)
	}
	if m.CurrentSubmission == nil || m.CurrentSubmission.Comments != "first draft" {
		t.Errorf("CurrentSubmission not recorded: %+v", m.CurrentSubmission)
	}
	if len(m.SubmissionHistory) != 1 {
		t.Fatalf("SubmissionHistory length = %d, want 1", len(m.SubmissionHistory))
	}
	if m.SubmissionHistory[0].Status != MilestoneSubmitted {
		t.Errorf("history status = %v, want submitted", m.SubmissionHistory[0].Status)
	}

	// Double submission is rejected.
	if err := c.SubmitWork(mid, sub); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resubmit while submitted: error = %v, want ErrInvalidTransition", err)
	}
}

func TestSubmitWorkUnknownMilestone(t *testing.T) {
	c := activeContract(t, 500)
	err := c.SubmitWork("nope", Submission{SubmittedAt: time.Now()})
	if !errors.Is(err, ErrMilestoneNotFound) {
		t.Errorf("error = %v, want ErrMilestoneNotFound", err)
	}
}

func TestApprove(t *testing.T) {
	c := activeContract(t, 500)
	mid := c.Milestones[0].ID

	// Approving before submission is rejected.
	if err := c.Approve(mid); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approve before submit: error = %v, want ErrInvalidTransition", err)
	}

	c.SubmitWork(mid, Submission{SubmittedAt: time.Now()})
	if err := c.Approve(mid); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if c.Milestones[0].Status != MilestoneApproved {
		t.Errorf("Status = %v, want approved", c.Milestones[0].Status)
	}

	// Re-approval is explicitly guarded.
	if err := c.Approve(mid); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("re-approve: error = %v, want ErrInvalidTransition", err)
	}
}

func TestRequestChanges(t *testing.T) {
	c := activeContract(t, 500)
	mid := c.Milestones[0].ID
	c.SubmitWork(mid, Submission{Comments: "v1", SubmittedAt: time.Now()})

	// Missing feedback must not mutate the milestone.
	if err := c.RequestChanges(mid, "", time.Now()); !errors.Is(err, ErrFeedbackRequired) {
		t.Fatalf("empty feedback: error = %v, want ErrFeedbackRequired", err)
	}
	if c.Milestones[0].Status != MilestoneSubmitted {
		t.Fatalf("Status changed on rejected review: %v", c.Milestones[0].Status)
	}

	now := time.Now()
	if err := c.RequestChanges(mid, "needs revisions", now); err != nil {
		t.Fatalf("RequestChanges: %v", err)
	}

	m := c.Milestones[0]
	if m.Status != MilestoneChangesRequested {
		t.Errorf("Status = %v, want changes_requested", m.Status)
	}
	if len(m.SubmissionHistory) != 1 {
		t.Fatalf("SubmissionHistory length = %d, want 1", len(m.SubmissionHistory))
	}
	rec := m.SubmissionHistory[0]
	if rec.ClientFeedback != "needs revisions" {
		t.Errorf("ClientFeedback = %q", rec.ClientFeedback)
	}
	if rec.FeedbackAt == nil || !rec.FeedbackAt.Equal(now) {
		t.Errorf("FeedbackAt = %v, want %v", rec.FeedbackAt, now)
	}

	// Resubmission loops back to submitted and extends the history.
	if err := c.SubmitWork(mid, Submission{Comments: "v2", SubmittedAt: time.Now()}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if m.Status != MilestoneSubmitted {
		t.Errorf("Status after resubmit = %v, want submitted", m.Status)
	}
	if len(m.SubmissionHistory) != 2 {
		t.Errorf("SubmissionHistory length = %d, want 2", len(m.SubmissionHistory))
	}
}

func TestRelease(t *testing.T) {
	c := activeContract(t, 500)
	mid := c.Milestones[0].ID

	// Paid is only reachable via submitted -> approved.
	if err := c.Release(mid); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("release pending milestone: error = %v, want ErrInvalidTransition", err)
	}

	c.SubmitWork(mid, Submission{SubmittedAt: time.Now()})
	if err := c.Release(mid); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("release submitted milestone: error = %v, want ErrInvalidTransition", err)
	}

	c.Approve(mid)
	if err := c.Release(mid); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if c.Milestones[0].Status != MilestonePaid {
		t.Errorf("Status = %v, want paid", c.Milestones[0].Status)
	}
	if c.EscrowBalance != 0 {
		t.Errorf("EscrowBalance = %v, want 0", c.EscrowBalance)
	}
	if c.ReleasedTotal != 500 {
		t.Errorf("ReleasedTotal = %v, want 500", c.ReleasedTotal)
	}
}

func TestReleaseInsufficientEscrow(t *testing.T) {
	c := newTestContract(500)
	c.Fund(300)
	c.Status = ContractActive
	mid := c.Milestones[0].ID
	c.Milestones[0].Status = MilestoneInProgress
	c.SubmitWork(mid, Submission{SubmittedAt: time.Now()})
	c.Approve(mid)

	err := c.Release(mid)
	var insufficient *InsufficientEscrowError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error = %v, want InsufficientEscrowError", err)
	}
	if insufficient.Required != 500 || insufficient.Available != 300 {
		t.Errorf("Required=%v Available=%v, want 500/300", insufficient.Required, insufficient.Available)
	}

	// No partial state change.
	if c.EscrowBalance != 300 {
		t.Errorf("EscrowBalance = %v, want 300", c.EscrowBalance)
	}
	if c.Milestones[0].Status != MilestoneApproved {
		t.Errorf("Status = %v, want approved", c.Milestones[0].Status)
	}
}

func TestReleaseStartsNextMilestone(t *testing.T) {
	c := activeContract(t, 300, 200)
	first := c.Milestones[0].ID

	c.SubmitWork(first, Submission{SubmittedAt: time.Now()})
	c.Approve(first)
	if err := c.Release(first); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if c.Milestones[1].Status != MilestoneInProgress {
		t.Errorf("second milestone status = %v, want in_progress", c.Milestones[1].Status)
	}
	if c.EscrowBalance != 200 {
		t.Errorf("EscrowBalance = %v, want 200", c.EscrowBalance)
	}
}

func TestComplete(t *testing.T) {
	c := activeContract(t, 500)
	mid := c.Milestones[0].ID

	if err := c.Complete(); !errors.Is(err, ErrMilestonesUnpaid) {
		t.Fatalf("complete with unpaid milestone: error = %v, want ErrMilestonesUnpaid", err)
	}

	c.SubmitWork(mid, Submission{SubmittedAt: time.Now()})
	c.Approve(mid)
	c.Release(mid)

	if err := c.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if c.Status != ContractCompleted {
		t.Errorf("Status = %v, want completed", c.Status)
	}
}

func TestCancel(t *testing.T) {
	c := newTestContract(500)
	c.Fund(100)
	if err := c.Cancel(); !errors.Is(err, ErrEscrowNotEmpty) {
		t.Errorf("cancel with held funds: error = %v, want ErrEscrowNotEmpty", err)
	}

	empty := newTestContract(500)
	if err := empty.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if empty.Status != ContractCancelled {
		t.Errorf("Status = %v, want cancelled", empty.Status)
	}
	if err := empty.Cancel(); !errors.Is(err, ErrContractClosed) {
		t.Errorf("double cancel: error = %v, want ErrContractClosed", err)
	}
}

// TestHappyPath walks the full single-milestone lifecycle: fund 500, submit,
// approve, release, complete. No explicit activation; full funding starts
// the work.
func TestHappyPath(t *testing.T) {
	c := newTestContract(500)
	mid := c.Milestones[0].ID

	if err := c.Fund(500); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if c.EscrowBalance != 500 {
		t.Fatalf("EscrowBalance = %v, want 500", c.EscrowBalance)
	}
	if c.Status != ContractActive {
		t.Fatalf("Status after funding = %v, want active", c.Status)
	}
	if err := c.SubmitWork(mid, Submission{Comments: "done", SubmittedAt: time.Now()}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := c.Approve(mid); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := c.Release(mid); err != nil {
		t.Fatalf("release: %v", err)
	}
	if c.EscrowBalance != 0 {
		t.Errorf("EscrowBalance = %v, want 0", c.EscrowBalance)
	}
	if c.Milestones[0].Status != MilestonePaid {
		t.Errorf("milestone status = %v, want paid", c.Milestones[0].Status)
	}
	if err := c.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if c.Status != ContractCompleted {
		t.Errorf("contract status = %v, want completed", c.Status)
	}
}

// TestClosedContractRejectsMilestoneOps verifies that review and release are
// refused once the contract reaches a terminal status, even with a submitted
// or approved milestone left behind.
func TestClosedContractRejectsMilestoneOps(t *testing.T) {
	for _, status := range []string{ContractCompleted, ContractCancelled} {
		c := activeContract(t, 500)
		mid := c.Milestones[0].ID
		c.SubmitWork(mid, Submission{SubmittedAt: time.Now()})
		c.Status = status

		if err := c.Approve(mid); !errors.Is(err, ErrContractClosed) {
			t.Errorf("Approve on %s contract: error = %v, want ErrContractClosed", status, err)
		}
		if err := c.RequestChanges(mid, "redo it", time.Now()); !errors.Is(err, ErrContractClosed) {
			t.Errorf("RequestChanges on %s contract: error = %v, want ErrContractClosed", status, err)
		}
		if c.Milestones[0].Status != MilestoneSubmitted {
			t.Errorf("milestone mutated on closed %s contract: %v", status, c.Milestones[0].Status)
		}

		approved := activeContract(t, 500)
		amid := approved.Milestones[0].ID
		approved.SubmitWork(amid, Submission{SubmittedAt: time.Now()})
		approved.Approve(amid)
		approved.Status = status
		if err := approved.Release(amid); !errors.Is(err, ErrContractClosed) {
			t.Errorf("Release on %s contract: error = %v, want ErrContractClosed", status, err)
		}
		if approved.EscrowBalance != 500 {
			t.Errorf("escrow mutated on closed %s contract: %v", status, approved.EscrowBalance)
		}
	}
}

// TestEscrowNeverNegative drives a contract through every operation and
// checks the balance invariant after each step, including rejected ones.
func TestEscrowNeverNegative(t *testing.T) {
	c := newTestContract(300, 400)

	check := func(step string) {
		t.Helper()
		if c.EscrowBalance < 0 {
			t.Fatalf("escrow balance negative after %s: %v", step, c.EscrowBalance)
		}
	}

	c.Fund(-10)
	check("rejected fund")
	c.Fund(300)
	check("fund")

	first := c.Milestones[0].ID
	second := c.Milestones[1].ID
	c.SubmitWork(first, Submission{SubmittedAt: time.Now()})
	c.Approve(first)
	c.Release(first)
	check("first release")

	c.SubmitWork(second, Submission{SubmittedAt: time.Now()})
	c.Approve(second)
	c.Release(second) // insufficient, must be rejected
	check("rejected release")

	if c.Milestones[1].Status != MilestoneApproved {
		t.Errorf("second milestone status = %v, want approved", c.Milestones[1].Status)
	}
}
