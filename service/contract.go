package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abdullah-608/gigpanda/model"
	"github.com/Abdullah-608/gigpanda/pkg/logger"
	"github.com/Abdullah-608/gigpanda/pkg/metrics"
	"github.com/jackc/pgx/v5"
)

// ErrNotPermitted is returned when the actor is a party to the contract but
// the operation belongs to the other side.
var ErrNotPermitted = errors.New("operation not permitted for this party")

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ContractRepository defines the data access required by the lifecycle service.
type ContractRepository interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, contractID string) (*model.Contract, error)
	SaveState(ctx context.Context, tx pgx.Tx, c *model.Contract) error
	AppendEscrowEntry(ctx context.Context, tx pgx.Tx, e *model.EscrowEntry) error
	InsertNotification(ctx context.Context, tx pgx.Tx, n *model.Notification) error
	EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
	GetByID(ctx context.Context, contractID string) (*model.Contract, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Contract, error)
	ListEscrowEntries(ctx context.Context, contractID string) ([]model.EscrowEntry, error)
}

// Broadcaster pushes events to connected users after commit. Delivery is
// best-effort; the notification row is the durable record.
type Broadcaster interface {
	Push(userID string, ev model.Event)
}

// ContractService runs contract lifecycle operations. Every mutation locks
// the contract row, applies the pure model transition, and persists the new
// state together with ledger, notification, and outbox rows in one commit.
type ContractService struct {
	pool TxBeginner
	repo ContractRepository
	hub  Broadcaster
}

func NewContractService(pool TxBeginner, repo ContractRepository, hub Broadcaster) *ContractService {
	return &ContractService{pool: pool, repo: repo, hub: hub}
}

// Fund adds money to the contract's escrow balance. Funding that covers the
// first milestone activates the contract in the same transaction.
func (s *ContractService) Fund(ctx context.Context, contractID, actorID string, amount float64) (*model.Contract, error) {
	return s.transition(ctx, "fund", contractID, func(c *model.Contract) (*sideEffects, error) {
		if err := requireClient(c, actorID); err != nil {
			return nil, err
		}
		if err := c.Fund(amount); err != nil {
			return nil, err
		}
		return &sideEffects{
			ledger: &model.EscrowEntry{
				ContractID:   c.ID,
				ActorID:      actorID,
				Direction:    model.EscrowFund,
				Amount:       amount,
				BalanceAfter: c.EscrowBalance,
			},
			notification: &model.Notification{
				UserID:     c.FreelancerID,
				Type:       model.NotificationContractFunded,
				Message:    fmt.Sprintf("Escrow for %q was funded with %.2f", c.Title, amount),
				ContractID: c.ID,
			},
			outboxTopic: "contract.funded",
			outboxPayload: map[string]any{
				"contract_id":    c.ID,
				"amount":         amount,
				"escrow_balance": c.EscrowBalance,
				"status":         c.Status,
			},
		}, nil
	})
}

// Activate starts work on a contract funded out of band; normal funding
// activates automatically.
func (s *ContractService) Activate(ctx context.Context, contractID, actorID string) (*model.Contract, error) {
	return s.transition(ctx, "activate", contractID, func(c *model.Contract) (*sideEffects, error) {
		if err := requireClient(c, actorID); err != nil {
			return nil, err
		}
		if err := c.Activate(); err != nil {
			return nil, err
		}
		return &sideEffects{
			notification: &model.Notification{
				UserID:     c.FreelancerID,
				Type:       model.NotificationContractActivated,
				Message:    fmt.Sprintf("Contract %q is now active", c.Title),
				ContractID: c.ID,
			},
			outboxTopic:   "contract.activated",
			outboxPayload: map[string]any{"contract_id": c.ID},
		}, nil
	})
}

// SubmitWork records a freelancer's deliverable for a milestone.
func (s *ContractService) SubmitWork(ctx context.Context, contractID, milestoneID, actorID string, sub model.Submission) (*model.Contract, error) {
	return s.transition(ctx, "submit", contractID, func(c *model.Contract) (*sideEffects, error) {
		if err := requireFreelancer(c, actorID); err != nil {
			return nil, err
		}
		if sub.SubmittedAt.IsZero() {
			sub.SubmittedAt = time.Now()
		}
		if err := c.SubmitWork(milestoneID, sub); err != nil {
			return nil, err
		}
		m, _ := c.Milestone(milestoneID)
		return &sideEffects{
			notification: &model.Notification{
				UserID:     c.ClientID,
				Type:       model.NotificationMilestoneSubmitted,
				Message:    fmt.Sprintf("Work submitted for milestone %q", m.Title),
				ContractID: c.ID,
			},
			outboxTopic: "milestone.submitted",
			outboxPayload: map[string]any{
				"contract_id":  c.ID,
				"milestone_id": milestoneID,
				"files":        len(sub.Files),
			},
		}, nil
	})
}

// Review applies the client's decision on a submitted milestone: status must
// be "approved" or "changes_requested" (with feedback).
func (s *ContractService) Review(ctx context.Context, contractID, milestoneID, actorID, status, feedback string) (*model.Contract, error) {
	return s.transition(ctx, "review", contractID, func(c *model.Contract) (*sideEffects, error) {
		if err := requireClient(c, actorID); err != nil {
			return nil, err
		}

		var message string
		switch status {
		case model.MilestoneApproved:
			if err := c.Approve(milestoneID); err != nil {
				return nil, err
			}
			message = "Your submission was approved"
		case model.MilestoneChangesRequested:
			if err := c.RequestChanges(milestoneID, feedback, time.Now()); err != nil {
				return nil, err
			}
			message = "Changes requested: " + feedback
		default:
			return nil, fmt.Errorf("%w: review status must be %s or %s",
				model.ErrInvalidTransition, model.MilestoneApproved, model.MilestoneChangesRequested)
		}

		return &sideEffects{
			notification: &model.Notification{
				UserID:     c.FreelancerID,
				Type:       model.NotificationMilestoneReviewed,
				Message:    message,
				ContractID: c.ID,
			},
			outboxTopic: "milestone.reviewed",
			outboxPayload: map[string]any{
				"contract_id":  c.ID,
				"milestone_id": milestoneID,
				"decision":     status,
			},
		}, nil
	})
}

// Release pays an approved milestone out of escrow. The balance check, the
// decrement, and the paid status land in the same transaction.
func (s *ContractService) Release(ctx context.Context, contractID, milestoneID, actorID string) (*model.Contract, error) {
	return s.transition(ctx, "release", contractID, func(c *model.Contract) (*sideEffects, error) {
		if err := requireClient(c, actorID); err != nil {
			return nil, err
		}
		if err := c.Release(milestoneID); err != nil {
			return nil, err
		}
		m, _ := c.Milestone(milestoneID)
		return &sideEffects{
			ledger: &model.EscrowEntry{
				ContractID:   c.ID,
				MilestoneID:  milestoneID,
				ActorID:      actorID,
				Direction:    model.EscrowRelease,
				Amount:       m.Amount,
				BalanceAfter: c.EscrowBalance,
			},
			notification: &model.Notification{
				UserID:     c.FreelancerID,
				Type:       model.NotificationMilestonePaid,
				Message:    fmt.Sprintf("Payment of %.2f released for milestone %q", m.Amount, m.Title),
				ContractID: c.ID,
			},
			outboxTopic: "milestone.paid",
			outboxPayload: map[string]any{
				"contract_id":    c.ID,
				"milestone_id":   milestoneID,
				"amount":         m.Amount,
				"escrow_balance": c.EscrowBalance,
			},
		}, nil
	})
}

// Complete closes a contract once all milestones are paid.
func (s *ContractService) Complete(ctx context.Context, contractID, actorID string) (*model.Contract, error) {
	return s.transition(ctx, "complete", contractID, func(c *model.Contract) (*sideEffects, error) {
		if err := requireClient(c, actorID); err != nil {
			return nil, err
		}
		if err := c.Complete(); err != nil {
			return nil, err
		}
		return &sideEffects{
			notification: &model.Notification{
				UserID:     c.FreelancerID,
				Type:       model.NotificationContractCompleted,
				Message:    fmt.Sprintf("Contract %q was completed", c.Title),
				ContractID: c.ID,
			},
			outboxTopic:   "contract.completed",
			outboxPayload: map[string]any{"contract_id": c.ID},
		}, nil
	})
}

// Cancel closes a contract early. Escrow must be empty.
func (s *ContractService) Cancel(ctx context.Context, contractID, actorID string) (*model.Contract, error) {
	return s.transition(ctx, "cancel", contractID, func(c *model.Contract) (*sideEffects, error) {
		if err := requireClient(c, actorID); err != nil {
			return nil, err
		}
		if err := c.Cancel(); err != nil {
			return nil, err
		}
		return &sideEffects{
			notification: &model.Notification{
				UserID:     c.FreelancerID,
				Type:       model.NotificationContractCancelled,
				Message:    fmt.Sprintf("Contract %q was cancelled", c.Title),
				ContractID: c.ID,
			},
			outboxTopic:   "contract.cancelled",
			outboxPayload: map[string]any{"contract_id": c.ID},
		}, nil
	})
}

// Get returns a contract with its ledger. Only parties can see it.
func (s *ContractService) Get(ctx context.Context, contractID, userID string) (*model.Contract, []model.EscrowEntry, error) {
	c, err := s.repo.GetByID(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}
	if c.ClientID != userID && c.FreelancerID != userID {
		return nil, nil, ErrContractNotFound
	}
	entries, err := s.repo.ListEscrowEntries(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}
	return c, entries, nil
}

// List returns contracts where the user is a party.
func (s *ContractService) List(ctx context.Context, userID string) ([]*model.Contract, error) {
	return s.repo.ListByUser(ctx, userID)
}

type sideEffects struct {
	ledger        *model.EscrowEntry
	notification  *model.Notification
	outboxTopic   string
	outboxPayload map[string]any
}

// transition is the shared read-modify-write skeleton: lock, apply, persist,
// record side effects, commit, then push best-effort events.
func (s *ContractService) transition(ctx context.Context, op, contractID string, apply func(*model.Contract) (*sideEffects, error)) (*model.Contract, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("contract: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, contractID)
	if err != nil {
		metrics.IncrementContractTransition(op, "failed")
		return nil, err
	}

	effects, err := apply(c)
	if err != nil {
		metrics.IncrementContractTransition(op, "rejected")
		return nil, err
	}

	if err := s.repo.SaveState(ctx, tx, c); err != nil {
		metrics.IncrementContractTransition(op, "failed")
		return nil, err
	}
	if effects.ledger != nil {
		if err := s.repo.AppendEscrowEntry(ctx, tx, effects.ledger); err != nil {
			metrics.IncrementContractTransition(op, "failed")
			return nil, err
		}
	}
	if effects.notification != nil {
		if err := s.repo.InsertNotification(ctx, tx, effects.notification); err != nil {
			metrics.IncrementContractTransition(op, "failed")
			return nil, err
		}
	}
	if effects.outboxTopic != "" {
		if err := s.repo.EnqueueOutbox(ctx, tx, effects.outboxTopic, effects.outboxPayload); err != nil {
			metrics.IncrementContractTransition(op, "failed")
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.IncrementContractTransition(op, "failed")
		return nil, fmt.Errorf("contract: commit %s: %w", op, err)
	}

	metrics.IncrementContractTransition(op, "success")
	logger.Info(ctx, "contract transition applied",
		"operation", op,
		"contract_id", c.ID,
		"status", c.Status,
		"escrow_balance", c.EscrowBalance,
	)

	if s.hub != nil && effects.notification != nil {
		s.hub.Push(effects.notification.UserID, model.Event{Type: "notification", Payload: effects.notification})
	}

	return c, nil
}

func requireClient(c *model.Contract, actorID string) error {
	if actorID == c.ClientID {
		return nil
	}
	if actorID == c.FreelancerID {
		return ErrNotPermitted
	}
	return ErrContractNotFound
}

func requireFreelancer(c *model.Contract, actorID string) error {
	if actorID == c.FreelancerID {
		return nil
	}
	if actorID == c.ClientID {
		return ErrNotPermitted
	}
	return ErrContractNotFound
}
