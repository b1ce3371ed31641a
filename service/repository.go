package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Abdullah-608/gigpanda/model"
	"github.com/Abdullah-608/gigpanda/pkg/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrContractNotFound = errors.New("contract not found")

// Repository is the pgx data access layer for contracts and their satellite
// rows (ledger, notifications, outbox).
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const contractColumns = `id, job_id, client_id, freelancer_id, title, scope, total_amount,
    escrow_balance, funded_total, released_total, status, created_at, updated_at`

const milestoneColumns = `id, contract_id, position, title, description, amount, due_date,
    status, current_submission, submission_history, created_at, updated_at`

// GetForUpdate loads a contract and its milestones with row locks held, so
// concurrent lifecycle operations on the same contract serialize.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, contractID string) (*model.Contract, error) {
	row := tx.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id=$1 FOR UPDATE`, contractID)
	c, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("contract: fetch for update: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE contract_id=$1 ORDER BY position FOR UPDATE`, contractID)
	if err != nil {
		return nil, fmt.Errorf("contract: fetch milestones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("contract: scan milestone: %w", err)
		}
		c.Milestones = append(c.Milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contract: iterate milestones: %w", err)
	}

	return c, nil
}

// SaveState persists the contract row and every milestone row after a
// lifecycle operation has mutated the in-memory model.
func (r *Repository) SaveState(ctx context.Context, tx pgx.Tx, c *model.Contract) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("contract_save", time.Since(start)) }()

	if _, err := tx.Exec(ctx, `
        UPDATE contracts
        SET escrow_balance=$1, funded_total=$2, released_total=$3, status=$4, updated_at=now()
        WHERE id=$5
    `, c.EscrowBalance, c.FundedTotal, c.ReleasedTotal, c.Status, c.ID); err != nil {
		return fmt.Errorf("contract: update: %w", err)
	}

	for _, m := range c.Milestones {
		curSub, err := marshalNullable(m.CurrentSubmission)
		if err != nil {
			return fmt.Errorf("contract: marshal submission: %w", err)
		}
		history, err := json.Marshal(m.SubmissionHistory)
		if err != nil {
			return fmt.Errorf("contract: marshal history: %w", err)
		}
		if _, err := tx.Exec(ctx, `
            UPDATE milestones
            SET status=$1, current_submission=$2, submission_history=$3, updated_at=now()
            WHERE id=$4
        `, m.Status, curSub, history, m.ID); err != nil {
			return fmt.Errorf("contract: update milestone: %w", err)
		}
	}

	return nil
}

// CreateContract inserts a draft contract with its milestone schedule.
func (r *Repository) CreateContract(ctx context.Context, tx pgx.Tx, c *model.Contract) error {
	err := tx.QueryRow(ctx, `
        INSERT INTO contracts (job_id, client_id, freelancer_id, title, scope, total_amount, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at
    `, c.JobID, c.ClientID, c.FreelancerID, c.Title, c.Scope, c.TotalAmount, c.Status).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("contract: insert: %w", err)
	}

	for _, m := range c.Milestones {
		m.ContractID = c.ID
		err := tx.QueryRow(ctx, `
            INSERT INTO milestones (contract_id, position, title, description, amount, due_date, status, submission_history)
            VALUES ($1,$2,$3,$4,$5,$6,$7,'[]'::jsonb)
            RETURNING id, created_at, updated_at
        `, c.ID, m.Position, m.Title, m.Description, m.Amount, m.DueDate, m.Status).
			Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("contract: insert milestone: %w", err)
		}
	}

	return nil
}

// AppendEscrowEntry records one funding or release event on the ledger.
func (r *Repository) AppendEscrowEntry(ctx context.Context, tx pgx.Tx, e *model.EscrowEntry) error {
	var milestoneID *string
	if e.MilestoneID != "" {
		milestoneID = &e.MilestoneID
	}
	err := tx.QueryRow(ctx, `
        INSERT INTO escrow_entries (contract_id, milestone_id, actor_id, direction, amount, balance_after)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at
    `, e.ContractID, milestoneID, e.ActorID, e.Direction, e.Amount, e.BalanceAfter).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("escrow: insert entry: %w", err)
	}
	return nil
}

// InsertNotification writes an in-app notification row.
func (r *Repository) InsertNotification(ctx context.Context, tx pgx.Tx, n *model.Notification) error {
	var contractID *string
	if n.ContractID != "" {
		contractID = &n.ContractID
	}
	err := tx.QueryRow(ctx, `
        INSERT INTO notifications (user_id, type, message, contract_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at
    `, n.UserID, n.Type, n.Message, contractID).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("notification: insert: %w", err)
	}
	return nil
}

// EnqueueOutbox writes a transactional outbox row for later publication.
func (r *Repository) EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1,$2::jsonb)`, topic, body); err != nil {
		return fmt.Errorf("outbox: insert: %w", err)
	}
	return nil
}

// GetByID loads a contract with milestones, without locks.
func (r *Repository) GetByID(ctx context.Context, contractID string) (*model.Contract, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id=$1`, contractID)
	c, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("contract: fetch: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE contract_id=$1 ORDER BY position`, contractID)
	if err != nil {
		return nil, fmt.Errorf("contract: fetch milestones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("contract: scan milestone: %w", err)
		}
		c.Milestones = append(c.Milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contract: iterate milestones: %w", err)
	}

	return c, nil
}

// ListByUser returns contract summaries (no milestones) where the user is a party.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*model.Contract, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+contractColumns+` FROM contracts
        WHERE client_id=$1 OR freelancer_id=$1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("contract: list: %w", err)
	}
	defer rows.Close()

	var result []*model.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("contract: scan: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// ListEscrowEntries returns the funding/release ledger for a contract.
func (r *Repository) ListEscrowEntries(ctx context.Context, contractID string) ([]model.EscrowEntry, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, contract_id, COALESCE(milestone_id::text, ''), actor_id, direction, amount, balance_after, created_at
        FROM escrow_entries
        WHERE contract_id=$1
        ORDER BY created_at
    `, contractID)
	if err != nil {
		return nil, fmt.Errorf("escrow: list entries: %w", err)
	}
	defer rows.Close()

	var entries []model.EscrowEntry
	for rows.Next() {
		var e model.EscrowEntry
		if err := rows.Scan(&e.ID, &e.ContractID, &e.MilestoneID, &e.ActorID, &e.Direction, &e.Amount, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("escrow: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanContract(row pgx.Row) (*model.Contract, error) {
	var c model.Contract
	err := row.Scan(
		&c.ID, &c.JobID, &c.ClientID, &c.FreelancerID, &c.Title, &c.Scope, &c.TotalAmount,
		&c.EscrowBalance, &c.FundedTotal, &c.ReleasedTotal, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanMilestone(row pgx.Row) (*model.Milestone, error) {
	var (
		m       model.Milestone
		curSub  []byte
		history []byte
	)
	err := row.Scan(
		&m.ID, &m.ContractID, &m.Position, &m.Title, &m.Description, &m.Amount, &m.DueDate,
		&m.Status, &curSub, &history, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(curSub) > 0 {
		var sub model.Submission
		if err := json.Unmarshal(curSub, &sub); err != nil {
			return nil, fmt.Errorf("decode current submission: %w", err)
		}
		m.CurrentSubmission = &sub
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &m.SubmissionHistory); err != nil {
			return nil, fmt.Errorf("decode submission history: %w", err)
		}
	}
	return &m, nil
}

func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch s := v.(type) {
	case *model.Submission:
		if s == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
