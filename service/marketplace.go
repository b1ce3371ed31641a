package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Abdullah-608/gigpanda/model"
	"github.com/Abdullah-608/gigpanda/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrJobClosed        = errors.New("job is no longer open")
	ErrProposalNotFound = errors.New("proposal not found")
	ErrProposalDecided  = errors.New("proposal has already been decided")
	ErrNoMilestones     = errors.New("proposal must include at least one milestone")
	ErrTitleRequired    = errors.New("title is required")
)

// MarketplaceService covers the entry path into a contract: jobs, proposals,
// and bookmarks.
type MarketplaceService struct {
	pool *pgxpool.Pool
	repo *Repository
	hub  Broadcaster
}

func NewMarketplaceService(pool *pgxpool.Pool, repo *Repository, hub Broadcaster) *MarketplaceService {
	return &MarketplaceService{pool: pool, repo: repo, hub: hub}
}

type CreateJobParams struct {
	Title       string
	Description string
	Budget      float64
}

func (s *MarketplaceService) CreateJob(ctx context.Context, clientID string, params CreateJobParams) (*model.Job, error) {
	if params.Title == "" {
		return nil, ErrTitleRequired
	}
	if params.Budget <= 0 {
		return nil, model.ErrInvalidAmount
	}

	job := &model.Job{
		ClientID:    clientID,
		Title:       params.Title,
		Description: params.Description,
		Budget:      params.Budget,
		Status:      model.JobOpen,
	}
	err := s.pool.QueryRow(ctx, `
        INSERT INTO jobs (client_id, title, description, budget, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at
    `, job.ClientID, job.Title, job.Description, job.Budget, job.Status).Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("job: insert: %w", err)
	}
	return job, nil
}

func (s *MarketplaceService) ListJobs(ctx context.Context, page, pageSize int) ([]model.Job, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	rows, err := s.pool.Query(ctx, `
        SELECT id, client_id, title, description, budget, status, created_at
        FROM jobs
        WHERE status='open'
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2
    `, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("job: list: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.ClientID, &j.Title, &j.Description, &j.Budget, &j.Status, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("job: scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *MarketplaceService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var j model.Job
	err := s.pool.QueryRow(ctx, `
        SELECT id, client_id, title, description, budget, status, created_at
        FROM jobs WHERE id=$1
    `, jobID).Scan(&j.ID, &j.ClientID, &j.Title, &j.Description, &j.Budget, &j.Status, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job: fetch: %w", err)
	}
	return &j, nil
}

type CreateProposalParams struct {
	CoverLetter string
	BidAmount   float64
	Milestones  []model.ProposedMilestone
}

func (s *MarketplaceService) CreateProposal(ctx context.Context, freelancerID, jobID string, params CreateProposalParams) (*model.Proposal, error) {
	if params.BidAmount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	if len(params.Milestones) == 0 {
		return nil, ErrNoMilestones
	}
	for _, m := range params.Milestones {
		if m.Amount <= 0 {
			return nil, model.ErrInvalidAmount
		}
	}

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobOpen {
		return nil, ErrJobClosed
	}

	milestones, err := json.Marshal(params.Milestones)
	if err != nil {
		return nil, fmt.Errorf("proposal: marshal milestones: %w", err)
	}

	p := &model.Proposal{
		JobID:        jobID,
		FreelancerID: freelancerID,
		CoverLetter:  params.CoverLetter,
		BidAmount:    params.BidAmount,
		Milestones:   params.Milestones,
		Status:       model.ProposalPending,
	}
	err = s.pool.QueryRow(ctx, `
        INSERT INTO proposals (job_id, freelancer_id, cover_letter, bid_amount, milestones, status)
        VALUES ($1,$2,$3,$4,$5::jsonb,$6)
        RETURNING id, created_at
    `, p.JobID, p.FreelancerID, p.CoverLetter, p.BidAmount, milestones, p.Status).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("proposal: insert: %w", err)
	}
	return p, nil
}

// ListProposals returns the proposals on a job; only the job owner may list them.
func (s *MarketplaceService) ListProposals(ctx context.Context, jobID, clientID string) ([]model.Proposal, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != clientID {
		return nil, ErrJobNotFound
	}

	rows, err := s.pool.Query(ctx, `
        SELECT id, job_id, freelancer_id, cover_letter, bid_amount, milestones, status, created_at
        FROM proposals
        WHERE job_id=$1
        ORDER BY created_at
    `, jobID)
	if err != nil {
		return nil, fmt.Errorf("proposal: list: %w", err)
	}
	defer rows.Close()

	var proposals []model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

// AcceptProposal turns a pending proposal into a draft contract. The proposal
// flip, job close, contract creation, and freelancer notification commit
// together; other pending proposals on the job are declined.
func (s *MarketplaceService) AcceptProposal(ctx context.Context, proposalID, clientID string) (*model.Contract, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("proposal: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
        SELECT id, job_id, freelancer_id, cover_letter, bid_amount, milestones, status, created_at
        FROM proposals WHERE id=$1 FOR UPDATE
    `, proposalID)
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, err
	}
	if p.Status != model.ProposalPending {
		return nil, ErrProposalDecided
	}

	var job model.Job
	err = tx.QueryRow(ctx, `
        SELECT id, client_id, title, description, status FROM jobs WHERE id=$1 FOR UPDATE
    `, p.JobID).Scan(&job.ID, &job.ClientID, &job.Title, &job.Description, &job.Status)
	if err != nil {
		return nil, fmt.Errorf("proposal: fetch job: %w", err)
	}
	if job.ClientID != clientID {
		return nil, ErrProposalNotFound
	}
	if job.Status != model.JobOpen {
		return nil, ErrJobClosed
	}

	if _, err := tx.Exec(ctx, `UPDATE proposals SET status='accepted' WHERE id=$1`, p.ID); err != nil {
		return nil, fmt.Errorf("proposal: accept: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE proposals SET status='declined' WHERE job_id=$1 AND status='pending' AND id<>$2`, p.JobID, p.ID); err != nil {
		return nil, fmt.Errorf("proposal: decline others: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE jobs SET status='closed' WHERE id=$1`, p.JobID); err != nil {
		return nil, fmt.Errorf("proposal: close job: %w", err)
	}

	var total float64
	contract := &model.Contract{
		JobID:        p.JobID,
		ClientID:     clientID,
		FreelancerID: p.FreelancerID,
		Title:        job.Title,
		Scope:        job.Description,
		Status:       model.ContractDraft,
	}
	for i, pm := range p.Milestones {
		total += pm.Amount
		contract.Milestones = append(contract.Milestones, &model.Milestone{
			Position:    i,
			Title:       pm.Title,
			Description: pm.Description,
			Amount:      pm.Amount,
			DueDate:     pm.DueDate,
			Status:      model.MilestonePending,
		})
	}
	contract.TotalAmount = total

	if err := s.repo.CreateContract(ctx, tx, contract); err != nil {
		return nil, err
	}

	notification := &model.Notification{
		UserID:     p.FreelancerID,
		Type:       model.NotificationProposalAccepted,
		Message:    fmt.Sprintf("Your proposal for %q was accepted", job.Title),
		ContractID: contract.ID,
	}
	if err := s.repo.InsertNotification(ctx, tx, notification); err != nil {
		return nil, err
	}
	if err := s.repo.EnqueueOutbox(ctx, tx, "proposal.accepted", map[string]any{
		"proposal_id": p.ID,
		"job_id":      p.JobID,
		"contract_id": contract.ID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("proposal: commit accept: %w", err)
	}

	logger.Info(ctx, "proposal accepted",
		"proposal_id", p.ID,
		"job_id", p.JobID,
		"contract_id", contract.ID,
	)

	if s.hub != nil {
		s.hub.Push(notification.UserID, model.Event{Type: "notification", Payload: notification})
	}

	return contract, nil
}

// ToggleBookmark saves or removes a job bookmark. The (user, job) compound
// unique key makes the insert race-safe.
func (s *MarketplaceService) ToggleBookmark(ctx context.Context, userID, jobID string) (bool, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, `
        INSERT INTO bookmarks (user_id, job_id)
        VALUES ($1,$2)
        ON CONFLICT (user_id, job_id) DO NOTHING
    `, userID, jobID)
	if err != nil {
		return false, fmt.Errorf("bookmark: insert: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM bookmarks WHERE user_id=$1 AND job_id=$2`, userID, jobID); err != nil {
		return false, fmt.Errorf("bookmark: delete: %w", err)
	}
	return false, nil
}

// ListBookmarks returns the jobs a user has saved, newest bookmark first.
func (s *MarketplaceService) ListBookmarks(ctx context.Context, userID string) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT j.id, j.client_id, j.title, j.description, j.budget, j.status, j.created_at
        FROM bookmarks b
        JOIN jobs j ON j.id = b.job_id
        WHERE b.user_id=$1
        ORDER BY b.created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("bookmark: list: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.ClientID, &j.Title, &j.Description, &j.Budget, &j.Status, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("bookmark: scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanProposal(row pgx.Row) (*model.Proposal, error) {
	var (
		p          model.Proposal
		milestones []byte
	)
	err := row.Scan(&p.ID, &p.JobID, &p.FreelancerID, &p.CoverLetter, &p.BidAmount, &milestones, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(milestones) > 0 {
		if err := json.Unmarshal(milestones, &p.Milestones); err != nil {
			return nil, fmt.Errorf("proposal: decode milestones: %w", err)
		}
	}
	return &p, nil
}
