package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Abdullah-608/gigpanda/middleware"
	"github.com/Abdullah-608/gigpanda/model"
	"github.com/Abdullah-608/gigpanda/service"
	"github.com/gin-gonic/gin"
)

// MarketplaceService is the job/proposal/bookmark surface the handler depends on.
type MarketplaceService interface {
	CreateJob(ctx context.Context, clientID string, params service.CreateJobParams) (*model.Job, error)
	ListJobs(ctx context.Context, page, pageSize int) ([]model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	CreateProposal(ctx context.Context, freelancerID, jobID string, params service.CreateProposalParams) (*model.Proposal, error)
	ListProposals(ctx context.Context, jobID, clientID string) ([]model.Proposal, error)
	AcceptProposal(ctx context.Context, proposalID, clientID string) (*model.Contract, error)
	ToggleBookmark(ctx context.Context, userID, jobID string) (bool, error)
	ListBookmarks(ctx context.Context, userID string) ([]model.Job, error)
}

type JobHandler struct {
	marketplace MarketplaceService
}

func NewJobHandler(marketplace MarketplaceService) *JobHandler {
	return &JobHandler{marketplace: marketplace}
}

type createJobRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Budget      float64 `json:"budget" binding:"required"`
}

// Create handles POST /api/jobs
func (h *JobHandler) Create(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	job, err := h.marketplace.CreateJob(c.Request.Context(), middleware.GetUserID(c), service.CreateJobParams{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "job": job})
}

// List handles GET /api/jobs
func (h *JobHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	jobs, err := h.marketplace.ListJobs(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "jobs": jobs})
}

// Get handles GET /api/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.marketplace.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "job": job})
}

type createProposalRequest struct {
	CoverLetter string                    `json:"cover_letter"`
	BidAmount   float64                   `json:"bid_amount" binding:"required"`
	Milestones  []model.ProposedMilestone `json:"milestones" binding:"required"`
}

// CreateProposal handles POST /api/jobs/:id/proposals
func (h *JobHandler) CreateProposal(c *gin.Context) {
	var req createProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	proposal, err := h.marketplace.CreateProposal(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), service.CreateProposalParams{
		CoverLetter: req.CoverLetter,
		BidAmount:   req.BidAmount,
		Milestones:  req.Milestones,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "proposal": proposal})
}

// ListProposals handles GET /api/jobs/:id/proposals
func (h *JobHandler) ListProposals(c *gin.Context) {
	proposals, err := h.marketplace.ListProposals(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if proposals == nil {
		proposals = []model.Proposal{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "proposals": proposals})
}

// AcceptProposal handles POST /api/proposals/:id/accept
func (h *JobHandler) AcceptProposal(c *gin.Context) {
	contract, err := h.marketplace.AcceptProposal(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "contract": contract})
}

// ToggleBookmark handles POST /api/jobs/:id/bookmark
func (h *JobHandler) ToggleBookmark(c *gin.Context) {
	bookmarked, err := h.marketplace.ToggleBookmark(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bookmarked": bookmarked})
}

// ListBookmarks handles GET /api/bookmarks
func (h *JobHandler) ListBookmarks(c *gin.Context) {
	jobs, err := h.marketplace.ListBookmarks(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bookmarks": jobs})
}
