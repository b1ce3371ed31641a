package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/Abdullah-608/gigpanda/middleware"
	"github.com/Abdullah-608/gigpanda/model"
	"github.com/gin-gonic/gin"
)

const (
	maxSubmissionFiles    = 10
	maxSubmissionFileSize = 25 << 20 // 25 MiB per file
)

// ContractService is the lifecycle surface the handler depends on.
type ContractService interface {
	Fund(ctx context.Context, contractID, actorID string, amount float64) (*model.Contract, error)
	Activate(ctx context.Context, contractID, actorID string) (*model.Contract, error)
	SubmitWork(ctx context.Context, contractID, milestoneID, actorID string, sub model.Submission) (*model.Contract, error)
	Review(ctx context.Context, contractID, milestoneID, actorID, status, feedback string) (*model.Contract, error)
	Release(ctx context.Context, contractID, milestoneID, actorID string) (*model.Contract, error)
	Complete(ctx context.Context, contractID, actorID string) (*model.Contract, error)
	Cancel(ctx context.Context, contractID, actorID string) (*model.Contract, error)
	Get(ctx context.Context, contractID, userID string) (*model.Contract, []model.EscrowEntry, error)
	List(ctx context.Context, userID string) ([]*model.Contract, error)
}

// SubmissionStorage uploads deliverable files.
type SubmissionStorage interface {
	UploadSubmissionFile(ctx context.Context, contractID, milestoneID, filename string, reader io.Reader, size int64, contentType string) (model.FileAttachment, error)
}

type ContractHandler struct {
	contracts ContractService
	storage   SubmissionStorage
}

func NewContractHandler(contracts ContractService, storage SubmissionStorage) *ContractHandler {
	return &ContractHandler{contracts: contracts, storage: storage}
}

type fundRequest struct {
	Amount float64 `json:"amount"`
}

// Fund handles POST /api/contracts/:id/fund
func (h *ContractHandler) Fund(c *gin.Context) {
	var req fundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	contract, err := h.contracts.Fund(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contract": contract})
}

// Activate handles POST /api/contracts/:id/activate
func (h *ContractHandler) Activate(c *gin.Context) {
	contract, err := h.contracts.Activate(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contract": contract})
}

// Submit handles POST /api/contracts/:id/milestones/:mid/submit (multipart)
func (h *ContractHandler) Submit(c *gin.Context) {
	contractID := c.Param("id")
	milestoneID := c.Param("mid")

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid multipart form"})
		return
	}

	files := form.File["files"]
	if len(files) > maxSubmissionFiles {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Too many files"})
		return
	}

	var attachments []model.FileAttachment
	for _, fh := range files {
		if fh.Size > maxSubmissionFileSize {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "File too large: " + fh.Filename})
			return
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Failed to read file: " + fh.Filename})
			return
		}

		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		attachment, err := h.storage.UploadSubmissionFile(c.Request.Context(), contractID, milestoneID, fh.Filename, f, fh.Size, contentType)
		f.Close()
		if err != nil {
			respondError(c, err)
			return
		}
		attachments = append(attachments, attachment)
	}

	sub := model.Submission{
		Comments: c.PostForm("comments"),
		Files:    attachments,
	}

	contract, err := h.contracts.SubmitWork(c.Request.Context(), contractID, milestoneID, middleware.GetUserID(c), sub)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contract": contract})
}

type reviewRequest struct {
	Status   string `json:"status" binding:"required"`
	Feedback string `json:"feedback"`
}

// Review handles POST /api/contracts/:id/milestones/:mid/review
func (h *ContractHandler) Review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	contract, err := h.contracts.Review(c.Request.Context(), c.Param("id"), c.Param("mid"), middleware.GetUserID(c), req.Status, req.Feedback)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contract": contract})
}

// Release handles POST /api/contracts/:id/milestones/:mid/release
func (h *ContractHandler) Release(c *gin.Context) {
	contract, err := h.contracts.Release(c.Request.Context(), c.Param("id"), c.Param("mid"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contract": contract})
}

// Complete handles POST /api/contracts/:id/complete
func (h *ContractHandler) Complete(c *gin.Context) {
	contract, err := h.contracts.Complete(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contract": contract})
}

// Cancel handles POST /api/contracts/:id/cancel
func (h *ContractHandler) Cancel(c *gin.Context) {
	contract, err := h.contracts.Cancel(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contract": contract})
}

// Get handles GET /api/contracts/:id
func (h *ContractHandler) Get(c *gin.Context) {
	contract, ledger, err := h.contracts.Get(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contract": contract, "escrow_entries": ledger})
}

// List handles GET /api/contracts
func (h *ContractHandler) List(c *gin.Context) {
	contracts, err := h.contracts.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if contracts == nil {
		contracts = []*model.Contract{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "contracts": contracts})
}
