package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Abdullah-608/gigpanda/model"
	"github.com/Abdullah-608/gigpanda/service"
	"github.com/gin-gonic/gin"
)

type fakeMarketplace struct {
	job       *model.Job
	proposal  *model.Proposal
	contract  *model.Contract
	jobs      []model.Job
	proposals []model.Proposal
	err       error

	bookmarked bool
	pageSize   int
}

func (f *fakeMarketplace) CreateJob(ctx context.Context, clientID string, params service.CreateJobParams) (*model.Job, error) {
	return f.job, f.err
}

func (f *fakeMarketplace) ListJobs(ctx context.Context, page, pageSize int) ([]model.Job, error) {
	f.pageSize = pageSize
	return f.jobs, f.err
}

func (f *fakeMarketplace) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return f.job, f.err
}

func (f *fakeMarketplace) CreateProposal(ctx context.Context, freelancerID, jobID string, params service.CreateProposalParams) (*model.Proposal, error) {
	return f.proposal, f.err
}

func (f *fakeMarketplace) ListProposals(ctx context.Context, jobID, clientID string) ([]model.Proposal, error) {
	return f.proposals, f.err
}

func (f *fakeMarketplace) AcceptProposal(ctx context.Context, proposalID, clientID string) (*model.Contract, error) {
	return f.contract, f.err
}

func (f *fakeMarketplace) ToggleBookmark(ctx context.Context, userID, jobID string) (bool, error) {
	return f.bookmarked, f.err
}

func (f *fakeMarketplace) ListBookmarks(ctx context.Context, userID string) ([]model.Job, error) {
	return f.jobs, f.err
}

func jobRouter(h *JobHandler, userID string) *gin.Engine {
	router := gin.New()
	auth := func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
	router.POST("/jobs", auth, h.Create)
	router.GET("/jobs", auth, h.List)
	router.GET("/jobs/:id", auth, h.Get)
	router.POST("/jobs/:id/proposals", auth, h.CreateProposal)
	router.GET("/jobs/:id/proposals", auth, h.ListProposals)
	router.POST("/jobs/:id/bookmark", auth, h.ToggleBookmark)
	router.POST("/proposals/:id/accept", auth, h.AcceptProposal)
	return router
}

func TestJobHandlerCreate(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		svcErr         error
		expectedStatus int
	}{
		{
			name:           "valid job",
			body:           `{"title": "Build a landing page", "description": "One pager", "budget": 500}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing title",
			body:           `{"budget": 500}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing budget",
			body:           `{"title": "Build a landing page"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeMarketplace{job: &model.Job{ID: "j-1"}, err: tt.svcErr}
			router := jobRouter(NewJobHandler(svc), "client-1")

			req := httptest.NewRequest("POST", "/jobs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestJobHandlerListDefaultsPageSize(t *testing.T) {
	svc := &fakeMarketplace{}
	router := jobRouter(NewJobHandler(svc), "client-1")

	req := httptest.NewRequest("GET", "/jobs", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if svc.pageSize != 20 {
		t.Errorf("Expected default page size 20, got %d", svc.pageSize)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	jobs, ok := response["jobs"].([]interface{})
	if !ok || len(jobs) != 0 {
		t.Errorf("Expected empty jobs array, got %v", response["jobs"])
	}
}

func TestJobHandlerCreateProposal(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		svcErr         error
		expectedStatus int
	}{
		{
			name:           "valid proposal",
			body:           `{"cover_letter": "hi", "bid_amount": 500, "milestones": [{"title": "All", "amount": 500}]}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing milestones",
			body:           `{"bid_amount": 500}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "closed job",
			body:           `{"bid_amount": 500, "milestones": [{"title": "All", "amount": 500}]}`,
			svcErr:         service.ErrJobClosed,
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeMarketplace{proposal: &model.Proposal{ID: "p-1"}, err: tt.svcErr}
			router := jobRouter(NewJobHandler(svc), "freelancer-1")

			req := httptest.NewRequest("POST", "/jobs/j-1/proposals", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestJobHandlerAcceptProposal(t *testing.T) {
	tests := []struct {
		name           string
		svcErr         error
		expectedStatus int
	}{
		{"accepted", nil, http.StatusCreated},
		{"already decided", service.ErrProposalDecided, http.StatusConflict},
		{"not the owner", service.ErrProposalNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeMarketplace{contract: &model.Contract{ID: "c-1", Status: model.ContractDraft}, err: tt.svcErr}
			router := jobRouter(NewJobHandler(svc), "client-1")

			req := httptest.NewRequest("POST", "/proposals/p-1/accept", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestJobHandlerToggleBookmark(t *testing.T) {
	svc := &fakeMarketplace{bookmarked: true}
	router := jobRouter(NewJobHandler(svc), "freelancer-1")

	req := httptest.NewRequest("POST", "/jobs/j-1/bookmark", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["bookmarked"] != true {
		t.Errorf("Expected bookmarked=true, got %v", response["bookmarked"])
	}
}
