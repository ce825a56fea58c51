package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/newsforge/newsforge-backend/internal/http/response"
	"github.com/newsforge/newsforge-backend/internal/platform/ctxutil"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type submitJobRequest struct {
	ArticleID uuid.UUID `json:"article_id" binding:"required"`
}

// POST /api/jobs/content-generation
func (h *JobHandler) SubmitContentGeneration(c *gin.Context) {
	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ctx := c.Request.Context()
	job, err := h.jobs.SubmitContentGeneration(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), req.ArticleID)
	if err != nil {
		respondServiceError(c, "submit_job_failed", err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}

// GET /api/jobs
func (h *JobHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	out, err := h.jobs.List(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), c.Query("status"), limit, offset)
	if err != nil {
		respondServiceError(c, "list_jobs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": out})
}

// GET /api/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	ctx := c.Request.Context()
	job, err := h.jobs.Get(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), id)
	if err != nil {
		respondServiceError(c, "get_job_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	ctx := c.Request.Context()
	cancelled, err := h.jobs.Cancel(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), id)
	if err != nil {
		respondServiceError(c, "cancel_job_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"id": id, "cancelled": cancelled})
}
