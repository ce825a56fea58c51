package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/newsforge/newsforge-backend/internal/http/response"
	"github.com/newsforge/newsforge-backend/internal/platform/ctxutil"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/services"
)

type RunHandler struct {
	runs services.RunService
}

func NewRunHandler(runs services.RunService) *RunHandler {
	return &RunHandler{runs: runs}
}

// GET /api/runs
func (h *RunHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	out, err := h.runs.List(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), limit, offset)
	if err != nil {
		respondServiceError(c, "list_runs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"runs": out})
}

// GET /api/runs/:id
func (h *RunHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	ctx := c.Request.Context()
	summary, err := h.runs.Summary(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), id)
	if err != nil {
		respondServiceError(c, "get_run_failed", err)
		return
	}
	response.RespondOK(c, summary)
}

// GET /api/runs/:id/artifacts
func (h *RunHandler) Artifacts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	ctx := c.Request.Context()
	out, err := h.runs.Artifacts(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), id)
	if err != nil {
		respondServiceError(c, "list_artifacts_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"artifacts": out})
}

// GET /api/jobs/:id/run
func (h *RunHandler) GetByJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return
	}
	ctx := c.Request.Context()
	run, err := h.runs.GetByJob(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), jobID)
	if err != nil {
		respondServiceError(c, "get_job_run_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// GET /api/artifacts?category=...&limit=
func (h *RunHandler) ArtifactsByCategory(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	if category == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_category", errors.New("category query parameter is required"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	ctx := c.Request.Context()
	out, err := h.runs.ArtifactsByCategory(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), category, limit)
	if err != nil {
		respondServiceError(c, "list_artifacts_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"artifacts": out})
}

// GET /api/runs/:id/responses?category=...&success=true|false
func (h *RunHandler) Responses(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	var success *bool
	if raw := strings.TrimSpace(c.Query("success")); raw != "" {
		v, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_success_filter", parseErr)
			return
		}
		success = &v
	}
	ctx := c.Request.Context()
	out, err := h.runs.Responses(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), id, c.Query("category"), success)
	if err != nil {
		respondServiceError(c, "list_responses_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"responses": out})
}
