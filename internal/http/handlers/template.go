package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/newsforge/newsforge-backend/internal/http/response"
	"github.com/newsforge/newsforge-backend/internal/platform/ctxutil"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/services"
)

type TemplateHandler struct {
	templates services.TemplateService
}

func NewTemplateHandler(templates services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

type createTemplateRequest struct {
	Name           string         `json:"name" binding:"required"`
	Category       string         `json:"category" binding:"required"`
	ExecutionOrder int            `json:"execution_order"`
	Active         *bool          `json:"active"`
	PromptBody     string         `json:"prompt_body" binding:"required"`
	SystemMessage  string         `json:"system_message"`
	Parameters     map[string]any `json:"parameters"`
	CreatedBy      string         `json:"created_by"`
	Notes          string         `json:"notes"`
}

// POST /api/templates
func (h *TemplateHandler) Create(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ctx := c.Request.Context()
	t, v, err := h.templates.Create(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), services.CreateTemplateInput{
		Name:           req.Name,
		Category:       req.Category,
		ExecutionOrder: req.ExecutionOrder,
		Active:         req.Active,
		PromptBody:     req.PromptBody,
		SystemMessage:  req.SystemMessage,
		Parameters:     req.Parameters,
		CreatedBy:      req.CreatedBy,
		Notes:          req.Notes,
	})
	if err != nil {
		respondServiceError(c, "create_template_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"template": t, "version": v})
}

// GET /api/templates?category=
func (h *TemplateHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	out, err := h.templates.List(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), c.Query("category"))
	if err != nil {
		respondServiceError(c, "list_templates_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"templates": out})
}

// GET /api/templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_template_id", err)
		return
	}
	ctx := c.Request.Context()
	t, v, err := h.templates.Get(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), id)
	if err != nil {
		respondServiceError(c, "get_template_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"template": t, "current_version": v})
}

// GET /api/templates/:id/versions
func (h *TemplateHandler) ListVersions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_template_id", err)
		return
	}
	ctx := c.Request.Context()
	out, err := h.templates.ListVersions(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), id)
	if err != nil {
		respondServiceError(c, "list_versions_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"versions": out})
}

type newVersionRequest struct {
	PromptBody    string         `json:"prompt_body" binding:"required"`
	SystemMessage string         `json:"system_message"`
	Parameters    map[string]any `json:"parameters"`
	CreatedBy     string         `json:"created_by"`
	Notes         string         `json:"notes"`
}

// POST /api/templates/:id/versions
func (h *TemplateHandler) NewVersion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_template_id", err)
		return
	}
	var req newVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ctx := c.Request.Context()
	v, err := h.templates.NewVersion(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), id, services.NewVersionInput{
		PromptBody:    req.PromptBody,
		SystemMessage: req.SystemMessage,
		Parameters:    req.Parameters,
		CreatedBy:     req.CreatedBy,
		Notes:         req.Notes,
	})
	if err != nil {
		respondServiceError(c, "new_version_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"version": v})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// PATCH /api/templates/:id/active
func (h *TemplateHandler) SetActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_template_id", err)
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ctx := c.Request.Context()
	if err := h.templates.SetActive(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), id, *req.Active); err != nil {
		respondServiceError(c, "set_active_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"id": id, "active": *req.Active})
}

type reorderRequest struct {
	OrderedIDs []uuid.UUID `json:"ordered_ids" binding:"required"`
}

// PUT /api/templates/order
func (h *TemplateHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ctx := c.Request.Context()
	if err := h.templates.Reorder(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), req.OrderedIDs); err != nil {
		respondServiceError(c, "reorder_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"ordered_ids": req.OrderedIDs})
}
