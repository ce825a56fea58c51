package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/newsforge/newsforge-backend/internal/http/response"
	"github.com/newsforge/newsforge-backend/internal/platform/ctxutil"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/services"
)

type ArticleHandler struct {
	articles services.ArticleService
}

func NewArticleHandler(articles services.ArticleService) *ArticleHandler {
	return &ArticleHandler{articles: articles}
}

type createArticleRequest struct {
	Title       string     `json:"title" binding:"required"`
	Content     string     `json:"content" binding:"required"`
	Source      string     `json:"source"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at"`
}

// POST /api/articles
func (h *ArticleHandler) Create(c *gin.Context) {
	var req createArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ctx := c.Request.Context()
	a, err := h.articles.Create(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), services.CreateArticleInput{
		Title:       req.Title,
		Content:     req.Content,
		Source:      req.Source,
		URL:         req.URL,
		PublishedAt: req.PublishedAt,
	})
	if err != nil {
		respondServiceError(c, "create_article_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"article": a})
}

// GET /api/articles
func (h *ArticleHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	out, err := h.articles.List(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), limit, offset)
	if err != nil {
		respondServiceError(c, "list_articles_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"articles": out})
}

// GET /api/articles/:id
func (h *ArticleHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_article_id", err)
		return
	}
	ctx := c.Request.Context()
	a, err := h.articles.Get(dbctx.Context{Ctx: ctx}, ctxutil.TenantID(ctx), id)
	if err != nil {
		respondServiceError(c, "get_article_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"article": a})
}
