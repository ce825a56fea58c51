package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/newsforge/newsforge-backend/internal/http/handlers"
	httpMW "github.com/newsforge/newsforge-backend/internal/http/middleware"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	HealthHandler   *httpH.HealthHandler
	TemplateHandler *httpH.TemplateHandler
	ArticleHandler  *httpH.ArticleHandler
	JobHandler      *httpH.JobHandler
	RunHandler      *httpH.RunHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("newsforge-backend"))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Health)
	}

	api := r.Group("/api")
	api.Use(httpMW.Tenant())
	{
		if cfg.TemplateHandler != nil {
			api.POST("/templates", cfg.TemplateHandler.Create)
			api.GET("/templates", cfg.TemplateHandler.List)
			api.PUT("/templates/order", cfg.TemplateHandler.Reorder)
			api.GET("/templates/:id", cfg.TemplateHandler.Get)
			api.GET("/templates/:id/versions", cfg.TemplateHandler.ListVersions)
			api.POST("/templates/:id/versions", cfg.TemplateHandler.NewVersion)
			api.PATCH("/templates/:id/active", cfg.TemplateHandler.SetActive)
		}

		if cfg.ArticleHandler != nil {
			api.POST("/articles", cfg.ArticleHandler.Create)
			api.GET("/articles", cfg.ArticleHandler.List)
			api.GET("/articles/:id", cfg.ArticleHandler.Get)
		}

		if cfg.JobHandler != nil {
			api.POST("/jobs/content-generation", cfg.JobHandler.SubmitContentGeneration)
			api.GET("/jobs", cfg.JobHandler.List)
			api.GET("/jobs/:id", cfg.JobHandler.Get)
			api.POST("/jobs/:id/cancel", cfg.JobHandler.Cancel)
		}

		if cfg.RunHandler != nil {
			api.GET("/runs", cfg.RunHandler.List)
			api.GET("/runs/:id", cfg.RunHandler.Get)
			api.GET("/runs/:id/artifacts", cfg.RunHandler.Artifacts)
			api.GET("/runs/:id/responses", cfg.RunHandler.Responses)
			api.GET("/jobs/:id/run", cfg.RunHandler.GetByJob)
			api.GET("/artifacts", cfg.RunHandler.ArtifactsByCategory)
		}
	}

	return r
}
