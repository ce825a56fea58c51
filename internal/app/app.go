package app

import (
	"context"
	"fmt"
	"time"

	"github.com/newsforge/newsforge-backend/internal/data/db"
	"github.com/newsforge/newsforge-backend/internal/data/repos/articles"
	"github.com/newsforge/newsforge-backend/internal/data/repos/artifacts"
	"github.com/newsforge/newsforge-backend/internal/data/repos/jobs"
	"github.com/newsforge/newsforge-backend/internal/data/repos/runs"
	"github.com/newsforge/newsforge-backend/internal/data/repos/templates"
	httpsrv "github.com/newsforge/newsforge-backend/internal/http"
	httpH "github.com/newsforge/newsforge-backend/internal/http/handlers"
	"github.com/newsforge/newsforge-backend/internal/jobs/pipeline/content_generation"
	"github.com/newsforge/newsforge-backend/internal/jobs/runtime"
	"github.com/newsforge/newsforge-backend/internal/jobs/worker"
	"github.com/newsforge/newsforge-backend/internal/observability"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
	"github.com/newsforge/newsforge-backend/internal/platform/openai"
	"github.com/newsforge/newsforge-backend/internal/realtime/bus"
	"github.com/newsforge/newsforge-backend/internal/services"
	"github.com/newsforge/newsforge-backend/internal/workflow/executor"
	"github.com/newsforge/newsforge-backend/internal/workflow/parsers"
	"github.com/newsforge/newsforge-backend/internal/workflow/planner"
	"github.com/newsforge/newsforge-backend/internal/workflow/runner"
)

/*
Run wires the whole service: postgres, repos, the workflow engine, the job
worker pool and the HTTP API, then blocks on the gin server. The worker pool
shares the process with the API by default; WORKER_ENABLED=false turns this
process into an API-only node.
*/
func Run(ctx context.Context, log *logger.Logger, cfg Config) error {
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "newsforge-backend",
	})
	defer func() {
		_ = shutdownOtel(context.Background())
	}()
	observability.InitMetrics(log)

	// Postgres
	pg, err := db.NewPostgresService(log)
	if err != nil {
		return fmt.Errorf("postgres init: %w", err)
	}
	gdb := pg.DB()
	if err := db.AutoMigrateAll(gdb); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}

	// Repos
	templateRepo := templates.NewRepo(gdb, log)
	articleRepo := articles.NewRepo(gdb, log)
	artifactRepo := artifacts.NewRepo(gdb, log)
	runRepo := runs.NewWorkflowRunRepo(gdb, log)
	respLogRepo := runs.NewResponseLogRepo(gdb, log)
	jobRepo := jobs.NewJobRunRepo(gdb, log)

	// Event bus: redis when configured, otherwise in-process no-op.
	eventBus, busErr := bus.NewRedisBus(log)
	if busErr != nil {
		log.Warn("redis bus unavailable, job events disabled", "error", busErr)
		eventBus = bus.NewNoopBus()
	}
	defer func() { _ = eventBus.Close() }()

	// Provider client
	aiClient, err := openai.NewClient(log)
	if err != nil {
		return fmt.Errorf("openai init: %w", err)
	}

	// Workflow engine
	registry := parsers.Default()
	wfPlanner := planner.New(templateRepo, cfg.DefaultMaxOutputTokens, log)
	wfExecutor := executor.New(aiClient, artifactRepo, respLogRepo, registry, log)
	wfRunner := runner.New(wfPlanner, wfExecutor, runRepo, log)

	// Services
	notifier := services.NewJobNotifier(eventBus, log)
	templateService := services.NewTemplateService(templateRepo, log)
	articleService := services.NewArticleService(articleRepo, log)
	jobService := services.NewJobService(jobRepo, articleRepo, log)
	runService := services.NewRunService(runRepo, artifactRepo, respLogRepo, log)

	// Worker pool
	if cfg.WorkerEnabled {
		jobRegistry := runtime.NewRegistry()
		pipeline := content_generation.New(gdb, log, articleRepo, wfRunner, cfg.StepTimeout, cfg.RunTimeout)
		if err := jobRegistry.Register(pipeline); err != nil {
			return fmt.Errorf("register pipeline: %w", err)
		}
		pool := worker.NewWorker(gdb, log, jobRepo, jobRegistry, notifier, worker.ConfigFromEnv())
		pool.Start(ctx)
	}

	if cfg.ResponseLogRetentionDays > 0 {
		go retentionLoop(ctx, log, respLogRepo, cfg.ResponseLogRetentionDays)
	}

	// HTTP
	server := httpsrv.NewServer(httpsrv.RouterConfig{
		Log:             log,
		HealthHandler:   httpH.NewHealthHandler(gdb),
		TemplateHandler: httpH.NewTemplateHandler(templateService),
		ArticleHandler:  httpH.NewArticleHandler(articleService),
		JobHandler:      httpH.NewJobHandler(jobService),
		RunHandler:      httpH.NewRunHandler(runService),
	})
	log.Info("http server starting", "port", cfg.Port)
	return server.Run(":" + cfg.Port)
}

// retentionLoop prunes provenance rows past the retention window once a day.
func retentionLoop(ctx context.Context, log *logger.Logger, repo runs.ResponseLogRepo, days int) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -days)
			n, err := repo.PruneOlderThan(dbctx.Context{Ctx: ctx}, cutoff)
			if err != nil {
				log.Warn("response log prune failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("response log pruned", "rows", n, "cutoff", cutoff.Format(time.RFC3339))
			}
		}
	}
}
