package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"github.com/newsforge/newsforge-backend/internal/data/repos/jobs"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	"github.com/newsforge/newsforge-backend/internal/jobs/runtime"
	"github.com/newsforge/newsforge-backend/internal/observability"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/envutil"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
	"github.com/newsforge/newsforge-backend/internal/services"
)

// Config tunes the claim loop. Zero values take the documented defaults.
type Config struct {
	Concurrency      int           // claim loops in this process (WORKER_CONCURRENCY, default 4)
	MaxAttempts      int           // attempts before a job stays failed (default 3)
	RetryDelay       time.Duration // wait before a failed job is reclaimable (default 30s)
	HeartbeatEvery   time.Duration // heartbeat period while a handler runs (default 30s)
	TenantMaxRunning int64         // per-tenant running cap, 0 = unlimited
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:      envutil.Int("WORKER_CONCURRENCY", 4),
		MaxAttempts:      envutil.Int("JOB_MAX_ATTEMPTS", 3),
		RetryDelay:       envutil.Seconds("JOB_RETRY_DELAY_SECONDS", 30*time.Second),
		HeartbeatEvery:   envutil.Seconds("JOB_HEARTBEAT_SECONDS", 30*time.Second),
		TenantMaxRunning: int64(envutil.Int("TENANT_MAX_CONCURRENT_RUNS", 0)),
	}
}

/*
Worker polls the job_run table and dispatches claimed jobs to registered
handlers. One heartbeat goroutine runs per claimed job; a worker that stops
heartbeating for three periods has its jobs reclaimed by ClaimNextRunnable's
stale-running branch. The per-tenant cap is enforced twice: a process-local
semaphore and a cluster-wide count against the table, so one noisy tenant
cannot monopolize the pool.
*/
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     jobs.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	cfg      Config

	tenantSems sync.Map // tenant id string -> *semaphore.Weighted
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo jobs.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = 30 * time.Second
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("starting job worker pool", "concurrency", w.cfg.Concurrency)
	for i := 0; i < w.cfg.Concurrency; i++ {
		go w.runLoop(ctx, workerID(i+1))
	}
}

func workerID(n int) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, n)
}

func (w *Worker) runLoop(ctx context.Context, id string) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	// Reclaim threshold: three silent heartbeat periods.
	staleRunning := 3 * w.cfg.HeartbeatEvery

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker loop stopped", "worker_id", id)
			return
		case <-ticker.C:
			job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, id, w.cfg.MaxAttempts, w.cfg.RetryDelay, staleRunning)
			if err != nil {
				w.log.Warn("claim failed", "worker_id", id, "error", err)
				continue
			}
			if job == nil {
				continue
			}
			observability.Current().ObserveJobClaimed(job.JobType)

			if !w.admitTenant(ctx, job.TenantID) {
				if rqErr := w.repo.Requeue(dbctx.Context{Ctx: ctx}, job.ID, "tenant concurrency cap reached"); rqErr != nil {
					w.log.Warn("requeue failed", "worker_id", id, "job_id", job.ID, "error", rqErr)
				}
				continue
			}

			w.execute(ctx, id, job)
			w.releaseTenant(job.TenantID)
		}
	}
}

// admitTenant enforces the per-tenant running cap: the semaphore bounds this
// process, the table count bounds the cluster. The claimed job itself is
// already counted as running, hence the > comparison.
func (w *Worker) admitTenant(ctx context.Context, tenantID uuid.UUID) bool {
	if w.cfg.TenantMaxRunning <= 0 {
		return true
	}
	semAny, _ := w.tenantSems.LoadOrStore(tenantID.String(), semaphore.NewWeighted(w.cfg.TenantMaxRunning))
	if !semAny.(*semaphore.Weighted).TryAcquire(1) {
		return false
	}
	running, err := w.repo.CountRunningForTenant(dbctx.Context{Ctx: ctx}, tenantID)
	if err != nil {
		w.log.Warn("tenant running count failed", "tenant_id", tenantID, "error", err)
		return true
	}
	if running > w.cfg.TenantMaxRunning {
		w.releaseTenant(tenantID)
		return false
	}
	return true
}

func (w *Worker) releaseTenant(tenantID uuid.UUID) {
	if w.cfg.TenantMaxRunning <= 0 {
		return
	}
	if semAny, ok := w.tenantSems.Load(tenantID.String()); ok {
		semAny.(*semaphore.Weighted).Release(1)
	}
}

func (w *Worker) execute(ctx context.Context, id string, job *types.JobRun) {
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("no handler registered for job_type",
			"worker_id", id, "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		observability.Current().ObserveJobFailed(job.JobType, "dispatch")
		return
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go w.heartbeatLoop(hbCtx, job.ID)
	defer stopHeartbeat()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job handler panic",
				"worker_id", id, "job_id", job.ID, "job_type", job.JobType, "panic", r)
			jc.Fail("panic", fmt.Errorf("panic: %v", r))
			observability.Current().ObserveJobFailed(job.JobType, "panic")
		}
	}()

	if runErr := h.Run(jc); runErr != nil {
		// Most pipelines call jc.Fail themselves; this is a safety net.
		jc.Fail("run", runErr)
		observability.Current().ObserveJobFailed(job.JobType, "run")
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context, jobID uuid.UUID) {
	ticker := time.NewTicker(w.cfg.HeartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.repo.Heartbeat(dbctx.Context{Ctx: ctx}, jobID); err != nil {
				w.log.Warn("heartbeat failed", "job_id", jobID, "error", err)
			}
		}
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}
