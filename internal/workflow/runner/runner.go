package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/newsforge/newsforge-backend/internal/data/repos/runs"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
	"github.com/newsforge/newsforge-backend/internal/workflow"
	"github.com/newsforge/newsforge-backend/internal/workflow/executor"
	"github.com/newsforge/newsforge-backend/internal/workflow/planner"
)

// articlePreviewChars bounds article_content_preview so short prompt
// templates can reference the article without blowing the token budget.
const articlePreviewChars = 2000

// StepSummary is the per-step record serialized onto workflow_run.steps.
type StepSummary struct {
	Index      int      `json:"index"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Status     string   `json:"status"`
	ItemCount  int      `json:"item_count"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// ProgressFunc reports step completion upward (job progress, event bus).
type ProgressFunc func(stepIndex, stepsTotal int, category, status string)

// CancelFunc reports whether the owning job has been cancelled. Checked
// between steps, never mid-call; the in-flight step finishes first.
type CancelFunc func() bool

type Options struct {
	StepTimeout time.Duration
	RunTimeout  time.Duration
	OnProgress  ProgressFunc
	IsCancelled CancelFunc
}

/*
Runner executes a tenant's full plan against one article, strictly in order.
A failed step does not stop the run: later steps run with whatever scope has
accumulated, and the run lands on partial when at least one step succeeded.
Cancellation marks all remaining steps skipped and the run cancelled; run
deadline expiry skips the rest the same way but marks the run failed.
*/
type Runner struct {
	planner  *planner.Planner
	executor *executor.Executor
	runRepo  runs.WorkflowRunRepo
	log      *logger.Logger
}

func New(p *planner.Planner, e *executor.Executor, runRepo runs.WorkflowRunRepo, baseLog *logger.Logger) *Runner {
	return &Runner{
		planner:  p,
		executor: e,
		runRepo:  runRepo,
		log:      baseLog.With("component", "WorkflowRunner"),
	}
}

func (r *Runner) Run(dbc dbctx.Context, tenantID uuid.UUID, article *types.SourceArticle, jobID *uuid.UUID, opts Options) (*types.WorkflowRun, error) {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 120 * time.Second
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 10 * time.Minute
	}

	plan, err := r.planner.Plan(dbc, tenantID)
	if err != nil {
		return nil, err
	}

	run := &types.WorkflowRun{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ArticleID:  article.ID,
		JobID:      jobID,
		Status:     types.RunStatusRunning,
		StepsTotal: len(plan),
		StartedAt:  time.Now().UTC(),
	}
	if err := r.runRepo.Create(dbc, run); err != nil {
		return nil, fmt.Errorf("create workflow run: %w", err)
	}

	runCtx, cancel := context.WithTimeout(dbc.Ctx, opts.RunTimeout)
	defer cancel()

	scope := seedScope(article)
	summaries := make([]StepSummary, 0, len(plan))
	succeeded := 0
	cancelled := false
	expired := false

	for i, step := range plan {
		if !cancelled && opts.IsCancelled != nil && opts.IsCancelled() {
			cancelled = true
		}
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			expired = true
		case runCtx.Err() != nil:
			cancelled = true
		}
		if cancelled || expired {
			summaries = append(summaries, StepSummary{
				Index:    i,
				Name:     step.Name,
				Category: step.Category,
				Status:   types.StepStatusSkipped,
			})
			continue
		}

		stepCtx, stepCancel := context.WithTimeout(runCtx, opts.StepTimeout)
		start := time.Now()
		outcome := r.executor.Execute(
			dbctx.Context{Ctx: stepCtx, Tx: dbc.Tx},
			tenantID, run.ID, i, step, scope,
		)
		stepCancel()

		if outcome.Status == types.StepStatusSucceeded {
			succeeded++
		}
		// Failed steps chain too, binding the key to the empty string, so
		// later prompts resolve it without an unresolved-placeholder warning.
		if outcome.ChainKey != "" {
			scope.Bind(outcome.ChainKey, outcome.ChainValue)
		}
		summaries = append(summaries, StepSummary{
			Index:      i,
			Name:       step.Name,
			Category:   step.Category,
			Status:     outcome.Status,
			ItemCount:  outcome.ItemCount,
			Warnings:   outcome.Warnings,
			Error:      outcome.Error,
			DurationMS: time.Since(start).Milliseconds(),
		})
		if opts.OnProgress != nil {
			opts.OnProgress(i, len(plan), step.Category, outcome.Status)
		}
		r.log.Info("workflow step finished",
			"run_id", run.ID,
			"step", i,
			"category", step.Category,
			"status", outcome.Status,
			"items", outcome.ItemCount,
		)
	}

	// The deadline may have expired during the last step, after the loop's
	// boundary check.
	if !cancelled && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		expired = true
	}

	status := finalStatus(len(plan), succeeded, cancelled, expired)
	finished := time.Now().UTC()
	stepsJSON, _ := json.Marshal(summaries)

	run.Status = status
	run.StepsSucceeded = succeeded
	run.Steps = datatypes.JSON(stepsJSON)
	run.FinishedAt = &finished

	updates := map[string]interface{}{
		"status":          status,
		"steps_succeeded": succeeded,
		"steps":           datatypes.JSON(stepsJSON),
		"finished_at":     finished,
	}
	// Persist the summary on a fresh context: the run deadline may already
	// have expired and the summary must land regardless.
	if err := r.runRepo.UpdateFields(dbctx.Context{Ctx: context.WithoutCancel(dbc.Ctx), Tx: dbc.Tx}, run.ID, updates); err != nil {
		r.log.Error("workflow run finalize failed", "run_id", run.ID, "error", err)
		return run, err
	}
	return run, nil
}

func seedScope(article *types.SourceArticle) workflow.Scope {
	scope := make(workflow.Scope, 8)
	scope.Bind("article_title", article.Title)
	scope.Bind("article_content", article.Content)
	scope.Bind("article_source", article.Source)
	scope.Bind("article_url", article.URL)
	scope.Bind("article_content_preview", firstNRunes(article.Content, articlePreviewChars))
	if article.PublishedAt != nil {
		scope.Bind("article_published_at", article.PublishedAt.UTC().Format(time.RFC3339))
	}
	return scope
}

func finalStatus(total, succeeded int, cancelled, expired bool) string {
	switch {
	case cancelled:
		return types.RunStatusCancelled
	case expired:
		return types.RunStatusFailed
	case succeeded == total:
		return types.RunStatusSucceeded
	case succeeded > 0:
		return types.RunStatusPartial
	default:
		return types.RunStatusFailed
	}
}

func firstNRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
