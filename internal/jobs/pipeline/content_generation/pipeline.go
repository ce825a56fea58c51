package content_generation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	types "github.com/newsforge/newsforge-backend/internal/domain"
	jobrt "github.com/newsforge/newsforge-backend/internal/jobs/runtime"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/workflow/runner"
)

/*
Run drives one content-generation job: load the article, execute the tenant's
workflow against it, and land the job on a terminal status mirroring the run.
The runner owns step sequencing and artifact persistence; this pipeline owns
job-side bookkeeping (progress, cancellation polling, result payload).
*/
func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}

	articleID, ok := jc.PayloadUUID("article_id")
	if !ok || articleID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing article_id"))
		return nil
	}
	tenantID := jc.Job.TenantID

	dbc := dbctx.Context{Ctx: jc.Ctx}
	article, err := p.articles.GetByID(dbc, tenantID, articleID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			jc.Fail("validate", fmt.Errorf("article %s not found for tenant", articleID))
			return nil
		}
		jc.Fail("load_article", err)
		return nil
	}

	jc.Progress("plan", 5, "Planning workflow")

	run, err := p.runner.Run(dbc, tenantID, article, &jc.Job.ID, runner.Options{
		StepTimeout: p.stepTimeout,
		RunTimeout:  p.runTimeout,
		IsCancelled: jc.IsCancelled,
		OnProgress: func(stepIndex, stepsTotal int, category, status string) {
			pct := 5 + (90*(stepIndex+1))/stepsTotal
			jc.Progress("execute", pct, fmt.Sprintf("%s: %s", category, status))
		},
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNoPlan) {
			jc.Fail("plan", err)
			return nil
		}
		jc.Fail("execute", err)
		return nil
	}

	result := map[string]any{
		"run_id":          run.ID,
		"run_status":      run.Status,
		"steps_total":     run.StepsTotal,
		"steps_succeeded": run.StepsSucceeded,
	}

	switch run.Status {
	case types.RunStatusCancelled:
		// The cancel already flipped the job row; Succeed/Fail would be
		// rejected by the status guard. Nothing left to write.
		p.log.Info("run cancelled", "job_id", jc.Job.ID, "run_id", run.ID)
	case types.RunStatusFailed:
		jc.Fail("finalize", fmt.Errorf("run failed: %d/%d steps succeeded", run.StepsSucceeded, run.StepsTotal))
	default:
		jc.Succeed("finalize", result)
	}
	return nil
}
