package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/newsforge/newsforge-backend/internal/data/repos/testutil"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
)

func setup(t *testing.T) (dbctx.Context, JobRunRepo) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	return dbc, NewJobRunRepo(db, testutil.Logger(t))
}

func TestClaimNextRunnableQueued(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "claim-queued")
	job := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusQueued)

	claimed, err := repo.ClaimNextRunnable(dbc, "worker-1", 3, 30*time.Second, 90*time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("expected to claim the seeded job, got %+v", claimed)
	}
	if claimed.Status != types.JobStatusRunning || claimed.Attempts != 1 || claimed.WorkerID != "worker-1" {
		t.Fatalf("claim did not flip the row: %+v", claimed)
	}

	reloaded, err := repo.GetByID(dbc, tenant.ID, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Status != types.JobStatusRunning || reloaded.StartedAt == nil || reloaded.HeartbeatAt == nil {
		t.Fatalf("row not updated: %+v", reloaded)
	}

	// Nothing else runnable.
	again, err := repo.ClaimNextRunnable(dbc, "worker-2", 3, 30*time.Second, 90*time.Second)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no runnable job, got %+v", again)
	}
}

func TestClaimSkipsFreshRunning(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "claim-fresh")
	job := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusRunning)

	now := time.Now()
	if err := dbc.Tx.Model(&types.JobRun{}).Where("id = ?", job.ID).
		Update("heartbeat_at", now).Error; err != nil {
		t.Fatalf("set heartbeat: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(dbc, "worker-1", 3, 30*time.Second, 90*time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != nil {
		t.Fatalf("running job with a fresh heartbeat must not be reclaimed: %+v", claimed)
	}
}

func TestClaimReclaimsStaleRunning(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "claim-stale")
	job := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusRunning)

	stale := time.Now().Add(-10 * time.Minute)
	if err := dbc.Tx.Model(&types.JobRun{}).Where("id = ?", job.ID).
		Updates(map[string]interface{}{"heartbeat_at": stale, "attempts": 1, "worker_id": "dead-worker"}).Error; err != nil {
		t.Fatalf("age heartbeat: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(dbc, "worker-2", 3, 30*time.Second, 90*time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("stale running job should be reclaimed, got %+v", claimed)
	}
	if claimed.WorkerID != "worker-2" || claimed.Attempts != 2 {
		t.Fatalf("reclaim did not take over: %+v", claimed)
	}
}

func TestClaimRetriesFailedAfterDelay(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "claim-retry")
	job := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusFailed)

	old := time.Now().Add(-5 * time.Minute)
	if err := dbc.Tx.Model(&types.JobRun{}).Where("id = ?", job.ID).
		Updates(map[string]interface{}{"attempts": 1, "last_error_at": old}).Error; err != nil {
		t.Fatalf("age failure: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(dbc, "worker-1", 3, 30*time.Second, 90*time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID || claimed.Attempts != 2 {
		t.Fatalf("failed job past the retry delay should be retried, got %+v", claimed)
	}
}

func TestClaimRespectsRetryDelayAndAttempts(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "claim-limits")

	// Failed moments ago: inside the retry delay.
	recent := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusFailed)
	if err := dbc.Tx.Model(&types.JobRun{}).Where("id = ?", recent.ID).
		Updates(map[string]interface{}{"attempts": 1, "last_error_at": time.Now()}).Error; err != nil {
		t.Fatalf("mark recent failure: %v", err)
	}

	// Failed long ago but out of attempts.
	spent := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusFailed)
	if err := dbc.Tx.Model(&types.JobRun{}).Where("id = ?", spent.ID).
		Updates(map[string]interface{}{"attempts": 3, "last_error_at": time.Now().Add(-time.Hour)}).Error; err != nil {
		t.Fatalf("mark spent failure: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(dbc, "worker-1", 3, 30*time.Second, 90*time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != nil {
		t.Fatalf("neither job should be runnable, got %+v", claimed)
	}
}

func TestUpdateFieldsUnlessStatusGuardsCancelled(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "guard-cancel")
	job := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusCancelled)

	ok, err := repo.UpdateFieldsUnlessStatus(dbc, job.ID,
		[]string{types.JobStatusCancelled},
		map[string]interface{}{"status": types.JobStatusSucceeded})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok {
		t.Fatalf("cancelled job must reject terminal writes")
	}

	reloaded, err := repo.GetByID(dbc, tenant.ID, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Status != types.JobStatusCancelled {
		t.Fatalf("status was overwritten: %+v", reloaded)
	}
}

func TestCancel(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "cancel")
	job := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusQueued)

	ok, err := repo.Cancel(dbc, tenant.ID, job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !ok {
		t.Fatalf("queued job should cancel")
	}

	// Already terminal: a second cancel is a no-op.
	ok, err = repo.Cancel(dbc, tenant.ID, job.ID)
	if err != nil {
		t.Fatalf("cancel again: %v", err)
	}
	if ok {
		t.Fatalf("cancelled job should not cancel twice")
	}

	reloaded, err := repo.GetByID(dbc, tenant.ID, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Status != types.JobStatusCancelled || reloaded.FinishedAt == nil {
		t.Fatalf("cancel did not finalize the row: %+v", reloaded)
	}
}

func TestRequeueRestoresQueuedWithoutConsumingAttempt(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "requeue")
	testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusQueued)

	claimed, err := repo.ClaimNextRunnable(dbc, "worker-1", 3, 30*time.Second, 90*time.Second)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %+v", err, claimed)
	}

	if err := repo.Requeue(dbc, claimed.ID, "tenant concurrency cap reached"); err != nil {
		t.Fatalf("requeue: %v", err)
	}

	reloaded, err := repo.GetByID(dbc, tenant.ID, claimed.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Status != types.JobStatusQueued {
		t.Fatalf("status = %q", reloaded.Status)
	}
	if reloaded.Attempts != 0 {
		t.Fatalf("requeue must give the attempt back, attempts = %d", reloaded.Attempts)
	}
	if reloaded.WorkerID != "" || reloaded.HeartbeatAt != nil || reloaded.LockedAt != nil {
		t.Fatalf("requeue did not release the claim: %+v", reloaded)
	}
	if reloaded.Details != "tenant concurrency cap reached" {
		t.Fatalf("details = %q", reloaded.Details)
	}
}

func TestCountRunningForTenant(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "count-running")
	other := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "count-other")

	testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusRunning)
	testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusRunning)
	testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusQueued)
	testutil.SeedJob(t, dbc.Ctx, dbc.Tx, other.ID, types.JobStatusRunning)

	n, err := repo.CountRunningForTenant(dbc, tenant.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestGetByIDIsTenantScoped(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "scope-a")
	other := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "scope-b")
	job := testutil.SeedJob(t, dbc.Ctx, dbc.Tx, tenant.ID, types.JobStatusQueued)

	if _, err := repo.GetByID(dbc, other.ID, job.ID); err == nil {
		t.Fatalf("cross-tenant read must fail")
	}
	if _, err := repo.GetByID(dbc, tenant.ID, uuid.New()); err == nil {
		t.Fatalf("unknown id must fail")
	}
}
