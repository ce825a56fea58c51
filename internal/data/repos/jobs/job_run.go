package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/newsforge/newsforge-backend/internal/domain"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

/*
JobRunRepo is the DB-backed queue adapter. The claim protocol:

  - a row is runnable when it is queued, or failed with attempts remaining
    past the retry delay, or running with a heartbeat older than the stale
    cutoff (its worker is presumed dead),
  - ClaimNextRunnable selects one runnable row FOR UPDATE SKIP LOCKED and
    flips it to running with attempts+1, so at most one worker owns an
    attempt,
  - terminal writes go through UpdateFieldsUnlessStatus so a cancel that
    landed first is never overwritten.
*/
type JobRunRepo interface {
	Create(dbc dbctx.Context, job *types.JobRun) error
	GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.JobRun, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, status string, limit, offset int) ([]*types.JobRun, error)
	ClaimNextRunnable(dbc dbctx.Context, workerID string, maxAttempts int, retryDelay, staleRunning time.Duration) (*types.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	Cancel(dbc dbctx.Context, tenantID, id uuid.UUID) (bool, error)
	Requeue(dbc dbctx.Context, id uuid.UUID, reason string) error
	CountRunningForTenant(dbc dbctx.Context, tenantID uuid.UUID) (int64, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *jobRunRepo) Create(dbc dbctx.Context, job *types.JobRun) error {
	if job == nil {
		return pkgerrors.ErrInvalidArgument
	}
	if job.TenantID == uuid.Nil {
		return pkgerrors.ErrTenantMissing
	}
	if job.Status == "" {
		job.Status = types.JobStatusQueued
	}
	return r.handle(dbc).Create(job).Error
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.JobRun, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	var job types.JobRun
	err := r.handle(dbc).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRunRepo) List(dbc dbctx.Context, tenantID uuid.UUID, status string, limit, offset int) ([]*types.JobRun, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := r.handle(dbc).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*types.JobRun
	err := q.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, workerID string, maxAttempts int, retryDelay, staleRunning time.Duration) (*types.JobRun, error) {
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.JobRun
	err := r.handle(dbc).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          status = ?
          OR (
            status = ?
            AND attempts < ?
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.JobStatusQueued, types.JobStatusFailed, maxAttempts, retryCutoff, types.JobStatusRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       types.JobStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"worker_id":    workerID,
				"locked_at":    now,
				"heartbeat_at": now,
				"started_at":   gorm.Expr("COALESCE(started_at, ?)", now),
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = types.JobStatusRunning
		job.Attempts++
		job.WorkerID = workerID
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.handle(dbc).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := r.handle(dbc).
		Model(&types.JobRun{}).
		Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return r.handle(dbc).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

// Cancel flips a queued or running job to cancelled. Returns false when the
// job was already terminal; the caller treats that as a no-op, not an error.
func (r *jobRunRepo) Cancel(dbc dbctx.Context, tenantID, id uuid.UUID) (bool, error) {
	if tenantID == uuid.Nil {
		return false, pkgerrors.ErrTenantMissing
	}
	now := time.Now()
	res := r.handle(dbc).
		Model(&types.JobRun{}).
		Where("tenant_id = ? AND id = ? AND status IN ?", tenantID, id,
			[]string{types.JobStatusQueued, types.JobStatusRunning}).
		Updates(map[string]interface{}{
			"status":      types.JobStatusCancelled,
			"finished_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Requeue puts a just-claimed job back to queued without consuming the
// attempt, used when the tenant's concurrency cap is full.
func (r *jobRunRepo) Requeue(dbc dbctx.Context, id uuid.UUID, reason string) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return r.handle(dbc).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, types.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":       types.JobStatusQueued,
			"attempts":     gorm.Expr("GREATEST(attempts - 1, 0)"),
			"worker_id":    "",
			"locked_at":    nil,
			"heartbeat_at": nil,
			"details":      reason,
			"updated_at":   now,
		}).Error
}

func (r *jobRunRepo) CountRunningForTenant(dbc dbctx.Context, tenantID uuid.UUID) (int64, error) {
	if tenantID == uuid.Nil {
		return 0, pkgerrors.ErrTenantMissing
	}
	var count int64
	err := r.handle(dbc).
		Model(&types.JobRun{}).
		Where("tenant_id = ? AND status = ?", tenantID, types.JobStatusRunning).
		Count(&count).Error
	return count, err
}
