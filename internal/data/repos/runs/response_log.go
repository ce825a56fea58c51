package runs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/newsforge/newsforge-backend/internal/domain"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

// ResponseLogFilter narrows ListByRun. Zero values mean "no filter".
type ResponseLogFilter struct {
	Category string
	Success  *bool
}

// ResponseLogRepo is append-only: one row per model call, written even when
// the call or the subsequent persistence failed. There is no update or delete
// path besides retention pruning.
type ResponseLogRepo interface {
	Append(dbc dbctx.Context, entry *types.ResponseLog) error
	ListByRun(dbc dbctx.Context, tenantID, runID uuid.UUID, filter ResponseLogFilter) ([]*types.ResponseLog, error)
	PruneOlderThan(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type responseLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResponseLogRepo(db *gorm.DB, baseLog *logger.Logger) ResponseLogRepo {
	return &responseLogRepo{
		db:  db,
		log: baseLog.With("repo", "ResponseLogRepo"),
	}
}

func (r *responseLogRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *responseLogRepo) Append(dbc dbctx.Context, entry *types.ResponseLog) error {
	if entry == nil {
		return pkgerrors.ErrInvalidArgument
	}
	if entry.TenantID == uuid.Nil {
		return pkgerrors.ErrTenantMissing
	}
	return r.handle(dbc).Create(entry).Error
}

func (r *responseLogRepo) ListByRun(dbc dbctx.Context, tenantID, runID uuid.UUID, filter ResponseLogFilter) ([]*types.ResponseLog, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	q := r.handle(dbc).
		Where("tenant_id = ? AND run_id = ?", tenantID, runID)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Success != nil {
		q = q.Where("success = ?", *filter.Success)
	}
	var out []*types.ResponseLog
	err := q.Order("step_index ASC, created_at ASC").Find(&out).Error
	return out, err
}

// PruneOlderThan deletes provenance rows past the retention window. Runs from
// a periodic maintenance job, never from request paths.
func (r *responseLogRepo) PruneOlderThan(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	res := r.handle(dbc).
		Where("created_at < ?", cutoff).
		Delete(&types.ResponseLog{})
	return res.RowsAffected, res.Error
}
