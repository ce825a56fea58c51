package runs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/newsforge/newsforge-backend/internal/domain"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

type WorkflowRunRepo interface {
	Create(dbc dbctx.Context, run *types.WorkflowRun) error
	GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.WorkflowRun, error)
	GetByJobID(dbc dbctx.Context, tenantID, jobID uuid.UUID) (*types.WorkflowRun, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, limit, offset int) ([]*types.WorkflowRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error
}

type workflowRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkflowRunRepo(db *gorm.DB, baseLog *logger.Logger) WorkflowRunRepo {
	return &workflowRunRepo{
		db:  db,
		log: baseLog.With("repo", "WorkflowRunRepo"),
	}
}

func (r *workflowRunRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *workflowRunRepo) Create(dbc dbctx.Context, run *types.WorkflowRun) error {
	if run == nil {
		return pkgerrors.ErrInvalidArgument
	}
	if run.TenantID == uuid.Nil {
		return pkgerrors.ErrTenantMissing
	}
	return r.handle(dbc).Create(run).Error
}

func (r *workflowRunRepo) GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.WorkflowRun, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	var run types.WorkflowRun
	err := r.handle(dbc).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *workflowRunRepo) GetByJobID(dbc dbctx.Context, tenantID, jobID uuid.UUID) (*types.WorkflowRun, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	var run types.WorkflowRun
	err := r.handle(dbc).
		Where("tenant_id = ? AND job_id = ?", tenantID, jobID).
		Order("created_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *workflowRunRepo) List(dbc dbctx.Context, tenantID uuid.UUID, limit, offset int) ([]*types.WorkflowRun, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.WorkflowRun
	err := r.handle(dbc).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

func (r *workflowRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now()
	res := r.handle(dbc).
		Model(&types.WorkflowRun{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}
