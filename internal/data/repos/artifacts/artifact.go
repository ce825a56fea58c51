package artifacts

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/newsforge/newsforge-backend/internal/domain"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

// Repo stores step outputs. Rows are insert-only; a re-run produces new rows
// under a new run id rather than updating old ones.
type Repo interface {
	Create(dbc dbctx.Context, a *types.Artifact) error
	GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.Artifact, error)
	ListByRun(dbc dbctx.Context, tenantID, runID uuid.UUID) ([]*types.Artifact, error)
	ListByCategory(dbc dbctx.Context, tenantID uuid.UUID, category string, limit int) ([]*types.Artifact, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{
		db:  db,
		log: baseLog.With("repo", "ArtifactRepo"),
	}
}

func (r *repo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *repo) Create(dbc dbctx.Context, a *types.Artifact) error {
	if a == nil {
		return pkgerrors.ErrInvalidArgument
	}
	if a.TenantID == uuid.Nil {
		return pkgerrors.ErrTenantMissing
	}
	return r.handle(dbc).Create(a).Error
}

func (r *repo) GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.Artifact, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	var a types.Artifact
	err := r.handle(dbc).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) ListByRun(dbc dbctx.Context, tenantID, runID uuid.UUID) ([]*types.Artifact, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	var out []*types.Artifact
	err := r.handle(dbc).
		Where("tenant_id = ? AND run_id = ?", tenantID, runID).
		Order("step_index ASC, created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *repo) ListByCategory(dbc dbctx.Context, tenantID uuid.UUID, category string, limit int) ([]*types.Artifact, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.Artifact
	err := r.handle(dbc).
		Where("tenant_id = ? AND category = ?", tenantID, category).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
