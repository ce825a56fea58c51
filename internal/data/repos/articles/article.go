package articles

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/newsforge/newsforge-backend/internal/domain"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

type Repo interface {
	Create(dbc dbctx.Context, a *types.SourceArticle) error
	GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.SourceArticle, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, limit, offset int) ([]*types.SourceArticle, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{
		db:  db,
		log: baseLog.With("repo", "ArticleRepo"),
	}
}

func (r *repo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *repo) Create(dbc dbctx.Context, a *types.SourceArticle) error {
	if a == nil {
		return pkgerrors.ErrInvalidArgument
	}
	if a.TenantID == uuid.Nil {
		return pkgerrors.ErrTenantMissing
	}
	return r.handle(dbc).Create(a).Error
}

func (r *repo) GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.SourceArticle, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	var a types.SourceArticle
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

func (r *repo) List(dbc dbctx.Context, tenantID uuid.UUID, limit, offset int) ([]*types.SourceArticle, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.SourceArticle
	err := r.handle(dbc).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}
