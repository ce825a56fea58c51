package templates

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/newsforge/newsforge-backend/internal/domain"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

// Repo is the versioned template store. Every read is tenant scoped; the
// "exactly one current version per template" invariant is enforced inside
// NewVersion's transaction, never by post-hoc repair.
type Repo interface {
	Create(dbc dbctx.Context, t *types.PromptTemplate, v *types.TemplateVersion) error
	GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.PromptTemplate, error)
	List(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.PromptTemplate, error)
	ListActive(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.PromptTemplate, error)
	GetByCategory(dbc dbctx.Context, tenantID uuid.UUID, category string) ([]*types.PromptTemplate, error)
	CurrentVersion(dbc dbctx.Context, templateID uuid.UUID) (*types.TemplateVersion, error)
	CurrentVersions(dbc dbctx.Context, templateIDs []uuid.UUID) (map[uuid.UUID]*types.TemplateVersion, error)
	ListVersions(dbc dbctx.Context, templateID uuid.UUID) ([]*types.TemplateVersion, error)
	NewVersion(dbc dbctx.Context, templateID uuid.UUID, body, system string, params datatypes.JSON, createdBy, notes string) (*types.TemplateVersion, error)
	SetActive(dbc dbctx.Context, tenantID, id uuid.UUID, active bool) error
	Reorder(dbc dbctx.Context, tenantID uuid.UUID, orderedIDs []uuid.UUID) error
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{
		db:  db,
		log: baseLog.With("repo", "TemplateRepo"),
	}
}

func lockForUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func (r *repo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

// Create inserts the template together with its version 1, marked current,
// in one transaction.
func (r *repo) Create(dbc dbctx.Context, t *types.PromptTemplate, v *types.TemplateVersion) error {
	if t == nil || v == nil {
		return pkgerrors.ErrInvalidArgument
	}
	if t.TenantID == uuid.Nil {
		return pkgerrors.ErrTenantMissing
	}
	return r.handle(dbc).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		v.TemplateID = t.ID
		v.VersionNumber = 1
		v.IsCurrent = true
		return tx.Create(v).Error
	})
}

func (r *repo) GetByID(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.PromptTemplate, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	var t types.PromptTemplate
	err := r.handle(dbc).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) List(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.PromptTemplate, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	var out []*types.PromptTemplate
	err := r.handle(dbc).
		Where("tenant_id = ?", tenantID).
		Order("execution_order ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *repo) ListActive(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.PromptTemplate, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	var out []*types.PromptTemplate
	err := r.handle(dbc).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("execution_order ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *repo) GetByCategory(dbc dbctx.Context, tenantID uuid.UUID, category string) ([]*types.PromptTemplate, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}
	var out []*types.PromptTemplate
	err := r.handle(dbc).
		Where("tenant_id = ? AND category = ?", tenantID, category).
		Order("execution_order ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *repo) CurrentVersion(dbc dbctx.Context, templateID uuid.UUID) (*types.TemplateVersion, error) {
	var v types.TemplateVersion
	err := r.handle(dbc).
		Where("template_id = ? AND is_current = ?", templateID, true).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CurrentVersions snapshots the current version of many templates in one
// query; the planner uses it so an in-flight run never observes a version
// flip.
func (r *repo) CurrentVersions(dbc dbctx.Context, templateIDs []uuid.UUID) (map[uuid.UUID]*types.TemplateVersion, error) {
	out := make(map[uuid.UUID]*types.TemplateVersion, len(templateIDs))
	if len(templateIDs) == 0 {
		return out, nil
	}
	var rows []*types.TemplateVersion
	err := r.handle(dbc).
		Where("template_id IN ? AND is_current = ?", templateIDs, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, v := range rows {
		out[v.TemplateID] = v
	}
	return out, nil
}

func (r *repo) ListVersions(dbc dbctx.Context, templateID uuid.UUID) ([]*types.TemplateVersion, error) {
	var out []*types.TemplateVersion
	err := r.handle(dbc).
		Where("template_id = ?", templateID).
		Order("version_number DESC").
		Find(&out).Error
	return out, err
}

/*
NewVersion atomically retires the current version and inserts the next one:
  - locks the template row so concurrent edits on the same template serialize,
  - flips is_current=false on the old current,
  - inserts the new row with version_number = max+1 and is_current=true.

Runs at serializable isolation; callers retry on serialization failures.
*/
func (r *repo) NewVersion(dbc dbctx.Context, templateID uuid.UUID, body, system string, params datatypes.JSON, createdBy, notes string) (*types.TemplateVersion, error) {
	if templateID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	var created *types.TemplateVersion
	err := r.handle(dbc).Transaction(func(tx *gorm.DB) error {
		var t types.PromptTemplate
		if err := tx.Clauses(lockForUpdate()).
			Where("id = ?", templateID).
			First(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.ErrNotFound
			}
			return err
		}

		var maxVersion int
		if err := tx.Model(&types.TemplateVersion{}).
			Where("template_id = ?", templateID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}

		if err := tx.Model(&types.TemplateVersion{}).
			Where("template_id = ? AND is_current = ?", templateID, true).
			Update("is_current", false).Error; err != nil {
			return err
		}

		v := &types.TemplateVersion{
			ID:            uuid.New(),
			TemplateID:    templateID,
			VersionNumber: maxVersion + 1,
			PromptBody:    body,
			SystemMessage: system,
			Parameters:    params,
			IsCurrent:     true,
			CreatedBy:     createdBy,
			Notes:         notes,
			CreatedAt:     time.Now(),
		}
		if err := tx.Create(v).Error; err != nil {
			return err
		}
		created = v
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *repo) SetActive(dbc dbctx.Context, tenantID, id uuid.UUID, active bool) error {
	if tenantID == uuid.Nil {
		return pkgerrors.ErrTenantMissing
	}
	res := r.handle(dbc).
		Model(&types.PromptTemplate{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]interface{}{"active": active, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}

// Reorder rewrites execution_order as (position+1)*10 over the given id
// list, leaving gaps for manual inserts.
func (r *repo) Reorder(dbc dbctx.Context, tenantID uuid.UUID, orderedIDs []uuid.UUID) error {
	if tenantID == uuid.Nil {
		return pkgerrors.ErrTenantMissing
	}
	if len(orderedIDs) == 0 {
		return nil
	}
	return r.handle(dbc).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for i, id := range orderedIDs {
			res := tx.Model(&types.PromptTemplate{}).
				Where("tenant_id = ? AND id = ?", tenantID, id).
				Updates(map[string]interface{}{
					"execution_order": (i + 1) * 10,
					"updated_at":      now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("reorder: template %s: %w", id, pkgerrors.ErrNotFound)
			}
		}
		return nil
	})
}
