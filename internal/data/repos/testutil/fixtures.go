package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/newsforge/newsforge-backend/internal/domain"
)

func SeedTenant(tb testing.TB, ctx context.Context, tx *gorm.DB, slug string) *types.Tenant {
	tb.Helper()
	t := &types.Tenant{
		ID:   uuid.New(),
		Name: slug,
		Slug: slug,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed tenant: %v", err)
	}
	return t
}

func SeedArticle(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, title string) *types.SourceArticle {
	tb.Helper()
	a := &types.SourceArticle{
		ID:       uuid.New(),
		TenantID: tenantID,
		Title:    title,
		Content:  "article body",
		Source:   "test",
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed article: %v", err)
	}
	return a
}

func SeedTemplate(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, name, category string, order int) *types.PromptTemplate {
	tb.Helper()
	t := &types.PromptTemplate{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Name:           name,
		Category:       category,
		ExecutionOrder: order,
		Active:         true,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed template: %v", err)
	}
	return t
}

func SeedVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, templateID uuid.UUID, number int, current bool, body string) *types.TemplateVersion {
	tb.Helper()
	v := &types.TemplateVersion{
		ID:            uuid.New(),
		TemplateID:    templateID,
		VersionNumber: number,
		PromptBody:    body,
		Parameters:    datatypes.JSON([]byte("{}")),
		IsCurrent:     current,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed version: %v", err)
	}
	return v
}

func SeedJob(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, status string) *types.JobRun {
	tb.Helper()
	j := &types.JobRun{
		ID:       uuid.New(),
		TenantID: tenantID,
		JobType:  types.JobTypeContentGeneration,
		Status:   status,
		Payload:  datatypes.JSON([]byte("{}")),
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return j
}

func SeedRun(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID, articleID uuid.UUID) *types.WorkflowRun {
	tb.Helper()
	r := &types.WorkflowRun{
		ID:        uuid.New(),
		TenantID:  tenantID,
		ArticleID: articleID,
		Status:    types.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed run: %v", err)
	}
	return r
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
