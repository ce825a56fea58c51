package templates

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/newsforge/newsforge-backend/internal/data/repos/testutil"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
)

func setup(t *testing.T) (dbctx.Context, Repo) {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	return dbc, NewRepo(db, testutil.Logger(t))
}

func TestCreateInsertsVersionOne(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "tpl-create")

	tpl := &types.PromptTemplate{
		ID:       uuid.New(),
		TenantID: tenant.ID,
		Name:     "Blog",
		Category: "blog_post",
		Active:   true,
	}
	v := &types.TemplateVersion{
		ID:         uuid.New(),
		PromptBody: "Write about {article_title}",
		CreatedBy:  "test",
	}
	if err := repo.Create(dbc, tpl, v); err != nil {
		t.Fatalf("create: %v", err)
	}

	current, err := repo.CurrentVersion(dbc, tpl.ID)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if current.VersionNumber != 1 || !current.IsCurrent || current.TemplateID != tpl.ID {
		t.Fatalf("version one wrong: %+v", current)
	}
}

func TestNewVersionFlipsCurrent(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "tpl-version")
	tpl := testutil.SeedTemplate(t, dbc.Ctx, dbc.Tx, tenant.ID, "Blog", "blog_post", 10)
	v1 := testutil.SeedVersion(t, dbc.Ctx, dbc.Tx, tpl.ID, 1, true, "v1 body")

	v2, err := repo.NewVersion(dbc, tpl.ID, "v2 body", "system", datatypes.JSON(`{"max_output_tokens": 900}`), "editor", "tightened prompt")
	if err != nil {
		t.Fatalf("new version: %v", err)
	}
	if v2.VersionNumber != 2 || !v2.IsCurrent {
		t.Fatalf("unexpected new version: %+v", v2)
	}

	current, err := repo.CurrentVersion(dbc, tpl.ID)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if current.ID != v2.ID {
		t.Fatalf("current should be the new version, got %+v", current)
	}

	all, err := repo.ListVersions(dbc, tpl.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(all))
	}
	// Newest first; exactly one current.
	if all[0].ID != v2.ID || all[1].ID != v1.ID {
		t.Fatalf("version order wrong: %+v", all)
	}
	currentCount := 0
	for _, v := range all {
		if v.IsCurrent {
			currentCount++
		}
	}
	if currentCount != 1 {
		t.Fatalf("exactly one version must be current, got %d", currentCount)
	}
}

func TestNewVersionUnknownTemplate(t *testing.T) {
	dbc, repo := setup(t)

	_, err := repo.NewVersion(dbc, uuid.New(), "body", "", nil, "editor", "")
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActiveOrdering(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "tpl-order")

	third := testutil.SeedTemplate(t, dbc.Ctx, dbc.Tx, tenant.ID, "Third", "summary", 30)
	first := testutil.SeedTemplate(t, dbc.Ctx, dbc.Tx, tenant.ID, "First", "blog_post", 10)
	second := testutil.SeedTemplate(t, dbc.Ctx, dbc.Tx, tenant.ID, "Second", "social_media", 20)
	inactive := testutil.SeedTemplate(t, dbc.Ctx, dbc.Tx, tenant.ID, "Off", "video_script", 5)
	if err := dbc.Tx.Model(&types.PromptTemplate{}).Where("id = ?", inactive.ID).
		Update("active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	actives, err := repo.ListActive(dbc, tenant.ID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(actives) != 3 {
		t.Fatalf("expected 3 active templates, got %d", len(actives))
	}
	if actives[0].ID != first.ID || actives[1].ID != second.ID || actives[2].ID != third.ID {
		t.Fatalf("ordering wrong: %s %s %s", actives[0].Name, actives[1].Name, actives[2].Name)
	}
}

func TestCurrentVersionsBatch(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "tpl-batch")
	a := testutil.SeedTemplate(t, dbc.Ctx, dbc.Tx, tenant.ID, "A", "blog_post", 10)
	b := testutil.SeedTemplate(t, dbc.Ctx, dbc.Tx, tenant.ID, "B", "summary", 20)
	va := testutil.SeedVersion(t, dbc.Ctx, dbc.Tx, a.ID, 1, true, "a body")
	testutil.SeedVersion(t, dbc.Ctx, dbc.Tx, b.ID, 1, false, "b stale body")

	versions, err := repo.CurrentVersions(dbc, []uuid.UUID{a.ID, b.ID})
	if err != nil {
		t.Fatalf("current versions: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("only templates with a current version should appear, got %d", len(versions))
	}
	if versions[a.ID].ID != va.ID {
		t.Fatalf("wrong version for template a: %+v", versions[a.ID])
	}
}

func TestSetActive(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "tpl-active")
	tpl := testutil.SeedTemplate(t, dbc.Ctx, dbc.Tx, tenant.ID, "Blog", "blog_post", 10)

	if err := repo.SetActive(dbc, tenant.ID, tpl.ID, false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	got, err := repo.GetByID(dbc, tenant.ID, tpl.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Active {
		t.Fatalf("template should be inactive")
	}

	if err := repo.SetActive(dbc, tenant.ID, uuid.New(), true); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReorder(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "tpl-reorder")
	a := testutil.SeedTemplate(t, dbc.Ctx, dbc.Tx, tenant.ID, "A", "blog_post", 10)
	b := testutil.SeedTemplate(t, dbc.Ctx, dbc.Tx, tenant.ID, "B", "summary", 20)

	if err := repo.Reorder(dbc, tenant.ID, []uuid.UUID{b.ID, a.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	all, err := repo.List(dbc, tenant.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if all[0].ID != b.ID || all[1].ID != a.ID {
		t.Fatalf("reorder did not take: %s then %s", all[0].Name, all[1].Name)
	}
	if all[0].ExecutionOrder != 10 || all[1].ExecutionOrder != 20 {
		t.Fatalf("gapped orders wrong: %d, %d", all[0].ExecutionOrder, all[1].ExecutionOrder)
	}
}

func TestGetByIDIsTenantScoped(t *testing.T) {
	dbc, repo := setup(t)
	tenant := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "tpl-scope-a")
	other := testutil.SeedTenant(t, dbc.Ctx, dbc.Tx, "tpl-scope-b")
	tpl := testutil.SeedTemplate(t, dbc.Ctx, dbc.Tx, tenant.ID, "Blog", "blog_post", 10)

	if _, err := repo.GetByID(dbc, other.ID, tpl.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("cross-tenant read should be ErrNotFound, got %v", err)
	}
}
