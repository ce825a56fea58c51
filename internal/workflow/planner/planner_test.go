package planner

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/newsforge/newsforge-backend/internal/data/repos/templates"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
	"github.com/newsforge/newsforge-backend/internal/workflow"
	"github.com/newsforge/newsforge-backend/internal/workflow/parsers"
)

// fakeTemplateRepo serves ListActive and CurrentVersions from memory; the
// planner touches nothing else.
type fakeTemplateRepo struct {
	templates.Repo

	active   []*types.PromptTemplate
	versions map[uuid.UUID]*types.TemplateVersion
}

func (f *fakeTemplateRepo) ListActive(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.PromptTemplate, error) {
	return f.active, nil
}

func (f *fakeTemplateRepo) CurrentVersions(dbc dbctx.Context, templateIDs []uuid.UUID) (map[uuid.UUID]*types.TemplateVersion, error) {
	out := make(map[uuid.UUID]*types.TemplateVersion, len(templateIDs))
	for _, id := range templateIDs {
		if v, ok := f.versions[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return log
}

func addTemplate(f *fakeTemplateRepo, name, category string, params string) *types.PromptTemplate {
	t := &types.PromptTemplate{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Name:     name,
		Category: category,
		Active:   true,
	}
	v := &types.TemplateVersion{
		ID:            uuid.New(),
		TemplateID:    t.ID,
		VersionNumber: 1,
		PromptBody:    "Write about {article_title}",
		IsCurrent:     true,
	}
	if params != "" {
		v.Parameters = datatypes.JSON(params)
	}
	f.active = append(f.active, t)
	f.versions[t.ID] = v
	return t
}

func newFakeRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{versions: make(map[uuid.UUID]*types.TemplateVersion)}
}

func TestPlanSnapshotsVersions(t *testing.T) {
	repo := newFakeRepo()
	first := addTemplate(repo, "Blog", "blog_post", "")
	second := addTemplate(repo, "Social", "social_media", "")

	p := New(repo, 2048, testLogger(t))
	steps, err := p.Plan(dbctx.Context{}, uuid.New())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].TemplateID != first.ID || steps[1].TemplateID != second.ID {
		t.Fatalf("steps out of order: %+v", steps)
	}
	if steps[0].VersionID != repo.versions[first.ID].ID {
		t.Fatalf("step did not snapshot the current version")
	}
	if steps[0].PromptBody != "Write about {article_title}" {
		t.Fatalf("unexpected prompt body: %q", steps[0].PromptBody)
	}
}

func TestPlanParserResolution(t *testing.T) {
	repo := newFakeRepo()
	addTemplate(repo, "Blog", "blog_post", "")
	addTemplate(repo, "Social", "social_media", "")
	addTemplate(repo, "Prayers", "prayer", "")
	addTemplate(repo, "Summary", "summary", `{"parsing_method": "structured_json"}`)

	p := New(repo, 2048, testLogger(t))
	steps, err := p.Plan(dbctx.Context{}, uuid.New())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	want := []string{
		parsers.NameGeneric,
		parsers.NameSocialMedia,
		parsers.NamePrayerPoints,
		parsers.NameStructuredJSON,
	}
	for i, w := range want {
		if steps[i].Parser != w {
			t.Fatalf("step %d parser = %q, want %q", i, steps[i].Parser, w)
		}
	}
}

func TestPlanMediaType(t *testing.T) {
	repo := newFakeRepo()
	addTemplate(repo, "Blog", "blog_post", "")
	addTemplate(repo, "Hero", "image_generation", "")
	addTemplate(repo, "Thumb", "thumbnail", `{"media_type": "image"}`)

	p := New(repo, 2048, testLogger(t))
	steps, err := p.Plan(dbctx.Context{}, uuid.New())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if steps[0].MediaType != workflow.MediaTypeText {
		t.Fatalf("blog step media = %q", steps[0].MediaType)
	}
	if steps[1].MediaType != workflow.MediaTypeImage {
		t.Fatalf("image_generation category should imply image media, got %q", steps[1].MediaType)
	}
	if steps[2].MediaType != workflow.MediaTypeImage {
		t.Fatalf("media_type parameter should force image, got %q", steps[2].MediaType)
	}
	if steps[1].Parser != parsers.NameImagePrompt {
		t.Fatalf("image step parser = %q", steps[1].Parser)
	}
}

func TestPlanMaxOutputTokens(t *testing.T) {
	repo := newFakeRepo()
	addTemplate(repo, "Default", "blog_post", "")
	addTemplate(repo, "Custom", "blog_post", `{"max_output_tokens": 1500}`)
	addTemplate(repo, "Zero", "blog_post", `{"max_output_tokens": 0}`)

	p := New(repo, 2048, testLogger(t))
	steps, err := p.Plan(dbctx.Context{}, uuid.New())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if steps[0].MaxOutputTokens != 2048 {
		t.Fatalf("default tokens = %d", steps[0].MaxOutputTokens)
	}
	if steps[1].MaxOutputTokens != 1500 {
		t.Fatalf("custom tokens = %d", steps[1].MaxOutputTokens)
	}
	if steps[2].MaxOutputTokens != 2048 {
		t.Fatalf("non-positive tokens should fall back to default, got %d", steps[2].MaxOutputTokens)
	}
}

func TestPlanNoActiveTemplates(t *testing.T) {
	p := New(newFakeRepo(), 2048, testLogger(t))
	_, err := p.Plan(dbctx.Context{}, uuid.New())
	if !errors.Is(err, pkgerrors.ErrNoPlan) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
}

func TestPlanSkipsTemplateWithoutCurrentVersion(t *testing.T) {
	repo := newFakeRepo()
	broken := addTemplate(repo, "Broken", "blog_post", "")
	delete(repo.versions, broken.ID)
	ok := addTemplate(repo, "Fine", "blog_post", "")

	p := New(repo, 2048, testLogger(t))
	steps, err := p.Plan(dbctx.Context{}, uuid.New())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(steps) != 1 || steps[0].TemplateID != ok.ID {
		t.Fatalf("expected only the healthy template, got %+v", steps)
	}
}

func TestPlanTenantMissing(t *testing.T) {
	p := New(newFakeRepo(), 2048, testLogger(t))
	_, err := p.Plan(dbctx.Context{}, uuid.Nil)
	if !errors.Is(err, pkgerrors.ErrTenantMissing) {
		t.Fatalf("expected ErrTenantMissing, got %v", err)
	}
}
