package executor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/newsforge/newsforge-backend/internal/data/repos/artifacts"
	"github.com/newsforge/newsforge-backend/internal/data/repos/runs"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
	"github.com/newsforge/newsforge-backend/internal/platform/openai"
	"github.com/newsforge/newsforge-backend/internal/workflow"
	"github.com/newsforge/newsforge-backend/internal/workflow/parsers"
)

type fakeAI struct {
	textRes  openai.TextResult
	textErr  error
	imageRes openai.ImageResult
	imageErr error

	textCalls  int
	imageCalls int
	lastPrompt string
	lastImage  string
}

func (f *fakeAI) GenerateText(ctx context.Context, system, prompt string, maxTokens int) (openai.TextResult, error) {
	f.textCalls++
	f.lastPrompt = prompt
	return f.textRes, f.textErr
}

func (f *fakeAI) GenerateImage(ctx context.Context, prompt string) (openai.ImageResult, error) {
	f.imageCalls++
	f.lastImage = prompt
	return f.imageRes, f.imageErr
}

func (f *fakeAI) Provider() string { return "fake" }
func (f *fakeAI) Model() string    { return "fake-model" }

type fakeArtifactRepo struct {
	artifacts.Repo

	created   []*types.Artifact
	createErr error
}

func (f *fakeArtifactRepo) Create(dbc dbctx.Context, a *types.Artifact) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, a)
	return nil
}

type fakeRespLogRepo struct {
	runs.ResponseLogRepo

	entries []*types.ResponseLog
}

func (f *fakeRespLogRepo) Append(dbc dbctx.Context, entry *types.ResponseLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

func newExecutor(t *testing.T, ai *fakeAI, arts *fakeArtifactRepo, logs *fakeRespLogRepo) *Executor {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return New(ai, arts, logs, parsers.Default(), log)
}

func textStep(category, parser string) workflow.PlanStep {
	return workflow.PlanStep{
		TemplateID:      uuid.New(),
		VersionID:       uuid.New(),
		Name:            "Step",
		Category:        category,
		PromptBody:      "Write about {article_title}",
		Parser:          parser,
		MediaType:       workflow.MediaTypeText,
		MaxOutputTokens: 1000,
	}
}

func TestExecuteTextSuccess(t *testing.T) {
	ai := &fakeAI{textRes: openai.TextResult{
		Text: "A fine blog post.", StopReason: openai.StopStop, TokensIn: 10, TokensOut: 20,
	}}
	arts := &fakeArtifactRepo{}
	logs := &fakeRespLogRepo{}
	e := newExecutor(t, ai, arts, logs)

	scope := workflow.Scope{"article_title": "Flood Warning"}
	out := e.Execute(dbctx.Context{Ctx: context.Background()}, uuid.New(), uuid.New(), 0, textStep("blog_post", parsers.NameGeneric), scope)

	if out.Status != types.StepStatusSucceeded {
		t.Fatalf("status = %q, error = %q", out.Status, out.Error)
	}
	if out.ItemCount != 1 || out.ArtifactID == nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.ChainKey != "blog_post_output" || out.ChainValue != "A fine blog post." {
		t.Fatalf("chain wrong: %q=%q", out.ChainKey, out.ChainValue)
	}
	if ai.lastPrompt != "Write about Flood Warning" {
		t.Fatalf("placeholder not substituted: %q", ai.lastPrompt)
	}

	if len(arts.created) != 1 || arts.created[0].Status != types.ArtifactStatusSucceeded {
		t.Fatalf("unexpected artifacts: %+v", arts.created)
	}
	if len(logs.entries) != 1 {
		t.Fatalf("expected one provenance row, got %d", len(logs.entries))
	}
	entry := logs.entries[0]
	if !entry.Success || entry.ArtifactID == nil || *entry.ArtifactID != arts.created[0].ID {
		t.Fatalf("provenance row wrong: %+v", entry)
	}
	if entry.Provider != "fake" || entry.Model != "fake-model" || entry.TokensOut != 20 {
		t.Fatalf("provenance metadata wrong: %+v", entry)
	}
}

func TestExecuteTextGenerationError(t *testing.T) {
	ai := &fakeAI{textErr: fmt.Errorf("provider down")}
	arts := &fakeArtifactRepo{}
	logs := &fakeRespLogRepo{}
	e := newExecutor(t, ai, arts, logs)

	out := e.Execute(dbctx.Context{Ctx: context.Background()}, uuid.New(), uuid.New(), 0, textStep("blog_post", parsers.NameGeneric), workflow.Scope{"article_title": "x"})

	if out.Status != types.StepStatusFailed || out.Error != "provider down" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	// The failed step still chains, binding its key to the empty string.
	if out.ChainKey != "blog_post_output" || out.ChainValue != "" {
		t.Fatalf("failed step should chain empty: %q=%q", out.ChainKey, out.ChainValue)
	}
	found := false
	for _, w := range out.Warnings {
		if strings.Contains(w, "bound to empty string") {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing empty-binding warning: %v", out.Warnings)
	}
	if len(logs.entries) != 1 || logs.entries[0].Success {
		t.Fatalf("expected one failed provenance row, got %+v", logs.entries)
	}
	if len(arts.created) != 1 || arts.created[0].Status != types.ArtifactStatusFailed || arts.created[0].ItemCount != 0 {
		t.Fatalf("expected a failed artifact, got %+v", arts.created)
	}
}

func TestExecuteTextContentFilter(t *testing.T) {
	ai := &fakeAI{textRes: openai.TextResult{StopReason: openai.StopContentFilter}}
	arts := &fakeArtifactRepo{}
	logs := &fakeRespLogRepo{}
	e := newExecutor(t, ai, arts, logs)

	out := e.Execute(dbctx.Context{Ctx: context.Background()}, uuid.New(), uuid.New(), 0, textStep("blog_post", parsers.NameGeneric), workflow.Scope{"article_title": "x"})

	if out.Status != types.StepStatusFailed || out.Error != "content_filter" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.ChainKey != "blog_post_output" || out.ChainValue != "" {
		t.Fatalf("filtered step should chain empty: %q=%q", out.ChainKey, out.ChainValue)
	}
	if len(logs.entries) != 1 || logs.entries[0].Success {
		t.Fatalf("expected failed provenance row, got %+v", logs.entries)
	}
}

func TestExecuteTextTruncationWarnsButSucceeds(t *testing.T) {
	ai := &fakeAI{textRes: openai.TextResult{
		Text: "cut short", StopReason: openai.StopLength, Truncated: true,
	}}
	arts := &fakeArtifactRepo{}
	logs := &fakeRespLogRepo{}
	e := newExecutor(t, ai, arts, logs)

	out := e.Execute(dbctx.Context{Ctx: context.Background()}, uuid.New(), uuid.New(), 0, textStep("blog_post", parsers.NameGeneric), workflow.Scope{"article_title": "x"})

	if out.Status != types.StepStatusSucceeded {
		t.Fatalf("truncation must not fail the step: %+v", out)
	}
	found := false
	for _, w := range out.Warnings {
		if strings.Contains(w, "truncated") {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing truncation warning: %v", out.Warnings)
	}
	if !logs.entries[0].Truncated {
		t.Fatalf("provenance should record truncation: %+v", logs.entries[0])
	}
}

func TestExecuteTextUnresolvedPlaceholderWarns(t *testing.T) {
	ai := &fakeAI{textRes: openai.TextResult{Text: "ok", StopReason: openai.StopStop}}
	e := newExecutor(t, ai, &fakeArtifactRepo{}, &fakeRespLogRepo{})

	out := e.Execute(dbctx.Context{Ctx: context.Background()}, uuid.New(), uuid.New(), 0, textStep("blog_post", parsers.NameGeneric), workflow.Scope{})

	if out.Status != types.StepStatusSucceeded {
		t.Fatalf("unresolved placeholder must not fail the step: %+v", out)
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "article_title") {
		t.Fatalf("unexpected warnings: %v", out.Warnings)
	}
	if ai.lastPrompt != "Write about " {
		t.Fatalf("unresolved token should substitute empty: %q", ai.lastPrompt)
	}
}

func TestExecutePersistFailureAfterLLM(t *testing.T) {
	ai := &fakeAI{textRes: openai.TextResult{Text: "fine text", StopReason: openai.StopStop}}
	arts := &fakeArtifactRepo{createErr: fmt.Errorf("disk full")}
	logs := &fakeRespLogRepo{}
	e := newExecutor(t, ai, arts, logs)

	out := e.Execute(dbctx.Context{Ctx: context.Background()}, uuid.New(), uuid.New(), 0, textStep("blog_post", parsers.NameGeneric), workflow.Scope{"article_title": "x"})

	if out.Status != types.StepStatusFailed || out.Error != "disk full" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.ArtifactID != nil {
		t.Fatalf("no artifact id on persistence failure: %+v", out)
	}
	if out.ChainKey != "blog_post_output" || out.ChainValue != "" {
		t.Fatalf("failed step should chain empty: %q=%q", out.ChainKey, out.ChainValue)
	}
	// The provenance row still lands, carrying the persistence error.
	if len(logs.entries) != 1 || logs.entries[0].Success {
		t.Fatalf("expected failed provenance row, got %+v", logs.entries)
	}
	if !strings.Contains(logs.entries[0].Warning, "persistence failed") {
		t.Fatalf("provenance missing persistence error: %q", logs.entries[0].Warning)
	}
}

func TestExecuteSocialChainValue(t *testing.T) {
	ai := &fakeAI{textRes: openai.TextResult{
		Text:       `{"twitter": {"text": "tweet"}, "facebook": {"text": "fb post"}}`,
		StopReason: openai.StopStop,
	}}
	e := newExecutor(t, ai, &fakeArtifactRepo{}, &fakeRespLogRepo{})

	out := e.Execute(dbctx.Context{Ctx: context.Background()}, uuid.New(), uuid.New(), 1, textStep("social_media", parsers.NameSocialMedia), workflow.Scope{"article_title": "x"})

	if out.Status != types.StepStatusSucceeded || out.ItemCount != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.ChainValue != "facebook: fb post\n\ntwitter: tweet" {
		t.Fatalf("chain value wrong: %q", out.ChainValue)
	}
}

type emptyParser struct{}

func (emptyParser) Name() string { return "empty" }
func (emptyParser) Parse(raw string, category string) parsers.Result {
	return parsers.Result{ItemCount: 0}
}

func TestExecuteZeroItemsFails(t *testing.T) {
	ai := &fakeAI{textRes: openai.TextResult{Text: "anything", StopReason: openai.StopStop}}
	arts := &fakeArtifactRepo{}
	logs := &fakeRespLogRepo{}

	registry := parsers.NewRegistry()
	if err := registry.Register(emptyParser{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	e := New(ai, arts, logs, registry, log)

	out := e.Execute(dbctx.Context{Ctx: context.Background()}, uuid.New(), uuid.New(), 0, textStep("blog_post", "empty"), workflow.Scope{"article_title": "x"})

	if out.Status != types.StepStatusFailed || out.Error != "parse produced zero items" {
		t.Fatalf("zero items must fail the step: %+v", out)
	}
	if len(arts.created) != 1 || arts.created[0].Status != types.ArtifactStatusFailed {
		t.Fatalf("expected failed artifact, got %+v", arts.created)
	}
}

func imageStep() workflow.PlanStep {
	s := textStep("image_generation", parsers.NameImagePrompt)
	s.MediaType = workflow.MediaTypeImage
	return s
}

func TestExecuteImageTwoPhases(t *testing.T) {
	ai := &fakeAI{
		textRes:  openai.TextResult{Text: "A flooded street at dusk.\n\nNo text overlays.", StopReason: openai.StopStop},
		imageRes: openai.ImageResult{URL: "https://img.example/1.png", Model: "img-model", RevisedPrompt: "revised"},
	}
	arts := &fakeArtifactRepo{}
	logs := &fakeRespLogRepo{}
	e := newExecutor(t, ai, arts, logs)

	out := e.Execute(dbctx.Context{Ctx: context.Background()}, uuid.New(), uuid.New(), 2, imageStep(), workflow.Scope{"article_title": "x"})

	if out.Status != types.StepStatusSucceeded || out.ItemCount != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if ai.textCalls != 1 || ai.imageCalls != 1 {
		t.Fatalf("expected one call per phase, got text=%d image=%d", ai.textCalls, ai.imageCalls)
	}
	// The parser keeps the first paragraph as the image prompt.
	if ai.lastImage != "A flooded street at dusk." {
		t.Fatalf("image prompt = %q", ai.lastImage)
	}
	if len(logs.entries) != 2 {
		t.Fatalf("expected one provenance row per phase, got %d", len(logs.entries))
	}
	if logs.entries[1].Model != "img-model" || logs.entries[1].ResponseText != "https://img.example/1.png" {
		t.Fatalf("image provenance wrong: %+v", logs.entries[1])
	}
	// Downstream steps chain on the visual description; the URL stays on
	// the artifact.
	if out.ChainValue != "A flooded street at dusk." {
		t.Fatalf("image chain should be the description, got %q", out.ChainValue)
	}
	if len(arts.created) != 1 {
		t.Fatalf("expected one artifact, got %d", len(arts.created))
	}
}

func TestExecuteImagePhaseOneFailureSkipsPhaseTwo(t *testing.T) {
	ai := &fakeAI{textErr: fmt.Errorf("provider down")}
	logs := &fakeRespLogRepo{}
	e := newExecutor(t, ai, &fakeArtifactRepo{}, logs)

	out := e.Execute(dbctx.Context{Ctx: context.Background()}, uuid.New(), uuid.New(), 2, imageStep(), workflow.Scope{"article_title": "x"})

	if out.Status != types.StepStatusFailed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if ai.imageCalls != 0 {
		t.Fatalf("phase two must be skipped after a phase one failure")
	}
	if len(logs.entries) != 1 {
		t.Fatalf("expected a single provenance row, got %d", len(logs.entries))
	}
}

func TestExecuteImageGenerationFailure(t *testing.T) {
	ai := &fakeAI{
		textRes:  openai.TextResult{Text: "A scene.", StopReason: openai.StopStop},
		imageErr: fmt.Errorf("image quota exceeded"),
	}
	arts := &fakeArtifactRepo{}
	logs := &fakeRespLogRepo{}
	e := newExecutor(t, ai, arts, logs)

	out := e.Execute(dbctx.Context{Ctx: context.Background()}, uuid.New(), uuid.New(), 2, imageStep(), workflow.Scope{"article_title": "x"})

	if out.Status != types.StepStatusFailed || out.Error != "image quota exceeded" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.ChainKey != "image_generation_output" || out.ChainValue != "" {
		t.Fatalf("failed image step should chain empty: %q=%q", out.ChainKey, out.ChainValue)
	}
	if len(logs.entries) != 2 || logs.entries[0].Success != true || logs.entries[1].Success {
		t.Fatalf("expected succeeded description row and failed image row: %+v", logs.entries)
	}
	// One failed placeholder artifact.
	if len(arts.created) != 1 || arts.created[0].Status != types.ArtifactStatusFailed {
		t.Fatalf("unexpected artifacts: %+v", arts.created)
	}
}
