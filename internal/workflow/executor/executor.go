package executor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/newsforge/newsforge-backend/internal/data/repos/artifacts"
	"github.com/newsforge/newsforge-backend/internal/data/repos/runs"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	"github.com/newsforge/newsforge-backend/internal/observability"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
	"github.com/newsforge/newsforge-backend/internal/platform/openai"
	"github.com/newsforge/newsforge-backend/internal/workflow"
	"github.com/newsforge/newsforge-backend/internal/workflow/parsers"
	"github.com/newsforge/newsforge-backend/internal/workflow/placeholder"
)

// ImageArtifact is the structured payload of an image step: the generated
// description, the provider URL and the provider's rewritten prompt if any.
type ImageArtifact struct {
	Prompt        string `json:"prompt"`
	ImageURL      string `json:"image_url,omitempty"`
	ImageB64      string `json:"image_b64,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// StepOutcome is what one executed step reports back to the runner. ChainKey
// and ChainValue, when set, are bound into the scope before the next step.
// Failed steps still set ChainKey with an empty value so later prompts
// resolve the token instead of warning about it.
type StepOutcome struct {
	Status     string
	ArtifactID *uuid.UUID
	ItemCount  int
	Warnings   []string
	Error      string
	ChainKey   string
	ChainValue string
}

/*
Executor runs one plan step end to end: placeholder substitution, the model
call (two calls for image steps), parsing, artifact persistence and the
append-only provenance row. Every model call leaves exactly one provenance
row whether it succeeded or not; a step that produced zero items is failed,
not empty-succeeded.
*/
type Executor struct {
	ai        openai.Client
	artifacts artifacts.Repo
	respLogs  runs.ResponseLogRepo
	registry  *parsers.Registry
	log       *logger.Logger
}

func New(ai openai.Client, artifactRepo artifacts.Repo, respLogRepo runs.ResponseLogRepo, registry *parsers.Registry, baseLog *logger.Logger) *Executor {
	if registry == nil {
		registry = parsers.Default()
	}
	return &Executor{
		ai:        ai,
		artifacts: artifactRepo,
		respLogs:  respLogRepo,
		registry:  registry,
		log:       baseLog.With("component", "StepExecutor"),
	}
}

func (e *Executor) Execute(dbc dbctx.Context, tenantID, runID uuid.UUID, stepIndex int, step workflow.PlanStep, scope workflow.Scope) StepOutcome {
	prompt, warnings := placeholder.Resolve(step.PromptBody, scope)
	system, sysWarnings := placeholder.Resolve(step.SystemMessage, scope)
	warnings = append(warnings, sysWarnings...)

	var outcome StepOutcome
	if step.MediaType == workflow.MediaTypeImage {
		outcome = e.executeImage(dbc, tenantID, runID, stepIndex, step, prompt, system, warnings)
	} else {
		outcome = e.executeText(dbc, tenantID, runID, stepIndex, step, prompt, system, warnings)
	}

	observability.Current().ObserveStep(step.Category, outcome.Status)
	return outcome
}

func (e *Executor) executeText(dbc dbctx.Context, tenantID, runID uuid.UUID, stepIndex int, step workflow.PlanStep, prompt, system string, warnings []string) StepOutcome {
	res, genErr := e.ai.GenerateText(dbc.Ctx, system, prompt, step.MaxOutputTokens)

	entry := e.newLogEntry(tenantID, runID, stepIndex, step, prompt, system)
	entry.ResponseText = res.Text
	entry.TokensIn = res.TokensIn
	entry.TokensOut = res.TokensOut
	entry.StopReason = res.StopReason
	entry.Truncated = res.Truncated
	entry.LatencyMS = res.Latency.Milliseconds()

	if genErr != nil {
		entry.Success = false
		entry.Warning = joinWarnings(append(warnings, "generation failed: "+genErr.Error()))
		e.appendLog(dbc, entry)
		e.persistFailedArtifact(dbc, tenantID, runID, stepIndex, step)
		return failedOutcome(step, warnings, genErr.Error())
	}

	if res.StopReason == openai.StopContentFilter {
		entry.Success = false
		entry.Warning = joinWarnings(append(warnings, "response blocked by content filter"))
		e.appendLog(dbc, entry)
		e.persistFailedArtifact(dbc, tenantID, runID, stepIndex, step)
		return failedOutcome(step, warnings, "content_filter")
	}

	if res.Truncated {
		warnings = append(warnings, "response truncated at max_output_tokens")
	}

	parsed := e.registry.Get(step.Parser).Parse(res.Text, step.Category)
	warnings = append(warnings, parsed.Warnings...)

	if parsed.ItemCount == 0 {
		entry.Success = false
		entry.Warning = joinWarnings(append(warnings, "parse produced zero items"))
		e.appendLog(dbc, entry)
		e.persistFailedArtifact(dbc, tenantID, runID, stepIndex, step)
		return failedOutcome(step, warnings, "parse produced zero items")
	}

	artifact, persistErr := e.persistArtifact(dbc, tenantID, runID, stepIndex, step, parsed.Structured, parsed.ItemCount, types.ArtifactStatusSucceeded)
	if persistErr != nil {
		entry.Success = false
		entry.Warning = joinWarnings(append(warnings, "artifact persistence failed: "+persistErr.Error()))
		e.appendLog(dbc, entry)
		return failedOutcome(step, warnings, persistErr.Error())
	}

	entry.Success = true
	entry.ArtifactID = &artifact.ID
	entry.Warning = joinWarnings(warnings)
	e.appendLog(dbc, entry)

	return StepOutcome{
		Status:     types.StepStatusSucceeded,
		ArtifactID: &artifact.ID,
		ItemCount:  parsed.ItemCount,
		Warnings:   warnings,
		ChainKey:   step.Category + "_output",
		ChainValue: chainValue(parsed.Structured),
	}
}

// executeImage runs the two-phase image step: a text call that writes the
// image description, then the image call itself. Each phase leaves its own
// provenance row; a phase-one failure skips phase two.
func (e *Executor) executeImage(dbc dbctx.Context, tenantID, runID uuid.UUID, stepIndex int, step workflow.PlanStep, prompt, system string, warnings []string) StepOutcome {
	descRes, descErr := e.ai.GenerateText(dbc.Ctx, system, prompt, step.MaxOutputTokens)

	descEntry := e.newLogEntry(tenantID, runID, stepIndex, step, prompt, system)
	descEntry.ResponseText = descRes.Text
	descEntry.TokensIn = descRes.TokensIn
	descEntry.TokensOut = descRes.TokensOut
	descEntry.StopReason = descRes.StopReason
	descEntry.Truncated = descRes.Truncated
	descEntry.LatencyMS = descRes.Latency.Milliseconds()

	if descErr != nil || descRes.StopReason == openai.StopContentFilter {
		reason := "response blocked by content filter"
		if descErr != nil {
			reason = "description generation failed: " + descErr.Error()
		}
		descEntry.Success = false
		descEntry.Warning = joinWarnings(append(warnings, reason))
		e.appendLog(dbc, descEntry)
		e.persistFailedArtifact(dbc, tenantID, runID, stepIndex, step)
		return failedOutcome(step, warnings, reason)
	}

	parsed := e.registry.Get(step.Parser).Parse(descRes.Text, step.Category)
	warnings = append(warnings, parsed.Warnings...)
	description := imageDescription(parsed.Structured, descRes.Text)

	descEntry.Success = true
	descEntry.Warning = joinWarnings(warnings)
	e.appendLog(dbc, descEntry)

	imgRes, imgErr := e.ai.GenerateImage(dbc.Ctx, description)

	imgEntry := e.newLogEntry(tenantID, runID, stepIndex, step, description, "")
	imgEntry.Model = imgRes.Model
	imgEntry.ResponseText = imgRes.URL
	imgEntry.LatencyMS = imgRes.Latency.Milliseconds()

	if imgErr != nil {
		imgEntry.Success = false
		imgEntry.Warning = "image generation failed: " + imgErr.Error()
		e.appendLog(dbc, imgEntry)
		e.persistFailedArtifact(dbc, tenantID, runID, stepIndex, step)
		return failedOutcome(step, warnings, imgErr.Error())
	}

	structured := ImageArtifact{
		Prompt:        description,
		ImageURL:      imgRes.URL,
		ImageB64:      imgRes.B64,
		RevisedPrompt: imgRes.RevisedPrompt,
	}
	artifact, persistErr := e.persistArtifact(dbc, tenantID, runID, stepIndex, step, structured, 1, types.ArtifactStatusSucceeded)
	if persistErr != nil {
		imgEntry.Success = false
		imgEntry.Warning = "artifact persistence failed: " + persistErr.Error()
		e.appendLog(dbc, imgEntry)
		return failedOutcome(step, warnings, persistErr.Error())
	}

	imgEntry.Success = true
	imgEntry.ArtifactID = &artifact.ID
	e.appendLog(dbc, imgEntry)

	// Downstream prompts want the visual description, not the image
	// reference; the URL stays on the artifact.
	return StepOutcome{
		Status:     types.StepStatusSucceeded,
		ArtifactID: &artifact.ID,
		ItemCount:  1,
		Warnings:   warnings,
		ChainKey:   step.Category + "_output",
		ChainValue: description,
	}
}

func (e *Executor) newLogEntry(tenantID, runID uuid.UUID, stepIndex int, step workflow.PlanStep, prompt, system string) *types.ResponseLog {
	return &types.ResponseLog{
		ID:         uuid.New(),
		TenantID:   tenantID,
		RunID:      runID,
		StepIndex:  stepIndex,
		Category:   step.Category,
		Provider:   e.ai.Provider(),
		Model:      e.ai.Model(),
		PromptSent: prompt,
		SystemSent: system,
		MaxTokens:  step.MaxOutputTokens,
	}
}

// appendLog never fails the step: provenance is best-effort once the step's
// disposition is already decided.
func (e *Executor) appendLog(dbc dbctx.Context, entry *types.ResponseLog) {
	if err := e.respLogs.Append(dbc, entry); err != nil {
		e.log.Error("response log append failed",
			"run_id", entry.RunID, "step_index", entry.StepIndex, "error", err)
	}
}

func (e *Executor) persistArtifact(dbc dbctx.Context, tenantID, runID uuid.UUID, stepIndex int, step workflow.PlanStep, structured any, itemCount int, status string) (*types.Artifact, error) {
	raw, err := json.Marshal(structured)
	if err != nil {
		return nil, fmt.Errorf("marshal structured output: %w", err)
	}
	a := &types.Artifact{
		ID:         uuid.New(),
		TenantID:   tenantID,
		RunID:      runID,
		TemplateID: &step.TemplateID,
		VersionID:  &step.VersionID,
		StepIndex:  stepIndex,
		Category:   step.Category,
		Structured: datatypes.JSON(raw),
		ItemCount:  itemCount,
		Status:     status,
	}
	if err := e.artifacts.Create(dbc, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (e *Executor) persistFailedArtifact(dbc dbctx.Context, tenantID, runID uuid.UUID, stepIndex int, step workflow.PlanStep) {
	if _, err := e.persistArtifact(dbc, tenantID, runID, stepIndex, step, map[string]any{}, 0, types.ArtifactStatusFailed); err != nil {
		e.log.Error("failed artifact persistence failed",
			"run_id", runID, "step_index", stepIndex, "error", err)
	}
}

// failedOutcome reports a failed step. The chain key is still set so the
// runner binds "{category}_output" to the empty string for later steps.
func failedOutcome(step workflow.PlanStep, warnings []string, errMsg string) StepOutcome {
	return StepOutcome{
		Status:   types.StepStatusFailed,
		Warnings: append(warnings, step.Category+"_output bound to empty string"),
		Error:    errMsg,
		ChainKey: step.Category + "_output",
	}
}

// chainValue flattens a parsed structure into the plain text bound as
// "{category}_output" for downstream prompts.
func chainValue(structured any) string {
	switch v := structured.(type) {
	case []parsers.GenericItem:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, item.Text)
		}
		return strings.Join(parts, "\n\n")
	case []parsers.SocialPost:
		parts := make([]string, 0, len(v))
		for _, post := range v {
			parts = append(parts, post.Platform+": "+post.Text)
		}
		return strings.Join(parts, "\n\n")
	case []parsers.VideoScript:
		parts := make([]string, 0, len(v))
		for _, script := range v {
			parts = append(parts, script.Script)
		}
		return strings.Join(parts, "\n\n")
	case []parsers.PrayerPoint:
		parts := make([]string, 0, len(v))
		for _, point := range v {
			parts = append(parts, point.PrayerText)
		}
		return strings.Join(parts, "\n")
	case []parsers.ImagePrompt:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, p.Prompt)
		}
		return strings.Join(parts, "\n\n")
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}

func imageDescription(structured any, raw string) string {
	if prompts, ok := structured.([]parsers.ImagePrompt); ok && len(prompts) > 0 {
		return prompts[0].Prompt
	}
	return strings.TrimSpace(raw)
}

func joinWarnings(ws []string) string {
	return strings.Join(ws, "; ")
}
