package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/newsforge/newsforge-backend/internal/data/repos/templates"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
	"github.com/newsforge/newsforge-backend/internal/workflow"
	"github.com/newsforge/newsforge-backend/internal/workflow/parsers"
)

/*
Planner turns a tenant's active templates into an immutable execution plan.
Ordering is (execution_order, id) ascending; each step snapshots the
template's current version so edits made while the run executes never leak
into it. A tenant with no active templates yields ErrNoPlan.
*/
type Planner struct {
	templateRepo    templates.Repo
	defaultMaxToken int
	log             *logger.Logger
}

func New(templateRepo templates.Repo, defaultMaxTokens int, baseLog *logger.Logger) *Planner {
	return &Planner{
		templateRepo:    templateRepo,
		defaultMaxToken: defaultMaxTokens,
		log:             baseLog.With("component", "Planner"),
	}
}

func (p *Planner) Plan(dbc dbctx.Context, tenantID uuid.UUID) ([]workflow.PlanStep, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.ErrTenantMissing
	}

	actives, err := p.templateRepo.ListActive(dbc, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	if len(actives) == 0 {
		return nil, pkgerrors.ErrNoPlan
	}

	ids := make([]uuid.UUID, 0, len(actives))
	for _, t := range actives {
		ids = append(ids, t.ID)
	}
	versions, err := p.templateRepo.CurrentVersions(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("snapshot current versions: %w", err)
	}

	steps := make([]workflow.PlanStep, 0, len(actives))
	for _, t := range actives {
		v, ok := versions[t.ID]
		if !ok {
			// A template without a current version is an authoring bug;
			// skip it rather than fail the whole run.
			p.log.Warn("active template has no current version, skipping",
				"template_id", t.ID, "name", t.Name)
			continue
		}

		params := decodeParams(v.Parameters)
		steps = append(steps, workflow.PlanStep{
			TemplateID:      t.ID,
			VersionID:       v.ID,
			Name:            t.Name,
			Category:        t.Category,
			PromptBody:      v.PromptBody,
			SystemMessage:   v.SystemMessage,
			Parameters:      params,
			Parser:          resolveParser(params, t.Category),
			MediaType:       resolveMediaType(params, t.Category),
			MaxOutputTokens: resolveMaxTokens(params, p.defaultMaxToken),
		})
	}
	if len(steps) == 0 {
		return nil, pkgerrors.ErrNoPlan
	}
	return steps, nil
}

func decodeParams(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// resolveParser prefers an explicit parsing_method parameter, then falls
// back to a category convention, then to generic.
func resolveParser(params map[string]any, category string) string {
	if params != nil {
		if v, ok := params["parsing_method"].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "social_media":
		return parsers.NameSocialMedia
	case "video_script":
		return parsers.NameVideoScript
	case "prayer", "prayer_points":
		return parsers.NamePrayerPoints
	case "image_generation":
		return parsers.NameImagePrompt
	default:
		return parsers.NameGeneric
	}
}

func resolveMediaType(params map[string]any, category string) string {
	if params != nil {
		if v, ok := params["media_type"].(string); ok {
			if strings.EqualFold(strings.TrimSpace(v), workflow.MediaTypeImage) {
				return workflow.MediaTypeImage
			}
		}
	}
	if strings.EqualFold(strings.TrimSpace(category), "image_generation") {
		return workflow.MediaTypeImage
	}
	return workflow.MediaTypeText
}

func resolveMaxTokens(params map[string]any, def int) int {
	if params != nil {
		switch v := params["max_output_tokens"].(type) {
		case float64:
			if v > 0 {
				return int(v)
			}
		case json.Number:
			if n, err := v.Int64(); err == nil && n > 0 {
				return int(n)
			}
		}
	}
	return def
}
