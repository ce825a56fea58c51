package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/newsforge/newsforge-backend/internal/data/repos/templates"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

// CreateTemplateInput is the authoring payload: the template identity plus
// the body of its version 1.
type CreateTemplateInput struct {
	Name           string
	Category       string
	ExecutionOrder int
	Active         *bool
	PromptBody     string
	SystemMessage  string
	Parameters     map[string]any
	CreatedBy      string
	Notes          string
}

// NewVersionInput is the edit payload. Edits never mutate a version row;
// they append the next one.
type NewVersionInput struct {
	PromptBody    string
	SystemMessage string
	Parameters    map[string]any
	CreatedBy     string
	Notes         string
}

type TemplateService interface {
	Create(dbc dbctx.Context, tenantID uuid.UUID, in CreateTemplateInput) (*types.PromptTemplate, *types.TemplateVersion, error)
	Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.PromptTemplate, *types.TemplateVersion, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, category string) ([]*types.PromptTemplate, error)
	ListVersions(dbc dbctx.Context, tenantID, id uuid.UUID) ([]*types.TemplateVersion, error)
	NewVersion(dbc dbctx.Context, tenantID, id uuid.UUID, in NewVersionInput) (*types.TemplateVersion, error)
	SetActive(dbc dbctx.Context, tenantID, id uuid.UUID, active bool) error
	Reorder(dbc dbctx.Context, tenantID uuid.UUID, orderedIDs []uuid.UUID) error
}

type templateService struct {
	repo templates.Repo
	log  *logger.Logger
}

func NewTemplateService(repo templates.Repo, baseLog *logger.Logger) TemplateService {
	return &templateService{
		repo: repo,
		log:  baseLog.With("service", "TemplateService"),
	}
}

func (s *templateService) Create(dbc dbctx.Context, tenantID uuid.UUID, in CreateTemplateInput) (*types.PromptTemplate, *types.TemplateVersion, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	if name == "" || category == "" || strings.TrimSpace(in.PromptBody) == "" {
		return nil, nil, fmt.Errorf("%w: name, category and prompt_body are required", pkgerrors.ErrInvalidArgument)
	}

	params, err := marshalParams(in.Parameters)
	if err != nil {
		return nil, nil, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	t := &types.PromptTemplate{
		ID:             uuid.New(),
		TenantID:       tenantID,
		Name:           name,
		Category:       category,
		ExecutionOrder: in.ExecutionOrder,
		Active:         active,
	}
	v := &types.TemplateVersion{
		ID:            uuid.New(),
		PromptBody:    in.PromptBody,
		SystemMessage: in.SystemMessage,
		Parameters:    params,
		CreatedBy:     strings.TrimSpace(in.CreatedBy),
		Notes:         strings.TrimSpace(in.Notes),
	}
	if err := s.repo.Create(dbc, t, v); err != nil {
		return nil, nil, err
	}
	s.log.Info("template created", "tenant_id", tenantID, "template_id", t.ID, "category", category)
	return t, v, nil
}

func (s *templateService) Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.PromptTemplate, *types.TemplateVersion, error) {
	t, err := s.repo.GetByID(dbc, tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	v, err := s.repo.CurrentVersion(dbc, t.ID)
	if err != nil {
		return nil, nil, err
	}
	return t, v, nil
}

func (s *templateService) List(dbc dbctx.Context, tenantID uuid.UUID, category string) ([]*types.PromptTemplate, error) {
	if category = strings.TrimSpace(category); category != "" {
		return s.repo.GetByCategory(dbc, tenantID, category)
	}
	return s.repo.List(dbc, tenantID)
}

func (s *templateService) ListVersions(dbc dbctx.Context, tenantID, id uuid.UUID) ([]*types.TemplateVersion, error) {
	// Ownership check before exposing version history.
	if _, err := s.repo.GetByID(dbc, tenantID, id); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(dbc, id)
}

func (s *templateService) NewVersion(dbc dbctx.Context, tenantID, id uuid.UUID, in NewVersionInput) (*types.TemplateVersion, error) {
	if strings.TrimSpace(in.PromptBody) == "" {
		return nil, fmt.Errorf("%w: prompt_body is required", pkgerrors.ErrInvalidArgument)
	}
	if _, err := s.repo.GetByID(dbc, tenantID, id); err != nil {
		return nil, err
	}
	params, err := marshalParams(in.Parameters)
	if err != nil {
		return nil, err
	}
	v, err := s.repo.NewVersion(dbc, id, in.PromptBody, in.SystemMessage, params,
		strings.TrimSpace(in.CreatedBy), strings.TrimSpace(in.Notes))
	if err != nil {
		return nil, err
	}
	s.log.Info("template version created",
		"tenant_id", tenantID, "template_id", id, "version", v.VersionNumber)
	return v, nil
}

func (s *templateService) SetActive(dbc dbctx.Context, tenantID, id uuid.UUID, active bool) error {
	return s.repo.SetActive(dbc, tenantID, id, active)
}

func (s *templateService) Reorder(dbc dbctx.Context, tenantID uuid.UUID, orderedIDs []uuid.UUID) error {
	return s.repo.Reorder(dbc, tenantID, orderedIDs)
}

func marshalParams(params map[string]any) (datatypes.JSON, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: parameters not serializable", pkgerrors.ErrInvalidArgument)
	}
	return datatypes.JSON(raw), nil
}
