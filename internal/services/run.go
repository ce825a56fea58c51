package services

import (
	"github.com/google/uuid"

	"github.com/newsforge/newsforge-backend/internal/data/repos/artifacts"
	"github.com/newsforge/newsforge-backend/internal/data/repos/runs"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

// RunSummary is the read model for one workflow run: the run row plus one
// artifact per step, deduplicated in favor of the latest successful one.
type RunSummary struct {
	Run       *types.WorkflowRun `json:"run"`
	Artifacts []*types.Artifact  `json:"artifacts"`
}

type RunService interface {
	Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.WorkflowRun, error)
	GetByJob(dbc dbctx.Context, tenantID, jobID uuid.UUID) (*types.WorkflowRun, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, limit, offset int) ([]*types.WorkflowRun, error)
	Summary(dbc dbctx.Context, tenantID, id uuid.UUID) (*RunSummary, error)
	Artifacts(dbc dbctx.Context, tenantID, runID uuid.UUID) ([]*types.Artifact, error)
	ArtifactsByCategory(dbc dbctx.Context, tenantID uuid.UUID, category string, limit int) ([]*types.Artifact, error)
	Responses(dbc dbctx.Context, tenantID, runID uuid.UUID, category string, success *bool) ([]*types.ResponseLog, error)
}

type runService struct {
	runs      runs.WorkflowRunRepo
	artifacts artifacts.Repo
	respLogs  runs.ResponseLogRepo
	log       *logger.Logger
}

func NewRunService(runRepo runs.WorkflowRunRepo, artifactRepo artifacts.Repo, respLogRepo runs.ResponseLogRepo, baseLog *logger.Logger) RunService {
	return &runService{
		runs:      runRepo,
		artifacts: artifactRepo,
		respLogs:  respLogRepo,
		log:       baseLog.With("service", "RunService"),
	}
}

func (s *runService) Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.WorkflowRun, error) {
	return s.runs.GetByID(dbc, tenantID, id)
}

// GetByJob resolves the run a queued job produced, for callers that only
// hold the job id.
func (s *runService) GetByJob(dbc dbctx.Context, tenantID, jobID uuid.UUID) (*types.WorkflowRun, error) {
	return s.runs.GetByJobID(dbc, tenantID, jobID)
}

func (s *runService) List(dbc dbctx.Context, tenantID uuid.UUID, limit, offset int) ([]*types.WorkflowRun, error) {
	return s.runs.List(dbc, tenantID, limit, offset)
}

func (s *runService) Summary(dbc dbctx.Context, tenantID, id uuid.UUID) (*RunSummary, error) {
	run, err := s.runs.GetByID(dbc, tenantID, id)
	if err != nil {
		return nil, err
	}
	all, err := s.artifacts.ListByRun(dbc, tenantID, id)
	if err != nil {
		return nil, err
	}
	return &RunSummary{Run: run, Artifacts: dedupeByStep(all)}, nil
}

func (s *runService) Artifacts(dbc dbctx.Context, tenantID, runID uuid.UUID) ([]*types.Artifact, error) {
	return s.artifacts.ListByRun(dbc, tenantID, runID)
}

// ArtifactsByCategory is the content-library view: the latest generated
// pieces of one category across runs.
func (s *runService) ArtifactsByCategory(dbc dbctx.Context, tenantID uuid.UUID, category string, limit int) ([]*types.Artifact, error) {
	return s.artifacts.ListByCategory(dbc, tenantID, category, limit)
}

func (s *runService) Responses(dbc dbctx.Context, tenantID, runID uuid.UUID, category string, success *bool) ([]*types.ResponseLog, error) {
	return s.respLogs.ListByRun(dbc, tenantID, runID, runs.ResponseLogFilter{
		Category: category,
		Success:  success,
	})
}

// dedupeByStep keeps one artifact per step index: the latest successful one,
// or the latest failed one when the step never succeeded. Input is ordered
// (step_index, created_at) ascending.
func dedupeByStep(all []*types.Artifact) []*types.Artifact {
	byStep := make(map[int]*types.Artifact, len(all))
	order := make([]int, 0, len(all))
	for _, a := range all {
		prev, seen := byStep[a.StepIndex]
		if !seen {
			byStep[a.StepIndex] = a
			order = append(order, a.StepIndex)
			continue
		}
		if prev.Status == types.ArtifactStatusSucceeded && a.Status != types.ArtifactStatusSucceeded {
			continue
		}
		byStep[a.StepIndex] = a
	}
	out := make([]*types.Artifact, 0, len(order))
	for _, idx := range order {
		out = append(out, byStep[idx])
	}
	return out
}
