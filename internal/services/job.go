package services

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/newsforge/newsforge-backend/internal/data/repos/articles"
	"github.com/newsforge/newsforge-backend/internal/data/repos/jobs"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

// JobService is the submission surface of the queue. Submit validates the
// article belongs to the tenant before enqueueing; workers pick the row up
// through the claim protocol, never through this service.
type JobService interface {
	SubmitContentGeneration(dbc dbctx.Context, tenantID, articleID uuid.UUID) (*types.JobRun, error)
	Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.JobRun, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, status string, limit, offset int) ([]*types.JobRun, error)
	Cancel(dbc dbctx.Context, tenantID, id uuid.UUID) (bool, error)
}

type jobService struct {
	jobs     jobs.JobRunRepo
	articles articles.Repo
	log      *logger.Logger
}

func NewJobService(jobRepo jobs.JobRunRepo, articleRepo articles.Repo, baseLog *logger.Logger) JobService {
	return &jobService{
		jobs:     jobRepo,
		articles: articleRepo,
		log:      baseLog.With("service", "JobService"),
	}
}

func (s *jobService) SubmitContentGeneration(dbc dbctx.Context, tenantID, articleID uuid.UUID) (*types.JobRun, error) {
	article, err := s.articles.GetByID(dbc, tenantID, articleID)
	if err != nil {
		return nil, fmt.Errorf("validate article: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{"article_id": article.ID})
	job := &types.JobRun{
		ID:       uuid.New(),
		TenantID: tenantID,
		JobType:  types.JobTypeContentGeneration,
		Status:   types.JobStatusQueued,
		Payload:  datatypes.JSON(payload),
	}
	if err := s.jobs.Create(dbc, job); err != nil {
		return nil, err
	}
	s.log.Info("job submitted",
		"tenant_id", tenantID, "job_id", job.ID, "article_id", article.ID)
	return job, nil
}

func (s *jobService) Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.JobRun, error) {
	return s.jobs.GetByID(dbc, tenantID, id)
}

func (s *jobService) List(dbc dbctx.Context, tenantID uuid.UUID, status string, limit, offset int) ([]*types.JobRun, error) {
	return s.jobs.List(dbc, tenantID, status, limit, offset)
}

func (s *jobService) Cancel(dbc dbctx.Context, tenantID, id uuid.UUID) (bool, error) {
	cancelled, err := s.jobs.Cancel(dbc, tenantID, id)
	if err != nil {
		return false, err
	}
	if cancelled {
		s.log.Info("job cancelled", "tenant_id", tenantID, "job_id", id)
	}
	return cancelled, nil
}
