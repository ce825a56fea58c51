package content_generation

import (
	"time"

	"gorm.io/gorm"

	"github.com/newsforge/newsforge-backend/internal/data/repos/articles"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
	"github.com/newsforge/newsforge-backend/internal/workflow/runner"
)

type Pipeline struct {
	db          *gorm.DB
	log         *logger.Logger
	articles    articles.Repo
	runner      *runner.Runner
	stepTimeout time.Duration
	runTimeout  time.Duration
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	articleRepo articles.Repo,
	wfRunner *runner.Runner,
	stepTimeout time.Duration,
	runTimeout time.Duration,
) *Pipeline {
	return &Pipeline{
		db:          db,
		log:         baseLog.With("job", types.JobTypeContentGeneration),
		articles:    articleRepo,
		runner:      wfRunner,
		stepTimeout: stepTimeout,
		runTimeout:  runTimeout,
	}
}

func (p *Pipeline) Type() string { return types.JobTypeContentGeneration }
