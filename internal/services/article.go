package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newsforge/newsforge-backend/internal/data/repos/articles"
	types "github.com/newsforge/newsforge-backend/internal/domain"
	pkgerrors "github.com/newsforge/newsforge-backend/internal/pkg/errors"
	"github.com/newsforge/newsforge-backend/internal/platform/dbctx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

type CreateArticleInput struct {
	Title       string
	Content     string
	Source      string
	URL         string
	PublishedAt *time.Time
}

type ArticleService interface {
	Create(dbc dbctx.Context, tenantID uuid.UUID, in CreateArticleInput) (*types.SourceArticle, error)
	Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.SourceArticle, error)
	List(dbc dbctx.Context, tenantID uuid.UUID, limit, offset int) ([]*types.SourceArticle, error)
}

type articleService struct {
	repo articles.Repo
	log  *logger.Logger
}

func NewArticleService(repo articles.Repo, baseLog *logger.Logger) ArticleService {
	return &articleService{
		repo: repo,
		log:  baseLog.With("service", "ArticleService"),
	}
}

func (s *articleService) Create(dbc dbctx.Context, tenantID uuid.UUID, in CreateArticleInput) (*types.SourceArticle, error) {
	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if title == "" || content == "" {
		return nil, fmt.Errorf("%w: title and content are required", pkgerrors.ErrInvalidArgument)
	}
	a := &types.SourceArticle{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Title:       title,
		Content:     content,
		Source:      strings.TrimSpace(in.Source),
		URL:         strings.TrimSpace(in.URL),
		PublishedAt: in.PublishedAt,
	}
	if err := s.repo.Create(dbc, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *articleService) Get(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.SourceArticle, error) {
	return s.repo.GetByID(dbc, tenantID, id)
}

func (s *articleService) List(dbc dbctx.Context, tenantID uuid.UUID, limit, offset int) ([]*types.SourceArticle, error) {
	return s.repo.List(dbc, tenantID, limit, offset)
}
