package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SourceArticle is the read-only input a workflow run consumes. Ingestion
// (RSS, scrapers) lives outside this service; rows arrive via the articles API.
type SourceArticle struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Title       string         `gorm:"not null" json:"title"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	Source      string         `gorm:"column:source" json:"source,omitempty"`
	URL         string         `gorm:"column:url" json:"url,omitempty"`
	PublishedAt *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SourceArticle) TableName() string { return "source_article" }
