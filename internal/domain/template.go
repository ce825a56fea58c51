package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PromptTemplate is an authored prompt spec. Category is a free-form string
// ("blog_post", "social_media", "prayer", ...); its only semantics come from
// the parser and media-type metadata resolved by the planner. ExecutionOrder
// is the sort key for a workflow run; ties break on ID.
type PromptTemplate struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID       uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:uniq_template_tenant_name" json:"tenant_id"`
	Name           string         `gorm:"not null;uniqueIndex:uniq_template_tenant_name" json:"name"`
	Category       string         `gorm:"not null;index" json:"category"`
	ExecutionOrder int            `gorm:"column:execution_order;not null;default:0;index" json:"execution_order"`
	Active         bool           `gorm:"not null;default:true;index" json:"active"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PromptTemplate) TableName() string { return "prompt_template" }

// TemplateVersion is an immutable snapshot of a template body. Exactly one
// version per template carries is_current=true; edits insert a new row and
// flip the flag in the same transaction.
type TemplateVersion struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TemplateID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"template_id"`
	VersionNumber int            `gorm:"column:version_number;not null" json:"version_number"`
	PromptBody    string         `gorm:"column:prompt_body;type:text;not null" json:"prompt_body"`
	SystemMessage string         `gorm:"column:system_message;type:text" json:"system_message,omitempty"`
	Parameters    datatypes.JSON `gorm:"column:parameters;type:jsonb" json:"parameters,omitempty"`
	IsCurrent     bool           `gorm:"column:is_current;not null;default:false;index" json:"is_current"`
	CreatedBy     string         `gorm:"column:created_by" json:"created_by,omitempty"`
	Notes         string         `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (TemplateVersion) TableName() string { return "template_version" }
