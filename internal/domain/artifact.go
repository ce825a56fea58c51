package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ArtifactStatusSucceeded = "succeeded"
	ArtifactStatusFailed    = "failed"
)

// Artifact is the stored result of one workflow step: the parsed, typed
// structure serialized to JSON at this boundary only. Immutable after insert.
type Artifact struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RunID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"run_id"`
	TemplateID *uuid.UUID     `gorm:"type:uuid;index" json:"template_id,omitempty"`
	VersionID  *uuid.UUID     `gorm:"type:uuid" json:"version_id,omitempty"`
	StepIndex  int            `gorm:"column:step_index;not null;default:0" json:"step_index"`
	Category   string         `gorm:"not null;index" json:"category"`
	Structured datatypes.JSON `gorm:"column:structured;type:jsonb" json:"structured"`
	ItemCount  int            `gorm:"column:item_count;not null;default:0" json:"item_count"`
	Status     string         `gorm:"not null;index" json:"status"`
	CreatedAt  time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (Artifact) TableName() string { return "artifact" }
