package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

const (
	StepStatusSucceeded = "succeeded"
	StepStatusFailed    = "failed"
	StepStatusSkipped   = "skipped"
)

// WorkflowRun is the summary row for one execution of a tenant's ordered
// template list against one source article. Steps holds the per-step status
// list the dashboard renders; artifacts and response logs link back via RunID.
type WorkflowRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ArticleID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"article_id"`
	JobID          *uuid.UUID     `gorm:"type:uuid;index" json:"job_id,omitempty"`
	Status         string         `gorm:"not null;index" json:"status"`
	StepsTotal     int            `gorm:"column:steps_total;not null;default:0" json:"steps_total"`
	StepsSucceeded int            `gorm:"column:steps_succeeded;not null;default:0" json:"steps_succeeded"`
	Steps          datatypes.JSON `gorm:"column:steps;type:jsonb" json:"steps,omitempty"`
	Error          string         `gorm:"column:error" json:"error,omitempty"`
	StartedAt      time.Time      `gorm:"column:started_at;not null;default:now()" json:"started_at"`
	FinishedAt     *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (WorkflowRun) TableName() string { return "workflow_run" }

// ResponseLog is the append-only provenance record of one LLM call. It is the
// primary debugging surface for parse and truncation failures, so it keeps the
// exact post-substitution prompt and the raw response text.
type ResponseLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RunID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"run_id"`
	ArtifactID   *uuid.UUID `gorm:"type:uuid;index" json:"artifact_id,omitempty"`
	StepIndex    int        `gorm:"column:step_index;not null;default:0" json:"step_index"`
	Category     string     `gorm:"not null;index" json:"category"`
	Provider     string     `gorm:"not null" json:"provider"`
	Model        string     `gorm:"not null" json:"model"`
	PromptSent   string     `gorm:"column:prompt_sent;type:text" json:"prompt_sent"`
	SystemSent   string     `gorm:"column:system_sent;type:text" json:"system_sent,omitempty"`
	ResponseText string     `gorm:"column:response_text;type:text" json:"response_text"`
	TokensIn     int        `gorm:"column:tokens_in;not null;default:0" json:"tokens_in"`
	TokensOut    int        `gorm:"column:tokens_out;not null;default:0" json:"tokens_out"`
	MaxTokens    int        `gorm:"column:max_tokens;not null;default:0" json:"max_tokens"`
	StopReason   string     `gorm:"column:stop_reason" json:"stop_reason"`
	Truncated    bool       `gorm:"not null;default:false" json:"truncated"`
	Success      bool       `gorm:"not null;default:false;index" json:"success"`
	Warning      string     `gorm:"column:warning;type:text" json:"warning,omitempty"`
	LatencyMS    int64      `gorm:"column:latency_ms;not null;default:0" json:"latency_ms"`
	CreatedAt    time.Time  `gorm:"not null;default:now();index" json:"created_at"`
}

func (ResponseLog) TableName() string { return "response_log" }
