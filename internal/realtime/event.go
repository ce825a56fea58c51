package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Job event types published on the bus. Consumers (dashboard SSE fanout,
// audit tail) treat unknown types as opaque.
const (
	EventJobProgress = "job_progress"
	EventJobDone     = "job_done"
	EventJobFailed   = "job_failed"
)

// JobEvent is the wire format on the job-event channel. One event per job
// transition; per-step progress rides on Stage/Progress.
type JobEvent struct {
	Type     string         `json:"type"`
	TenantID uuid.UUID      `json:"tenant_id"`
	JobID    uuid.UUID      `json:"job_id"`
	JobType  string         `json:"job_type"`
	Status   string         `json:"status"`
	Stage    string         `json:"stage,omitempty"`
	Progress int            `json:"progress,omitempty"`
	Error    string         `json:"error,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	At       time.Time      `json:"at"`
}
