package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/newsforge/newsforge-backend/internal/domain"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
	"github.com/newsforge/newsforge-backend/internal/realtime"
	"github.com/newsforge/newsforge-backend/internal/realtime/bus"
)

// JobNotifier publishes job lifecycle transitions onto the event bus. All
// methods are fire-and-forget: a notification failure never affects the job.
type JobNotifier interface {
	JobProgress(tenantID uuid.UUID, job *types.JobRun, stage string, pct int, msg string)
	JobDone(tenantID uuid.UUID, job *types.JobRun)
	JobFailed(tenantID uuid.UUID, job *types.JobRun, stage, msg string)
}

type jobNotifier struct {
	bus bus.Bus
	log *logger.Logger
}

func NewJobNotifier(b bus.Bus, baseLog *logger.Logger) JobNotifier {
	return &jobNotifier{
		bus: b,
		log: baseLog.With("service", "JobNotifier"),
	}
}

func (n *jobNotifier) publish(evt realtime.JobEvent) {
	if n.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.bus.Publish(ctx, evt); err != nil {
		n.log.Warn("job event publish failed", "type", evt.Type, "job_id", evt.JobID, "error", err)
	}
}

func (n *jobNotifier) JobProgress(tenantID uuid.UUID, job *types.JobRun, stage string, pct int, msg string) {
	if job == nil {
		return
	}
	n.publish(realtime.JobEvent{
		Type:     realtime.EventJobProgress,
		TenantID: tenantID,
		JobID:    job.ID,
		JobType:  job.JobType,
		Status:   job.Status,
		Stage:    stage,
		Progress: pct,
		Data:     map[string]any{"message": msg},
		At:       time.Now().UTC(),
	})
}

func (n *jobNotifier) JobDone(tenantID uuid.UUID, job *types.JobRun) {
	if job == nil {
		return
	}
	n.publish(realtime.JobEvent{
		Type:     realtime.EventJobDone,
		TenantID: tenantID,
		JobID:    job.ID,
		JobType:  job.JobType,
		Status:   job.Status,
		Progress: 100,
		At:       time.Now().UTC(),
	})
}

func (n *jobNotifier) JobFailed(tenantID uuid.UUID, job *types.JobRun, stage, msg string) {
	if job == nil {
		return
	}
	n.publish(realtime.JobEvent{
		Type:     realtime.EventJobFailed,
		TenantID: tenantID,
		JobID:    job.ID,
		JobType:  job.JobType,
		Status:   job.Status,
		Stage:    stage,
		Error:    msg,
		At:       time.Now().UTC(),
	})
}
