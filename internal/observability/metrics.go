package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/newsforge/newsforge-backend/internal/platform/envutil"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

// Metrics holds the LLM and worker instruments. Access goes through
// Current(); a nil receiver is a no-op so call sites never nil-check.
type Metrics struct {
	llmRequests metric.Int64Counter
	llmLatency  metric.Float64Histogram
	llmTokens   metric.Int64Counter
	jobsClaimed metric.Int64Counter
	jobsFailed  metric.Int64Counter
	stepsRun    metric.Int64Counter
}

var (
	metricsOnce sync.Once
	instance    *Metrics
)

func MetricsEnabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics { return instance }

// InitMetrics builds instruments on the global meter provider. Safe to call
// once at boot; when metrics are disabled Current() stays nil.
func InitMetrics(log *logger.Logger) {
	metricsOnce.Do(func() {
		if !MetricsEnabled() {
			return
		}
		meter := otel.Meter("newsforge-backend")

		m := &Metrics{}
		var err error
		if m.llmRequests, err = meter.Int64Counter("llm.requests"); err != nil && log != nil {
			log.Warn("metrics init failed (continuing)", "instrument", "llm.requests", "error", err)
		}
		if m.llmLatency, err = meter.Float64Histogram("llm.latency.seconds"); err != nil && log != nil {
			log.Warn("metrics init failed (continuing)", "instrument", "llm.latency.seconds", "error", err)
		}
		if m.llmTokens, err = meter.Int64Counter("llm.tokens"); err != nil && log != nil {
			log.Warn("metrics init failed (continuing)", "instrument", "llm.tokens", "error", err)
		}
		if m.jobsClaimed, err = meter.Int64Counter("jobs.claimed"); err != nil && log != nil {
			log.Warn("metrics init failed (continuing)", "instrument", "jobs.claimed", "error", err)
		}
		if m.jobsFailed, err = meter.Int64Counter("jobs.failed"); err != nil && log != nil {
			log.Warn("metrics init failed (continuing)", "instrument", "jobs.failed", "error", err)
		}
		if m.stepsRun, err = meter.Int64Counter("workflow.steps"); err != nil && log != nil {
			log.Warn("metrics init failed (continuing)", "instrument", "workflow.steps", "error", err)
		}
		instance = m
	})
}

func (m *Metrics) ObserveLLMRequest(model, op string, status int, d time.Duration, tokensIn, tokensOut int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("op", op),
		attribute.String("status", strconv.Itoa(status)),
	)
	if m.llmRequests != nil {
		m.llmRequests.Add(ctx, 1, attrs)
	}
	if m.llmLatency != nil {
		m.llmLatency.Record(ctx, d.Seconds(), attrs)
	}
	if m.llmTokens != nil && (tokensIn > 0 || tokensOut > 0) {
		m.llmTokens.Add(ctx, int64(tokensIn), metric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "in")))
		m.llmTokens.Add(ctx, int64(tokensOut), metric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "out")))
	}
}

func (m *Metrics) ObserveJobClaimed(jobType string) {
	if m == nil || m.jobsClaimed == nil {
		return
	}
	m.jobsClaimed.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("job_type", jobType)))
}

func (m *Metrics) ObserveJobFailed(jobType, stage string) {
	if m == nil || m.jobsFailed == nil {
		return
	}
	m.jobsFailed.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("job_type", jobType), attribute.String("stage", stage)))
}

func (m *Metrics) ObserveStep(category, status string) {
	if m == nil || m.stepsRun == nil {
		return
	}
	m.stepsRun.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("category", category), attribute.String("status", status)))
}
