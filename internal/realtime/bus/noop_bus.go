package bus

import (
	"context"

	"github.com/newsforge/newsforge-backend/internal/realtime"
)

// noopBus satisfies Bus for deployments without redis (single-process dev,
// tests). Events are dropped.
type noopBus struct{}

func NewNoopBus() Bus { return noopBus{} }

func (noopBus) Publish(ctx context.Context, evt realtime.JobEvent) error { return nil }

func (noopBus) StartForwarder(ctx context.Context, onEvent func(evt realtime.JobEvent)) error {
	return nil
}

func (noopBus) Close() error { return nil }
