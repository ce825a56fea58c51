package bus

import (
	"context"

	"github.com/newsforge/newsforge-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, evt realtime.JobEvent) error
	StartForwarder(ctx context.Context, onEvent func(evt realtime.JobEvent)) error
	Close() error
}
