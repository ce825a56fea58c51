package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	tenantKey ctxKey = "tenant_data"
	traceKey  ctxKey = "trace_data"
)

// TenantData identifies the tenant a request or job run acts on behalf of.
// Every repo query filters on TenantID; a missing tenant is rejected at the
// boundary, never defaulted.
type TenantData struct {
	TenantID uuid.UUID
}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTenant(ctx context.Context, td *TenantData) context.Context {
	if td == nil {
		return ctx
	}
	return context.WithValue(ctx, tenantKey, td)
}

func GetTenant(ctx context.Context) *TenantData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(tenantKey).(*TenantData)
	return td
}

// TenantID returns the tenant bound to ctx, or uuid.Nil when absent.
func TenantID(ctx context.Context) uuid.UUID {
	td := GetTenant(ctx)
	if td == nil {
		return uuid.Nil
	}
	return td.TenantID
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	if td == nil {
		return ctx
	}
	return context.WithValue(ctx, traceKey, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceKey).(*TraceData)
	return td
}
