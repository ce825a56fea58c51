package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTenantMissing means a request reached a tenant-scoped operation
	// without a tenant bound to its context.
	ErrTenantMissing = errors.New("tenant missing")
	// ErrNoPlan means a workflow run was requested for a tenant with no
	// active templates.
	ErrNoPlan = errors.New("no_plan: tenant has no active templates")
)
