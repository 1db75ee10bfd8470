// Package audit contains durable in-product audit writes for vault registry
// operations.
//
// This package owns persisted operational audit events used for access
// reviews and incident analysis. For distributed tracing, the service still
// uses package `internal/platform/otel`.
package audit
