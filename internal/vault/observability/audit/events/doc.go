// Package events defines canonical vault audit event names.
//
// The names intentionally remain stable (`telemetry.*`) so operational
// consumers can rely on these values.
package events

const (
	// HTTPRead captures durable audit events for read-only HTTP handlers.
	HTTPRead = "telemetry.http.read"
	// HTTPWrite captures durable audit events for write-path HTTP handlers.
	HTTPWrite = "telemetry.http.write"
	// MCPRead captures durable audit events for read-only MCP tool calls.
	MCPRead = "telemetry.mcp.read"
)
