// Package mcp exposes read-side vault registry operations as MCP tools.
//
// Mutations are intentionally absent: MCP transports carry no authenticated
// principal, and every registry write requires one.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/medvault/internal/vault/domain"
)

// toolCallTimeout bounds a single tool invocation against the store.
const toolCallTimeout = 5 * time.Second

// RegistryReader is the read-side domain surface MCP tools depend on.
type RegistryReader interface {
	GetEntry(ctx context.Context, entryID uint64) (domain.VaultEntry, error)
	ClassificationTags(ctx context.Context, entryID uint64) ([]string, error)
	MedicalAuthority(ctx context.Context, entryID uint64) (string, error)
	CreationTimestamp(ctx context.Context, entryID uint64) (time.Time, error)
	PayloadSize(ctx context.Context, entryID uint64) (uint64, error)
	DiagnosticNotes(ctx context.Context, entryID uint64) (string, error)
	TotalEntries(ctx context.Context) (uint64, error)
	CheckAccess(ctx context.Context, entryID uint64, accessor string) (bool, error)
}

// EntryGetInput identifies one vault entry.
type EntryGetInput struct {
	EntryID uint64 `json:"entry_id" jsonschema:"vault entry identifier (positive integer)"`
}

// EntryView is the full read model of a vault entry.
type EntryView struct {
	EntryID     uint64   `json:"entry_id" jsonschema:"vault entry identifier"`
	PatientHash string   `json:"patient_hash_code" jsonschema:"anonymized patient hash code"`
	Authority   string   `json:"medical_authority" jsonschema:"controlling medical authority"`
	PayloadSize uint64   `json:"payload_byte_size" jsonschema:"size of the referenced medical record in bytes"`
	Notes       string   `json:"diagnostic_notes" jsonschema:"diagnostic notes"`
	Tags        []string `json:"classification_tags" jsonschema:"classification tags"`
	CreatedAt   string   `json:"creation_timestamp" jsonschema:"RFC3339 timestamp when the entry was registered"`
}

// EntryTagsResult represents the MCP tool output for a tags read.
type EntryTagsResult struct {
	EntryID uint64   `json:"entry_id" jsonschema:"vault entry identifier"`
	Tags    []string `json:"classification_tags" jsonschema:"classification tags"`
}

// EntryAuthorityResult represents the MCP tool output for an authority read.
type EntryAuthorityResult struct {
	EntryID   uint64 `json:"entry_id" jsonschema:"vault entry identifier"`
	Authority string `json:"medical_authority" jsonschema:"controlling medical authority"`
}

// EntryCreatedAtResult represents the MCP tool output for a timestamp read.
type EntryCreatedAtResult struct {
	EntryID   uint64 `json:"entry_id" jsonschema:"vault entry identifier"`
	CreatedAt string `json:"creation_timestamp" jsonschema:"RFC3339 timestamp when the entry was registered"`
}

// EntryPayloadSizeResult represents the MCP tool output for a size read.
type EntryPayloadSizeResult struct {
	EntryID     uint64 `json:"entry_id" jsonschema:"vault entry identifier"`
	PayloadSize uint64 `json:"payload_byte_size" jsonschema:"size of the referenced medical record in bytes"`
}

// EntryNotesResult represents the MCP tool output for a notes read.
type EntryNotesResult struct {
	EntryID uint64 `json:"entry_id" jsonschema:"vault entry identifier"`
	Notes   string `json:"diagnostic_notes" jsonschema:"diagnostic notes"`
}

// EntriesCountInput represents the (empty) MCP tool input for the counter.
type EntriesCountInput struct{}

// EntriesCountResult represents the MCP tool output for the counter.
type EntriesCountResult struct {
	TotalEntries uint64 `json:"total_vault_entries" jsonschema:"total number of registered vault entries"`
}

// AccessCheckInput identifies one (entry, accessor) permission pair.
type AccessCheckInput struct {
	EntryID  uint64 `json:"entry_id" jsonschema:"vault entry identifier"`
	Accessor string `json:"accessor_identity" jsonschema:"accessor identity to check"`
}

// AccessCheckResult represents the MCP tool output for an access check.
type AccessCheckResult struct {
	EntryID   uint64 `json:"entry_id" jsonschema:"vault entry identifier"`
	Accessor  string `json:"accessor_identity" jsonschema:"accessor identity"`
	HasAccess bool   `json:"has_access_rights" jsonschema:"whether the accessor may read the entry"`
}

// EntryGetTool defines the MCP tool schema for a full entry read.
func EntryGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vault_entry_get",
		Description: "Reads the full metadata view of one vault entry",
	}
}

// EntryTagsTool defines the MCP tool schema for a tags read.
func EntryTagsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vault_entry_tags",
		Description: "Reads the classification tags of one vault entry",
	}
}

// EntryAuthorityTool defines the MCP tool schema for an authority read.
func EntryAuthorityTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vault_entry_authority",
		Description: "Reads the controlling medical authority of one vault entry",
	}
}

// EntryCreatedAtTool defines the MCP tool schema for a timestamp read.
func EntryCreatedAtTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vault_entry_created_at",
		Description: "Reads the creation timestamp of one vault entry",
	}
}

// EntryPayloadSizeTool defines the MCP tool schema for a size read.
func EntryPayloadSizeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vault_entry_payload_size",
		Description: "Reads the payload byte size of one vault entry",
	}
}

// EntryNotesTool defines the MCP tool schema for a notes read.
func EntryNotesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vault_entry_notes",
		Description: "Reads the diagnostic notes of one vault entry",
	}
}

// EntriesCountTool defines the MCP tool schema for the registry counter.
func EntriesCountTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vault_entries_count",
		Description: "Reports the total number of registered vault entries",
	}
}

// AccessCheckTool defines the MCP tool schema for a permission check.
func AccessCheckTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vault_access_check",
		Description: "Checks whether an accessor has read access to one vault entry",
	}
}

func toEntryView(entry domain.VaultEntry) EntryView {
	tags := entry.Tags
	if tags == nil {
		tags = []string{}
	}
	return EntryView{
		EntryID:     entry.EntryID,
		PatientHash: entry.PatientHash,
		Authority:   entry.Authority,
		PayloadSize: entry.PayloadSize,
		Notes:       entry.Notes,
		Tags:        tags,
		CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// EntryGetHandler executes a full entry read.
func EntryGetHandler(service RegistryReader) mcp.ToolHandlerFor[EntryGetInput, EntryView] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntryGetInput) (*mcp.CallToolResult, EntryView, error) {
		if service == nil {
			return nil, EntryView{}, fmt.Errorf("registry service is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
		defer cancel()

		entry, err := service.GetEntry(runCtx, input.EntryID)
		if err != nil {
			return nil, EntryView{}, fmt.Errorf("entry lookup failed: %w", err)
		}
		return nil, toEntryView(entry), nil
	}
}

// EntryTagsHandler executes a tags read.
func EntryTagsHandler(service RegistryReader) mcp.ToolHandlerFor[EntryGetInput, EntryTagsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntryGetInput) (*mcp.CallToolResult, EntryTagsResult, error) {
		if service == nil {
			return nil, EntryTagsResult{}, fmt.Errorf("registry service is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
		defer cancel()

		tags, err := service.ClassificationTags(runCtx, input.EntryID)
		if err != nil {
			return nil, EntryTagsResult{}, fmt.Errorf("tags read failed: %w", err)
		}
		if tags == nil {
			tags = []string{}
		}
		return nil, EntryTagsResult{EntryID: input.EntryID, Tags: tags}, nil
	}
}

// EntryAuthorityHandler executes an authority read.
func EntryAuthorityHandler(service RegistryReader) mcp.ToolHandlerFor[EntryGetInput, EntryAuthorityResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntryGetInput) (*mcp.CallToolResult, EntryAuthorityResult, error) {
		if service == nil {
			return nil, EntryAuthorityResult{}, fmt.Errorf("registry service is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
		defer cancel()

		authority, err := service.MedicalAuthority(runCtx, input.EntryID)
		if err != nil {
			return nil, EntryAuthorityResult{}, fmt.Errorf("authority read failed: %w", err)
		}
		return nil, EntryAuthorityResult{EntryID: input.EntryID, Authority: authority}, nil
	}
}

// EntryCreatedAtHandler executes a creation timestamp read.
func EntryCreatedAtHandler(service RegistryReader) mcp.ToolHandlerFor[EntryGetInput, EntryCreatedAtResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntryGetInput) (*mcp.CallToolResult, EntryCreatedAtResult, error) {
		if service == nil {
			return nil, EntryCreatedAtResult{}, fmt.Errorf("registry service is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
		defer cancel()

		createdAt, err := service.CreationTimestamp(runCtx, input.EntryID)
		if err != nil {
			return nil, EntryCreatedAtResult{}, fmt.Errorf("creation timestamp read failed: %w", err)
		}
		return nil, EntryCreatedAtResult{
			EntryID:   input.EntryID,
			CreatedAt: createdAt.UTC().Format(time.RFC3339),
		}, nil
	}
}

// EntryPayloadSizeHandler executes a payload size read.
func EntryPayloadSizeHandler(service RegistryReader) mcp.ToolHandlerFor[EntryGetInput, EntryPayloadSizeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntryGetInput) (*mcp.CallToolResult, EntryPayloadSizeResult, error) {
		if service == nil {
			return nil, EntryPayloadSizeResult{}, fmt.Errorf("registry service is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
		defer cancel()

		size, err := service.PayloadSize(runCtx, input.EntryID)
		if err != nil {
			return nil, EntryPayloadSizeResult{}, fmt.Errorf("payload size read failed: %w", err)
		}
		return nil, EntryPayloadSizeResult{EntryID: input.EntryID, PayloadSize: size}, nil
	}
}

// EntryNotesHandler executes a diagnostic notes read.
func EntryNotesHandler(service RegistryReader) mcp.ToolHandlerFor[EntryGetInput, EntryNotesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EntryGetInput) (*mcp.CallToolResult, EntryNotesResult, error) {
		if service == nil {
			return nil, EntryNotesResult{}, fmt.Errorf("registry service is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
		defer cancel()

		notes, err := service.DiagnosticNotes(runCtx, input.EntryID)
		if err != nil {
			return nil, EntryNotesResult{}, fmt.Errorf("notes read failed: %w", err)
		}
		return nil, EntryNotesResult{EntryID: input.EntryID, Notes: notes}, nil
	}
}

// EntriesCountHandler executes a registry counter read.
func EntriesCountHandler(service RegistryReader) mcp.ToolHandlerFor[EntriesCountInput, EntriesCountResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EntriesCountInput) (*mcp.CallToolResult, EntriesCountResult, error) {
		if service == nil {
			return nil, EntriesCountResult{}, fmt.Errorf("registry service is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
		defer cancel()

		total, err := service.TotalEntries(runCtx)
		if err != nil {
			return nil, EntriesCountResult{}, fmt.Errorf("count read failed: %w", err)
		}
		return nil, EntriesCountResult{TotalEntries: total}, nil
	}
}

// AccessCheckHandler executes a permission check.
func AccessCheckHandler(service RegistryReader) mcp.ToolHandlerFor[AccessCheckInput, AccessCheckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AccessCheckInput) (*mcp.CallToolResult, AccessCheckResult, error) {
		if service == nil {
			return nil, AccessCheckResult{}, fmt.Errorf("registry service is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
		defer cancel()

		hasAccess, err := service.CheckAccess(runCtx, input.EntryID, input.Accessor)
		if err != nil {
			return nil, AccessCheckResult{}, fmt.Errorf("access check failed: %w", err)
		}
		return nil, AccessCheckResult{
			EntryID:   input.EntryID,
			Accessor:  input.Accessor,
			HasAccess: hasAccess,
		}, nil
	}
}
