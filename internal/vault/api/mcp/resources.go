package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registryCatalogURI addresses the registry catalog resource.
const registryCatalogURI = "vault://registry"

type registryCatalog struct {
	Service      string   `json:"service"`
	Version      string   `json:"version"`
	TotalEntries uint64   `json:"total_vault_entries"`
	Tools        []string `json:"tools"`
}

// RegistryCatalogResource defines the catalog resource exposed alongside the
// tools. It summarizes the registry and names every available tool so clients
// can discover the read surface without probing.
func RegistryCatalogResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "registry_catalog",
		Title:       "Vault Registry Catalog",
		Description: "Registry summary with the current entry count and the read tools this server exposes",
		MIMEType:    "application/json",
		URI:         registryCatalogURI,
	}
}

// RegistryCatalogResourceHandler serves the catalog resource contents.
func RegistryCatalogResourceHandler(service RegistryReader) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if service == nil {
			return nil, fmt.Errorf("registry service is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
		defer cancel()

		total, err := service.TotalEntries(runCtx)
		if err != nil {
			return nil, fmt.Errorf("count read failed: %w", err)
		}

		catalog := registryCatalog{
			Service:      serverName,
			Version:      serverVersion,
			TotalEntries: total,
			Tools: []string{
				EntryGetTool().Name,
				EntryTagsTool().Name,
				EntryAuthorityTool().Name,
				EntryCreatedAtTool().Name,
				EntryPayloadSizeTool().Name,
				EntryNotesTool().Name,
				EntriesCountTool().Name,
				AccessCheckTool().Name,
			},
		}

		data, err := json.MarshalIndent(catalog, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to serialize registry catalog: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      registryCatalogURI,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}
