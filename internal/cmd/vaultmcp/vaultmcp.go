// Package vaultmcp parses MCP command flags and selects stdio or HTTP transport.
package vaultmcp

import (
	"context"
	"flag"
	"log"

	entrypoint "github.com/louisbranch/medvault/internal/platform/cmd"
	mcpapi "github.com/louisbranch/medvault/internal/vault/api/mcp"
	server "github.com/louisbranch/medvault/internal/vault/app"
)

// Config holds MCP command configuration.
type Config struct {
	HTTPAddr  string `env:"MEDVAULT_MCP_HTTP_ADDR" envDefault:"localhost:8081"`
	Transport string `env:"MEDVAULT_MCP_TRANSPORT" envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter backed by the configured vault store.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceVaultMCP, func(context.Context) error {
		service, emitter, closeStore, err := server.OpenRegistry(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := closeStore(); closeErr != nil {
				log.Printf("close vault store: %v", closeErr)
			}
		}()

		return mcpapi.Run(ctx, mcpapi.Config{
			Transport: mcpapi.TransportKind(cfg.Transport),
			HTTPAddr:  cfg.HTTPAddr,
		}, service, emitter)
	})
}
