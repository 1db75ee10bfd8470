// Package vaultd parses vault registry flags and launches the HTTP service.
package vaultd

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/medvault/internal/platform/cmd"
	server "github.com/louisbranch/medvault/internal/vault/app"
)

// Config holds vault registry command configuration.
type Config struct {
	Port int `env:"MEDVAULT_PORT" envDefault:"8080"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The vault registry HTTP port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the vault registry HTTP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceVault, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
