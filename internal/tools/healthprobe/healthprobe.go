// Package healthprobe checks a vault registry gRPC health endpoint, intended
// for container readiness and liveness probes.
package healthprobe

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	platformgrpc "github.com/louisbranch/medvault/internal/platform/grpc"
)

// DefaultService is the health service name published by the vault registry.
const DefaultService = "medvault.v1.VaultRegistry"

const defaultTimeout = 5 * time.Second

// Config holds probe target settings.
type Config struct {
	Addr    string
	Service string
	Timeout time.Duration
}

// ParseConfig parses flags into a Config. The address falls back to
// MEDVAULT_GRPC_HEALTH_ADDR when the flag is unset.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{}
	fs.StringVar(&cfg.Addr, "addr", "", "health endpoint address (default: MEDVAULT_GRPC_HEALTH_ADDR)")
	fs.StringVar(&cfg.Service, "service", DefaultService, "health service name to check")
	fs.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "time allowed for the probe")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = os.Getenv("MEDVAULT_GRPC_HEALTH_ADDR")
	}
	return cfg, nil
}

// Run dials the configured endpoint and returns nil when the registry health
// service reports SERVING within the timeout.
func Run(ctx context.Context, cfg Config, logf func(string, ...any)) error {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return errors.New("health endpoint address is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := platformgrpc.DialWithHealth(probeCtx, nil, addr, cfg.Service, timeout, logf, platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		return fmt.Errorf("probe %s: %w", addr, err)
	}
	return conn.Close()
}
