package healthprobe

import (
	"bytes"
	"context"
	"flag"
	"net"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func startRegistryHealth(t *testing.T, status grpc_health_v1.HealthCheckResponse_ServingStatus) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	grpcServer := gogrpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", status)
	healthServer.SetServingStatus(DefaultService, status)

	go func() {
		_ = grpcServer.Serve(listener)
	}()
	t.Cleanup(func() {
		grpcServer.Stop()
		_ = listener.Close()
	})

	return listener.Addr().String()
}

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("MEDVAULT_GRPC_HEALTH_ADDR", "")

	fs := flag.NewFlagSet("healthprobe", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "" {
		t.Fatalf("expected empty default addr, got %q", cfg.Addr)
	}
	if cfg.Service != DefaultService {
		t.Fatalf("service = %q, want %q", cfg.Service, DefaultService)
	}
	if cfg.Timeout != defaultTimeout {
		t.Fatalf("timeout = %v, want %v", cfg.Timeout, defaultTimeout)
	}
}

func TestParseConfigEnvFallback(t *testing.T) {
	t.Setenv("MEDVAULT_GRPC_HEALTH_ADDR", "10.0.0.7:9090")

	fs := flag.NewFlagSet("healthprobe", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "10.0.0.7:9090" {
		t.Fatalf("addr = %q, want env fallback", cfg.Addr)
	}
}

func TestParseConfigFlagBeatsEnv(t *testing.T) {
	t.Setenv("MEDVAULT_GRPC_HEALTH_ADDR", "10.0.0.7:9090")

	fs := flag.NewFlagSet("healthprobe", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "127.0.0.1:7000", "-timeout", "2s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "127.0.0.1:7000" {
		t.Fatalf("addr = %q, want flag value", cfg.Addr)
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("timeout = %v, want 2s", cfg.Timeout)
	}
}

func TestParseConfigBadArgs(t *testing.T) {
	fs := flag.NewFlagSet("healthprobe", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	if _, err := ParseConfig(fs, []string{"-invalid"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestRunRequiresAddr(t *testing.T) {
	if err := Run(context.Background(), Config{}, nil); err == nil {
		t.Fatal("expected error for missing address")
	}
}

func TestRunAgainstServingRegistry(t *testing.T) {
	addr := startRegistryHealth(t, grpc_health_v1.HealthCheckResponse_SERVING)

	cfg := Config{Addr: addr, Service: DefaultService, Timeout: 5 * time.Second}
	if err := Run(context.Background(), cfg, t.Logf); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunFailsWhenNotServing(t *testing.T) {
	addr := startRegistryHealth(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	cfg := Config{Addr: addr, Service: DefaultService, Timeout: 500 * time.Millisecond}
	if err := Run(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for NOT_SERVING registry")
	}
}
