// Package server wires the vault registry runtime and HTTP lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/medvault/internal/platform/config"
	"github.com/louisbranch/medvault/internal/vault/api/httpapi"
	"github.com/louisbranch/medvault/internal/vault/domain"
	"github.com/louisbranch/medvault/internal/vault/observability/audit"
	"github.com/louisbranch/medvault/internal/vault/storage"
	vaultmongo "github.com/louisbranch/medvault/internal/vault/storage/mongo"
	vaultsqlite "github.com/louisbranch/medvault/internal/vault/storage/sqlite"
)

const (
	driverSQLite = "sqlite"
	driverMongo  = "mongo"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second

	// healthServiceName is the logical service name reported on the gRPC
	// health endpoint alongside the empty overall-server name.
	healthServiceName = "medvault.v1.VaultRegistry"
)

type serverEnv struct {
	DBPath         string `env:"MEDVAULT_DB_PATH"`
	StorageDriver  string `env:"MEDVAULT_STORAGE_DRIVER"`
	MongoURI       string `env:"MEDVAULT_MONGO_URI"`
	MongoDatabase  string `env:"MEDVAULT_MONGO_DATABASE"`
	GRPCHealthAddr string `env:"MEDVAULT_GRPC_HEALTH_ADDR"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.StorageDriver) == "" {
		cfg.StorageDriver = driverSQLite
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "medvault.db")
	}
	if strings.TrimSpace(cfg.MongoDatabase) == "" {
		cfg.MongoDatabase = "medvault"
	}
	return cfg
}

// Server hosts the vault registry HTTP API, an optional gRPC health
// endpoint, and the storage lifecycle.
type Server struct {
	listener       net.Listener
	httpServer     *http.Server
	healthListener net.Listener
	grpcServer     *grpc.Server
	health         *health.Server
	store          storage.RegistryStore
	closeStore     func() error
	service        *domain.Service
}

// New creates a configured registry server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured registry server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	cfg := loadServerEnv()
	store, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	service := domain.NewService(newDomainStoreAdapter(store), nil)
	emitter := audit.NewEmitter(store)

	mux := http.NewServeMux()
	httpapi.RegisterRoutes(mux, httpapi.NewHandlers(service), httpapi.NewMiddleware(emitter, nil))

	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	server := &Server{
		listener:   listener,
		httpServer: httpServer,
		store:      store,
		closeStore: closeStore,
		service:    service,
	}

	// Optional gRPC health endpoint for fleet probes.
	if healthAddr := strings.TrimSpace(cfg.GRPCHealthAddr); healthAddr != "" {
		healthListener, err := net.Listen("tcp", healthAddr)
		if err != nil {
			server.Close()
			return nil, fmt.Errorf("listen on health address %s: %w", healthAddr, err)
		}

		grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

		server.healthListener = healthListener
		server.grpcServer = grpcServer
		server.health = healthServer
	}

	return server, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HealthAddr returns the gRPC health listener address, or an empty string
// when no health endpoint is configured.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Service returns the registry service assembled by the server.
func (s *Server) Service() *domain.Service {
	if s == nil {
		return nil
	}
	return s.service
}

// Run creates and serves a registry server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server, and the gRPC health endpoint when one is
// configured, until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("vault registry listening at %v", s.listener.Addr())
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- s.httpServer.Serve(s.listener)
	}()

	var grpcErr chan error
	if s.grpcServer != nil && s.healthListener != nil {
		log.Printf("vault registry health endpoint at %v", s.healthListener.Addr())
		grpcErr = make(chan error, 1)
		go func() {
			grpcErr <- s.grpcServer.Serve(s.healthListener)
		}()
	}

	select {
	case <-ctx.Done():
		if s.health != nil {
			s.health.Shutdown()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if s.grpcServer != nil {
			s.grpcServer.GracefulStop()
		}
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		if serveOutcome := <-httpErr; serveOutcome != nil && !errors.Is(serveOutcome, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", serveOutcome)
		}
		if grpcErr != nil {
			if serveOutcome := <-grpcErr; serveOutcome != nil && !errors.Is(serveOutcome, grpc.ErrServerStopped) {
				return fmt.Errorf("serve health grpc: %w", serveOutcome)
			}
		}
		return nil
	case err := <-httpErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case err := <-grpcErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve health grpc: %w", err)
	}
}

// Close releases registry server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.healthListener != nil {
		_ = s.healthListener.Close()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			log.Printf("close vault store: %v", err)
		}
		s.closeStore = nil
	}
}

// OpenRegistry opens the configured store and builds the registry service and
// audit emitter for processes that do not host the HTTP API. The returned
// close function releases the store.
func OpenRegistry(ctx context.Context) (*domain.Service, *audit.Emitter, func() error, error) {
	cfg := loadServerEnv()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return domain.NewService(newDomainStoreAdapter(store), nil), audit.NewEmitter(store), closeStore, nil
}

// openStore opens the storage backend selected by MEDVAULT_STORAGE_DRIVER.
func openStore(ctx context.Context, cfg serverEnv) (storage.RegistryStore, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case driverSQLite:
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := vaultsqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite vault store: %w", err)
		}
		return store, store.Close, nil
	case driverMongo:
		store, err := vaultmongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo vault store: %w", err)
		}
		closeStore := func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return store.Close(closeCtx)
		}
		return store, closeStore, nil
	default:
		return nil, nil, fmt.Errorf("storage driver %q is not supported", cfg.StorageDriver)
	}
}
