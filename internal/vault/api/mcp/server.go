package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/medvault/internal/vault/observability/audit"
	"github.com/louisbranch/medvault/internal/vault/observability/audit/events"
	"github.com/louisbranch/medvault/internal/vault/storage"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "medvault-registry"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"

	// defaultHTTPAddr binds the HTTP transport to loopback only.
	defaultHTTPAddr = "localhost:8081"
	// httpShutdownTimeout bounds graceful HTTP transport shutdown.
	httpShutdownTimeout = 10 * time.Second
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over streamable HTTP for remote clients.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	Transport TransportKind
	HTTPAddr  string // HTTP bind address. Defaults to localhost:8081 for HTTP transport.
}

// Server hosts the vault registry MCP server.
type Server struct {
	mcpServer *mcp.Server
}

// NewServer builds an MCP server with every read tool and the catalog
// resource registered against the given registry service. Tool invocations
// emit audit events through the emitter; a nil emitter disables auditing.
func NewServer(service RegistryReader, emitter *audit.Emitter) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	entryGet := EntryGetTool()
	mcp.AddTool(mcpServer, entryGet, audited(emitter, entryGet.Name,
		func(in EntryGetInput) uint64 { return in.EntryID }, EntryGetHandler(service)))

	entryTags := EntryTagsTool()
	mcp.AddTool(mcpServer, entryTags, audited(emitter, entryTags.Name,
		func(in EntryGetInput) uint64 { return in.EntryID }, EntryTagsHandler(service)))

	entryAuthority := EntryAuthorityTool()
	mcp.AddTool(mcpServer, entryAuthority, audited(emitter, entryAuthority.Name,
		func(in EntryGetInput) uint64 { return in.EntryID }, EntryAuthorityHandler(service)))

	entryCreatedAt := EntryCreatedAtTool()
	mcp.AddTool(mcpServer, entryCreatedAt, audited(emitter, entryCreatedAt.Name,
		func(in EntryGetInput) uint64 { return in.EntryID }, EntryCreatedAtHandler(service)))

	entryPayloadSize := EntryPayloadSizeTool()
	mcp.AddTool(mcpServer, entryPayloadSize, audited(emitter, entryPayloadSize.Name,
		func(in EntryGetInput) uint64 { return in.EntryID }, EntryPayloadSizeHandler(service)))

	entryNotes := EntryNotesTool()
	mcp.AddTool(mcpServer, entryNotes, audited(emitter, entryNotes.Name,
		func(in EntryGetInput) uint64 { return in.EntryID }, EntryNotesHandler(service)))

	entriesCount := EntriesCountTool()
	mcp.AddTool(mcpServer, entriesCount, audited(emitter, entriesCount.Name,
		func(EntriesCountInput) uint64 { return 0 }, EntriesCountHandler(service)))

	accessCheck := AccessCheckTool()
	mcp.AddTool(mcpServer, accessCheck, audited(emitter, accessCheck.Name,
		func(in AccessCheckInput) uint64 { return in.EntryID }, AccessCheckHandler(service)))

	mcpServer.AddResource(RegistryCatalogResource(), RegistryCatalogResourceHandler(service))

	return &Server{mcpServer: mcpServer}
}

// audited wraps a tool handler so every invocation leaves a durable audit
// event. Emit failures are logged and never alter the tool outcome.
func audited[I, O any](emitter *audit.Emitter, toolName string, entryID func(I) uint64, handler mcp.ToolHandlerFor[I, O]) mcp.ToolHandlerFor[I, O] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input I) (*mcp.CallToolResult, O, error) {
		result, output, err := handler(ctx, req, input)

		severity := audit.SeverityInfo
		if err != nil {
			severity = audit.SeverityError
		}
		attributes := map[string]any{"tool": toolName}
		if err != nil {
			attributes["error"] = err.Error()
		}
		event := audit.WithContextIdentity(ctx, storage.AuditEvent{
			EventName:  events.MCPRead,
			Severity:   string(severity),
			EntryID:    entryID(input),
			Attributes: attributes,
		})
		if emitErr := emitter.Emit(ctx, event); emitErr != nil {
			log.Printf("audit emit %s: %v", toolName, emitErr)
		}

		return result, output, err
	}
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// ServeHTTP serves the MCP server over streamable HTTP on addr and blocks
// until the context ends or the listener fails.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(addr) == "" {
		addr = defaultHTTPAddr
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	httpServer := &http.Server{Addr: addr, Handler: handler}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve MCP over HTTP: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shut down MCP HTTP transport: %w", err)
		}
		<-serveErr
		return nil
	}
}

// serveWithTransport starts the MCP server using the provided transport.
// Context cancellation counts as a clean stop for both transports.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// Run is the service entrypoint for MCP and blocks until context
// cancellation. It is transport-agnostic so startup can choose stdio for
// local tools and HTTP for remote integrations.
func Run(ctx context.Context, cfg Config, service RegistryReader, emitter *audit.Emitter) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	server := NewServer(service, emitter)

	switch cfg.Transport {
	case TransportStdio:
		return server.Serve(ctx)
	case TransportHTTP:
		return server.ServeHTTP(ctx, cfg.HTTPAddr)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}
