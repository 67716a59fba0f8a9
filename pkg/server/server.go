// Package server provides the MCP server and its HTTP transports for the
// trip emissions tools.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/tripmcp/pkg/monitoring"
	"github.com/NERVsystems/tripmcp/pkg/tools"
	"github.com/NERVsystems/tripmcp/pkg/version"
)

// ServerName is the name of the MCP server
const ServerName = "tripmcp"

// ErrAlreadyRunning is returned when the stdio loop is started a second
// time. A Server serves stdio at most once.
var ErrAlreadyRunning = errors.New("server: already running")

// Server is the MCP server with the trip tools registered. It serves stdio
// directly and hands its MCPServer to the HTTP transport.
type Server struct {
	srv      *mcpserver.MCPServer
	registry *tools.Registry
	logger   *slog.Logger

	stdin  io.Reader
	stdout io.Writer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewServer creates an MCP server exposing every tool in registry.
func NewServer(registry *tools.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing trip MCP server",
		"name", ServerName,
		"version", version.BuildVersion,
		"tools", len(registry.GetToolNames()))

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithHooks(sessionHooks(logger)),
	)
	registry.RegisterTools(srv)

	return &Server{
		srv:      srv,
		registry: registry,
		logger:   logger,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		done:     make(chan struct{}),
	}
}

// Run serves MCP over stdin/stdout until stdin is closed or Shutdown is
// called.
func (s *Server) Run() error {
	return s.RunWithContext(context.Background())
}

// RunWithContext is Run that also stops when ctx is cancelled. A clean
// stop (EOF or cancellation) returns nil.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.mu.Lock()
	if s.running || s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.done)
	}()

	stdio := mcpserver.NewStdioServer(s.srv)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, s.stdin, s.stdout)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	s.logger.Error("stdio server error", "error", err)
	return err
}

// Shutdown stops a running stdio loop. It does not block and is safe to
// call more than once.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// WaitForShutdown blocks until a started stdio loop has returned.
func (s *Server) WaitForShutdown() {
	<-s.done
}

// GetMCPServer returns the underlying MCP server instance for HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}

// sessionHooks keeps the active connections gauge in step with the MCP
// sessions the stdio and SSE transports register.
func sessionHooks(logger *slog.Logger) *mcpserver.Hooks {
	hooks := &mcpserver.Hooks{}
	hooks.AddOnRegisterSession(func(_ context.Context, session mcpserver.ClientSession) {
		transport, kind := sessionLabels(session)
		monitoring.ConnectionOpened(transport, kind)
		logger.Debug("session opened", "session", session.SessionID(), "transport", transport)
	})
	hooks.AddOnUnregisterSession(func(_ context.Context, session mcpserver.ClientSession) {
		transport, kind := sessionLabels(session)
		monitoring.ConnectionClosed(transport, kind)
		logger.Debug("session closed", "session", session.SessionID(), "transport", transport)
	})
	return hooks
}

func sessionLabels(session mcpserver.ClientSession) (transport, kind string) {
	if session.SessionID() == "stdio" {
		return "stdio", "session"
	}
	return "http", "sse"
}

// ToolNames lists the registered tools.
func (s *Server) ToolNames() []string {
	return s.registry.GetToolNames()
}
