// Package mcp exposes the assistant as a Model Context Protocol server.
//
// Six tools cover the workflow: configure_database establishes the
// connection, discover_schema builds the snapshot, ask_database and
// execute_sql_query answer questions, get_table_details inspects one table
// and get_current_config reports session state. Transport is stdio by
// default, or streamable HTTP when a listen address is configured.
package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/archive"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/config"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/logger"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/nlsql"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/warehouse"
)

const (
	serverName      = "Fabric SQL Assistant"
	shutdownTimeout = 10 * time.Second
)

// Deps carries everything the tool handlers need.
type Deps struct {
	Config    *config.Config
	Provider  warehouse.Provider
	Generator *nlsql.Generator
	Archive   *archive.Store // nil disables snapshot archival
	Log       *logger.Logger
	Version   string
}

// Server wires the MCP tools over a session and a transport.
type Server struct {
	deps    Deps
	mcp     *mcpsdk.Server
	session *session
	log     *logger.Logger
}

// New builds the server and registers all tools.
func New(deps Deps) (*Server, error) {
	s := &Server{
		deps:    deps,
		session: &session{},
		log:     deps.Log,
	}

	s.mcp = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: deps.Version,
	}, nil)

	for _, register := range []func() error{
		s.registerConfigureTool,
		s.registerDiscoverTool,
		s.registerAskTool,
		s.registerExecuteTool,
		s.registerTableDetailsTool,
		s.registerCurrentConfigTool,
	} {
		if err := register(); err != nil {
			return nil, err
		}
	}

	// Connection identity from config means the client can skip
	// configure_database entirely.
	if deps.Config.Fabric.Server != "" && deps.Config.Fabric.Database != "" {
		s.log.With().
			Str("server", deps.Config.Fabric.Server).
			Str("database", deps.Config.Fabric.Database).
			Logger().
			Info("mcp: preconfigured connection identity available")
	}

	return s, nil
}

// Run serves until ctx is canceled. Stdio when no listen address is set,
// streamable HTTP otherwise.
func (s *Server) Run(ctx context.Context) error {
	defer s.session.close()

	if s.deps.Config.Server.ListenAddr == "" {
		s.log.Info("mcp: serving on stdio")
		return s.mcp.Run(ctx, &mcpsdk.StdioTransport{})
	}
	return s.runHTTP(ctx)
}

func (s *Server) runHTTP(ctx context.Context) error {
	handler := mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.mcp
	}, &mcpsdk.StreamableHTTPOptions{
		Stateless: true,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/*", handler)

	httpServer := &http.Server{
		Addr:              s.deps.Config.Server.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	s.log.With().Str("listen_addr", httpServer.Addr).Logger().
		Info("mcp: streamable http listening")

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
