// The mcp-server command runs the Fabric SQL Assistant as an MCP server.
//
// Without flags it speaks stdio, which is what desktop MCP clients expect.
// --listen-addr switches to the streamable HTTP transport.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/archive"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/auth"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/config"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/logger"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/mcp"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/nlsql"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/warehouse/mssql"
)

// Set by LDFLAGS.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPathFlag := flag.String("config", "", "path to YAML config file")
	listenAddrFlag := flag.String("listen-addr", "", "serve streamable HTTP on this address instead of stdio")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	// A local .env is a convenience for development; absence is normal.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPathFlag)
	if err != nil {
		return err
	}
	if *listenAddrFlag != "" {
		cfg.Server.ListenAddr = *listenAddrFlag
	}
	if *verboseFlag {
		cfg.Logging.Level = "debug"
	}

	log := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.New(auth.Config{
		TenantID:     cfg.Azure.TenantID,
		ClientID:     cfg.Azure.ClientID,
		ClientSecret: cfg.Azure.ClientSecret,
	}, log)
	if err != nil {
		return err
	}

	var store *archive.Store
	if cfg.Archive != nil {
		store, err = archive.New(ctx, cfg.Archive, log)
		if err != nil {
			// Archival is an extra, not a dependency.
			log.With().Err(err).Logger().Warn("snapshot archive unavailable, continuing without it")
			store = nil
		}
	}

	server, err := mcp.New(mcp.Deps{
		Config:    cfg,
		Provider:  mssql.NewProvider(tokens, cfg.Fabric.ConnectTimeout, log),
		Generator: nlsql.NewGenerator(nlsql.NewAnthropicClient(cfg.LLM.Model, cfg.LLM.MaxTokens, log), log),
		Archive:   store,
		Log:       log,
		Version:   version,
	})
	if err != nil {
		return err
	}

	log.With().Str("version", version).Logger().Info("fabric sql assistant starting")
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
