package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type CurrentConfigInput struct{}

type CurrentConfigOutput struct {
	Server     string `json:"server,omitempty"`
	Database   string `json:"database,omitempty"`
	Connected  bool   `json:"connected"`
	Capability string `json:"capability,omitempty"`
	TableCount int    `json:"table_count"`
	Model      string `json:"model"`
	Archival   bool   `json:"archival"`
}

func (s *Server) registerCurrentConfigTool() error {
	in, err := jsonschema.For[CurrentConfigInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create config input schema: %w", err)
	}
	out, err := jsonschema.For[CurrentConfigOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create config output schema: %w", err)
	}

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:         "get_current_config",
		Description:  `Report the active connection, the cached schema state and the assistant settings.`,
		InputSchema:  in,
		OutputSchema: out,
	}, func(_ context.Context, _ *mcpsdk.CallToolRequest, _ CurrentConfigInput) (*mcpsdk.CallToolResult, CurrentConfigOutput, error) {
		server, database, connected := s.session.identity()

		cfg := CurrentConfigOutput{
			Server:    server,
			Database:  database,
			Connected: connected,
			Model:     s.deps.Config.LLM.Model,
			Archival:  s.deps.Archive != nil,
		}
		if res := s.session.discovery(); res != nil {
			cfg.Capability = string(res.Snapshot.Capability)
			cfg.TableCount = len(res.Snapshot.Tables)
		}

		var b strings.Builder
		if !connected {
			b.WriteString("Not connected. Call configure_database with a server and database.\n")
		} else {
			fmt.Fprintf(&b, "Connected to %s on %s.\n", database, server)
			if cfg.Capability == "" {
				b.WriteString("No schema cached yet; run discover_schema.\n")
			} else {
				fmt.Fprintf(&b, "Schema cached: %d tables at %s capability.\n", cfg.TableCount, cfg.Capability)
			}
		}
		fmt.Fprintf(&b, "Model: %s. Snapshot archival: %v.\n", cfg.Model, cfg.Archival)

		return textResult(b.String()), cfg, nil
	})
	return nil
}
