package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
)

type ConfigureInput struct {
	Server   string `json:"server" jsonschema:"Fabric SQL endpoint host, e.g. yourserver.datawarehouse.fabric.microsoft.com"`
	Database string `json:"database" jsonschema:"database or warehouse name"`
}

type ConfigureOutput struct {
	Server        string `json:"server"`
	Database      string `json:"database"`
	ServerVersion string `json:"server_version,omitempty"`
	Message       string `json:"message"`
}

func (s *Server) registerConfigureTool() error {
	in, err := jsonschema.For[ConfigureInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create configure input schema: %w", err)
	}
	out, err := jsonschema.For[ConfigureOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create configure output schema: %w", err)
	}

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name: "configure_database",
		Description: `Connect to a Microsoft Fabric SQL endpoint. Opens and validates the
connection, replaces any previous connection, and clears the cached schema.
Run discover_schema afterwards.`,
		InputSchema:  in,
		OutputSchema: out,
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, req ConfigureInput) (*mcpsdk.CallToolResult, ConfigureOutput, error) {
		if req.Server == "" || req.Database == "" {
			return nil, ConfigureOutput{}, errs.New(errs.ErrKindInvalidInput, "server and database are required")
		}

		db, err := s.deps.Provider.Acquire(ctx, req.Server, req.Database)
		if err != nil {
			return nil, ConfigureOutput{}, err
		}
		s.session.configure(req.Server, req.Database, db)

		var version string
		if err := db.QueryRow(ctx, "SELECT @@VERSION").Scan(&version); err != nil {
			s.log.With().Err(err).Logger().Debug("mcp: version query failed")
		}

		msg := fmt.Sprintf("Connected to %s on %s. Schema cache cleared; run discover_schema next.",
			req.Database, req.Server)
		if version != "" {
			msg += "\nEndpoint: " + firstLine(version)
		}
		return textResult(msg), ConfigureOutput{
			Server:        req.Server,
			Database:      req.Database,
			ServerVersion: firstLine(version),
			Message:       msg,
		}, nil
	})
	return nil
}

// textResult wraps markdown text as the human-facing half of a tool reply.
func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
