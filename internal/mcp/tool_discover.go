package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/discovery"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/warehouse"
)

type DiscoverInput struct {
	Table string `json:"table,omitempty" jsonschema:"optional table name (bare or schema-qualified) to discover a single table"`
}

type DiscoverOutput struct {
	Capability string              `json:"capability"`
	TableCount int                 `json:"table_count"`
	Snapshot   *discovery.Snapshot `json:"snapshot"`
	Notes      []string            `json:"notes"`
}

func (s *Server) registerDiscoverTool() error {
	in, err := jsonschema.For[DiscoverInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create discover input schema: %w", err)
	}
	out, err := jsonschema.For[DiscoverOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create discover output schema: %w", err)
	}

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name: "discover_schema",
		Description: `Discover tables, columns, primary keys and foreign keys from the connected
database. Degrades gracefully on restricted endpoints: missing constraint
metadata is reported as unknown rather than absent, and the reply states the
resulting capability level (full, partial or minimal).`,
		InputSchema:  in,
		OutputSchema: out,
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, req DiscoverInput) (*mcpsdk.CallToolResult, DiscoverOutput, error) {
		db, err := s.session.handle()
		if err != nil {
			return nil, DiscoverOutput{}, err
		}

		scope := discovery.DatabaseScope()
		if req.Table != "" {
			scope = discovery.TableScope(req.Table)
		}

		res, err := s.discover(ctx, db, scope)
		if err != nil {
			return nil, DiscoverOutput{}, err
		}

		return textResult(renderSchema(res)), DiscoverOutput{
			Capability: string(res.Snapshot.Capability),
			TableCount: len(res.Snapshot.Tables),
			Snapshot:   res.Snapshot,
			Notes:      res.Report.Lines,
		}, nil
	})
	return nil
}

// discover runs one discovery pass. Database-wide results become the session
// snapshot and are archived when an archive store is configured.
func (s *Server) discover(ctx context.Context, db warehouse.DB, scope discovery.Scope) (*discovery.Result, error) {
	engine := discovery.NewEngine(db, s.deps.Config.Fabric.QueryTimeout, s.log)
	res, err := engine.Discover(ctx, scope)
	if err != nil {
		return nil, err
	}

	if !scope.IsTable() {
		s.session.setResult(res)
		if s.deps.Archive != nil {
			_, database, _ := s.session.identity()
			s.deps.Archive.SaveSnapshot(ctx, database, res)
		}
	}
	return res, nil
}
