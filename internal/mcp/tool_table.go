package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/discovery"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
)

const sampleRowCount = 5

type TableDetailsInput struct {
	Table string `json:"table" jsonschema:"table name, bare or schema-qualified"`
}

type TableDetailsOutput struct {
	Table      *discovery.Table `json:"table"`
	Capability string           `json:"capability"`
	RowCount   int64            `json:"row_count"` // -1 when the count query failed
	SampleRows []map[string]any `json:"sample_rows,omitempty"`
}

func (s *Server) registerTableDetailsTool() error {
	in, err := jsonschema.For[TableDetailsInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create table details input schema: %w", err)
	}
	out, err := jsonschema.For[TableDetailsOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create table details output schema: %w", err)
	}

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name: "get_table_details",
		Description: `Inspect one table: columns, keys as far as they could be discovered, and a
few sample rows.`,
		InputSchema:  in,
		OutputSchema: out,
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, req TableDetailsInput) (*mcpsdk.CallToolResult, TableDetailsOutput, error) {
		if strings.TrimSpace(req.Table) == "" {
			return nil, TableDetailsOutput{}, errs.New(errs.ErrKindInvalidInput, "table must not be empty")
		}

		db, err := s.session.handle()
		if err != nil {
			return nil, TableDetailsOutput{}, err
		}

		res, err := s.discover(ctx, db, discovery.TableScope(req.Table))
		if err != nil {
			return nil, TableDetailsOutput{}, err
		}
		table := res.Snapshot.Table(req.Table)
		if table == nil {
			return nil, TableDetailsOutput{}, errs.New(errs.ErrKindNotFound,
				fmt.Sprintf("table %q not found or not visible to this principal", req.Table))
		}

		var b strings.Builder
		renderTableSection(&b, table)

		var rowCount int64 = -1
		countSQL := fmt.Sprintf("SELECT COUNT_BIG(*) FROM [%s].[%s]", table.Schema, table.Name)
		if err := db.QueryRow(ctx, countSQL).Scan(&rowCount); err != nil {
			s.log.With().Str("table", table.QualifiedName()).Err(err).Logger().
				Warn("mcp: row count query failed")
		} else {
			fmt.Fprintf(&b, "Row count: %d\n\n", rowCount)
		}

		var sample []map[string]any
		sampleSQL := fmt.Sprintf("SELECT TOP %d * FROM [%s].[%s]", sampleRowCount, table.Schema, table.Name)
		columns, rows, _, err := s.runQuery(ctx, db, sampleSQL, sampleRowCount)
		if err != nil {
			// Metadata is still useful when the data itself is restricted.
			s.log.With().Str("table", table.QualifiedName()).Err(err).Logger().
				Warn("mcp: sample row query failed")
			b.WriteString("_Sample rows unavailable for this table._\n")
		} else {
			sample = rows
			b.WriteString("### Sample rows\n\n")
			b.WriteString(renderRows(columns, rows, false))
		}

		return textResult(b.String()), TableDetailsOutput{
			Table:      table,
			Capability: string(res.Snapshot.Capability),
			RowCount:   rowCount,
			SampleRows: sample,
		}, nil
	})
	return nil
}
