package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
)

type ExecuteInput struct {
	SQL       string `json:"sql" jsonschema:"T-SQL SELECT statement to execute"`
	LimitRows int    `json:"limit_rows,omitempty" jsonschema:"optional row cap overriding the server default"`
}

type ExecuteOutput struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated"`
}

func (s *Server) registerExecuteTool() error {
	in, err := jsonschema.For[ExecuteInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create execute input schema: %w", err)
	}
	out, err := jsonschema.For[ExecuteOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create execute output schema: %w", err)
	}

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name: "execute_sql_query",
		Description: `Execute a read-only T-SQL statement against the connected database and
return the rows. Results are capped; bare SELECTs get a TOP clause added.`,
		InputSchema:  in,
		OutputSchema: out,
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, req ExecuteInput) (*mcpsdk.CallToolResult, ExecuteOutput, error) {
		if strings.TrimSpace(req.SQL) == "" {
			return nil, ExecuteOutput{}, errs.New(errs.ErrKindInvalidInput, "sql must not be empty")
		}
		if !readOnly(req.SQL) {
			return nil, ExecuteOutput{}, errs.New(errs.ErrKindInvalidInput,
				"only SELECT statements are allowed; use your own tooling for mutations")
		}

		db, err := s.session.handle()
		if err != nil {
			return nil, ExecuteOutput{}, err
		}

		columns, rows, truncated, err := s.runQuery(ctx, db, req.SQL, req.LimitRows)
		if err != nil {
			return nil, ExecuteOutput{}, err
		}

		return textResult(renderRows(columns, rows, truncated)), ExecuteOutput{
			Columns:   columns,
			Rows:      rows,
			Count:     len(rows),
			Truncated: truncated,
		}, nil
	})
	return nil
}
