package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/discovery"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/nlsql"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/warehouse"
)

type AskInput struct {
	Question string `json:"question" jsonschema:"natural-language question about the data"`
}

type AskOutput struct {
	SQL      string           `json:"sql"`
	Answer   string           `json:"answer,omitempty"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	Warnings []string         `json:"warnings,omitempty"`
}

func (s *Server) registerAskTool() error {
	in, err := jsonschema.For[AskInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create ask input schema: %w", err)
	}
	out, err := jsonschema.For[AskOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create ask output schema: %w", err)
	}

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name: "ask_database",
		Description: `Answer a natural-language question by generating T-SQL grounded on the
discovered schema, executing it, and summarizing the result. Runs schema
discovery automatically when no snapshot is cached yet.`,
		InputSchema:  in,
		OutputSchema: out,
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, req AskInput) (*mcpsdk.CallToolResult, AskOutput, error) {
		if strings.TrimSpace(req.Question) == "" {
			return nil, AskOutput{}, errs.New(errs.ErrKindInvalidInput, "question must not be empty")
		}

		db, err := s.session.handle()
		if err != nil {
			return nil, AskOutput{}, err
		}

		snap, err := s.currentSnapshot(ctx, db)
		if err != nil {
			return nil, AskOutput{}, err
		}

		sql, err := s.deps.Generator.GenerateSQL(ctx, req.Question, snap)
		if err != nil {
			return nil, AskOutput{}, err
		}
		if !readOnly(sql) {
			return nil, AskOutput{}, errs.New(errs.ErrKindInvalidInput,
				"generated statement is not a read-only query; refusing to execute it")
		}
		warnings := nlsql.Validate(sql, snap)

		columns, rows, truncated, err := s.runQuery(ctx, db, sql, 0)
		if err != nil {
			return nil, AskOutput{}, err
		}

		resultsMD := renderRows(columns, rows, truncated)
		answer, err := s.deps.Generator.Summarize(ctx, req.Question, sql, resultsMD)
		if err != nil {
			// The data came back; a failed summary should not hide it.
			s.log.With().Err(err).Logger().Warn("mcp: answer summarization failed")
			answer = ""
		}

		var b strings.Builder
		if answer != "" {
			b.WriteString(answer + "\n\n")
		}
		fmt.Fprintf(&b, "```sql\n%s\n```\n\n", sql)
		for _, w := range warnings {
			fmt.Fprintf(&b, "> Warning: %s\n", w)
		}
		if len(warnings) > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(resultsMD)

		return textResult(b.String()), AskOutput{
			SQL:      sql,
			Answer:   answer,
			Columns:  columns,
			Rows:     rows,
			Warnings: warnings,
		}, nil
	})
	return nil
}

// currentSnapshot returns the cached database-wide snapshot, running
// discovery first when none exists yet.
func (s *Server) currentSnapshot(ctx context.Context, db warehouse.DB) (*discovery.Snapshot, error) {
	if res := s.session.discovery(); res != nil {
		return res.Snapshot, nil
	}
	res, err := s.discover(ctx, db, discovery.DatabaseScope())
	if err != nil {
		return nil, err
	}
	return res.Snapshot, nil
}

// runQuery executes sql with the configured timeout and row cap. maxRows <= 0
// selects the configured default.
func (s *Server) runQuery(ctx context.Context, db warehouse.DB, sql string, maxRows int) ([]string, []map[string]any, bool, error) {
	if maxRows <= 0 {
		maxRows = s.deps.Config.Server.MaxRows
	}
	limited := limitRows(sql, maxRows)

	queryCtx, cancel := context.WithTimeout(ctx, s.deps.Config.Fabric.QueryTimeout)
	defer cancel()

	rows, err := db.Query(queryCtx, limited)
	if err != nil {
		return nil, nil, false, err
	}
	return warehouse.ScanRowsLimit(rows, maxRows)
}
