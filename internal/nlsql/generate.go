package nlsql

import (
	"context"
	"fmt"
	"strings"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/discovery"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/logger"
)

// Generator produces and summarizes SQL grounded on a schema snapshot.
type Generator struct {
	llm LLM
	log *logger.Logger
}

func NewGenerator(llm LLM, log *logger.Logger) *Generator {
	return &Generator{llm: llm, log: log}
}

// GenerateSQL asks the model for a single T-SQL statement answering question.
// The prompt embeds the snapshot, so a degraded snapshot yields conservative
// SQL rather than invented joins.
func (g *Generator) GenerateSQL(ctx context.Context, question string, snap *discovery.Snapshot) (string, error) {
	if len(snap.Tables) == 0 {
		return "", errs.New(errs.ErrKindInvalidInput, "schema snapshot has no tables; run discovery first")
	}

	var b strings.Builder
	b.WriteString(SchemaPrompt(snap))
	b.WriteString(`IMPORTANT RULES:
1. Use the exact table and column names from the schema above
2. Always use schema-qualified table names (schema.table)
3. Use JOINs only on the relationships shown; if none are shown, join only on columns the question clearly implies
4. Include proper GROUP BY clauses for aggregations
5. Add meaningful column aliases
6. Consider data types when writing conditions
7. Use TOP for potentially large result sets
`)
	if relevant := RelevantTables(question, snap); len(relevant) > 0 {
		fmt.Fprintf(&b, "\nRELEVANT TABLES FOR THIS QUERY: %s\n", strings.Join(relevant, ", "))
	}
	fmt.Fprintf(&b, "\nQuestion: %q\n\nGenerate only the SQL query, nothing else.\n", question)

	raw, err := g.llm.Complete(ctx, systemPrompt, b.String())
	if err != nil {
		return "", err
	}

	sql := stripFences(raw)
	if sql == "" {
		return "", errs.New(errs.ErrKindQueryFailed, "model returned an empty query")
	}
	g.log.With().Int("sql_len", len(sql)).Logger().Debug("nlsql: query generated")
	return sql, nil
}

const summarizeSystem = `You summarize SQL query results for business users. Answer the original question directly in one or two sentences using only the data provided. If the data does not answer the question, say so.`

// Summarize turns a result set back into a direct answer to the question.
func (g *Generator) Summarize(ctx context.Context, question, sql, results string) (string, error) {
	user := fmt.Sprintf("Question: %s\n\nSQL executed:\n%s\n\nResults:\n%s", question, sql, results)
	return g.llm.Complete(ctx, summarizeSystem, user)
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, which models emit despite instructions not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], " \t") {
		// First fence line is a bare language tag.
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
