package mcp

import (
	"fmt"
	"strings"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/discovery"
)

// renderSchema renders a discovery result as the markdown reply of
// discover_schema.
func renderSchema(res *discovery.Result) string {
	var b strings.Builder
	snap := res.Snapshot

	fmt.Fprintf(&b, "# Schema (%s)\n\n", snap.Capability)
	if len(snap.Tables) == 0 {
		b.WriteString("No tables visible to this principal.\n\n")
	}
	for i := range snap.Tables {
		renderTableSection(&b, &snap.Tables[i])
	}

	b.WriteString("## Discovery notes\n\n")
	for _, line := range res.Report.Lines {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	fmt.Fprintf(&b, "\n%s\n", res.Report.Summary())
	return b.String()
}

func renderTableSection(b *strings.Builder, t *discovery.Table) {
	fmt.Fprintf(b, "## %s\n\n", t.QualifiedName())
	if t.Minimal {
		b.WriteString("_Only column names and types could be discovered._\n\n")
	}

	b.WriteString("| Column | Type | Nullable | Key |\n")
	b.WriteString("|--------|------|----------|-----|\n")
	for _, c := range t.Columns {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n",
			c.Name, columnType(c), nullableCell(t, c), keyCell(t, c.Name))
	}
	b.WriteByte('\n')

	switch {
	case t.PrimaryKeyStatus == discovery.KeyUnknown && !t.Minimal:
		b.WriteString("_Primary key: unknown (constraint metadata unavailable)._\n\n")
	case t.PrimaryKeyStatus == discovery.KeyDiscovered && t.PrimaryKey == nil:
		b.WriteString("_Primary key: none._\n\n")
	}

	if t.ForeignKeyStatus == discovery.KeyDiscovered {
		for _, fk := range t.ForeignKeys {
			fmt.Fprintf(b, "References %s (%s -> %s)\n\n",
				fk.RefTable, strings.Join(fk.Columns, ", "), strings.Join(fk.RefColumns, ", "))
		}
	}
}

func columnType(c discovery.Column) string {
	switch {
	case c.MaxLength != nil:
		return fmt.Sprintf("%s(%d)", c.DataType, *c.MaxLength)
	case c.Precision != nil && c.Scale != nil:
		return fmt.Sprintf("%s(%d,%d)", c.DataType, *c.Precision, *c.Scale)
	default:
		return c.DataType
	}
}

func nullableCell(t *discovery.Table, c discovery.Column) string {
	if t.Minimal {
		return "?"
	}
	if c.Nullable {
		return "yes"
	}
	return "no"
}

func keyCell(t *discovery.Table, column string) string {
	if t.PrimaryKey != nil {
		for _, pk := range t.PrimaryKey.Columns {
			if strings.EqualFold(pk, column) {
				return "PK"
			}
		}
	}
	for _, fk := range t.ForeignKeys {
		for _, fkCol := range fk.Columns {
			if strings.EqualFold(fkCol, column) {
				return "FK"
			}
		}
	}
	return ""
}

// renderRows renders a result set as a markdown table. Cell text is
// pipe-escaped so values cannot break the table structure.
func renderRows(columns []string, rows []map[string]any, truncated bool) string {
	if len(rows) == 0 {
		return "_No rows returned._\n"
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(columns)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = cellText(row[col])
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	if truncated {
		fmt.Fprintf(&b, "\n_Output truncated to %d rows._\n", len(rows))
	}
	return b.String()
}

func cellText(v any) string {
	if v == nil {
		return "NULL"
	}
	s := fmt.Sprintf("%v", v)
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// limitRows rewrites a bare SELECT to carry a TOP clause. Statements that
// already limit themselves, and non-SELECT statements, pass through
// unchanged; the row cap during scanning remains the real bound.
func limitRows(sql string, max int) string {
	trimmed := strings.TrimSpace(sql)
	fields := strings.Fields(trimmed)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "select") {
		return sql
	}

	next := 1
	if strings.EqualFold(fields[1], "distinct") {
		if len(fields) < 3 {
			return sql
		}
		next = 2
	}
	if strings.EqualFold(fields[next], "top") {
		return sql
	}

	fields = append(fields[:next], append([]string{fmt.Sprintf("TOP %d", max)}, fields[next:]...)...)
	return strings.Join(fields, " ")
}

// readOnly reports whether sql is a plain read. The endpoint enforces real
// permissions; this only stops obvious mutations from a confused model.
func readOnly(sql string) bool {
	fields := strings.Fields(strings.TrimSpace(sql))
	if len(fields) == 0 {
		return false
	}
	first := strings.ToLower(fields[0])
	return first == "select" || first == "with"
}
