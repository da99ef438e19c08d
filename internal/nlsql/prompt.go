package nlsql

import (
	"fmt"
	"strings"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/discovery"
)

const systemPrompt = `You are an expert T-SQL generator for Microsoft Fabric SQL endpoints. Generate clean, efficient queries based on the provided schema. Return only the SQL query without any explanation or markdown formatting.`

// SchemaPrompt renders a snapshot into the schema section of the model
// prompt. Degraded snapshots are rendered honestly: unknown key metadata and
// minimal tables are flagged so the model does not hallucinate joins.
func SchemaPrompt(snap *discovery.Snapshot) string {
	var b strings.Builder
	b.WriteString("DATABASE SCHEMA:\n\n")

	for i := range snap.Tables {
		t := &snap.Tables[i]
		fmt.Fprintf(&b, "TABLE: %s\n", t.QualifiedName())
		if t.Minimal {
			b.WriteString("NOTE: only column names and types are known for this table\n")
		}
		b.WriteString("COLUMNS:\n")
		for _, c := range t.Columns {
			b.WriteString(columnLine(t, c))
			b.WriteByte('\n')
		}
		if t.PrimaryKeyStatus == discovery.KeyUnknown && !t.Minimal {
			b.WriteString("NOTE: primary key information could not be discovered\n")
		}
		b.WriteByte('\n')
	}

	if rels := relationshipLines(snap); len(rels) > 0 {
		b.WriteString("RELATIONSHIPS:\n")
		for _, line := range rels {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	} else if anyForeignKeysUnknown(snap) {
		b.WriteString("NOTE: table relationships could not be discovered; only join on columns the question clearly implies\n\n")
	}

	return b.String()
}

func columnLine(t *discovery.Table, c discovery.Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  - %s (%s", c.Name, c.DataType)
	switch {
	case c.MaxLength != nil:
		fmt.Fprintf(&b, ", max_length=%d", *c.MaxLength)
	case c.Precision != nil:
		fmt.Fprintf(&b, ", precision=%d", *c.Precision)
		if c.Scale != nil {
			fmt.Fprintf(&b, ", scale=%d", *c.Scale)
		}
	}
	b.WriteString(")")

	if t.PrimaryKey != nil && contains(t.PrimaryKey.Columns, c.Name) {
		b.WriteString(" [PRIMARY KEY]")
	} else if fkColumn(t, c.Name) {
		b.WriteString(" [FOREIGN KEY]")
	}
	if !c.Nullable && !t.Minimal {
		b.WriteString(" [NOT NULL]")
	}
	return b.String()
}

func relationshipLines(snap *discovery.Snapshot) []string {
	var lines []string
	for i := range snap.Tables {
		t := &snap.Tables[i]
		for _, fk := range t.ForeignKeys {
			for j := range fk.Columns {
				lines = append(lines, fmt.Sprintf("  - %s.%s -> %s.%s",
					t.QualifiedName(), fk.Columns[j], fk.RefTable, fk.RefColumns[j]))
			}
		}
	}
	return lines
}

func anyForeignKeysUnknown(snap *discovery.Snapshot) bool {
	for i := range snap.Tables {
		if snap.Tables[i].ForeignKeyStatus == discovery.KeyUnknown {
			return true
		}
	}
	return false
}

// RelevantTables guesses which tables a question concerns by matching table
// and column names, tolerating singular/plural variation. When nothing
// matches it falls back to the conventional fact tables so the model still
// has an anchor. Order follows snapshot order and is deterministic.
func RelevantTables(question string, snap *discovery.Snapshot) []string {
	q := strings.ToLower(question)
	var relevant []string

	for i := range snap.Tables {
		t := &snap.Tables[i]
		if tableMatches(q, strings.ToLower(t.Name)) {
			relevant = append(relevant, t.QualifiedName())
			continue
		}
		for _, c := range t.Columns {
			name := strings.ToLower(c.Name)
			if len(name) > 3 && strings.Contains(q, name) {
				relevant = append(relevant, t.QualifiedName())
				break
			}
		}
	}

	if len(relevant) == 0 {
		for i := range snap.Tables {
			t := &snap.Tables[i]
			name := strings.ToLower(t.Name)
			for _, fact := range []string{"sales", "order", "transaction", "fact"} {
				if strings.Contains(name, fact) {
					relevant = append(relevant, t.QualifiedName())
					break
				}
			}
		}
	}
	return relevant
}

func tableMatches(question, table string) bool {
	if strings.Contains(question, table) {
		return true
	}
	if strings.HasSuffix(table, "s") && strings.Contains(question, strings.TrimSuffix(table, "s")) {
		return true
	}
	return strings.Contains(question, table+"s")
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

func fkColumn(t *discovery.Table, column string) bool {
	for _, fk := range t.ForeignKeys {
		if contains(fk.Columns, column) {
			return true
		}
	}
	return false
}
