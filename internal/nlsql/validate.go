package nlsql

import (
	"fmt"
	"strings"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/discovery"
)

// Validate checks generated SQL against the snapshot and returns human
// readable warnings. It is a lexical sanity check, not a parser: it catches
// hallucinated tables and the common missing-GROUP-BY mistake, and the
// endpoint remains the final authority.
func Validate(sql string, snap *discovery.Snapshot) []string {
	var warnings []string

	known := knownTableNames(snap)
	lower := strings.ToLower(sql)
	words := strings.Fields(lower)

	seen := map[string]bool{}
	for i := 1; i < len(words); i++ {
		if words[i-1] != "from" && words[i-1] != "join" {
			continue
		}
		ref := strings.Trim(words[i], "(),;[]")
		if ref == "" || ref == "select" || seen[ref] || known[ref] {
			continue
		}
		seen[ref] = true
		warnings = append(warnings, fmt.Sprintf("table %q not found in the discovered schema", ref))
	}

	if !strings.Contains(lower, "group by") && hasAggregate(lower) && hasBareSelectColumn(lower) {
		warnings = append(warnings, "query mixes aggregates with plain columns but has no GROUP BY clause")
	}

	return warnings
}

func knownTableNames(snap *discovery.Snapshot) map[string]bool {
	known := make(map[string]bool, 2*len(snap.Tables))
	for i := range snap.Tables {
		t := &snap.Tables[i]
		known[strings.ToLower(t.QualifiedName())] = true
		known[strings.ToLower(t.Name)] = true
	}
	return known
}

func hasAggregate(lower string) bool {
	for _, agg := range []string{"sum(", "count(", "avg(", "max(", "min("} {
		if strings.Contains(lower, agg) {
			return true
		}
	}
	return false
}

// hasBareSelectColumn reports whether the select list mixes a plain column
// with the aggregates. A pure aggregate query needs no GROUP BY.
func hasBareSelectColumn(lower string) bool {
	start := strings.Index(lower, "select")
	end := strings.Index(lower, " from ")
	if start < 0 || end < 0 || end <= start {
		return false
	}
	list := lower[start+len("select") : end]

	for _, part := range splitTopLevel(list) {
		p := strings.TrimSpace(part)
		if p == "" || p == "*" {
			continue
		}
		if !hasAggregate(p) {
			return true
		}
	}
	return false
}

// splitTopLevel splits a select list on commas that are not inside parens.
func splitTopLevel(s string) []string {
	var parts []string
	depth, last := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}
