package warehouse

import "github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"

// ScanRows reads the whole result set and returns the column names plus one
// map per row, keyed by column name with Go-native values.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows; callers do not need to call Close().
func ScanRows(rows Rows) ([]string, []map[string]any, error) {
	columns, result, _, err := ScanRowsLimit(rows, 0)
	return columns, result, err
}

// ScanRowsLimit is ScanRows with a row cap. limit <= 0 means unlimited.
// truncated reports whether the cap cut the result set short.
func ScanRowsLimit(rows Rows, limit int) (columns []string, result []map[string]any, truncated bool, err error) {
	defer rows.Close()

	columns, err = rows.Columns()
	if err != nil {
		return nil, nil, false, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	result = make([]map[string]any, 0)

	for rows.Next() {
		if limit > 0 && len(result) >= limit {
			truncated = true
			break
		}

		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, nil, false, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalize(dest[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, false, errs.Wrap(errs.ErrKindQueryFailed, "error during row iteration", err)
	}

	return columns, result, truncated, nil
}

// normalize converts driver byte slices to strings so results marshal to JSON
// as text instead of base64.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
