package discovery

import (
	"context"
	"database/sql"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/warehouse"
)

// The tier queries speak T-SQL against INFORMATION_SCHEMA. System schemas are
// excluded by name; Fabric exposes user objects under ordinary schemas.
//
// Placeholders use the @p1 convention of go-mssqldb.

const queryColumns = `
	SELECT t.TABLE_SCHEMA,
	       t.TABLE_NAME,
	       c.COLUMN_NAME,
	       c.DATA_TYPE,
	       c.IS_NULLABLE,
	       c.ORDINAL_POSITION,
	       c.CHARACTER_MAXIMUM_LENGTH,
	       c.NUMERIC_PRECISION,
	       c.NUMERIC_SCALE,
	       c.COLUMN_DEFAULT
	FROM INFORMATION_SCHEMA.TABLES t
	JOIN INFORMATION_SCHEMA.COLUMNS c
	  ON c.TABLE_SCHEMA = t.TABLE_SCHEMA
	 AND c.TABLE_NAME   = t.TABLE_NAME
	WHERE t.TABLE_TYPE = 'BASE TABLE'
	  AND t.TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')`

const queryColumnsOrder = `
	ORDER BY t.TABLE_SCHEMA, t.TABLE_NAME, c.ORDINAL_POSITION`

const queryPrimaryKeys = `
	SELECT tc.TABLE_SCHEMA,
	       tc.TABLE_NAME,
	       tc.CONSTRAINT_NAME,
	       ku.COLUMN_NAME,
	       ku.ORDINAL_POSITION
	FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
	JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
	  ON ku.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
	 AND ku.TABLE_SCHEMA    = tc.TABLE_SCHEMA
	 AND ku.TABLE_NAME      = tc.TABLE_NAME
	WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'`

const queryPrimaryKeysOrder = `
	ORDER BY tc.TABLE_SCHEMA, tc.TABLE_NAME, tc.CONSTRAINT_NAME, ku.ORDINAL_POSITION`

const queryForeignKeys = `
	SELECT rc.CONSTRAINT_NAME,
	       kf.TABLE_SCHEMA,
	       kf.TABLE_NAME,
	       kf.COLUMN_NAME,
	       kr.TABLE_SCHEMA,
	       kr.TABLE_NAME,
	       kr.COLUMN_NAME,
	       kf.ORDINAL_POSITION
	FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
	JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kf
	  ON kf.CONSTRAINT_NAME   = rc.CONSTRAINT_NAME
	 AND kf.CONSTRAINT_SCHEMA = rc.CONSTRAINT_SCHEMA
	JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kr
	  ON kr.CONSTRAINT_NAME   = rc.UNIQUE_CONSTRAINT_NAME
	 AND kr.CONSTRAINT_SCHEMA = rc.UNIQUE_CONSTRAINT_SCHEMA
	 AND kr.ORDINAL_POSITION  = kf.ORDINAL_POSITION
	WHERE 1 = 1`

const queryForeignKeysOrder = `
	ORDER BY kf.TABLE_SCHEMA, kf.TABLE_NAME, rc.CONSTRAINT_NAME, kf.ORDINAL_POSITION`

// queryColumnsMinimal runs against the lower-privilege COLUMNS view alone and
// asks only for what the fallback contract needs: names, types, positions.
const queryColumnsMinimal = `
	SELECT TABLE_SCHEMA,
	       TABLE_NAME,
	       COLUMN_NAME,
	       DATA_TYPE,
	       ORDINAL_POSITION
	FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')`

const queryColumnsMinimalOrder = `
	ORDER BY TABLE_SCHEMA, TABLE_NAME, ORDINAL_POSITION`

// columnRow is one tier-1 (or tier-4) result row.
type columnRow struct {
	Schema    string
	Table     string
	Column    string
	DataType  string
	Nullable  bool
	Ordinal   int
	MaxLength *int64
	Precision *int64
	Scale     *int64
	Default   *string
}

// keyRow is one tier-2 result row.
type keyRow struct {
	Schema     string
	Table      string
	Constraint string
	Column     string
	KeySeq     int
}

// refRow is one tier-3 result row.
type refRow struct {
	Constraint string
	Schema     string
	Table      string
	Column     string
	RefSchema  string
	RefTable   string
	RefColumn  string
	KeySeq     int
}

// scopeFilter appends the single-table predicate and returns the SQL plus
// positional args. qualifier names the alias of the tables side ("t.", "tc.",
// "kf." or "" for the bare COLUMNS view).
func scopeFilter(base, order, qualifier string, scope Scope) (string, []any) {
	if !scope.IsTable() {
		return base + order, nil
	}

	sqlText := base + "\n\t  AND " + qualifier + "TABLE_NAME = @p1"
	args := []any{scope.Table}
	if scope.Schema != "" {
		sqlText += "\n\t  AND " + qualifier + "TABLE_SCHEMA = @p2"
		args = append(args, scope.Schema)
	}
	return sqlText + order, args
}

func fetchColumns(ctx context.Context, db warehouse.DB, scope Scope) ([]columnRow, error) {
	query, args := scopeFilter(queryColumns, queryColumnsOrder, "t.", scope)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []columnRow
	for rows.Next() {
		var (
			r        columnRow
			nullable string
			ordinal  int64
			maxLen   sql.NullInt64
			prec     sql.NullInt64
			scale    sql.NullInt64
			def      sql.NullString
		)
		if err := rows.Scan(&r.Schema, &r.Table, &r.Column, &r.DataType,
			&nullable, &ordinal, &maxLen, &prec, &scale, &def); err != nil {
			return nil, err
		}
		r.Nullable = nullable == "YES"
		r.Ordinal = int(ordinal)
		r.MaxLength = nullInt(maxLen)
		r.Precision = nullInt(prec)
		r.Scale = nullInt(scale)
		r.Default = nullStr(def)
		out = append(out, r)
	}
	return out, rows.Err()
}

func fetchPrimaryKeys(ctx context.Context, db warehouse.DB, scope Scope) ([]keyRow, error) {
	query, args := scopeFilter(queryPrimaryKeys, queryPrimaryKeysOrder, "tc.", scope)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []keyRow
	for rows.Next() {
		var (
			r      keyRow
			keySeq int64
		)
		if err := rows.Scan(&r.Schema, &r.Table, &r.Constraint, &r.Column, &keySeq); err != nil {
			return nil, err
		}
		r.KeySeq = int(keySeq)
		out = append(out, r)
	}
	return out, rows.Err()
}

func fetchForeignKeys(ctx context.Context, db warehouse.DB, scope Scope) ([]refRow, error) {
	query, args := scopeFilter(queryForeignKeys, queryForeignKeysOrder, "kf.", scope)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []refRow
	for rows.Next() {
		var (
			r      refRow
			keySeq int64
		)
		if err := rows.Scan(&r.Constraint, &r.Schema, &r.Table, &r.Column,
			&r.RefSchema, &r.RefTable, &r.RefColumn, &keySeq); err != nil {
			return nil, err
		}
		r.KeySeq = int(keySeq)
		out = append(out, r)
	}
	return out, rows.Err()
}

func fetchColumnsMinimal(ctx context.Context, db warehouse.DB, scope Scope) ([]columnRow, error) {
	query, args := scopeFilter(queryColumnsMinimal, queryColumnsMinimalOrder, "", scope)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []columnRow
	for rows.Next() {
		var (
			r       columnRow
			ordinal int64
		)
		if err := rows.Scan(&r.Schema, &r.Table, &r.Column, &r.DataType, &ordinal); err != nil {
			return nil, err
		}
		r.Ordinal = int(ordinal)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
