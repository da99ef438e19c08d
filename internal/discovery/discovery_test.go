package discovery

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/logger"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/warehouse"
)

// fakeDB routes tier queries to canned responses. Queries are recognized by
// the metadata view they read, which is stable across scope filtering.
type fakeDB struct {
	columns tierResponse
	pks     tierResponse
	fks     tierResponse
	minimal tierResponse

	queries []string // observed query text, in order
	args    [][]any
}

type tierResponse struct {
	rows [][]any
	err  error
}

func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close()                     {}

func (f *fakeDB) Query(_ context.Context, query string, args ...any) (warehouse.Rows, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)

	resp := f.route(query)
	if resp.err != nil {
		return nil, resp.err
	}
	return &fakeRows{rows: resp.rows}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) warehouse.Row {
	panic("not used by discovery")
}

func (f *fakeDB) route(query string) tierResponse {
	switch {
	case strings.Contains(query, "REFERENTIAL_CONSTRAINTS"):
		return f.fks
	case strings.Contains(query, "TABLE_CONSTRAINTS"):
		return f.pks
	case strings.Contains(query, "INFORMATION_SCHEMA.TABLES"):
		return f.columns
	default:
		return f.minimal
	}
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: want %d dests, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch out := d.(type) {
		case *string:
			*out = row[i].(string)
		case *int64:
			*out = row[i].(int64)
		case *sql.NullInt64:
			if row[i] == nil {
				*out = sql.NullInt64{}
			} else {
				*out = sql.NullInt64{Int64: row[i].(int64), Valid: true}
			}
		case *sql.NullString:
			if row[i] == nil {
				*out = sql.NullString{}
			} else {
				*out = sql.NullString{String: row[i].(string), Valid: true}
			}
		default:
			return fmt.Errorf("scan: unsupported dest %T", d)
		}
	}
	return nil
}

func (r *fakeRows) Columns() ([]string, error) { return nil, nil }
func (r *fakeRows) Close()                     {}
func (r *fakeRows) Err() error                 { return nil }

func colRow(schema, table, column, dataType, nullable string, ordinal int64) []any {
	return []any{schema, table, column, dataType, nullable, ordinal, nil, nil, nil, nil}
}

func pkRow(schema, table, constraint, column string, seq int64) []any {
	return []any{schema, table, constraint, column, seq}
}

func fkRow(constraint, schema, table, column, refSchema, refTable, refColumn string, seq int64) []any {
	return []any{constraint, schema, table, column, refSchema, refTable, refColumn, seq}
}

func newTestEngine(db warehouse.DB) *Engine {
	return NewEngine(db, time.Second, logger.Nop())
}

// Healthy endpoint: three tiers succeed, capability is full and key absence
// is authoritative.
func TestDiscover_FullCapability(t *testing.T) {
	db := &fakeDB{
		columns: tierResponse{rows: [][]any{
			colRow("dbo", "Orders", "OrderID", "int", "NO", 1),
			colRow("dbo", "Orders", "CustomerID", "int", "YES", 2),
			colRow("dbo", "Customers", "CustomerID", "int", "NO", 1),
		}},
		pks: tierResponse{rows: [][]any{
			pkRow("dbo", "Orders", "PK_Orders", "OrderID", 1),
		}},
		fks: tierResponse{rows: [][]any{
			fkRow("FK_Orders_Customers", "dbo", "Orders", "CustomerID", "dbo", "Customers", "CustomerID", 1),
		}},
	}

	res, err := newTestEngine(db).Discover(context.Background(), DatabaseScope())
	require.NoError(t, err)

	snap := res.Snapshot
	assert.Equal(t, CapabilityFull, snap.Capability)
	require.Len(t, snap.Tables, 2)

	orders := snap.Table("Orders")
	require.NotNil(t, orders)
	assert.Equal(t, KeyDiscovered, orders.PrimaryKeyStatus)
	require.NotNil(t, orders.PrimaryKey)
	assert.Equal(t, []string{"OrderID"}, orders.PrimaryKey.Columns)
	require.Len(t, orders.ForeignKeys, 1)
	assert.Equal(t, "dbo.Customers", orders.ForeignKeys[0].RefTable)

	// Customers has no keys, and that absence is confirmed, not unknown.
	customers := snap.Table("Customers")
	require.NotNil(t, customers)
	assert.Equal(t, KeyDiscovered, customers.PrimaryKeyStatus)
	assert.Nil(t, customers.PrimaryKey)
	assert.Equal(t, KeyDiscovered, customers.ForeignKeyStatus)
	assert.Empty(t, customers.ForeignKeys)
}

// Constraint views denied: columns survive, key knowledge is tri-state
// unknown, capability degrades to partial and no error escapes.
func TestDiscover_ConstraintTiersDenied(t *testing.T) {
	denied := errs.New(errs.ErrKindPermissionDenied, "SELECT permission was denied")
	db := &fakeDB{
		columns: tierResponse{rows: [][]any{
			colRow("dbo", "Orders", "OrderID", "int", "NO", 1),
		}},
		pks: tierResponse{err: denied},
		fks: tierResponse{err: denied},
	}

	res, err := newTestEngine(db).Discover(context.Background(), DatabaseScope())
	require.NoError(t, err)

	snap := res.Snapshot
	assert.Equal(t, CapabilityPartial, snap.Capability)

	orders := snap.Table("Orders")
	require.NotNil(t, orders)
	assert.Equal(t, KeyUnknown, orders.PrimaryKeyStatus)
	assert.Nil(t, orders.PrimaryKey)
	assert.Equal(t, KeyUnknown, orders.ForeignKeyStatus)
	assert.Nil(t, orders.ForeignKeys)

	require.Len(t, snap.Outcomes, 3)
	assert.False(t, snap.Outcomes[1].Succeeded)
	assert.Equal(t, errs.ErrKindPermissionDenied, snap.Outcomes[1].ErrKind)
}

// Column tier denied: the run switches to the minimal fallback instead of
// attempting constraints, and the capability is minimal even when the
// fallback returns every table.
func TestDiscover_FallbackToMinimal(t *testing.T) {
	db := &fakeDB{
		columns: tierResponse{err: errs.New(errs.ErrKindPermissionDenied, "denied")},
		minimal: tierResponse{rows: [][]any{
			{"dbo", "Orders", "OrderID", "int", int64(1)},
			{"dbo", "Orders", "Total", "decimal", int64(2)},
		}},
	}

	res, err := newTestEngine(db).Discover(context.Background(), DatabaseScope())
	require.NoError(t, err)

	snap := res.Snapshot
	assert.Equal(t, CapabilityMinimal, snap.Capability)
	require.Len(t, snap.Tables, 1)
	assert.True(t, snap.Tables[0].Minimal)
	assert.Equal(t, KeyUnknown, snap.Tables[0].PrimaryKeyStatus)
	assert.Equal(t, KeyUnknown, snap.Tables[0].ForeignKeyStatus)
	assert.Len(t, snap.Tables[0].Columns, 2)

	// Constraint tiers were never attempted.
	for _, q := range db.queries {
		assert.NotContains(t, q, "TABLE_CONSTRAINTS")
		assert.NotContains(t, q, "REFERENTIAL_CONSTRAINTS")
	}
}

// Connectivity and auth failures are fatal on every tier; a timeout is fatal
// only on the mandatory column tier.
func TestDiscover_FatalFailures(t *testing.T) {
	tests := []struct {
		name string
		db   *fakeDB
		want errs.ErrKind
	}{
		{
			name: "connection lost on columns",
			db:   &fakeDB{columns: tierResponse{err: errs.New(errs.ErrKindConnectionFailed, "reset")}},
			want: errs.ErrKindConnectionFailed,
		},
		{
			name: "timeout on columns",
			db:   &fakeDB{columns: tierResponse{err: errs.New(errs.ErrKindTimeout, "deadline")}},
			want: errs.ErrKindTimeout,
		},
		{
			name: "auth lost on primary keys",
			db: &fakeDB{
				columns: tierResponse{rows: [][]any{colRow("dbo", "T", "c", "int", "NO", 1)}},
				pks:     tierResponse{err: errs.New(errs.ErrKindAuthFailed, "token expired")},
			},
			want: errs.ErrKindAuthFailed,
		},
		{
			name: "connection lost on fallback",
			db: &fakeDB{
				columns: tierResponse{err: errs.New(errs.ErrKindQueryFailed, "rejected")},
				minimal: tierResponse{err: errs.New(errs.ErrKindConnectionFailed, "reset")},
			},
			want: errs.ErrKindConnectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newTestEngine(tt.db).Discover(context.Background(), DatabaseScope())
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.want, errs.Kind(err))
		})
	}
}

// A timeout on a best-effort tier is absorbed like any other gap.
func TestDiscover_TimeoutOnForeignKeysAbsorbed(t *testing.T) {
	db := &fakeDB{
		columns: tierResponse{rows: [][]any{colRow("dbo", "T", "c", "int", "NO", 1)}},
		pks:     tierResponse{rows: nil},
		fks:     tierResponse{err: errs.New(errs.ErrKindTimeout, "deadline")},
	}

	res, err := newTestEngine(db).Discover(context.Background(), DatabaseScope())
	require.NoError(t, err)
	assert.Equal(t, CapabilityPartial, res.Snapshot.Capability)

	tbl := res.Snapshot.Table("T")
	require.NotNil(t, tbl)
	assert.Equal(t, KeyDiscovered, tbl.PrimaryKeyStatus)
	assert.Equal(t, KeyUnknown, tbl.ForeignKeyStatus)
}

// An empty database is not an error: all tiers still run and the snapshot is
// legitimately empty at full capability.
func TestDiscover_EmptyDatabase(t *testing.T) {
	db := &fakeDB{}

	res, err := newTestEngine(db).Discover(context.Background(), DatabaseScope())
	require.NoError(t, err)
	assert.Equal(t, CapabilityFull, res.Snapshot.Capability)
	assert.Empty(t, res.Snapshot.Tables)
	assert.Len(t, db.queries, 3)
}

// When the fallback also fails non-fatally, the run still completes with an
// empty minimal snapshot rather than an error.
func TestDiscover_FallbackFailureAbsorbed(t *testing.T) {
	db := &fakeDB{
		columns: tierResponse{err: errs.New(errs.ErrKindPermissionDenied, "denied")},
		minimal: tierResponse{err: errs.New(errs.ErrKindPermissionDenied, "denied")},
	}

	res, err := newTestEngine(db).Discover(context.Background(), DatabaseScope())
	require.NoError(t, err)
	assert.Equal(t, CapabilityMinimal, res.Snapshot.Capability)
	assert.Empty(t, res.Snapshot.Tables)
	require.Len(t, res.Snapshot.Outcomes, 2)
	assert.False(t, res.Snapshot.Outcomes[1].Succeeded)
}

// Multi-column keys keep key-sequence order regardless of result arrival
// order, and local/referenced columns stay position-aligned.
func TestDiscover_CompositeKeyOrdering(t *testing.T) {
	db := &fakeDB{
		columns: tierResponse{rows: [][]any{
			colRow("dbo", "OrderLines", "LineNo", "int", "NO", 2),
			colRow("dbo", "OrderLines", "OrderID", "int", "NO", 1),
			colRow("dbo", "Orders", "OrderID", "int", "NO", 1),
			colRow("dbo", "Orders", "Region", "varchar", "NO", 2),
		}},
		pks: tierResponse{rows: [][]any{
			pkRow("dbo", "OrderLines", "PK_OrderLines", "LineNo", 2),
			pkRow("dbo", "OrderLines", "PK_OrderLines", "OrderID", 1),
		}},
		fks: tierResponse{rows: [][]any{
			fkRow("FK_Lines_Orders", "dbo", "OrderLines", "Region", "dbo", "Orders", "Region", 2),
			fkRow("FK_Lines_Orders", "dbo", "OrderLines", "OrderID", "dbo", "Orders", "OrderID", 1),
		}},
	}

	res, err := newTestEngine(db).Discover(context.Background(), DatabaseScope())
	require.NoError(t, err)

	lines := res.Snapshot.Table("OrderLines")
	require.NotNil(t, lines)

	// Columns follow ordinal position, not arrival order.
	assert.Equal(t, "OrderID", lines.Columns[0].Name)
	assert.Equal(t, "LineNo", lines.Columns[1].Name)

	require.NotNil(t, lines.PrimaryKey)
	assert.Equal(t, []string{"OrderID", "LineNo"}, lines.PrimaryKey.Columns)

	require.Len(t, lines.ForeignKeys, 1)
	fk := lines.ForeignKeys[0]
	assert.Equal(t, []string{"OrderID", "Region"}, fk.Columns)
	assert.Equal(t, []string{"OrderID", "Region"}, fk.RefColumns)
}

// Key rows for tables the column tier never reported are dropped instead of
// materializing phantom tables.
func TestDiscover_IgnoresKeysForUnknownTables(t *testing.T) {
	db := &fakeDB{
		columns: tierResponse{rows: [][]any{colRow("dbo", "Orders", "OrderID", "int", "NO", 1)}},
		pks: tierResponse{rows: [][]any{
			pkRow("dbo", "Orders", "PK_Orders", "OrderID", 1),
			pkRow("stage", "Ghost", "PK_Ghost", "id", 1),
		}},
		fks: tierResponse{rows: [][]any{
			fkRow("FK_Ghost", "stage", "Ghost", "id", "dbo", "Orders", "OrderID", 1),
		}},
	}

	res, err := newTestEngine(db).Discover(context.Background(), DatabaseScope())
	require.NoError(t, err)
	assert.Len(t, res.Snapshot.Tables, 1)
	assert.Nil(t, res.Snapshot.Table("Ghost"))
}

// Single-table scope threads the table name (and schema when qualified) as
// query parameters on every tier.
func TestDiscover_TableScopeFiltersEveryTier(t *testing.T) {
	db := &fakeDB{
		columns: tierResponse{rows: [][]any{colRow("dbo", "Orders", "OrderID", "int", "NO", 1)}},
	}

	_, err := newTestEngine(db).Discover(context.Background(), TableScope("dbo.Orders"))
	require.NoError(t, err)

	require.Len(t, db.args, 3)
	for _, args := range db.args {
		assert.Equal(t, []any{"Orders", "dbo"}, args)
	}
	for _, q := range db.queries {
		assert.Contains(t, q, "TABLE_NAME = @p1")
		assert.Contains(t, q, "TABLE_SCHEMA = @p2")
	}
}

// A scope naming a table that does not exist succeeds with an empty table
// sequence; the capability still reflects the attempted tiers.
func TestDiscover_NonexistentTableScope(t *testing.T) {
	db := &fakeDB{}

	res, err := newTestEngine(db).Discover(context.Background(), TableScope("dbo.Ghost"))
	require.NoError(t, err)
	assert.Empty(t, res.Snapshot.Tables)
	assert.Equal(t, CapabilityFull, res.Snapshot.Capability)
	assert.Nil(t, res.Snapshot.Table("Ghost"))
}

// Two runs over identical outcomes produce identical snapshots and reports.
func TestDiscover_Deterministic(t *testing.T) {
	build := func() *fakeDB {
		return &fakeDB{
			columns: tierResponse{rows: [][]any{
				colRow("dbo", "A", "x", "int", "NO", 1),
				colRow("dbo", "B", "y", "int", "NO", 1),
			}},
			pks: tierResponse{rows: [][]any{pkRow("dbo", "A", "PK_A", "x", 1)}},
			fks: tierResponse{err: errs.New(errs.ErrKindNotFound, "view missing")},
		}
	}

	first, err := newTestEngine(build()).Discover(context.Background(), DatabaseScope())
	require.NoError(t, err)
	second, err := newTestEngine(build()).Discover(context.Background(), DatabaseScope())
	require.NoError(t, err)

	assert.Equal(t, first.Snapshot, second.Snapshot)
	assert.Equal(t, first.Report.String(), second.Report.String())
}

// Cancellation between tiers surfaces as a fatal timeout-class error.
func TestDiscover_CanceledBetweenTiers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	db := &fakeDB{
		columns: tierResponse{rows: [][]any{colRow("dbo", "T", "c", "int", "NO", 1)}},
	}

	cancel()
	res, err := newTestEngine(db).Discover(ctx, DatabaseScope())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, errs.ErrKindTimeout, errs.Kind(err))
}

func TestCapabilityOf(t *testing.T) {
	ok := func(tier Tier) TierOutcome { return TierOutcome{Tier: tier, Succeeded: true} }
	fail := func(tier Tier) TierOutcome {
		return TierOutcome{Tier: tier, ErrKind: errs.ErrKindPermissionDenied}
	}

	assert.Equal(t, CapabilityFull, CapabilityOf([]TierOutcome{
		ok(TierColumns), ok(TierPrimaryKeys), ok(TierForeignKeys),
	}))
	assert.Equal(t, CapabilityPartial, CapabilityOf([]TierOutcome{
		ok(TierColumns), fail(TierPrimaryKeys), ok(TierForeignKeys),
	}))
	// The fallback firing forces minimal even when it succeeded.
	assert.Equal(t, CapabilityMinimal, CapabilityOf([]TierOutcome{
		fail(TierColumns), ok(TierColumnsMinimal),
	}))
	assert.Equal(t, CapabilityMinimal, CapabilityOf([]TierOutcome{
		fail(TierColumns), fail(TierColumnsMinimal),
	}))
}

func TestReport_RestatesOutcomes(t *testing.T) {
	report := buildReport([]TierOutcome{
		{Tier: TierColumns, Succeeded: true, Rows: 12},
		{Tier: TierPrimaryKeys, ErrKind: errs.ErrKindPermissionDenied},
		{Tier: TierForeignKeys, ErrKind: errs.ErrKindNotFound},
	})

	require.Len(t, report.Lines, 3)
	assert.Equal(t, "column metadata: ok (12 rows)", report.Lines[0])
	assert.Equal(t, "primary keys: unavailable (permission denied by the endpoint)", report.Lines[1])
	assert.Equal(t, "foreign keys: unavailable (metadata view not present)", report.Lines[2])
	assert.Contains(t, report.String(), "schema discovered with gaps")
}

func TestTableScope(t *testing.T) {
	assert.Equal(t, Scope{Table: "Orders"}, TableScope("Orders"))
	assert.Equal(t, Scope{Schema: "dbo", Table: "Orders"}, TableScope("dbo.Orders"))
	assert.False(t, DatabaseScope().IsTable())
}
