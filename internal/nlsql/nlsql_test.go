package nlsql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/discovery"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
	"github.com/rabbyn/Fabric-SQL-Assistant/internal/logger"
)

type fakeLLM struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

func fullSnapshot() *discovery.Snapshot {
	maxLen := int64(50)
	return &discovery.Snapshot{
		Capability: discovery.CapabilityFull,
		Tables: []discovery.Table{
			{
				Schema: "dbo", Name: "Orders",
				Columns: []discovery.Column{
					{Name: "OrderID", DataType: "int", Ordinal: 1},
					{Name: "CustomerID", DataType: "int", Nullable: true, Ordinal: 2},
					{Name: "Total", DataType: "decimal", Nullable: true, Ordinal: 3},
				},
				PrimaryKey:       &discovery.PrimaryKey{Constraint: "PK_Orders", Columns: []string{"OrderID"}},
				PrimaryKeyStatus: discovery.KeyDiscovered,
				ForeignKeys: []discovery.ForeignKey{{
					Constraint: "FK_Orders_Customers",
					Columns:    []string{"CustomerID"},
					RefTable:   "dbo.Customers",
					RefColumns: []string{"CustomerID"},
				}},
				ForeignKeyStatus: discovery.KeyDiscovered,
			},
			{
				Schema: "dbo", Name: "Customers",
				Columns: []discovery.Column{
					{Name: "CustomerID", DataType: "int", Ordinal: 1},
					{Name: "CompanyName", DataType: "varchar", Nullable: true, Ordinal: 2, MaxLength: &maxLen},
				},
				PrimaryKey:       &discovery.PrimaryKey{Constraint: "PK_Customers", Columns: []string{"CustomerID"}},
				PrimaryKeyStatus: discovery.KeyDiscovered,
				ForeignKeys:      []discovery.ForeignKey{},
				ForeignKeyStatus: discovery.KeyDiscovered,
			},
		},
	}
}

func minimalSnapshot() *discovery.Snapshot {
	return &discovery.Snapshot{
		Capability: discovery.CapabilityMinimal,
		Tables: []discovery.Table{{
			Schema: "dbo", Name: "Orders",
			Columns: []discovery.Column{
				{Name: "OrderID", DataType: "int", Ordinal: 1},
			},
			PrimaryKeyStatus: discovery.KeyUnknown,
			ForeignKeyStatus: discovery.KeyUnknown,
			Minimal:          true,
		}},
	}
}

func TestSchemaPrompt_FullSnapshot(t *testing.T) {
	prompt := SchemaPrompt(fullSnapshot())

	assert.Contains(t, prompt, "TABLE: dbo.Orders")
	assert.Contains(t, prompt, "OrderID (int) [PRIMARY KEY] [NOT NULL]")
	assert.Contains(t, prompt, "CustomerID (int) [FOREIGN KEY]")
	assert.Contains(t, prompt, "CompanyName (varchar, max_length=50)")
	assert.Contains(t, prompt, "RELATIONSHIPS:")
	assert.Contains(t, prompt, "dbo.Orders.CustomerID -> dbo.Customers.CustomerID")
	assert.NotContains(t, prompt, "could not be discovered")
}

func TestSchemaPrompt_DegradedSnapshotIsHonest(t *testing.T) {
	prompt := SchemaPrompt(minimalSnapshot())

	assert.Contains(t, prompt, "only column names and types are known")
	assert.Contains(t, prompt, "relationships could not be discovered")
	assert.NotContains(t, prompt, "RELATIONSHIPS:")
	assert.NotContains(t, prompt, "[NOT NULL]")
}

func TestRelevantTables(t *testing.T) {
	snap := fullSnapshot()

	// Plural table name matched from singular word and vice versa.
	assert.Equal(t, []string{"dbo.Orders"}, RelevantTables("show me the largest order", snap))
	assert.Equal(t, []string{"dbo.Orders", "dbo.Customers"},
		RelevantTables("orders per customer", snap))

	// Column-name match pulls the owning table in.
	assert.Contains(t, RelevantTables("which companyname appears most", snap), "dbo.Customers")

	// Nothing matches: fall back to fact-like tables.
	assert.Equal(t, []string{"dbo.Orders"}, RelevantTables("what happened last week", snap))
}

func TestValidate(t *testing.T) {
	snap := fullSnapshot()

	assert.Empty(t, Validate("SELECT TOP 10 * FROM dbo.Orders", snap))
	assert.Empty(t, Validate("SELECT COUNT(*) FROM Orders", snap))

	warnings := Validate("SELECT * FROM dbo.Invoices JOIN Shipments ON 1=1", snap)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], `"dbo.invoices"`)
	assert.Contains(t, warnings[1], `"shipments"`)

	warnings = Validate("SELECT CustomerID, SUM(Total) FROM dbo.Orders", snap)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "GROUP BY")

	// Aggregation with GROUP BY, or pure aggregation, is fine.
	assert.Empty(t, Validate("SELECT CustomerID, SUM(Total) FROM dbo.Orders GROUP BY CustomerID", snap))
	assert.Empty(t, Validate("SELECT SUM(Total) FROM dbo.Orders", snap))
}

func TestGenerateSQL(t *testing.T) {
	llm := &fakeLLM{reply: "```sql\nSELECT TOP 5 * FROM dbo.Orders\n```"}
	gen := NewGenerator(llm, logger.Nop())

	sql, err := gen.GenerateSQL(context.Background(), "top orders", fullSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "SELECT TOP 5 * FROM dbo.Orders", sql)

	// The prompt carries the schema, the rules and the relevance hint.
	assert.Contains(t, llm.user, "DATABASE SCHEMA:")
	assert.Contains(t, llm.user, "RELEVANT TABLES FOR THIS QUERY: dbo.Orders")
	assert.Contains(t, llm.system, "T-SQL")
}

func TestGenerateSQL_EmptySnapshot(t *testing.T) {
	gen := NewGenerator(&fakeLLM{reply: "SELECT 1"}, logger.Nop())

	_, err := gen.GenerateSQL(context.Background(), "anything", &discovery.Snapshot{})
	require.Error(t, err)
	assert.Equal(t, errs.ErrKindInvalidInput, errs.Kind(err))
}

func TestGenerateSQL_EmptyReply(t *testing.T) {
	gen := NewGenerator(&fakeLLM{reply: "```sql\n```"}, logger.Nop())

	_, err := gen.GenerateSQL(context.Background(), "anything", fullSnapshot())
	require.Error(t, err)
	assert.Equal(t, errs.ErrKindQueryFailed, errs.Kind(err))
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"```sql\nSELECT 1\n```", "SELECT 1"},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"  ```sql\nSELECT 1\nFROM t\n```  ", "SELECT 1\nFROM t"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripFences(tt.in))
	}
}

func TestSummarize(t *testing.T) {
	llm := &fakeLLM{reply: "There were 42 orders."}
	gen := NewGenerator(llm, logger.Nop())

	out, err := gen.Summarize(context.Background(), "how many orders", "SELECT COUNT(*) FROM dbo.Orders", "| 42 |")
	require.NoError(t, err)
	assert.Equal(t, "There were 42 orders.", out)
	assert.Contains(t, llm.user, "how many orders")
	assert.Contains(t, llm.user, "| 42 |")
}
