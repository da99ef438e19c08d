// Package discovery maps a partially-capable SQL backend into a stable,
// structured schema representation.
//
// Fabric SQL endpoints vary in which metadata views they expose: constraint
// views may be restricted, foreign keys may be absent, and some deployments
// reject even INFORMATION_SCHEMA.TABLES. Discovery runs a fixed sequence of
// increasingly conservative introspection tiers, absorbs per-tier failures
// into recorded outcomes, and folds whatever succeeded into one immutable
// Snapshot with an honest capability level.
package discovery

import (
	"strings"

	"github.com/rabbyn/Fabric-SQL-Assistant/internal/errs"
)

// Scope is the unit of introspection: the whole database, or one table.
type Scope struct {
	Schema string // optional; meaningful only with Table
	Table  string // empty means database-wide
}

// DatabaseScope requests discovery of every user table.
func DatabaseScope() Scope { return Scope{} }

// TableScope requests discovery of a single table. The name may be bare
// ("Sales") or schema-qualified ("dbo.Sales"); a bare name matches the table
// in any user schema.
func TableScope(name string) Scope {
	if schema, table, ok := strings.Cut(name, "."); ok {
		return Scope{Schema: schema, Table: table}
	}
	return Scope{Table: name}
}

// IsTable reports whether the scope targets a single table.
func (s Scope) IsTable() bool { return s.Table != "" }

func (s Scope) String() string {
	if !s.IsTable() {
		return "database"
	}
	if s.Schema != "" {
		return s.Schema + "." + s.Table
	}
	return s.Table
}

// Column describes a single column, in backend ordinal order.
// Minimal-tier columns carry only Name, DataType and Ordinal.
type Column struct {
	Name      string  `json:"name"`
	DataType  string  `json:"data_type"`
	Nullable  bool    `json:"nullable"`
	Ordinal   int     `json:"ordinal"`
	MaxLength *int64  `json:"max_length,omitempty"`
	Precision *int64  `json:"precision,omitempty"`
	Scale     *int64  `json:"scale,omitempty"`
	Default   *string `json:"default,omitempty"`
}

// PrimaryKey is a discovered primary key with columns in key-sequence order.
type PrimaryKey struct {
	Constraint string   `json:"constraint,omitempty"`
	Columns    []string `json:"columns"`
}

// ForeignKey is one referential constraint. Multi-column keys keep local and
// referenced columns position-aligned, in key-sequence order.
type ForeignKey struct {
	Constraint string   `json:"constraint,omitempty"`
	Columns    []string `json:"columns"`
	RefTable   string   `json:"ref_table"` // schema-qualified
	RefColumns []string `json:"ref_columns"`
}

// KeyStatus distinguishes "the tier ran, its answer is authoritative" from
// "the tier failed, absence means nothing". Collapsing the two into a nil
// field is exactly the bug this type exists to prevent.
type KeyStatus string

const (
	// KeyDiscovered: the constraint tier succeeded for this run. A nil
	// PrimaryKey or empty ForeignKeys slice is then a confirmed absence.
	KeyDiscovered KeyStatus = "discovered"

	// KeyUnknown: the constraint tier failed. Nothing can be concluded
	// about keys on this table.
	KeyUnknown KeyStatus = "unknown"
)

// Table describes one table. Uniquely identified by (Schema, Name).
// Instances are never mutated after assembly completes.
type Table struct {
	Schema  string   `json:"schema"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`

	PrimaryKey       *PrimaryKey `json:"primary_key,omitempty"`
	PrimaryKeyStatus KeyStatus   `json:"primary_key_status"`

	ForeignKeys      []ForeignKey `json:"foreign_keys"`
	ForeignKeyStatus KeyStatus    `json:"foreign_key_status"`

	// Minimal marks tables built by the fallback tier: columns carry only
	// name and type.
	Minimal bool `json:"minimal,omitempty"`
}

// QualifiedName returns "schema.name".
func (t *Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// Tier names one introspection strategy in the fixed attempt order.
type Tier string

const (
	TierColumns        Tier = "columns"         // mandatory: full column shape
	TierPrimaryKeys    Tier = "primary_keys"    // best-effort constraint metadata
	TierForeignKeys    Tier = "foreign_keys"    // best-effort referential metadata
	TierColumnsMinimal Tier = "columns_minimal" // fallback: names and types only
)

// TierOutcome records one tier attempt. A tier is attempted at most once per
// discovery run.
type TierOutcome struct {
	Tier      Tier         `json:"tier"`
	Succeeded bool         `json:"succeeded"`
	ErrKind   errs.ErrKind `json:"err_kind,omitempty"` // meaningful only on failure
	Rows      int          `json:"rows"`
}

// Capability is the coarse summary of how much metadata one run obtained.
type Capability string

const (
	CapabilityFull    Capability = "full"    // columns, primary keys and foreign keys
	CapabilityPartial Capability = "partial" // columns, but some constraint tier failed
	CapabilityMinimal Capability = "minimal" // fallback tier fired: names and types only
)

// CapabilityOf derives the capability level from the tier outcomes alone.
// It is a pure function: row counts and table contents never influence it.
func CapabilityOf(outcomes []TierOutcome) Capability {
	succeeded := map[Tier]bool{}
	fallbackFired := false
	for _, o := range outcomes {
		if o.Tier == TierColumnsMinimal {
			fallbackFired = true
		}
		if o.Succeeded {
			succeeded[o.Tier] = true
		}
	}

	if fallbackFired {
		return CapabilityMinimal
	}
	if succeeded[TierColumns] && succeeded[TierPrimaryKeys] && succeeded[TierForeignKeys] {
		return CapabilityFull
	}
	return CapabilityPartial
}

// Snapshot is the immutable result of one discovery run. It is rebuilt from
// scratch on every request; concurrent consumers may share it freely.
type Snapshot struct {
	Scope      Scope         `json:"scope"`
	Tables     []Table       `json:"tables"`
	Outcomes   []TierOutcome `json:"outcomes"`
	Capability Capability    `json:"capability"`
}

// Table returns the table matching name (bare or schema-qualified),
// or nil when the snapshot has no such table.
func (s *Snapshot) Table(name string) *Table {
	scope := TableScope(name)
	for i := range s.Tables {
		t := &s.Tables[i]
		if !strings.EqualFold(t.Name, scope.Table) {
			continue
		}
		if scope.Schema == "" || strings.EqualFold(t.Schema, scope.Schema) {
			return t
		}
	}
	return nil
}
