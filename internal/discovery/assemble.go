package discovery

import "sort"

// assembler folds raw tier rows into an ordered table list. Table order
// follows first appearance in the column tier, which the tier queries keep
// sorted by (schema, table, ordinal), so reruns against an unchanged backend
// produce identical snapshots.
type assembler struct {
	scope  Scope
	tables []*Table
	index  map[string]*Table // keyed by "schema.name"
}

func newAssembler(scope Scope) *assembler {
	return &assembler{
		scope: scope,
		index: make(map[string]*Table),
	}
}

// addColumns folds tier-1 rows. minimal marks rows from the fallback tier.
func (a *assembler) addColumns(rows []columnRow, minimal bool) {
	for _, r := range rows {
		key := r.Schema + "." + r.Table
		t, ok := a.index[key]
		if !ok {
			t = &Table{
				Schema: r.Schema,
				Name:   r.Table,
				// Until a constraint tier reports, keys are unknown.
				PrimaryKeyStatus: KeyUnknown,
				ForeignKeyStatus: KeyUnknown,
				Minimal:          minimal,
			}
			a.index[key] = t
			a.tables = append(a.tables, t)
		}
		t.Columns = append(t.Columns, Column{
			Name:      r.Column,
			DataType:  r.DataType,
			Nullable:  r.Nullable,
			Ordinal:   r.Ordinal,
			MaxLength: r.MaxLength,
			Precision: r.Precision,
			Scale:     r.Scale,
			Default:   r.Default,
		})
	}

	// Defend the ordinal-order invariant even if a backend returns rows
	// out of order.
	for _, t := range a.tables {
		cols := t.Columns
		sort.SliceStable(cols, func(i, j int) bool { return cols[i].Ordinal < cols[j].Ordinal })
	}
}

// addPrimaryKeys folds tier-2 rows and marks every known table's primary key
// as discovered: a table with no matching rows has a confirmed absence of a
// primary key, which is different from not knowing.
//
// Columns within a constraint are ordered by the reported key sequence, not
// by result-set arrival order.
func (a *assembler) addPrimaryKeys(rows []keyRow) {
	type pkCol struct {
		name string
		seq  int
	}
	byTable := make(map[string]struct {
		constraint string
		cols       []pkCol
	})

	for _, r := range rows {
		key := r.Schema + "." + r.Table
		if _, known := a.index[key]; !known {
			continue // constraint on a table the column tier never reported
		}
		entry := byTable[key]
		entry.constraint = r.Constraint
		entry.cols = append(entry.cols, pkCol{name: r.Column, seq: r.KeySeq})
		byTable[key] = entry
	}

	for _, t := range a.tables {
		t.PrimaryKeyStatus = KeyDiscovered

		entry, ok := byTable[t.QualifiedName()]
		if !ok {
			continue // confirmed: no primary key
		}
		sort.SliceStable(entry.cols, func(i, j int) bool { return entry.cols[i].seq < entry.cols[j].seq })

		pk := &PrimaryKey{Constraint: entry.constraint}
		for _, c := range entry.cols {
			pk.Columns = append(pk.Columns, c.name)
		}
		t.PrimaryKey = pk
	}
}

// addForeignKeys folds tier-3 rows, grouping rows that share a constraint
// name into one multi-column ForeignKey ordered by key sequence.
func (a *assembler) addForeignKeys(rows []refRow) {
	type fkGroup struct {
		table string
		fk    ForeignKey
		seqs  []int
	}
	groups := make(map[string]*fkGroup) // keyed by "schema.table/constraint"
	var order []string

	for _, r := range rows {
		tableKey := r.Schema + "." + r.Table
		if _, known := a.index[tableKey]; !known {
			continue
		}
		key := tableKey + "/" + r.Constraint
		g, ok := groups[key]
		if !ok {
			g = &fkGroup{
				table: tableKey,
				fk: ForeignKey{
					Constraint: r.Constraint,
					RefTable:   r.RefSchema + "." + r.RefTable,
				},
			}
			groups[key] = g
			order = append(order, key)
		}
		g.fk.Columns = append(g.fk.Columns, r.Column)
		g.fk.RefColumns = append(g.fk.RefColumns, r.RefColumn)
		g.seqs = append(g.seqs, r.KeySeq)
	}

	for _, t := range a.tables {
		t.ForeignKeyStatus = KeyDiscovered
		t.ForeignKeys = []ForeignKey{} // confirmed empty unless rows say otherwise
	}

	for _, key := range order {
		g := groups[key]
		sortAligned(g.seqs, g.fk.Columns, g.fk.RefColumns)
		t := a.index[g.table]
		t.ForeignKeys = append(t.ForeignKeys, g.fk)
	}
}

// finish seals the fold into a value-typed Snapshot. The assembler must not
// be reused afterwards.
func (a *assembler) finish(outcomes []TierOutcome) *Snapshot {
	tables := make([]Table, len(a.tables))
	for i, t := range a.tables {
		tables[i] = *t
	}
	return &Snapshot{
		Scope:      a.scope,
		Tables:     tables,
		Outcomes:   outcomes,
		Capability: CapabilityOf(outcomes),
	}
}

// sortAligned sorts cols and refCols in lockstep by ascending key sequence.
func sortAligned(seqs []int, cols, refCols []string) {
	idx := make([]int, len(seqs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return seqs[idx[i]] < seqs[idx[j]] })

	sortedCols := make([]string, len(cols))
	sortedRefs := make([]string, len(refCols))
	for i, j := range idx {
		sortedCols[i] = cols[j]
		sortedRefs[i] = refCols[j]
	}
	copy(cols, sortedCols)
	copy(refCols, sortedRefs)
}
