package connector

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
)

// MemoryConnector is an in-process connector used by tests and anywhere a
// real database would be overkill. It is the
// federated-engine analogue of the teacher's (test-only-in-pack) in-memory
// table harness, rebuilt here against this spec's Connector interface
// rather than copied, since no implementation file was present to adapt.
type MemoryConnector struct {
	mu  sync.RWMutex
	dbs map[string]*memoryDB // keyed by PoolConfig.URL
}

// NewMemoryConnector returns an empty MemoryConnector.
func NewMemoryConnector() *MemoryConnector {
	return &MemoryConnector{dbs: map[string]*memoryDB{}}
}

type memoryDB struct {
	mu     sync.RWMutex
	tables map[string]map[string]*memoryTable // schema -> name -> table
}

type memoryTable struct {
	columns core.Schema
	rows    []core.Row
}

// CreateTable seeds a table's rows directly, for use by tests. url
// identifies which logical database (as configured by
// PoolConfig.URL) the table belongs to.
func (m *MemoryConnector) CreateTable(url, schema, name string, columns core.Schema, rows []core.Row) {
	m.mu.Lock()
	db, ok := m.dbs[url]
	if !ok {
		db = &memoryDB{tables: map[string]map[string]*memoryTable{}}
		m.dbs[url] = db
	}
	m.mu.Unlock()

	db.mu.Lock()
	defer db.mu.Unlock()
	bySchema, ok := db.tables[schema]
	if !ok {
		bySchema = map[string]*memoryTable{}
		db.tables[schema] = bySchema
	}
	bySchema[name] = &memoryTable{columns: columns, rows: rows}
}

type memoryPool struct {
	db *memoryDB
}

func (p *memoryPool) Close() error { return nil }

// Open returns the in-process database registered under cfg.URL, creating
// an empty one if none was seeded yet.
func (m *MemoryConnector) Open(_ context.Context, cfg PoolConfig) (Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.dbs[cfg.URL]
	if !ok {
		db = &memoryDB{tables: map[string]map[string]*memoryTable{}}
		m.dbs[cfg.URL] = db
	}
	return &memoryPool{db: db}, nil
}

// DiscoverSchema lists every table seeded into this pool's database.
func (m *MemoryConnector) DiscoverSchema(_ context.Context, pool Pool) (*DiscoveredSchema, error) {
	p := pool.(*memoryPool)
	p.db.mu.RLock()
	defer p.db.mu.RUnlock()

	out := &DiscoveredSchema{}
	schemas := make([]string, 0, len(p.db.tables))
	for schema := range p.db.tables {
		schemas = append(schemas, schema)
	}
	sort.Strings(schemas)
	out.Schemas = schemas

	for _, schema := range schemas {
		names := make([]string, 0, len(p.db.tables[schema]))
		for name := range p.db.tables[schema] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			t := p.db.tables[schema][name]
			out.Tables = append(out.Tables, DiscoveredTable{Schema: schema, Name: name, Columns: t.columns})
		}
	}
	return out, nil
}

type memoryIterator struct {
	rows []core.Row
	pos  int
}

func (it *memoryIterator) Next(ctx context.Context) (core.Row, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if it.pos >= len(it.rows) {
		return nil, errEOF
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *memoryIterator) Close() error { return nil }

// Scan applies whatever pushdown it can honour in-process (projection,
// limit, a single-column equality filter, sort). It reports nothing back:
// Pushdown.Unpushed is never set.
func (m *MemoryConnector) Scan(_ context.Context, pool Pool, schema, table string, pushdown Pushdown) (Iterator, Handle, error) {
	p := pool.(*memoryPool)
	p.db.mu.RLock()
	bySchema, ok := p.db.tables[schema]
	if !ok {
		p.db.mu.RUnlock()
		return nil, nil, core.NewErrorf(core.KindUnknownSchema, "unknown schema %q", schema)
	}
	t, ok := bySchema[table]
	p.db.mu.RUnlock()
	if !ok {
		return nil, nil, core.NewErrorf(core.KindUnknownTable, "unknown table %q", table)
	}

	rows := make([]core.Row, len(t.rows))
	copy(rows, t.rows)

	if !pushdown.Filter.Empty() {
		rows = applyPredicate(t.columns, rows, pushdown.Filter)
	}

	if len(pushdown.SortBy) > 0 {
		sortRows(t.columns, rows, pushdown.SortBy)
	}

	var projected core.Schema
	if len(pushdown.Projection) > 0 {
		rows, projected = applyProjection(t.columns, rows, pushdown.Projection)
	} else {
		projected = t.columns
	}

	if pushdown.Limit > 0 && pushdown.Limit < len(rows) {
		rows = rows[:pushdown.Limit]
	}

	_ = projected // the executor re-derives schema from the catalog; kept for clarity
	return &memoryIterator{rows: rows}, nil, nil
}

func (m *MemoryConnector) HealthProbe(_ context.Context, pool Pool, _ int) error {
	if pool == nil {
		return core.NewErrorf(core.KindConnectTimeout, "nil pool")
	}
	return nil
}

func (m *MemoryConnector) Cancel(_ Handle) error { return nil }

func applyPredicate(schema core.Schema, rows []core.Row, pred Predicate) []core.Row {
	idx := schema.IndexOf(pred.Column)
	if idx < 0 {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		if matchPredicate(r[idx], pred) {
			out = append(out, r)
		}
	}
	return out
}

func matchPredicate(v types.Value, pred Predicate) bool {
	if v.Null {
		return false
	}
	switch pred.Operator {
	case "=":
		return valuesEqual(v.Native, pred.Value)
	case "!=":
		return !valuesEqual(v.Native, pred.Value)
	default:
		return true // residual operators are handled upstream by the executor
	}
}

func valuesEqual(a, b interface{}) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.EqualFold(as, bs)
	}
	return a == b
}

func applyProjection(schema core.Schema, rows []core.Row, cols []string) ([]core.Row, core.Schema) {
	idxs := make([]int, 0, len(cols))
	outSchema := make(core.Schema, 0, len(cols))
	for _, name := range cols {
		i := schema.IndexOf(name)
		if i < 0 {
			continue
		}
		idxs = append(idxs, i)
		outSchema = append(outSchema, schema[i])
	}
	out := make([]core.Row, len(rows))
	for i, r := range rows {
		nr := make(core.Row, len(idxs))
		for j, idx := range idxs {
			nr[j] = r[idx]
		}
		out[i] = nr
	}
	return out, outSchema
}

func sortRows(schema core.Schema, rows []core.Row, keys []SortKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			idx := schema.IndexOf(k.Column)
			if idx < 0 {
				continue
			}
			cmp := compareValues(rows[i][idx], rows[j][idx])
			if cmp == 0 {
				continue
			}
			if k.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareValues(a, b types.Value) int {
	if a.Null && b.Null {
		return 0
	}
	if a.Null {
		return -1
	}
	if b.Null {
		return 1
	}
	switch av := a.Native.(type) {
	case int64:
		bv, _ := b.Native.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case float64:
		bv, _ := b.Native.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv, _ := b.Native.(string)
		return strings.Compare(av, bv)
	default:
		return 0
	}
}
