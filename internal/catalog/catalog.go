// Package catalog implements IntelliSql's metadata catalog (C1): an
// in-memory structure keyed by fully-qualified table name, rebuilt
// atomically at startup and on refresh, that resolves qualified names and
// supplies statistics to the optimiser (spec.md §4.2).
//
// Grounded on the teacher's test/test_catalog.go Catalog/Database/Table
// method shapes, generalized from a single-provider catalog to a federated
// one keyed by (source, schema, table).
package catalog

import (
	"strings"
	"sync/atomic"

	"github.com/intellisql/intellisql/internal/core"
)

// HealthState is a Source's health, read lock-free via the atomic snapshot
// (spec.md §3, §4.6: "state is read without locking via an atomic snapshot
// per pool").
type HealthState int32

const (
	Healthy HealthState = iota
	Degraded
	Unhealthy
)

func (h HealthState) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// SourceKind is relational-row or document-index (spec.md §3).
type SourceKind int

const (
	KindRelational SourceKind = iota
	KindDocumentIndex
)

// Source is one federated data store: its connection parameters, pool
// configuration, and live health state.
type Source struct {
	ID     string
	Kind   SourceKind
	Config ConnectionConfig

	health            atomic.Int32 // HealthState
	consecutiveFails  atomic.Int32
	lastProbeUnixNano atomic.Int64
}

// ConnectionConfig is the pool-shaping configuration spec.md §6's config
// schema exposes per data source.
type ConnectionConfig struct {
	URL                          string
	Username                     string
	Password                     string
	MaximumPoolSize              int
	MinimumIdle                  int
	ConnectionTimeoutMillis      int
	IdleTimeoutMillis            int
	MaxLifetimeMillis            int
	HealthCheckIntervalSeconds   int
	HealthCheckTimeoutSeconds    int
	HealthCheckFailureThreshold  int
}

// NewSource constructs a Source starting in the healthy state.
func NewSource(id string, kind SourceKind, cfg ConnectionConfig) *Source {
	s := &Source{ID: id, Kind: kind, Config: cfg}
	s.health.Store(int32(Healthy))
	return s
}

// Health returns the source's current health without locking.
func (s *Source) Health() HealthState { return HealthState(s.health.Load()) }

// MarkProbe records the outcome of a health probe, advancing the
// consecutive-failure counter and transitioning health state per spec.md
// §4.6: N consecutive failures (threshold) mark the source unhealthy; the
// next success clears it immediately.
func (s *Source) MarkProbe(ok bool, nowUnixNano int64, threshold int) {
	s.lastProbeUnixNano.Store(nowUnixNano)
	if ok {
		s.consecutiveFails.Store(0)
		s.health.Store(int32(Healthy))
		return
	}
	fails := s.consecutiveFails.Add(1)
	if threshold <= 0 {
		threshold = 3
	}
	if fails >= int32(threshold) {
		s.health.Store(int32(Unhealthy))
	} else {
		s.health.Store(int32(Degraded))
	}
}

// Table kind (spec.md §3).
type TableKind int

const (
	TableBase TableKind = iota
	TableView
	TableExternalIndex
)

// Statistics backs the optimiser's cost model (spec.md §4.4). Missing
// statistics fall back to the documented defaults via DefaultStatistics.
type Statistics struct {
	RowCount           int64
	DistinctCounts     map[string]int64 // by column name
	DefaultSelectivity float64
}

// DefaultStatistics returns the spec.md §4.4 defaults: row count 10000,
// distinct count rowcount/10 per column, selectivity 0.1.
func DefaultStatistics(columns []*core.Column) *Statistics {
	const defaultRows = 10000
	dc := make(map[string]int64, len(columns))
	for _, c := range columns {
		dc[c.Name] = defaultRows / 10
	}
	return &Statistics{RowCount: defaultRows, DistinctCounts: dc, DefaultSelectivity: 0.1}
}

// Table is a fully-qualified (source.schema.name) relation.
type Table struct {
	Source  string
	Schema  string
	Name    string
	Kind    TableKind
	Columns core.Schema
	Indexes []string
	Stats   *Statistics
}

// QualifiedName returns "source.schema.name".
func (t *Table) QualifiedName() string {
	return t.Source + "." + t.Schema + "." + t.Name
}

// snapshot is the immutable structure swapped in on rebuild. Catalog never
// mutates a snapshot in place, so concurrent readers never observe a
// half-updated catalog (spec.md §3 invariant).
type snapshot struct {
	sources    map[string]*Source
	tablesByFQ map[string]*Table          // "source.schema.name" -> Table
	tablesByDB map[string]map[string][]*Table // source -> schema -> tables
}

func newSnapshot() *snapshot {
	return &snapshot{
		sources:    map[string]*Source{},
		tablesByFQ: map[string]*Table{},
		tablesByDB: map[string]map[string][]*Table{},
	}
}

// Catalog is the single in-memory structure of spec.md §4.2: O(1) lookup on
// fully-qualified names, safe under concurrent read, atomically swapped on
// rebuild.
type Catalog struct {
	snap atomic.Pointer[snapshot]
}

// New returns an empty Catalog.
func New() *Catalog {
	c := &Catalog{}
	c.snap.Store(newSnapshot())
	return c
}

// Builder accumulates sources and tables for one atomic Rebuild.
type Builder struct {
	snap *snapshot
}

// NewBuilder starts a fresh Builder.
func NewBuilder() *Builder {
	return &Builder{snap: newSnapshot()}
}

// AddSource registers a source in the snapshot under construction.
func (b *Builder) AddSource(s *Source) *Builder {
	b.snap.sources[s.ID] = s
	return b
}

// AddTable registers a table (and its parent schema bucket) in the snapshot
// under construction.
func (b *Builder) AddTable(t *Table) *Builder {
	b.snap.tablesByFQ[t.QualifiedName()] = t
	bySchema, ok := b.snap.tablesByDB[t.Source]
	if !ok {
		bySchema = map[string][]*Table{}
		b.snap.tablesByDB[t.Source] = bySchema
	}
	bySchema[t.Schema] = append(bySchema[t.Schema], t)
	return b
}

// Rebuild atomically installs the builder's snapshot as the catalog's
// current view. Existing Source pointers keep their live health state,
// since Source.health is independent atomic state, not part of the
// snapshot's structural data (pools outlive queries, per spec.md §3).
func (c *Catalog) Rebuild(b *Builder) {
	c.snap.Store(b.snap)
}

func (c *Catalog) current() *snapshot { return c.snap.Load() }

// Source looks up a source by id.
func (c *Catalog) Source(id string) (*Source, error) {
	s, ok := c.current().sources[id]
	if !ok {
		return nil, core.NewErrorf(core.KindUnknownSchema, "unknown source %q", id)
	}
	return s, nil
}

// AllSources returns every registered source.
func (c *Catalog) AllSources() []*Source {
	snap := c.current()
	out := make([]*Source, 0, len(snap.sources))
	for _, s := range snap.sources {
		out = append(out, s)
	}
	return out
}

// Table resolves a fully-qualified table, O(1) on the current snapshot.
func (c *Catalog) Table(source, schema, name string) (*Table, error) {
	fq := source + "." + schema + "." + name
	t, ok := c.current().tablesByFQ[fq]
	if !ok {
		return nil, core.NewErrorf(core.KindUnknownTable, "unknown table %q", fq)
	}
	return t, nil
}

// Tables lists every table in a source's schema, used by SHOW TABLES.
// pattern, if non-empty, is an optional SQL-92 LIKE filter (% and _
// wildcards only; spec.md §9 open question resolved this way).
func (c *Catalog) Tables(source, schema, pattern string) ([]*Table, error) {
	snap := c.current()
	bySchema, ok := snap.tablesByDB[source]
	if !ok {
		return nil, core.NewErrorf(core.KindUnknownSchema, "unknown source %q", source)
	}
	tables, ok := bySchema[schema]
	if !ok {
		return nil, core.NewErrorf(core.KindUnknownSchema, "unknown schema %q.%q", source, schema)
	}
	if pattern == "" {
		return tables, nil
	}
	out := make([]*Table, 0, len(tables))
	for _, t := range tables {
		if matchLike(t.Name, pattern) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Schemas lists every distinct schema name known for a source.
func (c *Catalog) Schemas(source string) ([]string, error) {
	snap := c.current()
	bySchema, ok := snap.tablesByDB[source]
	if !ok {
		return nil, core.NewErrorf(core.KindUnknownSchema, "unknown source %q", source)
	}
	out := make([]string, 0, len(bySchema))
	for s := range bySchema {
		out = append(out, s)
	}
	return out, nil
}

// RefreshStatistics replaces a table's Statistics without a full Rebuild,
// per spec.md §4.2: "statistics can be refreshed independently of
// structure." It mutates the Table's shared pointer target via a fresh
// Statistics struct, never in place, so an in-flight plan reading Stats
// concurrently sees either the old or new value atomically via the pointer
// read, never a partial write.
func (c *Catalog) RefreshStatistics(source, schema, name string, stats *Statistics) error {
	t, err := c.Table(source, schema, name)
	if err != nil {
		return err
	}
	t.Stats = stats
	return nil
}

// ResolveColumn finds the single table among candidates that owns the named
// column, failing with AmbiguousColumn if more than one does, per spec.md
// §3's invariant ("a column reference resolves to exactly one column in
// exactly one table; ambiguity fails validation").
func ResolveColumn(candidates []*Table, column string) (*Table, *core.Column, error) {
	var foundTable *Table
	var foundCol *core.Column
	for _, t := range candidates {
		for _, col := range t.Columns {
			if strings.EqualFold(col.Name, column) {
				if foundTable != nil {
					return nil, nil, core.NewErrorf(core.KindAmbiguousColumn, "column %q is ambiguous between %s and %s", column, foundTable.QualifiedName(), t.QualifiedName())
				}
				foundTable, foundCol = t, col
			}
		}
	}
	if foundTable == nil {
		return nil, nil, core.NewErrorf(core.KindValidationError, "unknown column %q", column)
	}
	return foundTable, foundCol, nil
}

// matchLike implements SQL-92 LIKE with % (any run) and _ (single char)
// wildcards only, per spec.md §9's resolved open question.
func matchLike(s, pattern string) bool {
	return likeMatch(s, pattern)
}

func likeMatch(s, pattern string) bool {
	// Classic DP-free recursive match with memo-free backtracking; table
	// names are short so this is never a hot path.
	if pattern == "" {
		return s == ""
	}
	if pattern[0] == '%' {
		if likeMatch(s, pattern[1:]) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if likeMatch(s[i+1:], pattern[1:]) {
				return true
			}
		}
		return false
	}
	if s == "" {
		return false
	}
	if pattern[0] == '_' || pattern[0] == s[0] {
		return likeMatch(s[1:], pattern[1:])
	}
	return false
}
