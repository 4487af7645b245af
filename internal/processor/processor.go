// Package processor implements the query processor (spec §4.7, C7): the
// orchestrator that assigns every statement a unique id, logs its
// transitions MDC-style under that id, picks translate-only vs execute,
// runs parse->validate->optimise->execute, frames the output, and enforces
// the per-query timeout and the global concurrent-query bound.
//
// Grounded on the teacher's auth/audit.go logrus.Fields logging pattern
// (see log.go) and engine.go's ProcessList/PreparedDataCache shape (see
// query.go's ProcessList), carried over without the vitess/dolt-analyzer
// pipeline they used to sit in front of.
package processor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/dialect"
	"github.com/intellisql/intellisql/internal/optimizer"
	"github.com/intellisql/intellisql/internal/rowexec"
)

// Options configures a Processor. Zero values fall back to spec §6's
// documented defaults.
type Options struct {
	Catalog *catalog.Catalog
	// Router is the SourceRouter the executor pulls scans through;
	// internal/datasource.Manager implements it against real connectors.
	Router rowexec.SourceRouter
	Weights       optimizer.Weights
	DefaultSource string
	DefaultSchema string

	MaxIntermediateRows int64         // default 100000
	QueryTimeout        time.Duration // default 300s
	FetchSize           int           // default 1000
	// MaxConcurrentQueries bounds how many Execute calls run at once; spec
	// §5 requires supporting at least 100 concurrently, so that is the
	// default.
	MaxConcurrentQueries int

	Logger *logrus.Logger
}

// Processor is the single entry point translate and execute requests come
// through.
type Processor struct {
	catalog       *catalog.Catalog
	router        rowexec.SourceRouter
	weights       optimizer.Weights
	defaultSource string
	defaultSchema string

	maxIntermediateRows int64
	queryTimeout        time.Duration
	fetchSize           int
	logger              *logrus.Logger

	sem  chan struct{}
	list *ProcessList
}

// NewProcessor builds a Processor, applying spec §6's documented defaults
// to any zero-valued option.
func NewProcessor(opts Options) *Processor {
	if opts.FetchSize <= 0 {
		opts.FetchSize = 1000
	}
	if opts.MaxIntermediateRows <= 0 {
		opts.MaxIntermediateRows = 100000
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 300 * time.Second
	}
	if opts.MaxConcurrentQueries <= 0 {
		opts.MaxConcurrentQueries = 100
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Processor{
		catalog:              opts.Catalog,
		router:               opts.Router,
		weights:              opts.Weights,
		defaultSource:        opts.DefaultSource,
		defaultSchema:        opts.DefaultSchema,
		maxIntermediateRows:  opts.MaxIntermediateRows,
		queryTimeout:         opts.QueryTimeout,
		fetchSize:            opts.FetchSize,
		logger:               opts.Logger,
		sem:                  make(chan struct{}, opts.MaxConcurrentQueries),
		list:                 newProcessList(),
	}
}

// ProcessList exposes every query the Processor currently knows about.
func (p *Processor) ProcessList() *ProcessList { return p.list }

// Cancel requests cancellation of the named in-flight query, reporting
// whether it was found.
func (p *Processor) Cancel(queryID string) bool {
	q, ok := p.list.Lookup(queryID)
	if !ok {
		return false
	}
	q.Cancel()
	return true
}

// Translate runs the translate-only route (spec §4.1's translate(sql, from,
// to)) without touching the optimiser or executor.
func (p *Processor) Translate(ctx context.Context, sql string, from, to dialect.Dialect) (*dialect.TranslateResult, error) {
	id := uuid.NewString()
	logger := p.logger.WithFields(logrus.Fields{"query_id": id, "route": "translate"})
	logger.Info("translate started")

	res, err := dialect.Translate(sql, dialect.TranslateOptions{
		From: from, To: to,
		Catalog:       p.catalog,
		DefaultSource: p.defaultSource,
		DefaultSchema: p.defaultSchema,
	})
	if err != nil {
		err = attachQueryID(err, id)
		logger.WithError(err).Warn("translate failed")
		return nil, err
	}
	logger.Info("translate completed")
	return res, nil
}

// Execute runs the full parse->validate->optimise->execute pipeline and
// returns a ResultSet the caller pulls frames from. It blocks until a
// concurrency slot is available or ctx is done.
func (p *Processor) Execute(ctx context.Context, session *core.Session, sql string) (*ResultSet, error) {
	id := uuid.NewString()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, core.NewErrorf(core.KindCancelled, "cancelled while waiting for a concurrency slot").WithQueryID(id)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	q := newQuery(id, sql, session, cancel)
	p.list.add(q)
	logger := p.logger.WithFields(queryLogFields(q))
	logger.Info("query accepted")

	release := func() {
		cancel()
		p.release(q)
	}

	q.setState(StateRunning)

	t0 := time.Now()
	tree, err := dialect.NewParser(sql).Parse()
	q.ParseDuration.Store(int64(time.Since(t0)))
	if err != nil {
		q.setState(StateFailed)
		release()
		err = attachQueryID(err, id)
		logger.WithError(err).Warn("query failed to parse")
		return nil, err
	}

	v := dialect.NewValidator(p.catalog, p.defaultSource, p.defaultSchema)
	if _, err = v.Validate(tree); err != nil {
		q.setState(StateFailed)
		release()
		err = attachQueryID(err, id)
		logger.WithError(err).Warn("query failed validation")
		return nil, err
	}

	t1 := time.Now()
	pt, err := optimizer.Optimize(tree, optimizer.Options{
		Catalog: p.catalog, Weights: p.weights,
		DefaultSource: p.defaultSource, DefaultSchema: p.defaultSchema,
	})
	q.OptimiseDuration.Store(int64(time.Since(t1)))
	if err != nil {
		q.setState(StateFailed)
		release()
		err = attachQueryID(err, id)
		logger.WithError(err).Warn("query failed to optimise")
		return nil, err
	}

	budget := rowexec.NewRowBudget(p.maxIntermediateRows)
	it, err := rowexec.Build(pt, p.router, budget)
	if err != nil {
		q.setState(StateFailed)
		release()
		err = attachQueryID(err, id)
		logger.WithError(err).Warn("query failed to build executor")
		return nil, err
	}

	qctx := core.NewContext(timeoutCtx, id, session, p.logger)
	execStart := time.Now()
	if err := it.Open(qctx); err != nil {
		q.setState(StateFailed)
		release()
		err = attachQueryID(err, id)
		logger.WithError(err).Warn("query failed to open executor")
		return nil, err
	}

	logger.Info("query running")
	return &ResultSet{
		proc: p, query: q, qctx: qctx, cancel: cancel,
		it: it, schema: pt.Root.Schema(), budget: budget,
		fetchSize: p.fetchSize, execStart: execStart,
	}, nil
}

// release frees q's concurrency slot and drops it from the process list.
// Called exactly once per query, either on an early failure before a
// ResultSet exists or from ResultSet.Close.
func (p *Processor) release(q *Query) {
	<-p.sem
	p.list.Remove(q.ID)
}

// attachQueryID stamps id onto err if it is (or wraps) a *core.Error,
// otherwise wraps it as an InternalError carrying the id -- every error
// leaving the processor must carry its query id (spec §3/§7).
func attachQueryID(err error, id string) error {
	var ie *core.Error
	if errors.As(err, &ie) {
		return ie.WithQueryID(id)
	}
	return core.Wrapf(core.KindInternalError, err, "unexpected processor error").WithQueryID(id)
}
