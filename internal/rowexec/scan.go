package rowexec

import (
	"github.com/intellisql/intellisql/internal/connector"
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/optimizer"
)

// scanIter is the leaf operator: it opens one connector-backed scan per
// Open/Close lifecycle and streams whatever rows the connector's Iterator
// yields, honouring the Pushdown the optimiser decided.
type scanIter struct {
	plan   *optimizer.PhysicalScan
	router SourceRouter

	iter   connector.Iterator
	handle connector.Handle
}

func newScanIter(plan *optimizer.PhysicalScan, router SourceRouter) *scanIter {
	return &scanIter{plan: plan, router: router}
}

func (s *scanIter) Open(ctx *core.Context) error {
	iter, handle, err := s.router.Scan(ctx, s.plan.Table, s.plan.Pushdown)
	if err != nil {
		return err
	}
	s.iter = iter
	s.handle = handle
	return nil
}

func (s *scanIter) Next(ctx *core.Context) (core.Row, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	return s.iter.Next(ctx.Context)
}

func (s *scanIter) Close(ctx *core.Context) error {
	if s.iter == nil {
		return nil
	}
	if ctx.Cancelled() && s.handle != nil {
		_ = s.router.Cancel(s.plan.Table, s.handle)
	}
	return s.iter.Close()
}
