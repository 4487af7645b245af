package datasource

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/intellisql/intellisql/internal/core"
)

// fixedSequenceBackOff hands out exactly the configured delays in order,
// then signals Stop -- the "3 retries, 1s/2s/4s" schedule, rather than
// backoff/v4's default exponential-jitter curve.
type fixedSequenceBackOff struct {
	delays []time.Duration
	next   int
}

func (f *fixedSequenceBackOff) NextBackOff() time.Duration {
	if f.next >= len(f.delays) {
		return backoff.Stop
	}
	d := f.delays[f.next]
	f.next++
	return d
}

func (f *fixedSequenceBackOff) Reset() { f.next = 0 }

// retry runs op, retrying only errors whose Kind is marked Retryable (spec's
// transient-connector-failure class), up to m.retryDelays' length more
// times with those exact delays between attempts. A non-retryable error
// returns immediately without consuming a retry.
func (m *Manager) retry(ctx context.Context, op func() error) error {
	seq := &fixedSequenceBackOff{delays: m.retryDelays}
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !core.AsKind(err).Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(seq, ctx))
}
