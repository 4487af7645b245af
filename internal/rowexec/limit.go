package rowexec

import "github.com/intellisql/intellisql/internal/core"

// limitIter skips Offset rows and then yields at most Count rows.
type limitIter struct {
	input     core.RowIter
	count     int64
	offset    int64
	hasCount  bool
	hasOffset bool

	skipped int64
	emitted int64
}

func (l *limitIter) Open(ctx *core.Context) error { return l.input.Open(ctx) }

func (l *limitIter) Next(ctx *core.Context) (core.Row, error) {
	if l.hasCount && l.emitted >= l.count {
		return nil, EOF
	}
	for l.hasOffset && l.skipped < l.offset {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		if _, err := l.input.Next(ctx); err != nil {
			return nil, err
		}
		l.skipped++
	}
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	row, err := l.input.Next(ctx)
	if err != nil {
		return nil, err
	}
	l.emitted++
	return row, nil
}

func (l *limitIter) Close(ctx *core.Context) error { return l.input.Close(ctx) }
