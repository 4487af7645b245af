// Package optimizer implements IntelliSql's two-phase query optimiser: a
// fixed-order rule-based rewrite over the logical tree, followed by a
// cost-based phase that chooses physical join algorithms and access paths
// from a four-factor cost model.
package optimizer

import "github.com/intellisql/intellisql/internal/catalog"

// Weights is the four-factor cost model: CPU, I/O, network, and memory,
// each independently tunable with documented defaults.
type Weights struct {
	CPU     float64
	IO      float64
	Network float64
	Memory  float64
}

// DefaultWeights returns the documented 1/10/100/5 weights.
func DefaultWeights() Weights {
	return Weights{CPU: 1, IO: 10, Network: 100, Memory: 5}
}

// Cost is the four-factor estimate attached to every PhysicalNode.
type Cost struct {
	CPU     float64
	IO      float64
	Network float64
	Memory  float64

	// UsedDefaultStatistics records whether this estimate was built from
	// the documented fallback defaults rather than real catalog
	// statistics, so the plan can surface that in diagnostics when it
	// drove a plan choice.
	UsedDefaultStatistics bool
}

// Total weighs and sums the four factors.
func (c Cost) Total(w Weights) float64 {
	return c.CPU*w.CPU + c.IO*w.IO + c.Network*w.Network + c.Memory*w.Memory
}

// Add combines two costs component-wise (used when composing a parent's
// cost from its children plus its own work).
func (c Cost) Add(o Cost) Cost {
	return Cost{
		CPU:                   c.CPU + o.CPU,
		IO:                    c.IO + o.IO,
		Network:               c.Network + o.Network,
		Memory:                c.Memory + o.Memory,
		UsedDefaultStatistics: c.UsedDefaultStatistics || o.UsedDefaultStatistics,
	}
}

// sourceStats resolves a table's statistics, falling back to the documented
// defaults (10000 rows, rowcount/10 distinct, 0.1 selectivity) when the
// catalog has none recorded, and reports whether it did so.
func sourceStats(t *catalog.Table) (*catalog.Statistics, bool) {
	if t.Stats != nil {
		return t.Stats, false
	}
	return catalog.DefaultStatistics(t.Columns), true
}

// scanCost estimates the cost of a full source-side scan of rowCount rows,
// each crossing the network back to the engine, local to the source
// (crossSource=false) or remote (crossSource=true).
func scanCost(rowCount int64, crossSource bool) Cost {
	c := Cost{IO: float64(rowCount)}
	if crossSource {
		c.Network = float64(rowCount)
	}
	return c
}

// filterCost estimates the CPU cost of evaluating a predicate over rowCount
// candidate rows.
func filterCost(rowCount int64) Cost {
	return Cost{CPU: float64(rowCount)}
}

// hashJoinCost estimates building a hash table over the build side
// (materialised in Memory) and probing it once per probe-side row (CPU),
// plus the network cost of shipping the build side to the engine if it
// originates from a different source than the probe side.
func hashJoinCost(buildRows, probeRows int64, buildCrossSource bool) Cost {
	c := Cost{CPU: float64(probeRows), Memory: float64(buildRows)}
	if buildCrossSource {
		c.Network += float64(buildRows)
	}
	return c
}

// nestedLoopJoinCost estimates the CPU cost of probing the inner side once
// per outer row; cheap only when the inner side is small (e.g. already
// filtered down to a handful of rows), which is exactly when the CBO phase
// prefers it over a hash join.
func nestedLoopJoinCost(outerRows, innerRows int64, innerCrossSource bool) Cost {
	c := Cost{CPU: float64(outerRows) * float64(innerRows)}
	if innerCrossSource {
		c.Network += float64(outerRows) * float64(innerRows)
	}
	return c
}
