package optimizer

import (
	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/dialect"
)

// Options configures a single Optimize call.
type Options struct {
	Catalog       *catalog.Catalog
	Weights       Weights
	DefaultSource string
	DefaultSchema string
}

// Optimize runs the full two-phase pipeline over a parsed and validated
// logical tree: the fixed-order RBO rewrite, then the cost-based phase
// that chooses join algorithms and annotates every node with an estimated
// Cost.
func Optimize(tree *dialect.LogicalTree, opts Options) (*PhysicalTree, error) {
	weights := opts.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}

	rewritten, hints, err := RuleBasedRewrite(tree)
	if err != nil {
		return nil, err
	}

	return Build(rewritten.Root, opts.Catalog, weights, hints, opts.DefaultSource, opts.DefaultSchema)
}
