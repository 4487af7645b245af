package dialect

import (
	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/core"
)

// TranslateOptions configures one Translate call.
type TranslateOptions struct {
	From Dialect
	To   Dialect

	// Catalog, if non-nil, puts Translate in "online" mode: the parsed tree
	// is validated (identifier binding, type coercion) against it before
	// unparsing, per spec.md §4.1's online/offline distinction. Nil leaves
	// Translate in offline mode: syntax-only, no catalog lookups, no
	// guarantee the referenced tables exist.
	Catalog       *catalog.Catalog
	DefaultSource string
	DefaultSchema string
}

// TranslateResult is the outcome of one Translate call.
type TranslateResult struct {
	SQL  string
	Tree *LogicalTree
}

// Translate parses sql under opts.From, optionally validates it against
// opts.Catalog, and unparses it to opts.To, implementing spec.md §4.1's
// translate(sql, from, to) operation end to end.
func Translate(sql string, opts TranslateOptions) (*TranslateResult, error) {
	parser := NewParser(sql)
	tree, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	if opts.Catalog != nil {
		v := NewValidator(opts.Catalog, opts.DefaultSource, opts.DefaultSchema)
		if _, err := v.Validate(tree); err != nil {
			return nil, err
		}
	}

	unparser, err := NewUnparser(opts.To)
	if err != nil {
		return nil, err
	}
	out, err := unparser.Unparse(tree)
	if err != nil {
		return nil, err
	}
	return &TranslateResult{SQL: out, Tree: tree}, nil
}

// ParseOnly parses sql without unparsing or validating. d is not consulted:
// the permissive parser accepts every dialect's extensions.
func ParseOnly(sql string, d Dialect) (*LogicalTree, error) {
	return NewParser(sql).Parse()
}

// MustGetConverter wraps GetDialectConverter, turning its lookup failure
// into a *core.Error of kind UnsupportedFeature.
func MustGetConverter(d Dialect) (DialectConverter, error) {
	conv, err := GetDialectConverter(d)
	if err != nil {
		return nil, core.NewErrorf(core.KindUnsupportedFeature, "%s", err)
	}
	return conv, nil
}
