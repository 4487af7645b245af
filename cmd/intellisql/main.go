// Command intellisql is the CLI surface spec.md §6 describes: a
// translate-only mode and a file-execution mode, built with cobra the way
// Pieczasz-smf/cmd structures its commands (a root command, a flag struct,
// and a RunE closure); output is written directly with fmt.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/intellisql/intellisql/internal/catalog"
	"github.com/intellisql/intellisql/internal/config"
	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/datasource"
	"github.com/intellisql/intellisql/internal/dialect"
	"github.com/intellisql/intellisql/internal/processor"
)

type rootFlags struct {
	translate bool
	from      string
	to        string
	file      string
	config    string
}

func main() {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "intellisql [sql]",
		Short: "Federated SQL middleware CLI",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(flags, args)
		},
	}

	cmd.Flags().BoolVar(&flags.translate, "translate", false, "Translate the given SQL statement and print the result")
	cmd.Flags().StringVar(&flags.from, "from", "mysql", "Source dialect")
	cmd.Flags().StringVar(&flags.to, "to", "mysql", "Target dialect")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "Execute statements from a file, one result per statement")
	cmd.Flags().StringVar(&flags.config, "config", "intellisql.yaml", "Path to the data source configuration file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(flags *rootFlags, args []string) error {
	switch {
	case flags.translate:
		if len(args) != 1 {
			return fmt.Errorf("--translate requires exactly one SQL statement argument")
		}
		return runTranslate(flags, args[0])
	case flags.file != "":
		return runFile(flags)
	default:
		return fmt.Errorf("one of --translate or -f <file> is required")
	}
}

func runTranslate(flags *rootFlags, sql string) error {
	from, ok := dialect.ParseDialect(flags.from)
	if !ok {
		return fmt.Errorf("unsupported source dialect: %s", flags.from)
	}
	to, ok := dialect.ParseDialect(flags.to)
	if !ok {
		return fmt.Errorf("unsupported target dialect: %s", flags.to)
	}

	proc := processor.NewProcessor(processor.Options{})
	res, err := proc.Translate(context.Background(), sql, from, to)
	if err != nil {
		return reportEngineError(err)
	}
	fmt.Println(res.SQL)
	return nil
}

func runFile(flags *rootFlags) error {
	f, err := os.Open(flags.file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", flags.file, err)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", flags.file, err)
	}

	proc, closeProc, err := buildProcessor(flags.config)
	if err != nil {
		return err
	}
	defer closeProc()

	statements := splitStatements(string(content))
	if len(statements) == 0 {
		fmt.Println("no SQL statements found")
		return nil
	}

	var firstErr error
	for i, stmt := range statements {
		fmt.Printf("--- statement %d ---\n", i+1)
		if err := executeOne(proc, stmt); err != nil {
			fmt.Fprintln(os.Stderr, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
	}
	if firstErr != nil {
		return fmt.Errorf("one or more statements failed")
	}
	return nil
}

func executeOne(proc *processor.Processor, sql string) error {
	rs, err := proc.Execute(context.Background(), nil, sql)
	if err != nil {
		return reportEngineError(err)
	}
	defer func() { _ = rs.Close() }()

	names := rs.Schema().Names()
	fmt.Println(strings.Join(names, "\t"))

	rowCount := 0
	for {
		frame, err := rs.NextFrame()
		if err != nil {
			return reportEngineError(err)
		}
		for _, row := range frame.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = v.String()
			}
			fmt.Println(strings.Join(cells, "\t"))
		}
		rowCount += len(frame.Rows)
		if frame.Done {
			if frame.Warning != "" {
				fmt.Fprintln(os.Stderr, "warning:", frame.Warning)
			}
			break
		}
	}
	fmt.Printf("(%d rows)\n", rowCount)
	return nil
}

// buildProcessor loads the data source configuration, registers every
// configured source in a new catalog, and wires a datasource.Manager as the
// executor's SourceRouter. It opens no connector and runs no schema
// discovery, so the catalog holds the sources but none of their schemas or
// tables.
func buildProcessor(configPath string) (*processor.Processor, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	cat := catalog.New()
	mgr := datasource.NewManager(cat)
	builder := catalog.NewBuilder()
	for _, src := range cfg.BuildSources() {
		builder.AddSource(src)
	}
	cat.Rebuild(builder)

	proc := processor.NewProcessor(processor.Options{
		Catalog:             cat,
		Router:              mgr,
		MaxIntermediateRows: cfg.Props.MaxIntermediateRows,
		FetchSize:           cfg.Props.DefaultFetchSize,
	})
	return proc, func() { _ = mgr.Close() }, nil
}

// splitStatements breaks a file's content into individual statements on
// every semicolon (including one inside a string literal or comment),
// dropping blank pieces, matching spec.md §6's "-f <file> ... one result per
// statement".
func splitStatements(content string) []string {
	var out []string
	for _, raw := range strings.Split(content, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// reportEngineError renders a *core.Error using the wire error taxonomy's
// visible fields (spec.md §7: sql-state, code, message, query id -- never a
// password).
func reportEngineError(err error) error {
	kind := core.AsKind(err)
	return fmt.Errorf("[%s/%s] %v", kind, kind.SQLState(), err)
}
