package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/lumo/internal/harness"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/queryir"
	"github.com/roach88/lumo/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	DB   string
	From int64
	To   int64
	Kind string
}

// TraceResult is the JSON payload of the trace command.
type TraceResult struct {
	Scenario string               `json:"scenario,omitempty"`
	Pass     *bool                `json:"pass,omitempty"`
	Errors   []string             `json:"errors,omitempty"`
	Trace    []harness.TraceEvent `json:"trace"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [scenario.yaml]",
		Short: "Print the command trace of a scenario or a journal",
		Long: `Print every journaled command with the deliveries it caused.

With a scenario argument the scenario is run and its trace printed, the
same text golden files hold. With --db as well, the run is journaled to
that database, which must be empty.

Without a scenario, --db is read back: --from, --to and --kind narrow the
entries shown. Hook calls are not stored, so journal traces carry
deliveries only.

Examples:
  lumo trace testdata/scenarios/chain_propagation.yaml
  lumo trace testdata/scenarios/chain_propagation.yaml --db session.db
  lumo trace --db session.db --kind notify --from 10`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runTraceScenario(opts, args[0], cmd)
			}
			return runTraceJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "journal database path")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first seq to show (journal mode)")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "last seq to show (journal mode)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show entries of this kind (journal mode)")

	return cmd
}

func runTraceScenario(opts *TraceOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	s, err := harness.LoadScenario(path)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeLoadFailed, "load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(opts.logger())}
	if opts.DB != "" {
		st, err := store.Open(opts.DB)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeDatabase, "open database", err)
		}
		defer st.Close()
		last, err := st.LastSeq(cmd.Context())
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeDatabase, "read database", err)
		}
		if last > 0 {
			return f.fail(ExitCommandError, ErrCodeDatabase,
				fmt.Sprintf("database %s already holds %d journal entries", opts.DB, last), nil)
		}
		runOpts = append(runOpts, harness.WithStore(st))
	}

	result, err := harness.Run(s, runOpts...)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "run scenario", err)
	}

	if f.JSON() {
		out := TraceResult{Scenario: s.Name, Pass: &result.Pass, Errors: result.Errors, Trace: result.Trace}
		if !result.Pass {
			if err := f.Failure(ErrCodeTestFailed, "scenario failed", out); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "scenario failed")
		}
		return f.Success(out)
	}

	if err := harness.FormatTrace(f.Writer, result.Trace); err != nil {
		return err
	}
	if !result.Pass {
		fmt.Fprintln(f.Writer)
		for _, e := range result.Errors {
			fmt.Fprintf(f.Writer, "✗ %s\n", e)
		}
		return NewExitError(ExitFailure, "scenario failed")
	}
	return nil
}

func runTraceJournal(opts *TraceOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if opts.DB == "" {
		return f.fail(ExitCommandError, ErrCodeGeneric, "trace needs a scenario file or --db", nil)
	}
	if opts.Kind != "" && !slices.Contains(ir.JournalKinds, ir.JournalKind(opts.Kind)) {
		return f.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("unknown journal kind %q", opts.Kind), nil)
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeDatabase, "open database", err)
	}
	defer st.Close()

	trace, err := readJournalTrace(cmd.Context(), st, opts)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeDatabase, "read journal", err)
	}
	opts.logger().Debug("journal read", "db", opts.DB, "entries", len(trace))

	if f.JSON() {
		return f.Success(TraceResult{Trace: trace})
	}
	if len(trace) == 0 {
		fmt.Fprintln(f.Writer, "No journal entries.")
		return nil
	}
	return harness.FormatTrace(f.Writer, trace)
}

// readJournalTrace reads the entries selected by opts with their
// deliveries.
func readJournalTrace(ctx context.Context, st *store.Store, opts *TraceOptions) ([]harness.TraceEvent, error) {
	var preds []queryir.Predicate
	if opts.From > 0 || opts.To > 0 {
		seqs := queryir.Range{Field: "seq"}
		if opts.From > 0 {
			seqs.Min = ir.IRInt(opts.From)
		}
		if opts.To > 0 {
			seqs.Max = ir.IRInt(opts.To)
		}
		preds = append(preds, seqs)
	}
	if opts.Kind != "" {
		preds = append(preds, queryir.Equals{Field: "kind", Value: ir.IRString(opts.Kind)})
	}
	var filter queryir.Predicate
	switch len(preds) {
	case 0:
	case 1:
		filter = preds[0]
	default:
		filter = queryir.And{Predicates: preds}
	}

	entries, err := st.ReadJournal(ctx, filter)
	if err != nil {
		return nil, err
	}
	trace := make([]harness.TraceEvent, 0, len(entries))
	if len(entries) == 0 {
		return trace, nil
	}

	deliveries, err := st.ReadDeliveries(ctx, queryir.Range{
		Field: "journal_seq",
		Min:   ir.IRInt(entries[0].Seq),
		Max:   ir.IRInt(entries[len(entries)-1].Seq),
	})
	if err != nil {
		return nil, err
	}
	bySeq := make(map[int64][]ir.DeliveryRecord)
	for _, d := range deliveries {
		bySeq[d.JournalSeq] = append(bySeq[d.JournalSeq], d)
	}
	for _, e := range entries {
		trace = append(trace, harness.EventFromJournal(e, bySeq[e.Seq]))
	}
	return trace, nil
}
