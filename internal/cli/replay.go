package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/lumo/internal/engine"
	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/library"
	"github.com/roach88/lumo/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	DB      string
	To      int64
	Catalog string
}

// ReplayResult is the outcome of a replay.
type ReplayResult struct {
	Links store.LinkReplay `json:"links"`

	// Restore is set when the session was also rebuilt through the engine.
	Restore *engine.RestoreStats `json:"restore,omitempty"`

	// Missing and Extra list link ends ("node:slot->node:slot") the
	// restored graph lacks or has on top of the journal's link set.
	Missing []string `json:"missing,omitempty"`
	Extra   []string `json:"extra,omitempty"`
}

// Consistent reports whether the restored graph matches the journal.
func (r ReplayResult) Consistent() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the link set from a journal database",
		Long: `Rebuild the graph's links from a journal database: the newest
snapshot at or before --to, then every successful link-changing entry
after it.

With --catalog the whole session is also restored into a fresh graph by
re-applying the journal through the engine, and its links are compared
with the journal's. --to cannot be combined with --catalog, a restore
always runs to the end of the journal.

Exit codes:
  0 - Replay succeeded (and the restored graph matches)
  1 - The restored graph diverges from the journal
  2 - Command error (database missing or unreadable, bad catalog)

Examples:
  lumo replay --db session.db
  lumo replay --db session.db --to 42
  lumo replay --db session.db --catalog ./catalog --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "journal database path (required)")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "replay up to this seq (default: whole journal)")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "catalog directory; restores the session and checks it")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	if opts.Catalog != "" && opts.To > 0 {
		return f.fail(ExitCommandError, ErrCodeGeneric, "--to cannot be combined with --catalog", nil)
	}

	var lib *library.Library
	if opts.Catalog != "" {
		cat, problems, err := LoadCatalog(opts.Catalog)
		if err != nil {
			code, msg := loadErrorParts(err)
			return f.fail(ExitCommandError, code, msg, nil)
		}
		if len(problems) > 0 {
			return f.fail(ExitCommandError, problems[0].Code,
				fmt.Sprintf("catalog has %d problem(s), run validate", len(problems)), nil)
		}
		if lib, err = library.New(cat); err != nil {
			return f.fail(ExitCommandError, ErrCodeLoadFailed, "build node library", err)
		}
	}

	st, err := store.Open(opts.DB)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeDatabase, "open database", err)
	}
	defer st.Close()

	links, err := st.ReplayLinks(ctx, opts.To)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeDatabase, "replay journal", err)
	}
	result := ReplayResult{Links: links}
	opts.logger().Debug("links replayed", "to_seq", links.ToSeq, "applied", links.Applied, "links", len(links.Links))

	if lib != nil {
		g := graph.New(graph.WithLogger(opts.logger()), graph.WithPalette(lib.Palette()))
		_, stats, err := engine.Restore(ctx, st, g, lib, engine.WithLogger(opts.logger()))
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeReplay, "restore session", err)
		}
		result.Restore = &stats
		result.Missing, result.Extra = diffLinkEnds(linkEnds(links.Links), linkEnds(g.Snapshot().Links))
	}

	if f.JSON() {
		if !result.Consistent() {
			if err := f.Failure(ErrCodeReplay, "restored graph diverges from the journal", result); err != nil {
				return err
			}
			return NewExitError(ExitFailure, "restored graph diverges from the journal")
		}
		return f.Success(result)
	}
	return outputReplayText(f, result)
}

// linkEnds renders links by their ends, sorted. Link ids are left out:
// a restored graph allocates fresh ones.
func linkEnds(links []ir.LinkRecord) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.From.String()+"->"+l.To.String())
	}
	slices.Sort(out)
	return out
}

// diffLinkEnds returns the ends in want but not got, and in got but not
// want. Both must be sorted.
func diffLinkEnds(want, got []string) (missing, extra []string) {
	i, j := 0, 0
	for i < len(want) && j < len(got) {
		switch {
		case want[i] == got[j]:
			i++
			j++
		case want[i] < got[j]:
			missing = append(missing, want[i])
			i++
		default:
			extra = append(extra, got[j])
			j++
		}
	}
	missing = append(missing, want[i:]...)
	extra = append(extra, got[j:]...)
	return missing, extra
}

func outputReplayText(f *OutputFormatter, r ReplayResult) error {
	w := f.Writer
	from := "empty graph"
	if r.Links.Snapshot != "" {
		from = fmt.Sprintf("snapshot %s (seq %d)", r.Links.Snapshot, r.Links.FromSeq)
	}
	fmt.Fprintf(w, "Replayed from %s to seq %d: %d applied, %d skipped\n",
		from, r.Links.ToSeq, r.Links.Applied, r.Links.Skipped)
	fmt.Fprintf(w, "\nLinks (%d):\n", len(r.Links.Links))
	for _, l := range r.Links.Links {
		fmt.Fprintf(w, "  %d: %s -> %s\n", l.ID, l.From, l.To)
	}

	if r.Restore == nil {
		return nil
	}
	s := r.Restore
	fmt.Fprintf(w, "\nRestored: %d replayed, %d skipped, %d failed\n", s.Replayed, s.Skipped, s.Failed)
	if r.Consistent() {
		fmt.Fprintln(w, "✓ Restored graph matches the journal")
		return nil
	}
	fmt.Fprintln(w, "✗ Restored graph diverges from the journal")
	for _, m := range r.Missing {
		fmt.Fprintf(w, "  missing %s\n", m)
	}
	for _, e := range r.Extra {
		fmt.Fprintf(w, "  extra   %s\n", e)
	}
	return NewExitError(ExitFailure, "restored graph diverges from the journal")
}
