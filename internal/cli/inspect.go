package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lumo/internal/compiler"
	"github.com/roach88/lumo/internal/graph"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/library"
	"github.com/roach88/lumo/internal/scene"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Catalog string
}

// InspectResult describes one scene file.
type InspectResult struct {
	Scene   string                  `json:"scene"`
	Hash    string                  `json:"topology_hash"`
	Nodes   []NodeSummary           `json:"nodes"`
	Links   []LinkSummary           `json:"links"`
	Outputs []ir.OutputRecord       `json:"outputs,omitempty"`
	Cycles  []compiler.CycleWarning `json:"cycles,omitempty"`

	// Load is set when a catalog was given and the scene was loaded into
	// a graph.
	Load *scene.LoadReport `json:"load,omitempty"`
}

// NodeSummary is one node of an inspected scene.
type NodeSummary struct {
	ID      int64         `json:"id"`
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Parent  int64         `json:"parent,omitempty"`
	Pos     ir.Point      `json:"pos"`
	Inputs  []SlotSummary `json:"inputs"`
	Outputs []SlotSummary `json:"outputs"`
}

// SlotSummary is one slot of an inspected node.
type SlotSummary struct {
	ID      int64          `json:"id"`
	Name    string         `json:"name"`
	Type    ir.PayloadType `json:"type"`
	Binding uint32         `json:"binding"`
	Color   string         `json:"color"`
	Many    bool           `json:"accept_many,omitempty"`
}

// LinkSummary is one link of an inspected scene.
type LinkSummary struct {
	ID   int64          `json:"id"`
	From ir.SlotAddr    `json:"from"`
	To   ir.SlotAddr    `json:"to"`
	Type ir.PayloadType `json:"type,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <scene.xml>",
		Short: "Describe a scene file",
		Long: `Describe a scene file: nodes with their slots, links, output
selections, link cycles and the topology hash.

With --catalog the scene is also loaded into a graph the way the editor
loads it, and the load report (id conflicts, skipped records) is shown.

Examples:
  lumo inspect scene.xml
  lumo inspect scene.xml --catalog ./catalog --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "catalog directory to load the scene with")
	return cmd
}

func runInspect(opts *InspectOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	doc, err := LoadScene(path)
	if err != nil {
		code, msg := loadErrorParts(err)
		return f.fail(ExitCommandError, code, msg, nil)
	}

	palette := graph.DefaultPalette()
	var report *scene.LoadReport
	if opts.Catalog != "" {
		cat, problems, err := LoadCatalog(opts.Catalog)
		if err != nil {
			code, msg := loadErrorParts(err)
			return f.fail(ExitCommandError, code, msg, nil)
		}
		if len(problems) > 0 {
			return f.fail(ExitFailure, problems[0].Code,
				fmt.Sprintf("catalog has %d problem(s), run validate", len(problems)), nil)
		}
		lib, err := library.New(cat)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeLoadFailed, "build node library", err)
		}
		palette = lib.Palette()

		g := graph.New(graph.WithLogger(opts.logger()), graph.WithPalette(palette))
		report, err = scene.Load(g, doc, lib, scene.WithLogger(opts.logger()))
		if err != nil {
			return f.fail(ExitFailure, ErrCodeSceneFormat, "load scene", err)
		}
	}

	hash, err := ir.TopologyHash(doc)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "hash scene", err)
	}
	result := summarize(path, doc, palette)
	result.Hash = hash
	result.Cycles = compiler.DetectLinkCycles(doc)
	result.Load = report

	if f.JSON() {
		return f.Success(result)
	}
	writeInspectText(f.Writer, result)
	return nil
}

func summarize(path string, doc ir.Document, palette graph.Palette) InspectResult {
	result := InspectResult{
		Scene:   path,
		Nodes:   make([]NodeSummary, 0, len(doc.Nodes)),
		Links:   make([]LinkSummary, 0, len(doc.Links)),
		Outputs: doc.Outputs,
	}
	types := make(map[int64]ir.PayloadType)
	for _, n := range doc.Nodes {
		ns := NodeSummary{
			ID: n.ID, Name: n.Name, Type: n.Type, Parent: n.Parent, Pos: n.Pos,
			Inputs: []SlotSummary{}, Outputs: []SlotSummary{},
		}
		for _, s := range n.Slots {
			types[s.ID] = s.Type
			ss := SlotSummary{
				ID: s.ID, Name: s.Name, Type: s.Type, Binding: s.Binding,
				Color: palette.Color(s.Type).Hex(), Many: s.AcceptMany,
			}
			if s.Place == ir.PlaceInput {
				ns.Inputs = append(ns.Inputs, ss)
			} else {
				ns.Outputs = append(ns.Outputs, ss)
			}
		}
		result.Nodes = append(result.Nodes, ns)
	}
	for _, l := range doc.Links {
		result.Links = append(result.Links, LinkSummary{ID: l.ID, From: l.From, To: l.To, Type: types[l.From.Slot]})
	}
	return result
}

func writeInspectText(w io.Writer, r InspectResult) {
	fmt.Fprintf(w, "Scene: %s\n", r.Scene)
	fmt.Fprintf(w, "Topology: %s\n", r.Hash)
	fmt.Fprintf(w, "\nNodes (%d):\n", len(r.Nodes))
	for _, n := range r.Nodes {
		name := n.Type
		if n.Name != "" && n.Name != n.Type {
			name = fmt.Sprintf("%s %q", n.Type, n.Name)
		}
		parent := ""
		if n.Parent != 0 {
			parent = fmt.Sprintf(" parent=%d", n.Parent)
		}
		fmt.Fprintf(w, "  [%d] %s%s\n", n.ID, name, parent)
		for _, s := range n.Inputs {
			fmt.Fprintf(w, "    in  %d %s %s binding=%d%s\n", s.ID, s.Name, s.Type, s.Binding, manySuffix(s.Many))
		}
		for _, s := range n.Outputs {
			fmt.Fprintf(w, "    out %d %s %s binding=%d\n", s.ID, s.Name, s.Type, s.Binding)
		}
	}

	fmt.Fprintf(w, "\nLinks (%d):\n", len(r.Links))
	for _, l := range r.Links {
		fmt.Fprintf(w, "  %d: %s -> %s %s\n", l.ID, l.From, l.To, l.Type)
	}

	if len(r.Outputs) > 0 {
		fmt.Fprintln(w, "\nOutputs:")
		for _, o := range r.Outputs {
			fmt.Fprintf(w, "  %s: %s\n", o.Button, o.Slot)
		}
	}
	for _, c := range r.Cycles {
		fmt.Fprintf(w, "\n! %s\n", c.Message)
	}

	if r.Load != nil {
		fmt.Fprintf(w, "\nLoaded: %d node(s), %d link(s), %d output(s)\n", r.Load.Nodes, r.Load.Links, r.Load.Outputs)
		for _, c := range r.Load.Conflicts {
			fmt.Fprintf(w, "  conflict: %s %d (node %d) kept id %d\n", c.Kind, c.ID, c.Node, c.Kept)
		}
		for _, s := range r.Load.Skipped {
			fmt.Fprintf(w, "  skipped: %s %s: %s\n", s.Kind, s.Ref, strings.TrimSpace(s.Reason))
		}
	}
}

func manySuffix(many bool) string {
	if many {
		return " many"
	}
	return ""
}
