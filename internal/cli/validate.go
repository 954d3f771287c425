package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lumo/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Types    int                        `json:"types"`
	Scenes   int                        `json:"scenes"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []SceneWarning             `json:"warnings,omitempty"`
}

// SceneWarning is a link cycle found in a scene. Cycles are legal, the
// router skips the re-entering branch, but they are usually wiring
// mistakes.
type SceneWarning struct {
	Scene string `json:"scene"`
	compiler.CycleWarning
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <catalog-dir> [scene.xml...]",
		Short: "Validate a node catalog and scene files against it",
		Long: `Validate a CUE node-type catalog and, optionally, scene files.

Catalog checks: slot names unique per place, known payload types,
pass-through pairs, accept_many only on inputs, slotless types dynamic.
Scene checks: unique ids, known node types, parents before children,
links between compatible slots, single inputs with at most one link.
Link cycles in scenes are reported as warnings.

Exit codes:
  0 - Everything valid
  1 - Validation problems found
  2 - Command error (catalog not found, CUE does not compile, etc.)

Examples:
  lumo validate ./catalog
  lumo validate ./catalog scenes/*.xml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], args[1:], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, catalogDir string, scenes []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cat, problems, err := LoadCatalog(catalogDir)
	if err != nil {
		code, msg := loadErrorParts(err)
		_ = f.Error(code, msg, nil)
		return WrapExitError(ExitCommandError, "load catalog", err)
	}
	f.VerboseLog("Compiled %d node type(s) from %s", len(cat.Types), catalogDir)

	result := ValidationResult{Types: len(cat.Types), Scenes: len(scenes), Errors: problems}
	for _, path := range scenes {
		doc, err := LoadScene(path)
		if err != nil {
			code, msg := loadErrorParts(err)
			result.Errors = append(result.Errors, compiler.ValidationError{Field: path, Message: msg, Code: code})
			continue
		}
		f.VerboseLog("Validating scene %s: %d node(s), %d link(s)", path, len(doc.Nodes), len(doc.Links))
		for _, p := range compiler.ValidateDocument(doc, cat) {
			p.Field = path + ": " + p.Field
			result.Errors = append(result.Errors, p)
		}
		for _, w := range compiler.DetectLinkCycles(doc) {
			result.Warnings = append(result.Warnings, SceneWarning{Scene: path, CycleWarning: w})
		}
	}
	result.Valid = len(result.Errors) == 0

	if f.JSON() {
		if result.Valid {
			return f.Success(result)
		}
		first := result.Errors[0]
		if err := f.Failure(first.Code, first.Message, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	w := f.Writer
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "! %s: %s\n", warn.Scene, warn.Message)
	}
	if result.Valid {
		fmt.Fprintf(w, "✓ Catalog valid: %d node type(s), %d scene(s)\n", result.Types, result.Scenes)
		return nil
	}
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s %s: %s\n", e.Code, e.Field, e.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
