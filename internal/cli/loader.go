package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/roach88/lumo/internal/compiler"
	"github.com/roach88/lumo/internal/ir"
	"github.com/roach88/lumo/internal/scene"
)

// Error code constants, shared by all commands. Validation problems use
// the compiler's E1xx codes.
const (
	ErrCodeGeneric     = "E001" // generic/unknown error
	ErrCodeLoadFailed  = "E004" // CUE load or compile failed
	ErrCodeNotFound    = "E005" // path not found
	ErrCodeSceneFormat = "E008" // scene file is not a valid graph document
	ErrCodeDatabase    = "E009" // database cannot be opened or read
	ErrCodeTestFailed  = "E010" // one or more scenarios failed
	ErrCodeReplay      = "E011" // restored graph diverges from the journal
)

// LoadError is a failure to load an input file, with the code the CLI
// reports for it.
type LoadError struct {
	Code    string
	Message string
	Line    int // 1-based, 0 if unknown
	Err     error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadCatalog compiles and validates the CUE catalog in dir.
//
// Validation problems do not make it fail: the catalog is returned
// together with the problems so callers can report all of them. A nil
// catalog comes with a *LoadError.
func LoadCatalog(dir string) (*ir.Catalog, []compiler.ValidationError, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir), Err: err}
	}
	if !info.IsDir() {
		return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cat, err := compiler.LoadCatalog(dir)
	var catErr *compiler.CatalogError
	if errors.As(err, &catErr) {
		return cat, catErr.Problems, nil
	}
	if err != nil {
		return nil, nil, convertCompileError(err)
	}
	return cat, nil, nil
}

// LoadScene reads a scene file.
func LoadScene(path string) (ir.Document, error) {
	doc, err := scene.ReadFile(path)
	if err == nil {
		return doc, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return ir.Document{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scene file not found: %s", path), Err: err}
	}
	return ir.Document{}, &LoadError{Code: ErrCodeSceneFormat, Message: err.Error(), Err: err}
}

func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		le := &LoadError{Code: ErrCodeLoadFailed, Message: compileErr.Error(), Err: err}
		if compileErr.Pos.IsValid() {
			le.Line = compileErr.Pos.Line()
		}
		return le
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Err: err}
}

// loadErrorParts returns the code and message to report for err.
func loadErrorParts(err error) (string, string) {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code, le.Error()
	}
	return ErrCodeGeneric, err.Error()
}
