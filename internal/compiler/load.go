package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/lumo/internal/ir"
)

// LoadCatalog builds the CUE package in dir, compiles it with
// CompileCatalog and validates the result. Validation problems are
// returned together as one error.
func LoadCatalog(dir string) (*ir.Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog directory: %s is not a directory", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("catalog %s: no CUE instances loaded", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("catalog %s: %w", dir, formatCUEError(inst.Err))
	}

	v := cuecontext.New().BuildInstance(inst)
	cat, err := CompileCatalog(v)
	if err != nil {
		return nil, err
	}
	if verrs := ValidateNodeTypes(cat.Types); len(verrs) > 0 {
		return cat, &CatalogError{Dir: dir, Problems: verrs}
	}
	return cat, nil
}

// CatalogError lists the validation problems of a compiled catalog.
type CatalogError struct {
	Dir      string
	Problems []ValidationError
}

func (e *CatalogError) Error() string {
	msg := fmt.Sprintf("catalog %s: %d problem(s)", e.Dir, len(e.Problems))
	for _, p := range e.Problems {
		msg += "\n  " + p.Error()
	}
	return msg
}
