package cli

import (
	"bytes"
	"testing"
)

const (
	renderCatalog = "../harness/testdata/catalogs/render"
	scenariosDir  = "../harness/testdata/scenarios"
	chainScene    = "testdata/scenes/chain.xml"
)

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
