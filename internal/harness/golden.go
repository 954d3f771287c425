package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden runs a scenario and compares its trace, in FormatTrace
// text form, with testdata/golden/<scenario.Name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass; goldie fails the test
// on a trace mismatch.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace with a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	var buf bytes.Buffer
	if err := FormatTrace(&buf, result.Trace); err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())
	return nil
}
