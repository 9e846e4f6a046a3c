package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/beacon/internal/harness"
)

// ScenarioReport is the JSON payload of the scenario command.
type ScenarioReport struct {
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Results []ScenarioResult `json:"results"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	File   string   `json:"file"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenario <file.yaml>...",
		Short: "Run engine scenarios against a simulated collector",
		Long: `Drive the delivery engine through scripted scenarios with a manual clock
and a scripted collector, then check their assertions. No network or data
directory is used.

Example:
  beacon scenario testdata/scenarios/*.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(rootOpts, args, cmd)
		},
	}
}

func runScenarios(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	var report ScenarioReport
	var text strings.Builder
	for _, path := range paths {
		res := runScenarioFile(path)
		if res.Pass {
			report.Passed++
			fmt.Fprintf(&text, "PASS %s\n", path)
		} else {
			report.Failed++
			fmt.Fprintf(&text, "FAIL %s\n", path)
			for _, e := range res.Errors {
				fmt.Fprintf(&text, "  %s\n", e)
			}
		}
		formatter.VerboseLog("ran %s", path)
		report.Results = append(report.Results, res)
	}
	fmt.Fprintf(&text, "%d passed, %d failed", report.Passed, report.Failed)

	if err := formatter.Result(report, text.String()); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenarios failed", report.Failed))
	}
	return nil
}

func runScenarioFile(path string) ScenarioResult {
	res := ScenarioResult{File: path}
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		res.Errors = []string{err.Error()}
		return res
	}
	res.Name = scenario.Name

	result, err := harness.Run(scenario)
	if err != nil {
		res.Errors = []string{err.Error()}
		return res
	}
	res.Pass = result.Pass
	res.Errors = result.Errors
	return res
}
