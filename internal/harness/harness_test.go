package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
			assert.Len(t, result.Trace, len(scenario.Steps))
		})
	}
}

func TestGoldenTraces(t *testing.T) {
	for _, name := range []string{"happy_path", "backoff"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
		})
	}
}

func TestRun_ReportsFailedAssertions(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong
steps:
  - do: start
  - do: tick
assertions:
  - {type: pending, count: 5}
  - {type: state, value: idle}
  - {type: batch_types, batch: 0, types: [platform]}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected 5, got 1")
	assert.Contains(t, result.Errors[1], `expected "idle", got "processing_pending"`)
	assert.Contains(t, result.Errors[2], "batch 0 not sent")
}

func TestRun_StepError(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: twice
steps:
  - do: start
  - do: start
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1 (start)")
}

func TestRun_ClosedEngine(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: closed
steps:
  - do: start
  - do: tick
  - do: close
  - do: tick
assertions:
  - {type: state, value: idle}
  - {type: sends, count: 0}
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "assertion failures: %v", result.Errors)
}

func TestMarshalTrace(t *testing.T) {
	result := NewResult()
	result.Trace = append(result.Trace, TraceEvent{Seq: 0, Step: "start", State: "resolving_device", Available: true})

	data, err := MarshalTrace("demo", result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name": "demo"`)
	assert.Contains(t, string(data), `"state": "resolving_device"`)
	assert.Equal(t, byte('\n'), data[len(data)-1])
}
