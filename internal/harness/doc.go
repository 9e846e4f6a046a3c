// Package harness runs YAML scenarios against the delivery engine.
//
// A scenario drives a real engine step by step with a manual clock, a
// scripted collector and an in-memory SQLite store. After every step the
// harness records a snapshot of the engine; after the last step it
// evaluates the assertions.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	device:
//	  platform: android        # generic | android | ios
//	  advertising_id: ad-1
//	  ad_tracking_enabled: false
//	check_interval: 2s
//	heartbeat_interval: 1h
//	steps:
//	  - do: start
//	  - do: track
//	    event: {type: revenue, amount: 4.99, currency: EUR}
//	  - do: fail_sends
//	    count: 1
//	  - do: tick
//	    count: 3
//	  - do: advance
//	    duration: 2s
//	assertions:
//	  - {type: sends, count: 2}
//	  - {type: batch_types, batch: 1, types: [platform, revenue, heartbeat]}
//	  - {type: server_available, value: "true"}
//
// # Steps
//
//   - start, tick, pause, resume, close: the engine call of that name
//   - suspend: what the CLI does on exit, pausing and handing back a batch
//   - advance: move the clock
//   - track: queue the given event body
//   - set_id, clear_id: change an identity by name (facebook, custom, ...)
//   - fail_sends, fail_probes: make the next count collector calls fail
//   - hold, release: keep collector outcomes back, then deliver them
//   - restart: replace the engine, keeping store, clock and collector
//
// # Assertions
//
//   - sends, probes: collector call counts
//   - pending, in_flight, persisted: record counts
//   - state, server_available: engine status
//   - batch_types: event types of one sent batch, in order
//   - id_value: current value of an identity
//
// # Golden Files
//
// RunWithGolden compares the step trace against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
