package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/beacon/internal/engine"
	"github.com/roach88/beacon/internal/event"
	"github.com/roach88/beacon/internal/ident"
	"github.com/roach88/beacon/internal/store"
	"github.com/roach88/beacon/internal/testutil"
)

// Default scenario intervals.
const (
	DefaultCheckInterval     = 2 * time.Second
	DefaultHeartbeatInterval = time.Hour
)

// Harness is the scenario execution environment.
// Everything except the engine outlives a "restart" step.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	engine   *engine.Engine
	clock    *testutil.ManualClock
	sender   *testutil.ScriptedSender
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. An error
// is returned only when the scenario could not be executed; failed
// assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario: scenario,
		store:    st,
		clock:    testutil.NewManualClock(time.Time{}),
		sender:   testutil.NewScriptedSender(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.engine = h.newEngine()

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Do, err)
		}
		result.Trace = append(result.Trace, h.snapshot(i, step.Do))
	}

	for _, msg := range h.evaluate(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) newEngine() *engine.Engine {
	s := h.scenario
	check := s.CheckInterval
	if check == 0 {
		check = DefaultCheckInterval
	}
	heartbeat := s.HeartbeatInterval
	if heartbeat == 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return engine.New(h.sender, h.store, h.store, ident.NewSimulated(s.Device.info()),
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
		engine.WithIDGenerator(engine.NewFixedGenerator("sdk-1")),
		engine.WithCheckServerInterval(check),
		engine.WithHeartbeatInterval(heartbeat),
		engine.WithPlatformInfo(event.PlatformInfo{DeviceModel: "scenario", OSName: "linux"}),
	)
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	e := h.engine
	switch step.Do {
	case StepStart:
		return e.Start(ctx)
	case StepTick:
		n := step.Count
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			e.Tick(ctx)
		}
	case StepAdvance:
		h.clock.Advance(step.Duration)
	case StepTrack:
		body := make(event.Fields, len(step.Event))
		for k, v := range step.Event {
			body[k] = v
		}
		e.Track(body)
	case StepFailSends:
		h.sender.FailSends(step.Count, testutil.ErrScriptedOffline)
	case StepFailProbes:
		h.sender.FailProbes(step.Count, testutil.ErrScriptedOffline)
	case StepHold:
		h.sender.Hold()
	case StepRelease:
		h.sender.Release()
	case StepPause:
		e.SetPaused(ctx, true)
	case StepResume:
		e.SetPaused(ctx, false)
	case StepSuspend:
		e.Suspend(ctx)
	case StepSetID:
		t, _ := lookupID(step.ID)
		e.SetID(t, step.Value)
	case StepClearID:
		t, _ := lookupID(step.ID)
		e.ClearID(t)
	case StepClose:
		e.Close(ctx)
	case StepRestart:
		// The old engine is dropped without closing, like a killed process.
		h.engine = h.newEngine()
	default:
		return errors.New("unknown step")
	}
	return nil
}

func (h *Harness) snapshot(seq int, step string) TraceEvent {
	e := h.engine
	return TraceEvent{
		Seq:       seq,
		Step:      step,
		State:     e.State().String(),
		Pending:   e.PendingLen(),
		InFlight:  e.InFlightLen(),
		Sends:     h.sender.Sends(),
		Probes:    h.sender.Probes(),
		Available: e.ServerAvailable(),
	}
}
