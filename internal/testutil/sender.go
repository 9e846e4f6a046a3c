package testutil

import (
	"context"
	"sync"

	"github.com/roach88/beacon/internal/transport"
)

// ErrScriptedOffline is the default failure of a ScriptedSender.
var ErrScriptedOffline = &transport.Error{Kind: transport.KindOffline, Message: "scripted offline"}

// OKPayload is the body reported for scripted successes.
var OKPayload = map[string]any{"status": "ok"}

// ScriptedSender stands in for the transport in engine tests.
//
// Each Send or CheckAvailability consumes the next scripted result for that
// call; an exhausted script succeeds. Outcomes are delivered at once unless
// the sender is held, in which case they wait for Release.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedSender struct {
	mu     sync.Mutex
	sends  []error
	probes []error
	held   bool
	queued []delivery

	bodies     []string
	probeCount int
}

type delivery struct {
	ch  chan transport.Outcome
	out transport.Outcome
}

func NewScriptedSender() *ScriptedSender {
	return &ScriptedSender{}
}

// FailSends makes the next n sends fail with err, or ErrScriptedOffline when
// err is nil.
func (s *ScriptedSender) FailSends(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = appendFailures(s.sends, n, err)
}

// FailProbes is FailSends for availability probes.
func (s *ScriptedSender) FailProbes(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = appendFailures(s.probes, n, err)
}

func appendFailures(script []error, n int, err error) []error {
	if err == nil {
		err = ErrScriptedOffline
	}
	for i := 0; i < n; i++ {
		script = append(script, err)
	}
	return script
}

// Hold keeps outcomes back until Release.
func (s *ScriptedSender) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = true
}

// Release delivers held outcomes, stops holding, and returns how many were
// delivered.
func (s *ScriptedSender) Release() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = false
	n := len(s.queued)
	for _, d := range s.queued {
		d.ch <- d.out
	}
	s.queued = nil
	return n
}

func (s *ScriptedSender) Send(_ context.Context, batch transport.Renderer) <-chan transport.Outcome {
	body := batch.Render()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies = append(s.bodies, body)
	var err error
	if len(s.sends) > 0 {
		err, s.sends = s.sends[0], s.sends[1:]
	}
	return s.deliver(err)
}

func (s *ScriptedSender) CheckAvailability(context.Context) <-chan transport.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeCount++
	var err error
	if len(s.probes) > 0 {
		err, s.probes = s.probes[0], s.probes[1:]
	}
	return s.deliver(err)
}

// deliver must be called with s.mu held.
func (s *ScriptedSender) deliver(err error) <-chan transport.Outcome {
	out := transport.Outcome{Status: 200, Payload: OKPayload}
	if err != nil {
		out = transport.Outcome{Err: err}
	}
	ch := make(chan transport.Outcome, 1)
	if s.held {
		s.queued = append(s.queued, delivery{ch: ch, out: out})
	} else {
		ch <- out
	}
	return ch
}

// Bodies returns every rendered batch passed to Send, in order.
func (s *ScriptedSender) Bodies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies...)
}

func (s *ScriptedSender) Sends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func (s *ScriptedSender) Probes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probeCount
}

// Calls counts sends and probes together, i.e. network round trips.
func (s *ScriptedSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies) + s.probeCount
}
