package engine

import (
	"context"
	"time"
)

// DefaultTickInterval is the tick period used when NewLoop gets zero.
const DefaultTickInterval = 200 * time.Millisecond

// Loop owns an Engine and runs it on a single goroutine.
//
// Thread-safety model:
//   - Do, Call, Pause, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Loop struct {
	engine   *Engine
	interval time.Duration
	mailbox  *mailbox
	done     chan struct{}
}

// NewLoop wraps e. The engine must not be used directly afterwards.
func NewLoop(e *Engine, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Loop{
		engine:   e,
		interval: interval,
		mailbox:  newMailbox(),
		done:     make(chan struct{}),
	}
}

// Do queues cmd. Commands run in submission order, between ticks.
func (l *Loop) Do(cmd Command) error {
	if !l.mailbox.Enqueue(cmd) {
		return ErrClosed
	}
	return nil
}

// Call runs cmd on the loop goroutine and waits for it to finish.
func (l *Loop) Call(ctx context.Context, cmd Command) error {
	finished := make(chan struct{})
	err := l.Do(func(ctx context.Context, e *Engine) {
		defer close(finished)
		cmd(ctx, e)
	})
	if err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause forwards the host's pause state.
func (l *Loop) Pause(paused bool) error {
	return l.Do(func(ctx context.Context, e *Engine) {
		e.SetPaused(ctx, paused)
	})
}

// Suspend forwards process exit: an outstanding batch is handed back and
// everything pending is persisted. Call it before Stop.
func (l *Loop) Suspend() error {
	return l.Do(func(ctx context.Context, e *Engine) {
		e.Suspend(ctx)
	})
}

// Stop makes Run return after it has run every accepted command.
func (l *Loop) Stop() {
	l.mailbox.Close()
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run ticks the engine and executes commands until ctx is cancelled or Stop
// is called. The engine is closed on the way out.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.engine.logger.Debug("loop starting", "interval", l.interval)

	for {
		select {
		case <-ctx.Done():
			l.shutdown(context.WithoutCancel(ctx))
			return ctx.Err()

		case <-ticker.C:
			l.engine.Tick(ctx)

		case <-l.mailbox.Wait():
			l.drain(ctx)
			if l.mailbox.Closed() {
				l.shutdown(ctx)
				return nil
			}
		}
	}
}

func (l *Loop) drain(ctx context.Context) {
	for {
		cmd, ok := l.mailbox.TryDequeue()
		if !ok {
			return
		}
		cmd(ctx, l.engine)
	}
}

func (l *Loop) shutdown(ctx context.Context) {
	l.mailbox.Close()
	l.drain(ctx)
	l.engine.Close(ctx)
	l.engine.logger.Debug("loop stopped")
}
