package engine

import (
	"context"
	"sync"
)

// Command is a unit of work run on the loop goroutine.
type Command func(ctx context.Context, e *Engine)

// mailbox is a thread-safe FIFO of commands.
//
// The mailbox is unbounded so that tracking calls from the application
// never block on delivery.
//
// The signal channel lets the loop wait for work with select, next to its
// ticker and context.
type mailbox struct {
	mu     sync.Mutex
	cmds   []Command
	closed bool
	signal chan struct{} // buffered, size 1
}

func newMailbox() *mailbox {
	return &mailbox{
		cmds:   make([]Command, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds cmd to the back of the mailbox.
// Returns false if the mailbox is closed.
func (m *mailbox) Enqueue(cmd Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.cmds = append(m.cmds, cmd)

	// A buffer of 1 coalesces signals.
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front command without blocking.
func (m *mailbox) TryDequeue() (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.cmds) == 0 {
		return nil, false
	}
	cmd := m.cmds[0]

	// Release the closure for GC.
	m.cmds[0] = nil
	if len(m.cmds) == 1 {
		m.cmds = m.cmds[:0]
	} else {
		m.cmds = m.cmds[1:]
	}
	return cmd, true
}

// Wait returns a channel that signals when commands may be available. It is
// closed once the mailbox is closed.
func (m *mailbox) Wait() <-chan struct{} {
	return m.signal
}

func (m *mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cmds)
}

// Close rejects further commands and wakes the waiter.
func (m *mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.signal)
}

func (m *mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
