package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tag returns a command that appends name to *out when run.
func tag(out *[]string, name string) Command {
	return func(context.Context, *Engine) { *out = append(*out, name) }
}

func TestMailbox_FIFO(t *testing.T) {
	m := newMailbox()
	var got []string
	for _, name := range []string{"A", "B", "C"} {
		require.True(t, m.Enqueue(tag(&got, name)))
	}

	for {
		cmd, ok := m.TryDequeue()
		if !ok {
			break
		}
		cmd(context.Background(), nil)
	}
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestMailbox_TryDequeue_Empty(t *testing.T) {
	m := newMailbox()
	_, ok := m.TryDequeue()
	assert.False(t, ok, "dequeue from empty mailbox should return false")
}

func TestMailbox_SignalCoalesces(t *testing.T) {
	m := newMailbox()
	var got []string
	m.Enqueue(tag(&got, "A"))
	m.Enqueue(tag(&got, "B"))

	select {
	case <-m.Wait():
	case <-time.After(time.Second):
		t.Fatal("no signal after enqueue")
	}
	select {
	case <-m.Wait():
		t.Fatal("second signal should have been coalesced")
	default:
	}
	assert.Equal(t, 2, m.Len())
}

func TestMailbox_Close(t *testing.T) {
	m := newMailbox()
	m.Close()
	m.Close() // idempotent

	assert.True(t, m.Closed())
	assert.False(t, m.Enqueue(func(context.Context, *Engine) {}), "enqueue after close should fail")

	select {
	case <-m.Wait():
	default:
		t.Fatal("closed mailbox should wake waiters")
	}
}

func TestMailbox_ThreadSafe(t *testing.T) {
	m := newMailbox()
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Enqueue(func(context.Context, *Engine) {})
		}()
	}
	wg.Wait()
	assert.Equal(t, goroutines, m.Len())
}
