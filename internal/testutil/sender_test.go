package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/beacon/internal/transport"
)

type staticBatch string

func (b staticBatch) Render() string { return string(b) }

func TestScriptedSender_Script(t *testing.T) {
	ctx := context.Background()
	s := NewScriptedSender()
	boom := errors.New("boom")
	s.FailSends(1, boom)
	s.FailProbes(1, nil)

	out := <-s.Send(ctx, staticBatch("[1]"))
	assert.ErrorIs(t, out.Err, boom)
	out = <-s.Send(ctx, staticBatch("[2]"))
	assert.True(t, out.OK())
	assert.Equal(t, "ok", out.Payload["status"])

	out = <-s.CheckAvailability(ctx)
	assert.True(t, transport.IsOffline(out.Err))
	out = <-s.CheckAvailability(ctx)
	assert.True(t, out.OK())

	assert.Equal(t, []string{"[1]", "[2]"}, s.Bodies())
	assert.Equal(t, 2, s.Sends())
	assert.Equal(t, 2, s.Probes())
	assert.Equal(t, 4, s.Calls())
}

func TestScriptedSender_Hold(t *testing.T) {
	s := NewScriptedSender()
	s.Hold()
	ch := s.Send(context.Background(), staticBatch("[]"))

	select {
	case <-ch:
		t.Fatal("held outcome delivered early")
	default:
	}

	require.Equal(t, 1, s.Release())
	out := <-ch
	assert.True(t, out.OK())

	// released senders deliver at once again
	out = <-s.Send(context.Background(), staticBatch("[]"))
	assert.True(t, out.OK())
}

func TestMemSettings(t *testing.T) {
	ctx := context.Background()
	m := NewMemSettings()

	_, err := m.GetString(ctx, "k")
	assert.Error(t, err)

	require.NoError(t, m.SetString(ctx, "k", "v"))
	v, err := m.GetString(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, m.Flush(ctx))
	assert.Equal(t, 1, m.Flushes())
}
