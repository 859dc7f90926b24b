package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestController_StartsInStarting(t *testing.T) {
	t.Parallel()

	c := NewController(testLogger())
	require.Equal(t, Starting, c.State())
}

func TestController_ForwardTransitions(t *testing.T) {
	t.Parallel()

	c := NewController(testLogger())

	require.True(t, c.Transition(Running))
	require.Equal(t, Running, c.State())

	require.True(t, c.Transition(Draining))
	require.Equal(t, Draining, c.State())

	require.True(t, c.Transition(Terminated))
	require.Equal(t, Terminated, c.State())
}

func TestController_BackwardTransitionRejected(t *testing.T) {
	t.Parallel()

	c := NewController(testLogger())
	require.True(t, c.Transition(Draining))

	require.False(t, c.Transition(Running))
	require.Equal(t, Draining, c.State())
}

func TestController_RepeatedDrainingIsIdempotent(t *testing.T) {
	t.Parallel()

	c := NewController(testLogger())
	require.True(t, c.Transition(Running))
	require.True(t, c.Transition(Draining))

	// A second termination signal while already draining must be a no-op,
	// not a panic on double-close.
	require.False(t, c.Transition(Draining))

	select {
	case <-c.Draining():
	default:
		t.Fatal("draining channel not closed after Draining transition")
	}
}

func TestController_DrainingChannelBlocksUntilDrain(t *testing.T) {
	t.Parallel()

	c := NewController(testLogger())
	require.True(t, c.Transition(Running))

	select {
	case <-c.Draining():
		t.Fatal("draining channel closed while still running")
	default:
	}
}

func TestController_StartupFailureSkipsToTerminated(t *testing.T) {
	t.Parallel()

	c := NewController(testLogger())
	require.True(t, c.Transition(Terminated))

	// Waiters on the draining channel must still be released.
	select {
	case <-c.Draining():
	default:
		t.Fatal("draining channel not closed on Starting -> Terminated")
	}
}

func TestController_ConcurrentTransitionsCloseOnce(t *testing.T) {
	t.Parallel()

	c := NewController(testLogger())
	require.True(t, c.Transition(Running))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			c.Transition(Draining)
		}()
	}

	wg.Wait()
	require.Equal(t, Draining, c.State())
}

func TestController_DrainContextCancelsOnDraining(t *testing.T) {
	t.Parallel()

	c := NewController(testLogger())
	require.True(t, c.Transition(Running))

	ctx := c.DrainContext(context.Background())
	require.NoError(t, ctx.Err())

	require.True(t, c.Transition(Draining))

	select {
	case <-ctx.Done():
		require.ErrorIs(t, ctx.Err(), context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("drain context not canceled after Draining transition")
	}
}

func TestController_DrainContextFollowsParent(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(context.Background())
	c := NewController(testLogger())

	ctx := c.DrainContext(parent)
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("drain context not canceled after parent cancel")
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "starting", Starting.String())
	require.Equal(t, "running", Running.String())
	require.Equal(t, "draining", Draining.String())
	require.Equal(t, "terminated", Terminated.String())
	require.Equal(t, "unknown", State(42).String())
}
