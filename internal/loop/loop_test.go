package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopStartStop(t *testing.T) {
	l := New(Config{})
	require.False(t, l.IsRunning())
	require.False(t, l.Post(func() {}))

	require.NoError(t, l.Start(context.Background()))
	require.ErrorIs(t, l.Start(context.Background()), ErrLoopAlreadyRunning)
	require.True(t, l.IsRunning())

	require.NoError(t, l.Stop())
	require.ErrorIs(t, l.Stop(), ErrLoopNotRunning)
}

func TestLoopRunsCallbacksInOrder(t *testing.T) {
	l := New(Config{})
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 49 {
				close(done)
			}
		}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for callbacks")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestLoopGoPostsCompletion(t *testing.T) {
	l := New(Config{MaxInFlight: 1})
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	result := make(chan string, 1)
	l.Go(func(ctx context.Context) func() {
		value := "pulled"
		return func() { result <- value }
	})

	select {
	case v := <-result:
		require.Equal(t, "pulled", v)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for completion")
	}
}

func TestLoopStoppedTimerNeverFires(t *testing.T) {
	l := New(Config{})
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	fired := make(chan struct{}, 1)
	h := l.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} })
	h.Stop()

	select {
	case <-fired:
		t.Fatal("stopped timer fired")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestLoopEveryTicksUntilStopped(t *testing.T) {
	l := New(Config{})
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	ticks := make(chan struct{}, 16)
	h := l.Every(5*time.Millisecond, func() { ticks <- struct{}{} })

	for i := 0; i < 3; i++ {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for tick")
		}
	}
	h.Stop()
}

func TestManualResolvesOutOfOrder(t *testing.T) {
	m := NewManual(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC))

	var got []string
	m.Go(func(context.Context) func() { return func() { got = append(got, "first") } })
	m.Go(func(context.Context) func() { return func() { got = append(got, "second") } })
	require.Equal(t, 2, m.Pending())

	m.Resolve(1)
	m.Resolve(0)
	require.Equal(t, []string{"second", "first"}, got)
	require.Equal(t, 0, m.Pending())
}

func TestManualAdvanceFiresTimersInOrder(t *testing.T) {
	start := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var got []string
	m.AfterFunc(2*time.Second, func() { got = append(got, "decay") })
	tick := m.Every(time.Second, func() { got = append(got, "tick") })
	stopped := m.AfterFunc(time.Second, func() { got = append(got, "stopped") })
	stopped.Stop()

	m.Advance(2 * time.Second)
	require.Equal(t, []string{"tick", "decay", "tick"}, got)
	require.Equal(t, start.Add(2*time.Second), m.Now())

	tick.Stop()
	m.Advance(5 * time.Second)
	require.Len(t, got, 3)
	require.Equal(t, 0, m.ActiveTimers())
}
