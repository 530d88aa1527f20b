package filter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpage/meshpage/mgr"
)

var testTargets = []Target{
	{ID: "n0", Key: MakeKey("nodeA", "10.1.2.3")},
	{ID: "n0-s0", Key: MakeKey("Web")},
	{ID: "n0-l0", Key: MakeKey("printer")},
	{ID: "n1", Key: MakeKey("NodeB", "10.4.5.6")},
}

func TestFilterApply(t *testing.T) {
	t.Parallel()

	f := New(testTargets)

	// The initial empty text is already applied.
	state, changed := f.Apply("  ")
	assert.False(t, changed)
	assert.Equal(t, State{}, state)

	state, changed = f.Apply("NODE")
	assert.True(t, changed)
	assert.Equal(t, State{Filtering: true, Active: []string{"n0", "n1"}}, state)
	assert.True(t, state.Contains("n1"))
	assert.False(t, state.Contains("n0-s0"))
	assert.Equal(t, "node", f.Text())

	// Same normalized text does not recompute.
	_, changed = f.Apply(" node ")
	assert.False(t, changed)

	// Matching nothing clears all markings, but keeps filtering mode.
	state, changed = f.Apply("xyz")
	assert.True(t, changed)
	assert.True(t, state.Filtering)
	assert.Empty(t, state.Active)

	// Empty text exits filtering mode.
	state, changed = f.Apply("")
	assert.True(t, changed)
	assert.Equal(t, State{}, state)
}

func TestFilterMatch(t *testing.T) {
	t.Parallel()

	f := New(testTargets)
	state := f.Match("10.4")
	assert.Equal(t, []string{"n1"}, state.Active)
	assert.Equal(t, map[string]bool{"n1": true}, state.ActiveSet())
	assert.Empty(t, f.Text(), "match must not change the applied text")
}

func TestLiveDebounce(t *testing.T) {
	t.Parallel()

	var (
		states []State
		lock   sync.Mutex
	)
	m := mgr.New("LiveTest")
	live := NewLive(m, New(testTargets), 50*time.Millisecond, func(w *mgr.WorkerCtx, state State) error {
		lock.Lock()
		defer lock.Unlock()
		states = append(states, state)
		return nil
	})
	defer live.Close()

	// Typing fast only applies the last text.
	for _, text := range []string{"p", "pr", "pri", "print"} {
		live.Input(text)
		time.Sleep(10 * time.Millisecond)
	}
	assert.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return len(states) == 1
	}, time.Second, 5*time.Millisecond)

	lock.Lock()
	require.Len(t, states, 1)
	assert.Equal(t, State{Filtering: true, Active: []string{"n0-l0"}}, states[0])
	lock.Unlock()

	// Same text after normalization does not report again.
	live.Input("PRINT ")
	time.Sleep(150 * time.Millisecond)
	lock.Lock()
	assert.Len(t, states, 1)
	lock.Unlock()

	// Clearing the filter is reported.
	live.Input("")
	live.Flush()
	assert.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return len(states) == 2 && !states[1].Filtering
	}, time.Second, 5*time.Millisecond)
}

func TestLiveClose(t *testing.T) {
	t.Parallel()

	called := make(chan State, 1)
	live := NewLive(mgr.New("LiveCloseTest"), New(testTargets), 20*time.Millisecond, func(w *mgr.WorkerCtx, state State) error {
		called <- state
		return nil
	})

	live.Input("node")
	live.Close()
	live.Input("web")

	select {
	case <-called:
		t.Fatal("closed live filter must not report")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLiveSetFilter(t *testing.T) {
	t.Parallel()

	called := make(chan State, 4)
	live := NewLive(mgr.New("LiveSetFilterTest"), New(nil), 20*time.Millisecond, func(w *mgr.WorkerCtx, state State) error {
		called <- state
		return nil
	})
	defer live.Close()

	// Nothing to match yet.
	live.Input("print")
	select {
	case state := <-called:
		assert.True(t, state.Filtering)
		assert.Empty(t, state.Active)
	case <-time.After(time.Second):
		t.Fatal("expected state")
	}

	// Replacing the filter applies the latest text again.
	live.SetFilter(New(testTargets))
	select {
	case state := <-called:
		assert.Equal(t, []string{"n0-l0"}, state.Active)
	case <-time.After(time.Second):
		t.Fatal("expected state")
	}
}
