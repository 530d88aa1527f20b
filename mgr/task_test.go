package mgr

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func conditionMetWithin(target time.Duration, tolerance float64, condition func() bool) bool {
	start := time.Now()
	absoluteTolerance := time.Duration(float64(target) * tolerance)
	lowerBound := target - absoluteTolerance
	upperBound := target + absoluteTolerance

	for !condition() {
		if time.Since(start) > upperBound {
			return false
		}
		time.Sleep(1 * time.Millisecond) // Fixed check interval
	}
	elapsed := time.Since(start)
	return elapsed >= lowerBound && elapsed <= upperBound
}

func TestTaskDelay(t *testing.T) {
	t.Parallel()

	m := New("DelayTest")
	value := atomic.Bool{}

	// Create a task that will execute after 500ms.
	m.NewTask("test", func(w *WorkerCtx) error {
		value.Store(true)
		return nil
	}).Delay(500 * time.Millisecond)

	if !conditionMetWithin(500*time.Millisecond, 0.2, value.Load) {
		t.Errorf("task did not execute within the expected delay")
	}
}

func TestTaskRepeat(t *testing.T) {
	t.Parallel()

	m := New("RepeatTest")
	value := atomic.Bool{}

	// Create a task that should repeat every 100 milliseconds.
	m.NewTask("test", func(w *WorkerCtx) error {
		value.Store(true)
		return nil
	}).Repeat(100 * time.Millisecond)

	// Check 5 consecutive executions within 100 milliseconds with a 20% tolerance.
	for i := range 5 {
		if !conditionMetWithin(100*time.Millisecond, 0.2, value.Load) {
			t.Errorf("task did not repeat within the expected interval (iteration %d)", i+1)
			return
		}
		value.Store(false)
	}
}

func TestTaskGoAndRepeat(t *testing.T) {
	t.Parallel()

	m := New("GoRepeatTest")
	runs := atomic.Int32{}

	task := m.NewTask("test", func(w *WorkerCtx) error {
		runs.Add(1)
		return nil
	}).Repeat(time.Hour).Go()
	defer task.Cancel()

	// Runs now, then waits for the interval.
	assert.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	// Going again runs once more.
	task.Go()
	assert.Eventually(t, func() bool {
		return runs.Load() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestTaskDebounce(t *testing.T) {
	t.Parallel()

	m := New("DebounceTest")
	runs := atomic.Int32{}

	task := m.NewTask("test", func(w *WorkerCtx) error {
		runs.Add(1)
		return nil
	})

	// Restart the delay faster than it can elapse.
	for range 5 {
		task.Delay(100 * time.Millisecond)
		time.Sleep(30 * time.Millisecond)
	}
	time.Sleep(250 * time.Millisecond)

	assert.Equal(t, int32(1), runs.Load(), "debounced task should run exactly once")
}

func TestTaskCancel(t *testing.T) {
	t.Parallel()

	m := New("CancelTest")
	value := atomic.Bool{}

	task := m.NewTask("test", func(w *WorkerCtx) error {
		value.Store(true)
		return nil
	}).Delay(100 * time.Millisecond)
	task.Cancel()

	time.Sleep(200 * time.Millisecond)
	assert.False(t, value.Load(), "canceled task must not run")
}

func TestManagerWaitForWorkers(t *testing.T) {
	t.Parallel()

	m := New("WaitTest")
	m.Go("sleeper", func(w *WorkerCtx) error {
		<-w.Done()
		return w.Ctx().Err()
	})

	assert.False(t, m.WaitForWorkers(50*time.Millisecond), "worker should still be running")
	m.Cancel()
	assert.True(t, m.WaitForWorkers(time.Second), "worker should stop after cancel")
}

func TestManagerDoRecoversPanic(t *testing.T) {
	t.Parallel()

	m := New("PanicTest")
	err := m.Do("panicker", func(w *WorkerCtx) error {
		panic("boom")
	})
	assert.ErrorIs(t, err, ErrPanic)
}
