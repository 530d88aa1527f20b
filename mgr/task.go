package mgr

import (
	"context"
	"sync"
	"time"
)

// Task manages a worker that is executed now, delayed or repeatedly.
// Setting a new delay on a pending delayed task restarts the delay,
// which makes tasks usable for debouncing.
type Task struct {
	mgr  *Manager
	name string
	fn   func(w *WorkerCtx) error

	ctx       context.Context
	cancelCtx context.CancelFunc

	run    bool
	delay  time.Duration
	repeat time.Duration
	lock   sync.Mutex

	eval chan struct{}
}

// NewTask creates a new task, but does not yet execute or schedule anything.
func (m *Manager) NewTask(name string, fn func(w *WorkerCtx) error) *Task {
	t := &Task{
		mgr:  m,
		name: name,
		fn:   fn,
		eval: make(chan struct{}, 1),
	}
	t.ctx, t.cancelCtx = context.WithCancel(m.ctx)

	go t.taskMgr()
	return t
}

func (t *Task) taskMgr() {
	var (
		wait   bool
		run    bool
		delay  time.Duration
		repeat time.Duration
	)

	for {
		if t.ctx.Err() != nil {
			return
		}

		// Wait until there is something to do.
		if wait {
			select {
			case <-t.eval:
			case <-t.ctx.Done():
				return
			}
			wait = false
		}

		t.lock.Lock()
		run = t.run
		delay = t.delay
		repeat = t.repeat
		t.lock.Unlock()

		switch {
		case run:
			t.lock.Lock()
			t.run = false
			t.lock.Unlock()

			// Errors are logged by the manager.
			_ = t.mgr.Do(t.name, t.fn)

		case delay > 0:
			if !t.waitFor(delay) {
				return
			}

		case repeat > 0:
			if !t.waitFor(repeat) {
				return
			}

		default:
			wait = true
		}
	}
}

// waitFor waits for the given duration and executes the task when it
// elapses. A re-evaluation request aborts the wait without executing.
// Returns false when the task is canceled.
func (t *Task) waitFor(d time.Duration) (ok bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		// Delays are one-shot, repeats stay.
		t.lock.Lock()
		t.delay = 0
		t.lock.Unlock()

		_ = t.mgr.Do(t.name, t.fn)
		return true

	case <-t.eval:
		return true

	case <-t.ctx.Done():
		return false
	}
}

func (t *Task) notify() {
	select {
	case t.eval <- struct{}{}:
	default:
	}
}

// Go immediately executes the task.
func (t *Task) Go() *Task {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.run = true
	t.notify()

	return t
}

// Repeat repeats the task at the given interval.
func (t *Task) Repeat(interval time.Duration) *Task {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.repeat = interval
	t.notify()

	return t
}

// Delay executes the task after the given duration.
// A pending delay is replaced and starts over.
func (t *Task) Delay(duration time.Duration) *Task {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.delay = duration
	t.notify()

	return t
}

// Cancel stops the task. Nothing is executed afterwards.
func (t *Task) Cancel() {
	t.cancelCtx()
}
