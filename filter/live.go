package filter

import (
	"sync"
	"time"

	"github.com/tevino/abool"

	"github.com/meshpage/meshpage/mgr"
)

// DefaultDebounce is the default time to wait for further input before
// applying a filter text.
const DefaultDebounce = 200 * time.Millisecond

// ChangeFunc is called with the new state when a filter text changed it.
type ChangeFunc func(w *mgr.WorkerCtx, state State) error

// Live debounces filter input and reports state changes.
type Live struct {
	filter   *Filter
	debounce time.Duration
	onChange ChangeFunc

	task    *mgr.Task
	pending string
	lock    sync.Mutex

	closed *abool.AtomicBool
}

// NewLive returns a live filter. Its worker runs within the given manager.
func NewLive(m *mgr.Manager, f *Filter, debounce time.Duration, onChange ChangeFunc) *Live {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	l := &Live{
		filter:   f,
		debounce: debounce,
		onChange: onChange,
		closed:   abool.New(),
	}
	l.task = m.NewTask("live filter", l.apply)
	return l
}

// Input submits filter text. It is applied once no further input arrived
// for the debounce duration.
func (l *Live) Input(text string) {
	if l.closed.IsSet() {
		return
	}

	l.lock.Lock()
	l.pending = text
	l.lock.Unlock()

	l.task.Delay(l.debounce)
}

// Flush applies the pending input immediately.
func (l *Live) Flush() {
	if l.closed.IsSet() {
		return
	}
	l.task.Go()
}

// SetFilter replaces the filter, eg. after the page was rendered again.
// The latest input is applied to the new filter immediately.
func (l *Live) SetFilter(f *Filter) {
	if l.closed.IsSet() {
		return
	}

	l.lock.Lock()
	l.filter = f
	l.lock.Unlock()

	l.task.Go()
}

// Close stops the live filter. Pending input is discarded.
func (l *Live) Close() {
	if l.closed.SetToIf(false, true) {
		l.task.Cancel()
	}
}

func (l *Live) apply(w *mgr.WorkerCtx) error {
	if l.closed.IsSet() {
		return nil
	}

	l.lock.Lock()
	text := l.pending
	f := l.filter
	l.lock.Unlock()

	state, changed := f.Apply(text)
	if !changed || l.onChange == nil {
		return nil
	}
	return l.onChange(w, state)
}
