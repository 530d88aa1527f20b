package mgr

import (
	"slices"
	"sync"
	"sync/atomic"
)

// EventMgr is a simple event manager.
type EventMgr[T any] struct {
	name string
	mgr  *Manager
	lock sync.Mutex

	subs      []*EventSubscription[T]
	callbacks []*eventCallback[T]
}

// EventSubscription is a subscription to an event.
type EventSubscription[T any] struct {
	name     string
	events   chan T
	canceled atomic.Bool
}

type eventCallback[T any] struct {
	name     string
	callback EventCallbackFunc[T]
}

// EventCallbackFunc defines the event callback function.
// If cancel is true, the callback is removed after this call.
type EventCallbackFunc[T any] func(w *WorkerCtx, data T) (cancel bool, err error)

// NewEventMgr returns a new event manager.
// It is easiest used as a public field on a struct,
// so that others can simply Subscribe() oder AddCallback().
func NewEventMgr[T any](eventName string, mgr *Manager) *EventMgr[T] {
	return &EventMgr[T]{
		name: eventName,
		mgr:  mgr,
	}
}

// Subscribe subscribes to events.
// The received events are shared among all subscribers and callbacks.
// Be sure to apply proper concurrency safeguards, if applicable.
func (em *EventMgr[T]) Subscribe(subscriberName string, chanSize int) *EventSubscription[T] {
	em.lock.Lock()
	defer em.lock.Unlock()

	es := &EventSubscription[T]{
		name:   subscriberName,
		events: make(chan T, chanSize),
	}
	em.subs = append(em.subs, es)
	return es
}

// AddCallback adds a callback to executed on events.
// The received events are shared among all subscribers and callbacks.
// Be sure to apply proper concurrency safeguards, if applicable.
func (em *EventMgr[T]) AddCallback(callbackName string, callback EventCallbackFunc[T]) {
	em.lock.Lock()
	defer em.lock.Unlock()

	em.callbacks = append(em.callbacks, &eventCallback[T]{
		name:     callbackName,
		callback: callback,
	})
}

// Submit submits a new event.
func (em *EventMgr[T]) Submit(event T) {
	em.lock.Lock()
	defer em.lock.Unlock()

	// Send to subscribers, drop canceled ones.
	em.subs = slices.DeleteFunc(em.subs, func(sub *EventSubscription[T]) bool {
		if sub.canceled.Load() {
			return true
		}
		select {
		case sub.events <- event:
		default:
			if em.mgr != nil {
				em.mgr.Warn(
					"event subscription channel overflow",
					"event", em.name,
					"subscriber", sub.name,
				)
			}
		}
		return false
	})

	// Execute callbacks, drop the ones that want to be canceled.
	em.callbacks = slices.DeleteFunc(em.callbacks, func(ec *eventCallback[T]) bool {
		var cancel bool
		run := func(w *WorkerCtx) error {
			var err error
			cancel, err = ec.callback(w, event)
			return err
		}
		if em.mgr != nil {
			_ = em.mgr.Do(em.name+" callback: "+ec.name, run)
		} else {
			_ = New(em.name).Do(ec.name, run)
		}
		return cancel
	})
}

// Events returns a read channel for the events.
// The received events are shared among all subscribers and callbacks.
// Be sure to apply proper concurrency safeguards, if applicable.
func (es *EventSubscription[T]) Events() <-chan T {
	return es.events
}

// Cancel cancels the subscription.
// The events channel is not closed, but will not receive new events.
func (es *EventSubscription[T]) Cancel() {
	es.canceled.Store(true)
}
