package session

import (
	"sync"

	"github.com/giongto35/touchcoop/pkg/api"
)

// emitter hands events to the application callback one by one
// in the order they were pushed, so the callback never runs
// under the session lock.
type emitter struct {
	fn func(api.PlayerEvent)

	mu      sync.Mutex
	queue   []api.PlayerEvent
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newEmitter(fn func(api.PlayerEvent)) *emitter {
	if fn == nil {
		fn = func(api.PlayerEvent) {}
	}
	e := &emitter{fn: fn, wake: make(chan struct{}, 1), done: make(chan struct{})}
	go e.run()
	return e
}

func (e *emitter) push(ev api.PlayerEvent) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, ev)
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *emitter) next() (ev api.PlayerEvent, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || len(e.queue) == 0 {
		return ev, false
	}
	ev = e.queue[0]
	e.queue = e.queue[1:]
	return ev, true
}

func (e *emitter) run() {
	for {
		select {
		case <-e.wake:
		case <-e.done:
			return
		}
		for ev, ok := e.next(); ok; ev, ok = e.next() {
			e.fn(ev)
		}
	}
}

// stop drops the queued events, it doesn't wait for a running callback.
func (e *emitter) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	e.queue = nil
	close(e.done)
}
