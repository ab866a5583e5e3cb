// Package bus is the broadcast topic direct-mode answers travel on.
//
// A topic is shared: every subscriber sees every message, including ones
// meant for other sessions, and must filter by the embedded player id.
package bus

import (
	"context"
	"errors"
	"sync"
)

type Handler func(data []byte)

type Bus interface {
	Publish(ctx context.Context, data []byte) error
	// Subscribe registers fn until the returned cancel is called.
	Subscribe(ctx context.Context, fn Handler) (cancel func(), err error)
	Close() error
}

var ErrClosed = errors.New("bus closed")

// Local is an in-process topic.
type Local struct {
	mu     sync.Mutex
	subs   map[int]chan []byte
	next   int
	closed bool
}

// Shared is the process-wide topic, the default for hosts and players
// running in one process.
var Shared = NewLocal()

const localQueue = 64

func NewLocal() *Local { return &Local{subs: make(map[int]chan []byte)} }

// Publish fans data out to every subscriber.
// Messages to a subscriber that is too far behind are dropped.
func (b *Local) Publish(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for _, ch := range b.subs {
		msg := append([]byte(nil), data...)
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *Local) Subscribe(_ context.Context, fn Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	id := b.next
	b.next++
	ch := make(chan []byte, localQueue)
	b.subs[id] = ch
	go func() {
		for msg := range ch {
			fn(msg)
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { b.remove(id) }) }, nil
}

func (b *Local) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Local) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}

// Release closes b unless it's the shared topic.
func Release(b Bus) error {
	if b == Bus(Shared) {
		return nil
	}
	return b.Close()
}
