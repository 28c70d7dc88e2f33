// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package event

import (
	"slices"
	"sync"

	"github.com/google/crashtriage/pkg/log"
	"github.com/google/uuid"
)

// Handler is invoked synchronously in the goroutine that published the event.
type Handler func(ev Event)

type subscription struct {
	id      string
	handler Handler
	kinds   []Kind
	// Serializes calls to handler: engines publish from several workers.
	mu sync.Mutex
}

func (sub *subscription) wants(kind Kind) bool {
	return len(sub.kinds) == 0 || slices.Contains(sub.kinds, kind)
}

// Bus delivers events to subscribers. Events are not stored:
// a subscriber receives only events published after it subscribed.
// A nil *Bus is valid and drops all events.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*subscription
	// Subscription order, so that delivery order is deterministic.
	order []string
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]*subscription),
	}
}

// Subscribe registers h for events of the given kinds (all kinds if none are given)
// and returns the subscription id.
func (bus *Bus) Subscribe(h Handler, kinds ...Kind) string {
	sub := &subscription{
		id:      uuid.NewString(),
		handler: h,
		kinds:   slices.Clone(kinds),
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subs[sub.id] = sub
	bus.order = append(bus.order, sub.id)
	return sub.id
}

// Unsubscribe removes the subscription and reports if it existed.
func (bus *Bus) Unsubscribe(id string) bool {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if _, ok := bus.subs[id]; !ok {
		return false
	}
	delete(bus.subs, id)
	bus.order = slices.DeleteFunc(bus.order, func(s string) bool { return s == id })
	return true
}

// Publish delivers ev to all interested subscribers before returning.
func (bus *Bus) Publish(ev Event) {
	if bus == nil || ev == nil {
		return
	}
	bus.mu.RLock()
	subs := make([]*subscription, 0, len(bus.order))
	for _, id := range bus.order {
		if sub := bus.subs[id]; sub.wants(ev.Kind()) {
			subs = append(subs, sub)
		}
	}
	bus.mu.RUnlock()
	for _, sub := range subs {
		sub.invoke(ev)
	}
}

func (sub *subscription) invoke(ev Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("event handler %v panicked on %v event for %v: %v", sub.id, ev.Kind(), ev.Path(), r)
		}
	}()
	sub.handler(ev)
}
