// Package events is the daemon's single fan-out point for change
// notifications. The watcher publishes; WebSocket clients and the metadata
// rebuilder subscribe. Slow subscribers drop their oldest events and never
// back-pressure the publisher.
package events

import (
	"log/slog"
	"sync"
)

type EventType string

const (
	ScriptChange     EventType = "script_change"
	DataChange       EventType = "data_change"
	OutputFileChange EventType = "output_file_change"
	WatchError       EventType = "watch_error"
)

// ActionDeletedForSafety marks files the scanner removed for violating the
// app-subtree policy.
const ActionDeletedForSafety = "deleted-for-safety"

// Event is one typed change notification. Path is project-relative.
type Event struct {
	Type   EventType `json:"type"`
	Path   string    `json:"path,omitempty"`
	Action string    `json:"action,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

const subscriberBuffer = 64

type subscriber struct {
	ch chan Event
}

// Bus fans events out to any number of subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[*subscriber]struct{}),
	}
}

// Subscribe registers a sink and returns its channel plus an unsubscribe
// func. The channel is closed on unsubscribe and on bus close.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[sub] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[sub]; ok {
				delete(b.subs, sub)
				close(sub.ch)
			}
		})
	}
	return sub.ch, unsubscribe
}

// Publish delivers the event to every subscriber. A full subscriber buffer
// drops its oldest event to make room; per-subscriber order for a path is
// otherwise preserved.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			select {
			case dropped := <-sub.ch:
				slog.Debug("event bus dropped", "type", dropped.Type, "path", dropped.Path)
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// Close shuts the bus; all subscriber channels are closed and further
// publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = make(map[*subscriber]struct{})
}

// Subscribers reports the current sink count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
