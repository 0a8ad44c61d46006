package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := bus.Subscribe()
	defer unsub()

	bus.Publish(Event{Type: ScriptChange, Path: "app/scripts/a.py"})

	select {
	case ev := <-ch:
		assert.Equal(t, ScriptChange, ev.Type)
		assert.Equal(t, "app/scripts/a.py", ev.Path)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := bus.Subscribe()
	require.Equal(t, 1, bus.Subscribers())

	unsub()
	assert.Equal(t, 0, bus.Subscribers())

	_, open := <-ch
	assert.False(t, open)

	// double unsubscribe is safe
	unsub()
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := bus.Subscribe()
	defer unsub()

	// overfill the buffer without reading
	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(Event{Type: DataChange, Path: fmt.Sprintf("input/f%03d", i)})
	}

	// the oldest events were dropped; the newest survived
	var got []Event
	for len(ch) > 0 {
		got = append(got, <-ch)
	}
	require.Len(t, got, subscriberBuffer)
	assert.Equal(t, fmt.Sprintf("input/f%03d", subscriberBuffer+9), got[len(got)-1].Path)
}

func TestPerSubscriberOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := bus.Subscribe()
	defer unsub()

	for i := 0; i < 10; i++ {
		bus.Publish(Event{Type: ScriptChange, Path: fmt.Sprintf("s%d", i)})
	}
	for i := 0; i < 10; i++ {
		ev := <-ch
		assert.Equal(t, fmt.Sprintf("s%d", i), ev.Path)
	}
}

func TestCloseBus(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe()

	bus.Close()
	_, open := <-ch
	assert.False(t, open)

	// publishing after close is a no-op
	bus.Publish(Event{Type: ScriptChange})

	// subscribing after close returns a closed channel
	ch2, _ := bus.Subscribe()
	_, open = <-ch2
	assert.False(t, open)
}
