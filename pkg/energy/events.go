package energy

import (
	"sync"

	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
)

// EventKind names what happened to the battery.
type EventKind string

const (
	EventDayStarted   EventKind = "day_started"
	EventTicked       EventKind = "ticked"
	EventDrainChanged EventKind = "drain_changed"
	EventStateChanged EventKind = "state_changed"
)

// Event is published to subscribers whenever the snapshot is superseded.
type Event struct {
	Kind     EventKind
	Previous model.BatteryState
	Snapshot model.BatterySnapshot
}

// broadcaster fans events out to subscribers without blocking the publisher.
// A subscriber that falls behind loses events.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
