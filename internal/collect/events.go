package collect

import (
	"sync/atomic"
	"time"
)

// EventType tags run events published on the bus.
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventEntityStarted  EventType = "entity_started"
	EventEntityFinished EventType = "entity_finished"
	EventEntitySkipped  EventType = "entity_skipped"
	EventPageAdvanced   EventType = "page_advanced"
	EventSearchDone     EventType = "search_done"
	EventDetailSaved    EventType = "detail_saved"
	EventDetailNotFound EventType = "detail_not_found"
	EventDetailFailed   EventType = "detail_failed"
	EventRunFinished    EventType = "run_finished"
)

// Event is one observable step of a run.
type Event struct {
	Type     EventType `json:"type"`
	At       time.Time `json:"at"`
	Entity   string    `json:"entity,omitempty"`
	Document string    `json:"document,omitempty"`
	Process  string    `json:"process,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Page     int       `json:"page,omitempty"`
	Count    int       `json:"count,omitempty"`
}

// Bus delivers events over a bounded channel. Publishing never blocks the
// run: when the buffer is full the event is dropped and counted. A nil Bus
// is valid and discards everything.
type Bus struct {
	ch      chan Event
	dropped atomic.Int64
}

// NewBus builds a bus buffering up to size events (minimum 1).
func NewBus(size int) *Bus {
	if size < 1 {
		size = 1
	}
	return &Bus{ch: make(chan Event, size)}
}

// Publish enqueues an event, dropping it when the buffer is full.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case b.ch <- ev:
	default:
		b.dropped.Add(1)
	}
}

// Drain returns every currently buffered event without blocking.
func (b *Bus) Drain() []Event {
	if b == nil {
		return nil
	}
	var out []Event
	for {
		select {
		case ev := <-b.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Dropped returns how many events were discarded on a full buffer.
func (b *Bus) Dropped() int64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}
