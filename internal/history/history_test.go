package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu       sync.Mutex
	events   []Event
	sendErr  error
	closed   bool
	closeErr error
}

func (c *captureSink) Send(_ context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return c.sendErr
}

func (c *captureSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

func TestRingEviction(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Append(Event{Type: EventCheck, Detail: string(rune('a' + i))})
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	got := r.Recent(0)
	if len(got) != 3 {
		t.Fatalf("recent = %d events", len(got))
	}
	// Newest first; the two oldest were evicted.
	if got[0].Detail != "e" || got[1].Detail != "d" || got[2].Detail != "c" {
		t.Fatalf("recent order = %q %q %q", got[0].Detail, got[1].Detail, got[2].Detail)
	}
}

func TestRingRecentBounds(t *testing.T) {
	r := NewRing(10)
	r.Append(Event{Detail: "one"})
	r.Append(Event{Detail: "two"})
	if got := r.Recent(1); len(got) != 1 || got[0].Detail != "two" {
		t.Fatalf("recent(1) = %v", got)
	}
	if got := r.Recent(99); len(got) != 2 {
		t.Fatalf("recent beyond len = %d events", len(got))
	}
}

func TestRecorderFanOut(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder(nil, sink)
	rec.Record(Event{Type: EventOffer, VersionTag: "v1.0.0"})

	recent := rec.Recent(0)
	if len(recent) != 1 || recent[0].VersionTag != "v1.0.0" {
		t.Fatalf("ring = %v", recent)
	}
	if recent[0].OccurredAt.IsZero() {
		t.Fatalf("event should be stamped")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 1 || sink.events[0].Type != EventOffer {
		t.Fatalf("sink = %v", sink.events)
	}
}

func TestRecorderKeepsExplicitTimestamp(t *testing.T) {
	at := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	rec := NewRecorder(nil)
	rec.Record(Event{Type: EventCheck, OccurredAt: at})
	if got := rec.Recent(1)[0].OccurredAt; !got.Equal(at) {
		t.Fatalf("timestamp = %v, want %v", got, at)
	}
}

func TestRecorderSinkFailureIsSwallowed(t *testing.T) {
	sink := &captureSink{sendErr: errors.New("backend down")}
	rec := NewRecorder(nil, sink)
	rec.Record(Event{Type: EventCheck})
	if len(rec.Recent(0)) != 1 {
		t.Fatalf("ring must keep the event despite sink failure")
	}
}

func TestRecorderClose(t *testing.T) {
	a := &captureSink{closeErr: errors.New("close a")}
	b := &captureSink{}
	rec := NewRecorder(nil, a, b)
	err := rec.Close()
	if err == nil || err.Error() != "close a" {
		t.Fatalf("close error = %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatalf("all sinks should be closed")
	}
}
