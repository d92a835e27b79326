package engine

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// EventKind identifies what happened in a reported event.
type EventKind int

const (
	EventQueued EventKind = iota
	EventProcessed
	EventRejected
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventQueued:
		return "queued"
	case EventProcessed:
		return "processed"
	case EventRejected:
		return "rejected"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is one observable step of the simulation.
// Actor is the customer for EventQueued and the teller otherwise. Tx is the
// zero value for EventStopped. Balance is only meaningful for processed and
// rejected events.
type Event struct {
	Kind    EventKind
	Actor   string
	Tx      Transaction
	Balance int64
	// Pending is the queue length observed right after the event.
	Pending int
	At      time.Time
}

// Reporter receives simulation events. Implementations must be safe for
// concurrent use; tellers and customers report from their own goroutines.
type Reporter interface {
	Report(ev Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ev Event)

func (f ReporterFunc) Report(ev Event) { f(ev) }

// MultiReporter fans every event out to each reporter in order.
type MultiReporter []Reporter

func (m MultiReporter) Report(ev Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ev)
		}
	}
}

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// ConsoleReporter writes one human-readable line per event.
type ConsoleReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleReporter creates a reporter writing to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (c *ConsoleReporter) Report(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, FormatEvent(ev))
}

// FormatEvent renders ev the way the console shows it.
func FormatEvent(ev Event) string {
	switch ev.Kind {
	case EventQueued:
		return fmt.Sprintf("%s queued: %s", ev.Actor, ev.Tx)
	case EventProcessed:
		return fmt.Sprintf("%s processed: %s", ev.Actor, ev.Tx)
	case EventRejected:
		return fmt.Sprintf("%s failed: Not enough money for %s", ev.Actor, ev.Tx)
	case EventStopped:
		return fmt.Sprintf("%s stopped.", ev.Actor)
	default:
		return fmt.Sprintf("%s %s", ev.Actor, ev.Kind)
	}
}

// Recorder keeps every reported event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{events: make([]Event, 0)}
}

func (r *Recorder) Report(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns the recorded events of the given kind.
func (r *Recorder) Filter(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
