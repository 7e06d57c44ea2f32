package update

import (
	"fmt"
	"time"

	"github.com/plxgio/sakura-launcher/internal/types"
)

// Event is a single message emitted by the update worker.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind      types.EventKind `json:"kind"`
	Time      time.Time       `json:"time"`
	Stage     types.Stage     `json:"stage,omitempty"`
	Status    string          `json:"status,omitempty"`
	Percent   int             `json:"percent,omitempty"`
	Version   string          `json:"version,omitempty"`
	Changelog string          `json:"changelog,omitempty"`
	Success   bool            `json:"success,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// String renders the event as a single status line.
func (e Event) String() string {
	switch e.Kind {
	case types.EventStatus:
		return e.Status
	case types.EventProgress:
		return fmt.Sprintf("%d%%", e.Percent)
	case types.EventStage:
		return fmt.Sprintf("stage: %s", e.Stage)
	case types.EventUpdateAvailable:
		return fmt.Sprintf("update available: %s", e.Version)
	case types.EventFinished:
		if e.Success {
			return fmt.Sprintf("finished: %s", e.Message)
		}
		return fmt.Sprintf("failed: %s", e.Message)
	default:
		return string(e.Kind)
	}
}

// Observer receives events from the update worker. Implementations must not
// touch presentation state directly; they hand the event over to whoever owns it.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Notify calls f(e).
func (f ObserverFunc) Notify(e Event) {
	f(e)
}

// NopObserver discards every event.
type NopObserver struct{}

// Notify does nothing.
func (NopObserver) Notify(Event) {}

// ChannelObserver forwards events to a channel owned by the host goroutine.
// Sends block, so events are never dropped or reordered.
type ChannelObserver struct {
	ch chan<- Event
}

// NewChannelObserver returns an observer sending on ch.
func NewChannelObserver(ch chan<- Event) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// Notify sends e on the channel.
func (o *ChannelObserver) Notify(e Event) {
	o.ch <- e
}

// emitter stamps and forwards events to an observer.
type emitter struct {
	observer Observer
	now      func() time.Time
}

func (em emitter) emit(e Event) {
	if em.observer == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = em.now()
	}
	em.observer.Notify(e)
}

func (em emitter) status(format string, args ...interface{}) {
	em.emit(Event{Kind: types.EventStatus, Status: fmt.Sprintf(format, args...)})
}

func (em emitter) progress(percent int) {
	em.emit(Event{Kind: types.EventProgress, Percent: percent})
}

func (em emitter) stage(s types.Stage) {
	em.emit(Event{Kind: types.EventStage, Stage: s})
}

func (em emitter) available(version, changelog string) {
	em.emit(Event{Kind: types.EventUpdateAvailable, Version: version, Changelog: changelog})
}

func (em emitter) finished(success bool, message string) {
	em.emit(Event{Kind: types.EventFinished, Success: success, Message: message})
}
