package runner

import (
	"time"

	"github.com/google/uuid"
	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/internal/types"
)

// events stamps and forwards events of one pass. A nil sink drops them.
type events struct {
	sink  types.EventSink
	runID string
}

func newEvents(sink types.EventSink) events {
	return events{sink: sink, runID: uuid.NewString()}
}

func (e events) publish(kind models.EventKind, item string, status models.JobStatus, message string) {
	if e.sink == nil {
		return
	}
	e.sink.Publish(models.Event{
		RunID:   e.runID,
		Kind:    kind,
		Item:    item,
		Status:  status,
		Message: message,
		Time:    time.Now(),
	})
}

// Sinks fans events out to several sinks.
type Sinks []types.EventSink

func (s Sinks) Publish(evt models.Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Publish(evt)
		}
	}
}

// SinkFunc adapts a function to an EventSink.
type SinkFunc func(models.Event)

func (f SinkFunc) Publish(evt models.Event) {
	f(evt)
}
