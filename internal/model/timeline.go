package model

import "time"

type EventType string

const (
	EventCreated       EventType = "created"
	EventAssigned      EventType = "assigned"
	EventStatusChanged EventType = "status_changed"
	EventTransferred   EventType = "transferred"
	EventResolved      EventType = "resolved"
	EventClosed        EventType = "closed"
)

// TimelineEvent: запись аудита; после добавления не меняется.
type TimelineEvent struct {
	ID          string            `json:"id"`
	Type        EventType         `json:"type"`
	Description string            `json:"description"`
	Timestamp   time.Time         `json:"timestamp"`
	Actor       string            `json:"actor"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (e TimelineEvent) Clone() TimelineEvent {
	out := e
	if e.Metadata != nil {
		out.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
