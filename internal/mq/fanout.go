package mq

import "context"

// TicketEventSink принимает события тикетов.
type TicketEventSink interface {
	ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{})
}

// Fanout отдаёт каждое событие всем приёмникам по очереди.
type Fanout []TicketEventSink

func (f Fanout) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	for _, s := range f {
		s.ProduceTicketEvent(ctx, event, payload)
	}
}
