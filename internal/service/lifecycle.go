package service

import (
	"context"
	"fmt"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/model"
	"github.com/psds-microservice/support-service/internal/policy"
)

func checkEditable(role model.Role, fields ...policy.Field) error {
	for _, f := range fields {
		if !policy.CanEditField(role, f) {
			return &errs.FieldError{Field: string(f), Role: role.String()}
		}
	}
	return nil
}

// applyPatch меняет t на месте и добавляет соответствующие события в
// timeline. Неизменившиеся значения событий не дают.
func applyPatch(t *model.Ticket, p TicketPatch, actor string) {
	if p.Subject != nil {
		t.Subject = *p.Subject
	}
	if p.Restaurant != nil {
		t.Restaurant = *p.Restaurant
	}
	if p.Product != nil {
		t.Product = *p.Product
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Tags != nil {
		t.Tags = model.NormalizeTags(*p.Tags)
	}
	if p.Status != nil && *p.Status != t.Status {
		from := t.Status
		t.Status = *p.Status
		t.Timeline = append(t.Timeline, model.TimelineEvent{
			Type:        model.EventStatusChanged,
			Description: fmt.Sprintf("Status changed from %s to %s", from, t.Status),
			Actor:       actor,
		})
	}
	if p.ClientStatus != nil && *p.ClientStatus != t.ClientStatus {
		t.ClientStatus = *p.ClientStatus
		ev := model.TimelineEvent{
			Type:        model.EventStatusChanged,
			Description: fmt.Sprintf("Status changed to %s", t.ClientStatus),
			Actor:       actor,
		}
		if t.ClientStatus == model.ClientStatusResolved {
			ev.Type = model.EventResolved
			ev.Description = "Ticket resolved"
		}
		t.Timeline = append(t.Timeline, ev)
	}
	if p.AssignedTo != nil && *p.AssignedTo != t.AssignedTo {
		t.AssignedTo = *p.AssignedTo
		t.Timeline = append(t.Timeline, model.TimelineEvent{
			Type:        model.EventAssigned,
			Description: "Assigned to " + t.AssignedTo,
			Actor:       actor,
		})
	}
}

// closeTicket записывает резюме (если есть) и закрывает оба статуса.
func closeTicket(t *model.Ticket, summary *model.ClosureSummary, actor string) {
	if summary != nil {
		cs := *summary
		t.ClosureSummary = &cs
	}
	t.Status = model.TicketStatusClosed
	t.ClientStatus = model.ClientStatusClosed
	t.Timeline = append(t.Timeline, model.TimelineEvent{
		Type:        model.EventClosed,
		Description: "Ticket closed",
		Actor:       actor,
	})
}

func (s *TicketService) afterTicketWrite(event string, t model.Ticket) {
	s.publish(event, ticketEventPayload(t))
	if s.search != nil {
		s.search.IndexTicketAsync(t)
	}
}

// publish отправляет событие в фоне, не блокируя запрос.
func (s *TicketService) publish(event string, payload map[string]interface{}) {
	if s.producer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
		defer cancel()
		s.producer.ProduceTicketEvent(ctx, event, payload)
	}()
}

func ticketEventPayload(t model.Ticket) map[string]interface{} {
	return map[string]interface{}{
		"ticket_id":     t.ID,
		"code":          t.Code,
		"subject":       t.Subject,
		"restaurant":    t.Restaurant,
		"product":       t.Product,
		"status":        string(t.Status),
		"client_status": string(t.ClientStatus),
		"priority":      string(t.Priority),
		"assigned_to":   t.AssignedTo,
		"version":       t.Version,
	}
}

func messageEventPayload(t model.Ticket, m model.Message) map[string]interface{} {
	p := ticketEventPayload(t)
	p["message_id"] = m.ID
	p["sender_role"] = m.SenderRole.String()
	p["is_internal"] = m.IsInternal
	return p
}
