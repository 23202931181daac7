package service

import (
	"context"
	"errors"
	"strings"

	"github.com/psds-microservice/support-service/internal/errs"
	"github.com/psds-microservice/support-service/internal/model"
	"github.com/psds-microservice/support-service/internal/policy"
)

// BulkAction: действие над несколькими выбранными тикетами.
type BulkAction string

const (
	BulkAssign   BulkAction = "assign"
	BulkStatus   BulkAction = "status"
	BulkPriority BulkAction = "priority"
	BulkClose    BulkAction = "close"
)

// ParseBulkAction принимает имя действия в любом регистре.
func ParseBulkAction(s string) (BulkAction, error) {
	a := BulkAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case BulkAssign, BulkStatus, BulkPriority, BulkClose:
		return a, nil
	}
	return "", errs.ErrUnsupportedBulkAction
}

func (a BulkAction) field() policy.Field {
	switch a {
	case BulkAssign:
		return policy.FieldAssignedTo
	case BulkPriority:
		return policy.FieldPriority
	default:
		return policy.FieldStatus
	}
}

// patch превращает действие в эквивалентный патч одного тикета.
func (a BulkAction) patch(value string) (TicketPatch, error) {
	value = strings.TrimSpace(value)
	switch a {
	case BulkAssign:
		if value == "" {
			return TicketPatch{}, errs.Required("value")
		}
		return TicketPatch{AssignedTo: &value}, nil
	case BulkStatus:
		st := model.TicketStatus(value)
		if !st.Valid() {
			return TicketPatch{}, errs.Invalid("value", "must be one of Open, Closed")
		}
		return TicketPatch{Status: &st}, nil
	case BulkPriority:
		pr := model.Priority(value)
		if !pr.Valid() {
			return TicketPatch{}, errs.Invalid("value", "must be one of Low, Medium, High, Critical")
		}
		return TicketPatch{Priority: &pr}, nil
	}
	return TicketPatch{}, errs.ErrUnsupportedBulkAction
}

// BulkApply применяет действие к выбранным тикетам. Все id проверяются до
// первой записи, затем каждый тикет фиксируется отдельно: при ошибке на
// середине предыдущие тикеты остаются изменёнными. Уже закрытые тикеты
// при закрытии пропускаются.
func (s *TicketService) BulkApply(ctx context.Context, actor model.Actor, ticketIDs []string, action BulkAction, value string) ([]model.Ticket, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	switch action {
	case BulkAssign, BulkStatus, BulkPriority, BulkClose:
	default:
		return nil, errs.ErrUnsupportedBulkAction
	}
	ids := dedupe(ticketIDs)
	if len(ids) == 0 {
		return nil, errs.Required("ticket_ids")
	}
	if err := checkEditable(actor.Role, action.field()); err != nil {
		return nil, err
	}
	var patch TicketPatch
	if action != BulkClose {
		p, err := action.patch(value)
		if err != nil {
			return nil, err
		}
		patch = p
	}
	for _, id := range ids {
		if _, err := s.store.Ticket(id); err != nil {
			return nil, err
		}
	}

	name := displayName(actor)
	out := make([]model.Ticket, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		event := "ticket.updated"
		updated, err := s.store.Update(ctx, id, 0, func(t *model.Ticket) error {
			if action == BulkClose {
				if t.IsClosed() {
					return errSkip
				}
				event = "ticket.closed"
				closeTicket(t, nil, name)
				return nil
			}
			applyPatch(t, patch, name)
			return nil
		})
		if errors.Is(err, errSkip) {
			if cur, err := s.store.Ticket(id); err == nil {
				out = append(out, cur)
			}
			continue
		}
		if err != nil {
			return out, err
		}
		s.afterTicketWrite(event, updated)
		out = append(out, updated)
	}
	return out, nil
}

// errSkip отменяет одну запись, не прерывая пакет.
var errSkip = errors.New("skip")

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
