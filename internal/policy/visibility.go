// Package policy решает, что каждая роль может видеть и менять.
package policy

import "github.com/psds-microservice/support-service/internal/model"

// Lane выбирает одну из двух непересекающихся лент сообщений тикета.
type Lane uint8

const (
	LaneClient Lane = iota
	LaneInternal
)

// ParseLane: "internal" даёт LaneInternal, всё остальное клиентскую ленту.
func ParseLane(s string) Lane {
	if s == "internal" {
		return LaneInternal
	}
	return LaneClient
}

func (l Lane) String() string {
	if l == LaneInternal {
		return "internal"
	}
	return "client"
}

// Field: изменяемое поле тикета.
type Field string

const (
	FieldStatus       Field = "status"
	FieldClientStatus Field = "client_status"
	FieldPriority     Field = "priority"
	FieldAssignedTo   Field = "assigned_to"
	FieldSubject      Field = "subject"
	FieldRestaurant   Field = "restaurant"
	FieldProduct      Field = "product"
	FieldTags         Field = "tags"
)

type rules struct {
	// без internalLane запрос LaneInternal получает LaneClient
	internalLane        bool
	hiddenEvents        map[model.EventType]bool
	lockedFields        map[Field]bool
	seesInternalSummary bool
}

var table = map[model.Role]rules{
	model.RoleClient: {
		hiddenEvents: map[model.EventType]bool{model.EventTransferred: true},
		lockedFields: map[Field]bool{
			FieldStatus:       true,
			FieldClientStatus: true,
			FieldPriority:     true,
			FieldAssignedTo:   true,
		},
	},
	model.RoleCS: {
		internalLane:        true,
		seesInternalSummary: true,
	},
	model.RoleSystem: {
		seesInternalSummary: true,
	},
}

func lookup(role model.Role) rules {
	if r, ok := table[role]; ok {
		return r
	}
	// неизвестная роль видит минимум
	return table[model.RoleClient]
}

// VisibleMessages возвращает сообщения одной ленты. Роль без доступа к
// внутренней ленте всегда получает клиентскую.
func VisibleMessages(messages []model.Message, role model.Role, lane Lane) []model.Message {
	internal := lane == LaneInternal && lookup(role).internalLane
	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.IsInternal == internal {
			out = append(out, m)
		}
	}
	return out
}

func VisibleTimeline(events []model.TimelineEvent, role model.Role) []model.TimelineEvent {
	hidden := lookup(role).hiddenEvents
	out := make([]model.TimelineEvent, 0, len(events))
	for _, e := range events {
		if hidden[e.Type] {
			continue
		}
		out = append(out, e)
	}
	return out
}

func CanEditField(role model.Role, field Field) bool {
	if !role.Valid() {
		return false
	}
	return !lookup(role).lockedFields[field]
}

// CanReadInternal сообщает, может ли роль видеть внутренние заметки.
func CanReadInternal(role model.Role) bool {
	return lookup(role).internalLane
}

// RedactTicket возвращает тикет в том виде, в каком его видит роль: для
// внешних ролей убираются внутреннее резюме закрытия и внутренние события.
func RedactTicket(t model.Ticket, role model.Role) model.Ticket {
	out := t.Clone()
	out.Timeline = VisibleTimeline(out.Timeline, role)
	if out.ClosureSummary != nil && !lookup(role).seesInternalSummary {
		out.ClosureSummary.InternalSummary = ""
	}
	return out
}
