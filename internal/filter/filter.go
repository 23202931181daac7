// Package filter сужает список тикетов по тексту и фасетам.
package filter

import (
	"strings"

	"github.com/psds-microservice/support-service/internal/model"
)

// Facets ограничивает тикеты перечисленными значениями. Пустой фасет не
// ограничивает; значения внутри фасета через OR, фасеты между собой через AND.
type Facets struct {
	Status       []model.TicketStatus
	ClientStatus []model.ClientStatus
	Priority     []model.Priority
}

// Empty: ни один фасет не задан.
func (f Facets) Empty() bool {
	return len(f.Status) == 0 && len(f.ClientStatus) == 0 && len(f.Priority) == 0
}

// Count: число выбранных значений.
func (f Facets) Count() int {
	return len(f.Status) + len(f.ClientStatus) + len(f.Priority)
}

// Tickets возвращает подходящие тикеты в исходном порядке. Запрос ищется
// без учёта регистра в коде, теме и названии ресторана.
func Tickets(tickets []model.Ticket, query string, facets Facets) []model.Ticket {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if !matchesQuery(t, q) {
			continue
		}
		if !contains(facets.Status, t.Status) ||
			!contains(facets.ClientStatus, t.ClientStatus) ||
			!contains(facets.Priority, t.Priority) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesQuery(t model.Ticket, q string) bool {
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Code), q) ||
		strings.Contains(strings.ToLower(t.Subject), q) ||
		strings.Contains(strings.ToLower(t.Restaurant), q)
}

func contains[T comparable](allowed []T, v T) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

// ParseFacets строит фасеты из query-параметров. Значение может быть списком
// через запятую; пустые отбрасываются.
func ParseFacets(status, clientStatus, priority []string) Facets {
	var f Facets
	for _, v := range splitAll(status) {
		f.Status = append(f.Status, model.TicketStatus(v))
	}
	for _, v := range splitAll(clientStatus) {
		f.ClientStatus = append(f.ClientStatus, model.ClientStatus(v))
	}
	for _, v := range splitAll(priority) {
		f.Priority = append(f.Priority, model.Priority(v))
	}
	return f
}

func splitAll(values []string) []string {
	var out []string
	for _, raw := range values {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
